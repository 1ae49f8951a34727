package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/orca/internal/adapters/telemetry"
	"go.trai.ch/orca/internal/core/ports"
	"go.trai.ch/orca/internal/core/ports/mocks"
	"go.uber.org/mock/gomock"
)

func TestBridge_ReportsLifecycle(t *testing.T) {
	tests := []struct {
		name    string
		cached  bool
		failure string
	}{
		{name: "executed"},
		{name: "cached", cached: true},
		{name: "failed", failure: "exit status 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			renderer := mocks.NewMockRenderer(ctrl)

			tp := telemetry.NewProvider(renderer)
			t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
			tracer := telemetry.NewOTelTracerWithProvider(tp, "test")

			var startID string
			gomock.InOrder(
				renderer.EXPECT().OnTaskStart(gomock.Any(), "", "node", gomock.Any()).
					Do(func(spanID, _, _ string, _ any) { startID = spanID }),
				renderer.EXPECT().OnTaskComplete(gomock.Any(), gomock.Any(), gomock.Any(), tt.cached).
					Do(func(spanID string, _ any, err error, _ bool) {
						assert.Equal(t, startID, spanID)
						if tt.failure == "" {
							assert.NoError(t, err)
							return
						}
						require.Error(t, err)
						assert.Equal(t, tt.failure, err.Error())
					}),
			)

			_, span := tracer.Start(t.Context(), "node")
			if tt.cached {
				span.SetAttribute(ports.AttrCached, true)
			}
			if tt.failure != "" {
				span.RecordError(errorString(tt.failure))
			}
			span.End()
		})
	}
}

func TestBridge_ParentID(t *testing.T) {
	ctrl := gomock.NewController(t)
	renderer := mocks.NewMockRenderer(ctrl)

	tp := telemetry.NewProvider(renderer)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	tracer := telemetry.NewOTelTracerWithProvider(tp, "test")

	var rootID string
	renderer.EXPECT().OnTaskStart(gomock.Any(), "", "root", gomock.Any()).
		Do(func(spanID, _, _ string, _ any) { rootID = spanID })
	renderer.EXPECT().OnTaskStart(gomock.Any(), gomock.Any(), "child", gomock.Any()).
		Do(func(_, parentID, _ string, _ any) { assert.Equal(t, rootID, parentID) })
	renderer.EXPECT().OnTaskComplete(gomock.Any(), gomock.Any(), nil, false).Times(2)

	ctx, root := tracer.Start(t.Context(), "root")
	_, child := tracer.Start(ctx, "child")
	child.End()
	root.End()
}

func TestBridge_NilRenderer(t *testing.T) {
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(telemetry.NewBridge(nil)))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("test").Start(t.Context(), "n")
	span.End()

	b := telemetry.NewBridge(nil)
	require.NoError(t, b.ForceFlush(t.Context()))
	require.NoError(t, b.Shutdown(t.Context()))
}

type errorString string

func (e errorString) Error() string { return string(e) }

package cas

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/orca/internal/adapters/config"
	"go.trai.ch/orca/internal/adapters/httpstore"
	"go.trai.ch/orca/internal/adapters/metrics"
	"go.trai.ch/orca/internal/adapters/objectstore"
	"go.trai.ch/orca/internal/adapters/sqlstore"
	"go.trai.ch/orca/internal/core/domain"
	"go.trai.ch/orca/internal/core/ports"
	"go.trai.ch/zerr"
)

// NodeID is the graft node for the content-addressed store.
const NodeID graft.ID = "adapter.store"

func init() {
	graft.Register(graft.Node[ports.Store]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{config.SettingsNodeID, metrics.NodeID},
		Run: func(ctx context.Context) (ports.Store, error) {
			settings, err := graft.Dep[*config.Settings](ctx)
			if err != nil {
				return nil, err
			}
			recorder, err := graft.Dep[*metrics.Recorder](ctx)
			if err != nil {
				return nil, err
			}

			backend, err := OpenBackend(ctx, settings.Store)
			if err != nil {
				return nil, err
			}
			return NewStore(backend, WithMetrics(recorder)), nil
		},
	})
}

// OpenBackend opens the backend selected by s.
func OpenBackend(ctx context.Context, s config.StoreSettings) (ports.Backend, error) {
	switch s.Backend {
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendFilesystem:
		return NewFilesystem(s.StorePath())
	case config.BackendSQLite:
		return sqlstore.OpenSQLite(ctx, s.StorePath())
	case config.BackendPostgres:
		return sqlstore.OpenPostgres(ctx, s.DSN)
	case config.BackendS3:
		return objectstore.Open(ctx, objectstore.Config{
			Endpoint:  s.S3.Endpoint,
			AccessKey: s.S3.AccessKey,
			SecretKey: s.S3.SecretKey,
			Bucket:    s.S3.Bucket,
			Region:    s.S3.Region,
			Prefix:    s.S3.Prefix,
			Secure:    s.S3.Secure,
		})
	case config.BackendHTTP:
		return httpstore.NewClient(s.URL, nil), nil
	default:
		return nil, zerr.With(zerr.Wrap(domain.ErrUnknownBackend, "unsupported store backend"), "backend", s.Backend)
	}
}

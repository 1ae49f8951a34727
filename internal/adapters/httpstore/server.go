// Package httpstore serves a store over HTTP and provides the matching
// client backend.
//
// Routes:
//
//	GET  /v1/blobs           200 with a JSON list of entries, 501 when the
//	                         store cannot list
//	GET  /v1/blobs/{digest}  200 with the blob, 404 when absent
//	HEAD /v1/blobs/{digest}  200 or 404
//	PUT  /v1/blobs/{digest}  201 created, 200 equal blob present,
//	                         409 with the stored blob on conflict
//	GET  /healthz
//	GET  /metrics
package httpstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.trai.ch/orca/internal/core/domain"
	"go.trai.ch/orca/internal/core/ports"
)

const (
	// BlobsPath is the route prefix for blobs.
	BlobsPath = "/v1/blobs"

	// MaxBlobBytes is the default bound of a single PUT body.
	MaxBlobBytes = 1 << 30

	shutdownTimeout   = 10 * time.Second
	readHeaderTimeout = 10 * time.Second

	unmatched = "unmatched"
)

// Instrumentation records requests and serves the metrics endpoint.
type Instrumentation interface {
	ObserveRequest(method, route string, status int, duration time.Duration)
	Handler() http.Handler
}

// Server exposes a ports.Store on a chi router.
type Server struct {
	router  *chi.Mux
	store   ports.Store
	logger  ports.Logger
	inst    Instrumentation
	maxBlob int64
}

// NewServer builds the router. inst may be nil, in which case /metrics is not served.
func NewServer(store ports.Store, logger ports.Logger, inst Instrumentation) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		store:   store,
		logger:  logger,
		inst:    inst,
		maxBlob: MaxBlobBytes,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	if inst != nil {
		s.router.Use(s.metricsMiddleware)
	}
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.Get("/healthz", s.handleHealthz)
	if s.inst != nil {
		s.router.Handle("/metrics", s.inst.Handler())
	}

	s.router.Route(BlobsPath, func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Get("/{digest}", s.handleGet)
		r.Head("/{digest}", s.handleHead)
		r.Put("/{digest}", s.handlePut)
	})
}

// WithMaxBlobBytes bounds PUT bodies to n bytes.
func (s *Server) WithMaxBlobBytes(n int64) *Server {
	s.maxBlob = n
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("store server listening on " + addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	//nolint:contextcheck // shutdown must outlive the cancelled serve context
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, "ok\n")
}

// listedEntry is the wire form of a ports.Entry.
type listedEntry struct {
	Digest domain.Digest `json:"digest"`
	Size   int64         `json:"size"`
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	enum, ok := s.store.(ports.Enumerator)
	if !ok {
		http.Error(w, "store cannot list entries", http.StatusNotImplemented)
		return
	}

	entries, err := enum.Entries(r.Context())
	if errors.Is(err, domain.ErrListUnsupported) {
		http.Error(w, "store cannot list entries", http.StatusNotImplemented)
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}

	out := make([]listedEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, listedEntry{Digest: e.Digest, Size: e.Size})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	d, ok := s.digestParam(w, r)
	if !ok {
		return
	}

	blob, found, err := s.store.Get(r.Context(), d)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if !found {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeBlob(w, http.StatusOK, blob)
}

func (s *Server) handleHead(w http.ResponseWriter, r *http.Request) {
	d, ok := s.digestParam(w, r)
	if !ok {
		return
	}

	found, err := s.store.Contains(r.Context(), d)
	if err != nil {
		s.internalError(w, err)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	d, ok := s.digestParam(w, r)
	if !ok {
		return
	}

	blob, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBlob))
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		http.Error(w, "read body: "+err.Error(), status)
		return
	}

	existed, err := s.store.Contains(r.Context(), d)
	if err != nil {
		s.internalError(w, err)
		return
	}

	err = s.store.Put(r.Context(), d, blob)
	switch {
	case errors.Is(err, domain.ErrIntegrityViolation):
		stored, _, getErr := s.store.Get(r.Context(), d)
		if getErr != nil {
			s.internalError(w, getErr)
			return
		}
		writeBlob(w, http.StatusConflict, stored)
	case err != nil:
		s.internalError(w, err)
	case existed:
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusCreated)
	}
}

func (s *Server) digestParam(w http.ResponseWriter, r *http.Request) (domain.Digest, bool) {
	d, err := domain.ParseDigest(chi.URLParam(r, "digest"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return domain.Digest{}, false
	}
	return d, true
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	if s.logger != nil {
		s.logger.Error(err)
	}
	http.Error(w, "store failure", http.StatusInternalServerError)
}

func writeBlob(w http.ResponseWriter, status int, blob []byte) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(blob)))
	w.WriteHeader(status)
	_, _ = w.Write(blob)
}

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.inst.ObserveRequest(r.Method, routePattern(r), status, time.Since(start))
	})
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return unmatched
}

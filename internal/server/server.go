// Package server exposes curve generation over HTTP: single and batch
// generation, record lookup, health, Prometheus metrics and a websocket
// stream of boundary-stage progress.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"kelly-curve-lab/internal/domain"
	"kelly-curve-lab/internal/observability"
	"kelly-curve-lab/internal/orchestrator"
	"kelly-curve-lab/internal/publish"
	"kelly-curve-lab/internal/storage"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 4 << 20

// Options configures a Server.
type Options struct {
	Engine         orchestrator.Engine      // required
	Store          storage.CurveRecordStore // required
	Publisher      publish.Publisher        // optional
	Workers        int                      // batch concurrency
	Metrics        *observability.Metrics
	MetricsHandler http.Handler // default observability.Handler()
	Logger         zerolog.Logger
}

// Server serves the HTTP API.
type Server struct {
	orch    *orchestrator.Orchestrator
	store   storage.CurveRecordStore
	hub     *Hub
	metrics *observability.Metrics
	log     zerolog.Logger
	mux     *http.ServeMux
}

// New creates a Server.
func New(opts Options) *Server {
	if opts.MetricsHandler == nil {
		opts.MetricsHandler = observability.Handler()
	}
	hub := NewHub(HubOptions{Metrics: opts.Metrics, Logger: opts.Logger})
	s := &Server{
		orch: orchestrator.New(orchestrator.Options{
			Engine:    opts.Engine,
			Store:     opts.Store,
			Publisher: opts.Publisher,
			Workers:   opts.Workers,
			Progress:  hub.Broadcast,
			Metrics:   opts.Metrics,
			Logger:    opts.Logger,
		}),
		store:   opts.Store,
		hub:     hub,
		metrics: opts.Metrics,
		log:     opts.Logger,
		mux:     http.NewServeMux(),
	}

	s.route("POST /curves", "/curves", s.handleGenerate)
	s.route("POST /curves/batch", "/curves/batch", s.handleBatch)
	s.route("GET /curves", "/curves", s.handleList)
	s.route("GET /curves/{id}", "/curves/{id}", s.handleGet)
	s.route("GET /health", "/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	s.mux.Handle("GET /metrics", opts.MetricsHandler)
	s.mux.Handle("GET /ws/progress", hub)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Hub returns the progress hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.log.Info().Msg("http server stopped")
	return nil
}

// statusRecorder captures the response code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) route(pattern, name string, h http.HandlerFunc) {
	s.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		h(rec, r)
		s.metrics.RecordHTTP(name, rec.code)
	})
}

// ErrorResponse is the JSON body of failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// BatchResponse is the JSON body of POST /curves/batch.
type BatchResponse struct {
	Requested int                   `json:"requested"`
	Succeeded int                   `json:"succeeded"`
	Failed    int                   `json:"failed"`
	Records   []*domain.CurveRecord `json:"records"`
	Failures  []BatchFailure        `json:"failures,omitempty"`
}

// BatchFailure is one failed request of a batch.
type BatchFailure struct {
	Index int    `json:"index"`
	Asset string `json:"asset"`
	Label string `json:"label"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req domain.CurveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: orchestrator.KindInvalidRequest})
		return
	}

	result, err := s.orch.Run(r.Context(), []domain.CurveRequest{req})
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Kind: orchestrator.KindCanceled})
		return
	}
	if len(result.Failures) > 0 {
		f := result.Failures[0]
		writeJSON(w, StatusForKind(f.Kind), ErrorResponse{Error: f.Err.Error(), Kind: f.Kind})
		return
	}
	writeJSON(w, http.StatusCreated, result.Records[0])
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []domain.CurveRequest
	if err := decodeJSON(w, r, &reqs); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Kind: orchestrator.KindInvalidRequest})
		return
	}

	result, err := s.orch.Run(r.Context(), reqs)
	if err != nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Kind: orchestrator.KindCanceled})
		return
	}
	resp := BatchResponse{
		Requested: result.Requested,
		Succeeded: result.Succeeded,
		Failed:    result.Failed,
		Records:   result.Records,
	}
	if resp.Records == nil {
		resp.Records = []*domain.CurveRecord{}
	}
	for _, f := range result.Failures {
		resp.Failures = append(resp.Failures, BatchFailure{
			Index: f.Index, Asset: f.Asset, Label: f.Label, Kind: f.Kind, Error: f.Err.Error(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetByID(r.Context(), r.PathValue("id"))
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("get curve")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var (
		recs []*domain.CurveRecord
		err  error
	)
	if asset := r.URL.Query().Get("asset"); asset != "" {
		recs, err = s.store.GetByAsset(r.Context(), asset)
	} else {
		recs, err = s.store.GetAll(r.Context())
	}
	if err != nil {
		s.log.Error().Err(err).Msg("list curves")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return
	}
	if recs == nil {
		recs = []*domain.CurveRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// StatusForKind maps a failure kind to an HTTP status.
func StatusForKind(kind string) int {
	switch kind {
	case orchestrator.KindInvalidRequest, orchestrator.KindInvalidParameter:
		return http.StatusBadRequest
	case orchestrator.KindDuplicate:
		return http.StatusConflict
	case orchestrator.KindInsufficientPrices, orchestrator.KindInsufficientTailData,
		orchestrator.KindZeroMaxLoss, orchestrator.KindNoFeasibleBound:
		return http.StatusUnprocessableEntity
	case orchestrator.KindCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

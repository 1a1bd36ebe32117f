package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/JonMunkholm/comexcl/internal/core"
	"github.com/JonMunkholm/comexcl/internal/logging"
)

// maxRequestBody bounds the import request JSON.
const maxRequestBody = 4 << 10

var errBadRequest = errors.New("bad request")

// ImportRequest is the body of POST /importar. A limit, when present, is
// applied without a separate enable flag.
type ImportRequest struct {
	Ano     int  `json:"ano"`
	Mes     int  `json:"mes"`
	Limit   *int `json:"limit,omitempty"`
	Persist bool `json:"persist,omitempty"`
}

func (req ImportRequest) validate() error {
	if req.Ano < 1900 || req.Ano > 2100 {
		return fmt.Errorf("%w: ano must be 1900..2100, got %d", errBadRequest, req.Ano)
	}
	if req.Mes < 1 || req.Mes > 12 {
		return fmt.Errorf("%w: mes must be 1..12, got %d", errBadRequest, req.Mes)
	}
	if req.Limit != nil && *req.Limit < 1 {
		return fmt.Errorf("%w: limit must be >= 1, got %d", errBadRequest, *req.Limit)
	}
	return nil
}

func (req ImportRequest) toCore() core.Request {
	out := core.Request{Year: req.Ano, Month: req.Mes, Persist: req.Persist}
	if req.Limit != nil {
		out.Limit = *req.Limit
		out.EnableLimit = true
	}
	return out
}

// handleImport runs one import and streams the envelope as the response.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req ImportRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	if err := dec.Decode(&req); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: invalid JSON: %v", errBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		s.respondError(w, r, err)
		return
	}

	ctx := r.Context()
	if err := s.limiter.Acquire(ctx); err != nil {
		s.respondError(w, r, err)
		return
	}
	defer s.limiter.Release()

	out := &envelopeWriter{w: w}
	res, err := s.runner.Run(ctx, req.toCore(), out)
	if err != nil {
		if out.started {
			// Headers are gone; the client sees a truncated body.
			logging.FromContext(ctx).Error("run failed mid-response", "error", err)
			return
		}
		s.respondError(w, r, err)
		return
	}

	logging.FromContext(ctx).Info("import served",
		"run_id", res.RunID.String(),
		"total", res.Total,
		"warnings", len(res.Warnings),
	)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string `json:"status"`
	ActiveRuns int    `json:"active_runs"`
	MaxRuns    int    `json:"max_runs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		ActiveRuns: s.limiter.Active(),
		MaxRuns:    s.limiter.MaxConcurrent(),
	})
}

// envelopeWriter sets the JSON content type on the first write, so failed
// runs can still answer with an error status.
type envelopeWriter struct {
	w       http.ResponseWriter
	started bool
}

func (e *envelopeWriter) Write(p []byte) (int, error) {
	if !e.started {
		e.started = true
		e.w.Header().Set("Content-Type", "application/json; charset=utf-8")
		e.w.WriteHeader(http.StatusOK)
	}
	return e.w.Write(p)
}

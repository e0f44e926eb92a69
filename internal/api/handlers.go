package api

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"veritas/internal/database"
	"veritas/internal/middleware"
	"veritas/internal/pipeline"
)

// UploadField is the multipart field carrying the video
const UploadField = "videoFile"

// multipart framing allowance on top of the file size limit
const multipartOverhead = 1 << 20

// Long-poll bounds for /api/v1/results/next, in seconds
const (
	defaultWaitSeconds = 30
	maxWaitSeconds     = 120
)

// DetectorsResponse describes the active scoring setup
type DetectorsResponse struct {
	Detectors []string         `json:"detectors"`
	Weights   pipeline.Weights `json:"weights"`
	Threshold float64          `json:"threshold"`
}

// ResultsResponse wraps a listing
type ResultsResponse struct {
	OwnerID string                     `json:"owner_id,omitempty"`
	Count   int                        `json:"count"`
	Results []*pipeline.AnalysisResult `json:"results"`
}

// SummariesResponse wraps a summary listing
type SummariesResponse struct {
	OwnerID string                    `json:"owner_id,omitempty"`
	Count   int                       `json:"count"`
	Results []*database.ResultSummary `json:"results"`
}

// handleAnalyze streams the videoFile part to the analysis service.
// Successful analyses return 200, failed analyses 500 with the failure record.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := middleware.OwnerFromContext(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, s.deps.Analysis.MaxUploadBytes()+multipartOverhead)

	if ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type")); err != nil || ct != "multipart/form-data" {
		s.writeError(ctx, w, fmt.Errorf("%w: expected multipart/form-data", errBadRequest))
		return
	}
	mr, err := r.MultipartReader()
	if err != nil {
		s.writeError(ctx, w, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				s.writeError(ctx, w, err)
				return
			}
			s.writeError(ctx, w, fmt.Errorf("%w: %v", errBadRequest, err))
			return
		}
		if part.FormName() != UploadField {
			part.Close()
			continue
		}

		result, err := s.deps.Analysis.Submit(ctx, owner, part.FileName(), part)
		part.Close()
		if err != nil {
			s.writeError(ctx, w, err)
			return
		}

		status := http.StatusOK
		if !result.Success {
			status = http.StatusInternalServerError
		}
		s.encode(ctx, w, status, result)
		return
	}

	s.encode(ctx, w, http.StatusBadRequest, &ErrorBody{
		Success:   false,
		Message:   "No video file part.",
		RequestID: requestID(ctx),
	})
}

// handleListResults lists results newest first. ?owner= selects an owner,
// ?scope=all lists every owner; the default is the caller's own results.
// ?summary=1 returns listing rows without previews or details.
func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	owner := ""
	if q.Get("scope") != "all" {
		owner = q.Get("owner")
		if owner == "" {
			owner = middleware.OwnerFromContext(ctx)
		}
	}

	if summary, _ := strconv.ParseBool(q.Get("summary")); summary {
		rows, err := s.deps.Analysis.Summaries(ctx, owner)
		if err != nil {
			s.writeError(ctx, w, err)
			return
		}
		s.encode(ctx, w, http.StatusOK, &SummariesResponse{OwnerID: owner, Count: len(rows), Results: rows})
		return
	}

	var (
		results []*pipeline.AnalysisResult
		err     error
	)
	if owner == "" {
		results, err = s.deps.Analysis.ListAll(ctx)
	} else {
		results, err = s.deps.Analysis.ListByOwner(ctx, owner)
	}
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	s.encode(ctx, w, http.StatusOK, &ResultsResponse{OwnerID: owner, Count: len(results), Results: results})
}

// handleNextResult waits for the caller's next stored result.
// ?timeout= is in seconds; 204 when nothing arrives in time.
func (s *Server) handleNextResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	wait := defaultWaitSeconds
	if v := r.URL.Query().Get("timeout"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(ctx, w, fmt.Errorf("%w: timeout must be a non-negative integer", errBadRequest))
			return
		}
		wait = n
	}
	if wait > maxWaitSeconds {
		wait = maxWaitSeconds
	}

	ch, unsubscribe := s.deps.Events.SubscribeOwnerChannel(middleware.OwnerFromContext(ctx), 1)
	defer unsubscribe()

	timer := time.NewTimer(time.Duration(wait) * time.Second)
	defer timer.Stop()

	select {
	case result, ok := <-ch:
		if !ok {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		s.encode(ctx, w, http.StatusOK, result)
	case <-timer.C:
		w.WriteHeader(http.StatusNoContent)
	case <-ctx.Done():
	}
}

func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := s.deps.Analysis.Get(ctx, s.mux.Vars(r)["id"])
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	s.encode(ctx, w, http.StatusOK, result)
}

func (s *Server) handleDeleteResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owner := middleware.OwnerFromContext(ctx)
	if err := s.deps.Analysis.Delete(ctx, owner, s.mux.Vars(r)["id"]); err != nil {
		s.writeError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := s.mux.Vars(r)

	index, err := strconv.Atoi(vars["index"])
	if err != nil {
		s.writeError(ctx, w, fmt.Errorf("%w: preview index must be an integer", errBadRequest))
		return
	}

	data, err := s.deps.Analysis.Preview(ctx, vars["id"], index)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleDetectors(w http.ResponseWriter, r *http.Request) {
	s.encode(r.Context(), w, http.StatusOK, &DetectorsResponse{
		Detectors: s.deps.Detectors.Names(),
		Weights:   s.deps.Weights.Weights(),
		Threshold: pipeline.DecisionThreshold,
	})
}

func (s *Server) handleSystem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	status, err := s.deps.System.Status(ctx)
	if err != nil {
		s.writeError(ctx, w, err)
		return
	}
	s.encode(ctx, w, http.StatusOK, status)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Health.Healthz(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Health.Readyz(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}

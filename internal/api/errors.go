package api

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"
	"goa.design/goa/v3/middleware"

	"veritas/internal/services"
)

// ErrorBody is the JSON error envelope
type ErrorBody struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(middleware.RequestIDKey).(string)
	return id
}

// writeError maps service errors onto HTTP status codes
func (s *Server) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "An internal server error occurred."

	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, services.ErrNoFile):
		status, message = http.StatusBadRequest, "No file selected."
	case errors.Is(err, services.ErrUnsupportedFormat):
		status, message = http.StatusBadRequest, s.deps.Analysis.UnsupportedFormatMessage()
	case errors.Is(err, services.ErrFileTooLarge), errors.As(err, &maxErr):
		status, message = http.StatusRequestEntityTooLarge, "File too large."
	case errors.Is(err, services.ErrNotFound):
		status, message = http.StatusNotFound, "Not found."
	case errors.Is(err, errBadRequest):
		status, message = http.StatusBadRequest, err.Error()
	}

	id := requestID(ctx)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.String("request_id", id), zap.Error(err))
	} else {
		s.logger.Debug("request rejected", zap.String("request_id", id), zap.Int("status", status), zap.Error(err))
	}
	s.encode(ctx, w, status, &ErrorBody{Success: false, Message: message, RequestID: id})
}

var errBadRequest = errors.New("bad request")

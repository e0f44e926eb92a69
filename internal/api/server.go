package api

import (
	"context"
	"net/http"

	"go.uber.org/zap"
	goahttp "goa.design/goa/v3/http"
	httpmdlwr "goa.design/goa/v3/http/middleware"

	"veritas/internal/middleware"
	"veritas/internal/pipeline"
	"veritas/internal/services"
)

// MountPoint holds information about a mounted endpoint
type MountPoint struct {
	// Method is the name of the handler method
	Method string
	// Verb is the HTTP method
	Verb string
	// Pattern is the HTTP request path pattern
	Pattern string
}

// DetectorCatalog lists the registered detectors
type DetectorCatalog interface {
	Names() []string
}

// WeightsProvider exposes the fusion weight profile
type WeightsProvider interface {
	Weights() pipeline.Weights
}

// ResultFeed streams an owner's stored results
type ResultFeed interface {
	SubscribeOwnerChannel(ownerID string, bufferSize int) (<-chan *pipeline.AnalysisResult, func())
}

// Deps are the collaborators served over HTTP. Events, WebSocket and Metrics may be nil.
type Deps struct {
	Analysis  *services.AnalysisService
	Health    *services.HealthService
	System    *services.SystemService
	Detectors DetectorCatalog
	Weights   WeightsProvider
	Events    ResultFeed
	WebSocket http.Handler
	Metrics   http.Handler
}

// Server serves the analysis HTTP API
type Server struct {
	deps    Deps
	mux     goahttp.Muxer
	handler http.Handler
	logger  *zap.Logger
	Mounts  []*MountPoint
}

// New builds the API server and mounts every route
func New(deps Deps, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		deps:   deps,
		mux:    goahttp.NewMuxer(),
		logger: logger.With(zap.String("component", "api")),
	}

	s.mount("Analyze", "POST", "/api/v1/analyze", s.handleAnalyze)
	s.mount("ListResults", "GET", "/api/v1/results", s.handleListResults)
	if deps.Events != nil {
		s.mount("NextResult", "GET", "/api/v1/results/next", s.handleNextResult)
	}
	s.mount("GetResult", "GET", "/api/v1/results/{id}", s.handleGetResult)
	s.mount("DeleteResult", "DELETE", "/api/v1/results/{id}", s.handleDeleteResult)
	s.mount("GetPreview", "GET", "/api/v1/results/{id}/previews/{index}", s.handlePreview)
	s.mount("ListDetectors", "GET", "/api/v1/detectors", s.handleDetectors)
	s.mount("SystemStatus", "GET", "/api/v1/system", s.handleSystem)
	s.mount("Healthz", "GET", "/healthz", s.handleHealthz)
	s.mount("Readyz", "GET", "/readyz", s.handleReadyz)
	if deps.Metrics != nil {
		s.mount("Metrics", "GET", "/metrics", deps.Metrics.ServeHTTP)
	}
	if deps.WebSocket != nil {
		s.mount("ResultFeed", "GET", "/ws/results/{owner}", deps.WebSocket.ServeHTTP)
	}

	// Middlewares mounted here apply to all the endpoints.
	var handler http.Handler = s.mux
	{
		handler = middleware.Owner()(handler)
		handler = middleware.SecurityHeaders()(handler)
		handler = middleware.AccessLog(logger)(handler)
		handler = httpmdlwr.RequestID()(handler)
	}
	s.handler = handler
	return s
}

func (s *Server) mount(method, verb, pattern string, h http.HandlerFunc) {
	s.mux.Handle(verb, pattern, h)
	s.Mounts = append(s.Mounts, &MountPoint{Method: method, Verb: verb, Pattern: pattern})
}

// ServeHTTP dispatches to the wrapped muxer
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// encode writes v with the goa response encoder negotiated from the request
func (s *Server) encode(ctx context.Context, w http.ResponseWriter, status int, v interface{}) {
	enc := goahttp.ResponseEncoder(ctx, w)
	w.WriteHeader(status)
	if err := enc.Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

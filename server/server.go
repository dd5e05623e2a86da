// Package server - HTTP intake for the classification pipeline.
package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/classify"
	"github.com/AsadchiyViacheslav/Yandex-GO-scooters/inference"
)

// Classifier is the pipeline surface the handlers depend on.
// *classify.Pipeline satisfies it; tests substitute a stub.
type Classifier interface {
	Classify(ctx context.Context, raw []byte) (*classify.Prediction, error)
	HasParkingStage() bool
	Metrics() classify.Metrics
}

// NewServerArgs represents the arguments for building the HTTP service.
type NewServerArgs struct {
	// Classifier runs the two-stage pipeline. Required.
	Classifier Classifier
	// SessionStats supplies per-model counters for the metrics endpoint.
	// Nil reports no sessions.
	SessionStats func() []inference.Stats
	// Addr is the listen address. Defaults to ":8080".
	Addr string
	// ReadTimeout bounds request reading. Defaults to 60s.
	ReadTimeout time.Duration
	// WriteTimeout bounds response writing. Defaults to 60s.
	WriteTimeout time.Duration
	// MaxBodyBytes caps accepted request bodies. Defaults to 10 MiB.
	MaxBodyBytes int64
	// Logger receives per-request lines. Nil uses the default logger.
	Logger *log.Logger
}

// Server exposes the classification pipeline over HTTP. Request bodies are
// accepted as JSON base64, multipart form data, or the raw body; results
// and failures are JSON either way.
type Server struct {
	classifier   Classifier
	sessionStats func() []inference.Stats
	logger       *log.Logger
	maxBodyBytes int64
	started      time.Time

	router     *mux.Router
	httpServer *http.Server
}

// NewServer wires the routes and the underlying http.Server.
//
// Arguments:
//   - args: The server dependencies and tuning.
//
// Returns:
//   - *Server: The ready server. Call ListenAndServe to run it.
//   - error: An error if the classifier is missing.
func NewServer(args NewServerArgs) (*Server, error) {
	if args.Classifier == nil {
		return nil, errors.New("server requires a classifier")
	}
	if args.Addr == "" {
		args.Addr = ":8080"
	}
	if args.ReadTimeout == 0 {
		args.ReadTimeout = 60 * time.Second
	}
	if args.WriteTimeout == 0 {
		args.WriteTimeout = 60 * time.Second
	}
	if args.MaxBodyBytes == 0 {
		args.MaxBodyBytes = 10 << 20
	}
	logger := args.Logger
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		classifier:   args.Classifier,
		sessionStats: args.SessionStats,
		logger:       logger,
		maxBodyBytes: args.MaxBodyBytes,
		started:      time.Now(),
	}

	r := mux.NewRouter()
	r.HandleFunc("/v1/classify", s.handleClassify).Methods(http.MethodPost)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.handleMetrics).Methods(http.MethodGet)
	s.router = r

	s.httpServer = &http.Server{
		Handler:      r,
		Addr:         args.Addr,
		ReadTimeout:  args.ReadTimeout,
		WriteTimeout: args.WriteTimeout,
	}
	return s, nil
}

// Router returns the route handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// ListenAndServe runs the HTTP server until it fails or is shut down.
func (s *Server) ListenAndServe() error {
	s.logger.Printf("listening on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

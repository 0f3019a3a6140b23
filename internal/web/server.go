package web

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"approvalhub/internal/approvals"
	"approvalhub/internal/chatops"
	"approvalhub/internal/metrics"
)

// ServiceName is reported by /health.
const ServiceName = "universal-approval-hub"

const maxRequestBody = 1 << 20 // 1 MB

var marshalJSON = json.Marshal

// ApprovalService is the approval workflow behind the REST endpoints.
type ApprovalService interface {
	Create(ctx context.Context, in approvals.NewRequest) (approvals.Request, error)
	List(ctx context.Context, filter approvals.Filter) ([]approvals.Request, error)
}

type Server struct {
	Router      *mux.Router
	Approvals   ApprovalService
	DB          Pinger
	Slack       *chatops.Handler
	Verifier    *chatops.Verifier
	Goroutines  *GoroutineTracker
	RateLimiter *RateLimiter
	// IngestToken, when set, must be presented as a bearer token on ingest.
	IngestToken string
}

func NewServer(svc ApprovalService, database Pinger, slack *chatops.Handler, verifier *chatops.Verifier) *Server {
	s := &Server{
		Router:    mux.NewRouter(),
		Approvals: svc,
		DB:        database,
		Slack:     slack,
		Verifier:  verifier,
	}
	s.registerRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Router.ServeHTTP(w, r)
}

// withRateLimit reads s.RateLimiter per request so it may be set after NewServer.
func (s *Server) withRateLimit(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.RateLimiter == nil {
			h.ServeHTTP(w, r)
			return
		}
		RateLimitMiddleware(s.RateLimiter)(h).ServeHTTP(w, r)
	})
}

func (s *Server) registerRoutes() {
	r := s.Router
	r.Use(RequestIDMiddleware, LoggingMiddleware, RecoveryMiddleware, metrics.Middleware)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReadyz).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Handle("/new-approval", s.withRateLimit(http.HandlerFunc(s.handleNewApproval))).Methods(http.MethodPost)
	api.HandleFunc("/requests", s.handleListRequests).Methods(http.MethodGet)

	verifier := s.Verifier
	if verifier == nil {
		verifier = chatops.NewVerifier("")
	}
	slack := r.PathPrefix("/slack").Subrouter()
	slack.Use(verifier.Middleware)
	handler := s.Slack
	if handler == nil {
		handler = &chatops.Handler{}
	}
	slack.HandleFunc("/events", handler.Events).Methods(http.MethodPost)
	slack.HandleFunc("/interactive", handler.Interactive).Methods(http.MethodPost)
	slack.HandleFunc("/home", handler.Home).Methods(http.MethodPost)
}

package server

import (
	"chat-notify/auth"
	"chat-notify/contract"
	"chat-notify/domain"
	"chat-notify/observability"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// SessionServer runs the lifecycle of one streaming connection.
type SessionServer interface {
	Serve(ctx context.Context, userID domain.UserID, transport contract.Transport) error
}

type Server struct {
	log           *slog.Logger
	sessions      SessionServer
	registry      contract.IRegistry
	writeTimeout  time.Duration
	httpServer    *http.Server
	streamsCtx    context.Context
	cancelStreams context.CancelFunc
}

func NewServer(log *slog.Logger, address string, sessions SessionServer, registry contract.IRegistry,
	tokens *auth.TokenManager, metrics *observability.Metrics, writeTimeout time.Duration) *Server {
	s := &Server{
		log:          log,
		sessions:     sessions,
		registry:     registry,
		writeTimeout: writeTimeout,
	}
	// Every request context derives from streamsCtx so Shutdown can end
	// the long-lived streams instead of waiting for them to go idle.
	s.streamsCtx, s.cancelStreams = context.WithCancel(context.Background())
	s.httpServer = &http.Server{
		Addr:              address,
		Handler:           s.Router(tokens, metrics),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return s.streamsCtx },
	}
	return s
}

func (s *Server) Router(tokens *auth.TokenManager, metrics *observability.Metrics) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/events", AuthMiddleware(s.log, tokens)(http.HandlerFunc(s.handleEvents))).
		Methods(http.MethodGet)

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if metrics != nil {
		r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	}
	return r
}

// handleEvents blocks for the whole life of the stream. The request context
// is cancelled when the client goes away or the server shuts down.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return
	}
	transport := newSSETransport(w, s.writeTimeout)
	if err := s.sessions.Serve(r.Context(), userID, transport); err != nil {
		s.log.Warn("Stream closed with error", "user_id", userID, "error", err)
	}
}

type healthOutput struct {
	Status   string `json:"status"`
	Users    int    `json:"users"`
	Sessions int    `json:"sessions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stats := s.registry.Stats()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthOutput{Status: "ok", Users: stats.Users, Sessions: stats.Sessions})
}

// ListenAndServe returns nil once Shutdown has been called.
func (s *Server) ListenAndServe() error {
	s.log.Info("Starting HTTP server", "address", s.httpServer.Addr, "at", time.Now().UTC())
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and cancels every open stream so
// each session deregisters itself.
func (s *Server) Shutdown(ctx context.Context) error {
	s.httpServer.SetKeepAlivesEnabled(false)
	s.cancelStreams()
	err := s.httpServer.Shutdown(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return s.httpServer.Close()
	}
	return err
}

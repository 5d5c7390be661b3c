package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"cratedig/internal/logging"
)

const maxRequestBody = 1 << 20

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(bind, token string, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(bind),
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("/api/queue", authMiddleware(token, srv.handleQueue))
	mux.HandleFunc("/api/queue/front", authMiddleware(token, srv.handleQueueFront))
	mux.HandleFunc("/api/cancel", authMiddleware(token, srv.handleCancel))
	mux.HandleFunc("/api/slots", authMiddleware(token, srv.handleSlots))
	mux.HandleFunc("/api/history", authMiddleware(token, srv.handleHistory))
	mux.HandleFunc("/api/history/release", authMiddleware(token, srv.handleReleaseHistory))
	mux.HandleFunc("/api/events", authMiddleware(token, srv.handleEvents))
	mux.HandleFunc("/api/events/ws", authMiddleware(token, srv.handleEventsWS))
	mux.HandleFunc("/api/notify/test", authMiddleware(token, srv.handleTestNotify))
	srv.handler = mux
	return srv
}

// listen binds the configured address. A fresh http.Server is built for
// every run so the daemon can be restarted.
func (s *apiServer) listen() (net.Listener, error) {
	if s.bind == "" {
		return nil, errors.New("api listen: bind address is empty")
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return nil, fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Unlock()
	return listener, nil
}

// serve runs until ctx ends, then shuts the server down. Request contexts
// derive from ctx so long polls and websocket streams end with it.
func (s *apiServer) serve(ctx context.Context, listener net.Listener) error {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()
	server.BaseContext = func(net.Listener) context.Context { return ctx }

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(listener) }()
	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.String(logging.FieldEventType, "api_listening"),
	)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api serve: %w", err)
	}
}

func (s *apiServer) address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

func (s *apiServer) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

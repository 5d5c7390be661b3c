package daemon

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"cratedig/internal/api"
	"cratedig/internal/logging"
)

const (
	defaultEventsLimit = 200
	longPollTimeout    = 20 * time.Second

	wsSendBuffer   = 256
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 54 * time.Second
)

// Any origin is accepted; access control is the bearer token.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// handleEvents serves the replay buffer. With wait=1 the request blocks until
// an event newer than since arrives or the poll times out.
func (s *apiServer) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	hub := s.daemon.Events()
	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = defaultEventsLimit
	}
	wait := query.Get("wait") == "1" || strings.EqualFold(query.Get("wait"), "true")
	tail := query.Get("tail") == "1" || strings.EqualFold(query.Get("tail"), "true")
	topic := strings.TrimSpace(query.Get("topic"))

	if tail && since == 0 && !wait {
		evts, next := hub.Tail(limit)
		s.writeJSON(w, http.StatusOK, api.EventsResponse{Events: filterTopic(api.FromEvents(evts), topic), Next: next})
		return
	}

	if s.daemon.archive != nil && since > 0 && !wait {
		if oldest := hub.Oldest(); oldest > 0 && since+1 < oldest {
			evts, next, err := s.daemon.archive.ReadSince(since, limit)
			if err != nil {
				s.writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			s.writeJSON(w, http.StatusOK, api.EventsResponse{Events: filterTopic(api.FromEvents(evts), topic), Next: next})
			return
		}
	}

	ctx := r.Context()
	if wait {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, longPollTimeout)
		defer cancel()
	}
	evts, next, err := hub.Fetch(ctx, since, limit, wait)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if r.Context().Err() != nil {
		return
	}
	s.writeJSON(w, http.StatusOK, api.EventsResponse{Events: filterTopic(api.FromEvents(evts), topic), Next: next})
}

func filterTopic(evts []api.Event, prefix string) []api.Event {
	if prefix == "" {
		return evts
	}
	out := make([]api.Event, 0, len(evts))
	for _, evt := range evts {
		if strings.HasPrefix(evt.Topic, prefix) {
			out = append(out, evt)
		}
	}
	return out
}

// handleEventsWS pushes live events over a websocket. The optional topic
// query parameter restricts the stream to topics with that prefix.
func (s *apiServer) handleEventsWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", logging.Error(err))
		return
	}
	defer conn.Close()

	stream, unsubscribe := s.daemon.Events().Subscribe(strings.TrimSpace(r.URL.Query().Get("topic")), wsSendBuffer)
	defer unsubscribe()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					s.logger.Debug("websocket read error", logging.Error(err))
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "daemon shutting down"))
			return
		case <-closed:
			return
		case evt, ok := <-stream:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(api.FromEvent(evt)); err != nil {
				s.logger.Debug("websocket write failed", logging.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

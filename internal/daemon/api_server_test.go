package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"cratedig/internal/api"
	"cratedig/internal/logging"
	"cratedig/internal/provider"
	"cratedig/internal/queue"
	"cratedig/internal/testsupport"
)

type idleAcquirer struct{}

func (idleAcquirer) Acquire(ctx context.Context, _ provider.Request) (provider.Outcome, error) {
	<-ctx.Done()
	return provider.Outcome{}, ctx.Err()
}

func newTestServer(t *testing.T, opts ...testsupport.ConfigOption) *apiServer {
	t.Helper()
	cfg := testsupport.NewConfig(t, append([]testsupport.ConfigOption{testsupport.WithSlots(0)}, opts...)...)
	d, err := New(cfg, logging.NewNop(), WithAcquirer(idleAcquirer{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d.api
}

func serve(t *testing.T, srv *apiServer, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var payload *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		payload = bytes.NewReader(raw)
	} else {
		payload = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, payload)
	w := httptest.NewRecorder()
	srv.handler.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestAPIServerQueueLifecycle(t *testing.T) {
	srv := newTestServer(t)

	w := serve(t, srv, http.MethodPost, "/api/queue", api.EnqueueRequest{Items: []api.QueueItem{
		{ArtistID: "a1", ReleaseFolder: "One", ArtistName: "Artist"},
		{ArtistID: "a1", ReleaseFolder: "One"},
		{ArtistID: "", ReleaseFolder: "Missing"},
	}})
	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/queue = %d: %s", w.Code, w.Body.String())
	}
	results := decodeBody[api.EnqueueResponse](t, w).Results
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if !results[0].Accepted || results[0].QueueKey == "" {
		t.Fatalf("first item not accepted: %+v", results[0])
	}
	if results[1].Accepted || results[1].Reason != string(queue.ReasonDuplicate) {
		t.Fatalf("expected duplicate rejection, got %+v", results[1])
	}
	if results[2].Accepted || results[2].Reason != string(queue.ReasonInvalid) {
		t.Fatalf("expected invalid rejection, got %+v", results[2])
	}

	w = serve(t, srv, http.MethodPost, "/api/queue/front", api.EnqueueRequest{Items: []api.QueueItem{
		{ArtistID: "a2", ReleaseFolder: "Urgent"},
	}})
	if w.Code != http.StatusOK {
		t.Fatalf("POST /api/queue/front = %d", w.Code)
	}

	w = serve(t, srv, http.MethodGet, "/api/queue", nil)
	snap := decodeBody[api.QueueSnapshot](t, w)
	if snap.Length != 2 || len(snap.Items) != 2 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
	if snap.Items[0].ReleaseFolder != "Urgent" {
		t.Fatalf("expected front insert first, got %q", snap.Items[0].ReleaseFolder)
	}
	if snap.Items[1].EnqueuedAt == "" {
		t.Fatal("expected enqueuedAt to be set")
	}

	w = serve(t, srv, http.MethodGet, "/api/queue?limit=1", nil)
	if limited := decodeBody[api.QueueSnapshot](t, w); limited.Length != 2 || len(limited.Items) != 1 {
		t.Fatalf("unexpected limited snapshot: %+v", limited)
	}

	w = serve(t, srv, http.MethodDelete, "/api/queue?queue_key="+results[0].QueueKey, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("DELETE = %d: %s", w.Code, w.Body.String())
	}
	w = serve(t, srv, http.MethodDelete, "/api/queue?queue_key="+results[0].QueueKey, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("second DELETE = %d, want 404", w.Code)
	}
	w = serve(t, srv, http.MethodDelete, "/api/queue", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("DELETE without key = %d, want 400", w.Code)
	}
}

func TestAPIServerRejectsEmptyEnqueue(t *testing.T) {
	srv := newTestServer(t)
	w := serve(t, srv, http.MethodPost, "/api/queue", api.EnqueueRequest{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/queue", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed body, got %d", rec.Code)
	}
	if !strings.Contains(decodeBody[api.ErrorResponse](t, rec).Error, "invalid request body") {
		t.Fatalf("unexpected error body: %s", rec.Body.String())
	}
}

func TestAPIServerCancel(t *testing.T) {
	srv := newTestServer(t)
	serve(t, srv, http.MethodPost, "/api/queue", api.EnqueueRequest{Items: []api.QueueItem{
		{ArtistID: "a1", ReleaseFolder: "One"},
		{ArtistID: "a1", ReleaseFolder: "Two"},
		{ArtistID: "a2", ReleaseFolder: "Three"},
	}})

	w := serve(t, srv, http.MethodPost, "/api/cancel", api.CancelRequest{})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("cancel without artist = %d, want 400", w.Code)
	}

	w = serve(t, srv, http.MethodPost, "/api/cancel", api.CancelRequest{ArtistID: "a1"})
	if w.Code != http.StatusOK {
		t.Fatalf("cancel = %d", w.Code)
	}
	resp := decodeBody[api.CancelResponse](t, w)
	if resp.Removed != 2 || resp.Cancelled != 0 {
		t.Fatalf("unexpected cancel response: %+v", resp)
	}
	if snap := srv.daemon.QueueSnapshot(0); snap.Length != 1 || snap.Items[0].ArtistID != "a2" {
		t.Fatalf("expected only a2 queued, got %+v", snap)
	}
}

func TestAPIServerSlots(t *testing.T) {
	srv := newTestServer(t)

	w := serve(t, srv, http.MethodPut, "/api/slots", api.ResizeRequest{Count: 3})
	if w.Code != http.StatusOK {
		t.Fatalf("PUT /api/slots = %d: %s", w.Code, w.Body.String())
	}
	if resp := decodeBody[api.SlotsResponse](t, w); resp.Desired != 3 {
		t.Fatalf("desired = %d, want 3", resp.Desired)
	}

	w = serve(t, srv, http.MethodPut, "/api/slots", api.ResizeRequest{Count: 99})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("oversized resize = %d, want 400", w.Code)
	}
	w = serve(t, srv, http.MethodPut, "/api/slots", api.ResizeRequest{Count: -1})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("negative resize = %d, want 400", w.Code)
	}

	w = serve(t, srv, http.MethodGet, "/api/slots", nil)
	if resp := decodeBody[api.SlotsResponse](t, w); resp.Desired != 3 {
		t.Fatalf("desired after rejected resize = %d, want 3", resp.Desired)
	}

	w = serve(t, srv, http.MethodDelete, "/api/slots", nil)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE /api/slots = %d, want 405", w.Code)
	}
}

func TestAPIServerHistory(t *testing.T) {
	srv := newTestServer(t)

	w := serve(t, srv, http.MethodGet, "/api/history", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/history = %d", w.Code)
	}
	if entries := decodeBody[api.HistoryResponse](t, w).Entries; len(entries) != 0 {
		t.Fatalf("expected empty history, got %d", len(entries))
	}

	w = serve(t, srv, http.MethodGet, "/api/history/release?artist_id=a1&release_folder=Nope", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown release = %d, want 404", w.Code)
	}
	w = serve(t, srv, http.MethodGet, "/api/history/release?artist_id=a1", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing folder = %d, want 400", w.Code)
	}
}

func TestAPIServerStatus(t *testing.T) {
	srv := newTestServer(t)
	serve(t, srv, http.MethodPost, "/api/queue", api.EnqueueRequest{Items: []api.QueueItem{{ArtistID: "a1", ReleaseFolder: "One"}}})

	w := serve(t, srv, http.MethodGet, "/api/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/status = %d", w.Code)
	}
	status := decodeBody[api.DaemonStatus](t, w)
	if status.Running {
		t.Fatal("daemon was never started")
	}
	if status.Queue.Length != 1 {
		t.Fatalf("queue length = %d, want 1", status.Queue.Length)
	}
	if len(status.Providers) != 1 || status.Providers[0].Name != "custom" {
		t.Fatalf("unexpected providers: %+v", status.Providers)
	}
	if !strings.HasSuffix(status.HistoryDBPath, "history.db") {
		t.Fatalf("unexpected history path %q", status.HistoryDBPath)
	}
}

func TestAPIServerEventsTailAndLongPoll(t *testing.T) {
	srv := newTestServer(t)
	serve(t, srv, http.MethodPost, "/api/queue", api.EnqueueRequest{Items: []api.QueueItem{{ArtistID: "a1", ReleaseFolder: "One"}}})

	w := serve(t, srv, http.MethodGet, "/api/events?tail=1", nil)
	resp := decodeBody[api.EventsResponse](t, w)
	if len(resp.Events) == 0 {
		t.Fatal("expected events after enqueue")
	}
	if resp.Events[len(resp.Events)-1].Type != queue.EventEnqueued {
		t.Fatalf("last event type = %q", resp.Events[len(resp.Events)-1].Type)
	}

	w = serve(t, srv, http.MethodGet, "/api/events?topic=history", nil)
	if filtered := decodeBody[api.EventsResponse](t, w); len(filtered.Events) != 0 {
		t.Fatalf("expected no history events, got %d", len(filtered.Events))
	}

	done := make(chan api.EventsResponse, 1)
	go func() {
		req := httptest.NewRequest(http.MethodGet, "/api/events?wait=1&since="+itoa(resp.Next), nil)
		rec := httptest.NewRecorder()
		srv.handler.ServeHTTP(rec, req)
		var out api.EventsResponse
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
		done <- out
	}()

	time.Sleep(50 * time.Millisecond)
	srv.daemon.Enqueue([]queue.Item{{ArtistID: "a2", ReleaseFolder: "Two"}}, false)

	select {
	case polled := <-done:
		if len(polled.Events) == 0 || polled.Events[0].Sequence <= resp.Next {
			t.Fatalf("unexpected long-poll result: %+v", polled)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("long poll did not return")
	}
}

func TestAPIServerRequiresToken(t *testing.T) {
	srv := newTestServer(t, testsupport.WithAPIToken("secret"))

	w := serve(t, srv, http.MethodGet, "/api/status", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("no token = %d, want 401", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %q", ct)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong token = %d, want 401", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	srv.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token = %d, want 200", rec.Code)
	}

	w = serve(t, srv, http.MethodGet, "/api/status?token=secret", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("query token = %d, want 200", w.Code)
	}
}

func TestAPIServerWebsocketStreamsEvents(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.handler)
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events/ws?topic=queue"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The subscription is registered after the upgrade; retry until an event
	// published afterwards arrives.
	received := make(chan api.Event, 1)
	go func() {
		var evt api.Event
		if err := conn.ReadJSON(&evt); err == nil {
			received <- evt
		}
	}()

	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()
	n := 0
	for {
		select {
		case evt := <-received:
			if evt.Topic != "queue" || evt.Type != queue.EventEnqueued {
				t.Fatalf("unexpected event: %+v", evt)
			}
			return
		case <-tick.C:
			n++
			srv.daemon.Enqueue([]queue.Item{{ArtistID: "ws", ReleaseFolder: "R" + itoa(uint64(n))}}, false)
		case <-deadline:
			t.Fatal("no event over websocket")
		}
	}
}

func itoa(v uint64) string {
	return strconv.FormatUint(v, 10)
}

package daemon

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"cratedig/internal/api"
	"cratedig/internal/logging"
	"cratedig/internal/queue"
	"cratedig/internal/services"
)

const (
	defaultHistoryLimit = 50
	defaultLogLines     = 50
)

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status()
	providers := make([]api.ProviderStatus, 0, len(status.Providers))
	for _, p := range status.Providers {
		providers = append(providers, api.ProviderStatus{Name: p.Name, Enabled: p.Enabled})
	}
	busy := 0
	for _, slot := range status.Slots {
		if slot.Working {
			busy++
		}
	}
	s.writeJSON(w, http.StatusOK, api.DaemonStatus{
		Running:       status.Running,
		PID:           status.PID,
		StartedAt:     api.FormatTime(status.StartedAt),
		LockFilePath:  status.LockFilePath,
		HistoryDBPath: status.HistoryDBPath,
		Queue: api.QueueCounts{
			Length:   status.Queue.Length,
			InFlight: status.Queue.InFlight,
			Capacity: status.Queue.Capacity,
		},
		Slots: api.SlotCounts{
			Desired: status.DesiredSlots,
			Running: len(status.Slots),
			Busy:    busy,
		},
		Providers:     providers,
		EventsDropped: status.EventsDropped,
	})
}

func (s *apiServer) handleQueue(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		s.writeJSON(w, http.StatusOK, api.FromQueueSnapshot(s.daemon.QueueSnapshot(limit)))
	case http.MethodPost:
		s.enqueue(w, r, false)
	case http.MethodDelete:
		key := strings.TrimSpace(r.URL.Query().Get("queue_key"))
		if key == "" {
			s.writeError(w, http.StatusBadRequest, "queue_key is required")
			return
		}
		if !s.daemon.RemoveQueued(key) {
			s.writeError(w, http.StatusNotFound, "queue item not found")
			return
		}
		s.writeJSON(w, http.StatusOK, api.RemoveResponse{QueueKey: key, Removed: true})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleQueueFront(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.enqueue(w, r, true)
}

func (s *apiServer) enqueue(w http.ResponseWriter, r *http.Request, front bool) {
	var req api.EnqueueRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Items) == 0 {
		s.writeError(w, http.StatusBadRequest, "at least one item is required")
		return
	}
	items := make([]queue.Item, 0, len(req.Items))
	for _, dto := range req.Items {
		items = append(items, dto.ToQueueItem())
	}
	results := s.daemon.Enqueue(items, front)
	s.writeJSON(w, http.StatusOK, api.EnqueueResponse{Results: api.FromEnqueueResults(items, results)})
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req api.CancelRequest
	if !s.decode(w, r, &req) {
		return
	}
	artist := strings.TrimSpace(req.ArtistID)
	if artist == "" {
		s.writeError(w, http.StatusBadRequest, "artistId is required")
		return
	}
	var resp api.CancelResponse
	if folder := strings.TrimSpace(req.ReleaseFolder); folder != "" {
		resp.Cancelled, resp.Removed = s.daemon.CancelRelease(artist, folder)
	} else {
		resp.Cancelled, resp.Removed = s.daemon.CancelArtist(artist)
	}
	s.logger.Info("cancel requested",
		logging.String(logging.FieldArtistID, artist),
		logging.String(logging.FieldReleaseFolder, req.ReleaseFolder),
		logging.Int("cancelled", resp.Cancelled),
		logging.Int("removed", resp.Removed),
		logging.String(logging.FieldEventType, "cancel_requested"),
	)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPut:
		var req api.ResizeRequest
		if !s.decode(w, r, &req) {
			return
		}
		if err := s.daemon.ResizeSlots(req.Count); err != nil {
			s.writeError(w, statusForError(err), err.Error())
			return
		}
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	desired, views := s.daemon.Slots()
	s.writeJSON(w, http.StatusOK, api.SlotsResponse{Desired: desired, Slots: api.FromSlotViews(views)})
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = defaultHistoryLimit
	}
	entries := s.daemon.RecentHistory(limit)
	s.writeJSON(w, http.StatusOK, api.HistoryResponse{Entries: api.FromHistoryEntries(entries)})
}

func (s *apiServer) handleReleaseHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	query := r.URL.Query()
	artist := strings.TrimSpace(query.Get("artist_id"))
	folder := strings.TrimSpace(query.Get("release_folder"))
	if artist == "" || folder == "" {
		s.writeError(w, http.StatusBadRequest, "artist_id and release_folder are required")
		return
	}
	lines, err := strconv.Atoi(query.Get("lines"))
	if err != nil || lines <= 0 {
		lines = defaultLogLines
	}
	entry, ok, tail := s.daemon.ReleaseHistory(artist, folder, lines)
	if !ok {
		s.writeError(w, http.StatusNotFound, "no history for release")
		return
	}
	dto := api.FromHistoryEntry(entry)
	s.writeJSON(w, http.StatusOK, api.ReleaseHistoryResponse{Entry: &dto, Log: tail})
}

func (s *apiServer) handleTestNotify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	sent, message, err := s.daemon.TestNotification(r.Context())
	if err != nil {
		s.writeJSON(w, http.StatusBadGateway, api.NotifyResponse{Sent: false, Message: message + ": " + err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, api.NotifyResponse{Sent: sent, Message: message})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Archive journals every published event as JSON lines so cursors older than
// the in-memory buffer can still be served.
type Archive struct {
	path string
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

type archivedEvent struct {
	Sequence  uint64          `json:"seq"`
	Timestamp time.Time       `json:"ts"`
	Topic     string          `json:"topic"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewArchive creates (or truncates) the journal at path. An empty path
// disables archiving and returns a nil archive.
func NewArchive(path string) (*Archive, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, nil
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("ensure archive dir: %w", err)
	}
	file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_WRONLY|os.O_TRUNC|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", trimmed, err)
	}
	return &Archive{path: trimmed, file: file, enc: json.NewEncoder(file)}, nil
}

// Append writes evt to the journal. Write failures are dropped; the hub keeps
// serving from memory.
func (a *Archive) Append(evt Event) {
	if a == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.enc == nil {
		return
	}
	_ = a.enc.Encode(evt)
}

// ReadSince returns up to limit journaled events newer than since plus the
// highest sequence seen. A non-positive limit reads everything.
func (a *Archive) ReadSince(since uint64, limit int) ([]Event, uint64, error) {
	if a == nil {
		return nil, since, nil
	}
	file, err := os.Open(a.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, since, nil
		}
		return nil, since, fmt.Errorf("open archive %s: %w", a.path, err)
	}
	defer file.Close()

	decoder := json.NewDecoder(file)
	out := make([]Event, 0, 64)
	highest := since
	for {
		var rec archivedEvent
		if err := decoder.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return out, highest, fmt.Errorf("decode archive %s: %w", a.path, err)
		}
		if rec.Sequence <= since {
			continue
		}
		highest = rec.Sequence
		evt := Event{Sequence: rec.Sequence, Timestamp: rec.Timestamp, Topic: rec.Topic, Type: rec.Type}
		if len(rec.Data) > 0 {
			evt.Data = rec.Data
		}
		out = append(out, evt)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, highest, nil
}

// Path returns the journal location.
func (a *Archive) Path() string {
	if a == nil {
		return ""
	}
	return a.path
}

// Close releases the journal file.
func (a *Archive) Close() error {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	var err error
	if a.file != nil {
		err = a.file.Close()
	}
	a.file = nil
	a.enc = nil
	return err
}

// Package cancel tracks one cancellation token per active release attempt so
// callers can interrupt a single release or every release of an artist.
package cancel

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrRequested is the cause recorded on tokens cancelled through the
// registry, as opposed to tokens whose parent context ended.
var ErrRequested = errors.New("release cancelled on request")

// Requested reports whether ctx ended because its release was cancelled
// through the registry.
func Requested(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrRequested)
}

type handle struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
}

// Registry maps release keys to cancellable contexts. The zero value is not
// usable; construct with NewRegistry.
type Registry struct {
	mu      sync.Mutex
	handles map[string]handle
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]handle)}
}

// Key returns the registry key for a release.
func Key(artistID, folder string) string {
	return strings.ToLower(strings.TrimSpace(artistID) + "|" + strings.TrimSpace(folder))
}

func artistPrefix(artistID string) string {
	return strings.ToLower(strings.TrimSpace(artistID)) + "|"
}

// CreateFor returns the live token for a release, or creates one derived from
// parent. A token that has already been cancelled is replaced.
func (r *Registry) CreateFor(parent context.Context, artistID, folder string) context.Context {
	if parent == nil {
		parent = context.Background()
	}
	key := Key(artistID, folder)

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.handles[key]; ok {
		if existing.ctx.Err() == nil {
			return existing.ctx
		}
		existing.cancel(nil)
	}
	ctx, cancelFn := context.WithCancelCause(parent)
	r.handles[key] = handle{ctx: ctx, cancel: cancelFn}
	return ctx
}

// CancelForRelease cancels the token for a release. It reports whether a live
// token was cancelled; repeated calls are no-ops.
func (r *Registry) CancelForRelease(artistID, folder string) bool {
	key := Key(artistID, folder)
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[key]
	if !ok || h.ctx.Err() != nil {
		return false
	}
	h.cancel(ErrRequested)
	return true
}

// CancelActiveForArtist cancels and removes every token belonging to artistID
// and returns how many were live.
func (r *Registry) CancelActiveForArtist(artistID string) int {
	prefix := artistPrefix(artistID)
	r.mu.Lock()
	defer r.mu.Unlock()
	cancelled := 0
	for key, h := range r.handles {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if h.ctx.Err() == nil {
			cancelled++
		}
		h.cancel(ErrRequested)
		delete(r.handles, key)
	}
	return cancelled
}

// Release drops the token for a release once its attempt has finished. The
// entry is only removed when it still holds ctx, so a replacement created by a
// newer attempt survives.
func (r *Registry) Release(ctx context.Context, artistID, folder string) {
	key := Key(artistID, folder)
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[key]
	if !ok || h.ctx != ctx {
		return
	}
	h.cancel(nil)
	delete(r.handles, key)
}

// Clear forgets every token without cancelling it. Forgotten tokens stay live
// until their parent context ends.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.handles = make(map[string]handle)
	r.mu.Unlock()
}

// Cancelled reports whether the registered token for a release has fired.
func (r *Registry) Cancelled(artistID, folder string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[Key(artistID, folder)]
	return ok && h.ctx.Err() != nil
}

// Active returns the number of live tokens.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, h := range r.handles {
		if h.ctx.Err() == nil {
			n++
		}
	}
	return n
}

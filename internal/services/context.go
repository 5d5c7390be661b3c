package services

import "context"

type contextKey string

const (
	slotIDKey    contextKey = "slot_id"
	releaseKey   contextKey = "release"
	providerKey  contextKey = "provider"
	requestIDKey contextKey = "request_id"
)

// ReleaseRef identifies the release a context is working on.
type ReleaseRef struct {
	ArtistID string
	Folder   string
}

// WithSlotID annotates context with the worker slot identifier.
func WithSlotID(ctx context.Context, id int) context.Context {
	return context.WithValue(ctx, slotIDKey, id)
}

// SlotIDFromContext extracts the slot identifier if present.
func SlotIDFromContext(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(slotIDKey).(int)
	return v, ok
}

// WithRelease annotates context with the release being acquired.
func WithRelease(ctx context.Context, artistID, folder string) context.Context {
	if artistID == "" && folder == "" {
		return ctx
	}
	return context.WithValue(ctx, releaseKey, ReleaseRef{ArtistID: artistID, Folder: folder})
}

// ReleaseFromContext returns the release reference if present.
func ReleaseFromContext(ctx context.Context) (ReleaseRef, bool) {
	v, ok := ctx.Value(releaseKey).(ReleaseRef)
	return v, ok
}

// WithProvider annotates context with the provider currently attempting the release.
func WithProvider(ctx context.Context, name string) context.Context {
	if name == "" {
		return ctx
	}
	return context.WithValue(ctx, providerKey, name)
}

// ProviderFromContext returns the provider name if present.
func ProviderFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(providerKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

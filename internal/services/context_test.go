package services_test

import (
	"context"
	"testing"

	"cratedig/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithSlotID(ctx, 3)
	ctx = services.WithRelease(ctx, "artist-1", "Album X")
	ctx = services.WithProvider(ctx, "indexer")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.SlotIDFromContext(ctx); !ok || id != 3 {
		t.Fatalf("unexpected slot id: %v %v", id, ok)
	}
	ref, ok := services.ReleaseFromContext(ctx)
	if !ok || ref.ArtistID != "artist-1" || ref.Folder != "Album X" {
		t.Fatalf("unexpected release: %+v %v", ref, ok)
	}
	if name, ok := services.ProviderFromContext(ctx); !ok || name != "indexer" {
		t.Fatalf("unexpected provider: %v %v", name, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithProvider(ctx, "")
	ctx = services.WithRelease(ctx, "", "")
	if _, ok := services.ProviderFromContext(ctx); ok {
		t.Fatal("expected no provider value")
	}
	if _, ok := services.ReleaseFromContext(ctx); ok {
		t.Fatal("expected no release value")
	}
}

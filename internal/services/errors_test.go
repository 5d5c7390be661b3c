package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"cratedig/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "sabnzbd", "upload", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"sabnzbd", "upload", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want services.Kind
	}{
		{"nil", nil, ""},
		{"cancelled", fmt.Errorf("search: %w", context.Canceled), services.KindCancelled},
		{"not found", services.Wrap(services.ErrNotFound, "chain", "acquire", "no candidates", nil), services.KindNotFound},
		{"configuration", services.Wrap(services.ErrConfiguration, "indexer", "", "missing api key", nil), services.KindConfiguration},
		{"transient", services.Wrap(services.ErrTransient, "indexer", "search", "", errors.New("eof")), services.KindTransient},
		{"deadline", context.DeadlineExceeded, services.KindTransient},
		{"unexpected", errors.New("nil pointer"), services.KindUnexpected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := services.Classify(tt.err); got != tt.want {
				t.Fatalf("Classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSummaryUsesFirstLine(t *testing.T) {
	err := errors.New("download failed\nstack line")
	if got := services.Summary(err); got != "download failed" {
		t.Fatalf("Summary() = %q", got)
	}
	if got := services.Summary(nil); got != "" {
		t.Fatalf("expected empty summary for nil, got %q", got)
	}
}

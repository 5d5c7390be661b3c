package main

import (
	"fmt"
	"io"
	"time"

	"cratedig/internal/api"
)

func readAll(r io.Reader) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("no input")
	}
	return io.ReadAll(r)
}

// formatRelative renders an API timestamp as a short age such as "3m ago".
func formatRelative(value string) string {
	ts := api.ParseTime(value)
	if ts.IsZero() {
		return ""
	}
	return formatAge(time.Since(ts)) + " ago"
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// formatDuration renders d rounded to the second, or "-" when unknown.
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(time.Second).String()
}

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"cratedig/internal/api"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 18
	statusIndent     = "  "
)

// renderStatusLine prints "  Label:   [KIND] message", coloured by kind.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

// attemptStatus classifies a history entry. Cancellations are warnings since
// the user asked for them; anything else unsuccessful is an error.
func attemptStatus(entry api.HistoryEntry) (statusKind, string) {
	switch {
	case !entry.Finished:
		return statusInfo, "in progress"
	case entry.Success:
		return statusOK, entry.Outcome
	case entry.Outcome == "cancelled":
		return statusWarn, entry.Outcome
	default:
		return statusError, entry.Outcome
	}
}

func providerStatus(p api.ProviderStatus) (statusKind, string) {
	if p.Enabled {
		return statusOK, "enabled"
	}
	return statusWarn, "disabled"
}

// queueStatus warns once the queue is at capacity and enqueues start failing.
func queueStatus(q api.QueueCounts) (statusKind, string) {
	kind := statusOK
	if q.Capacity > 0 && q.Length >= q.Capacity {
		kind = statusWarn
	}
	return kind, fmt.Sprintf("%d queued, %d in flight, capacity %d", q.Length, q.InFlight, q.Capacity)
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

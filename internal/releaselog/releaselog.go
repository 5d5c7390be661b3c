// Package releaselog appends queue and provider decisions to one plain-text
// log file per release under <log_dir>/releases.
package releaselog

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"cratedig/internal/logging"
	"cratedig/internal/textmatch"
)

// Sink receives decision lines for a release.
type Sink interface {
	Append(artistName, releaseTitle, line string) error
}

// Writer is a Sink backed by files.
type Writer struct {
	baseDir string
	logger  *slog.Logger
	mu      sync.Mutex
	now     func() time.Time
}

// New creates a writer rooted at the release log directory inside logDir.
func New(logDir string, logger *slog.Logger) *Writer {
	dir := ""
	if strings.TrimSpace(logDir) != "" {
		dir = logging.ReleaseLogDir(logDir)
	}
	return &Writer{
		baseDir: dir,
		logger:  logging.NewComponentLogger(logger, "releaselog"),
		now:     time.Now,
	}
}

// Path returns the log file for a release.
func (w *Writer) Path(artistName, releaseTitle string) (string, error) {
	if strings.TrimSpace(w.baseDir) == "" {
		return "", errors.New("release log directory not configured")
	}
	artist := slug(artistName)
	if artist == "" {
		artist = "unknown-artist"
	}
	title := slug(releaseTitle)
	if title == "" {
		title = "untitled"
	}
	return filepath.Join(w.baseDir, fmt.Sprintf("%s--%s.log", artist, title)), nil
}

// Append writes one timestamped line to the release's log.
func (w *Writer) Append(artistName, releaseTitle, line string) error {
	path, err := w.Path(artistName, releaseTitle)
	if err != nil {
		return err
	}
	line = strings.TrimRight(line, "\r\n")
	stamp := w.now().UTC().Format(time.RFC3339)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
		return fmt.Errorf("ensure release log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open release log: %w", err)
	}
	if _, err := fmt.Fprintf(f, "%s %s\n", stamp, line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append release log: %w", err)
	}
	return f.Close()
}

// Tail returns up to limit trailing lines of the release's log.
func (w *Writer) Tail(artistName, releaseTitle string, limit int) ([]string, error) {
	path, err := w.Path(artistName, releaseTitle)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		if limit > 0 && len(lines) > limit {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// Func adapts a Sink to a line callback bound to one release. Append
// failures are logged and otherwise ignored.
func Func(sink Sink, logger *slog.Logger, artistName, releaseTitle string) func(string) {
	if sink == nil {
		return func(string) {}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return func(line string) {
		if err := sink.Append(artistName, releaseTitle, line); err != nil {
			logger.Debug("release log append failed",
				logging.String(logging.FieldEventType, "release_log_append_failed"),
				logging.Error(err))
		}
	}
}

func slug(value string) string {
	value = strings.TrimSpace(textmatch.ASCIIFold(value))
	if value == "" {
		return ""
	}
	var builder strings.Builder
	builder.Grow(len(value))
	lastDash := false
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			builder.WriteRune(r)
			lastDash = false
		case r >= 'A' && r <= 'Z':
			builder.WriteRune(unicode.ToLower(r))
			lastDash = false
		default:
			if !lastDash {
				builder.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(builder.String(), "-")
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Kind is the outcome class an error belongs to.
type Kind string

const (
	KindNotFound      Kind = "not_found"
	KindTransient     Kind = "transient"
	KindConfiguration Kind = "configuration"
	KindCancelled     Kind = "cancelled"
	KindUnexpected    Kind = "unexpected"
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps err onto the engine's outcome taxonomy.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrConfiguration), errors.Is(err, ErrValidation):
		return KindConfiguration
	case errors.Is(err, ErrTransient), errors.Is(err, ErrTimeout), errors.Is(err, ErrExternalTool),
		errors.Is(err, context.DeadlineExceeded):
		return KindTransient
	default:
		return KindUnexpected
	}
}

// IsRetryable reports whether err is worth another attempt against the same
// endpoint.
func IsRetryable(err error) bool {
	return Classify(err) == KindTransient
}

// Summary returns a single-line, human readable description of err suitable
// for progress and history records.
func Summary(err error) string {
	if err == nil {
		return ""
	}
	msg := strings.TrimSpace(err.Error())
	if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
		msg = strings.TrimSpace(msg[:idx])
	}
	if msg == "" {
		return string(Classify(err))
	}
	return msg
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

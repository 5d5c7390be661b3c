// Package transport holds the HTTP plumbing shared by the download client
// adapters: status and network error classification and bounded body reads.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"cratedig/internal/services"
)

// DefaultTimeout applies when an adapter is built without an explicit
// timeout.
const DefaultTimeout = 30 * time.Second

const errorBodyLimit = 512

// RequestError classifies a failed round trip. Cancellation is returned
// unchanged so callers can tell it apart from a failure.
func RequestError(component, operation string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, component, operation, "request timed out", err)
	default:
		return services.Wrap(services.ErrTransient, component, operation, "request failed", err)
	}
}

// StatusError turns a non-success response into a classified error. Auth
// failures are configuration problems; throttling and server errors are
// transient.
func StatusError(component, operation string, resp *http.Response) error {
	snippet := ""
	if resp.Body != nil {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		snippet = strings.Join(strings.Fields(string(data)), " ")
	}
	msg := fmt.Sprintf("unexpected status %d", resp.StatusCode)
	if snippet != "" {
		msg += " (" + snippet + ")"
	}
	var marker error
	switch code := resp.StatusCode; {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		marker = services.ErrConfiguration
	case code == http.StatusNotFound:
		marker = services.ErrNotFound
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		marker = services.ErrValidation
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests, code >= 500:
		marker = services.ErrTransient
	default:
		marker = services.ErrExternalTool
	}
	return services.Wrap(marker, component, operation, msg, nil)
}

// ReadLimited reads at most limit bytes and fails when the body is larger.
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response exceeds %d bytes", limit)
	}
	return data, nil
}

// Drain discards what is left of a response body and closes it so the
// connection can be reused.
func Drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"cratedig/internal/logging"
	"cratedig/internal/services"
)

// Chain runs providers in order until one acquires the release.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain builds a chain over providers in the given order.
func NewChain(logger *slog.Logger, providers ...Provider) *Chain {
	return &Chain{
		providers: providers,
		logger:    logging.NewComponentLogger(logger, "provider_chain"),
	}
}

// Enabled returns the providers that will be attempted.
func (c *Chain) Enabled() []Provider {
	out := make([]Provider, 0, len(c.providers))
	for _, p := range c.providers {
		if p != nil && p.Enabled() {
			out = append(out, p)
		}
	}
	return out
}

// Acquire tries each enabled provider in order. The first success wins. When
// every provider comes up empty the error is marked services.ErrNotFound;
// cancellation is returned as the context error.
func (c *Chain) Acquire(ctx context.Context, req Request) (Outcome, error) {
	rep := req.reporter()
	logger := logging.WithContext(ctx, c.logger)
	enabled := c.Enabled()
	label := fmt.Sprintf("%s - %s", req.ArtistName, req.ReleaseTitle)
	if len(enabled) == 0 {
		req.logf("no acquisition providers enabled")
		return Outcome{Reason: "no providers enabled"}, services.Wrap(services.ErrNotFound, "provider", "acquire",
			"no acquisition providers enabled", nil)
	}

	reasons := make([]string, 0, len(enabled))
	for i, p := range enabled {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		name := p.Name()
		rep.ProviderAttempt(name, i+1, len(enabled))
		req.logf("trying %s (%d/%d)", name, i+1, len(enabled))

		outcome, err := p.TryAcquire(services.WithProvider(ctx, name), req)
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{}, ctx.Err()
			}
			reasons = append(reasons, fmt.Sprintf("%s: %s", name, services.Summary(err)))
			logging.WarnWithContext(logger, "provider failed", "provider_failed",
				logging.String(logging.FieldProvider, name),
				logging.Error(err),
				logging.String(logging.FieldImpact, "next provider will be tried"),
			)
			continue
		}
		if outcome.Acquired {
			if outcome.Provider == "" {
				outcome.Provider = name
			}
			logger.Info("release acquired", logging.Args(logging.OutcomeAttrs(name, "acquired", outcome.Candidate)...)...)
			return outcome, nil
		}
		reason := outcome.Reason
		if reason == "" {
			reason = "nothing found"
		}
		reasons = append(reasons, fmt.Sprintf("%s: %s", name, reason))
		logger.Info("provider found nothing", logging.Args(logging.OutcomeAttrs(name, "not_found", reason)...)...)
	}

	summary := strings.Join(reasons, "; ")
	return Outcome{Reason: summary}, services.Wrap(services.ErrNotFound, "provider", "acquire",
		fmt.Sprintf("%s not found (%s)", label, summary), nil)
}

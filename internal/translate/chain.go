package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const DefaultProviderTimeout = 10 * time.Second

// Chain tries providers in priority order. Each attempt gets its own timeout;
// a failed or timed out attempt falls through to the next provider.
type Chain struct {
	providers []Provider
	timeout   time.Duration
}

func NewChain(timeout time.Duration, providers ...Provider) *Chain {
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	return &Chain{providers: providers, timeout: timeout}
}

// Providers returns the provider names in priority order.
func (c *Chain) Providers() []string {
	names := make([]string, len(c.providers))
	for i, p := range c.providers {
		names[i] = p.Name()
	}
	return names
}

// Translate returns the first successful translation. It fails with
// ErrAllProvidersFailed only when every provider failed for this call.
func (c *Chain) Translate(ctx context.Context, text, source, target string) (string, error) {
	if len(c.providers) == 0 {
		return "", ErrNoProviders
	}
	var errs []error
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		out, err := c.attempt(ctx, p, text, source, target)
		if err == nil {
			return out, nil
		}
		log.Warn().Err(err).Str("module", "translate.chain").Str("provider", p.Name()).
			Str("source", source).Str("target", target).Msg("provider failed, falling through")
		errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
	}
	return "", fmt.Errorf("%w: %w", ErrAllProvidersFailed, errors.Join(errs...))
}

func (c *Chain) attempt(ctx context.Context, p Provider, text, source, target string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("provider panic: %v", r)}
			}
		}()
		out, err := p.Translate(callCtx, text, source, target)
		done <- result{out, err}
	}()

	// Providers that ignore ctx still cannot hold the chain past the timeout.
	select {
	case <-callCtx.Done():
		return "", callCtx.Err()
	case r := <-done:
		if r.err != nil {
			return "", r.err
		}
		if strings.TrimSpace(r.text) == "" {
			return "", ErrEmptyTranslation
		}
		return r.text, nil
	}
}

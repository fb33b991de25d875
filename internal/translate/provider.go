// Package translate holds the translation cache, the provider chain and the
// concrete translation backends.
package translate

import (
	"context"
	"errors"
)

var (
	ErrAllProvidersFailed = errors.New("all translation providers failed")
	ErrEmptyTranslation   = errors.New("provider returned empty translation")
	ErrNoProviders        = errors.New("no translation providers configured")
)

// Provider is the abstraction over one translation backend.
//
// Implementations must be safe for concurrent use: one utterance fans out to
// many recipients and several of them may hit the same provider at once.
type Provider interface {
	// Name identifies the provider in logs and config.
	Name() string
	// Translate returns text rendered in target. source and target are
	// normalized language codes ("en", "pt-br").
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc struct {
	ID string
	Fn func(ctx context.Context, text, source, target string) (string, error)
}

func (p ProviderFunc) Name() string { return p.ID }

func (p ProviderFunc) Translate(ctx context.Context, text, source, target string) (string, error) {
	return p.Fn(ctx, text, source, target)
}

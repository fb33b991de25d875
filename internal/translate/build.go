package translate

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Babel/internal/config"
)

// BuildProvider turns one config entry into a Provider.
func BuildProvider(ctx context.Context, pc config.ProviderConfig, client *http.Client) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(pc.Name)) {
	case "libretranslate":
		return NewLibreTranslate(pc.BaseURL, pc.APIKey, client), nil
	case "mymemory":
		return NewMyMemory(pc.BaseURL, pc.Email, client), nil
	case "openai":
		return NewOpenAI(pc.APIKey, pc.BaseURL, pc.Model)
	case "gemini":
		return NewGemini(ctx, pc.APIKey, pc.Model)
	case "echo":
		return Echo{Tag: pc.Tag}, nil
	default:
		return nil, fmt.Errorf("unknown translation provider %q", pc.Name)
	}
}

// BuildChain assembles the provider chain in config order.
func BuildChain(ctx context.Context, cfg config.TranslationConfig, client *http.Client) (*Chain, error) {
	if len(cfg.Providers) == 0 {
		return nil, ErrNoProviders
	}
	providers := make([]Provider, 0, len(cfg.Providers))
	for i, pc := range cfg.Providers {
		p, err := BuildProvider(ctx, pc, client)
		if err != nil {
			return nil, fmt.Errorf("translation.providers[%d]: %w", i, err)
		}
		providers = append(providers, p)
	}
	chain := NewChain(cfg.Timeout, providers...)
	log.Info().Str("module", "translate").Strs("providers", chain.Providers()).Dur("timeout", chain.timeout).Msg("provider chain ready")
	return chain, nil
}

package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultLibreTranslateURL = "https://libretranslate.com"

// LibreTranslate talks to a LibreTranslate server (self-hosted or public).
type LibreTranslate struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

var _ Provider = (*LibreTranslate)(nil)

type libreRequest struct {
	Q      string `json:"q"`
	Source string `json:"source"`
	Target string `json:"target"`
	Format string `json:"format"`
	APIKey string `json:"api_key,omitempty"`
}

type libreResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error"`
}

func NewLibreTranslate(baseURL, apiKey string, client *http.Client) *LibreTranslate {
	if baseURL == "" {
		baseURL = defaultLibreTranslateURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &LibreTranslate{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, client: client}
}

func (p *LibreTranslate) Name() string { return "libretranslate" }

func (p *LibreTranslate) Translate(ctx context.Context, text, source, target string) (string, error) {
	body, err := json.Marshal(libreRequest{
		Q:      text,
		Source: primarySubtag(source),
		Target: primarySubtag(target),
		Format: "text",
		APIKey: p.apiKey,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	var out libreResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("libretranslate status %d: %s", resp.StatusCode, out.Error)
	}
	return out.TranslatedText, nil
}

// primarySubtag turns "pt-br" into "pt" for backends that only know base codes.
func primarySubtag(lang string) string {
	if i := strings.IndexByte(lang, '-'); i > 0 {
		return lang[:i]
	}
	return lang
}

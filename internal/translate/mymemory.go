package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const defaultMyMemoryURL = "https://api.mymemory.translated.net"

// MyMemory uses the free MyMemory GET API. Email raises the daily quota.
type MyMemory struct {
	baseURL string
	email   string
	client  *http.Client
}

var _ Provider = (*MyMemory)(nil)

type myMemoryResponse struct {
	ResponseData struct {
		TranslatedText string `json:"translatedText"`
	} `json:"responseData"`
	// MyMemory reports the status as a number or, on some errors, a string.
	ResponseStatus  json.Number `json:"responseStatus"`
	ResponseDetails string      `json:"responseDetails"`
}

func NewMyMemory(baseURL, email string, client *http.Client) *MyMemory {
	if baseURL == "" {
		baseURL = defaultMyMemoryURL
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &MyMemory{baseURL: strings.TrimRight(baseURL, "/"), email: email, client: client}
}

func (p *MyMemory) Name() string { return "mymemory" }

func (p *MyMemory) Translate(ctx context.Context, text, source, target string) (string, error) {
	q := url.Values{}
	q.Set("q", text)
	q.Set("langpair", source+"|"+target)
	if p.email != "" {
		q.Set("de", p.email)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/get?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mymemory status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	var out myMemoryResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if status := out.ResponseStatus.String(); status != "" && status != "200" {
		return "", fmt.Errorf("mymemory status %s: %s", status, out.ResponseDetails)
	}
	return out.ResponseData.TranslatedText, nil
}

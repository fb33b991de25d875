package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"google.golang.org/genai"
)

const (
	defaultOpenAIModel = "gpt-4o-mini"
	defaultGeminiModel = "gemini-2.0-flash"
)

func translationPrompt(source, target string) string {
	return fmt.Sprintf(
		"You are a live interpreter. Translate the user's message from %s to %s. "+
			"Reply with the translation only, no quotes, notes or explanations. "+
			"Keep the tone and register of the speaker.", source, target)
}

// OpenAI translates with a chat completion model. BaseURL lets it target
// any OpenAI-compatible endpoint.
type OpenAI struct {
	client openai.Client
	model  string
}

var _ Provider = (*OpenAI)(nil)

func NewOpenAI(apiKey, baseURL, model string, extra ...option.RequestOption) (*OpenAI, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api_key is required")
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	opts = append(opts, extra...)
	return &OpenAI{client: openai.NewClient(opts...), model: model}, nil
}

func (p *OpenAI) Name() string { return "openai" }

func (p *OpenAI) Translate(ctx context.Context, text, source, target string) (string, error) {
	resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: p.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(translationPrompt(source, target)),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyTranslation
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Gemini translates with Google's GenerateContent API.
type Gemini struct {
	client *genai.Client
	model  string
}

var _ Provider = (*Gemini)(nil)

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api_key is required")
	}
	if model == "" {
		model = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

func (p *Gemini) Name() string { return "gemini" }

func (p *Gemini) Translate(ctx context.Context, text, source, target string) (string, error) {
	resp, err := p.client.Models.GenerateContent(ctx, p.model, []*genai.Content{
		{Parts: []*genai.Part{{Text: text}}, Role: "user"},
	}, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: translationPrompt(source, target)}}},
		Temperature:       genai.Ptr[float32](0),
	})
	if err != nil {
		return "", fmt.Errorf("genai generate: %w", err)
	}

	var sb strings.Builder
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		for _, part := range resp.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

// Echo returns the input unchanged, optionally tagged with the target
// language. Handy for local runs without provider credentials.
type Echo struct {
	Tag bool
}

func (Echo) Name() string { return "echo" }

func (p Echo) Translate(_ context.Context, text, _, target string) (string, error) {
	if p.Tag {
		return "[" + target + "] " + text, nil
	}
	return text, nil
}

// Package openai summarizes text with the OpenAI chat completions API.
package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vidscribe/vidscribe/internal/config"
	"github.com/vidscribe/vidscribe/internal/jsoncodec"
	"github.com/vidscribe/vidscribe/internal/summarize"
)

const providerName = "openai"

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4"
	defaultTimeout = 2 * time.Minute

	// maxTokens caps the summary length.
	maxTokens = 500
)

// Register adds the openai backend to the registry.
func Register(r *summarize.Registry) {
	r.Register(providerName, func(cfg *config.Config) (summarize.Summarizer, error) {
		return New(cfg.Providers.OpenAIKey, cfg.Providers.OpenAIModel)
	})
}

// Summarizer calls the chat completions endpoint.
type Summarizer struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// New returns a summarizer for the given API key. The model falls back to
// gpt-4 when empty.
func New(apiKey, model string) (*Summarizer, error) {
	if apiKey == "" {
		return nil, errors.New("vidscribe: openai API key is required")
	}
	if model == "" {
		model = defaultModel
	}
	return &Summarizer{
		apiKey:  apiKey,
		model:   model,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}, nil
}

func (s *Summarizer) ProviderName() string { return providerName }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	payload, err := jsoncodec.Marshal(chatRequest{
		Model: s.model,
		Messages: []chatMessage{{
			Role:    "user",
			Content: "Summarize the following text concisely:\n\n" + text,
		}},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("encode openai request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build openai request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call openai: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read openai response: %w", err)
	}

	var decoded chatResponse
	if err := jsoncodec.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("openai error: %s", decoded.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai returned %d", resp.StatusCode)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("vidscribe: openai response contained no choices")
	}
	return strings.TrimSpace(decoded.Choices[0].Message.Content), nil
}

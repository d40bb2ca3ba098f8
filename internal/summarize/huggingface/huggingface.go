// Package huggingface summarizes text through the Hugging Face hosted
// inference API. Long transcripts are split into chunks and the chunk
// summaries are joined.
package huggingface

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

const providerName = "huggingface"

const (
	defaultBaseURL = "https://api-inference.huggingface.co/models/"
	defaultModel   = "facebook/bart-large-cnn"
	defaultTimeout = 2 * time.Minute

	// chunkSize is the rough character budget per model call.
	chunkSize = 1024
)

// Register adds the huggingface backend to the registry.
func Register(r *summarize.Registry) {
	r.Register(providerName, func(cfg *config.Config) (summarize.Summarizer, error) {
		return New(cfg.Providers.HuggingFaceToken, cfg.Providers.HuggingFaceSummaryModel)
	})
}

// Summarizer calls a hosted summarization model.
type Summarizer struct {
	token   string
	model   string
	baseURL string
	client  *http.Client
}

// New returns a summarizer for the given API token. The model falls back to
// bart-large-cnn when empty.
func New(token, model string) (*Summarizer, error) {
	if token == "" {
		return nil, errors.New("vidscribe: huggingface token is required")
	}
	if model == "" {
		model = defaultModel
	}
	return &Summarizer{
		token:   token,
		model:   model,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}, nil
}

func (s *Summarizer) ProviderName() string { return providerName }

type summaryRequest struct {
	Inputs     string `json:"inputs"`
	Parameters struct {
		MaxLength int  `json:"max_length"`
		MinLength int  `json:"min_length"`
		DoSample  bool `json:"do_sample"`
	} `json:"parameters"`
}

type summaryResult struct {
	SummaryText string `json:"summary_text"`
}

func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	chunks := splitChunks(text, chunkSize)
	summaries := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		summary, err := s.summarizeChunk(ctx, chunk)
		if err != nil {
			return "", err
		}
		summaries = append(summaries, summary)
	}
	return strings.Join(summaries, " "), nil
}

func (s *Summarizer) summarizeChunk(ctx context.Context, chunk string) (string, error) {
	reqBody := summaryRequest{Inputs: chunk}
	reqBody.Parameters.MaxLength = 150
	reqBody.Parameters.MinLength = 30

	payload, err := jsoncodec.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("encode huggingface request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+s.model, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build huggingface request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call huggingface: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read huggingface response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("huggingface returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var results []summaryResult
	if err := jsoncodec.Unmarshal(body, &results); err != nil {
		return "", fmt.Errorf("decode huggingface response: %w", err)
	}
	if len(results) == 0 {
		return "", errors.New("vidscribe: huggingface response contained no summaries")
	}
	return strings.TrimSpace(results[0].SummaryText), nil
}

// splitChunks breaks the text on line boundaries so no chunk exceeds the
// budget. A single oversized line becomes its own chunk.
func splitChunks(text string, budget int) []string {
	if len(text) <= budget {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if current.Len() > 0 && current.Len()+len(line)+1 > budget {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimSpace(current.String()))
	}
	return chunks
}

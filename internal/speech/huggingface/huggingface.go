// Package huggingface transcribes media through the Hugging Face hosted
// inference API using an automatic-speech-recognition model.
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
	"github.com/vidscribe/vidscribe/internal/speech"
)

const providerName = "huggingface"

const (
	defaultBaseURL = "https://api-inference.huggingface.co/models/"
	defaultModel   = "openai/whisper-base"
	defaultTimeout = 10 * time.Minute
)

// Register adds the huggingface backend to the registry.
func Register(r *speech.Registry) {
	r.Register(providerName, func(cfg *config.Config) (speech.Recognizer, error) {
		return New(cfg.Providers.HuggingFaceToken, cfg.Providers.HuggingFaceSpeechModel)
	})
}

// Recognizer posts media to the inference API.
type Recognizer struct {
	token   string
	model   string
	baseURL string
	client  *http.Client
}

// New returns a recognizer for the given API token and model. The model
// falls back to whisper-base when empty.
func New(token, model string) (*Recognizer, error) {
	if token == "" {
		return nil, errors.New("vidscribe: huggingface token is required")
	}
	if model == "" {
		model = defaultModel
	}
	return &Recognizer{
		token:   token,
		model:   model,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}, nil
}

func (r *Recognizer) ProviderName() string { return providerName }

type asrResponse struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

// Transcribe sends the raw media bytes; language hints are not supported by
// the hosted ASR endpoint and are ignored.
func (r *Recognizer) Transcribe(ctx context.Context, media []byte, _ string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+r.model, bytes.NewReader(media))
	if err != nil {
		return "", fmt.Errorf("build huggingface request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+r.token)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call huggingface: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("read huggingface response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("huggingface returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded asrResponse
	if err := jsoncodec.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode huggingface response: %w", err)
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("huggingface model error: %s", decoded.Error)
	}
	return strings.TrimSpace(decoded.Text), nil
}

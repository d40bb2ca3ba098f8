// Package fastwhisper transcribes media through a faster-whisper HTTP
// service. The service accepts raw media bytes and returns the transcript as
// JSON.
package fastwhisper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vidscribe/vidscribe/internal/config"
	"github.com/vidscribe/vidscribe/internal/jsoncodec"
	"github.com/vidscribe/vidscribe/internal/speech"
)

const providerName = "fastwhisper"

const defaultTimeout = 10 * time.Minute

// Register adds the fastwhisper backend to the registry.
func Register(r *speech.Registry) {
	r.Register(providerName, func(cfg *config.Config) (speech.Recognizer, error) {
		return New(cfg.Providers.FastWhisperURL)
	})
}

// Recognizer posts media to the transcription endpoint.
type Recognizer struct {
	baseURL string
	client  *http.Client
}

// New validates the service URL and returns the recognizer.
func New(baseURL string) (*Recognizer, error) {
	if baseURL == "" {
		return nil, errors.New("vidscribe: fastwhisper URL is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse fastwhisper URL: %w", err)
	}
	return &Recognizer{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}, nil
}

func (r *Recognizer) ProviderName() string { return providerName }

type transcribeResponse struct {
	Text string `json:"text"`
}

func (r *Recognizer) Transcribe(ctx context.Context, media []byte, language string) (string, error) {
	endpoint := r.baseURL + "/transcribe"
	if language != "" {
		endpoint += "?language=" + url.QueryEscape(language)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(media))
	if err != nil {
		return "", fmt.Errorf("build fastwhisper request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("call fastwhisper: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("read fastwhisper response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fastwhisper returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded transcribeResponse
	if err := jsoncodec.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("decode fastwhisper response: %w", err)
	}
	return strings.TrimSpace(decoded.Text), nil
}

package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vidscribe/vidscribe/internal/config"
	"github.com/vidscribe/vidscribe/internal/jsoncodec"
	"github.com/vidscribe/vidscribe/internal/logging"
)

func TestWebhookNotifierPostsJSON(t *testing.T) {
	var gotBody []byte
	var gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		gotContentType = req.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(req.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n, err := NewWebhookNotifier(server.URL)
	require.NoError(t, err)

	err = n.Notify(context.Background(), Notification{
		VideoID: "vid-1",
		UserID:  "user-1",
		Outcome: "completed",
		At:      time.Now().UTC(),
	})
	require.NoError(t, err)

	assert.Equal(t, "application/json", gotContentType)

	var decoded Notification
	require.NoError(t, jsoncodec.Unmarshal(gotBody, &decoded))
	assert.Equal(t, "vid-1", decoded.VideoID)
	assert.Equal(t, "completed", decoded.Outcome)
}

func TestWebhookNotifierRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n, err := NewWebhookNotifier(server.URL)
	require.NoError(t, err)

	err = n.Notify(context.Background(), Notification{VideoID: "vid-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestNewSelectsChannel(t *testing.T) {
	cfg := config.Default()

	n, err := New(cfg, logging.Nop())
	require.NoError(t, err)
	assert.IsType(t, &LogNotifier{}, n)

	cfg.Notify.Channel = "webhook"
	cfg.Notify.WebhookURL = "http://localhost/hook"
	n, err = New(cfg, logging.Nop())
	require.NoError(t, err)
	assert.IsType(t, &WebhookNotifier{}, n)

	cfg.Notify.Channel = "carrier-pigeon"
	_, err = New(cfg, logging.Nop())
	require.Error(t, err)
}

func TestLogNotifierNeverFails(t *testing.T) {
	n := NewLogNotifier(logging.Nop())
	require.NoError(t, n.Notify(context.Background(), Notification{VideoID: "vid-1", Outcome: "failed"}))
}

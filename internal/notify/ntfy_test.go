package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nomadops/nomadmon/internal/model"
)

func TestNtfyNotifier_Send(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	var got *http.Request
	var body string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewNtfyNotifier(server.URL, "secret-token", "myserver", logger)

	err := notifier.Send(context.Background(), model.Notification{
		Title:    "CRITICAL ALERT",
		Message:  "CPU Overheat: 85.0C",
		Priority: 5,
		Tags:     "fire,warning",
	})
	require.NoError(t, err)

	require.Equal(t, http.MethodPost, got.Method)
	require.Equal(t, "CRITICAL ALERT | myserver", got.Header.Get("Title"))
	require.Equal(t, "5", got.Header.Get("Priority"))
	require.Equal(t, "fire,warning", got.Header.Get("Tags"))
	require.Equal(t, "Bearer secret-token", got.Header.Get("Authorization"))
	require.Equal(t, "CPU Overheat: 85.0C", body)
}

func TestNtfyNotifier_NoToken(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewNtfyNotifier(server.URL, "", "host", logger)
	err := notifier.Send(context.Background(), model.Notification{
		Title:    "Daily Status",
		Message:  "all good",
		Priority: 3,
	})
	require.NoError(t, err)
	require.Empty(t, auth)
}

func TestNtfyNotifier_ServerError(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte("forbidden"))
	}))
	defer server.Close()

	notifier := NewNtfyNotifier(server.URL, "", "host", logger)
	err := notifier.Send(context.Background(), model.Notification{
		Title:    "STORAGE ALERT",
		Message:  "Low Space on /: 95%",
		Priority: 4,
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "403")
}

func TestNtfyNotifier_TitleSanitized(t *testing.T) {
	logger, _ := zap.NewDevelopment()

	var title, priority string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		title = r.Header.Get("Title")
		priority = r.Header.Get("Priority")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewNtfyNotifier(server.URL, "", "host", logger)
	err := notifier.Send(context.Background(), model.Notification{
		Title:    "⚠️ ALERT ⚠️",
		Message:  "body",
		Priority: 9,
	})
	require.NoError(t, err)
	require.Equal(t, "ALERT | host", title)
	require.Equal(t, "5", priority)
}

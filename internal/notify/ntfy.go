package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nomadops/nomadmon/internal/model"
)

const sendTimeout = 15 * time.Second

// Notifier delivers a notification to the push endpoint. Safe for
// concurrent use; each send is independent.
type Notifier interface {
	Send(ctx context.Context, n model.Notification) error
}

// NtfyNotifier publishes notifications to an ntfy topic URL. The body
// is the message text; title, priority and tags travel as headers.
type NtfyNotifier struct {
	logger   *zap.Logger
	client   *http.Client
	url      string
	token    string
	hostname string
}

// NewNtfyNotifier creates a notifier for the given topic URL
func NewNtfyNotifier(url, token, hostname string, logger *zap.Logger) *NtfyNotifier {
	return &NtfyNotifier{
		logger:   logger.Named("ntfy"),
		client:   &http.Client{Timeout: sendTimeout},
		url:      url,
		token:    token,
		hostname: hostname,
	}
}

// Send posts the notification. A non-2xx response or transport error
// is returned to the caller; delivery is never retried here.
func (n *NtfyNotifier) Send(ctx context.Context, notif model.Notification) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url,
		strings.NewReader(notif.Message))
	if err != nil {
		return fmt.Errorf("failed to build ntfy request: %w", err)
	}

	// ntfy headers must be ASCII; the tags carry the emojis instead
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", asciiTitle(notif.Title)+" | "+n.hostname)
	req.Header.Set("Priority", strconv.Itoa(clampPriority(notif.Priority)))
	if notif.Tags != "" {
		req.Header.Set("Tags", notif.Tags)
	}
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ntfy returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	n.logger.Info("Notification sent",
		zap.String("title", notif.Title),
		zap.Int("priority", notif.Priority))
	return nil
}

func asciiTitle(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 0x20 && r < 0x7f {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

func clampPriority(p int) int {
	if p < 1 {
		return 1
	}
	if p > 5 {
		return 5
	}
	return p
}

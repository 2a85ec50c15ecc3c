package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"pipcast/internal/config"
)

const userAgent = "pipcast/0.1"

// Event classifies a notice.
type Event string

const (
	EventRenderCompleted Event = "render_completed"
	EventRenderPartial   Event = "render_partial"
	EventRenderFailed    Event = "render_failed"
	EventTest            Event = "test"
)

// Notice describes one finished job.
type Notice struct {
	Event   Event
	JobID   string
	Outputs []string
	Failed  []string
	Error   string
}

// Service publishes notices.
type Service interface {
	Publish(ctx context.Context, notice Notice) error
}

// NewService builds an ntfy-backed service, or a no-op one when no topic is
// configured.
func NewService(cfg *config.Config) Service {
	if cfg == nil || strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return noopService{}
	}
	return &ntfyService{
		endpoint:      strings.TrimSpace(cfg.Notifications.NtfyTopic),
		client:        &http.Client{Timeout: cfg.NotificationTimeout()},
		notifySuccess: cfg.Notifications.NotifySuccess,
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint      string
	client        *http.Client
	notifySuccess bool
}

func (n *ntfyService) Publish(ctx context.Context, notice Notice) error {
	msg, ok := n.format(notice)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func (n *ntfyService) format(notice Notice) (message, bool) {
	job := shortID(notice.JobID)
	switch notice.Event {
	case EventRenderCompleted:
		if !n.notifySuccess {
			return message{}, false
		}
		return message{
			title: "pipcast - Render Complete",
			body:  fmt.Sprintf("Job %s finished: %s", job, strings.Join(notice.Outputs, ", ")),
			tags:  []string{"pipcast", "render", "completed"},
		}, true
	case EventRenderPartial:
		return message{
			title:    "pipcast - Render Partial",
			body:     fmt.Sprintf("Job %s produced %s\nFailed: %s", job, strings.Join(notice.Outputs, ", "), strings.Join(notice.Failed, ", ")),
			tags:     []string{"pipcast", "render", "partial"},
			priority: "high",
		}, true
	case EventRenderFailed:
		body := fmt.Sprintf("Job %s failed", job)
		if notice.Error != "" {
			body += ": " + notice.Error
		}
		return message{
			title:    "pipcast - Render Failed",
			body:     body,
			tags:     []string{"pipcast", "render", "error"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "pipcast - Test",
			body:     "Notification system test",
			tags:     []string{"pipcast", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func (n *ntfyService) send(ctx context.Context, msg message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(msg.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", msg.title)
	req.Header.Set("Tags", strings.Join(msg.tags, ","))
	if msg.priority != "" {
		req.Header.Set("Priority", msg.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Notice) error { return nil }

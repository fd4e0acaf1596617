package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"podscribe/internal/config"
)

const userAgent = "Podscribe/0.1.0"

// Service defines the notification surface exposed to workflow components.
type Service interface {
	NotifyStageCompleted(ctx context.Context, title, stage string) error
	NotifyReviewReady(ctx context.Context, title, documentPath string) error
	NotifyPublished(ctx context.Context, title string, targets []string) error
	NotifyError(ctx context.Context, err error, contextLabel string) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyStageCompleted(ctx context.Context, title, stage string) error {
	title = strings.TrimSpace(title)
	stage = strings.TrimSpace(stage)
	data := payload{
		title:   "Podscribe - Stage Complete",
		message: fmt.Sprintf("%s finished for: %s", stage, title),
		tags:    []string{"podscribe", stage, "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyReviewReady(ctx context.Context, title, documentPath string) error {
	title = strings.TrimSpace(title)
	message := fmt.Sprintf("Ready for review: %s", title)
	if documentPath = strings.TrimSpace(documentPath); documentPath != "" {
		message = fmt.Sprintf("%s\nDocument: %s", message, documentPath)
	}
	data := payload{
		title:    "Podscribe - Review Ready",
		message:  message,
		tags:     []string{"podscribe", "review", "ready"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyPublished(ctx context.Context, title string, targets []string) error {
	title = strings.TrimSpace(title)
	message := fmt.Sprintf("Published: %s", title)
	if len(targets) > 0 {
		message = fmt.Sprintf("%s\nTargets: %s", message, strings.Join(targets, ", "))
	}
	data := payload{
		title:    "Podscribe - Published",
		message:  message,
		tags:     []string{"podscribe", "publish", "completed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyError(ctx context.Context, err error, contextLabel string) error {
	var builder strings.Builder
	builder.WriteString("Error")
	if contextLabel = strings.TrimSpace(contextLabel); contextLabel != "" {
		builder.WriteString(" with ")
		builder.WriteString(contextLabel)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}

	data := payload{
		title:    "Podscribe - Error",
		message:  builder.String(),
		tags:     []string{"podscribe", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Podscribe - Test",
		message:  "Notification system test",
		tags:     []string{"podscribe", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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

func (noopService) NotifyStageCompleted(context.Context, string, string) error { return nil }
func (noopService) NotifyReviewReady(context.Context, string, string) error    { return nil }
func (noopService) NotifyPublished(context.Context, string, []string) error    { return nil }
func (noopService) NotifyError(context.Context, error, string) error           { return nil }
func (noopService) TestNotification(context.Context) error                     { return nil }

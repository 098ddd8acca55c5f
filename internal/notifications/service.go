package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"citetrack/internal/config"
)

const userAgent = "Citetrack/0.1.0"

// Service defines the notification surface exposed to batch and CLI components.
type Service interface {
	NotifyBatchStarted(ctx context.Context, runID string, count int) error
	NotifyBatchCompleted(ctx context.Context, runID string, linked, failed, attention int, duration time.Duration) error
	NotifyAttentionNeeded(ctx context.Context, url string, status string) error
	NotifyError(ctx context.Context, err error, context string) error
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

func (n *ntfyService) NotifyBatchStarted(ctx context.Context, runID string, count int) error {
	data := payload{
		title:   "Citetrack - Batch Started",
		message: fmt.Sprintf("Started processing %d records (run %s)", count, shortRunID(runID)),
		tags:    []string{"citetrack", "batch", "started"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyBatchCompleted(ctx context.Context, runID string, linked, failed, attention int, duration time.Duration) error {
	duration = duration.Round(time.Second)
	if duration < 0 {
		duration = 0
	}
	durationText := duration.String()
	if duration == 0 {
		durationText = "0s"
	}

	var title string
	var message string
	if failed == 0 {
		title = "Citetrack - Batch Complete"
		message = fmt.Sprintf("Batch %s: %d linked in %s", shortRunID(runID), linked, durationText)
	} else {
		title = "Citetrack - Batch Complete (with failures)"
		message = fmt.Sprintf("Batch %s: %d linked, %d failed in %s", shortRunID(runID), linked, failed, durationText)
	}
	if attention > 0 {
		message = fmt.Sprintf("%s\n%d records need attention", message, attention)
	}

	data := payload{
		title:   title,
		message: message,
		tags:    []string{"citetrack", "batch", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyAttentionNeeded(ctx context.Context, url string, status string) error {
	url = strings.TrimSpace(url)
	status = strings.TrimSpace(status)
	data := payload{
		title:   "Citetrack - Attention Needed",
		message: fmt.Sprintf("Record parked in %s: %s", status, url),
		tags:    []string{"citetrack", "attention", "review"},
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
		title:    "Citetrack - Error",
		message:  builder.String(),
		tags:     []string{"citetrack", "error", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Citetrack - Test",
		message:  "Notification system test",
		tags:     []string{"citetrack", "test"},
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

func shortRunID(runID string) string {
	runID = strings.TrimSpace(runID)
	if len(runID) > 8 {
		return runID[:8]
	}
	if runID == "" {
		return "unknown"
	}
	return runID
}

type noopService struct{}

func (noopService) NotifyBatchStarted(context.Context, string, int) error { return nil }
func (noopService) NotifyBatchCompleted(context.Context, string, int, int, int, time.Duration) error {
	return nil
}
func (noopService) NotifyAttentionNeeded(context.Context, string, string) error { return nil }
func (noopService) NotifyError(context.Context, error, string) error            { return nil }
func (noopService) TestNotification(context.Context) error                      { return nil }

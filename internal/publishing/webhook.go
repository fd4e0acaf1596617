package publishing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"podscribe/internal/rendering"
)

// WebhookPublisher announces a published episode to a configured HTTP
// endpoint. The receiving side pulls anything heavier itself; the payload is
// metadata only.
type WebhookPublisher struct {
	URL        string
	httpClient *http.Client
}

// NewWebhookPublisher constructs the webhook target.
func NewWebhookPublisher(url string, timeoutSeconds int) *WebhookPublisher {
	timeout := 30 * time.Second
	if timeoutSeconds > 0 {
		timeout = time.Duration(timeoutSeconds) * time.Second
	}
	return &WebhookPublisher{
		URL:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// WithHTTPClient overrides the HTTP client (used in tests).
func (p *WebhookPublisher) WithHTTPClient(client *http.Client) *WebhookPublisher {
	p.httpClient = client
	return p
}

func (p *WebhookPublisher) Name() string {
	return "webhook"
}

type webhookPayload struct {
	EpisodeID int64    `json:"episode_id"`
	Title     string   `json:"title"`
	ShowName  string   `json:"show_name,omitempty"`
	SourceURL string   `json:"source_url"`
	Languages []string `json:"languages"`
	Cues      int      `json:"cues"`
	Chapters  int      `json:"chapters"`
}

func (p *WebhookPublisher) Publish(ctx context.Context, doc rendering.Document) (string, error) {
	payload, err := json.Marshal(webhookPayload{
		EpisodeID: doc.Episode.ID,
		Title:     doc.Episode.Title,
		ShowName:  doc.Episode.ShowName,
		SourceURL: doc.Episode.SourceURL,
		Languages: doc.Languages,
		Cues:      len(doc.Cues),
		Chapters:  len(doc.Chapters),
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.URL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("webhook returned %s", resp.Status)
	}
	return fmt.Sprintf("delivered to %s", p.URL), nil
}

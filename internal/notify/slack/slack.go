// Package slack sends escalation notifications to Slack via incoming
// webhooks when the severity override routes an intake.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/linnemanlabs/intake/internal/triage"
)

const (
	maxKeywordsShown = 12
	httpTimeout      = 10 * time.Second
)

// Notifier posts escalated decisions to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Notify is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Notify posts a decision to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Notify(ctx context.Context, d *triage.Decision) error {
	if n.webhookURL == "" {
		return nil
	}

	msg := buildMessage(d)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(d *triage.Decision) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(d),
			{"type": "divider"},
			fieldsBlock(d),
			{"type": "divider"},
			keywordsBlock(d),
			{"type": "divider"},
			contextBlock(d),
		},
	}
}

func headerBlock(d *triage.Decision) map[string]any {
	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": fmt.Sprintf("\U0001f534 Intake escalated to %s", d.Destination),
		},
	}
}

func fieldsBlock(d *triage.Decision) map[string]any {
	category := "uncategorized"
	if len(d.MatchedCategories) > 0 {
		category = d.MatchedCategories[0]
	}

	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Category:* %s", category),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Severity:* %s (%d)", d.SeverityBand, d.SeverityScore),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Priority:* %s", d.Priority),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Destination:* %s", d.Destination),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Method:* %s", d.Method),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Industry:* %s", d.Industry),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func keywordsBlock(d *triage.Decision) map[string]any {
	var hits []string
	hits = append(hits, d.MatchedKeywords["severity"]...)
	hits = append(hits, d.MatchedKeywords["taxonomy"]...)
	if len(hits) > maxKeywordsShown {
		hits = hits[:maxKeywordsShown]
	}

	text := "_No keyword matches._"
	if len(hits) > 0 {
		text = fmt.Sprintf("*Matched keywords*\n`%s`", strings.Join(hits, "`, `"))
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": text,
		},
	}
}

func contextBlock(d *triage.Decision) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("intake • decision %s • %s", d.ID, d.CreatedAt.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

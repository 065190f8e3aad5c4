// Package claude implements the triage.Classifier interface on the
// Anthropic API. It is used only for the low-confidence category fallback;
// the deterministic engine never calls it.
package claude

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/intake/internal/triage"
)

const (
	responseTokens = 64

	systemPrompt = `You are an intake classifier. You are given a free-text intake message and a list of category ids with their trigger keywords. Respond with exactly one category id from the list, and nothing else. If none fits, respond with the single word: none.`
)

// Client asks Claude to pick a taxonomy category for intake text.
type Client struct {
	client anthropic.Client
	model  string
}

// New creates a Claude classifier with the given API key and model name.
func New(apiKey, model string) *Client {
	return &Client{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// Classify returns one taxonomy category id for the text, or an error when
// the model declines or answers outside the taxonomy.
func (c *Client) Classify(ctx context.Context, text string, taxonomy []triage.TaxonomyRule) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: responseTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(text, taxonomy))),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude: classify: %w", err)
	}

	var answer string
	for _, block := range msg.Content {
		if block.Type == "text" {
			answer = block.Text
		}
	}

	category, ok := parseCategory(answer, taxonomy)
	if !ok {
		return "", fmt.Errorf("claude: no usable category in response %q", answer)
	}
	return category, nil
}

// buildPrompt lists the taxonomy so the model can only pick from configured
// categories. Keywords are included as hints about each category's scope.
func buildPrompt(text string, taxonomy []triage.TaxonomyRule) string {
	var b strings.Builder
	b.WriteString("Categories:\n")
	for _, rule := range taxonomy {
		fmt.Fprintf(&b, "- %s (keywords: %s)\n", rule.ID, strings.Join(rule.Keywords, ", "))
	}
	b.WriteString("\nIntake message:\n")
	b.WriteString(text)
	return b.String()
}

// parseCategory matches the model's answer against the taxonomy ids,
// tolerating surrounding quotes, punctuation, and case.
func parseCategory(answer string, taxonomy []triage.TaxonomyRule) (string, bool) {
	cleaned := strings.ToLower(strings.Trim(strings.TrimSpace(answer), "\"'`.,:"))
	if cleaned == "" || cleaned == "none" {
		return "", false
	}
	for _, rule := range taxonomy {
		if strings.ToLower(rule.ID) == cleaned {
			return rule.ID, true
		}
	}
	return "", false
}

// Package llm suggests canonical violation labels for phrases the normalizer
// could not place. Suggestions are advisory; callers never rewrite records
// with them.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"vipham/internal/domain"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

const (
	maxPhrases          = 20
	maxPhraseRunes      = 200
	minConfidence       = 0.6
	suggestionMaxTokens = 1024
)

type LLMUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

func (u LLMUsage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

// Suggestion maps one unrecognized phrase to a canonical label.
type Suggestion struct {
	Phrase     string
	Label      string
	Confidence float64
}

type suggestedItem struct {
	Index      int     `json:"index"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

type Suggester struct {
	client anthropic.Client
	model  string
}

func NewSuggester(apiKey, model string, httpClient *http.Client) *Suggester {
	if model == "" {
		model = defaultAnthropicModel
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}
	return &Suggester{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

// Suggest returns a label for each phrase the model placed with enough
// confidence. Phrases it could not place are omitted.
func (s *Suggester) Suggest(ctx context.Context, phrases []string) ([]Suggestion, LLMUsage, error) {
	phrases = dedupePhrases(phrases)
	if len(phrases) == 0 {
		return nil, LLMUsage{}, nil
	}
	systemPrompt, userPrompt := buildSuggestPrompts(phrases)

	message, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: suggestionMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		log.Printf("llm anthropic error: %v", err)
		return nil, LLMUsage{}, fmt.Errorf("Anthropic API error: %w", err)
	}
	usage := LLMUsage{
		InputTokens:              message.Usage.InputTokens,
		OutputTokens:             message.Usage.OutputTokens,
		CacheCreationInputTokens: message.Usage.CacheCreationInputTokens,
		CacheReadInputTokens:     message.Usage.CacheReadInputTokens,
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Printf("llm suggest phrases=%d response_size=%d tokens_in=%d tokens_out=%d", len(phrases), len(block.Text), usage.InputTokens, usage.OutputTokens)
			suggestions, err := parseSuggestResponse(block.Text, phrases)
			return suggestions, usage, err
		}
	}
	return nil, usage, fmt.Errorf("no text content in Anthropic response")
}

func dedupePhrases(phrases []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
		if len(out) == maxPhrases {
			break
		}
	}
	return out
}

func buildSuggestPrompts(phrases []string) (string, string) {
	var sys strings.Builder
	sys.WriteString("You classify school discipline notes written in Vietnamese.\n")
	sys.WriteString("Each note describes one student violation. Map it to exactly one of these labels, copied verbatim:\n")
	for _, label := range domain.CanonicalViolations() {
		fmt.Fprintf(&sys, "- %s\n", label)
	}
	sys.WriteString("If a note fits none of them, use an empty label.\n")
	sys.WriteString(`Respond with a JSON array only: [{"index": 1, "label": "...", "confidence": 0.0}]`)
	sys.WriteString("\nconfidence is between 0 and 1.")

	var user strings.Builder
	user.WriteString("Notes:\n")
	for i, p := range phrases {
		fmt.Fprintf(&user, "%d. %s\n", i+1, truncateRunes(p, maxPhraseRunes))
	}
	return sys.String(), user.String()
}

func parseSuggestResponse(responseText string, phrases []string) ([]Suggestion, error) {
	responseText = strings.TrimSpace(responseText)
	responseText = strings.TrimPrefix(responseText, "```json")
	responseText = strings.TrimPrefix(responseText, "```")
	responseText = strings.TrimSuffix(responseText, "```")
	responseText = strings.TrimSpace(responseText)

	var items []suggestedItem
	if err := json.Unmarshal([]byte(responseText), &items); err != nil {
		truncated := responseText
		if len(truncated) > 512 {
			truncated = truncated[:512] + fmt.Sprintf("... [truncated, total_length=%d]", len(responseText))
		}
		return nil, fmt.Errorf("parsing suggestion response: %w (truncated response: %s)", err, truncated)
	}

	used := make(map[int]bool)
	var out []Suggestion
	for _, it := range items {
		if it.Index < 1 || it.Index > len(phrases) || used[it.Index] {
			continue
		}
		label := strings.TrimSpace(it.Label)
		if !domain.IsCanonicalViolation(label) || it.Confidence < minConfidence {
			continue
		}
		used[it.Index] = true
		out = append(out, Suggestion{Phrase: phrases[it.Index-1], Label: label, Confidence: it.Confidence})
	}
	return out, nil
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit]) + "..."
}

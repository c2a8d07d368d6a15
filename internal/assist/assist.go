// Package assist drafts review guidance with Claude: a short note for each
// disputed field and suggested field matches for unmatched intake lines.
// The feature is optional; resolution never depends on it.
package assist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/docufill/fieldcalc/internal/model"
	"github.com/docufill/fieldcalc/pkg/anthropic"
)

// reviewNotePrompt is the system prompt for drafting reviewer notes.
const reviewNotePrompt = `You are assisting a human who reviews auto-filled numeric form fields. A field lands in review when its calculation formulas produce values that disagree beyond tolerance. Given the field, the formulas involved and the values each produced, explain in one short paragraph what disagrees, by how much, and which input is most likely wrong. Plain text only, no markdown, no JSON.`

// matchPrompt is the system prompt for suggesting field matches.
const matchPrompt = `You are assisting with OCR form intake. Given text lines that could not be matched to any form field, and the list of known fields with their keywords, suggest which field each line most likely holds. Respond with ONLY valid JSON, no other text:
{"matches": [{"line": "<the exact input line>", "field": "<field key, or empty string if no good match>"}]}`

// Assist makes one-off Claude calls on behalf of reviewers. A nil *Assist is
// valid and permanently disabled.
type Assist struct {
	ai        anthropic.Client
	model     string
	maxTokens int64
}

// New creates an Assist, or nil when no client is configured.
func New(ai anthropic.Client, model string, maxTokens int64) *Assist {
	if ai == nil {
		return nil
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &Assist{ai: ai, model: model, maxTokens: maxTokens}
}

// Enabled reports whether assist calls can be made.
func (a *Assist) Enabled() bool {
	return a != nil && a.ai != nil
}

// NoteForReview drafts a one-paragraph note for a disputed field.
func (a *Assist) NoteForReview(ctx context.Context, item model.ReviewItem) (string, error) {
	if !a.Enabled() {
		return "", eris.New("assist: not configured")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Field: %s\nReason: %s\n\nCandidates:\n", item.FieldKey, item.Reason)
	for _, c := range item.Candidates {
		fmt.Fprintf(&b, "- group %s (priority %d) produced %v\n", c.GroupID, c.Priority, c.Value)
	}

	resp, err := a.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(reviewNotePrompt),
		Messages:  []anthropic.Message{{Role: "user", Content: b.String()}},
	})
	if err != nil {
		return "", eris.Wrap(err, "assist: review note request")
	}
	resp.Usage.LogCost(a.model, "review_note")

	note := strings.TrimSpace(extractText(resp))
	if note == "" {
		return "", eris.New("assist: empty claude response")
	}
	return note, nil
}

// matchResponse is the wire shape of Claude's match suggestions.
type matchResponse struct {
	Matches []struct {
		Line  string `json:"line"`
		Field string `json:"field"`
	} `json:"matches"`
}

// SuggestMatches proposes a field key for each unmatched intake line.
// Suggestions naming unknown fields are dropped; lines without a good match
// are omitted from the result.
func (a *Assist) SuggestMatches(ctx context.Context, lines []string, fields []model.FieldDef) (map[string]string, error) {
	if !a.Enabled() {
		return nil, eris.New("assist: not configured")
	}
	if len(lines) == 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString("Known fields:\n")
	for _, f := range fields {
		fmt.Fprintf(&b, "- %s (label: %q, keywords: %s)\n", f.Key, f.Label, strings.Join(f.Keywords, ", "))
	}
	b.WriteString("\nUnmatched lines:\n")
	for _, line := range lines {
		fmt.Fprintf(&b, "- %s\n", line)
	}

	resp, err := a.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    anthropic.BuildCachedSystemBlocks(matchPrompt),
		Messages:  []anthropic.Message{{Role: "user", Content: b.String()}},
	})
	if err != nil {
		return nil, eris.Wrap(err, "assist: match request")
	}
	resp.Usage.LogCost(a.model, "match_suggest")

	text := cleanJSON(extractText(resp))
	if text == "" {
		return nil, eris.New("assist: empty claude response")
	}

	var parsed matchResponse
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return nil, eris.Wrap(err, "assist: parse match response")
	}

	known := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		known[f.Key] = struct{}{}
	}

	matches := make(map[string]string)
	for _, m := range parsed.Matches {
		if m.Field == "" {
			continue
		}
		if _, ok := known[m.Field]; !ok {
			zap.L().Warn("assist: suggestion names unknown field",
				zap.String("line", m.Line),
				zap.String("field", m.Field),
			)
			continue
		}
		matches[m.Line] = m.Field
	}
	return matches, nil
}

// extractText concatenates all text content blocks from a message response.
func extractText(resp *anthropic.MessageResponse) string {
	if resp == nil {
		return ""
	}
	var parts []string
	for _, block := range resp.Content {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// cleanJSON attempts to extract a JSON object from text that may contain
// markdown code fences or other wrapping.
func cleanJSON(text string) string {
	text = strings.TrimSpace(text)

	// Strip markdown code fences.
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	// Find first { and last }.
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		text = text[start : end+1]
	}

	return strings.TrimSpace(text)
}

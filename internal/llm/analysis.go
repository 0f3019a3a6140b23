package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"approvalhub/internal/approvals"
)

const analysisSystemPrompt = `You are an assistant that analyzes approval requests. ` +
	`Generate a 1-sentence summary and a risk score from 0-10 (0=low risk, 10=high risk). ` +
	`Return only JSON: {"summary": "...", "risk_score": N}`

// Analyze asks the chat model for a one-sentence summary and a 0-10 risk score.
func (c *Client) Analyze(ctx context.Context, justification string) (approvals.Analysis, error) {
	if strings.TrimSpace(justification) == "" {
		return approvals.Analysis{}, nil
	}
	text := SanitizePromptInput(justification)
	if c != nil && len(c.RedactPatterns) > 0 {
		text = Redact(text, c.RedactPatterns)
	}
	content, err := c.Chat(ctx, []Message{
		{Role: "system", Content: analysisSystemPrompt},
		{Role: "user", Content: "Analyze this approval request: " + text},
	})
	if err != nil {
		return approvals.Analysis{}, err
	}
	return ParseAnalysis(content)
}

// ParseAnalysis decodes the model reply, which may be wrapped in a
// ```json or ``` fence. The risk score is clamped to 0..10.
func ParseAnalysis(content string) (approvals.Analysis, error) {
	raw := unfence(content)
	var out struct {
		Summary   string          `json:"summary"`
		RiskScore json.RawMessage `json:"risk_score"`
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return approvals.Analysis{}, fmt.Errorf("parse analysis: %w", err)
	}
	score, err := parseRiskScore(out.RiskScore)
	if err != nil {
		return approvals.Analysis{}, err
	}
	return approvals.Analysis{Summary: strings.TrimSpace(out.Summary), RiskScore: score}, nil
}

func unfence(s string) string {
	if _, rest, ok := strings.Cut(s, "```json"); ok {
		body, _, _ := strings.Cut(rest, "```")
		return strings.TrimSpace(body)
	}
	if _, rest, ok := strings.Cut(s, "```"); ok {
		body, _, _ := strings.Cut(rest, "```")
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(s)
}

func parseRiskScore(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, fmt.Errorf("parse risk_score: %s", raw)
		}
		i, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, fmt.Errorf("parse risk_score: %w", err)
		}
		n = float64(i)
	}
	return clampScore(int(math.Trunc(n))), nil
}

func clampScore(n int) int {
	switch {
	case n < 0:
		return 0
	case n > 10:
		return 10
	default:
		return n
	}
}

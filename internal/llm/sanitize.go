package llm

import (
	"regexp"
	"strings"
	"unicode"
)

// maxPromptRunes caps how much of a justification reaches the chat model.
const maxPromptRunes = 4000

// Redact replaces every match of the operator supplied patterns with
// [REDACTED]. Invalid patterns are skipped.
func Redact(input string, patterns []string) string {
	out := input
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			continue
		}
		out = re.ReplaceAllString(out, "[REDACTED]")
	}
	return strings.TrimSpace(out)
}

// personalData is always stripped from justifications before they leave the
// service: email addresses and card or account numbers.
var personalData = []*regexp.Regexp{
	regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`),
	regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`),
}

// steeringPatterns match text aimed at the model rather than the approver:
// instruction overrides and attempts to dictate the summary or risk score.
var steeringPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(ignore|disregard|forget)\s+(all\s+)?(previous|prior|above)(\s+instructions)?`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+a`),
	regexp.MustCompile(`(?i)(new|system)\s+instructions?\s*:`),
	regexp.MustCompile(`(?i)risk[_\s-]*score\s*(is|=|:|should\s+be|of)\s*-?\d+`),
	regexp.MustCompile(`(?i)(rate|mark|score|classify)\s+(this|it|me)\s+(as\s+)?(low|no|zero)[\s-]*risk`),
	regexp.MustCompile(`(?i)auto[\s-]*approve|approve\s+without\s+review`),
	regexp.MustCompile(`<\|im_(start|end)\|>`),
}

// SanitizePromptInput prepares a justification for the analysis prompt.
// Control characters are dropped, personal data is redacted, steering text
// is filtered, code fences are defused so the text cannot pose as a fenced
// reply, and the result is capped at maxPromptRunes.
func SanitizePromptInput(input string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, input)

	for _, re := range personalData {
		cleaned = re.ReplaceAllString(cleaned, "[REDACTED]")
	}
	for _, re := range steeringPatterns {
		cleaned = re.ReplaceAllString(cleaned, "[FILTERED]")
	}
	cleaned = strings.ReplaceAll(cleaned, "```", "'''")

	if r := []rune(cleaned); len(r) > maxPromptRunes {
		cleaned = string(r[:maxPromptRunes])
	}
	return cleaned
}

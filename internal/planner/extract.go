package planner

import (
	"fmt"
	"strings"
)

// Delimiters the model is instructed to wrap its final enhanced prompt
// in. Everything between them, trimmed, becomes the stored prompt.
const (
	planOpen  = "<<<PLAN>>>"
	planClose = "<<<END PLAN>>>"
)

// ExtractPrompt pulls the enhanced prompt out of the model's final
// text. The second return reports whether a delimited block was found;
// when it is false the returned prompt wraps the raw text in a fixed
// template so a usable prompt is always produced.
func ExtractPrompt(raw string) (string, bool) {
	open := strings.Index(raw, planOpen)
	if open >= 0 {
		rest := raw[open+len(planOpen):]
		if close := strings.Index(rest, planClose); close >= 0 {
			prompt := strings.TrimSpace(rest[:close])
			if prompt != "" {
				return prompt, true
			}
		}
	}
	return fallbackPrompt(raw), false
}

// fallbackPrompt builds a prompt from undelimited model output.
func fallbackPrompt(raw string) string {
	return fmt.Sprintf(
		"Use the following planning notes to assist with the upcoming week:\n\n%s",
		strings.TrimSpace(raw),
	)
}

package assistant

import (
	"regexp"
	"strings"
)

// A directive looks like [QUERY: "SELECT ..."], marker case-insensitive,
// payload delimited by matching single or double quotes and allowed to
// span newlines.
var directiveRe = regexp.MustCompile(`(?is)\[\s*query:\s*(?:"(.+?)"|'(.+?)')\s*\]`)

// ExtractQuery returns the payload of the first directive found in model
// output, whitespace-trimmed. Later directives in the same reply are
// ignored. ok is false when the reply carries no directive, which makes
// the reply the final answer.
func ExtractQuery(text string) (query string, ok bool) {
	m := directiveRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	payload := m[1]
	if payload == "" {
		payload = m[2]
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", false
	}
	return payload, true
}

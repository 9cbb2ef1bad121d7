// Package postprocess tidies model replies before they are written as a
// subtitle line.
package postprocess

import (
	"regexp"
	"strings"
)

// Clean strips reasoning blocks, leading "Translation:" style labels and a
// single pair of wrapping quotes. The result is trimmed.
func Clean(reply string) string {
	reply = stripReasoning(reply)
	reply = stripLabel(reply)
	reply = unquote(reply)
	return strings.TrimSpace(reply)
}

// SingleLine folds any line breaks inside a reply into single spaces so one
// input line always maps to one output line.
func SingleLine(reply string) string {
	if !strings.ContainsAny(reply, "\r\n") {
		return reply
	}
	fields := strings.FieldsFunc(reply, func(r rune) bool { return r == '\n' || r == '\r' })
	parts := fields[:0]
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			parts = append(parts, f)
		}
	}
	return strings.Join(parts, " ")
}

// RE2 has no backreferences, so each tag pair is spelled out.
var reasoningRe = regexp.MustCompile(
	`(?is)<think>.*?</think>|<thinking>.*?</thinking>|<reasoning>.*?</reasoning>`,
)

// An opening tag with no close means the reply was cut off mid-thought.
var openReasoningRe = regexp.MustCompile(`(?is)(?:<think>|<thinking>|<reasoning>).*$`)

func stripReasoning(reply string) string {
	reply = reasoningRe.ReplaceAllString(reply, "")
	reply = openReasoningRe.ReplaceAllString(reply, "")
	return strings.TrimSpace(reply)
}

// labelPatterns are anchored at the start and require a colon (ASCII or
// fullwidth) so ordinary dialogue is left alone.
var labelPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(?:sure|certainly|of course)[,.!]?\s*here(?:'s| is)(?: the)? (?:translated |subtitle )?(?:translation|line|text)\s*[:：]`),
	regexp.MustCompile(`(?i)^here(?:'s| is)(?: the)? (?:translated |subtitle )?(?:translation|line|text)\s*[:：]`),
	regexp.MustCompile(`(?i)^(?:the )?(?:translation|translated (?:text|line))\s*[:：]`),
	regexp.MustCompile(`^(?:译文|翻译|中文)\s*[:：]`),
}

func stripLabel(reply string) string {
	for _, re := range labelPatterns {
		if loc := re.FindStringIndex(reply); loc != nil {
			return strings.TrimSpace(reply[loc[1]:])
		}
	}
	return reply
}

var quotePairs = map[rune]rune{
	'"':      '"',
	'\'':     '\'',
	'\u00AB': '\u00BB',
	'\u201C': '\u201D',
	'\u2018': '\u2019',
	'\u300C': '\u300D',
	'\u300E': '\u300F',
}

// unquote removes one matching pair of outer quotes, but only when the
// opening quote does not reappear inside; "a" and "b" stays as is.
func unquote(reply string) string {
	runes := []rune(reply)
	n := len(runes)
	if n < 2 {
		return reply
	}
	closing, ok := quotePairs[runes[0]]
	if !ok || runes[n-1] != closing {
		return reply
	}
	inner := runes[1 : n-1]
	for _, r := range inner {
		if r == closing || (r == runes[0] && runes[0] != closing) {
			return reply
		}
	}
	return strings.TrimSpace(string(inner))
}

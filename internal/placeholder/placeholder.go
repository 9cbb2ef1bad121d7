// Package placeholder shields subtitle markup from the model. HTML-style
// tags (<i>, </font>) and ASS override blocks ({\an8}, {\i1}) are swapped
// for numbered tokens [T0], [T1], … before a line is sent and put back
// once the reply arrives.
package placeholder

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var (
	// {\an8}, {\pos(10,20)\c&HFFFFFF&}
	reOverride = regexp.MustCompile(`\{\\[^{}]*\}`)

	// <i>, </i>, <font color="#ff0">, <br/>
	reTag = regexp.MustCompile(`</?[A-Za-z][^<>]*>`)

	reToken = regexp.MustCompile(`\[T(\d+)\]`)
)

// Marker is one piece of markup taken out of a line.
type Marker struct {
	Text string
	// Leading is set when nothing but other markup or spaces precedes the
	// marker in the source line.
	Leading bool
}

// Protect replaces markup in line with [Tn] tokens in order of appearance.
// A line without markup is returned unchanged with a nil slice.
func Protect(line string) (string, []Marker) {
	type span struct{ start, end int }

	var spans []span
	for _, re := range []*regexp.Regexp{reOverride, reTag} {
		for _, loc := range re.FindAllStringIndex(line, -1) {
			spans = append(spans, span{loc[0], loc[1]})
		}
	}
	if len(spans) == 0 {
		return line, nil
	}
	slices.SortFunc(spans, func(a, b span) int { return a.start - b.start })

	var (
		b       strings.Builder
		markers []Marker
		pos     int
		leading = true
	)
	for _, sp := range spans {
		if sp.start < pos {
			continue // nested inside a previous match
		}
		gap := line[pos:sp.start]
		if strings.TrimSpace(gap) != "" {
			leading = false
		}
		b.WriteString(gap)
		b.WriteString(token(len(markers)))
		markers = append(markers, Marker{Text: line[sp.start:sp.end], Leading: leading})
		pos = sp.end
	}
	b.WriteString(line[pos:])
	return b.String(), markers
}

// Restore swaps tokens in reply back for their markup. Tokens the model
// dropped are reattached: leading markers in front, the rest at the end.
// Tokens with unknown indices are left as they are.
func Restore(reply string, markers []Marker) string {
	if len(markers) == 0 {
		return reply
	}
	seen := make([]bool, len(markers))
	out := reToken.ReplaceAllStringFunc(reply, func(match string) string {
		idx, err := strconv.Atoi(reToken.FindStringSubmatch(match)[1])
		if err != nil || idx >= len(markers) || seen[idx] {
			return match
		}
		seen[idx] = true
		return markers[idx].Text
	})

	var head, tail strings.Builder
	for i, m := range markers {
		if seen[i] {
			continue
		}
		if m.Leading {
			head.WriteString(m.Text)
		} else {
			tail.WriteString(m.Text)
		}
	}
	return head.String() + out + tail.String()
}

// Missing reports the indices of markers whose token is absent from reply.
func Missing(reply string, markers []Marker) []int {
	var missing []int
	for i := range markers {
		if !strings.Contains(reply, token(i)) {
			missing = append(missing, i)
		}
	}
	return missing
}

// InstructionHint is appended to the system prompt when tag protection is on.
func InstructionHint() string {
	return "Lines may contain tokens such as [T0] or [T1]. Copy every token into your reply unchanged and keep it next to the words it wraps."
}

func token(i int) string {
	return fmt.Sprintf("[T%d]", i)
}

// Package subtitle classifies the physical lines of a timed caption document
// and reads such documents regardless of byte-order mark.
package subtitle

import (
	"regexp"
	"strings"
)

// Kind is the category a single subtitle line falls into.
type Kind int

const (
	// Content is translatable dialogue text.
	Content Kind = iota
	// Blank is an empty or whitespace-only line.
	Blank
	// SequenceIndex is a cue number such as "12".
	SequenceIndex
	// TimestampRange is a cue timing line "HH:MM:SS,mmm --> HH:MM:SS,mmm".
	TimestampRange
)

// timestampRangeRe is anchored to the whole line; surrounding whitespace is allowed.
var timestampRangeRe = regexp.MustCompile(
	`^\s*\d{2}:\d{2}:\d{2},\d{3}\s*-->\s*\d{2}:\d{2}:\d{2},\d{3}\s*$`,
)

// Classify returns the Kind of line. It depends on the text alone.
func Classify(line string) Kind {
	trimmed := strings.TrimSpace(line)
	switch {
	case trimmed == "":
		return Blank
	case isDigits(trimmed):
		return SequenceIndex
	case timestampRangeRe.MatchString(line):
		return TimestampRange
	default:
		return Content
	}
}

// PassThrough reports whether lines of this kind are copied to the output
// unchanged.
func (k Kind) PassThrough() bool {
	switch k {
	case Blank, SequenceIndex, TimestampRange:
		return true
	case Content:
		return false
	default:
		return false
	}
}

func (k Kind) String() string {
	switch k {
	case Content:
		return "content"
	case Blank:
		return "blank"
	case SequenceIndex:
		return "index"
	case TimestampRange:
		return "timestamp"
	default:
		return "unknown"
	}
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// TrimTerminator strips a trailing "\n" or "\r\n" from line.
func TrimTerminator(line string) string {
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r")
}

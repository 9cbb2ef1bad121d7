package subtitle

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"time"
)

// Profile summarizes a subtitle document without translating it.
type Profile struct {
	Lines    int
	Kinds    map[Kind]int
	Duration time.Duration
	// Sample holds up to the requested number of content lines, in order.
	Sample []string
}

// Cues is the number of timestamp ranges, i.e. subtitle blocks.
func (p Profile) Cues() int {
	return p.Kinds[TimestampRange]
}

// ProfileDocument classifies every line of r. Duration is the latest cue
// end time seen. Timestamp lines that fail to parse are still counted.
func ProfileDocument(r io.Reader, sample int) (Profile, error) {
	p := Profile{Kinds: make(map[Kind]int)}
	br := bufio.NewReader(NewReader(r))
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			p.Lines++
			kind := Classify(line)
			p.Kinds[kind]++
			switch kind {
			case TimestampRange:
				if _, end, perr := ParseRange(line); perr == nil && end > p.Duration {
					p.Duration = end
				}
			case Content:
				if len(p.Sample) < sample {
					p.Sample = append(p.Sample, TrimTerminator(line))
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return p, nil
			}
			return p, fmt.Errorf("read line %d: %w", p.Lines+1, err)
		}
	}
}

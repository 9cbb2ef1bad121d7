// Package pipeline translates one subtitle document line by line.
//
// Pass-through lines (blank, sequence index, timestamp range) are copied
// with their original terminator. Every other line becomes a user turn in
// the file's conversation; the reply replaces it in the output. The first
// failed reply aborts the document and leaves what was already written.
package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/valpere/subtran/internal/conversation"
	"github.com/valpere/subtran/internal/placeholder"
	"github.com/valpere/subtran/internal/postprocess"
	"github.com/valpere/subtran/internal/subtitle"
	"github.com/valpere/subtran/internal/translator"
)

// Translator is the part of translator.Client the pipeline needs.
type Translator interface {
	Translate(ctx context.Context, s *conversation.Session) translator.Result
}

// State tracks where the pipeline is in a document.
type State int

const (
	StateIdle State = iota
	StateReading
	StateCopyingLine
	StateTranslating
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateCopyingLine:
		return "copying"
	case StateTranslating:
		return "translating"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further lines will be processed.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}

// Config controls a Pipeline.
type Config struct {
	// MaxTurns bounds the retained transcript; see conversation.Session.Trim.
	MaxTurns int
	// ProtectTags swaps subtitle markup for tokens before sending a line.
	ProtectTags bool
}

// LineEvent describes one translated content line.
type LineEvent struct {
	Line        int // 1-based input line number
	Content     int // 1-based content line counter
	Source      string
	Translation string
	// Dropped counts protected markers the reply lost; Restore reattached them.
	Dropped int
	Result  translator.Result
}

// Observer receives progress from a running pipeline. Either func may be nil.
type Observer struct {
	OnTranslated func(LineEvent)
	OnFailed     func(LineEvent)
}

// Stats summarizes a Run.
type Stats struct {
	Lines        int
	ContentLines int
	Translated   int
	State        State
}

// AbortError is returned when a content line could not be translated.
type AbortError struct {
	Line    int
	Failure *translator.Failure
	Message string
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

func (e *AbortError) Unwrap() error {
	if e.Failure == nil {
		return nil
	}
	return e.Failure
}

// Pipeline processes a single document with its own session.
type Pipeline struct {
	client   Translator
	session  *conversation.Session
	cfg      Config
	observer Observer
	state    State
}

// New returns a pipeline that records its exchanges in session. A negative
// MaxTurns is treated as zero.
func New(client Translator, session *conversation.Session, cfg Config, observer Observer) *Pipeline {
	if cfg.MaxTurns < 0 {
		cfg.MaxTurns = 0
	}
	return &Pipeline{
		client:   client,
		session:  session,
		cfg:      cfg,
		observer: observer,
		state:    StateIdle,
	}
}

// State returns the current state.
func (p *Pipeline) State() State {
	return p.state
}

// Run reads in until EOF, writing one output line per input line. Output is
// flushed on every return path. A translation failure yields *AbortError;
// read and write errors are returned wrapped. A pipeline runs once; calls
// after it reached a terminal state fail.
func (p *Pipeline) Run(ctx context.Context, in io.Reader, out io.Writer) (stats Stats, err error) {
	if p.state.Terminal() {
		return Stats{State: p.state}, fmt.Errorf("pipeline already %s", p.state)
	}
	r := bufio.NewReader(in)
	w := bufio.NewWriter(out)
	defer func() {
		if flushErr := w.Flush(); flushErr != nil && err == nil {
			err = fmt.Errorf("flush output: %w", flushErr)
			p.state = StateAborted
		}
		stats.State = p.state
	}()

	for {
		p.state = StateReading
		line, readErr := r.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			// A partial line before an undecodable byte is never translated.
			p.state = StateAborted
			return stats, fmt.Errorf("read line %d: %w", stats.Lines+1, readErr)
		}
		if line == "" && readErr != nil {
			p.state = StateDone
			return stats, nil
		}
		stats.Lines++

		if subtitle.Classify(line).PassThrough() {
			p.state = StateCopyingLine
			if _, err := w.WriteString(line); err != nil {
				p.state = StateAborted
				return stats, fmt.Errorf("write line %d: %w", stats.Lines, err)
			}
		} else {
			p.state = StateTranslating
			stats.ContentLines++
			if err := p.translateLine(ctx, line, w, &stats); err != nil {
				p.state = StateAborted
				return stats, err
			}
		}

		if readErr != nil {
			p.state = StateDone
			return stats, nil
		}
	}
}

func (p *Pipeline) translateLine(ctx context.Context, line string, w *bufio.Writer, stats *Stats) error {
	source := subtitle.TrimTerminator(line)

	text := source
	var markers []placeholder.Marker
	if p.cfg.ProtectTags {
		text, markers = placeholder.Protect(source)
	}

	p.session.AppendUser(text)
	res := p.client.Translate(ctx, p.session)
	event := LineEvent{Line: stats.Lines, Content: stats.ContentLines, Source: source, Result: res}

	if !res.OK() {
		event.Translation = p.session.LastContent()
		if p.observer.OnFailed != nil {
			p.observer.OnFailed(event)
		}
		return &AbortError{Line: stats.Lines, Failure: res.Failure, Message: p.session.LastContent()}
	}

	translation := p.session.LastContent()
	if len(markers) > 0 {
		event.Dropped = len(placeholder.Missing(translation, markers))
		translation = placeholder.Restore(translation, markers)
	}
	translation = postprocess.SingleLine(translation)

	if _, err := w.WriteString(translation + "\n"); err != nil {
		return fmt.Errorf("write line %d: %w", stats.Lines, err)
	}
	stats.Translated++
	p.session.Trim(p.cfg.MaxTurns)

	event.Translation = translation
	if p.observer.OnTranslated != nil {
		p.observer.OnTranslated(event)
	}
	return nil
}

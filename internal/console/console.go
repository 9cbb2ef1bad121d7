// Package console prints human-facing progress for a translation run.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
)

var (
	colorAccent = lipgloss.Color("12")  // bright blue
	colorOK     = lipgloss.Color("10")  // bright green
	colorWarn   = lipgloss.Color("11")  // bright yellow
	colorError  = lipgloss.Color("9")   // bright red
	colorDim    = lipgloss.Color("240") // gray

	styleBanner = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	styleOK     = lipgloss.NewStyle().Bold(true).Foreground(colorOK)
	styleWarn   = lipgloss.NewStyle().Foreground(colorWarn)
	styleError  = lipgloss.NewStyle().Bold(true).Foreground(colorError)
	styleDim    = lipgloss.NewStyle().Foreground(colorDim)
	styleTarget = lipgloss.NewStyle().Foreground(colorOK)
)

// Console writes progress lines. It is safe for use by the heartbeat
// goroutine and the runner at the same time.
type Console struct {
	mu       sync.Mutex
	w        io.Writer
	color    bool
	maxWidth int
	quiet    bool
}

// Option customizes a Console.
type Option func(*Console)

// WithColor forces colour on or off.
func WithColor(on bool) Option {
	return func(c *Console) { c.color = on }
}

// WithMaxWidth truncates source and target text to width display columns.
// Zero disables truncation.
func WithMaxWidth(width int) Option {
	return func(c *Console) { c.maxWidth = width }
}

// Quiet suppresses per-line output; banners and summaries are kept.
func Quiet() Option {
	return func(c *Console) { c.quiet = true }
}

// New returns a console writing to w. Colour is on when w is a terminal.
func New(w io.Writer, opts ...Option) *Console {
	c := &Console{w: w, color: IsTerminal(w), maxWidth: 60}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// FileStart announces a file about to be translated.
func (c *Console) FileStart(index, total int, rel string) {
	c.printf("%s %s\n", c.paint(styleBanner, fmt.Sprintf("[%d/%d]", index, total)), c.paint(styleBanner, rel))
}

// Line reports one translated content line.
func (c *Console) Line(content int, source, translation string) {
	if c.quiet {
		return
	}
	c.printf("  %s %s\n  %s %s\n",
		c.paint(styleDim, fmt.Sprintf("%5d", content)),
		c.paint(styleDim, c.fit(source)),
		strings.Repeat(" ", 5),
		c.paint(styleTarget, c.fit(translation)))
}

// FileDone reports a completed file.
func (c *Console) FileDone(rel string, translated int, elapsed time.Duration) {
	c.printf("%s %s %s\n", c.paint(styleOK, "done"), rel,
		c.paint(styleDim, fmt.Sprintf("(%d lines, %s)", translated, FormatDuration(elapsed))))
}

// FileFailed reports a file that stopped early.
func (c *Console) FileFailed(rel string, err error) {
	c.printf("%s %s: %v\n", c.paint(styleError, "failed"), rel, err)
}

// Heartbeat prints the elapsed run time.
func (c *Console) Heartbeat(elapsed time.Duration) {
	c.printf("%s\n", c.paint(styleWarn, "… running for "+FormatDuration(elapsed)))
}

// Summary prints the run totals.
func (c *Console) Summary(total, failed int, elapsed time.Duration) {
	status := c.paint(styleOK, "finished")
	if failed > 0 {
		status = c.paint(styleError, "finished with failures")
	}
	c.printf("%s: %d file(s), %d failed, total time %s\n", status, total, failed, FormatDuration(elapsed))
}

// FormatDuration renders d as h:mm:ss.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

func (c *Console) paint(style lipgloss.Style, text string) string {
	if !c.color {
		return text
	}
	return style.Render(text)
}

// fit truncates by display width so CJK text lines up.
func (c *Console) fit(text string) string {
	if c.maxWidth <= 0 || runewidth.StringWidth(text) <= c.maxWidth {
		return text
	}
	return runewidth.Truncate(text, c.maxWidth, "…")
}

func (c *Console) printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}

// Package runner translates a batch of subtitle files one after another.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/valpere/subtran/internal"
	"github.com/valpere/subtran/internal/conversation"
	"github.com/valpere/subtran/internal/heartbeat"
	"github.com/valpere/subtran/internal/logging"
	"github.com/valpere/subtran/internal/pipeline"
	"github.com/valpere/subtran/internal/subtitle"
)

// LockFile is created in the output root while a run is writing to it.
const LockFile = ".subtran.lock"

// Run statuses recorded in the journal.
const (
	StatusDone      = "done"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Journal records runs; *store.Store satisfies it.
type Journal interface {
	CreateRun(ctx context.Context, inputRoot, outputRoot, backend, model string) (string, error)
	RecordFile(ctx context.Context, runID string, res internal.FileResult) error
	RecordLine(ctx context.Context, runID, relPath string, line int, source, translated string, latency time.Duration) error
	FinishRun(ctx context.Context, runID, status string, filesTotal, filesFailed int) error
}

// Reporter shows progress to a person; *console.Console satisfies it.
type Reporter interface {
	FileStart(index, total int, rel string)
	Line(content int, source, translation string)
	FileDone(rel string, translated int, elapsed time.Duration)
	FileFailed(rel string, err error)
	Heartbeat(elapsed time.Duration)
	Summary(total, failed int, elapsed time.Duration)
}

// Config is the per-run configuration.
type Config struct {
	InputRoot         string
	OutputRoot        string
	Backend           string
	Model             string
	SystemPrompt      string
	MaxTurns          int
	ProtectTags       bool
	HeartbeatInterval time.Duration
}

// Summary is the outcome of a Run.
type Summary struct {
	RunID   string
	Files   []internal.FileResult
	Failed  int
	Skipped int
	Elapsed time.Duration
}

// Status is the journal status for the summary.
func (s Summary) Status() string {
	switch {
	case s.Skipped > 0:
		return StatusCancelled
	case s.Failed > 0:
		return StatusFailed
	default:
		return StatusDone
	}
}

// Err reports failed or skipped files as a single error.
func (s Summary) Err() error {
	switch {
	case s.Skipped > 0:
		return fmt.Errorf("run cancelled: %d of %d file(s) not processed, %d failed", s.Skipped, len(s.Files), s.Failed)
	case s.Failed > 0:
		return fmt.Errorf("%d of %d file(s) failed", s.Failed, len(s.Files))
	default:
		return nil
	}
}

type Runner struct {
	client   pipeline.Translator
	cfg      Config
	journal  Journal
	reporter Reporter
	logger   *slog.Logger
}

// Option customizes a Runner.
type Option func(*Runner)

func WithJournal(j Journal) Option {
	return func(r *Runner) { r.journal = j }
}

func WithReporter(rep Reporter) Option {
	return func(r *Runner) { r.reporter = rep }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

func New(client pipeline.Translator, cfg Config, opts ...Option) *Runner {
	r := &Runner{
		client:   client,
		cfg:      cfg,
		reporter: noopReporter{},
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run processes jobs in order. A failed file is recorded and the batch
// moves on; cancelling ctx stops the batch after the current file. The
// returned error covers only problems that prevent the batch from starting.
func (r *Runner) Run(ctx context.Context, jobs []internal.FileJob) (Summary, error) {
	if err := os.MkdirAll(r.cfg.OutputRoot, 0o755); err != nil {
		return Summary{}, fmt.Errorf("create output root: %w", err)
	}
	lock := flock.New(filepath.Join(r.cfg.OutputRoot, LockFile))
	ok, err := lock.TryLock()
	if err != nil {
		return Summary{}, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return Summary{}, fmt.Errorf("another subtran run is writing to %s", r.cfg.OutputRoot)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			r.logger.Warn("failed to release output lock", "error", err)
		}
	}()

	var summary Summary
	if r.journal != nil {
		id, err := r.journal.CreateRun(ctx, r.cfg.InputRoot, r.cfg.OutputRoot, r.cfg.Backend, r.cfg.Model)
		if err != nil {
			r.logger.Warn("journal unavailable, continuing without it", "error", err)
			r.journal = nil
		} else {
			summary.RunID = id
		}
	}

	logger := r.logger.With("run", summary.RunID)
	logger.Info("run started", "files", len(jobs), "backend", r.cfg.Backend, "model", r.cfg.Model)

	hb := heartbeat.Start(ctx, r.cfg.HeartbeatInterval, r.reporter.Heartbeat)

	for i, job := range jobs {
		if ctx.Err() != nil {
			summary.Files = append(summary.Files, internal.FileResult{Job: job, Status: internal.FileSkipped, Err: ctx.Err()})
			summary.Skipped++
			continue
		}

		r.reporter.FileStart(i+1, len(jobs), job.RelPath)
		res := r.processFile(ctx, summary.RunID, job)
		summary.Files = append(summary.Files, res)

		if res.Status == internal.FileFailed {
			summary.Failed++
			r.reporter.FileFailed(job.RelPath, res.Err)
			logger.Warn("file failed", "file", job.RelPath, "line_count", res.Lines, "error", res.Err)
		} else {
			r.reporter.FileDone(job.RelPath, res.Translated, res.Duration)
			logger.Info("file finished", "file", job.RelPath, "translated", res.Translated, "elapsed", res.Duration)
		}
		r.recordFile(summary.RunID, res)
	}

	summary.Elapsed = hb.Stop()
	r.reporter.Summary(len(jobs), summary.Failed, summary.Elapsed)

	if r.journal != nil {
		// The run context may already be cancelled; the journal still needs closing.
		if err := r.journal.FinishRun(context.Background(), summary.RunID, summary.Status(), len(jobs), summary.Failed); err != nil {
			logger.Warn("failed to finish run in journal", "error", err)
		}
	}
	logger.Info("run finished", "status", summary.Status(), "failed", summary.Failed, "skipped", summary.Skipped, "elapsed", summary.Elapsed)
	return summary, nil
}

func (r *Runner) processFile(ctx context.Context, runID string, job internal.FileJob) (res internal.FileResult) {
	start := time.Now()
	res = internal.FileResult{Job: job, Status: internal.FileDone}
	defer func() {
		res.Duration = time.Since(start)
	}()

	fail := func(err error) internal.FileResult {
		res.Status = internal.FileFailed
		res.Err = err
		return res
	}

	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0o755); err != nil {
		return fail(fmt.Errorf("create output directory: %w", err))
	}

	in, err := os.Open(job.InputPath)
	if err != nil {
		return fail(fmt.Errorf("open input: %w", err))
	}
	defer in.Close()

	out, err := os.Create(job.OutputPath)
	if err != nil {
		return fail(fmt.Errorf("create output: %w", err))
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && res.Err == nil {
			res.Status = internal.FileFailed
			res.Err = fmt.Errorf("close output: %w", cerr)
		}
	}()

	session := conversation.New(r.cfg.SystemPrompt)
	r.logger.Debug("file started", "file", job.RelPath, "session", session, "system_prompt", session.SystemPrompt())
	p := pipeline.New(r.client, session, pipeline.Config{
		MaxTurns:    r.cfg.MaxTurns,
		ProtectTags: r.cfg.ProtectTags,
	}, pipeline.Observer{
		OnTranslated: func(ev pipeline.LineEvent) {
			r.reporter.Line(ev.Content, ev.Source, ev.Translation)
			if ev.Dropped > 0 {
				r.logger.Warn("reply dropped markup tokens, reattached at line edges", "file", job.RelPath, "line", ev.Line, "dropped", ev.Dropped)
			}
			if r.journal != nil {
				if err := r.journal.RecordLine(ctx, runID, job.RelPath, ev.Line, ev.Source, ev.Translation, ev.Result.Latency); err != nil {
					r.logger.Warn("failed to record line", "file", job.RelPath, "line", ev.Line, "error", err)
				}
			}
		},
		OnFailed: func(ev pipeline.LineEvent) {
			r.logger.Warn("translation failed", "file", job.RelPath, "line", ev.Line, "kind", ev.Result.Failure.Kind.String(), "error", ev.Result.Failure)
		},
	})

	stats, err := p.Run(ctx, subtitle.NewReader(in), out)
	res.Lines = stats.Lines
	res.ContentLines = stats.ContentLines
	res.Translated = stats.Translated
	if err != nil {
		return fail(err)
	}
	return res
}

func (r *Runner) recordFile(runID string, res internal.FileResult) {
	if r.journal == nil {
		return
	}
	if err := r.journal.RecordFile(context.Background(), runID, res); err != nil {
		r.logger.Warn("failed to record file", "file", res.Job.RelPath, "error", err)
	}
}

type noopReporter struct{}

func (noopReporter) FileStart(int, int, string) {}
func (noopReporter) Line(int, string, string) {}
func (noopReporter) FileDone(string, int, time.Duration) {}
func (noopReporter) FileFailed(string, error) {}
func (noopReporter) Heartbeat(time.Duration) {}
func (noopReporter) Summary(int, int, time.Duration) {}

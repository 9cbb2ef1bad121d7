package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/valpere/subtran/internal"
)

// ErrNotFound is returned when a run id does not exist.
var ErrNotFound = errors.New("not found")

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps the foreign_keys pragma in effect for every query.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	PRAGMA foreign_keys = ON;

	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		input_root TEXT NOT NULL,
		output_root TEXT NOT NULL,
		backend TEXT NOT NULL,
		model TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'running',
		files_total INTEGER NOT NULL DEFAULT 0,
		files_failed INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS files (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL,
		rel_path TEXT NOT NULL,
		output_path TEXT NOT NULL,
		status TEXT NOT NULL,
		lines INTEGER NOT NULL DEFAULT 0,
		content_lines INTEGER NOT NULL DEFAULT 0,
		translated INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	-- translations keeps every committed line so a run can be audited
	CREATE TABLE IF NOT EXISTS translations (
		run_id TEXT NOT NULL,
		rel_path TEXT NOT NULL,
		line_no INTEGER NOT NULL,
		source_text TEXT NOT NULL,
		translated_text TEXT NOT NULL,
		latency_ms INTEGER,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (run_id, rel_path, line_no),
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_files_run ON files(run_id);
	CREATE INDEX IF NOT EXISTS idx_translations_source ON translations(source_text);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Run is a row of the runs table.
type Run struct {
	ID          string
	InputRoot   string
	OutputRoot  string
	Backend     string
	Model       string
	Status      string
	FilesTotal  int
	FilesFailed int
	StartedAt   time.Time
	FinishedAt  *time.Time
}

// FileRecord is a row of the files table.
type FileRecord struct {
	RelPath      string
	OutputPath   string
	Status       string
	Lines        int
	ContentLines int
	Translated   int
	Duration     time.Duration
	Error        string
}

// LineRecord is a row of the translations table.
type LineRecord struct {
	RelPath        string
	Line           int
	SourceText     string
	TranslatedText string
	Latency        time.Duration
}

// Stats summarises the journal.
type Stats struct {
	Runs            int
	Files           int
	FilesFailed     int
	LinesTranslated int
}

// CreateRun opens a journal entry for a batch and returns its id.
func (s *Store) CreateRun(ctx context.Context, inputRoot, outputRoot, backend, model string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, input_root, output_root, backend, model, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, inputRoot, outputRoot, backend, model, time.Now())
	if err != nil {
		return "", err
	}
	return id, nil
}

// FinishRun closes a run with its final counts.
func (s *Store) FinishRun(ctx context.Context, runID, status string, filesTotal, filesFailed int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, files_total = ?, files_failed = ?, finished_at = ? WHERE id = ?`,
		status, filesTotal, filesFailed, time.Now(), runID)
	return err
}

// RecordFile stores the outcome of one file.
func (s *Store) RecordFile(ctx context.Context, runID string, res internal.FileResult) error {
	var errMsg sql.NullString
	if res.Err != nil {
		errMsg = sql.NullString{String: res.Err.Error(), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (id, run_id, rel_path, output_path, status, lines, content_lines, translated, duration_ms, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), runID, res.Job.RelPath, res.Job.OutputPath, string(res.Status),
		res.Lines, res.ContentLines, res.Translated, res.Duration.Milliseconds(), errMsg)
	return err
}

// RecordLine stores one committed translation.
func (s *Store) RecordLine(ctx context.Context, runID, relPath string, line int, source, translated string, latency time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO translations (run_id, rel_path, line_no, source_text, translated_text, latency_ms) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, relPath, line, normalizeText(source), translated, latency.Milliseconds())
	return err
}

// ListRuns returns runs newest first. limit <= 0 means no limit.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT id, input_root, output_root, backend, model, status, files_total, files_failed, started_at, finished_at FROM runs ORDER BY started_at DESC`
	var args []interface{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// GetRun returns a run and its files. A unique id prefix is accepted.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, []FileRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, input_root, output_root, backend, model, status, files_total, files_failed, started_at, finished_at FROM runs WHERE id LIKE ? LIMIT 2`,
		id+"%")
	if err != nil {
		return nil, nil, err
	}
	var matches []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, nil, err
		}
		matches = append(matches, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	switch len(matches) {
	case 0:
		return nil, nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	case 1:
	default:
		return nil, nil, fmt.Errorf("run id prefix %q is ambiguous", id)
	}
	run := matches[0]

	fileRows, err := s.db.QueryContext(ctx,
		`SELECT rel_path, output_path, status, lines, content_lines, translated, duration_ms, error FROM files WHERE run_id = ? ORDER BY rel_path`,
		run.ID)
	if err != nil {
		return nil, nil, err
	}
	defer fileRows.Close()

	var files []FileRecord
	for fileRows.Next() {
		var f FileRecord
		var durationMs int64
		var errMsg sql.NullString
		if err := fileRows.Scan(&f.RelPath, &f.OutputPath, &f.Status, &f.Lines, &f.ContentLines, &f.Translated, &durationMs, &errMsg); err != nil {
			return nil, nil, err
		}
		f.Duration = time.Duration(durationMs) * time.Millisecond
		f.Error = errMsg.String
		files = append(files, f)
	}
	return run, files, fileRows.Err()
}

// Lines returns the committed translations of one file in a run.
func (s *Store) Lines(ctx context.Context, runID, relPath string) ([]LineRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rel_path, line_no, source_text, translated_text, COALESCE(latency_ms, 0) FROM translations WHERE run_id = ? AND rel_path = ? ORDER BY line_no`,
		runID, relPath)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []LineRecord
	for rows.Next() {
		var l LineRecord
		var latencyMs int64
		if err := rows.Scan(&l.RelPath, &l.Line, &l.SourceText, &l.TranslatedText, &latencyMs); err != nil {
			return nil, err
		}
		l.Latency = time.Duration(latencyMs) * time.Millisecond
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// FindTranslations returns earlier translations of source, newest first.
func (s *Store) FindTranslations(ctx context.Context, source string, limit int) ([]LineRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT rel_path, line_no, source_text, translated_text, COALESCE(latency_ms, 0) FROM translations WHERE source_text = ? ORDER BY created_at DESC LIMIT ?`,
		normalizeText(source), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lines []LineRecord
	for rows.Next() {
		var l LineRecord
		var latencyMs int64
		if err := rows.Scan(&l.RelPath, &l.Line, &l.SourceText, &l.TranslatedText, &latencyMs); err != nil {
			return nil, err
		}
		l.Latency = time.Duration(latencyMs) * time.Millisecond
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

// DeleteRun removes a run together with its files and lines.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return nil
}

// Stats returns summary counts across every run.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM runs),
			(SELECT COUNT(*) FROM files),
			(SELECT COUNT(*) FROM files WHERE status = 'failed'),
			(SELECT COUNT(*) FROM translations)`).Scan(
		&stats.Runs,
		&stats.Files,
		&stats.FilesFailed,
		&stats.LinesTranslated,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var finished sql.NullTime
	if err := row.Scan(&r.ID, &r.InputRoot, &r.OutputRoot, &r.Backend, &r.Model, &r.Status, &r.FilesTotal, &r.FilesFailed, &r.StartedAt, &finished); err != nil {
		return nil, err
	}
	if finished.Valid {
		t := finished.Time
		r.FinishedAt = &t
	}
	return &r, nil
}

// normalizeText trims whitespace and applies Unicode NFC normalization so
// the same dialogue line compares equal across files.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}

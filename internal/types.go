package internal

import "time"

// FileJob is one subtitle file discovered under the input root.
type FileJob struct {
	InputPath  string `json:"input_path"`
	RelPath    string `json:"rel_path"`
	OutputPath string `json:"output_path"`
}

// FileStatus is the terminal outcome of a FileJob.
type FileStatus string

const (
	FileDone    FileStatus = "done"
	FileFailed  FileStatus = "failed"
	FileSkipped FileStatus = "skipped"
)

// FileResult records how a FileJob ended.
type FileResult struct {
	Job          FileJob       `json:"job"`
	Status       FileStatus    `json:"status"`
	Lines        int           `json:"lines"`
	ContentLines int           `json:"content_lines"`
	Translated   int           `json:"translated"`
	Duration     time.Duration `json:"duration"`
	Err          error         `json:"-"`
}

package walker

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		rel, suffix, want string
	}{
		{"ep1.srt", ".ch", filepath.Join("out", "ep1.ch.srt")},
		{filepath.Join("show", "s01", "ep1.srt"), ".ch", filepath.Join("out", "show", "s01", "ep1.ch.srt")},
		{"notes", ".ch", filepath.Join("out", "notes.ch")},
		{"movie.en.srt", "_zh", filepath.Join("out", "movie.en_zh.srt")},
		{"ep1.srt", "", filepath.Join("out", "ep1.srt")},
	}
	for _, tt := range tests {
		if got := OutputPath("out", tt.rel, tt.suffix); got != tt.want {
			t.Errorf("OutputPath(%q, %q) = %q, want %q", tt.rel, tt.suffix, got, tt.want)
		}
	}
}

func TestDiscover_MirrorsTreeInLexicalOrder(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "origin")
	out := filepath.Join(root, "translate")

	writeFile(t, filepath.Join(in, "b.srt"))
	writeFile(t, filepath.Join(in, "a.srt"))
	writeFile(t, filepath.Join(in, "show", "ep2.SRT"))
	writeFile(t, filepath.Join(in, "show", "ep1.srt"))
	writeFile(t, filepath.Join(in, "readme.txt"))

	jobs, err := Discover(Options{InputRoot: in, OutputRoot: out, Suffix: ".ch", Extensions: []string{"srt"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"a.srt", "b.srt", filepath.Join("show", "ep1.srt"), filepath.Join("show", "ep2.SRT")}
	if len(jobs) != len(want) {
		t.Fatalf("expected %d jobs, got %d: %+v", len(want), len(jobs), jobs)
	}
	for i, job := range jobs {
		if job.RelPath != want[i] {
			t.Errorf("job %d rel = %q, want %q", i, job.RelPath, want[i])
		}
	}
	if jobs[2].OutputPath != filepath.Join(out, "show", "ep1.ch.srt") {
		t.Errorf("unexpected output path %q", jobs[2].OutputPath)
	}
	if jobs[2].InputPath != filepath.Join(in, "show", "ep1.srt") {
		t.Errorf("unexpected input path %q", jobs[2].InputPath)
	}
}

func TestDiscover_NoExtensionFilter(t *testing.T) {
	in := t.TempDir()
	writeFile(t, filepath.Join(in, "a.srt"))
	writeFile(t, filepath.Join(in, "b.txt"))
	writeFile(t, filepath.Join(in, "c"))

	jobs, err := Discover(Options{InputRoot: in, OutputRoot: filepath.Join(in, "..", "out")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 3 {
		t.Errorf("expected every file, got %d", len(jobs))
	}
}

func TestDiscover_SkipsNestedOutputRoot(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(in, "translate")

	writeFile(t, filepath.Join(in, "a.srt"))
	writeFile(t, filepath.Join(out, "a.ch.srt"))

	jobs, err := Discover(Options{InputRoot: in, OutputRoot: out, Suffix: ".ch", Extensions: []string{".srt"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(jobs) != 1 || jobs[0].RelPath != "a.srt" {
		t.Errorf("expected only a.srt, got %+v", jobs)
	}
}

func TestDiscover_MissingRoot(t *testing.T) {
	if _, err := Discover(Options{InputRoot: filepath.Join(t.TempDir(), "nope")}); err == nil {
		t.Error("expected error for missing input root")
	}
	if _, err := Discover(Options{}); err == nil {
		t.Error("expected error for empty input root")
	}
}

func TestDiscover_RootIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.srt")
	writeFile(t, path)
	if _, err := Discover(Options{InputRoot: path}); err == nil {
		t.Error("expected error when input root is a file")
	}
}

func TestEnsureRoots(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(root, "translate", "nested")

	if err := EnsureRoots(root, out); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info, err := os.Stat(out); err != nil || !info.IsDir() {
		t.Errorf("output root not created: %v", err)
	}
	if err := EnsureRoots(filepath.Join(root, "missing"), out); err == nil {
		t.Error("expected error for missing input root")
	}
}

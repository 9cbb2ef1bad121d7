// Package walker finds subtitle files under an input root and maps each one
// to its place in the mirrored output tree.
package walker

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/valpere/subtran/internal"
)

// Options configures Discover.
type Options struct {
	InputRoot  string
	OutputRoot string
	// Suffix is inserted between the file stem and its extension.
	Suffix string
	// Extensions filters files by extension, case-insensitively, with or
	// without the leading dot. Empty means every regular file.
	Extensions []string
}

// Discover walks InputRoot in lexical order and returns one job per
// matching regular file. The output root is skipped when it lives inside
// the input root.
func Discover(opts Options) ([]internal.FileJob, error) {
	if opts.InputRoot == "" {
		return nil, errors.New("input root is required")
	}
	info, err := os.Stat(opts.InputRoot)
	if err != nil {
		return nil, fmt.Errorf("input root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input root %s is not a directory", opts.InputRoot)
	}

	exts := normalizeExtensions(opts.Extensions)
	outAbs, _ := filepath.Abs(opts.OutputRoot)

	var jobs []internal.FileJob
	err = filepath.WalkDir(opts.InputRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != opts.InputRoot && opts.OutputRoot != "" {
				if abs, _ := filepath.Abs(path); abs == outAbs {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if len(exts) > 0 {
			if _, ok := exts[strings.ToLower(filepath.Ext(path))]; !ok {
				return nil
			}
		}

		rel, err := filepath.Rel(opts.InputRoot, path)
		if err != nil {
			return fmt.Errorf("relative path for %s: %w", path, err)
		}
		jobs = append(jobs, internal.FileJob{
			InputPath:  path,
			RelPath:    rel,
			OutputPath: OutputPath(opts.OutputRoot, rel, opts.Suffix),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", opts.InputRoot, err)
	}
	return jobs, nil
}

// OutputPath mirrors rel under outputRoot as dir/stem+suffix+ext.
// "show/ep1.srt" with suffix ".ch" becomes "<root>/show/ep1.ch.srt".
func OutputPath(outputRoot, rel, suffix string) string {
	dir, name := filepath.Split(rel)
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return filepath.Join(outputRoot, dir, stem+suffix+ext)
}

// EnsureRoots checks the input root exists and creates the output root.
func EnsureRoots(inputRoot, outputRoot string) error {
	if _, err := os.Stat(inputRoot); err != nil {
		return fmt.Errorf("input root: %w", err)
	}
	if err := os.MkdirAll(outputRoot, 0o755); err != nil {
		return fmt.Errorf("create output root: %w", err)
	}
	return nil
}

func normalizeExtensions(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = struct{}{}
	}
	return set
}

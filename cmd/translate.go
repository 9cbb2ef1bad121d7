/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/subtran/internal/runner"
	"github.com/valpere/subtran/internal/store"
	"github.com/valpere/subtran/internal/walker"
)

var checkOnly bool

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate every subtitle file under the input directory",
	Long: `Translate every subtitle file under the input directory, line by line,
writing a mirrored tree under the output directory. Each output file is named
after its input with the suffix inserted before the extension
(origin/show/ep1.srt -> translate/show/ep1.ch.srt).

Each file starts a fresh conversation with the model. Cue numbers, timestamps
and blank lines are copied as they are; every other line is sent to the model
together with the lines translated before it. If a line cannot be translated
the file stops there and the run moves on to the next file.

Available backends:
  - ollama      Local Ollama server (default)
  - openrouter  OpenRouter chat completions (requires API key)
  - google      Google Cloud Translation (no conversation context)

Press Ctrl-C to stop after the current file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		systemPrompt, err := cfg.ResolveSystemPrompt()
		if err != nil {
			return err
		}
		backend, err := buildBackend(cfg)
		if err != nil {
			return err
		}
		if closer, ok := backend.(io.Closer); ok {
			defer closer.Close()
		}
		client := buildClient(backend, cfg)
		cmd.SilenceUsage = true

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if checkOnly {
			checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := preflight(checkCtx, client, systemPrompt); err != nil {
				return fmt.Errorf("backend check failed: %w", err)
			}
			fmt.Printf("Backend %s is available (model %s)\n", backend.Name(), cfg.Model)
			return nil
		}

		if err := walker.EnsureRoots(cfg.InputDir, cfg.OutputDir); err != nil {
			return err
		}
		jobs, err := walker.Discover(walker.Options{
			InputRoot:  cfg.InputDir,
			OutputRoot: cfg.OutputDir,
			Suffix:     cfg.Suffix,
			Extensions: cfg.Extensions,
		})
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
		if len(jobs) == 0 {
			fmt.Printf("No subtitle files found in %s\n", cfg.InputDir)
			return nil
		}

		opts := []runner.Option{
			runner.WithReporter(newConsole(cfg)),
			runner.WithLogger(logger),
		}
		if !cfg.NoDB && cfg.DB != "" {
			db, err := store.New(cfg.DB)
			if err != nil {
				logger.Warn("journal unavailable, continuing without it", "db", cfg.DB, "error", err)
			} else {
				defer db.Close()
				opts = append(opts, runner.WithJournal(db))
			}
		}

		r := runner.New(client, runner.Config{
			InputRoot:         cfg.InputDir,
			OutputRoot:        cfg.OutputDir,
			Backend:           backend.Name(),
			Model:             cfg.Model,
			SystemPrompt:      systemPrompt,
			MaxTurns:          cfg.MaxTurns,
			ProtectTags:       cfg.ProtectTags,
			HeartbeatInterval: cfg.HeartbeatInterval,
		}, opts...)

		summary, err := r.Run(ctx, jobs)
		if err != nil {
			return err
		}
		if summary.RunID != "" {
			fmt.Printf("Run ID: %s\n", summary.RunID)
		}
		return summary.Err()
	},
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringP("input", "i", "", "Input directory (default origin)")
	translateCmd.Flags().StringP("output", "o", "", "Output directory (default translate)")
	translateCmd.Flags().String("suffix", "", "Suffix inserted before the output extension (default .ch)")
	translateCmd.Flags().StringSlice("ext", nil, "File extensions to translate (default .srt)")
	translateCmd.Flags().StringP("backend", "b", "", "Backend: ollama, openrouter or google")
	translateCmd.Flags().StringP("model", "m", "", "Model name passed to the backend")
	translateCmd.Flags().Int("max-turns", 0, "Conversation turns kept after the system prompt (default 100)")
	translateCmd.Flags().String("system-prompt-file", "", "File with the system prompt template")
	translateCmd.Flags().Bool("protect-tags", false, "Replace subtitle markup with tokens before translating")
	translateCmd.Flags().String("db", "", "Journal database path (default data/subtran.db)")
	translateCmd.Flags().Bool("no-db", false, "Do not record the run in the journal")
	translateCmd.Flags().BoolVar(&checkOnly, "check", false, "Only check that the backend is reachable")
}

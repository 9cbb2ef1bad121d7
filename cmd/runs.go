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
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/valpere/subtran/internal/console"
	"github.com/valpere/subtran/internal/store"
)

var (
	runsLimit     int
	runsShowLines string
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the run journal",
	Long: `List, inspect, search and delete translation runs recorded in the SQLite
journal. Every translate run records its files and every translated line.`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openJournal()
		if err != nil {
			return err
		}
		defer db.Close()

		runs, err := db.ListRuns(context.Background(), runsLimit)
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		rows := make([][]string, 0, len(runs))
		for _, r := range runs {
			rows = append(rows, []string{
				shortID(r.ID),
				r.StartedAt.Local().Format("2006-01-02 15:04"),
				r.Status,
				r.Backend,
				r.Model,
				strconv.Itoa(r.FilesTotal),
				strconv.Itoa(r.FilesFailed),
				r.InputRoot,
			})
		}
		fmt.Println(renderTable(
			[]string{"ID", "STARTED", "STATUS", "BACKEND", "MODEL", "FILES", "FAILED", "INPUT"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
		))
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the files of a run, or the lines of one file with --lines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openJournal()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		run, files, err := db.GetRun(ctx, args[0])
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("run %s not found", args[0])
			}
			return fmt.Errorf("failed to load run: %w", err)
		}

		if runsShowLines != "" {
			lines, err := db.Lines(ctx, run.ID, runsShowLines)
			if err != nil {
				return fmt.Errorf("failed to load lines: %w", err)
			}
			rows := make([][]string, 0, len(lines))
			for _, l := range lines {
				rows = append(rows, []string{strconv.Itoa(l.Line), l.SourceText, l.TranslatedText, l.Latency.Round(time.Millisecond).String()})
			}
			fmt.Println(renderTable([]string{"LINE", "SOURCE", "TRANSLATION", "LATENCY"}, rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight}))
			return nil
		}

		fmt.Printf("Run:      %s\n", run.ID)
		fmt.Printf("Status:   %s\n", run.Status)
		fmt.Printf("Backend:  %s (%s)\n", run.Backend, run.Model)
		fmt.Printf("Input:    %s\n", run.InputRoot)
		fmt.Printf("Output:   %s\n", run.OutputRoot)
		fmt.Printf("Started:  %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
		if run.FinishedAt != nil {
			fmt.Printf("Finished: %s (%s)\n", run.FinishedAt.Local().Format("2006-01-02 15:04:05"),
				console.FormatDuration(run.FinishedAt.Sub(run.StartedAt)))
		}

		rows := make([][]string, 0, len(files))
		for _, f := range files {
			rows = append(rows, []string{
				f.RelPath,
				f.Status,
				strconv.Itoa(f.Lines),
				strconv.Itoa(f.Translated) + "/" + strconv.Itoa(f.ContentLines),
				console.FormatDuration(f.Duration),
				f.Error,
			})
		}
		fmt.Println(renderTable([]string{"FILE", "STATUS", "LINES", "TRANSLATED", "TIME", "ERROR"}, rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft}))
		return nil
	},
}

var runsFindCmd = &cobra.Command{
	Use:   "find <text>",
	Short: "Show earlier translations of a source line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openJournal()
		if err != nil {
			return err
		}
		defer db.Close()

		lines, err := db.FindTranslations(context.Background(), args[0], runsLimit)
		if err != nil {
			return fmt.Errorf("failed to search translations: %w", err)
		}
		if len(lines) == 0 {
			fmt.Println("No translations recorded for this line.")
			return nil
		}
		rows := make([][]string, 0, len(lines))
		for _, l := range lines {
			rows = append(rows, []string{l.RelPath, strconv.Itoa(l.Line), l.TranslatedText})
		}
		fmt.Println(renderTable([]string{"FILE", "LINE", "TRANSLATION"}, rows,
			[]columnAlignment{alignLeft, alignRight, alignLeft}))
		return nil
	},
}

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show journal totals",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openJournal()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Stats(context.Background())
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		fmt.Printf("Runs:             %d\n", stats.Runs)
		fmt.Printf("Files:            %d\n", stats.Files)
		fmt.Printf("Files failed:     %d\n", stats.FilesFailed)
		fmt.Printf("Lines translated: %d\n", stats.LinesTranslated)
		return nil
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a run with its files and lines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openJournal()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		run, _, err := db.GetRun(ctx, args[0])
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("run %s not found", args[0])
			}
			return fmt.Errorf("failed to load run: %w", err)
		}
		if err := db.DeleteRun(ctx, run.ID); err != nil {
			return fmt.Errorf("failed to delete run: %w", err)
		}
		fmt.Printf("Deleted run: %s\n", run.ID)
		return nil
	},
}

func openJournal() (*store.Store, error) {
	db, err := store.New(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	rootCmd.AddCommand(runsCmd)

	runsCmd.PersistentFlags().String("db", "", "Journal database path (default data/subtran.db)")

	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of rows")
	runsFindCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of rows")
	runsShowCmd.Flags().StringVar(&runsShowLines, "lines", "", "Show translated lines of this file (path relative to the input root)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsFindCmd)
	runsCmd.AddCommand(runsStatsCmd)
	runsCmd.AddCommand(runsDeleteCmd)
}

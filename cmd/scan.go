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
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/valpere/subtran/internal/console"
	"github.com/valpere/subtran/internal/detector"
	"github.com/valpere/subtran/internal/subtitle"
	"github.com/valpere/subtran/internal/walker"
)

var (
	scanNoDetect bool
	scanSample   int
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List the files a translate run would process",
	Long: `Walk the input directory exactly as translate would and report, for every
file, its output path, how many lines would be sent to the model, the number
of cues, the subtitle running time and the detected source language.
Nothing is written and no backend is contacted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		var det *detector.Detector
		if !scanNoDetect {
			det = detector.NewForSubtitles()
		}

		rows := make([][]string, 0, len(jobs))
		var totalContent int
		for _, job := range jobs {
			profile, err := profileFile(job.InputPath, scanSample)
			if err != nil {
				logger.Warn("failed to scan file", "file", job.RelPath, "error", err)
				rows = append(rows, []string{job.RelPath, outputRel(job.OutputPath), "-", "-", "-", "-", "error"})
				continue
			}
			totalContent += profile.Kinds[subtitle.Content]

			lang := "-"
			if det != nil {
				if res, ok := det.DetectLines(profile.Sample); ok {
					lang = fmt.Sprintf("%s (%.0f%%)", res.ISO, res.Confidence*100)
				}
			}
			rows = append(rows, []string{
				job.RelPath,
				outputRel(job.OutputPath),
				strconv.Itoa(profile.Lines),
				strconv.Itoa(profile.Kinds[subtitle.Content]),
				strconv.Itoa(profile.Cues()),
				console.FormatDuration(profile.Duration),
				lang,
			})
		}

		fmt.Println(renderTable(
			[]string{"FILE", "OUTPUT", "LINES", "TO TRANSLATE", "CUES", "DURATION", "LANG"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignLeft},
		))
		fmt.Printf("%d file(s), %d line(s) to translate\n", len(jobs), totalContent)
		return nil
	},
}

func profileFile(path string, sample int) (subtitle.Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return subtitle.Profile{}, err
	}
	defer f.Close()
	return subtitle.ProfileDocument(f, sample)
}

func outputRel(path string) string {
	if rel, err := filepath.Rel(cfg.OutputDir, path); err == nil {
		return rel
	}
	return path
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringP("input", "i", "", "Input directory (default origin)")
	scanCmd.Flags().StringP("output", "o", "", "Output directory (default translate)")
	scanCmd.Flags().String("suffix", "", "Suffix inserted before the output extension (default .ch)")
	scanCmd.Flags().StringSlice("ext", nil, "File extensions to include (default .srt)")
	scanCmd.Flags().BoolVar(&scanNoDetect, "no-detect", false, "Skip source language detection")
	scanCmd.Flags().IntVar(&scanSample, "sample", 40, "Content lines used for language detection")
}

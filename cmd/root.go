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

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/valpere/subtran/internal/config"
	"github.com/valpere/subtran/internal/logging"
)

var version = "0.1.0"

var (
	cfgFile string

	appViper *viper.Viper
	cfg      *config.Config
	logger   = logging.Discard()
)

// flagKeys maps command-line flags onto configuration keys so that a flag
// overrides the config file and SUBTRAN_* variables only when it is set.
var flagKeys = map[string]string{
	"input":              "input_dir",
	"output":             "output_dir",
	"suffix":             "suffix",
	"ext":                "extensions",
	"backend":            "backend",
	"model":              "model",
	"max-turns":          "max_turns",
	"system-prompt-file": "system_prompt_file",
	"protect-tags":       "protect_tags",
	"db":                 "db",
	"no-db":              "no_db",
	"quiet":              "quiet",
	"log-level":          "log.level",
	"log-format":         "log.format",
}

var rootCmd = &cobra.Command{
	Use:   "subtran",
	Short: "Line-by-line subtitle translator backed by an LLM",
	Long: `A CLI application that translates a tree of SubRip subtitle files line by line,
keeping a running conversation with an LLM so every line is translated with the
context of the lines before it. Timing, numbering and blank lines are copied
unchanged, so the output lines up one-to-one with the input.

Supported backends: Ollama (default), OpenRouter, Google Translate

Use "subtran translate --help" for translation options.`,
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) error {
	v, err := config.NewViper(cfgFile)
	if err != nil {
		return err
	}

	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		key, ok := flagKeys[f.Name]
		if !ok || bindErr != nil {
			return
		}
		bindErr = v.BindPFlag(key, f)
	})
	if bindErr != nil {
		return fmt.Errorf("bind flags: %w", bindErr)
	}

	loaded, err := config.Load(v)
	if err != nil {
		return err
	}
	l, err := logging.New(logging.Options{
		Level:       loaded.Log.Level,
		Format:      loaded.Log.Format,
		OutputPaths: loaded.Log.Files,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	appViper, cfg, logger = v, loaded, l
	if used := v.ConfigFileUsed(); used != "" {
		logger.Debug("config loaded", "file", used)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default ./subtran.yaml or $HOME/.config/subtran/subtran.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: console or json")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Hide per-line progress")
}

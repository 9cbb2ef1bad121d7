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
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configForce bool

// secretKeys are blanked when the configuration is written or shown.
var secretKeys = []string{"openrouter.api_key"}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or write the effective configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the effective configuration to a file (default subtran.yaml)",
	Long: `Write the effective configuration (defaults, config file, environment and
flags merged) to a file. The format follows the extension: .yaml, .yml,
.json or .toml. Secrets are left empty.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "subtran.yaml"
		if len(args) == 1 {
			path = args[0]
		}

		out := viper.New()
		for _, key := range appViper.AllKeys() {
			value := appViper.Get(key)
			if d, ok := value.(time.Duration); ok {
				value = d.String()
			}
			out.Set(key, value)
		}
		for _, key := range secretKeys {
			out.Set(key, "")
		}

		write := out.SafeWriteConfigAs
		if configForce {
			write = out.WriteConfigAs
		}
		if err := write(path); err != nil {
			var exists viper.ConfigFileAlreadyExistsError
			if errors.As(err, &exists) {
				return fmt.Errorf("%s already exists, use --force to overwrite", path)
			}
			return fmt.Errorf("failed to write config: %w", err)
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		keys := appViper.AllKeys()
		slices.Sort(keys)

		rows := make([][]string, 0, len(keys))
		for _, key := range keys {
			value := fmt.Sprint(appViper.Get(key))
			if slices.Contains(secretKeys, key) && value != "" {
				value = "********"
			}
			rows = append(rows, []string{key, value})
		}
		fmt.Println(renderTable([]string{"KEY", "VALUE"}, rows, nil))
		if used := appViper.ConfigFileUsed(); used != "" {
			fmt.Printf("Config file: %s\n", used)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)

	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}

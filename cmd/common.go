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
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/valpere/subtran/internal/config"
	"github.com/valpere/subtran/internal/console"
	"github.com/valpere/subtran/internal/conversation"
	"github.com/valpere/subtran/internal/postprocess"
	"github.com/valpere/subtran/internal/translator"
)

// buildBackend constructs the inference backend named in c.
func buildBackend(c *config.Config) (translator.Backend, error) {
	switch kind := c.BackendKind(); kind {
	case translator.BackendOllama:
		return translator.NewOllamaBackend(c.Ollama.URL, c.RequestTimeout), nil
	case translator.BackendOpenRouter:
		return translator.NewOpenRouterBackend(c.OpenRouter.APIKey, c.OpenRouter.URL, c.RequestTimeout), nil
	case translator.BackendGoogle:
		return translator.NewGoogleBackend(c.Google.Credentials, c.Google.SourceLang, c.Google.TargetLang), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", c.Backend)
	}
}

func buildClient(backend translator.Backend, c *config.Config) *translator.Client {
	var opts []translator.ClientOption
	if c.CleanReplies {
		opts = append(opts, translator.WithReplyFilter(postprocess.Clean))
	}
	return translator.NewClient(backend, c.RequestConfig(), opts...)
}

func newConsole(c *config.Config) *console.Console {
	var opts []console.Option
	if c.Quiet {
		opts = append(opts, console.Quiet())
	}
	return console.New(os.Stdout, opts...)
}

type availabilityChecker interface {
	IsAvailable(ctx context.Context) error
}

// preflight checks that the backend is reachable. Backends without a cheap
// health endpoint get one real translation request instead.
func preflight(ctx context.Context, client *translator.Client, systemPrompt string) error {
	if checker, ok := client.Backend().(availabilityChecker); ok {
		return checker.IsAvailable(ctx)
	}
	s := conversation.New(systemPrompt)
	s.AppendUser("OK")
	if res := client.Translate(ctx, s); !res.OK() {
		return res.Failure
	}
	return nil
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range headers {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

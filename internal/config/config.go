// Package config loads subtran settings from defaults, an optional config
// file, SUBTRAN_* environment variables and command-line flags, in that
// order of increasing precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/spf13/viper"

	"github.com/valpere/subtran/internal/conversation"
	"github.com/valpere/subtran/internal/placeholder"
	"github.com/valpere/subtran/internal/translator"
)

// EnvPrefix is prepended to every environment variable, e.g. SUBTRAN_MODEL.
const EnvPrefix = "SUBTRAN"

// DefaultSystemPrompt is rendered with SourceLang and TargetLang.
const DefaultSystemPrompt = `You are a professional subtitle translator. You will receive subtitle lines in {{.SourceLang}}, one per message, in the order they appear in the film. Translate each line into natural, colloquial {{.TargetLang}} that fits on screen. Use the earlier lines only as context. Reply with the translation of the latest line only, on a single line, with no quotes, notes, explanations or romanization.`

type OllamaConfig struct {
	URL string `mapstructure:"url"`
}

type OpenRouterConfig struct {
	APIKey string `mapstructure:"api_key"`
	URL    string `mapstructure:"url"`
}

// GoogleConfig uses BCP 47 codes; the prompt languages above are free text.
type GoogleConfig struct {
	Credentials string `mapstructure:"credentials"`
	SourceLang  string `mapstructure:"source_lang"`
	TargetLang  string `mapstructure:"target_lang"`
}

type LogConfig struct {
	Level  string   `mapstructure:"level"`
	Format string   `mapstructure:"format"`
	Files  []string `mapstructure:"files"`
}

// Config is the effective configuration of a run.
type Config struct {
	InputDir          string             `mapstructure:"input_dir"`
	OutputDir         string             `mapstructure:"output_dir"`
	Suffix            string             `mapstructure:"suffix"`
	Extensions        []string           `mapstructure:"extensions"`
	Backend           string             `mapstructure:"backend"`
	Model             string             `mapstructure:"model"`
	KeepAlive         string             `mapstructure:"keep_alive"`
	MaxTurns          int                `mapstructure:"max_turns"`
	SourceLang        string             `mapstructure:"source_lang"`
	TargetLang        string             `mapstructure:"target_lang"`
	SystemPrompt      string             `mapstructure:"system_prompt"`
	SystemPromptFile  string             `mapstructure:"system_prompt_file"`
	ProtectTags       bool               `mapstructure:"protect_tags"`
	CleanReplies      bool               `mapstructure:"clean_replies"`
	RequestTimeout    time.Duration      `mapstructure:"request_timeout"`
	HeartbeatInterval time.Duration      `mapstructure:"heartbeat_interval"`
	DB                string             `mapstructure:"db"`
	NoDB              bool               `mapstructure:"no_db"`
	Quiet             bool               `mapstructure:"quiet"`
	Options           translator.Options `mapstructure:"options"`
	Ollama            OllamaConfig       `mapstructure:"ollama"`
	OpenRouter        OpenRouterConfig   `mapstructure:"openrouter"`
	Google            GoogleConfig       `mapstructure:"google"`
	Log               LogConfig          `mapstructure:"log"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("input_dir", "origin")
	v.SetDefault("output_dir", "translate")
	v.SetDefault("suffix", ".ch")
	v.SetDefault("extensions", []string{".srt"})
	v.SetDefault("backend", string(translator.BackendOllama))
	v.SetDefault("model", "qwen2:7b-instruct-q5_K_M")
	v.SetDefault("keep_alive", "10m")
	v.SetDefault("max_turns", conversation.DefaultMaxTurns)
	v.SetDefault("source_lang", "Japanese")
	v.SetDefault("target_lang", "Simplified Chinese")
	v.SetDefault("system_prompt", "")
	v.SetDefault("system_prompt_file", "")
	v.SetDefault("protect_tags", false)
	v.SetDefault("clean_replies", true)
	v.SetDefault("request_timeout", time.Duration(0))
	v.SetDefault("heartbeat_interval", 5*time.Second)
	v.SetDefault("db", filepath.Join("data", "subtran.db"))
	v.SetDefault("no_db", false)
	v.SetDefault("quiet", false)
	v.SetDefault("options.num_ctx", 8192)
	v.SetDefault("options.temperature", 0.7)
	v.SetDefault("ollama.url", translator.DefaultOllamaURL)
	v.SetDefault("openrouter.api_key", "")
	v.SetDefault("openrouter.url", translator.DefaultOpenRouterURL)
	v.SetDefault("google.credentials", "")
	v.SetDefault("google.source_lang", "ja")
	v.SetDefault("google.target_lang", "zh-CN")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.files", []string{})
}

// NewViper returns a viper instance with defaults and environment binding.
// configFile may be empty, in which case subtran.yaml is searched for in
// the working directory and $HOME/.config/subtran.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
		return v, nil
	}

	v.SetConfigName("subtran")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "subtran"))
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Load decodes the effective configuration from v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Extensions = splitList(cfg.Extensions)
	return &cfg, nil
}

// Validate reports the first problem that would prevent a run.
func (c *Config) Validate() error {
	kind, err := translator.ParseBackendKind(c.Backend)
	if err != nil {
		return err
	}
	if strings.TrimSpace(c.InputDir) == "" {
		return errors.New("input_dir is required")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return errors.New("output_dir is required")
	}
	if sameDir(c.InputDir, c.OutputDir) {
		return fmt.Errorf("input_dir and output_dir must differ (both %s)", c.InputDir)
	}
	if c.Suffix == "" {
		return errors.New("suffix must not be empty, output would overwrite input names")
	}
	if strings.ContainsAny(c.Suffix, `/\`) {
		return fmt.Errorf("suffix %q must not contain path separators", c.Suffix)
	}
	if c.MaxTurns < 0 {
		return fmt.Errorf("max_turns must be >= 0, got %d", c.MaxTurns)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must be >= 0, got %s", c.RequestTimeout)
	}

	switch kind {
	case translator.BackendOllama:
		if c.Model == "" {
			return errors.New("model is required for the ollama backend")
		}
	case translator.BackendOpenRouter:
		if c.Model == "" {
			return errors.New("model is required for the openrouter backend")
		}
		if c.OpenRouter.APIKey == "" {
			return errors.New("openrouter.api_key is required (or set SUBTRAN_OPENROUTER_API_KEY)")
		}
	case translator.BackendGoogle:
		if c.Google.TargetLang == "" {
			return errors.New("google.target_lang is required for the google backend")
		}
	}
	return nil
}

// BackendKind returns the parsed backend; call after Validate.
func (c *Config) BackendKind() translator.BackendKind {
	kind, _ := translator.ParseBackendKind(c.Backend)
	return kind
}

// RequestConfig is the per-request part of the configuration.
func (c *Config) RequestConfig() translator.RequestConfig {
	return translator.RequestConfig{
		Model:     c.Model,
		Options:   c.Options,
		KeepAlive: c.KeepAlive,
	}
}

// ResolveSystemPrompt returns the system prompt: the contents of
// system_prompt_file when set, else system_prompt, else the default
// template. Either source may use {{.SourceLang}} and {{.TargetLang}}.
// With protect_tags the token-keeping instruction is appended.
func (c *Config) ResolveSystemPrompt() (string, error) {
	text := c.SystemPrompt
	if c.SystemPromptFile != "" {
		raw, err := os.ReadFile(c.SystemPromptFile)
		if err != nil {
			return "", fmt.Errorf("read system prompt: %w", err)
		}
		text = string(raw)
	}
	if strings.TrimSpace(text) == "" {
		text = DefaultSystemPrompt
	}

	tmpl, err := template.New("system_prompt").Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse system prompt: %w", err)
	}
	var buf bytes.Buffer
	data := struct{ SourceLang, TargetLang string }{c.SourceLang, c.TargetLang}
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	prompt := strings.TrimSpace(buf.String())
	if c.ProtectTags {
		prompt += "\n\n" + placeholder.InstructionHint()
	}
	return prompt, nil
}

// splitList accepts both list values and a single comma-separated string,
// which is what SUBTRAN_EXTENSIONS arrives as.
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/newsplaces/internal/llm"
	"github.com/ppiankov/newsplaces/internal/model"
)

// registerDefaults teaches v every config key with its built-in default, so
// environment variables resolve for keys no config file mentions.
func registerDefaults(v *viper.Viper) error {
	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("marshal defaults: %w", err)
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("unmarshal defaults: %w", err)
	}
	setDefaults(v, "", tree)

	// keys omitted from the YAML form
	for _, key := range []string{
		"llm.api_key", "llm.base_url", "llm.http_proxy", "llm.https_proxy", "llm.no_proxy",
		"output.xlsx_path", "registry.db_path", "metrics.file",
	} {
		if !v.IsSet(key) {
			v.SetDefault(key, "")
		}
	}
	return nil
}

func setDefaults(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			setDefaults(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// loadConfig resolves flags, environment, config file and defaults into
// one Config. Provider API keys fall back to OPENAI_API_KEY or
// ANTHROPIC_API_KEY.
func loadConfig(v *viper.Viper) (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.LLM.APIKey == "" {
		if env := llm.APIKeyEnv(cfg.LLM.Provider); env != "" {
			cfg.LLM.APIKey = os.Getenv(env)
		}
	}
	if cfg.LLM.BaseURL == "" && strings.EqualFold(cfg.LLM.Provider, "ollama") {
		cfg.LLM.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	if v.GetBool("verbose") {
		cfg.Log.Level = "debug"
		cfg.Output.Verbose = true
	}
	return cfg, nil
}

// newLogger builds the run logger. Every record carries the run id.
func newLogger(cfg model.LogConfig, w io.Writer) (*slog.Logger, string) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	runID := uuid.NewString()
	return slog.New(handler).With("run_id", runID), runID
}

// setup loads config and installs the run logger as the slog default
func setup(w io.Writer) (*model.Config, *slog.Logger, error) {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}
	logger, _ := newLogger(cfg.Log, w)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

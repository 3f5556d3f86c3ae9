package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ppiankov/newsplaces/internal/cache"
	"github.com/ppiankov/newsplaces/internal/extract"
	"github.com/ppiankov/newsplaces/internal/llm"
	"github.com/ppiankov/newsplaces/internal/metrics"
	"github.com/ppiankov/newsplaces/internal/model"
	"github.com/ppiankov/newsplaces/internal/pipeline"
	"github.com/ppiankov/newsplaces/internal/registry"
	"github.com/ppiankov/newsplaces/internal/store"
	"github.com/ppiankov/newsplaces/internal/worker"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract places and activities from OCR'd documents",
	Long: `Run reads the OCR table, asks the configured LLM for the places and
activities in each document, assigns place ids and rewrites the result
table after every document.

Running newsplaces without a command does the same with the default paths.

Example:
  newsplaces
  newsplaces run --input ocr_results.csv --output places_activities.csv
  newsplaces run --llm-provider ollama --llm-model llama3.1:8b
  newsplaces run --xlsx places.xlsx --registry-db places.db`,
	Args: cobra.NoArgs,
	RunE: runExtract,
}

// runFlagKeys maps run flags to config keys
var runFlagKeys = map[string]string{
	"input":        "input.path",
	"output":       "output.path",
	"xlsx":         "output.xlsx_path",
	"llm-provider": "llm.provider",
	"llm-model":    "llm.model",
	"llm-base-url": "llm.base_url",
	"repair-json":  "llm.repair_json",
	"registry-db":  "registry.db_path",
	"metrics-file": "metrics.file",
	"http-proxy":   "llm.http_proxy",
	"https-proxy":  "llm.https_proxy",
}

func init() {
	rootCmd.AddCommand(runCmd)
	addRunFlags(runCmd)
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()

	// Input/output flags
	f.String("input", "ocr_results.csv", "OCR table with filename and extracted_text columns")
	f.String("output", "places_activities.csv", "result table path")
	f.String("xlsx", "", "also write the result table as an Excel workbook")

	// LLM flags
	f.String("llm-provider", "openai", "LLM provider (openai, anthropic, ollama)")
	f.String("llm-model", "gpt-4o-mini", "LLM model name")
	f.String("llm-base-url", "", "custom API endpoint (OpenAI-compatible gateway, Ollama host)")
	f.Bool("repair-json", false, "try to repair responses that are not valid JSON")
	f.Bool("no-cache", false, "disable the completion cache")
	f.String("http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	f.String("https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")

	// Run state
	f.String("registry-db", "", "SQLite file keeping place ids stable across runs")
	f.String("metrics-file", "", "write Prometheus metrics to this file at the end of the run")
}

// bindFlags binds the flags of the executing command, since the root and
// run commands define the same names
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) error {
	for name, key := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("bind --%s: %w", name, err)
		}
	}
	return nil
}

func runExtract(cmd *cobra.Command, args []string) error {
	if err := bindFlags(viper.GetViper(), cmd.Flags(), runFlagKeys); err != nil {
		return err
	}
	cfg, logger, err := setup(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	start := time.Now()
	if noCache, _ := cmd.Flags().GetBool("no-cache"); noCache {
		cfg.Cache.Enabled = false
	}
	ctx := cmd.Context()

	docs, err := store.LoadDocuments(cfg.Input.Path)
	if err != nil {
		return fmt.Errorf("load documents: %w", err)
	}
	logger.Info("run.start",
		"input", cfg.Input.Path,
		"output", cfg.Output.Path,
		"documents", len(docs),
		"provider", cfg.LLM.Provider,
		"model", cfg.LLM.Model,
	)

	m := metrics.New()
	provider, err := buildProvider(cfg, logger)
	if err != nil {
		return err
	}

	extractor := extract.NewRecordExtractor(provider,
		extract.WithRepair(cfg.LLM.RepairJSON),
		extract.WithMetrics(m),
		extract.WithLogger(logger),
	)

	var st store.Store = store.NewCSVStore(cfg.Output.Path)
	if cfg.Output.XLSXPath != "" {
		st = store.MultiStore{st, store.NewXLSXStore(cfg.Output.XLSXPath)}
	}

	opts := []pipeline.Option{
		pipeline.WithMetrics(m),
		pipeline.WithLogger(logger),
		pipeline.WithProgress(cmd.ErrOrStderr()),
	}

	reg := registry.New()
	if cfg.Registry.DBPath != "" {
		db, err := registry.OpenSQLite(ctx, cfg.Registry.DBPath)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		entries, err := db.Load(ctx)
		if err != nil {
			return err
		}
		if reg, err = registry.NewSeeded(entries); err != nil {
			return fmt.Errorf("seed registry from %s: %w", db.Path(), err)
		}
		logger.Info("run.registry.loaded", "path", db.Path(), "places", len(entries))
		opts = append(opts, pipeline.WithRegistrySink(db))
	}

	driver := pipeline.NewDriver(extractor, reg, st, opts...)
	rows, runErr := driver.Run(ctx, docs)

	if err := m.WriteTextfile(cfg.Metrics.File); err != nil {
		logger.Warn("run.metrics.write_failed", "path", cfg.Metrics.File, "error", err)
	}
	if runErr != nil {
		return fmt.Errorf("extraction failed: %w", runErr)
	}

	out := cmd.ErrOrStderr()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No results extracted.")
		return nil
	}
	fmt.Fprintf(out, "✓ %d rows, %d places saved to %s in %s\n", len(rows), driver.Registry().Len(), cfg.Output.Path, elapsed(start))
	return nil
}

// buildProvider creates the configured provider wrapped with the rate
// limiter and, unless disabled, the completion cache
func buildProvider(cfg *model.Config, logger *slog.Logger) (llm.Provider, error) {
	llmCfg := llm.ConfigFromModel(cfg.LLM)
	base, err := llm.NewProvider(llmCfg)
	if err != nil {
		return nil, fmt.Errorf("LLM provider: %w", err)
	}

	var p llm.Provider = llm.NewThrottled(base,
		worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize))

	if cfg.Cache.Enabled {
		c := cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL)
		if n, err := c.Prune(); err != nil {
			logger.Warn("run.cache.prune_failed", "dir", cfg.Cache.Dir, "error", err)
		} else if n > 0 {
			logger.Debug("run.cache.pruned", "entries", n)
		}
		p = llm.NewCached(p, c, llmCfg, logger)
		logger.Debug("run.cache.enabled", "dir", cfg.Cache.Dir, "ttl", cfg.Cache.DiskTTL.String())
	}
	return p, nil
}

// elapsed formats a duration for progress lines
func elapsed(start time.Time) string {
	return time.Since(start).Round(time.Millisecond).String()
}

// Command research-compare runs one deep-research query against every
// configured provider, persists the comparison, and renders report files.
// With -serve it instead exposes stored comparisons over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/research-compare/internal/domain"
	"github.com/tjfontaine/research-compare/internal/orchestrator"
	"github.com/tjfontaine/research-compare/internal/pkg/config"
	"github.com/tjfontaine/research-compare/internal/provider"
	"github.com/tjfontaine/research-compare/internal/provider/gemini"
	"github.com/tjfontaine/research-compare/internal/provider/perplexity"
	"github.com/tjfontaine/research-compare/internal/report"
	"github.com/tjfontaine/research-compare/internal/server"
	"github.com/tjfontaine/research-compare/internal/storage"
	"github.com/tjfontaine/research-compare/internal/storage/sqlite"
	"github.com/tjfontaine/research-compare/internal/telemetry"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	var (
		query      = flag.String("query", "", "research query to run")
		configPath = flag.String("config", "config.yaml", "path to config file")
		outDir     = flag.String("out", "", "report output directory (overrides config)")
		dbPath     = flag.String("db", "", "sqlite database path (overrides config)")
		serve      = flag.Bool("serve", false, "serve stored comparisons over HTTP instead of running a query")
		port       = flag.Int("port", 0, "HTTP port for -serve (overrides config)")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}
	if *dbPath != "" {
		cfg.Storage.SQLite.Path = *dbPath
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	shutdown, err := telemetry.InitTracer("research-compare", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	store, err := sqlite.New(cfg.Storage.SQLite.Path)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	if *serve {
		srv := server.New(cfg.Server.Port, store, logger)
		if err := srv.Start(); err != nil {
			log.Fatalf("Server failed: %v", err)
		}
		return
	}

	if *query == "" {
		fmt.Fprintln(os.Stderr, "usage: research-compare -query \"...\" [-out dir] [-db path]")
		fmt.Fprintln(os.Stderr, "       research-compare -serve [-port n]")
		os.Exit(2)
	}

	providers := buildProviders(cfg, logger)
	if len(providers) == 0 {
		log.Fatalf("No providers configured: set perplexity.api_key and/or gemini.api_key")
	}

	orchOpts := []orchestrator.Option{orchestrator.WithLogger(logger)}
	if d := config.Duration(cfg.Perplexity.Deadline, 0); d > 0 {
		orchOpts = append(orchOpts, orchestrator.WithProviderDeadline("perplexity", d))
	}
	if d := config.Duration(cfg.Gemini.Deadline, 0); d > 0 {
		orchOpts = append(orchOpts, orchestrator.WithProviderDeadline("gemini", d))
	}
	orch := orchestrator.New(orchOpts...)

	req := &domain.ResearchRequest{Query: *query}
	result, err := orch.Compare(context.Background(), req, providers)
	if err != nil {
		log.Fatalf("Comparison failed: %v", err)
	}

	rec, err := storage.RecordFromResult(result)
	if err != nil {
		logger.Error("failed to build storage record", slog.String("error", err.Error()))
	} else if err := store.SaveComparison(context.Background(), rec); err != nil {
		logger.Error("failed to persist comparison", slog.String("error", err.Error()))
	}

	writer := report.NewWriter(cfg.Output.Dir, report.WithLogger(logger))
	if err := writer.Write(result); err != nil {
		logger.Error("failed to render reports", slog.String("error", err.Error()))
	}

	for _, outcome := range result.Outcomes {
		logger.Info("outcome",
			slog.String("provider", outcome.Provider),
			slog.String("status", string(outcome.Status)),
			slog.Duration("duration", outcome.Duration),
			slog.Int("citations", len(outcome.Citations)))
	}
	logger.Info("comparison complete",
		slog.String("comparison_id", result.ID),
		slog.String("output_dir", cfg.Output.Dir),
		slog.Duration("duration", result.Duration))
}

// buildProviders assembles the provider set from config. A provider without
// an API key is skipped with a warning rather than failing the run.
func buildProviders(cfg *config.Config, logger *slog.Logger) []provider.ResearchProvider {
	var providers []provider.ResearchProvider

	if cfg.Perplexity.APIKey != "" {
		opts := []perplexity.Option{perplexity.WithLogger(logger)}
		if cfg.Perplexity.BaseURL != "" {
			opts = append(opts, perplexity.WithAPIBaseURL(cfg.Perplexity.BaseURL))
		}
		if cfg.Perplexity.Model != "" {
			opts = append(opts, perplexity.WithModel(cfg.Perplexity.Model))
		}
		if d := config.Duration(cfg.Perplexity.PollInterval, 0); d > 0 {
			opts = append(opts, perplexity.WithPollInterval(d))
		}
		if cfg.Perplexity.MaxTransientRetries > 0 {
			opts = append(opts, perplexity.WithMaxTransientRetries(cfg.Perplexity.MaxTransientRetries))
		}
		providers = append(providers, perplexity.New(cfg.Perplexity.APIKey, opts...))
	} else {
		logger.Warn("skipping perplexity: no API key configured")
	}

	if cfg.Gemini.APIKey != "" {
		opts := []gemini.Option{gemini.WithLogger(logger)}
		if cfg.Gemini.BaseURL != "" {
			opts = append(opts, gemini.WithAPIBaseURL(cfg.Gemini.BaseURL))
		}
		if cfg.Gemini.Agent != "" {
			opts = append(opts, gemini.WithAgent(cfg.Gemini.Agent))
		}
		if cfg.Gemini.ThinkingSummaries != "" {
			opts = append(opts, gemini.WithThinkingSummaries(cfg.Gemini.ThinkingSummaries))
		}
		if cfg.Gemini.MaxReconnects > 0 {
			opts = append(opts, gemini.WithMaxReconnects(cfg.Gemini.MaxReconnects))
		}
		if d := config.Duration(cfg.Gemini.ReconnectBackoff, 0); d > 0 {
			opts = append(opts, gemini.WithReconnectBackoff(d))
		}
		providers = append(providers, gemini.New(cfg.Gemini.APIKey, opts...))
	} else {
		logger.Warn("skipping gemini: no API key configured")
	}

	return providers
}

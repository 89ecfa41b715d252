// Package main is the entry point for the tongue-service HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/fleveque/tongue-service/internal/config"
	"github.com/fleveque/tongue-service/internal/handler"
	"github.com/fleveque/tongue-service/internal/llm"
	"github.com/fleveque/tongue-service/internal/metrics"
	"github.com/fleveque/tongue-service/internal/provider"
	"github.com/fleveque/tongue-service/internal/server"
	"github.com/fleveque/tongue-service/internal/service"
	"github.com/fleveque/tongue-service/internal/storage"
)

func main() {
	// run() keeps deferred cleanup working; os.Exit skips defers.
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv(config.EnvConfigPath))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	var logger *zap.Logger
	if cfg.Log.Level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	// Sync commonly fails on stdout/stderr; nothing to do about it.
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DatabasePath), 0755); err != nil {
		return fmt.Errorf("creating database directory: %w", err)
	}
	db, err := storage.NewDatabase(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	files, err := storage.NewFileSystem(cfg.Storage.PhotoDir)
	if err != nil {
		return fmt.Errorf("creating photo store: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	calls := storage.NewLLMCallRepository(db)
	clients := visionClients(cfg, logger)
	if len(clients) == 0 {
		logger.Warn("no LLM provider configured; every analysis will fail")
	}
	reports := provider.NewReportProvider(clients, cfg.LLM.RatePerMinute, calls, m, logger)

	checks := map[string]handler.Check{"database": db.PingContext}

	var cache storage.ResultCache = storage.NopCache{}
	if cfg.Cache.Enabled {
		cache, err = storage.NewRedisCache(ctx, cfg.Cache.RedisURL, cfg.Cache.TTL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer cache.Close()
		checks["cache"] = cache.Ping
		logger.Info("result cache enabled", zap.Duration("ttl", cfg.Cache.TTL))
	}

	var archive storage.PhotoArchive
	if cfg.Archive.Enabled {
		a, err := storage.NewMinioArchive(ctx, cfg.Archive.Endpoint, cfg.Archive.Region, cfg.Archive.Bucket,
			cfg.Archive.AccessKey, cfg.Archive.SecretKey, cfg.Archive.UseSSL)
		if err != nil {
			return fmt.Errorf("connecting to photo archive: %w", err)
		}
		archive = a
		logger.Info("photo archive enabled", zap.String("bucket", cfg.Archive.Bucket))
	}

	var thumbs service.Thumbnailer
	if t, err := service.NewBimgThumbnailer(cfg.Image.ThumbnailSize, cfg.Image.ThumbnailBackground); err != nil {
		logger.Warn("thumbnails disabled", zap.Error(err))
	} else {
		thumbs = t
	}

	svc := service.NewAnalysisService(service.Deps{
		Analyses: storage.NewAnalysisRepository(db),
		Calls:    calls,
		Files:    files,
		Reports:  reports,
		Cache:    cache,
		Thumbs:   thumbs,
		Archive:  archive,
		Image:    cfg.Image.Options(),
		Metrics:  m,
		Logger:   logger,
	})

	srv := server.New(cfg, server.Deps{
		Analyses: svc,
		Reader:   svc,
		Checks:   checks,
		Gatherer: reg,
	}, logger)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	// In-flight analyses get the provider timeout to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// visionClients builds the configured providers in fallback order,
// skipping any without an API key.
func visionClients(cfg *config.Config, logger *zap.Logger) []llm.VisionClient {
	var clients []llm.VisionClient
	for _, name := range cfg.LLM.ProviderOrder {
		switch name {
		case "anthropic":
			if cfg.LLM.Anthropic.APIKey == "" {
				logger.Warn("skipping anthropic: no API key")
				continue
			}
			clients = append(clients, llm.NewAnthropicClient(cfg.LLM.Anthropic.APIKey, cfg.LLM.Anthropic.Model, cfg.LLM.MaxTokens))
		case "openai":
			if cfg.LLM.OpenAI.APIKey == "" {
				logger.Warn("skipping openai: no API key")
				continue
			}
			clients = append(clients, llm.NewOpenAIClient(cfg.LLM.OpenAI.APIKey, cfg.LLM.OpenAI.Model, cfg.LLM.MaxTokens, cfg.LLM.OpenAI.BaseURL))
		default:
			logger.Warn("unknown LLM provider", zap.String("provider", name))
			continue
		}
		logger.Info("LLM provider enabled", zap.String("provider", name))
	}
	return clients
}

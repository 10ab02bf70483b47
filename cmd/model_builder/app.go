package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/model-builder/internal/backend"
	"github.com/jonathan/model-builder/internal/cache"
	"github.com/jonathan/model-builder/internal/config"
	"github.com/jonathan/model-builder/internal/dataset"
	"github.com/jonathan/model-builder/internal/db"
	"github.com/jonathan/model-builder/internal/extraction"
	"github.com/jonathan/model-builder/internal/llm"
	"github.com/jonathan/model-builder/internal/logger"
	"github.com/jonathan/model-builder/internal/pipeline"
	"github.com/jonathan/model-builder/internal/training"
)

// loadConfig layers flags over environment variables over the config file,
// then fills what is still unset from the built-in defaults.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var cfg config.Config
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = *loaded
	}
	if err := cfg.FromEnv(); err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("backend-url") {
		cfg.BackendURL = backendURL
	}
	if flags.Changed("project") {
		cfg.ProjectID = projectID
	}
	if flags.Changed("verbose") {
		cfg.Verbose = verbose
	}

	cfg = cfg.MergeWithDefaults(config.Defaults())
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// app holds the collaborators shared by every command
type app struct {
	cfg       config.Config
	log       *logger.Logger
	client    *backend.Client
	catalog   *dataset.Catalog
	extractor *extraction.Extractor
	executor  *training.Executor

	// optional storage; nil when not configured
	cache *cache.Store
	db    *db.DB

	closers []func()
}

// storage selects the optional stores a command wants
type storage struct {
	cache bool
	db    bool
}

func newApp(ctx context.Context, cfg config.Config, want storage) (*app, error) {
	level := cfg.LogLevel
	if !cfg.Verbose && level == "info" {
		// keep the console readable; progress is printed separately
		level = "warn"
	}
	log, err := logger.New(logger.Options{Mode: cfg.LogMode, Level: level, File: cfg.LogFile})
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log}
	a.closers = append(a.closers, log.Sync)

	a.client, err = backend.New(backend.Options{
		BaseURL:  cfg.BackendURL,
		APIToken: cfg.APIToken,
		Timeout:  cfg.Timeout(),
		Logger:   log,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	if want.cache && cfg.RedisAddr != "" {
		store, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, SessionTTL: cfg.TTL(), Logger: log})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.cache = store
		a.closers = append(a.closers, func() { _ = store.Close() })
	}
	if a.cache != nil {
		a.catalog = dataset.NewCatalog(a.client, a.cache, log)
	} else {
		a.catalog = dataset.NewCatalog(a.client, nil, log)
	}
	a.closers = append(a.closers, a.catalog.Wait)

	if want.db && cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, database.Close)
		if err := database.Migrate(ctx); err != nil {
			a.Close()
			return nil, err
		}
		a.db = database
	}

	source, err := a.extractionSource(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.extractor = extraction.New(source, log)
	a.executor = training.NewExecutor(a.client, cfg.DefaultDatasetID, log)
	return a, nil
}

// extractionSource picks the backend or a Gemini model per configuration
func (a *app) extractionSource(ctx context.Context) (extraction.Source, error) {
	if a.cfg.ExtractionProvider != config.ProviderGemini {
		return a.client, nil
	}
	tier, err := llm.ParseTier(a.cfg.GeminiTier)
	if err != nil {
		return nil, err
	}
	client, err := llm.NewClient(ctx, llm.DefaultConfig(), a.cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	return extraction.NewLLMSource(client, tier, a.catalog), nil
}

// resolver returns a dataset resolver for one project
func (a *app) resolver(projectID int) pipeline.DatasetResolver {
	return dataset.NewResolver(a.client, a.catalog, projectID, a.log)
}

// orchestrator creates a session orchestrator wired to the app
func (a *app) orchestrator(opts pipeline.Options) (*pipeline.Orchestrator, error) {
	projectID := opts.ProjectID
	if opts.Session != nil {
		projectID = opts.Session.ProjectID
	}
	opts.Resolver = a.resolver(projectID)
	opts.Extractor = a.extractor
	opts.Executor = a.executor
	opts.Logger = a.log
	return pipeline.New(opts)
}

// Close releases resources in reverse order of acquisition
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/model-builder/internal/pipeline"
	"github.com/jonathan/model-builder/internal/server"
	"github.com/jonathan/model-builder/internal/server/ratelimit"
)

var (
	servePort    int
	serveOrigins string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the build session HTTP API",
	Long: `Start an HTTP server that exposes build sessions over REST with progress
streamed as server-sent events. Sessions are cached in Redis when REDIS_ADDR is
set and can be saved to PostgreSQL when DATABASE_URL is set.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from config, 8080)")
	serveCmd.Flags().StringVar(&serveOrigins, "allowed-origins", "", "Comma-separated CORS origins (* for any)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	a, err := newApp(ctx, cfg, storage{cache: true, db: true})
	if err != nil {
		return err
	}
	defer a.Close()

	deps := server.Deps{
		Models:    a.client,
		Datasets:  a.catalog,
		Resolver:  func(projectID int) pipeline.DatasetResolver { return a.resolver(projectID) },
		Extractor: a.extractor,
		Executor:  a.executor,
		Logger:    a.log,
	}
	// leave the interfaces nil rather than holding a nil pointer
	if a.db != nil {
		deps.Store = a.db
	}
	if a.cache != nil {
		deps.Cache = a.cache
	}

	srv, err := server.New(server.Config{
		Port:           cfg.Port,
		ProjectID:      cfg.ProjectID,
		ModelName:      cfg.ModelName,
		AllowedOrigins: splitList(serveOrigins),
		RateLimit:      ratelimit.FromEnv(),
	}, deps)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Start()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

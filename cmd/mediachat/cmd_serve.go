package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"mediachat/internal/backend"

	"github.com/spf13/cobra"
)

var (
	serveAddr     string
	serveDB       string
	serveProvider string
	serveModel    string
	serveNoSeed   bool
)

// serveCmd runs the reference assistant service
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reference assistant service",
	Long: `Runs an HTTP service implementing POST /api/chat backed by a sqlite
media catalog. The echo provider answers from the catalog without a model;
openai and gemini forward the conversation to the respective API.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config, :8080)")
	serveCmd.Flags().StringVar(&serveDB, "db", "", "Catalog database path")
	serveCmd.Flags().StringVar(&serveProvider, "provider", "", "Assistant provider: echo, openai, gemini")
	serveCmd.Flags().StringVar(&serveModel, "model", "", "Model name for the provider")
	serveCmd.Flags().BoolVar(&serveNoSeed, "no-seed", false, "Do not load demo records into an empty catalog")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveDB != "" {
		cfg.Server.DatabasePath = serveDB
	}
	if serveProvider != "" {
		cfg.Server.LLM.Provider = serveProvider
	}
	if serveModel != "" {
		cfg.Server.LLM.Model = serveModel
	}
	if serveNoSeed {
		cfg.Server.SeedDemo = false
	}
	cfg.Server.LLM.ResolveProvider()
	if err := cfg.ValidateServer(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(cmd.OutOrStdout(), "mediachat service listening on %s (provider=%s)\n", cfg.Server.Addr, cfg.Server.LLM.Provider)
	return backend.Serve(ctx, cfg.Server)
}

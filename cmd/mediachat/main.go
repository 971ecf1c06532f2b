package main

import (
	"fmt"
	"os"

	"mediachat/internal/config"
	"mediachat/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose    bool
	configPath string
	endpoint   string
	locale     string

	// Resolved configuration
	cfg *config.Config

	// Logger for non-interactive commands
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "mediachat",
	Short: "mediachat - conversational front-end for a media catalog assistant",
	Long: `mediachat talks to an assistant service over POST /api/chat.

Run without arguments to start the interactive chat interface. Use
"mediachat serve" to run the reference assistant service locally.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(); err != nil {
			return err
		}

		// The TUI owns the terminal, so it only logs to file.
		if !cmd.HasParent() {
			return logging.Initialize(cfg.Logging)
		}

		zc := zap.NewProductionConfig()
		zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.UseLogger(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logging.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInteractiveChat()
	},
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig() error {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	c, err := config.Load(path)
	if err != nil {
		return err
	}
	if endpoint != "" {
		c.Client.Endpoint = endpoint
	}
	if locale != "" {
		c.Client.Locale = locale
	}
	if verbose {
		c.Logging.DebugMode = true
		c.Logging.Level = "debug"
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = c
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: ~/.mediachat/config.yaml)")
	rootCmd.PersistentFlags().StringVarP(&endpoint, "endpoint", "e", "", "Assistant service base URL")
	rootCmd.PersistentFlags().StringVar(&locale, "locale", "", "Message locale (es, en)")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(suggestionsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

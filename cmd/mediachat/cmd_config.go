package main

import (
	"fmt"
	"os"

	"mediachat/internal/config"

	"github.com/spf13/cobra"
)

var configForce bool

// configCmd groups configuration file helpers
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the mediachat configuration file",
}

// configInitCmd writes the default configuration
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config file",
	Long: `Writes the default configuration to --config (default ~/.mediachat/config.yaml).
Flags given on the command line, such as --endpoint and --locale, are
written too. An existing file is left untouched unless --force is set.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing config file")
	configCmd.AddCommand(configInitCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
	}

	// Keys stay in the environment, never on disk.
	c := *cfg
	c.Server.LLM.APIKey = ""
	if err := c.Save(path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
	return nil
}

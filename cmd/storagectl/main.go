package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	appconfig "github.com/wolfman30/storage-assistant/internal/config"
	"github.com/wolfman30/storage-assistant/pkg/logging"
)

var rootCmd = &cobra.Command{
	Use:           "storagectl",
	Short:         "Operator tooling for the storage assistant",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// loadConfig is swapped in tests.
var loadConfig = appconfig.Load

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(faqsCmd)
}

func cliLogger(cfg *appconfig.Config) *logging.Logger {
	level := cfg.LogLevel
	if level == "" || level == "info" {
		level = "warn"
	}
	return logging.New(level)
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"rag-docqa-platform/internal/config"
)

var flagConfigFile string

var rootCmd = &cobra.Command{
	Use:          "ragctl",
	Short:        "Run document chunking and retrieval locally",
	SilenceUsage: true,
	Long: `ragctl runs the same extraction, chunking and TF-IDF retrieval as the
API server against files on disk, without Redis, MongoDB or a model key.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigFile, "config", "", "YAML retrieval overlay (defaults to RETRIEVAL_CONFIG_FILE)")
}

// loadConfig reads the environment and applies the --config overlay on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	if flagConfigFile == "" {
		return cfg, nil
	}
	rf, err := config.LoadRetrievalFile(flagConfigFile)
	if err != nil {
		return nil, err
	}
	if err := rf.Apply(cfg); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

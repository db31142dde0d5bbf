package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"rag-docqa-platform/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the retrieval YAML overlay",
}

var configInitCmd = &cobra.Command{
	Use:   "init <path>",
	Short: "Write the current retrieval settings to a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := config.SaveRetrievalFile(args[0], cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", args[0])
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

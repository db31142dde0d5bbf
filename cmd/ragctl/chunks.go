package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"rag-docqa-platform/services"
)

var flagChunksJSON bool

var chunksCmd = &cobra.Command{
	Use:   "chunks <file>",
	Short: "Print the pages and chunks extracted from a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runChunks,
}

func init() {
	chunksCmd.Flags().BoolVar(&flagChunksJSON, "json", false, "Print chunks as JSON")
	rootCmd.AddCommand(chunksCmd)
}

func runChunks(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	chunker, err := cfg.Chunker()
	if err != nil {
		return err
	}

	path := args[0]
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	name := filepath.Base(path)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	extracted, err := services.NewDocumentExtractor(cfg.ExtractTimeout).Extract(ctx, name, content)
	if err != nil {
		return err
	}
	chunks := chunker.Chunk(name, extracted.Pages)

	out := cmd.OutOrStdout()
	if flagChunksJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(chunks)
	}

	fmt.Fprintf(out, "%s: %d pages, %d chunks (size %d, overlap %d)\n",
		name, len(extracted.Pages), len(chunks), chunker.ChunkSize(), chunker.Overlap())
	for i, c := range chunks {
		fmt.Fprintf(out, "#%d page %d [%d:%d] %s\n", i, c.PageNumber, c.StartPos, c.EndPos, preview(c.Text, 60))
	}
	return nil
}

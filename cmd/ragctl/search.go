package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"rag-docqa-platform/internal/retrieval"
	"rag-docqa-platform/services"
)

var (
	flagSearchDir       string
	flagSearchK         int
	flagSearchThreshold float64
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Index every supported file in --dir and search it",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().StringVar(&flagSearchDir, "dir", ".", "Directory holding the documents")
	searchCmd.Flags().IntVar(&flagSearchK, "k", 0, "Number of results (defaults to TOP_K)")
	searchCmd.Flags().Float64Var(&flagSearchThreshold, "threshold", -1, "Minimum blended score (defaults to SIMILARITY_THRESHOLD)")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	chunker, err := cfg.Chunker()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	docs, err := loadDirectory(ctx, flagSearchDir, services.NewDocumentExtractor(cfg.ExtractTimeout), chunker)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no supported documents in %s", flagSearchDir)
	}

	buildCtx, cancel := context.WithTimeout(ctx, cfg.BuildTimeout)
	defer cancel()
	bundle, err := retrieval.NewBuilder().Build(buildCtx, docs)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}

	opts := cfg.SearchOptions()
	if flagSearchK > 0 {
		opts.TopK = flagSearchK
	}
	if flagSearchThreshold >= 0 {
		opts.Threshold = flagSearchThreshold
	}

	res := retrieval.SearchDetailed(ctx, strings.Join(args, " "), bundle, opts)
	if len(res.Fragments) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No results (%s, best score %.4f)\n", res.Outcome, res.MaxScore)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tDOCUMENT\tPAGE\tSPAN\tTEXT")
	for _, f := range res.Fragments {
		fmt.Fprintf(w, "%.4f\t%s\t%d\t%d-%d\t%s\n",
			f.Score, f.DocumentName, f.PageNumber, f.StartPos, f.EndPos, preview(f.Text, 80))
	}
	return w.Flush()
}

// loadDirectory extracts and chunks the supported files of dir in name order.
func loadDirectory(ctx context.Context, dir string, extractor *services.DocumentExtractor, chunker *retrieval.Chunker) ([]retrieval.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var docs []retrieval.Document
	for _, e := range entries {
		if e.IsDir() || !extractor.Supported(e.Name()) {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		extracted, err := extractor.Extract(ctx, e.Name(), content)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", e.Name(), err)
			continue
		}
		docs = append(docs, retrieval.Document{
			Name:   e.Name(),
			Chunks: chunker.Chunk(e.Name(), extracted.Pages),
		})
	}
	return docs, nil
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

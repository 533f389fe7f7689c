package cmd

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/notevec/notevec/internal/search"
)

func newSearchCmd() *cobra.Command {
	var topK int
	var modeFlag string
	var root string

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed corpus",
		Long: `Search embeds the query and returns the nearest chunks. By default
each match is expanded with up to two neighboring chunks on either side;
use --context to return bare chunks or whole documents instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}
			if topK <= 0 {
				topK = cfg.Search.TopK
			}
			if modeFlag == "" {
				modeFlag = cfg.Search.ContextMode
			}
			mode, err := search.ParseMode(modeFlag)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			embedder, err := buildEmbedder(ctx, cfg)
			if err != nil {
				return err
			}
			defer embedder.Close()

			st, err := openStore(cfg, embedder.Dimensions())
			if err != nil {
				return err
			}
			defer st.Close()

			col, err := st.Open(ctx, cfg.Collection.Name)
			if err != nil {
				return err
			}

			searcher := search.NewSearcher(embedder, slog.Default())
			results, err := searcher.Search(ctx, col, query, topK, mode)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No results.")
				return nil
			}

			out := cmd.OutOrStdout()
			for i, r := range results {
				fmt.Fprintf(out, "%d. %s (chunk %d, score %.3f)\n", i+1, r.Title, r.Seq, r.Score)
				fmt.Fprintln(out, indent(r.Content, "   "))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 0, "Number of results (default from config)")
	cmd.Flags().StringVar(&modeFlag, "context", "", "Context mode: chunk, adjacent, or document")
	cmd.Flags().StringVar(&root, "root", ".", "Corpus root (for config resolution)")
	return cmd
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}

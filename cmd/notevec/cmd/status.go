package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/notevec/notevec/internal/store"
)

func newStatusCmd() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show collections and their sync state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}

			// Dimensions are irrelevant for metadata reads.
			st, err := openStore(cfg, 1)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			names, err := st.List(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(names) == 0 {
				fmt.Fprintln(out, "No collections. Run 'notevec index' first.")
				return nil
			}

			for _, name := range names {
				col, err := st.Open(ctx, name)
				if err != nil {
					return err
				}
				meta, err := col.Metadata(ctx)
				if err != nil {
					return err
				}
				count, err := col.Count(ctx)
				if err != nil {
					return err
				}

				fmt.Fprintf(out, "%s\n", name)
				if desc := meta[store.MetaDescription]; desc != "" {
					fmt.Fprintf(out, "  description:   %s\n", desc)
				}
				fmt.Fprintf(out, "  documents:     %s\n", orDash(meta[store.MetaDocCount]))
				fmt.Fprintf(out, "  chunks:        %d\n", count)
				fmt.Fprintf(out, "  model:         %s\n", orDash(meta[store.MetaEmbeddingModel]))
				fmt.Fprintf(out, "  schema:        %s\n", orDash(meta[store.MetaSchemaVersion]))
				fmt.Fprintf(out, "  last synced:   %s\n", orDash(meta[store.MetaUpdatedAt]))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "Corpus root (for config resolution)")
	return cmd
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/notevec/notevec/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var root string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the corpus and re-sync on changes",
		Long: `Watch runs an initial sync, then monitors the corpus root for
file changes and re-syncs after each debounced burst of events.
Stop with Ctrl-C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			stats, err := runIndex(ctx, cfg, false)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Initial sync: +%d ~%d -%d (%d unchanged)\n",
				stats.Added, stats.Updated, stats.Deleted, stats.Unchanged)
			fmt.Fprintf(out, "Watching %s for changes...\n", cfg.Corpus.Root)

			w := watcher.New(cfg.Corpus.Root, cfg.Watch.Debounce.Std(), slog.Default())
			err = w.Run(ctx, func(ctx context.Context) error {
				stats, err := runIndex(ctx, cfg, false)
				if err != nil {
					return err
				}
				if stats.Added+stats.Updated+stats.Deleted > 0 {
					fmt.Fprintf(out, "Synced: +%d ~%d -%d\n",
						stats.Added, stats.Updated, stats.Deleted)
				}
				return nil
			})
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "Corpus root to watch")
	return cmd
}

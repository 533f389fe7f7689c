package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/notevec/notevec/configs"
	"github.com/notevec/notevec/internal/config"
)

func newInitCmd() *cobra.Command {
	var (
		root  string
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file to the corpus root",
		Long: `Init writes a commented ` + config.DefaultFileName + ` template into the
corpus root. Edit it to tune file selection, chunking, and the
embedding provider, then run 'notevec index'.`,
		Example: `  # Initialize the current directory
  notevec init

  # Initialize another corpus
  notevec init --root ~/notes

  # Overwrite an existing config
  notevec init --force`,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := filepath.Join(root, config.DefaultFileName)
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
				return fmt.Errorf("write config template: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "Corpus root to initialize")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

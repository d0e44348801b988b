package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/f13-cli/internal/loader"
	"github.com/sells-group/f13-cli/internal/staging"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load a staging CSV into the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("load"); err != nil {
			return err
		}

		from, _ := cmd.Flags().GetString("from")
		if from == "" {
			from = cfg.Pipeline.StagingPath
		}

		managers, err := staging.ReadFile(from)
		if err != nil {
			return err
		}

		st, err := initStore(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := loader.New(st).Load(ctx, managers)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintf(w, "Source:\t%s\n", from)
		formatLoadStats(w, stats)
		_ = w.Flush()
		return err
	},
}

func init() {
	loadCmd.Flags().String("from", "", "staging CSV path (default from config)")
	rootCmd.AddCommand(loadCmd)
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/f13-cli/internal/fetcher"
	"github.com/sells-group/f13-cli/internal/resolve"
)

var tickersCmd = &cobra.Command{
	Use:   "tickers",
	Short: "Download the exchange listings and write the name-to-ticker reference table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = cfg.Resolver.ReferencePath
		}
		if out == "" {
			out = "name_ticker_mapping.csv"
		}

		f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			UserAgent:  cfg.EDGAR.UserAgent,
			Timeout:    cfg.EDGAR.Timeout(),
			MaxRetries: cfg.EDGAR.MaxRetries,
		})
		table, err := resolve.FetchReferenceTable(cmd.Context(), f, cfg.Resolver.NasdaqURL, cfg.Resolver.OtherURL)
		if err != nil {
			return err
		}
		if err := table.SaveFile(out); err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "Wrote %d entries to %s\n", table.Len(), out)
		return nil
	},
}

func init() {
	tickersCmd.Flags().String("out", "", "output CSV path (default resolver.reference_path or name_ticker_mapping.csv)")
	rootCmd.AddCommand(tickersCmd)
}

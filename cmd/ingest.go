package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/f13-cli/internal/config"
	"github.com/sells-group/f13-cli/internal/edgar"
	"github.com/sells-group/f13-cli/internal/fetcher"
	"github.com/sells-group/f13-cli/internal/loader"
	"github.com/sells-group/f13-cli/internal/marketdata"
	"github.com/sells-group/f13-cli/internal/model"
	"github.com/sells-group/f13-cli/internal/pipeline"
	"github.com/sells-group/f13-cli/internal/resolve"
	"github.com/sells-group/f13-cli/internal/staging"
	"github.com/sells-group/f13-cli/internal/store"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch 13F filings, aggregate them and load the store",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cmd.Flags().Changed("limit") {
			cfg.Pipeline.MaxFilers, _ = cmd.Flags().GetInt("limit")
		}
		if cmd.Flags().Changed("concurrency") {
			cfg.Pipeline.Concurrency, _ = cmd.Flags().GetInt("concurrency")
		}
		if skip, _ := cmd.Flags().GetBool("skip-market"); skip {
			cfg.Market.Enabled = false
		}
		noLoad, _ := cmd.Flags().GetBool("no-load")
		exportPath, _ := cmd.Flags().GetString("export")

		if err := cfg.Validate("ingest"); err != nil {
			return err
		}
		if !noLoad {
			if err := cfg.Validate("store"); err != nil {
				return err
			}
		}

		orch, err := buildOrchestrator(ctx, cfg)
		if err != nil {
			return err
		}
		orch.OnProgress(func(p pipeline.Progress) {
			fmt.Fprintf(os.Stderr, "[%d] %s: %d filings, %d holdings\n", p.Processed, p.CIK, p.Filings, p.Holdings)
		})

		var st store.Store
		if !noLoad {
			st, err = initStore(ctx, cfg.Store)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		sum, err := runIngest(ctx, orch, st, exportPath)
		if sum != nil {
			formatIngestSummary(os.Stdout, sum)
		}
		return err
	},
}

func init() {
	ingestCmd.Flags().Int("limit", 0, "max filers to process, 0 for unlimited (default from config)")
	ingestCmd.Flags().Int("concurrency", 1, "filers processed in parallel (default from config)")
	ingestCmd.Flags().Bool("skip-market", false, "skip market metadata lookups")
	ingestCmd.Flags().String("export", "", "write the staging CSV to this path")
	ingestCmd.Flags().Bool("no-load", false, "do not write to the store")
	rootCmd.AddCommand(ingestCmd)
}

// buildOrchestrator wires the EDGAR client, resolver and enricher.
func buildOrchestrator(ctx context.Context, c *config.Config) (*pipeline.Orchestrator, error) {
	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:  c.EDGAR.UserAgent,
		Timeout:    c.EDGAR.Timeout(),
		MaxRetries: c.EDGAR.MaxRetries,
		HostRates:  fetcher.SECHostRates(c.EDGAR.RatePerSec),
	})
	client := edgar.NewClient(f, c.EDGAR)

	table, err := loadReferenceTable(ctx, f, c.Resolver)
	if err != nil {
		return nil, err
	}
	resolver := resolve.NewResolver(table, resolve.WithThreshold(c.Resolver.Threshold))

	var market pipeline.MarketEnricher
	if c.Market.Enabled {
		market = marketdata.NewEnricher(c.Market, c.EDGAR.UserAgent)
	}

	return pipeline.New(client, client, client, resolver, market, pipeline.OptionsFromConfig(c.Pipeline)), nil
}

// loadReferenceTable reads the saved reference file when one is configured
// and present, otherwise downloads both listings.
func loadReferenceTable(ctx context.Context, f fetcher.Fetcher, rc config.ResolverConfig) (*resolve.ReferenceTable, error) {
	if rc.ReferencePath != "" {
		if _, err := os.Stat(rc.ReferencePath); err == nil {
			return resolve.LoadReferenceFile(rc.ReferencePath)
		}
		zap.L().Info("reference file missing, downloading listings", zap.String("path", rc.ReferencePath))
	}
	return resolve.FetchReferenceTable(ctx, f, rc.NasdaqURL, rc.OtherURL)
}

// ingestSummary reports the outcome of one ingest run.
type ingestSummary struct {
	RunID      string
	State      model.RunState
	Filers     int
	Filings    int
	Holdings   int
	ExportPath string
	Loaded     *loader.Stats
	Elapsed    time.Duration
}

// runIngest runs the orchestrator, then exports and loads the aggregate.
// st may be nil to skip loading and the run log.
func runIngest(ctx context.Context, orch *pipeline.Orchestrator, st store.Store, exportPath string) (*ingestSummary, error) {
	log := zap.L().With(zap.String("component", "ingest"), zap.String("run_id", orch.RunID()))
	// The run log is written even after an interrupt.
	logCtx := context.WithoutCancel(ctx)

	if st != nil {
		if err := st.StartRun(logCtx, orch.RunID(), time.Now().UTC()); err != nil {
			log.Warn("ingest: failed to record run start", zap.Error(err))
		}
	}
	finish := func(state model.RunState, counts store.RunCounts, runErr error) {
		if st == nil {
			return
		}
		msg := ""
		if runErr != nil {
			msg = runErr.Error()
		}
		if err := st.FinishRun(logCtx, orch.RunID(), state, counts, msg); err != nil {
			log.Warn("ingest: failed to record run finish", zap.Error(err))
		}
	}

	res, err := orch.Run(ctx)
	sum := &ingestSummary{RunID: orch.RunID(), State: res.State}
	sum.Filers, sum.Filings, sum.Holdings = res.Counts()
	sum.Elapsed = res.FinishedAt.Sub(res.StartedAt)
	if err != nil {
		finish(model.RunStateFailed, store.RunCounts{}, err)
		return sum, err
	}

	if exportPath != "" {
		if err := staging.WriteFile(exportPath, res.Managers); err != nil {
			finish(model.RunStateFailed, store.RunCounts{}, err)
			return sum, eris.Wrap(err, "ingest: export")
		}
		sum.ExportPath = exportPath
		log.Info("ingest: staging file written", zap.String("path", exportPath))
	}

	counts := store.RunCounts{Filers: int64(sum.Filers)}
	if st != nil {
		stats, err := loader.New(st).Load(ctx, res.Managers)
		sum.Loaded = &stats
		counts.Filings = int64(stats.Filings)
		counts.Holdings = int64(stats.Holdings)
		if err != nil {
			finish(model.RunStateFailed, counts, err)
			return sum, err
		}
	}

	finish(model.RunStateDone, counts, nil)
	return sum, nil
}

func formatIngestSummary(out io.Writer, s *ingestSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Run:\t%s\n", s.RunID)
	_, _ = fmt.Fprintf(w, "State:\t%s\n", s.State)
	_, _ = fmt.Fprintf(w, "Filers:\t%d\n", s.Filers)
	_, _ = fmt.Fprintf(w, "Filings:\t%d\n", s.Filings)
	_, _ = fmt.Fprintf(w, "Holdings:\t%d\n", s.Holdings)
	if s.ExportPath != "" {
		_, _ = fmt.Fprintf(w, "Exported:\t%s\n", s.ExportPath)
	}
	if s.Loaded != nil {
		formatLoadStats(w, *s.Loaded)
	}
	_, _ = fmt.Fprintf(w, "Elapsed:\t%s\n", s.Elapsed.Round(time.Millisecond))
	_ = w.Flush()
}

func formatLoadStats(w io.Writer, s loader.Stats) {
	_, _ = fmt.Fprintf(w, "Loaded filings:\t%d\n", s.Filings)
	_, _ = fmt.Fprintf(w, "Loaded holdings:\t%d\n", s.Holdings)
	if s.SkippedHoldings > 0 {
		_, _ = fmt.Fprintf(w, "Skipped holdings:\t%d\n", s.SkippedHoldings)
	}
	if s.FailedHoldings+s.FailedFilings > 0 {
		_, _ = fmt.Fprintf(w, "Failed:\t%d filings, %d holdings\n", s.FailedFilings, s.FailedHoldings)
	}
}

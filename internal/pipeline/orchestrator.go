// Package pipeline drives a 13F ingestion run: it enumerates filers, fetches
// their filings and holdings, resolves tickers, enriches market metadata and
// aggregates the result per manager.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/f13-cli/internal/config"
	"github.com/sells-group/f13-cli/internal/model"
)

// FilerSource enumerates the filer directory.
type FilerSource interface {
	ListFilers(ctx context.Context) ([]model.FilerIdentity, error)
}

// FilingSource lists the target filings for one filer. Failures yield an
// empty slice.
type FilingSource interface {
	ListFilings(ctx context.Context, cik string) []model.FilingRecord
}

// HoldingsExtractor parses the holdings of one filing document.
type HoldingsExtractor interface {
	ExtractHoldings(ctx context.Context, url string) []model.HoldingRecord
}

// TickerResolver maps an issuer name to a ticker.
type TickerResolver interface {
	Resolve(name string) model.ResolvedEntity
}

// MarketEnricher looks up market metadata for a ticker.
type MarketEnricher interface {
	Enrich(ctx context.Context, ticker string) model.MarketMetadata
}

// ErrNoFilers is returned when the directory yields nothing to process.
var ErrNoFilers = eris.New("pipeline: filer directory is empty")

// Options controls a run.
type Options struct {
	RunID string
	// MaxFilers bounds how many filers are started. 0 means unlimited.
	MaxFilers     int
	Concurrency   int
	ProgressEvery int
}

// OptionsFromConfig builds Options from the pipeline config section.
func OptionsFromConfig(cfg config.PipelineConfig) Options {
	return Options{
		MaxFilers:     cfg.MaxFilers,
		Concurrency:   cfg.Concurrency,
		ProgressEvery: cfg.ProgressEvery,
	}
}

// Progress is reported after each filer completes.
type Progress struct {
	RunID     string
	CIK       string
	Processed int
	Budget    int
	Filings   int
	Holdings  int
}

// Result is the aggregate of a run.
type Result struct {
	RunID      string
	State      model.RunState
	Managers   []model.ManagerFilings
	StartedAt  time.Time
	FinishedAt time.Time
}

// Counts returns the number of filers, filings and holdings aggregated.
func (r *Result) Counts() (filers, filings, holdings int) {
	for _, m := range r.Managers {
		filers++
		filings += len(m.Filings)
		for _, f := range m.Filings {
			holdings += len(f.Holdings)
		}
	}
	return filers, filings, holdings
}

// Orchestrator runs the ingestion state machine.
type Orchestrator struct {
	filers   FilerSource
	filings  FilingSource
	holdings HoldingsExtractor
	resolver TickerResolver
	market   MarketEnricher
	opts     Options

	onProgress func(Progress)
	onState    func(model.RunState)
}

// New creates an Orchestrator. A nil market enricher leaves every market
// field unknown.
func New(filers FilerSource, filings FilingSource, holdings HoldingsExtractor, resolver TickerResolver, market MarketEnricher, opts Options) *Orchestrator {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.MaxFilers < 0 {
		opts.MaxFilers = 0
	}
	return &Orchestrator{
		filers:   filers,
		filings:  filings,
		holdings: holdings,
		resolver: resolver,
		market:   market,
		opts:     opts,
	}
}

// RunID returns the identifier used for this orchestrator's run.
func (o *Orchestrator) RunID() string {
	return o.opts.RunID
}

// OnProgress registers a callback invoked after each filer. It may be called
// from several goroutines when Concurrency > 1.
func (o *Orchestrator) OnProgress(fn func(Progress)) {
	o.onProgress = fn
}

// OnStateChange registers a callback for run-level state transitions.
func (o *Orchestrator) OnStateChange(fn func(model.RunState)) {
	o.onState = fn
}

// Run executes one ingestion run. The returned Result is non-nil even on
// failure and carries the terminal state.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("run_id", o.opts.RunID))
	res := &Result{RunID: o.opts.RunID, StartedAt: time.Now().UTC(), Managers: []model.ManagerFilings{}}

	setState := func(s model.RunState) {
		res.State = s
		log.Debug("pipeline: state", zap.String("state", string(s)))
		if o.onState != nil {
			o.onState(s)
		}
	}
	fail := func(err error) (*Result, error) {
		setState(model.RunStateFailed)
		res.FinishedAt = time.Now().UTC()
		log.Error("pipeline: run failed", zap.Error(err))
		return res, err
	}

	setState(model.RunStateInit)
	setState(model.RunStateEnumeratingFilers)

	filers, err := o.filers.ListFilers(ctx)
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: list filers"))
	}
	if len(filers) == 0 {
		return fail(ErrNoFilers)
	}
	log.Info("pipeline: filers enumerated",
		zap.Int("filers", len(filers)),
		zap.Int("max_filers", o.opts.MaxFilers),
		zap.Int("concurrency", o.opts.Concurrency),
	)

	budget := newBudget(o.opts.MaxFilers)
	var (
		mu        sync.Mutex
		processed atomic.Int64
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.opts.Concurrency)

	for _, filer := range filers {
		if gCtx.Err() != nil {
			break
		}
		if !budget.take() {
			log.Info("pipeline: fetch budget consumed", zap.Int("max_filers", o.opts.MaxFilers))
			break
		}
		g.Go(func() error {
			mf := o.processFiler(gCtx, filer)

			mu.Lock()
			res.Managers = append(res.Managers, mf)
			mu.Unlock()

			n := int(processed.Add(1))
			o.reportProgress(log, mf, n)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return fail(eris.Wrap(err, "pipeline: run cancelled"))
	}

	sort.SliceStable(res.Managers, func(i, j int) bool {
		return res.Managers[i].Filer.CIK < res.Managers[j].Filer.CIK
	})
	setState(model.RunStateAggregated)

	filerCount, filingCount, holdingCount := res.Counts()
	res.FinishedAt = time.Now().UTC()
	setState(model.RunStateDone)
	log.Info("pipeline: run complete",
		zap.Int("filers", filerCount),
		zap.Int("filings", filingCount),
		zap.Int("holdings", holdingCount),
		zap.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)),
	)
	return res, nil
}

// processFiler runs the per-filer stages. A panic anywhere inside yields the
// filer with zero filings.
func (o *Orchestrator) processFiler(ctx context.Context, filer model.FilerIdentity) (mf model.ManagerFilings) {
	log := zap.L().With(
		zap.String("component", "pipeline"),
		zap.String("run_id", o.opts.RunID),
		zap.String("cik", filer.CIK),
	)
	stage := func(s model.RunState) {
		log.Debug("pipeline: filer stage", zap.String("state", string(s)))
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("pipeline: filer failed", zap.String("panic", fmt.Sprint(r)))
			mf = model.ManagerFilings{Filer: filer, Market: model.UnknownMarket(), Filings: []model.FilingRecord{}}
		}
	}()

	stage(model.RunStateFetchingIndex)
	filings := o.filings.ListFilings(ctx, filer.CIK)
	if filings == nil {
		filings = []model.FilingRecord{}
	}

	stage(model.RunStateExtractingHoldings)
	for i := range filings {
		h := o.holdings.ExtractHoldings(ctx, filings[i].DocumentURL)
		if h == nil {
			h = []model.HoldingRecord{}
		}
		filings[i].Holdings = h
	}

	stage(model.RunStateResolving)
	for i := range filings {
		for j := range filings[i].Holdings {
			h := &filings[i].Holdings[j]
			h.Entity = o.resolver.Resolve(h.IssuerName)
		}
	}

	stage(model.RunStateEnriching)
	for i := range filings {
		for j := range filings[i].Holdings {
			h := &filings[i].Holdings[j]
			h.Market = o.enrich(ctx, h.Entity.TickerPtr())
		}
	}

	var filerTicker *string
	if filer.Ticker != "" {
		filerTicker = &filer.Ticker
	}
	return model.ManagerFilings{
		Filer:   filer,
		Market:  o.enrich(ctx, filerTicker),
		Filings: filings,
	}
}

func (o *Orchestrator) enrich(ctx context.Context, ticker *string) model.MarketMetadata {
	if o.market == nil || ticker == nil {
		return model.UnknownMarket()
	}
	return o.market.Enrich(ctx, *ticker)
}

func (o *Orchestrator) reportProgress(log *zap.Logger, mf model.ManagerFilings, n int) {
	holdings := 0
	for _, f := range mf.Filings {
		holdings += len(f.Holdings)
	}
	p := Progress{
		RunID:     o.opts.RunID,
		CIK:       mf.Filer.CIK,
		Processed: n,
		Budget:    o.opts.MaxFilers,
		Filings:   len(mf.Filings),
		Holdings:  holdings,
	}
	if o.onProgress != nil {
		o.onProgress(p)
	}
	if every := o.opts.ProgressEvery; every > 0 && n%every == 0 {
		log.Info("pipeline: progress",
			zap.Int("processed", n),
			zap.Int("max_filers", o.opts.MaxFilers),
		)
	}
}

// Package loader maps aggregated filings onto the relational store.
package loader

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/f13-cli/internal/marketdata"
	"github.com/sells-group/f13-cli/internal/model"
	"github.com/sells-group/f13-cli/internal/store"
)

// Stats counts what a load wrote or skipped.
type Stats struct {
	Filings         int
	Holdings        int
	SkippedHoldings int
	FailedHoldings  int
	FailedFilings   int
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Filings += other.Filings
	s.Holdings += other.Holdings
	s.SkippedHoldings += other.SkippedHoldings
	s.FailedHoldings += other.FailedHoldings
	s.FailedFilings += other.FailedFilings
}

// Loader writes managers, filings, securities and holdings.
type Loader struct {
	store store.Store
}

// New creates a Loader backed by st.
func New(st store.Store) *Loader {
	return &Loader{store: st}
}

// Load writes every filing of every manager. A failed filing is logged and
// counted; only context cancellation aborts the load.
func (l *Loader) Load(ctx context.Context, managers []model.ManagerFilings) (Stats, error) {
	var total Stats
	for _, mf := range managers {
		for _, f := range mf.Filings {
			if err := ctx.Err(); err != nil {
				return total, eris.Wrap(err, "loader: cancelled")
			}
			st, err := l.LoadFiling(ctx, mf, f)
			total.Add(st)
			if err != nil {
				total.FailedFilings++
				zap.L().Error("loader: filing failed",
					zap.String("cik", mf.Filer.CIK),
					zap.String("filing_date", f.FilingDate.Format(time.DateOnly)),
					zap.String("filing", f.Key()),
					zap.Error(err),
				)
			}
		}
	}
	return total, nil
}

// LoadFiling writes one filing: the manager (insert-or-ignore), a new filing
// row, then each holding with its security. A failing holding is logged and
// skipped.
func (l *Loader) LoadFiling(ctx context.Context, mf model.ManagerFilings, f model.FilingRecord) (Stats, error) {
	var stats Stats
	cik := mf.Filer.CIK
	if f.CIK != "" {
		cik = f.CIK
	}
	date := f.FilingDate.Format(time.DateOnly)
	log := zap.L().With(
		zap.String("component", "loader"),
		zap.String("cik", cik),
		zap.String("filing_date", date),
		zap.String("filing", f.Key()),
	)

	name := mf.Filer.Name
	if name == "" {
		name = model.Unknown
	}
	if err := l.store.UpsertManager(ctx, store.Manager{
		CIK:       cik,
		Name:      name,
		AssetSize: marketdata.ParseAUM(mf.Market.AUM),
	}); err != nil {
		return stats, eris.Wrap(err, "loader: manager")
	}

	filingID, err := l.store.InsertFiling(ctx, store.Filing{
		ManagerCIK: cik,
		FilingDate: f.FilingDate,
		Year:       f.Year(),
		Quarter:    f.Quarter(),
		RawDataURL: f.DocumentURL,
		FilingType: f.FormType,
	})
	if err != nil {
		return stats, eris.Wrap(err, "loader: filing")
	}
	stats.Filings++

	for _, h := range f.Holdings {
		if h.CUSIP == "" {
			stats.SkippedHoldings++
			log.Warn("loader: holding without cusip skipped", zap.String("issuer", h.IssuerName))
			continue
		}
		if err := l.loadHolding(ctx, filingID, h); err != nil {
			stats.FailedHoldings++
			log.Error("loader: holding failed", zap.String("cusip", h.CUSIP), zap.Error(err))
			continue
		}
		stats.Holdings++
	}

	log.Debug("loader: filing loaded",
		zap.Int64("filing_id", filingID),
		zap.Int("holdings", stats.Holdings),
		zap.Int("skipped", stats.SkippedHoldings),
		zap.Int("failed", stats.FailedHoldings),
	)
	return stats, nil
}

func (l *Loader) loadHolding(ctx context.Context, filingID int64, h model.HoldingRecord) error {
	name := h.IssuerName
	if name == "" {
		name = model.Unknown
	}
	securityID, err := l.store.UpsertSecurity(ctx, store.Security{
		CUSIP:  h.CUSIP,
		Name:   name,
		Ticker: h.Entity.TickerPtr(),
		Sector: knownOrNil(h.Market.Sector),
	})
	if err != nil {
		return eris.Wrap(err, "loader: security")
	}
	if err := l.store.InsertHolding(ctx, store.Holding{
		FilingID:     filingID,
		SecurityID:   securityID,
		PositionSize: h.Shares,
		MarketValue:  h.Value,
	}); err != nil {
		return eris.Wrap(err, "loader: holding")
	}
	return nil
}

func knownOrNil(s string) *string {
	if s == "" || s == model.Unknown {
		return nil
	}
	return &s
}

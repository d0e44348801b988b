package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/sells-group/f13-cli/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// --- FilerSource Mock ---

type mockFilerSource struct {
	mock.Mock
}

func (m *mockFilerSource) ListFilers(ctx context.Context) ([]model.FilerIdentity, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.FilerIdentity), args.Error(1)
}

// --- FilingSource Mock ---

type mockFilingSource struct {
	mock.Mock
}

func (m *mockFilingSource) ListFilings(ctx context.Context, cik string) []model.FilingRecord {
	args := m.Called(ctx, cik)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]model.FilingRecord)
}

// --- HoldingsExtractor Mock ---

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) ExtractHoldings(ctx context.Context, url string) []model.HoldingRecord {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil
	}
	// Copy so each filing gets its own backing array.
	src := args.Get(0).([]model.HoldingRecord)
	return append([]model.HoldingRecord(nil), src...)
}

// --- TickerResolver Mock ---

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) Resolve(name string) model.ResolvedEntity {
	args := m.Called(name)
	return args.Get(0).(model.ResolvedEntity)
}

// --- MarketEnricher Mock ---

type mockEnricher struct {
	mock.Mock
}

func (m *mockEnricher) Enrich(ctx context.Context, ticker string) model.MarketMetadata {
	args := m.Called(ctx, ticker)
	return args.Get(0).(model.MarketMetadata)
}

// panicFilings panics for one CIK and returns a single empty filing otherwise.
type panicFilings struct {
	badCIK string
}

func (p panicFilings) ListFilings(_ context.Context, cik string) []model.FilingRecord {
	if cik == p.badCIK {
		panic("submissions exploded")
	}
	return []model.FilingRecord{{CIK: cik, FormType: "13F-HR", DocumentURL: "doc-" + cik}}
}

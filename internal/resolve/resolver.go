package resolve

import (
	"sync"

	"github.com/sells-group/f13-cli/internal/model"
)

// DefaultThreshold is the minimum score for a match.
const DefaultThreshold = 90.0

// Resolver maps issuer names to tickers. Results are memoized per
// normalized name; it is safe for concurrent use.
type Resolver struct {
	table     *ReferenceTable
	scorer    Scorer
	threshold float64

	cache sync.Map // normalized name -> model.ResolvedEntity
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithScorer replaces the default token-sort scorer.
func WithScorer(s Scorer) Option {
	return func(r *Resolver) { r.scorer = s }
}

// WithThreshold sets the acceptance threshold (0-100).
func WithThreshold(t float64) Option {
	return func(r *Resolver) { r.threshold = t }
}

// NewResolver creates a Resolver over the given table.
func NewResolver(table *ReferenceTable, opts ...Option) *Resolver {
	r := &Resolver{
		table:     table,
		scorer:    TokenSortRatio{},
		threshold: DefaultThreshold,
	}
	for _, o := range opts {
		o(r)
	}
	if r.table == nil {
		r.table = NewReferenceTable(nil)
	}
	return r
}

// ResolveTicker returns the ticker of the best-scoring reference name.
// The first entry wins ties, and a match is accepted only at or above the
// threshold. An empty normalized query is absent without scoring.
func (r *Resolver) ResolveTicker(name string) (string, bool) {
	e := r.Resolve(name)
	return e.Ticker, e.Resolved
}

// Resolve is ResolveTicker in entity form.
func (r *Resolver) Resolve(name string) model.ResolvedEntity {
	q := NormalizeName(name)
	if q == "" {
		return model.ResolvedEntity{}
	}
	if v, ok := r.cache.Load(q); ok {
		return v.(model.ResolvedEntity)
	}

	best, bestScore := -1, -1.0
	for i, e := range r.table.entries {
		if s := r.scorer.Score(q, e.Name); s > bestScore {
			best, bestScore = i, s
		}
	}

	var out model.ResolvedEntity
	if best >= 0 && bestScore >= r.threshold {
		out = model.ResolvedEntity{Ticker: r.table.entries[best].Symbol, Resolved: true}
	}
	r.cache.Store(q, out)
	return out
}

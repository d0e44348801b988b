package pipeline

import "sync/atomic"

// budget is the fetch budget shared by concurrent filer workers.
type budget struct {
	unlimited bool
	remaining atomic.Int64
}

func newBudget(limit int) *budget {
	b := &budget{unlimited: limit <= 0}
	b.remaining.Store(int64(limit))
	return b
}

// take consumes one unit. It reports false once the budget is spent.
func (b *budget) take() bool {
	if b.unlimited {
		return true
	}
	for {
		n := b.remaining.Load()
		if n <= 0 {
			return false
		}
		if b.remaining.CompareAndSwap(n, n-1) {
			return true
		}
	}
}

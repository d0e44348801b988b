package resilience

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(threshold int, cooldown time.Duration) (*Breaker, *clock) {
	c := &clock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewBreaker("test", threshold, cooldown)
	b.now = c.Now
	return b, c
}

var errUpstream = errors.New("upstream 503")

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	for range 2 {
		require.NoError(t, b.Allow())
		b.Record(errUpstream)
	}
	assert.Equal(t, Closed, b.State())

	require.NoError(t, b.Allow())
	b.Record(errUpstream)
	assert.Equal(t, Open, b.State())
	assert.ErrorIs(t, b.Allow(), ErrOpen)
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b, _ := newTestBreaker(3, time.Minute)

	b.Record(errUpstream)
	b.Record(errUpstream)
	b.Record(nil)
	b.Record(errUpstream)
	b.Record(errUpstream)
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	b, c := newTestBreaker(1, time.Minute)

	b.Record(errUpstream)
	require.Equal(t, Open, b.State())

	c.Advance(59 * time.Second)
	assert.ErrorIs(t, b.Allow(), ErrOpen)

	c.Advance(time.Second)
	require.NoError(t, b.Allow())
	assert.Equal(t, HalfOpen, b.State())
	assert.ErrorIs(t, b.Allow(), ErrOpen, "only one probe at a time")

	b.Record(nil)
	assert.Equal(t, Closed, b.State())
	assert.NoError(t, b.Allow())
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	b, c := newTestBreaker(2, time.Minute)

	b.Record(errUpstream)
	b.Record(errUpstream)
	c.Advance(time.Minute)
	require.NoError(t, b.Allow())

	b.Record(errUpstream)
	assert.Equal(t, Open, b.State())
	assert.ErrorIs(t, b.Allow(), ErrOpen)
}

func TestBreaker_ConcurrentProbe(t *testing.T) {
	b, c := newTestBreaker(1, time.Second)
	b.Record(errUpstream)
	c.Advance(time.Second)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Allow() == nil {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), allowed.Load())
}

func TestBreaker_Defaults(t *testing.T) {
	b := NewBreaker("d", 0, 0)
	assert.Equal(t, 5, b.threshold)
	assert.Equal(t, 30*time.Second, b.cooldown)
	assert.Equal(t, "half-open", HalfOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}

func TestBreaker_ReleaseKeepsHalfOpen(t *testing.T) {
	b, c := newTestBreaker(2, time.Second)

	for range 2 {
		require.NoError(t, b.Allow())
		b.Record(errUpstream)
	}
	require.Equal(t, Open, b.State())

	c.Advance(time.Second)
	require.NoError(t, b.Allow())
	b.Release()
	assert.Equal(t, HalfOpen, b.State())

	// The released slot goes to the next caller.
	require.NoError(t, b.Allow())
	assert.ErrorIs(t, b.Allow(), ErrOpen)
	b.Record(nil)
	assert.Equal(t, Closed, b.State())
}

func TestBreaker_ReleaseKeepsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(2, time.Minute)

	require.NoError(t, b.Allow())
	b.Record(errUpstream)
	require.NoError(t, b.Allow())
	b.Release()

	require.NoError(t, b.Allow())
	b.Record(errUpstream)
	assert.Equal(t, Open, b.State())
}

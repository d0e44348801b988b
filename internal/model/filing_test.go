package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPadCIK(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"1652044", "0001652044"},
		{"0001652044", "0001652044"},
		{" 320193 ", "0000320193"},
		{"1234567890", "1234567890"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := PadCIK(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, 10)
		})
	}
}

func TestPadCIK_Invalid(t *testing.T) {
	t.Parallel()

	for _, in := range []string{"", "abc", "-5", "12345678901"} {
		_, err := PadCIK(in)
		assert.Error(t, err, in)
	}
}

func TestUnpaddedCIK(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "1652044", UnpaddedCIK("0001652044"))
	assert.Equal(t, "0", UnpaddedCIK("0000000000"))
}

func TestQuarterOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		month time.Month
		want  int
	}{
		{time.January, 1}, {time.March, 1},
		{time.April, 2}, {time.May, 2}, {time.June, 2},
		{time.July, 3}, {time.September, 3},
		{time.October, 4}, {time.December, 4},
	}
	for _, tt := range tests {
		d := time.Date(2024, tt.month, 10, 0, 0, 0, 0, time.UTC)
		assert.Equal(t, tt.want, QuarterOf(d), tt.month.String())
	}
}

func TestFilingRecord_YearQuarterKey(t *testing.T) {
	t.Parallel()

	f := FilingRecord{
		CIK:         "0001652044",
		FilingDate:  time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		DocumentURL: "https://www.sec.gov/Archives/edgar/data/1652044/x/x.txt",
	}
	assert.Equal(t, 2024, f.Year())
	assert.Equal(t, 2, f.Quarter())
	assert.Equal(t, "0001652044|https://www.sec.gov/Archives/edgar/data/1652044/x/x.txt", f.Key())
}

func TestResolvedEntity_TickerPtr(t *testing.T) {
	t.Parallel()

	assert.Nil(t, ResolvedEntity{}.TickerPtr())
	assert.Nil(t, ResolvedEntity{Ticker: "AAPL"}.TickerPtr())

	p := ResolvedEntity{Ticker: "AAPL", Resolved: true}.TickerPtr()
	require.NotNil(t, p)
	assert.Equal(t, "AAPL", *p)
}

func TestRunState_Terminal(t *testing.T) {
	t.Parallel()

	assert.True(t, RunStateDone.Terminal())
	assert.True(t, RunStateFailed.Terminal())
	assert.False(t, RunStateAggregated.Terminal())
	assert.False(t, RunStateInit.Terminal())
}

func TestUnknownMarket(t *testing.T) {
	t.Parallel()
	m := UnknownMarket()
	assert.Equal(t, Unknown, m.Sector)
	assert.Equal(t, Unknown, m.AUM)
	assert.Equal(t, Unknown, m.FundType)
}

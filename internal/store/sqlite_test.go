package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/f13-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func countRows(t *testing.T, st *SQLiteStore, table string) int {
	t.Helper()
	var n int
	require.NoError(t, st.DB().QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func TestSQLite_MigrateTwice(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
	assert.Equal(t, 2, countRows(t, st, "schema_migrations"))
}

func TestSQLite_UpsertManager_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	m := Manager{CIK: "0001652044", Name: "Alphabet Inc.", AssetSize: model.Int64(12_340_000_000)}
	require.NoError(t, st.UpsertManager(ctx, m))
	m.Name = "Renamed"
	require.NoError(t, st.UpsertManager(ctx, m))

	assert.Equal(t, 1, countRows(t, st, "investment_managers"))

	var name string
	require.NoError(t, st.DB().QueryRow("SELECT name FROM investment_managers WHERE cik = ?", m.CIK).Scan(&name))
	assert.Equal(t, "Alphabet Inc.", name)
}

func TestSQLite_InsertFiling_AlwaysNewRow(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	require.NoError(t, st.UpsertManager(ctx, Manager{CIK: "0001652044", Name: "Alphabet Inc."}))

	f := Filing{
		ManagerCIK: "0001652044",
		FilingDate: time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC),
		Year:       2024,
		Quarter:    2,
		RawDataURL: "https://www.sec.gov/Archives/edgar/data/1652044/000165204424000001/0001652044-24-000001.txt",
		FilingType: "13F-HR",
	}
	id1, err := st.InsertFiling(ctx, f)
	require.NoError(t, err)
	id2, err := st.InsertFiling(ctx, f)
	require.NoError(t, err)

	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 2, countRows(t, st, "filings"))
}

func TestSQLite_InsertFiling_UnknownManager(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.InsertFiling(context.Background(), Filing{
		ManagerCIK: "0000000001",
		FilingDate: time.Now(),
		Year:       2024,
		Quarter:    1,
		FilingType: "13F-HR",
	})
	assert.Error(t, err)
}

func TestSQLite_UpsertSecurity_DuplicateCUSIP(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	ticker := "AAPL"
	id1, err := st.UpsertSecurity(ctx, Security{CUSIP: "037833100", Name: "APPLE INC", Ticker: &ticker})
	require.NoError(t, err)
	id2, err := st.UpsertSecurity(ctx, Security{CUSIP: "037833100", Name: "APPLE INC COM"})
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, 1, countRows(t, st, "securities"))

	other, err := st.UpsertSecurity(ctx, Security{CUSIP: "594918104", Name: "MICROSOFT CORP"})
	require.NoError(t, err)
	assert.NotEqual(t, id1, other)
}

func TestSQLite_InsertHolding(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.UpsertManager(ctx, Manager{CIK: "0000000002", Name: "Fund"}))
	fid, err := st.InsertFiling(ctx, Filing{ManagerCIK: "0000000002", FilingDate: time.Now(), Year: 2024, Quarter: 1, FilingType: "13F-HR"})
	require.NoError(t, err)
	sid, err := st.UpsertSecurity(ctx, Security{CUSIP: "037833100", Name: "APPLE INC"})
	require.NoError(t, err)

	require.NoError(t, st.InsertHolding(ctx, Holding{FilingID: fid, SecurityID: sid, PositionSize: model.Int64(10), MarketValue: model.Int64(50000)}))
	assert.Equal(t, 1, countRows(t, st, "holdings"))

	// Foreign keys are enforced.
	assert.Error(t, st.InsertHolding(ctx, Holding{FilingID: 9999, SecurityID: sid}))
}

func TestSQLite_RunLog(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, st.StartRun(ctx, "run-old", base))
	require.NoError(t, st.StartRun(ctx, "run-new", base.Add(time.Hour)))
	require.NoError(t, st.FinishRun(ctx, "run-old", model.RunStateDone, RunCounts{Filers: 6, Filings: 12, Holdings: 340}, ""))
	require.NoError(t, st.FinishRun(ctx, "run-new", model.RunStateFailed, RunCounts{}, "directory unavailable"))

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-new", runs[0].ID)
	assert.Equal(t, "run-old", runs[1].ID)

	got, err := st.GetRun(ctx, "run-old")
	require.NoError(t, err)
	assert.Equal(t, "done", got.State)
	assert.Equal(t, int64(340), got.Holdings)
	assert.Nil(t, got.Error)
	assert.NotNil(t, got.FinishedAt)
	assert.True(t, got.StartedAt.Equal(base))

	failed, err := st.GetRun(ctx, "run-new")
	require.NoError(t, err)
	require.NotNil(t, failed.Error)
	assert.Equal(t, "directory unavailable", *failed.Error)

	_, err = st.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 50, clampLimit(0))
	assert.Equal(t, 50, clampLimit(-3))
	assert.Equal(t, 1000, clampLimit(5000))
	assert.Equal(t, 1000, clampLimit(1000))
	assert.Equal(t, 7, clampLimit(7))
}

package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/f13-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return &PostgresStore{pool: mock}, mock
}

func TestPostgresStore_UpsertManager(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO investment_managers .* ON CONFLICT \(cik\) DO NOTHING`).
		WithArgs("0001652044", "Alphabet Inc.", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.UpsertManager(context.Background(), Manager{CIK: "0001652044", Name: "Alphabet Inc."})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertManager_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO investment_managers`).
		WillReturnError(assert.AnError)

	err := s.UpsertManager(context.Background(), Manager{CIK: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: upsert manager 1")
}

func TestPostgresStore_InsertFiling(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	date := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`INSERT INTO filings .* RETURNING filing_id`).
		WithArgs("0001652044", date, 2024, 2, "https://example.com/f.txt", "13F-HR").
		WillReturnRows(pgxmock.NewRows([]string{"filing_id"}).AddRow(int64(7)))

	id, err := s.InsertFiling(context.Background(), Filing{
		ManagerCIK: "0001652044",
		FilingDate: date,
		Year:       2024,
		Quarter:    2,
		RawDataURL: "https://example.com/f.txt",
		FilingType: "13F-HR",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertSecurity_New(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO securities .* ON CONFLICT \(cusip\) DO NOTHING RETURNING security_id`).
		WithArgs(pgxmock.AnyArg(), "037833100", "APPLE INC", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"security_id"}).AddRow(int64(11)))

	id, err := s.UpsertSecurity(context.Background(), Security{CUSIP: "037833100", Name: "APPLE INC"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertSecurity_ConflictReusesID(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO securities`).
		WithArgs(pgxmock.AnyArg(), "037833100", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT security_id FROM securities WHERE cusip = \$1`).
		WithArgs("037833100").
		WillReturnRows(pgxmock.NewRows([]string{"security_id"}).AddRow(int64(3)))

	id, err := s.UpsertSecurity(context.Background(), Security{CUSIP: "037833100", Name: "APPLE INC"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertSecurity_InsertError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO securities`).
		WithArgs(pgxmock.AnyArg(), "X", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(assert.AnError)

	_, err := s.UpsertSecurity(context.Background(), Security{CUSIP: "X"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: insert security X")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertHolding(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO holdings`).
		WithArgs(int64(7), int64(3), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.InsertHolding(context.Background(), Holding{
		FilingID:     7,
		SecurityID:   3,
		PositionSize: model.Int64(100),
		MarketValue:  model.Int64(50000),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RunLog(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO run_log`).
		WithArgs("run-1", "init", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`UPDATE run_log`).
		WithArgs("done", int64(2), int64(3), int64(5), pgxmock.AnyArg(), "run-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, s.StartRun(ctx, "run-1", time.Now()))
	require.NoError(t, s.FinishRun(ctx, "run-1", model.RunStateDone, RunCounts{Filers: 2, Filings: 3, Holdings: 5}, ""))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`(?s)SELECT id, state, started_at .* FROM run_log ORDER BY started_at DESC LIMIT \$1`).
		WithArgs(50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "state", "started_at", "finished_at", "filers", "filings", "holdings", "error"}))

	runs, err := s.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListRuns_Error(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM run_log`).WillReturnError(assert.AnError)

	_, err := s.ListRuns(context.Background(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: list runs")
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM run_log WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ping(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`SELECT 1`).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	require.NoError(t, s.Ping(context.Background()))
	assert.NoError(t, s.Close())
}

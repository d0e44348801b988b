package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/f13-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One connection keeps RETURNING and the follow-up lookup on the same writer.
	sqlDB.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqlDB}, nil
}

// DB returns the underlying handle.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return migrateSQLite(ctx, s.db)
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertManager(ctx context.Context, m Manager) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO investment_managers (cik, name, asset_size) VALUES (?, ?, ?)
		 ON CONFLICT (cik) DO NOTHING`,
		m.CIK, m.Name, m.AssetSize,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: upsert manager %s", m.CIK)
	}
	return nil
}

func (s *SQLiteStore) InsertFiling(ctx context.Context, f Filing) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO filings (manager_cik, filing_date, year, quarter, raw_data_url, filing_type)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		f.ManagerCIK, f.FilingDate.Format(time.DateOnly), f.Year, f.Quarter, f.RawDataURL, f.FilingType,
	)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: insert filing for %s", f.ManagerCIK)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: filing id")
	}
	return id, nil
}

func (s *SQLiteStore) UpsertSecurity(ctx context.Context, sec Security) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO securities (ticker, cusip, name, sector) VALUES (?, ?, ?, ?)
		 ON CONFLICT (cusip) DO NOTHING RETURNING security_id`,
		sec.Ticker, sec.CUSIP, sec.Name, sec.Sector,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, eris.Wrapf(err, "sqlite: insert security %s", sec.CUSIP)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT security_id FROM securities WHERE cusip = ?`, sec.CUSIP,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: lookup security %s", sec.CUSIP)
	}
	return id, nil
}

func (s *SQLiteStore) InsertHolding(ctx context.Context, h Holding) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO holdings (filing_id, security_id, position_size, market_value, weight)
		 VALUES (?, ?, ?, ?, ?)`,
		h.FilingID, h.SecurityID, h.PositionSize, h.MarketValue, h.Weight,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert holding for filing %d", h.FilingID)
	}
	return nil
}

func (s *SQLiteStore) StartRun(ctx context.Context, id string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_log (id, state, started_at) VALUES (?, ?, ?)`,
		id, string(model.RunStateInit), startedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: start run %s", id)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, id string, state model.RunState, counts RunCounts, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE run_log
		 SET state = ?, finished_at = ?, filers = ?, filings = ?, holdings = ?, error = ?
		 WHERE id = ?`,
		string(state), time.Now().UTC(), counts.Filers, counts.Filings, counts.Holdings, nullableError(errMsg), id,
	)
	return eris.Wrapf(err, "sqlite: finish run %s", id)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunEntry, error) {
	var entries []RunEntry
	err := sqlscan.Select(ctx, s.db, &entries,
		`SELECT id, state, started_at, finished_at, filers, filings, holdings, error
		 FROM run_log ORDER BY started_at DESC LIMIT ?`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	return entries, nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunEntry, error) {
	var e RunEntry
	err := sqlscan.Get(ctx, s.db, &e,
		`SELECT id, state, started_at, finished_at, filers, filings, holdings, error
		 FROM run_log WHERE id = ?`,
		id,
	)
	if err != nil {
		if sqlscan.NotFound(err) {
			return nil, ErrRunNotFound
		}
		return nil, eris.Wrapf(err, "sqlite: get run %s", id)
	}
	return &e, nil
}

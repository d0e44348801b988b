package store

import (
	"context"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/f13-cli/internal/db"
	"github.com/sells-group/f13-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	return MigratePostgres(ctx, s.pool)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertManager(ctx context.Context, m Manager) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO investment_managers (cik, name, asset_size) VALUES ($1, $2, $3)
		 ON CONFLICT (cik) DO NOTHING`,
		m.CIK, m.Name, m.AssetSize,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert manager %s", m.CIK)
	}
	return nil
}

func (s *PostgresStore) InsertFiling(ctx context.Context, f Filing) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO filings (manager_cik, filing_date, year, quarter, raw_data_url, filing_type)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING filing_id`,
		f.ManagerCIK, f.FilingDate, f.Year, f.Quarter, f.RawDataURL, f.FilingType,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: insert filing for %s", f.ManagerCIK)
	}
	return id, nil
}

func (s *PostgresStore) UpsertSecurity(ctx context.Context, sec Security) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO securities (ticker, cusip, name, sector) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (cusip) DO NOTHING RETURNING security_id`,
		sec.Ticker, sec.CUSIP, sec.Name, sec.Sector,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, eris.Wrapf(err, "postgres: insert security %s", sec.CUSIP)
	}

	// Conflict: the row already exists, reuse its id.
	err = s.pool.QueryRow(ctx,
		`SELECT security_id FROM securities WHERE cusip = $1`, sec.CUSIP,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: lookup security %s", sec.CUSIP)
	}
	return id, nil
}

func (s *PostgresStore) InsertHolding(ctx context.Context, h Holding) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO holdings (filing_id, security_id, position_size, market_value, weight)
		 VALUES ($1, $2, $3, $4, $5)`,
		h.FilingID, h.SecurityID, h.PositionSize, h.MarketValue, h.Weight,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert holding for filing %d", h.FilingID)
	}
	return nil
}

func (s *PostgresStore) StartRun(ctx context.Context, id string, startedAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_log (id, state, started_at) VALUES ($1, $2, $3)`,
		id, string(model.RunStateInit), startedAt,
	)
	return eris.Wrapf(err, "postgres: start run %s", id)
}

func (s *PostgresStore) FinishRun(ctx context.Context, id string, state model.RunState, counts RunCounts, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE run_log
		 SET state = $1, finished_at = now(), filers = $2, filings = $3, holdings = $4, error = $5
		 WHERE id = $6`,
		string(state), counts.Filers, counts.Filings, counts.Holdings, nullableError(errMsg), id,
	)
	return eris.Wrapf(err, "postgres: finish run %s", id)
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]RunEntry, error) {
	var entries []RunEntry
	err := pgxscan.Select(ctx, s.pool, &entries,
		`SELECT id, state, started_at, finished_at, filers, filings, holdings, error
		 FROM run_log ORDER BY started_at DESC LIMIT $1`,
		clampLimit(limit),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	return entries, nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*RunEntry, error) {
	var e RunEntry
	err := pgxscan.Get(ctx, s.pool, &e,
		`SELECT id, state, started_at, finished_at, filers, filings, holdings, error
		 FROM run_log WHERE id = $1`,
		id,
	)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, ErrRunNotFound
		}
		return nil, eris.Wrapf(err, "postgres: get run %s", id)
	}
	return &e, nil
}

// Package store persists managers, filings, securities and holdings, and
// keeps the run log, in Postgres or SQLite.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/f13-cli/internal/model"
)

// ErrRunNotFound is returned by GetRun when no entry has the given id.
var ErrRunNotFound = eris.New("store: run not found")

// Manager is a row of investment_managers. CIK is the natural key.
type Manager struct {
	CIK       string
	Name      string
	AssetSize *int64 // whole dollars; nil when unknown
}

// Filing is a row of filings. Every insert creates a new row.
type Filing struct {
	ManagerCIK string
	FilingDate time.Time
	Year       int
	Quarter    int
	RawDataURL string
	FilingType string
}

// Security is a row of securities. CUSIP is the natural key.
type Security struct {
	CUSIP  string
	Name   string
	Ticker *string
	Sector *string
}

// Holding is a row of holdings linking a filing to a security.
type Holding struct {
	FilingID     int64
	SecurityID   int64
	PositionSize *int64
	MarketValue  *int64
	Weight       *float64
}

// RunEntry is a row of run_log.
type RunEntry struct {
	ID         string     `db:"id" json:"id"`
	State      string     `db:"state" json:"state"`
	StartedAt  time.Time  `db:"started_at" json:"started_at"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
	Filers     int64      `db:"filers" json:"filers"`
	Filings    int64      `db:"filings" json:"filings"`
	Holdings   int64      `db:"holdings" json:"holdings"`
	Error      *string    `db:"error" json:"error,omitempty"`
}

// RunCounts summarizes what a run produced.
type RunCounts struct {
	Filers   int64
	Filings  int64
	Holdings int64
}

// Store defines the persistence interface for the ingestion pipeline.
type Store interface {
	// UpsertManager inserts the manager unless its CIK already exists.
	UpsertManager(ctx context.Context, m Manager) error
	// InsertFiling always inserts and returns the new filing_id.
	InsertFiling(ctx context.Context, f Filing) (int64, error)
	// UpsertSecurity inserts the security unless its CUSIP exists, and
	// returns the security_id of the new or existing row.
	UpsertSecurity(ctx context.Context, s Security) (int64, error)
	InsertHolding(ctx context.Context, h Holding) error

	// Run log
	StartRun(ctx context.Context, id string, startedAt time.Time) error
	FinishRun(ctx context.Context, id string, state model.RunState, counts RunCounts, errMsg string) error
	ListRuns(ctx context.Context, limit int) ([]RunEntry, error)
	GetRun(ctx context.Context, id string) (*RunEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

func nullableError(msg string) *string {
	if msg == "" {
		return nil
	}
	return &msg
}

const (
	defaultRunLimit = 50
	maxRunLimit     = 1000
)

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultRunLimit
	case limit > maxRunLimit:
		return maxRunLimit
	default:
		return limit
	}
}

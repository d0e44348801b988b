package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/f13-cli/internal/config"
	"github.com/sells-group/f13-cli/internal/db"
	"github.com/sells-group/f13-cli/internal/store"
)

// initStore opens the configured store and applies pending migrations.
func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch sc.Driver {
	case "sqlite":
		st, err = store.NewSQLite(sc.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, sc.DatabaseURL, db.PoolConfig{
			MaxConns: sc.MaxConns,
			MinConns: sc.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

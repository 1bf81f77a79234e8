package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/locate-qa/internal/near"
	"github.com/sells-group/locate-qa/internal/store"
)

// backend bundles the storage collaborator with the nearest-neighbor
// provider appropriate to the configured driver.
type backend struct {
	store store.Store
	pool  *pgxpool.Pool // nil for sqlite
}

func (b *backend) Close() {
	_ = b.store.Close() //nolint:errcheck
}

// initBackend opens the configured store. The postgres driver keeps the
// pool around so spatial queries can run inside the database.
func initBackend(ctx context.Context) (*backend, error) {
	if err := cfg.Validate("store"); err != nil {
		return nil, err
	}

	switch cfg.Store.Driver {
	case "sqlite":
		st, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		return &backend{store: st}, nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "connect postgres")
		}
		return &backend{store: store.NewPostgres(pool, pool.Close), pool: pool}, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initProvider returns the nearest-line provider. Postgres delegates to
// PostGIS; sqlite loads the line set and measures in process.
func (b *backend) initProvider(ctx context.Context) (near.Provider, error) {
	if b.pool != nil {
		return near.NewPostGIS(b.pool), nil
	}

	lines, err := b.store.ListLines(ctx)
	if err != nil {
		return nil, err
	}
	return near.NewPlanar(lines)
}

// Package store provides the center directory and the recommendation log
// over Postgres (PostGIS), SQLite or a YAML fixture file.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/sells-group/centerrank/internal/config"
	"github.com/sells-group/centerrank/internal/model"
)

// ErrNotFound is returned when a center does not exist.
var ErrNotFound = eris.New("store: center not found")

// Store is the directory and log sink used by the recommendation service.
type Store interface {
	// FetchActiveCentersNear returns active centers with a location within
	// radiusMeters of loc, with hours, holidays, staff and programs loaded.
	FetchActiveCentersNear(ctx context.Context, loc model.Coordinate, radiusMeters int) ([]model.Center, error)
	// GetCenter returns one center by id, or ErrNotFound.
	GetCenter(ctx context.Context, id string) (*model.Center, error)
	// RecordRecommendations persists one served recommendation list.
	RecordRecommendations(ctx context.Context, results []model.RecommendationResult, loc model.Coordinate, sessionID string) error
	// SaveCenters upserts centers and replaces their nested records.
	SaveCenters(ctx context.Context, centers []model.Center) error
	Migrate(ctx context.Context) error
	Close() error
}

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock pools
// satisfy it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
	case "sqlite":
		return NewSQLite(cfg.DatabaseURL)
	case "file", "":
		return NewFile(cfg.FixturePath)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

// indexByID maps center ids to their position in centers.
func indexByID(centers []model.Center) map[string]*model.Center {
	idx := make(map[string]*model.Center, len(centers))
	for i := range centers {
		idx[centers[i].ID] = &centers[i]
	}
	return idx
}

func centerIDs(centers []model.Center) []string {
	ids := make([]string, len(centers))
	for i, c := range centers {
		ids[i] = c.ID
	}
	return ids
}

package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/centerrank/internal/model"
)

// PostgresStore implements Store on PostGIS using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS centers (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	location   GEOGRAPHY(Point, 4326),
	address    TEXT,
	phone      TEXT,
	active     BOOLEAN NOT NULL DEFAULT true,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_centers_location ON centers USING GIST (location);
CREATE INDEX IF NOT EXISTS idx_centers_active ON centers(active);

CREATE TABLE IF NOT EXISTS center_hours (
	center_id   TEXT NOT NULL REFERENCES centers(id) ON DELETE CASCADE,
	day_of_week SMALLINT NOT NULL CHECK (day_of_week BETWEEN 1 AND 7),
	open_time   TEXT,
	close_time  TEXT,
	is_open     BOOLEAN NOT NULL DEFAULT true
);

CREATE INDEX IF NOT EXISTS idx_center_hours_center ON center_hours(center_id);

CREATE TABLE IF NOT EXISTS center_holidays (
	center_id    TEXT NOT NULL REFERENCES centers(id) ON DELETE CASCADE,
	holiday_date DATE NOT NULL,
	name         TEXT NOT NULL DEFAULT '',
	regular      BOOLEAN NOT NULL DEFAULT true
);

CREATE INDEX IF NOT EXISTS idx_center_holidays_center ON center_holidays(center_id, holiday_date);

CREATE TABLE IF NOT EXISTS center_staff (
	center_id TEXT NOT NULL REFERENCES centers(id) ON DELETE CASCADE,
	label     TEXT NOT NULL,
	count     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_center_staff_center ON center_staff(center_id);

CREATE TABLE IF NOT EXISTS center_programs (
	center_id    TEXT NOT NULL REFERENCES centers(id) ON DELETE CASCADE,
	category     TEXT NOT NULL,
	target_group TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	online       BOOLEAN NOT NULL DEFAULT false,
	free         BOOLEAN NOT NULL DEFAULT false,
	fee          INTEGER NOT NULL DEFAULT 0,
	active       BOOLEAN NOT NULL DEFAULT true
);

CREATE INDEX IF NOT EXISTS idx_center_programs_center ON center_programs(center_id);

CREATE TABLE IF NOT EXISTS recommendation_logs (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	location   GEOGRAPHY(Point, 4326) NOT NULL,
	results    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS recommendation_log_items (
	log_id    TEXT NOT NULL REFERENCES recommendation_logs(id) ON DELETE CASCADE,
	rank      INTEGER NOT NULL,
	center_id TEXT NOT NULL,
	total     DOUBLE PRECISION NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recommendation_logs_session ON recommendation_logs(session_id);
CREATE INDEX IF NOT EXISTS idx_recommendation_log_items_center ON recommendation_log_items(center_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

const centerColumns = `id, name, ST_AsEWKB(location::geometry), COALESCE(address, ''), COALESCE(phone, ''), active`

func (s *PostgresStore) FetchActiveCentersNear(ctx context.Context, loc model.Coordinate, radiusMeters int) ([]model.Center, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+centerColumns+` FROM centers
		WHERE active AND location IS NOT NULL
		AND ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3)
		ORDER BY id`,
		loc.Longitude, loc.Latitude, radiusMeters,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: fetch centers near")
	}
	centers, err := scanCenters(rows)
	if err != nil {
		return nil, err
	}
	if err := s.loadChildren(ctx, centers); err != nil {
		return nil, err
	}
	return centers, nil
}

func (s *PostgresStore) GetCenter(ctx context.Context, id string) (*model.Center, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+centerColumns+` FROM centers WHERE id = $1 AND location IS NOT NULL`, id)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get center")
	}
	centers, err := scanCenters(rows)
	if err != nil {
		return nil, err
	}
	if len(centers) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get center %s", id)
	}
	if err := s.loadChildren(ctx, centers); err != nil {
		return nil, err
	}
	return &centers[0], nil
}

func scanCenters(rows pgx.Rows) ([]model.Center, error) {
	defer rows.Close()

	var centers []model.Center
	for rows.Next() {
		var (
			c     model.Center
			point []byte
		)
		if err := rows.Scan(&c.ID, &c.Name, &point, &c.Address, &c.Phone, &c.Active); err != nil {
			return nil, eris.Wrap(err, "postgres: scan center")
		}
		loc, err := decodePoint(point)
		if err != nil {
			return nil, eris.Wrapf(err, "postgres: center %s", c.ID)
		}
		c.Location = loc
		centers = append(centers, c)
	}
	return centers, eris.Wrap(rows.Err(), "postgres: iterate centers")
}

// loadChildren fills hours, holidays, staff and programs for centers with one
// query per table.
func (s *PostgresStore) loadChildren(ctx context.Context, centers []model.Center) error {
	if len(centers) == 0 {
		return nil
	}
	ids := centerIDs(centers)
	idx := indexByID(centers)

	rows, err := s.pool.Query(ctx,
		`SELECT center_id, day_of_week, COALESCE(open_time, ''), COALESCE(close_time, ''), is_open
		FROM center_hours WHERE center_id = ANY($1) ORDER BY center_id, day_of_week`, ids)
	if err != nil {
		return eris.Wrap(err, "postgres: load hours")
	}
	err = forEachRow(rows, "hours", func(scan func(dest ...any) (string, error)) error {
		var h model.OperatingHourRule
		id, err := scan(&h.DayOfWeek, &h.OpenTime, &h.CloseTime, &h.IsOpen)
		if err != nil {
			return err
		}
		if c := idx[id]; c != nil {
			c.Hours = append(c.Hours, h)
		}
		return nil
	})
	if err != nil {
		return err
	}

	rows, err = s.pool.Query(ctx,
		`SELECT center_id, to_char(holiday_date, 'YYYY-MM-DD'), name, regular
		FROM center_holidays WHERE center_id = ANY($1) ORDER BY center_id, holiday_date`, ids)
	if err != nil {
		return eris.Wrap(err, "postgres: load holidays")
	}
	err = forEachRow(rows, "holidays", func(scan func(dest ...any) (string, error)) error {
		var h model.HolidayException
		id, err := scan(&h.Date, &h.Name, &h.Regular)
		if err != nil {
			return err
		}
		if c := idx[id]; c != nil {
			c.Holidays = append(c.Holidays, h)
		}
		return nil
	})
	if err != nil {
		return err
	}

	rows, err = s.pool.Query(ctx,
		`SELECT center_id, label, count FROM center_staff WHERE center_id = ANY($1) ORDER BY center_id`, ids)
	if err != nil {
		return eris.Wrap(err, "postgres: load staff")
	}
	err = forEachRow(rows, "staff", func(scan func(dest ...any) (string, error)) error {
		var st model.StaffCertification
		id, err := scan(&st.Label, &st.Count)
		if err != nil {
			return err
		}
		if c := idx[id]; c != nil {
			c.Staff = append(c.Staff, st)
		}
		return nil
	})
	if err != nil {
		return err
	}

	rows, err = s.pool.Query(ctx,
		`SELECT center_id, category, target_group, description, online, free, fee, active
		FROM center_programs WHERE center_id = ANY($1) ORDER BY center_id`, ids)
	if err != nil {
		return eris.Wrap(err, "postgres: load programs")
	}
	return forEachRow(rows, "programs", func(scan func(dest ...any) (string, error)) error {
		var p model.Program
		id, err := scan(&p.Category, &p.TargetGroup, &p.Description, &p.Online, &p.Free, &p.Fee, &p.Active)
		if err != nil {
			return err
		}
		if c := idx[id]; c != nil {
			c.Programs = append(c.Programs, p)
		}
		return nil
	})
}

// forEachRow hands each row to fn. The scan callback reads the leading
// center_id column and returns it alongside the remaining columns.
func forEachRow(rows pgx.Rows, table string, fn func(scan func(dest ...any) (string, error)) error) error {
	defer rows.Close()
	scan := func(dest ...any) (string, error) {
		var id string
		err := rows.Scan(append([]any{&id}, dest...)...)
		return id, err
	}
	for rows.Next() {
		if err := fn(scan); err != nil {
			return eris.Wrapf(err, "postgres: scan %s", table)
		}
	}
	return eris.Wrapf(rows.Err(), "postgres: iterate %s", table)
}

// SaveCenters upserts centers and replaces their hours, holidays, staff and
// programs in one transaction.
func (s *PostgresStore) SaveCenters(ctx context.Context, centers []model.Center) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin save centers")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, c := range centers {
		point, err := encodePoint(c.Location)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO centers (id, name, location, address, phone, active, updated_at)
			VALUES ($1, $2, ST_GeomFromEWKB($3)::geography, $4, $5, $6, now())
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, location = EXCLUDED.location,
			address = EXCLUDED.address, phone = EXCLUDED.phone, active = EXCLUDED.active, updated_at = now()`,
			c.ID, c.Name, point, c.Address, c.Phone, c.Active,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: upsert center %s", c.ID)
		}

		for _, table := range []string{"center_hours", "center_holidays", "center_staff", "center_programs"} {
			if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE center_id = $1`, c.ID); err != nil {
				return eris.Wrapf(err, "postgres: clear %s for %s", table, c.ID)
			}
		}
		for _, h := range c.Hours {
			if _, err := tx.Exec(ctx,
				`INSERT INTO center_hours (center_id, day_of_week, open_time, close_time, is_open)
				VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5)`,
				c.ID, h.DayOfWeek, h.OpenTime, h.CloseTime, h.IsOpen,
			); err != nil {
				return eris.Wrapf(err, "postgres: insert hours for %s", c.ID)
			}
		}
		for _, h := range c.Holidays {
			if _, err := tx.Exec(ctx,
				`INSERT INTO center_holidays (center_id, holiday_date, name, regular) VALUES ($1, $2::date, $3, $4)`,
				c.ID, h.Date, h.Name, h.Regular,
			); err != nil {
				return eris.Wrapf(err, "postgres: insert holiday for %s", c.ID)
			}
		}
		for _, st := range c.Staff {
			if _, err := tx.Exec(ctx,
				`INSERT INTO center_staff (center_id, label, count) VALUES ($1, $2, $3)`,
				c.ID, st.Label, st.Count,
			); err != nil {
				return eris.Wrapf(err, "postgres: insert staff for %s", c.ID)
			}
		}
		for _, p := range c.Programs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO center_programs (center_id, category, target_group, description, online, free, fee, active)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				c.ID, p.Category, p.TargetGroup, p.Description, p.Online, p.Free, p.Fee, p.Active,
			); err != nil {
				return eris.Wrapf(err, "postgres: insert program for %s", c.ID)
			}
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit save centers")
}

// RecordRecommendations stores the served list as a JSONB document plus one
// row per ranked center.
func (s *PostgresStore) RecordRecommendations(ctx context.Context, results []model.RecommendationResult, loc model.Coordinate, sessionID string) error {
	doc, err := json.Marshal(results)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal recommendations")
	}
	point, err := encodePoint(loc)
	if err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin record recommendations")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	id := uuid.New().String()
	if _, err := tx.Exec(ctx,
		`INSERT INTO recommendation_logs (id, session_id, location, results, created_at)
		VALUES ($1, $2, ST_GeomFromEWKB($3)::geography, $4, $5)`,
		id, sessionID, point, doc, time.Now().UTC(),
	); err != nil {
		return eris.Wrap(err, "postgres: insert recommendation log")
	}
	for i, r := range results {
		if _, err := tx.Exec(ctx,
			`INSERT INTO recommendation_log_items (log_id, rank, center_id, total) VALUES ($1, $2, $3, $4)`,
			id, i+1, r.CenterID, r.Breakdown.Total,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert recommendation item %s", r.CenterID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit recommendation log")
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite" // register sqlite driver

	"github.com/sells-group/centerrank/internal/geo"
	"github.com/sells-group/centerrank/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Radius queries use
// a bounding box in SQL followed by an exact haversine filter.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLiteStore at dsn.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS centers (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	latitude   REAL,
	longitude  REAL,
	address    TEXT NOT NULL DEFAULT '',
	phone      TEXT NOT NULL DEFAULT '',
	active     INTEGER NOT NULL DEFAULT 1,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_centers_lat_lon ON centers(latitude, longitude);

CREATE TABLE IF NOT EXISTS center_hours (
	center_id   TEXT NOT NULL REFERENCES centers(id) ON DELETE CASCADE,
	day_of_week INTEGER NOT NULL,
	open_time   TEXT NOT NULL DEFAULT '',
	close_time  TEXT NOT NULL DEFAULT '',
	is_open     INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS center_holidays (
	center_id    TEXT NOT NULL REFERENCES centers(id) ON DELETE CASCADE,
	holiday_date TEXT NOT NULL,
	name         TEXT NOT NULL DEFAULT '',
	regular      INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS center_staff (
	center_id TEXT NOT NULL REFERENCES centers(id) ON DELETE CASCADE,
	label     TEXT NOT NULL,
	count     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS center_programs (
	center_id    TEXT NOT NULL REFERENCES centers(id) ON DELETE CASCADE,
	category     TEXT NOT NULL,
	target_group TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	online       INTEGER NOT NULL DEFAULT 0,
	free         INTEGER NOT NULL DEFAULT 0,
	fee          INTEGER NOT NULL DEFAULT 0,
	active       INTEGER NOT NULL DEFAULT 1
);

CREATE INDEX IF NOT EXISTS idx_center_hours_center ON center_hours(center_id);
CREATE INDEX IF NOT EXISTS idx_center_holidays_center ON center_holidays(center_id);
CREATE INDEX IF NOT EXISTS idx_center_staff_center ON center_staff(center_id);
CREATE INDEX IF NOT EXISTS idx_center_programs_center ON center_programs(center_id);

CREATE TABLE IF NOT EXISTS recommendation_logs (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	latitude   REAL NOT NULL,
	longitude  REAL NOT NULL,
	results    TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recommendation_logs_session ON recommendation_logs(session_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// metersPerDegree is the length of one degree of latitude.
const metersPerDegree = 111_320.0

func (s *SQLiteStore) FetchActiveCentersNear(ctx context.Context, loc model.Coordinate, radiusMeters int) ([]model.Center, error) {
	dLat := float64(radiusMeters) / metersPerDegree
	lon := longitudeWindows(loc, dLat)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, latitude, longitude, address, phone, active FROM centers
		WHERE active = 1 AND latitude IS NOT NULL AND longitude IS NOT NULL
		AND latitude BETWEEN ? AND ?
		AND (longitude BETWEEN ? AND ? OR longitude BETWEEN ? AND ?)
		ORDER BY id`,
		loc.Latitude-dLat, loc.Latitude+dLat, lon[0][0], lon[0][1], lon[1][0], lon[1][1],
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: fetch centers near")
	}
	candidates, err := scanSQLiteCenters(rows)
	if err != nil {
		return nil, err
	}

	centers := candidates[:0]
	for _, c := range candidates {
		if geo.HaversineMeters(loc, c.Location) <= radiusMeters {
			centers = append(centers, c)
		}
	}
	if err := s.loadChildren(ctx, centers); err != nil {
		return nil, err
	}
	return centers, nil
}

// longitudeWindows returns the two longitude ranges of the bounding box
// around loc. A box crossing the antimeridian is split in two; otherwise both
// ranges are the same. A box reaching a pole spans every longitude.
func longitudeWindows(loc model.Coordinate, dLat float64) [2][2]float64 {
	all := [2][2]float64{{-180, 180}, {-180, 180}}
	if loc.Latitude+dLat >= 90 || loc.Latitude-dLat <= -90 {
		return all
	}
	cos := math.Cos(loc.Latitude * math.Pi / 180)
	if cos <= 1e-6 {
		return all
	}
	dLon := dLat / cos
	if dLon >= 180 {
		return all
	}

	lo, hi := loc.Longitude-dLon, loc.Longitude+dLon
	switch {
	case lo < -180:
		return [2][2]float64{{lo + 360, 180}, {-180, hi}}
	case hi > 180:
		return [2][2]float64{{lo, 180}, {-180, hi - 360}}
	default:
		return [2][2]float64{{lo, hi}, {lo, hi}}
	}
}

func (s *SQLiteStore) GetCenter(ctx context.Context, id string) (*model.Center, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, latitude, longitude, address, phone, active FROM centers
		WHERE id = ? AND latitude IS NOT NULL AND longitude IS NOT NULL`, id)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get center")
	}
	centers, err := scanSQLiteCenters(rows)
	if err != nil {
		return nil, err
	}
	if len(centers) == 0 {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get center %s", id)
	}
	if err := s.loadChildren(ctx, centers); err != nil {
		return nil, err
	}
	return &centers[0], nil
}

func scanSQLiteCenters(rows *sql.Rows) ([]model.Center, error) {
	defer rows.Close()

	var centers []model.Center
	for rows.Next() {
		var c model.Center
		if err := rows.Scan(&c.ID, &c.Name, &c.Location.Latitude, &c.Location.Longitude, &c.Address, &c.Phone, &c.Active); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan center")
		}
		centers = append(centers, c)
	}
	return centers, eris.Wrap(rows.Err(), "sqlite: iterate centers")
}

func (s *SQLiteStore) loadChildren(ctx context.Context, centers []model.Center) error {
	for i := range centers {
		c := &centers[i]
		if err := s.loadCenterChildren(ctx, c); err != nil {
			return eris.Wrapf(err, "sqlite: load center %s", c.ID)
		}
	}
	return nil
}

func (s *SQLiteStore) loadCenterChildren(ctx context.Context, c *model.Center) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT day_of_week, open_time, close_time, is_open FROM center_hours
		WHERE center_id = ? ORDER BY day_of_week, rowid`, c.ID)
	if err != nil {
		return eris.Wrap(err, "hours")
	}
	err = eachSQLiteRow(rows, func() error {
		var h model.OperatingHourRule
		if err := rows.Scan(&h.DayOfWeek, &h.OpenTime, &h.CloseTime, &h.IsOpen); err != nil {
			return err
		}
		c.Hours = append(c.Hours, h)
		return nil
	})
	if err != nil {
		return eris.Wrap(err, "hours")
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT holiday_date, name, regular FROM center_holidays
		WHERE center_id = ? ORDER BY holiday_date, rowid`, c.ID)
	if err != nil {
		return eris.Wrap(err, "holidays")
	}
	err = eachSQLiteRow(rows, func() error {
		var h model.HolidayException
		if err := rows.Scan(&h.Date, &h.Name, &h.Regular); err != nil {
			return err
		}
		c.Holidays = append(c.Holidays, h)
		return nil
	})
	if err != nil {
		return eris.Wrap(err, "holidays")
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT label, count FROM center_staff WHERE center_id = ? ORDER BY rowid`, c.ID)
	if err != nil {
		return eris.Wrap(err, "staff")
	}
	err = eachSQLiteRow(rows, func() error {
		var st model.StaffCertification
		if err := rows.Scan(&st.Label, &st.Count); err != nil {
			return err
		}
		c.Staff = append(c.Staff, st)
		return nil
	})
	if err != nil {
		return eris.Wrap(err, "staff")
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT category, target_group, description, online, free, fee, active
		FROM center_programs WHERE center_id = ? ORDER BY rowid`, c.ID)
	if err != nil {
		return eris.Wrap(err, "programs")
	}
	err = eachSQLiteRow(rows, func() error {
		var p model.Program
		if err := rows.Scan(&p.Category, &p.TargetGroup, &p.Description, &p.Online, &p.Free, &p.Fee, &p.Active); err != nil {
			return err
		}
		c.Programs = append(c.Programs, p)
		return nil
	})
	return eris.Wrap(err, "programs")
}

func eachSQLiteRow(rows *sql.Rows, fn func() error) error {
	defer rows.Close()
	for rows.Next() {
		if err := fn(); err != nil {
			return err
		}
	}
	return rows.Err()
}

// SaveCenters upserts centers and replaces their nested records in one
// transaction.
func (s *SQLiteStore) SaveCenters(ctx context.Context, centers []model.Center) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save centers")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, c := range centers {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO centers (id, name, latitude, longitude, address, phone, active, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, datetime('now'))
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, latitude = excluded.latitude,
			longitude = excluded.longitude, address = excluded.address, phone = excluded.phone,
			active = excluded.active, updated_at = excluded.updated_at`,
			c.ID, c.Name, c.Location.Latitude, c.Location.Longitude, c.Address, c.Phone, c.Active,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: upsert center %s", c.ID)
		}
		for _, table := range []string{"center_hours", "center_holidays", "center_staff", "center_programs"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE center_id = ?`, c.ID); err != nil {
				return eris.Wrapf(err, "sqlite: clear %s for %s", table, c.ID)
			}
		}
		for _, h := range c.Hours {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO center_hours (center_id, day_of_week, open_time, close_time, is_open) VALUES (?, ?, ?, ?, ?)`,
				c.ID, h.DayOfWeek, h.OpenTime, h.CloseTime, h.IsOpen,
			); err != nil {
				return eris.Wrapf(err, "sqlite: insert hours for %s", c.ID)
			}
		}
		for _, h := range c.Holidays {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO center_holidays (center_id, holiday_date, name, regular) VALUES (?, ?, ?, ?)`,
				c.ID, h.Date, h.Name, h.Regular,
			); err != nil {
				return eris.Wrapf(err, "sqlite: insert holiday for %s", c.ID)
			}
		}
		for _, st := range c.Staff {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO center_staff (center_id, label, count) VALUES (?, ?, ?)`,
				c.ID, st.Label, st.Count,
			); err != nil {
				return eris.Wrapf(err, "sqlite: insert staff for %s", c.ID)
			}
		}
		for _, p := range c.Programs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO center_programs (center_id, category, target_group, description, online, free, fee, active)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				c.ID, p.Category, p.TargetGroup, p.Description, p.Online, p.Free, p.Fee, p.Active,
			); err != nil {
				return eris.Wrapf(err, "sqlite: insert program for %s", c.ID)
			}
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save centers")
}

func (s *SQLiteStore) RecordRecommendations(ctx context.Context, results []model.RecommendationResult, loc model.Coordinate, sessionID string) error {
	doc, err := json.Marshal(results)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal recommendations")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO recommendation_logs (id, session_id, latitude, longitude, results, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), sessionID, loc.Latitude, loc.Longitude, string(doc), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: insert recommendation log")
}

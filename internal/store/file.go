package store

import (
	"context"
	"os"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/centerrank/internal/geo"
	"github.com/sells-group/centerrank/internal/model"
)

// FileStore serves centers from a YAML fixture file held in memory.
// Recommendation logs are written to the global zap logger.
type FileStore struct {
	path string

	mu      sync.RWMutex
	centers []model.Center
}

type fixtureFile struct {
	Centers []fixtureCenter `yaml:"centers"`
}

// fixtureCenter mirrors model.Center with optional location and active
// fields. Centers without a location are kept but never returned.
type fixtureCenter struct {
	ID       string                     `yaml:"id"`
	Name     string                     `yaml:"name"`
	Location *model.Coordinate          `yaml:"location,omitempty"`
	Address  string                     `yaml:"address,omitempty"`
	Phone    string                     `yaml:"phone,omitempty"`
	Active   *bool                      `yaml:"active,omitempty"`
	Hours    []model.OperatingHourRule  `yaml:"hours,omitempty"`
	Holidays []model.HolidayException   `yaml:"holidays,omitempty"`
	Staff    []model.StaffCertification `yaml:"staff,omitempty"`
	Programs []model.Program            `yaml:"programs,omitempty"`
}

// located reports whether the fixture carries coordinates.
func (f fixtureCenter) located() bool { return f.Location != nil }

func (f fixtureCenter) center() model.Center {
	c := model.Center{
		ID:       f.ID,
		Name:     f.Name,
		Address:  f.Address,
		Phone:    f.Phone,
		Active:   f.Active == nil || *f.Active,
		Hours:    f.Hours,
		Holidays: f.Holidays,
		Staff:    f.Staff,
		Programs: f.Programs,
	}
	if f.Location != nil {
		c.Location = *f.Location
	}
	return c
}

func toFixture(c model.Center) fixtureCenter {
	loc := c.Location
	active := c.Active
	return fixtureCenter{
		ID:       c.ID,
		Name:     c.Name,
		Location: &loc,
		Address:  c.Address,
		Phone:    c.Phone,
		Active:   &active,
		Hours:    c.Hours,
		Holidays: c.Holidays,
		Staff:    c.Staff,
		Programs: c.Programs,
	}
}

// LoadFixtures reads centers from a YAML fixture file. Entries without a
// location are skipped with a warning.
func LoadFixtures(path string) ([]model.Center, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "file: read %s", path)
	}
	return parseFixtures(data)
}

func parseFixtures(data []byte) ([]model.Center, error) {
	var doc fixtureFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "file: parse fixtures")
	}

	seen := make(map[string]bool, len(doc.Centers))
	centers := make([]model.Center, 0, len(doc.Centers))
	for _, f := range doc.Centers {
		if f.ID == "" {
			return nil, eris.New("file: center without id")
		}
		if seen[f.ID] {
			return nil, eris.Errorf("file: duplicate center id %s", f.ID)
		}
		seen[f.ID] = true
		if !f.located() {
			zap.L().Warn("file: skipping center without location", zap.String("center_id", f.ID))
			continue
		}
		centers = append(centers, f.center())
	}
	return centers, nil
}

// NewFile loads a FileStore from path. A missing file yields an empty store
// that SaveCenters will create.
func NewFile(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}
	centers, err := LoadFixtures(path)
	if err != nil {
		return nil, err
	}
	s.centers = centers
	return s, nil
}

func (s *FileStore) FetchActiveCentersNear(_ context.Context, loc model.Coordinate, radiusMeters int) ([]model.Center, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Center
	for _, c := range s.centers {
		if !c.Active {
			continue
		}
		if geo.HaversineMeters(loc, c.Location) <= radiusMeters {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *FileStore) GetCenter(_ context.Context, id string) (*model.Center, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.centers {
		if s.centers[i].ID == id {
			c := s.centers[i]
			return &c, nil
		}
	}
	return nil, eris.Wrapf(ErrNotFound, "file: get center %s", id)
}

// SaveCenters merges centers by id and rewrites the fixture file.
func (s *FileStore) SaveCenters(_ context.Context, centers []model.Center) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID := make(map[string]model.Center, len(s.centers)+len(centers))
	for _, c := range s.centers {
		byID[c.ID] = c
	}
	for _, c := range centers {
		byID[c.ID] = c
	}
	merged := make([]model.Center, 0, len(byID))
	for _, c := range byID {
		merged = append(merged, c)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ID < merged[j].ID })

	doc := fixtureFile{Centers: make([]fixtureCenter, len(merged))}
	for i, c := range merged {
		doc.Centers[i] = toFixture(c)
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return eris.Wrap(err, "file: marshal fixtures")
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return eris.Wrapf(err, "file: write %s", s.path)
	}
	s.centers = merged
	return nil
}

// RecordRecommendations logs the served list. The file driver has no
// durable log table.
func (s *FileStore) RecordRecommendations(_ context.Context, results []model.RecommendationResult, loc model.Coordinate, sessionID string) error {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.CenterID
	}
	zap.L().Info("file: recommendations served",
		zap.String("session_id", sessionID),
		zap.Float64("latitude", loc.Latitude),
		zap.Float64("longitude", loc.Longitude),
		zap.Strings("center_ids", ids),
	)
	return nil
}

func (s *FileStore) Migrate(context.Context) error { return nil }

func (s *FileStore) Close() error { return nil }

package recommend

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/centerrank/internal/cache"
	"github.com/sells-group/centerrank/internal/config"
	"github.com/sells-group/centerrank/internal/geo"
	"github.com/sells-group/centerrank/internal/model"
	"github.com/sells-group/centerrank/internal/resilience"
	"github.com/sells-group/centerrank/internal/status"
)

type fakeDirectory struct {
	mu        sync.Mutex
	centers   []model.Center
	fetches   int
	failFirst int
	err       error
}

func (d *fakeDirectory) FetchActiveCentersNear(_ context.Context, _ model.Coordinate, _ int) ([]model.Center, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fetches++
	if d.err != nil {
		return nil, d.err
	}
	if d.fetches <= d.failFirst {
		return nil, resilience.Transient(errors.New("connection reset"))
	}
	return append([]model.Center(nil), d.centers...), nil
}

func (d *fakeDirectory) GetCenter(_ context.Context, id string) (*model.Center, error) {
	for i := range d.centers {
		if d.centers[i].ID == id {
			c := d.centers[i]
			return &c, nil
		}
	}
	return nil, errors.New("not found")
}

func (d *fakeDirectory) fetchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fetches
}

type fakeSink struct {
	mu       sync.Mutex
	sessions []string
	err      error
	block    chan struct{}
}

func (s *fakeSink) RecordRecommendations(_ context.Context, _ []model.RecommendationResult, _ model.Coordinate, sessionID string) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, sessionID)
	return s.err
}

func (s *fakeSink) recorded() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sessions...)
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("redis: connection refused")
}

func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("redis: connection refused")
}

func testRecommendConfig() config.RecommendConfig {
	return config.RecommendConfig{
		DefaultRadiusMeters: 5000,
		MaxRadiusMeters:     50000,
		DefaultLimit:        10,
		MaxLimit:            50,
	}
}

func fastRetry() resilience.RetryPolicy {
	return resilience.RetryPolicy{Attempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond, Multiplier: 2}
}

func newTestService(t *testing.T, dir Directory, opts ...ServiceOption) *Service {
	t.Helper()
	f := &fakeScorer{totals: map[string]float64{"a": 80, "b": 60, "c": 70}}
	base := []ServiceOption{WithRetryPolicy(fastRetry()), WithClock(func() time.Time { return mondayMorning })}
	return NewService(dir, NewRecommender(f), testRecommendConfig(), append(base, opts...)...)
}

func TestService_ValidatesInput(t *testing.T) {
	s := newTestService(t, &fakeDirectory{})
	ctx := context.Background()

	tests := []struct {
		name string
		q    Query
		want error
	}{
		{"latitude out of range", Query{Location: model.Coordinate{Latitude: 91, Longitude: 0}}, geo.ErrInvalidCoordinate},
		{"longitude out of range", Query{Location: model.Coordinate{Latitude: 0, Longitude: -181}}, geo.ErrInvalidCoordinate},
		{"negative radius", Query{Location: home, RadiusMeters: -1}, ErrInvalidRadius},
		{"radius too large", Query{Location: home, RadiusMeters: 60000}, ErrInvalidRadius},
		{"negative limit", Query{Location: home, Limit: -3}, ErrInvalidLimit},
		{"limit too large", Query{Location: home, Limit: 51}, ErrInvalidLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Recommend(ctx, tt.q)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestService_DefaultsAndRanking(t *testing.T) {
	dir := &fakeDirectory{centers: centersAt("a", "b", "c")}
	s := newTestService(t, dir)

	results, err := s.Recommend(context.Background(), Query{Location: home, Limit: 2})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "a", results[0].CenterID)
	assert.Equal(t, "c", results[1].CenterID)
}

func TestService_ReadThroughCache(t *testing.T) {
	dir := &fakeDirectory{centers: centersAt("a", "b")}
	s := newTestService(t, dir, WithCache(cache.NewMemory(16), time.Minute))
	ctx := context.Background()

	first, err := s.Recommend(ctx, Query{Location: home})
	require.NoError(t, err)
	second, err := s.Recommend(ctx, Query{Location: model.Coordinate{Latitude: 37.56634, Longitude: 126.97788}})
	require.NoError(t, err)

	assert.Equal(t, 1, dir.fetchCount())
	assert.Equal(t, first, second)

	_, err = s.Recommend(ctx, Query{Location: home, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, dir.fetchCount())
}

func TestService_CacheFailureDegrades(t *testing.T) {
	dir := &fakeDirectory{centers: centersAt("a")}
	s := newTestService(t, dir, WithCache(brokenCache{}, time.Minute))

	results, err := s.Recommend(context.Background(), Query{Location: home})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestService_UndecodableCacheEntryIsMiss(t *testing.T) {
	dir := &fakeDirectory{centers: centersAt("a")}
	mem := cache.NewMemory(16)
	s := newTestService(t, dir, WithCache(mem, time.Minute))
	ctx := context.Background()

	q, err := s.normalize(Query{Location: home, SessionID: "s"})
	require.NoError(t, err)
	require.NoError(t, mem.Set(ctx, CacheKey(q, "default"), []byte("{not json"), time.Minute))

	results, err := s.Recommend(ctx, Query{Location: home})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, dir.fetchCount())
}

func TestService_RetriesTransientDirectoryErrors(t *testing.T) {
	dir := &fakeDirectory{centers: centersAt("a"), failFirst: 2}
	s := newTestService(t, dir)

	results, err := s.Recommend(context.Background(), Query{Location: home})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 3, dir.fetchCount())
}

func TestService_DirectoryErrorIsReturned(t *testing.T) {
	dir := &fakeDirectory{err: errors.New("permission denied")}
	s := newTestService(t, dir)

	_, err := s.Recommend(context.Background(), Query{Location: home})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fetch centers")
	assert.Equal(t, 1, dir.fetchCount())
}

func TestService_LogSinkIsAsyncAndNonFatal(t *testing.T) {
	sink := &fakeSink{err: errors.New("disk full"), block: make(chan struct{})}
	dir := &fakeDirectory{centers: centersAt("a")}
	s := newTestService(t, dir, WithLogSink(sink))

	done := make(chan struct{})
	go func() {
		defer close(done)
		results, err := s.Recommend(context.Background(), Query{Location: home, SessionID: "session-1"})
		assert.NoError(t, err)
		assert.Len(t, results, 1)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Recommend blocked on the log sink")
	}

	close(sink.block)
	s.Wait()
	assert.Equal(t, []string{"session-1"}, sink.recorded())
}

func TestService_LogSinkRateLimited(t *testing.T) {
	sink := &fakeSink{}
	dir := &fakeDirectory{centers: centersAt("a")}
	cfg := testRecommendConfig()
	cfg.LogRatePerSec = 1
	s := NewService(dir, NewRecommender(&fakeScorer{}), cfg, WithLogSink(sink), WithRetryPolicy(fastRetry()))

	for range 5 {
		_, err := s.Recommend(context.Background(), Query{Location: home})
		require.NoError(t, err)
	}
	s.Wait()
	assert.Len(t, sink.recorded(), 1)
}

func TestService_GeneratesSessionID(t *testing.T) {
	sink := &fakeSink{}
	s := newTestService(t, &fakeDirectory{centers: centersAt("a")}, WithLogSink(sink))

	_, err := s.Recommend(context.Background(), Query{Location: home})
	require.NoError(t, err)
	s.Wait()

	recorded := sink.recorded()
	require.Len(t, recorded, 1)
	assert.Len(t, recorded[0], 36)
}

func TestService_CenterStatus(t *testing.T) {
	engine, err := status.NewEngine(config.OperatingConfig{Timezone: "UTC", ClosingSoonMinutes: 60, LookaheadDays: 14})
	require.NoError(t, err)

	c := centersAt("a")[0]
	c.Hours = []model.OperatingHourRule{{DayOfWeek: 1, OpenTime: "09:00", CloseTime: "10:30", IsOpen: true}}
	s := newTestService(t, &fakeDirectory{centers: []model.Center{c}}, WithStatusEngine(engine))

	got, res, err := s.CenterStatus(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
	assert.Equal(t, model.StatusClosingSoon, res.Detail.Status)
	assert.Equal(t, 80, res.Score)

	_, _, err = s.CenterStatus(context.Background(), "missing")
	assert.Error(t, err)
}

func TestService_CenterStatusWithoutEngine(t *testing.T) {
	s := newTestService(t, &fakeDirectory{})
	_, _, err := s.CenterStatus(context.Background(), "a")
	assert.Error(t, err)
}

func TestCacheKey(t *testing.T) {
	q := Query{Location: model.Coordinate{Latitude: 37.56634, Longitude: 126.97788}, RadiusMeters: 5000, Limit: 10}
	assert.Equal(t, "37.566:126.978:none:none:5000:10:w1", CacheKey(q, "w1"))

	q.Severity = model.SeverityHigh
	q.Profile = &model.UserProfile{Symptoms: []string{"sleep", "anxiety"}}
	key := CacheKey(q, "w1")
	assert.Contains(t, key, ":HIGH:")
	assert.NotContains(t, key, ":none:")
}

func TestProfileFingerprint(t *testing.T) {
	a := &model.UserProfile{Symptoms: []string{"sleep", "anxiety"}, AgeGroup: "adult"}
	b := &model.UserProfile{Symptoms: []string{"anxiety", "sleep"}, AgeGroup: "adult"}
	c := &model.UserProfile{Symptoms: []string{"anxiety"}, AgeGroup: "adult"}

	assert.Equal(t, "none", ProfileFingerprint(nil))
	assert.Equal(t, ProfileFingerprint(a), ProfileFingerprint(b))
	assert.NotEqual(t, ProfileFingerprint(a), ProfileFingerprint(c))
	assert.Len(t, ProfileFingerprint(a), 16)
	assert.Equal(t, []string{"sleep", "anxiety"}, a.Symptoms)
}

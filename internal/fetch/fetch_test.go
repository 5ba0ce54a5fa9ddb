package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TobiSchelling/vhireport/internal/config"
	"github.com/TobiSchelling/vhireport/internal/database"
	"github.com/TobiSchelling/vhireport/internal/region"
	"github.com/TobiSchelling/vhireport/internal/store"
)

var fetchedAt = time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

type stubFeed struct {
	mu     sync.Mutex
	fail   map[int]error
	called []int
}

func (s *stubFeed) Fetch(_ context.Context, regionID int) ([]byte, error) {
	s.mu.Lock()
	s.called = append(s.called, regionID)
	s.mu.Unlock()
	if err := s.fail[regionID]; err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("title\nheader\n2000, 1, 0, 0, 0, 0, %d\n", regionID)), nil
}

func testRegistry(t *testing.T) *region.Registry {
	t.Helper()
	reg, err := region.New([]region.Region{{ID: 1, Name: "Cherkasy"}, {ID: 11, Name: "Kyiv"}, {ID: 12, Name: "Kyiv City"}})
	require.NoError(t, err)
	return reg
}

func TestHTTPFeedURL(t *testing.T) {
	feed := NewHTTPFeed(config.Default().Source)
	u, err := url.Parse(feed.URL(7))
	require.NoError(t, err)

	assert.Equal(t, "www.star.nesdis.noaa.gov", u.Host)
	q := u.Query()
	assert.Equal(t, "UKR", q.Get("country"))
	assert.Equal(t, "7", q.Get("provinceID"))
	assert.Equal(t, "1981", q.Get("year1"))
	assert.Equal(t, "2024", q.Get("year2"))
	assert.Equal(t, "Mean", q.Get("type"))
}

func TestHTTPFeedFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("provinceID") {
		case "1":
			fmt.Fprint(w, "series")
		case "2":
			w.WriteHeader(http.StatusOK)
		default:
			http.Error(w, "down", http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	cfg := config.Default().Source
	cfg.BaseURL = srv.URL
	feed := NewHTTPFeed(cfg)

	body, err := feed.Fetch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "series", string(body))

	_, err = feed.Fetch(context.Background(), 2)
	var fetchErr *SourceFetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.ErrorIs(t, err, errEmptyBody)

	_, err = feed.Fetch(context.Background(), 3)
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusServiceUnavailable, fetchErr.Status)
	assert.Equal(t, 3, fetchErr.RegionID)
	assert.Contains(t, err.Error(), "Service Unavailable")
}

func TestSourceFetchErrorNonStandardStatus(t *testing.T) {
	err := &SourceFetchError{RegionID: 3, Status: 599, Err: errors.New("599")}
	assert.Equal(t, "fetching region 3: HTTP 599", err.Error())

	err = &SourceFetchError{RegionID: 3, Status: http.StatusNotFound}
	assert.Equal(t, "fetching region 3: Not Found", err.Error())
}

func TestHTTPFeedConnectionError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	cfg := config.Default().Source
	cfg.BaseURL = srv.URL
	srv.Close()

	_, err := NewHTTPFeed(cfg).Fetch(context.Background(), 1)
	var fetchErr *SourceFetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Zero(t, fetchErr.Status)
}

func TestFetchAllSkipsStoredAndIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	st, err := store.New(filepath.Join(dir, "vhi_data"))
	require.NoError(t, err)
	_, err = st.Write("Kyiv City", []byte("cached"), fetchedAt.Add(-time.Hour))
	require.NoError(t, err)

	db, err := database.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	defer db.Close()

	feed := &stubFeed{fail: map[int]error{1: &SourceFetchError{RegionID: 1, Status: http.StatusBadGateway}}}
	clock := clockwork.NewFakeClockAt(fetchedAt)
	f := NewFetcher(feed, st, testRegistry(t), WithLedger(db), WithClock(clock))

	result := f.FetchAll(context.Background())
	assert.Equal(t, 1, result.Fetched)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	require.Contains(t, result.Failures, "Cherkasy")
	assert.ElementsMatch(t, []int{1, 11}, feed.called)

	has, err := st.Has("Kyiv")
	require.NoError(t, err)
	assert.True(t, has)

	paths, err := st.List()
	require.NoError(t, err)
	assert.Contains(t, paths, filepath.Join(st.Dir(), "VHI_Kyiv_20240305_140709.csv"))

	run, err := db.GetRun(result.RunID)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, 1, run.Fetched)
	assert.Equal(t, 1, run.Skipped)
	assert.Equal(t, 1, run.Failed)

	attempts, err := db.GetAttemptsForRun(result.RunID)
	require.NoError(t, err)
	require.Len(t, attempts, 3)
	assert.Equal(t, database.StatusFailed, attempts[0].Status)
	assert.Equal(t, database.StatusFetched, attempts[1].Status)
	assert.Equal(t, database.StatusSkipped, attempts[2].Status)
	assert.Equal(t, "2024-03-05T14:07:09Z", attempts[1].AttemptedAt)
}

func TestFetchAllSecondRunSkipsEverything(t *testing.T) {
	st, err := store.New(t.TempDir())
	require.NoError(t, err)
	feed := &stubFeed{}
	f := NewFetcher(feed, st, testRegistry(t), WithClock(clockwork.NewFakeClockAt(fetchedAt)), WithConcurrency(3))

	first := f.FetchAll(context.Background())
	assert.Equal(t, 3, first.Fetched)
	assert.Empty(t, first.RunID)

	second := f.FetchAll(context.Background())
	assert.Equal(t, 0, second.Fetched)
	assert.Equal(t, 3, second.Skipped)
	assert.Len(t, feed.called, 3)
}

func TestFetchAllParallelWithLedger(t *testing.T) {
	dir := t.TempDir()
	st, err := store.New(filepath.Join(dir, "vhi_data"))
	require.NoError(t, err)
	db, err := database.Open(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	defer db.Close()

	registry := region.Default()
	feed := &stubFeed{}
	f := NewFetcher(feed, st, registry,
		WithLedger(db), WithClock(clockwork.NewFakeClockAt(fetchedAt)), WithConcurrency(8))

	first := f.FetchAll(context.Background())
	assert.Equal(t, registry.Len(), first.Fetched)
	assert.Zero(t, first.Failed)

	attempts, err := db.GetAttemptsForRun(first.RunID)
	require.NoError(t, err)
	require.Len(t, attempts, registry.Len())
	for i, a := range attempts {
		assert.Equal(t, i+1, a.RegionID)
		assert.Equal(t, database.StatusFetched, a.Status)
	}

	paths, err := st.List()
	require.NoError(t, err)
	assert.Len(t, paths, registry.Len())

	second := f.FetchAll(context.Background())
	assert.Equal(t, registry.Len(), second.Skipped)
	assert.Zero(t, second.Fetched)
	assert.Len(t, feed.called, registry.Len())

	stats, err := db.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Runs)
	assert.Equal(t, 2*registry.Len(), stats.Attempts)
	assert.Equal(t, registry.Len(), stats.RegionsFetched)
}

package places

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sotomaque/emoji-map-sub000/pkg/config"
	"github.com/sotomaque/emoji-map-sub000/pkg/model"
	"github.com/sotomaque/emoji-map-sub000/pkg/request"
	"github.com/sotomaque/emoji-map-sub000/pkg/tracker"
)

// Test catalog with distinct place types per category so every category
// becomes its own bucket.
const testCategoriesYAML = `categories:
  pizza:
    emoji: "🍕"
    place_type: "pizza_restaurant"
    keywords: ["pizza"]
  sushi:
    emoji: "🍣"
    place_type: "sushi_restaurant"
    keywords: ["sushi"]
  coffee:
    emoji: "☕"
    place_type: "cafe"
    keywords: ["coffee", "espresso"]
`

func testCatalog(t *testing.T) *config.CategoriesConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "categories.yaml")
	if err := os.WriteFile(path, []byte(testCategoriesYAML), 0o644); err != nil {
		t.Fatalf("write categories: %v", err)
	}
	catalog, err := config.LoadCategories(path)
	if err != nil {
		t.Fatalf("load categories: %v", err)
	}
	return catalog
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeBackend fakes the places API. Tests swap the nearby and details
// functions to shape responses per place type.
type fakeBackend struct {
	mu      sync.Mutex
	nearby  func(placeType string, r *http.Request) (int, string)
	details func(placeID string, r *http.Request) (int, string)
	queries []url.Values
	starts  []time.Time

	nearbyCalls  int32
	detailsCalls int32
}

func (b *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/places/nearby", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.nearbyCalls, 1)
		b.mu.Lock()
		b.queries = append(b.queries, r.URL.Query())
		b.starts = append(b.starts, time.Now())
		fn := b.nearby
		b.mu.Unlock()
		status, body := fn(r.URL.Query().Get("type"), r)
		w.WriteHeader(status)
		io.WriteString(w, body)
	})
	mux.HandleFunc("/api/places/details", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.detailsCalls, 1)
		b.mu.Lock()
		b.queries = append(b.queries, r.URL.Query())
		fn := b.details
		b.mu.Unlock()
		status, body := fn(r.URL.Query().Get("placeId"), r)
		w.WriteHeader(status)
		io.WriteString(w, body)
	})
	return mux
}

func (b *fakeBackend) setNearby(fn func(placeType string, r *http.Request) (int, string)) {
	b.mu.Lock()
	b.nearby = fn
	b.mu.Unlock()
}

func (b *fakeBackend) lastQuery(t *testing.T) url.Values {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queries) == 0 {
		t.Fatal("backend saw no requests")
	}
	return b.queries[len(b.queries)-1]
}

func (b *fakeBackend) startTimes() []time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]time.Time, len(b.starts))
	copy(out, b.starts)
	return out
}

// placesBody builds a nearby response with one pizza place per id.
func placesBody(ids ...string) string {
	list := make([]map[string]any, 0, len(ids))
	for i, id := range ids {
		list = append(list, map[string]any{
			"id":    id,
			"name":  strings.ToUpper(id),
			"emoji": "🍕",
			"location": map[string]float64{
				"latitude":  37.77 + float64(i)*0.01,
				"longitude": -122.41,
			},
		})
	}
	data, _ := json.Marshal(map[string]any{
		"places": list, "count": len(ids), "cacheHit": false,
	})
	return string(data)
}

const emptyBody = `{"places": [], "count": 0, "cacheHit": false}`

func errorBody(msg string) string {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return string(data)
}

// newFixture wires a Service against a fake backend. The default backend
// answers every nearby call with one place and every details call with a
// minimal record; mutate tweaks the config before the Service is built.
func newFixture(t *testing.T, mutate func(*config.Config)) (*Service, *fakeBackend, *tracker.Tracker) {
	t.Helper()

	b := &fakeBackend{
		nearby: func(string, *http.Request) (int, string) {
			return http.StatusOK, placesBody("p1")
		},
		details: func(string, *http.Request) (int, string) {
			return http.StatusOK, `{"name": "P1"}`
		},
	}
	srv := httptest.NewServer(b.handler())
	t.Cleanup(srv.Close)

	cfg := config.DefaultConfig()
	cfg.API.BaseURL = srv.URL
	cfg.API.Key = "test-key"
	cfg.Search.CacheTTL = config.Duration(time.Minute)
	cfg.Search.ThrottleInterval = config.Duration(20 * time.Millisecond)
	cfg.Search.RetryDelay = config.Duration(5 * time.Millisecond)
	cfg.Search.RequestTimeout = config.Duration(2 * time.Second)
	if mutate != nil {
		mutate(cfg)
	}

	stats := tracker.New()
	client := request.New(5*time.Second, discardLogger())
	svc := New(cfg, testCatalog(t), client, WithStats(stats), WithLogger(discardLogger()))
	return svc, b, stats
}

var sfCenter = model.Coordinate{Latitude: 37.7749, Longitude: -122.4194}

func TestFetchPlacesSuccess(t *testing.T) {
	svc, backend, stats := newFixture(t, nil)

	places, err := svc.FetchPlaces(context.Background(), FetchRequest{
		Center:     sfCenter,
		Categories: []model.CategoryKey{"pizza"},
	})
	if err != nil {
		t.Fatalf("FetchPlaces: %v", err)
	}
	if len(places) != 1 || places[0].ID != "p1" {
		t.Fatalf("places = %+v, want [p1]", places)
	}
	if places[0].Category != "pizza" {
		t.Errorf("category = %q, want pizza", places[0].Category)
	}

	q := backend.lastQuery(t)
	if got := q.Get("location"); got != "37.774900,-122.419400" {
		t.Errorf("location = %q", got)
	}
	if got := q.Get("radius"); got != "5000" {
		t.Errorf("radius = %q, want default 5000", got)
	}
	if got := q.Get("type"); got != "pizza_restaurant" {
		t.Errorf("type = %q", got)
	}
	if got := q.Get("keywords"); got != "pizza" {
		t.Errorf("keywords = %q", got)
	}
	if q.Has("open_now") {
		t.Error("open_now sent for a request that did not ask for it")
	}
	if got := q.Get("key"); got != "test-key" {
		t.Errorf("key = %q", got)
	}

	snap := stats.Snapshot()[KindPlaces]
	if snap.CacheMisses != 1 || snap.Started != 1 || snap.Successes != 1 {
		t.Errorf("stats = %+v, want 1 miss, 1 started, 1 success", snap)
	}
}

func TestFetchPlacesServedFromCache(t *testing.T) {
	svc, backend, stats := newFixture(t, nil)
	req := FetchRequest{Center: sfCenter, Categories: []model.CategoryKey{"pizza"}}

	first, err := svc.FetchPlaces(context.Background(), req)
	if err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	// The cache check runs before the throttle gate, so the immediate
	// second call must not wait or touch the backend.
	second, err := svc.FetchPlaces(context.Background(), req)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if len(second) != len(first) || second[0].ID != first[0].ID {
		t.Fatalf("cached result differs: %+v vs %+v", second, first)
	}
	if calls := atomic.LoadInt32(&backend.nearbyCalls); calls != 1 {
		t.Errorf("backend calls = %d, want 1", calls)
	}
	if snap := stats.Snapshot()[KindPlaces]; snap.CacheHits != 1 {
		t.Errorf("cache hits = %d, want 1", snap.CacheHits)
	}
}

func TestFetchPlacesCacheExpires(t *testing.T) {
	svc, backend, _ := newFixture(t, func(cfg *config.Config) {
		cfg.Search.CacheTTL = config.Duration(40 * time.Millisecond)
	})
	req := FetchRequest{Center: sfCenter, Categories: []model.CategoryKey{"pizza"}}

	if _, err := svc.FetchPlaces(context.Background(), req); err != nil {
		t.Fatalf("first fetch: %v", err)
	}
	time.Sleep(80 * time.Millisecond)
	if _, err := svc.FetchPlaces(context.Background(), req); err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	if calls := atomic.LoadInt32(&backend.nearbyCalls); calls != 2 {
		t.Errorf("backend calls = %d, want 2 after TTL expiry", calls)
	}
}

func TestFetchPlacesPartialFailure(t *testing.T) {
	svc, backend, stats := newFixture(t, nil)
	backend.setNearby(func(placeType string, _ *http.Request) (int, string) {
		switch placeType {
		case "pizza_restaurant":
			return http.StatusOK, placesBody("p1")
		case "cafe":
			return http.StatusOK, placesBody("c1")
		default:
			return http.StatusInternalServerError, errorBody("sushi backend down")
		}
	})

	places, err := svc.FetchPlaces(context.Background(), FetchRequest{
		Center:     sfCenter,
		Categories: []model.CategoryKey{"pizza", "sushi", "coffee"},
	})
	if err != nil {
		t.Fatalf("FetchPlaces: %v", err)
	}

	got := map[string]bool{}
	for _, p := range places {
		got[p.ID] = true
	}
	if len(got) != 2 || !got["p1"] || !got["c1"] {
		t.Fatalf("places = %+v, want p1 and c1", places)
	}
	if snap := stats.Snapshot()[KindPlaces]; snap.Successes != 1 || snap.Failures != 0 {
		t.Errorf("stats = %+v, want a clean success", snap)
	}
}

func TestFetchPlacesAllFail(t *testing.T) {
	svc, backend, stats := newFixture(t, nil)
	backend.setNearby(func(string, *http.Request) (int, string) {
		return http.StatusInternalServerError, errorBody("backend down")
	})

	_, err := svc.FetchPlaces(context.Background(), FetchRequest{
		Center:     sfCenter,
		Categories: []model.CategoryKey{"pizza", "sushi", "coffee"},
	})
	if err == nil {
		t.Fatal("FetchPlaces succeeded, want error")
	}
	var apiErr *request.APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "backend down" {
		t.Fatalf("err = %v, want APIError(backend down)", err)
	}
	if snap := stats.Snapshot()[KindPlaces]; snap.Failures != 1 {
		t.Errorf("failures = %d, want 1", snap.Failures)
	}
}

func TestFetchPlacesAllEmpty(t *testing.T) {
	svc, backend, stats := newFixture(t, nil)
	backend.setNearby(func(string, *http.Request) (int, string) {
		return http.StatusOK, emptyBody
	})
	req := FetchRequest{Center: sfCenter, Categories: []model.CategoryKey{"pizza"}}

	_, err := svc.FetchPlaces(context.Background(), req)
	if !errors.Is(err, ErrNoResults) {
		t.Fatalf("err = %v, want ErrNoResults", err)
	}
	if snap := stats.Snapshot()[KindPlaces]; snap.NoResults != 1 {
		t.Errorf("noResults = %d, want 1", snap.NoResults)
	}

	// The empty outcome must not be cached: once the backend has data, an
	// identical request reaches it and succeeds.
	backend.setNearby(func(string, *http.Request) (int, string) {
		return http.StatusOK, placesBody("p9")
	})
	time.Sleep(30 * time.Millisecond)

	places, err := svc.FetchPlaces(context.Background(), req)
	if err != nil {
		t.Fatalf("refetch: %v", err)
	}
	if len(places) != 1 || places[0].ID != "p9" {
		t.Fatalf("places = %+v, want [p9]", places)
	}
	if calls := atomic.LoadInt32(&backend.nearbyCalls); calls != 2 {
		t.Errorf("backend calls = %d, want 2", calls)
	}
}

// One bucket answers with a place, the other fails with a server error.
// The place wins and the error stays invisible.
func TestFetchPlacesOneBucketFailing(t *testing.T) {
	svc, backend, _ := newFixture(t, nil)
	backend.setNearby(func(placeType string, _ *http.Request) (int, string) {
		if placeType == "pizza_restaurant" {
			return http.StatusOK, placesBody("P1")
		}
		return http.StatusInternalServerError, errorBody("sushi backend down")
	})

	places, err := svc.FetchPlaces(context.Background(), FetchRequest{
		Center:     model.Coordinate{Latitude: 37.7749, Longitude: -122.4194},
		Categories: []model.CategoryKey{"pizza", "sushi"},
	})
	if err != nil {
		t.Fatalf("FetchPlaces: %v", err)
	}
	if len(places) != 1 || places[0].ID != "P1" {
		t.Fatalf("places = %+v, want exactly [P1]", places)
	}
}

func TestFetchPlacesRegionRadius(t *testing.T) {
	svc, backend, _ := newFixture(t, nil)

	_, err := svc.FetchPlaces(context.Background(), FetchRequest{
		Center: sfCenter,
		Region: &model.Region{
			Center: sfCenter,
			Span:   model.Span{LatitudeDelta: 0.1, LongitudeDelta: 0.1},
		},
		Categories: []model.CategoryKey{"pizza"},
	})
	if err != nil {
		t.Fatalf("FetchPlaces: %v", err)
	}

	radius, err := strconv.Atoi(backend.lastQuery(t).Get("radius"))
	if err != nil {
		t.Fatalf("radius param: %v", err)
	}
	if radius < 6800 || radius > 7400 {
		t.Errorf("radius = %d, want roughly 7100 for a 0.1 degree viewport", radius)
	}
}

func TestFetchPlaceDetails(t *testing.T) {
	svc, backend, stats := newFixture(t, nil)
	backend.mu.Lock()
	backend.details = func(placeID string, _ *http.Request) (int, string) {
		if placeID != "place-1" {
			return http.StatusNotFound, errorBody("unknown place")
		}
		return http.StatusOK, `{"name": "Tony's", "rating": 4.7, "priceLevel": 2,
			"openNow": true, "reviews": [{"author": "ari", "text": "great", "rating": 5}]}`
	}
	backend.mu.Unlock()

	details, err := svc.FetchPlaceDetails(context.Background(), "place-1")
	if err != nil {
		t.Fatalf("FetchPlaceDetails: %v", err)
	}
	if details.Name != "Tony's" || details.PlaceID != "place-1" {
		t.Fatalf("details = %+v", details)
	}
	if details.Rating == nil || *details.Rating != 4.7 {
		t.Errorf("rating = %v, want 4.7", details.Rating)
	}
	if len(details.Reviews) != 1 || details.Reviews[0].Author != "ari" {
		t.Errorf("reviews = %+v", details.Reviews)
	}

	// Immediate second call is a cache hit keyed by place ID.
	if _, err := svc.FetchPlaceDetails(context.Background(), "place-1"); err != nil {
		t.Fatalf("second FetchPlaceDetails: %v", err)
	}
	if calls := atomic.LoadInt32(&backend.detailsCalls); calls != 1 {
		t.Errorf("backend calls = %d, want 1", calls)
	}
	if snap := stats.Snapshot()[KindPlaceDetails]; snap.CacheHits != 1 {
		t.Errorf("cache hits = %d, want 1", snap.CacheHits)
	}
}

func TestFetchPlaceDetailsNoResults(t *testing.T) {
	svc, backend, stats := newFixture(t, nil)
	backend.mu.Lock()
	backend.details = func(string, *http.Request) (int, string) {
		return http.StatusOK, `{}`
	}
	backend.mu.Unlock()

	_, err := svc.FetchPlaceDetails(context.Background(), "place-1")
	if !errors.Is(err, ErrNoResults) {
		t.Fatalf("err = %v, want ErrNoResults", err)
	}
	if snap := stats.Snapshot()[KindPlaceDetails]; snap.NoResults != 1 {
		t.Errorf("noResults = %d, want 1", snap.NoResults)
	}
}

func TestFetchPlaceDetailsEmptyID(t *testing.T) {
	svc, backend, _ := newFixture(t, nil)

	_, err := svc.FetchPlaceDetails(context.Background(), "")
	if !errors.Is(err, request.ErrInvalidURL) {
		t.Fatalf("err = %v, want ErrInvalidURL", err)
	}
	if calls := atomic.LoadInt32(&backend.detailsCalls); calls != 0 {
		t.Errorf("backend calls = %d, want 0", calls)
	}
}

type staticLocation struct {
	center model.Coordinate
	region *model.Region
	err    error
}

func (s staticLocation) Current() (model.Coordinate, *model.Region, error) {
	return s.center, s.region, s.err
}

func TestFetchPlacesAt(t *testing.T) {
	svc, backend, _ := newFixture(t, nil)

	places, err := svc.FetchPlacesAt(context.Background(),
		staticLocation{center: sfCenter}, []model.CategoryKey{"pizza"}, false)
	if err != nil {
		t.Fatalf("FetchPlacesAt: %v", err)
	}
	if len(places) != 1 {
		t.Fatalf("places = %+v", places)
	}
	if got := backend.lastQuery(t).Get("radius"); got != "5000" {
		t.Errorf("radius = %q, want default with no viewport", got)
	}
}

func TestFetchPlacesAtSourceError(t *testing.T) {
	svc, backend, _ := newFixture(t, nil)
	srcErr := errors.New("gps off")

	_, err := svc.FetchPlacesAt(context.Background(),
		staticLocation{err: srcErr}, nil, false)
	if !errors.Is(err, srcErr) {
		t.Fatalf("err = %v, want the source error", err)
	}
	if calls := atomic.LoadInt32(&backend.nearbyCalls); calls != 0 {
		t.Errorf("backend calls = %d, want 0", calls)
	}
}

func TestNearbyURL(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.API.BaseURL = "https://api.example.com/"
	cfg.API.Key = "k1"
	svc := New(cfg, config.DefaultCategories(), nil, WithLogger(discardLogger()))

	u := svc.nearbyURL(FetchRequest{Center: sfCenter, OpenNow: true}, 5000.4,
		bucket{placeType: "restaurant", keywords: []string{"pizza", "sushi"}})

	parsed, err := url.Parse(u)
	if err != nil {
		t.Fatalf("url.Parse(%q): %v", u, err)
	}
	if parsed.Host != "api.example.com" || parsed.Path != "/api/places/nearby" {
		t.Fatalf("url = %q", u)
	}
	q := parsed.Query()
	if got := q.Get("location"); got != "37.774900,-122.419400" {
		t.Errorf("location = %q", got)
	}
	if got := q.Get("radius"); got != "5000" {
		t.Errorf("radius = %q", got)
	}
	if got := q.Get("keywords"); got != "pizza,sushi" {
		t.Errorf("keywords = %q", got)
	}
	if got := q.Get("open_now"); got != "true" {
		t.Errorf("open_now = %q", got)
	}
	if got := q.Get("key"); got != "k1" {
		t.Errorf("key = %q", got)
	}
}

func TestDetailsURL(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.API.BaseURL = "https://api.example.com"
	svc := New(cfg, config.DefaultCategories(), nil, WithLogger(discardLogger()))

	parsed, err := url.Parse(svc.detailsURL("ChIJ abc+def"))
	if err != nil {
		t.Fatalf("url.Parse: %v", err)
	}
	if parsed.Path != "/api/places/details" {
		t.Fatalf("path = %q", parsed.Path)
	}
	if got := parsed.Query().Get("placeId"); got != "ChIJ abc+def" {
		t.Errorf("placeId = %q, want the original id after escaping", got)
	}
	if parsed.Query().Has("key") {
		t.Error("key param sent despite empty configured key")
	}
}

package places

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/sotomaque/emoji-map-sub000/pkg/cache"
	"github.com/sotomaque/emoji-map-sub000/pkg/config"
	"github.com/sotomaque/emoji-map-sub000/pkg/model"
	"github.com/sotomaque/emoji-map-sub000/pkg/request"
	"github.com/sotomaque/emoji-map-sub000/pkg/tasks"
	"github.com/sotomaque/emoji-map-sub000/pkg/throttle"
	"github.com/sotomaque/emoji-map-sub000/pkg/tracker"
)

// maxStartAttempts bounds how often a throttled fetch re-checks the cache
// and retries the gate before giving up with ErrRequestTimeout.
const maxStartAttempts = 15

// Service runs the fetch pipeline: supersession of the previous request of
// the same kind, cache check, throttle gate, fan-out across category
// buckets, aggregation and timeout, then cache write-back.
type Service struct {
	cfg       *config.Config
	catalog   *config.CategoriesConfig
	transport Transport

	placesCache  *cache.Store[[]model.Place]
	detailsCache *cache.Store[*model.PlaceDetails]
	gate         *throttle.Gate
	registry     *tasks.Registry

	stats   *tracker.Tracker
	journal Journal
	logger  *slog.Logger
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithStats routes pipeline counters into t instead of a private tracker.
func WithStats(t *tracker.Tracker) Option {
	return func(s *Service) { s.stats = t }
}

// WithJournal records every successful nearby result set in j.
func WithJournal(j Journal) Option {
	return func(s *Service) { s.journal = j }
}

// WithLogger replaces the default component logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New creates a Service using transport for backend calls.
func New(cfg *config.Config, catalog *config.CategoriesConfig, transport Transport, opts ...Option) *Service {
	s := &Service{
		cfg:          cfg,
		catalog:      catalog,
		transport:    transport,
		placesCache:  cache.New[[]model.Place](cfg.Search.CacheTTL.Std()),
		detailsCache: cache.New[*model.PlaceDetails](cfg.Search.CacheTTL.Std()),
		gate:         throttle.New(cfg.Search.ThrottleInterval.Std()),
		registry:     tasks.New(),
		stats:        tracker.New(),
		logger:       slog.With("component", "places"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchPlaces runs one nearby search. Issuing a new search cancels the one
// still in flight before any of the new search's work starts: the newest
// request wins. Cached results return immediately; otherwise the request
// waits for the throttle gate (re-checking the cache between attempts) and
// fans out one sub-fetch per category bucket. Results from succeeding
// buckets are returned even when other buckets fail; only an entirely
// fruitless fan-out surfaces an error.
func (s *Service) FetchPlaces(ctx context.Context, req FetchRequest) ([]model.Place, error) {
	categories := s.selectCategories(req.Categories)
	radius := resolveRadius(req.Region, &s.cfg.Search)
	key := placesKey(req.Center, categories, req.OpenNow, radius)

	rid := correlationID()
	logger := s.logger.With("rid", rid, "kind", KindPlaces)

	handle := s.registry.Begin(ctx, KindPlaces)
	defer s.registry.Finish(KindPlaces, handle)

	for attempt := 0; ; attempt++ {
		if cached, ok := s.placesCache.Get(key); ok {
			s.stats.TrackCacheHit(KindPlaces)
			logger.Debug("cache hit", "key", key, "count", len(cached))
			return cached, nil
		}
		if attempt == 0 {
			s.stats.TrackCacheMiss(KindPlaces)
		}

		if s.gate.TryStart(KindPlaces) {
			break
		}
		if attempt+1 >= maxStartAttempts {
			s.stats.TrackTimeout(KindPlaces)
			logger.Warn("throttle gate still busy, giving up", "attempts", attempt+1)
			return nil, request.ErrRequestTimeout
		}
		logger.Debug("throttled, retrying",
			"attempt", attempt+1, "delay", s.cfg.Search.RetryDelay.Std())
		select {
		case <-handle.Ctx().Done():
			s.stats.TrackCancelled(KindPlaces)
			return nil, request.ErrRequestCancelled
		case <-time.After(s.cfg.Search.RetryDelay.Std()):
		}
	}
	defer s.gate.MarkCompleted(KindPlaces)

	s.stats.TrackStarted(KindPlaces)

	buckets := partition(categories, s.catalog)
	logger.Info("fetching places",
		"lat", req.Center.Latitude, "lng", req.Center.Longitude,
		"radius", int(math.Round(radius)), "buckets", len(buckets), "openNow", req.OpenNow)

	places, err := request.RaceTimeout(handle.Ctx(), s.cfg.Search.RequestTimeout.Std(),
		func(runCtx context.Context) ([]model.Place, error) {
			return s.fanOut(runCtx, logger, req, radius, buckets)
		})

	// A request superseded or cancelled while its sub-fetches ran reports
	// the cancellation and publishes nothing, whatever the fan-out said.
	if handle.Ctx().Err() != nil {
		s.stats.TrackCancelled(KindPlaces)
		logger.Warn("fetch cancelled", "err", handle.Ctx().Err())
		return nil, request.ErrRequestCancelled
	}
	if err != nil {
		s.trackFailure(KindPlaces, err)
		logger.Warn("fetch failed", "err", err)
		return nil, err
	}

	s.stats.TrackSuccess(KindPlaces)

	s.placesCache.Put(key, places)
	if s.journal != nil {
		if jErr := s.journal.SavePlaces(handle.Ctx(), places); jErr != nil {
			logger.Warn("journal write failed", "err", jErr)
		}
	}

	logger.Info("fetch complete", "count", len(places))
	return places, nil
}

// FetchPlaceDetails fetches the extended record for one place. Same
// pipeline as FetchPlaces with a single sub-fetch instead of a fan-out.
func (s *Service) FetchPlaceDetails(ctx context.Context, placeID string) (*model.PlaceDetails, error) {
	if placeID == "" {
		return nil, fmt.Errorf("%w: empty place id", request.ErrInvalidURL)
	}

	rid := correlationID()
	logger := s.logger.With("rid", rid, "kind", KindPlaceDetails)

	handle := s.registry.Begin(ctx, KindPlaceDetails)
	defer s.registry.Finish(KindPlaceDetails, handle)

	for attempt := 0; ; attempt++ {
		if cached, ok := s.detailsCache.Get(placeID); ok {
			s.stats.TrackCacheHit(KindPlaceDetails)
			logger.Debug("cache hit", "placeId", placeID)
			return cached, nil
		}
		if attempt == 0 {
			s.stats.TrackCacheMiss(KindPlaceDetails)
		}

		if s.gate.TryStart(KindPlaceDetails) {
			break
		}
		if attempt+1 >= maxStartAttempts {
			s.stats.TrackTimeout(KindPlaceDetails)
			logger.Warn("throttle gate still busy, giving up", "attempts", attempt+1)
			return nil, request.ErrRequestTimeout
		}
		logger.Debug("throttled, retrying",
			"attempt", attempt+1, "delay", s.cfg.Search.RetryDelay.Std())
		select {
		case <-handle.Ctx().Done():
			s.stats.TrackCancelled(KindPlaceDetails)
			return nil, request.ErrRequestCancelled
		case <-time.After(s.cfg.Search.RetryDelay.Std()):
		}
	}
	defer s.gate.MarkCompleted(KindPlaceDetails)

	s.stats.TrackStarted(KindPlaceDetails)
	logger.Info("fetching details", "placeId", placeID)

	details, err := request.RaceTimeout(handle.Ctx(), s.cfg.Search.RequestTimeout.Std(),
		func(runCtx context.Context) (*model.PlaceDetails, error) {
			data, err := s.transport.Get(runCtx, s.detailsURL(placeID))
			if err != nil {
				return nil, err
			}
			return decodeDetails(data, placeID)
		})

	if handle.Ctx().Err() != nil {
		s.stats.TrackCancelled(KindPlaceDetails)
		logger.Warn("details fetch cancelled", "placeId", placeID)
		return nil, request.ErrRequestCancelled
	}
	if err != nil {
		s.trackFailure(KindPlaceDetails, err)
		logger.Warn("details fetch failed", "placeId", placeID, "err", err)
		return nil, err
	}

	s.stats.TrackSuccess(KindPlaceDetails)
	s.detailsCache.Put(placeID, details)

	logger.Info("details complete", "placeId", placeID, "name", details.Name)
	return details, nil
}

// FetchPlacesAt runs a nearby search at the source's current position.
func (s *Service) FetchPlacesAt(ctx context.Context, src LocationSource, categories []model.CategoryKey, openNow bool) ([]model.Place, error) {
	center, region, err := src.Current()
	if err != nil {
		return nil, err
	}
	return s.FetchPlaces(ctx, FetchRequest{
		Center:     center,
		Region:     region,
		Categories: categories,
		OpenNow:    openNow,
	})
}

// CancelPlacesRequest aborts the live nearby search, if any. The throttle
// spacing stays in effect for the next request.
func (s *Service) CancelPlacesRequest() {
	s.registry.Cancel(KindPlaces)
}

// CancelPlaceDetailsRequest aborts the live details fetch, if any.
func (s *Service) CancelPlaceDetailsRequest() {
	s.registry.Cancel(KindPlaceDetails)
}

// CancelAll aborts every live request, stops their transport calls and
// resets the throttle gates so the next request may start immediately.
func (s *Service) CancelAll() {
	s.registry.CancelAll()
	s.transport.CancelActive()
	s.gate.ResetAll()
	s.logger.Info("cancelled all requests")
}

// ClearCache drops every cached result.
func (s *Service) ClearCache() {
	s.placesCache.Clear()
	s.detailsCache.Clear()
}

// fanOut runs one sub-fetch per bucket and aggregates. Any non-empty union
// of places is a success; an all-failed fan-out surfaces the first recorded
// error; all-empty is ErrNoResults.
func (s *Service) fanOut(ctx context.Context, logger *slog.Logger, req FetchRequest, radius float64, buckets []bucket) ([]model.Place, error) {
	if len(buckets) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoResults, KindPlaces)
	}

	state := newFetchState(len(buckets))

	g, gctx := errgroup.WithContext(ctx)
	for _, b := range buckets {
		g.Go(func() error {
			places, err := s.fetchBucket(gctx, req, radius, b)
			if gctx.Err() != nil && err == nil {
				// Cancelled after the response landed; the result must
				// not reach the accumulator.
				return nil
			}
			if err != nil {
				state.addError(err)
				logger.Warn("bucket failed", "type", b.placeType, "err", err)
				return nil // a failed bucket must not cancel its siblings
			}
			state.addPlaces(places)
			logger.Debug("bucket done", "type", b.placeType, "count", len(places))
			return nil
		})
	}
	_ = g.Wait()

	places, errs := state.snapshot()
	completed, total := state.progress()
	logger.Debug("fan-out complete",
		"completed", completed, "total", total,
		"places", len(places), "failures", len(errs))

	if len(places) > 0 {
		return places, nil
	}
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return nil, fmt.Errorf("%w: %s", ErrNoResults, KindPlaces)
}

func (s *Service) fetchBucket(ctx context.Context, req FetchRequest, radius float64, b bucket) ([]model.Place, error) {
	data, err := s.transport.Get(ctx, s.nearbyURL(req, radius, b))
	if err != nil {
		return nil, err
	}
	places, upstreamHit, err := decodePlaces(data, b, s.catalog)
	if err != nil {
		return nil, err
	}
	if upstreamHit {
		s.logger.Debug("backend served from its cache", "type", b.placeType)
	}
	return places, nil
}

func (s *Service) nearbyURL(req FetchRequest, radius float64, b bucket) string {
	q := url.Values{}
	q.Set("location", fmt.Sprintf("%.6f,%.6f", req.Center.Latitude, req.Center.Longitude))
	q.Set("radius", strconv.Itoa(int(math.Round(radius))))
	q.Set("type", b.placeType)
	if len(b.keywords) > 0 {
		q.Set("keywords", strings.Join(b.keywords, ","))
	}
	if req.OpenNow {
		q.Set("open_now", "true")
	}
	if s.cfg.API.Key != "" {
		q.Set("key", s.cfg.API.Key)
	}
	return strings.TrimSuffix(s.cfg.API.BaseURL, "/") + "/api/places/nearby?" + q.Encode()
}

func (s *Service) detailsURL(placeID string) string {
	q := url.Values{}
	q.Set("placeId", placeID)
	if s.cfg.API.Key != "" {
		q.Set("key", s.cfg.API.Key)
	}
	return strings.TrimSuffix(s.cfg.API.BaseURL, "/") + "/api/places/details?" + q.Encode()
}

// selectCategories normalizes the requested category set. Empty means
// every category the catalog knows.
func (s *Service) selectCategories(requested []model.CategoryKey) []model.CategoryKey {
	if len(requested) == 0 {
		return s.catalog.Keys()
	}
	return requested
}

// trackFailure files a failed attempt under the right counter.
func (s *Service) trackFailure(kind string, err error) {
	switch {
	case errors.Is(err, request.ErrRequestTimeout):
		s.stats.TrackTimeout(kind)
	case errors.Is(err, request.ErrRequestCancelled):
		s.stats.TrackCancelled(kind)
	case errors.Is(err, ErrNoResults):
		s.stats.TrackNoResults(kind)
	default:
		s.stats.TrackFailure(kind)
	}
}

// correlationID returns a short random ID tying an attempt's log lines
// together.
func correlationID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// Package places orchestrates nearby-search and place-details fetches
// against the backend: result caching, request throttling, supersession of
// stale requests, concurrent fan-out across category buckets and result
// aggregation.
package places

import (
	"context"

	"github.com/sotomaque/emoji-map-sub000/pkg/model"
)

// Request kinds, used as keys by the throttle gate, the task registry and
// the tracker.
const (
	KindPlaces       = "places"
	KindPlaceDetails = "placeDetails"
)

// FetchRequest describes one nearby search.
type FetchRequest struct {
	Center model.Coordinate

	// Region is the visible viewport. nil means no viewport is known and
	// the default search radius applies.
	Region *model.Region

	// Categories filters the search. Empty means every known category.
	Categories []model.CategoryKey

	// OpenNow restricts results to venues open at request time.
	OpenNow bool
}

// Transport issues the HTTP calls for the orchestrator. *request.Client
// satisfies it.
type Transport interface {
	Get(ctx context.Context, url string) ([]byte, error)
	CancelActive()
}

// Journal receives successfully fetched places for the history log.
// Writes are best-effort: failures are logged and swallowed.
type Journal interface {
	SavePlaces(ctx context.Context, places []model.Place) error
}

// LocationSource supplies the current map position and viewport.
type LocationSource interface {
	Current() (model.Coordinate, *model.Region, error)
}

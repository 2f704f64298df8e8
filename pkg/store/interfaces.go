package store

import (
	"context"
	"time"

	"github.com/sotomaque/emoji-map-sub000/pkg/model"
)

// Store is the persistence surface of the place journal.
// Consumers that only write should depend on places.Journal instead.
type Store interface {
	// SavePlaces upserts the places, bumping last_seen and times_seen for
	// places the journal already knows.
	SavePlaces(ctx context.Context, places []model.Place) error

	// RecentPlaces returns up to limit journal rows, most recently seen
	// first.
	RecentPlaces(ctx context.Context, limit int) ([]SeenPlace, error)

	// CountPlaces returns the number of distinct places in the journal.
	CountPlaces(ctx context.Context) (int, error)

	// Close closes the store connection.
	Close() error
}

// SeenPlace is one journal row: a place plus when and how often searches
// returned it.
type SeenPlace struct {
	Place     model.Place
	FirstSeen time.Time
	LastSeen  time.Time
	TimesSeen int
}

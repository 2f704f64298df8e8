package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/sotomaque/emoji-map-sub000/pkg/db"
	"github.com/sotomaque/emoji-map-sub000/pkg/model"
)

// SQLiteStore implements Store on the places journal database.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a new store.
func NewSQLiteStore(db *db.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const upsertPlace = `INSERT INTO places (
	place_id, name, emoji, category, lat, lng, price_level, rating,
	first_seen, last_seen, times_seen
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
ON CONFLICT(place_id) DO UPDATE SET
	name = excluded.name,
	emoji = excluded.emoji,
	category = excluded.category,
	lat = excluded.lat,
	lng = excluded.lng,
	price_level = COALESCE(excluded.price_level, places.price_level),
	rating = COALESCE(excluded.rating, places.rating),
	last_seen = excluded.last_seen,
	times_seen = places.times_seen + 1`

// SavePlaces upserts the places in one transaction. first_seen survives
// re-sightings; last_seen and times_seen track them.
func (s *SQLiteStore) SavePlaces(ctx context.Context, places []model.Place) error {
	if len(places) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertPlace)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, p := range places {
		var price sql.NullInt64
		if p.PriceLevel != nil {
			price = sql.NullInt64{Int64: int64(*p.PriceLevel), Valid: true}
		}
		var rating sql.NullFloat64
		if p.Rating != nil {
			rating = sql.NullFloat64{Float64: *p.Rating, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx,
			p.ID, p.Name, p.Emoji, string(p.Category),
			p.Coordinate.Latitude, p.Coordinate.Longitude,
			price, rating, now, now,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentPlaces returns up to limit rows ordered by last_seen, newest first.
func (s *SQLiteStore) RecentPlaces(ctx context.Context, limit int) ([]SeenPlace, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT place_id, name, emoji, category, lat, lng, price_level, rating,
			first_seen, last_seen, times_seen
		 FROM places ORDER BY last_seen DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SeenPlace
	for rows.Next() {
		var sp SeenPlace
		var category string
		var price sql.NullInt64
		var rating sql.NullFloat64
		var firstSeen, lastSeen sql.NullTime

		err := rows.Scan(
			&sp.Place.ID, &sp.Place.Name, &sp.Place.Emoji, &category,
			&sp.Place.Coordinate.Latitude, &sp.Place.Coordinate.Longitude,
			&price, &rating, &firstSeen, &lastSeen, &sp.TimesSeen,
		)
		if err != nil {
			return nil, err
		}

		sp.Place.Category = model.CategoryKey(category)
		if price.Valid {
			v := int(price.Int64)
			sp.Place.PriceLevel = &v
		}
		if rating.Valid {
			v := rating.Float64
			sp.Place.Rating = &v
		}
		if firstSeen.Valid {
			sp.FirstSeen = firstSeen.Time
		}
		if lastSeen.Valid {
			sp.LastSeen = lastSeen.Time
		}
		results = append(results, sp)
	}
	return results, rows.Err()
}

// CountPlaces returns the number of distinct places in the journal.
func (s *SQLiteStore) CountPlaces(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM places").Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

package places

import (
	"encoding/json"
	"fmt"

	"github.com/sotomaque/emoji-map-sub000/pkg/config"
	"github.com/sotomaque/emoji-map-sub000/pkg/model"
	"github.com/sotomaque/emoji-map-sub000/pkg/request"
)

// decodePlaces parses one nearby-search response and tags each place with
// the category it belongs to. The emoji decides the category; a place
// whose emoji the catalog does not know falls back to the first category
// of the bucket it was fetched for. Records without an ID are dropped.
// The second return is the backend's own cache-hit flag, logged upstream.
func decodePlaces(data []byte, b bucket, catalog *config.CategoriesConfig) ([]model.Place, bool, error) {
	var resp placesResponse
	if err := json.Unmarshal(model.SanitizeJSON(data), &resp); err != nil {
		return nil, false, fmt.Errorf("%w: %v", request.ErrDecoding, err)
	}

	places := make([]model.Place, 0, len(resp.Places))
	for _, rec := range resp.Places {
		if rec.ID == "" {
			continue
		}
		p := model.Place{
			ID:          rec.ID,
			Name:        rec.Name,
			Coordinate:  rec.Location,
			Emoji:       rec.Emoji,
			Description: rec.Description,
			PriceLevel:  rec.PriceLevel,
			Rating:      rec.Rating,
		}
		if rec.OpenNow != nil {
			open := rec.OpenNow.Bool()
			p.OpenNow = &open
		}
		if key, ok := catalog.ByEmoji(rec.Emoji); ok {
			p.Category = key
		} else if len(b.categories) > 0 {
			p.Category = b.categories[0]
		}
		places = append(places, p)
	}
	return places, resp.CacheHit.Bool(), nil
}

// decodeDetails parses a details response. A document that decodes but
// carries nothing usable counts as no result, not as success.
func decodeDetails(data []byte, placeID string) (*model.PlaceDetails, error) {
	var details model.PlaceDetails
	if err := json.Unmarshal(model.SanitizeJSON(data), &details); err != nil {
		return nil, fmt.Errorf("%w: %v", request.ErrDecoding, err)
	}
	if details.Empty() {
		return nil, fmt.Errorf("%w: %s", ErrNoResults, KindPlaceDetails)
	}
	details.PlaceID = placeID
	return &details, nil
}

// Wire format of the places backend. Older backend builds emit booleans
// as numbers and leave trailing commas, hence FlexBool and SanitizeJSON.

type placesResponse struct {
	Places   []placeRecord  `json:"places"`
	Count    int            `json:"count"`
	CacheHit model.FlexBool `json:"cacheHit"`
}

type placeRecord struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Emoji       string           `json:"emoji"`
	Location    model.Coordinate `json:"location"`
	Description string           `json:"description"`
	PriceLevel  *int             `json:"priceLevel"`
	OpenNow     *model.FlexBool  `json:"openNow"`
	Rating      *float64         `json:"rating"`
}

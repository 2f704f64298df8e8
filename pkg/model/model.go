// Package model defines the domain types shared across the client:
// coordinates, viewport regions, places and place details.
package model

// CategoryKey identifies an emoji category, e.g. "pizza" or "beer".
// Keys are lower-case.
type CategoryKey string

// Coordinate is a WGS84 position.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Span is the angular size of a viewport.
type Span struct {
	LatitudeDelta  float64 `json:"latitudeDelta"`
	LongitudeDelta float64 `json:"longitudeDelta"`
}

// Region is a map viewport: a center plus the visible span.
type Region struct {
	Center Coordinate `json:"center"`
	Span   Span       `json:"span"`
}

// Place is a single venue returned by a nearby search.
type Place struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Coordinate  Coordinate  `json:"location"`
	Category    CategoryKey `json:"category"`
	Emoji       string      `json:"emoji"`
	Description string      `json:"description,omitempty"`
	PriceLevel  *int        `json:"priceLevel,omitempty"`
	OpenNow     *bool       `json:"openNow,omitempty"`
	Rating      *float64    `json:"rating,omitempty"`
}

// Label returns the display line for a place. Falls back to the raw ID
// when the backend omitted a name.
func (p *Place) Label() string {
	name := p.Name
	if name == "" {
		name = p.ID
	}
	if p.Emoji == "" {
		return name
	}
	return p.Emoji + " " + name
}

// Review is a single user review attached to a place.
type Review struct {
	Author       string `json:"author"`
	Text         string `json:"text"`
	Rating       int    `json:"rating"`
	RelativeTime string `json:"relativeTime"`
}

// PlaceDetails carries the extended data for one place. All fields are
// optional on the wire; absent fields stay at their zero value.
type PlaceDetails struct {
	PlaceID    string   `json:"-"`
	Name       string   `json:"name"`
	Photos     []string `json:"photos"`
	Reviews    []Review `json:"reviews"`
	Rating     *float64 `json:"rating,omitempty"`
	PriceLevel *int     `json:"priceLevel,omitempty"`
	OpenNow    *bool    `json:"openNow,omitempty"`
}

// Empty reports whether the decode produced nothing usable.
func (d *PlaceDetails) Empty() bool {
	return d.Name == "" && len(d.Photos) == 0 && len(d.Reviews) == 0 &&
		d.Rating == nil && d.PriceLevel == nil && d.OpenNow == nil
}

package places

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/sotomaque/emoji-map-sub000/pkg/config"
	"github.com/sotomaque/emoji-map-sub000/pkg/model"
)

// resolveRadius turns the visible map region into a search radius in
// meters. The radius is the great-circle distance from the region center
// to the corner at half the span, clamped to the configured bounds. With
// no region we fall back to the configured default.
func resolveRadius(region *model.Region, search *config.SearchConfig) float64 {
	if region == nil {
		return search.DefaultRadius.Meters()
	}

	center := orb.Point{region.Center.Longitude, region.Center.Latitude}
	corner := orb.Point{
		region.Center.Longitude + region.Span.LongitudeDelta/2,
		region.Center.Latitude + region.Span.LatitudeDelta/2,
	}

	radius := geo.Distance(center, corner)
	if min := search.MinRadius.Meters(); radius < min {
		return min
	}
	if max := search.MaxRadius.Meters(); radius > max {
		return max
	}
	return radius
}

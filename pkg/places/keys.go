package places

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/sotomaque/emoji-map-sub000/pkg/model"
)

// placesKey derives the cache key for a nearby search. Coordinates are
// rounded to three decimals (roughly 110m) so GPS jitter maps to the same
// key; category keys are sorted so the key is independent of request
// order. Details results are keyed by the raw place ID instead.
func placesKey(center model.Coordinate, categories []model.CategoryKey, openNow bool, radiusMeters float64) string {
	keys := make([]string, len(categories))
	for i, c := range categories {
		keys[i] = string(c)
	}
	sort.Strings(keys)

	return fmt.Sprintf("places|%.3f|%.3f|%s|open=%t|r=%d",
		center.Latitude, center.Longitude,
		strings.Join(keys, ","), openNow, int(math.Round(radiusMeters)))
}

package places

import (
	"sort"

	"github.com/sotomaque/emoji-map-sub000/pkg/config"
	"github.com/sotomaque/emoji-map-sub000/pkg/model"
)

// bucket is one upstream sub-fetch: all requested categories that share a
// place type, with their keywords merged. Fetching per type instead of
// per category keeps the fan-out width down when the user selects many
// related categories.
type bucket struct {
	placeType  string
	keywords   []string
	categories []model.CategoryKey
}

// partition groups the requested categories by place type. Categories the
// catalog does not know are dropped. Buckets and their contents come back
// sorted so fan-out order is stable.
func partition(categories []model.CategoryKey, catalog *config.CategoriesConfig) []bucket {
	grouped := make(map[string]*bucket)
	for _, key := range categories {
		cat, ok := catalog.Get(key)
		if !ok {
			continue
		}
		b, found := grouped[cat.PlaceType]
		if !found {
			b = &bucket{placeType: cat.PlaceType}
			grouped[cat.PlaceType] = b
		}
		b.categories = append(b.categories, key)
		b.keywords = append(b.keywords, cat.Keywords...)
	}

	buckets := make([]bucket, 0, len(grouped))
	for _, b := range grouped {
		b.keywords = dedupe(b.keywords)
		sort.Slice(b.categories, func(i, j int) bool { return b.categories[i] < b.categories[j] })
		buckets = append(buckets, *b)
	}
	sort.Slice(buckets, func(i, j int) bool { return buckets[i].placeType < buckets[j].placeType })
	return buckets
}

func dedupe(values []string) []string {
	if len(values) < 2 {
		return values
	}
	sort.Strings(values)
	out := values[:1]
	for _, v := range values[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// Package main provides the emoji-map command line client. It runs a nearby
// search or a place-details lookup through the same pipeline the app uses
// (cache, throttle, category fan-out), records results in the place journal
// and prints them sorted by distance from the search center.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/joho/godotenv"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/sotomaque/emoji-map-sub000/pkg/config"
	"github.com/sotomaque/emoji-map-sub000/pkg/db"
	"github.com/sotomaque/emoji-map-sub000/pkg/logging"
	"github.com/sotomaque/emoji-map-sub000/pkg/model"
	"github.com/sotomaque/emoji-map-sub000/pkg/places"
	"github.com/sotomaque/emoji-map-sub000/pkg/request"
	"github.com/sotomaque/emoji-map-sub000/pkg/store"
	"github.com/sotomaque/emoji-map-sub000/pkg/tracker"
	"github.com/sotomaque/emoji-map-sub000/pkg/version"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfgPath := flag.String("config", "configs/emojimap.yaml", "Path to config file")
	catPath := flag.String("categories-file", "", "Path to a category table (default: built-in)")
	lat := flag.Float64("lat", 37.7749, "Search center latitude")
	lng := flag.Float64("lng", -122.4194, "Search center longitude")
	spanLat := flag.Float64("span-lat", 0, "Viewport latitude span in degrees (0 = default radius)")
	spanLng := flag.Float64("span-lng", 0, "Viewport longitude span in degrees (0 = default radius)")
	cats := flag.String("categories", "", "Comma-separated category keys (default: all)")
	openNow := flag.Bool("open", false, "Only venues open right now")
	details := flag.String("details", "", "Fetch details for one place ID instead of searching")
	history := flag.Int("history", 0, "Show the n most recently seen places and exit")
	stats := flag.Bool("stats", false, "Print fetch counters after the run")
	verbose := flag.Bool("verbose", false, "Log at DEBUG level")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("emojimap %s\n", version.Version)
		return nil
	}

	// A local .env can provide EMOJIMAP_API_KEY / EMOJIMAP_BASE_URL.
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if *verbose {
		cfg.Log.Server.Level = "DEBUG"
		cfg.Log.Requests.Level = "DEBUG"
	}

	cleanup, err := logging.Init(&cfg.Log)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer cleanup()

	catalog := config.DefaultCategories()
	if *catPath != "" {
		catalog, err = config.LoadCategories(*catPath)
		if err != nil {
			return fmt.Errorf("failed to load categories: %w", err)
		}
	}

	database, err := db.Init(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	journal := store.NewSQLiteStore(database)
	ctx := context.Background()

	if *history > 0 {
		return printHistory(ctx, journal, *history)
	}

	tr := tracker.New()
	client := request.New(cfg.Search.RequestTimeout.Std(), logging.RequestLogger)
	svc := places.New(cfg, catalog, client,
		places.WithStats(tr),
		places.WithJournal(journal),
	)

	if *details != "" {
		err = printDetails(ctx, svc, *details)
	} else {
		keys, perr := parseCategories(catalog, *cats)
		if perr != nil {
			return perr
		}
		center := model.Coordinate{Latitude: *lat, Longitude: *lng}
		var region *model.Region
		if *spanLat > 0 && *spanLng > 0 {
			region = &model.Region{
				Center: center,
				Span:   model.Span{LatitudeDelta: *spanLat, LongitudeDelta: *spanLng},
			}
		}
		err = search(ctx, svc, places.FetchRequest{
			Center:     center,
			Region:     region,
			Categories: keys,
			OpenNow:    *openNow,
		})
	}
	if err != nil {
		return err
	}

	if *stats {
		printStats(tr)
	}
	return nil
}

// parseCategories resolves a comma-separated list of category keys against
// the catalog. An empty list means every known category.
func parseCategories(catalog *config.CategoriesConfig, csv string) ([]model.CategoryKey, error) {
	if strings.TrimSpace(csv) == "" {
		return nil, nil
	}
	var keys []model.CategoryKey
	for _, part := range strings.Split(csv, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		key := model.CategoryKey(part)
		if _, ok := catalog.Get(key); !ok {
			return nil, fmt.Errorf("unknown category %q (valid: %s)", part, joinKeys(catalog.Keys()))
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func search(ctx context.Context, svc *places.Service, req places.FetchRequest) error {
	fmt.Printf("Searching around %.4f, %.4f\n\n", req.Center.Latitude, req.Center.Longitude)

	results, err := svc.FetchPlaces(ctx, req)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	center := orb.Point{req.Center.Longitude, req.Center.Latitude}
	sort.Slice(results, func(i, j int) bool {
		di := geo.Distance(orb.Point{results[i].Coordinate.Longitude, results[i].Coordinate.Latitude}, center)
		dj := geo.Distance(orb.Point{results[j].Coordinate.Longitude, results[j].Coordinate.Latitude}, center)
		return di < dj
	})

	fmt.Printf("Found %d places\n", len(results))
	fmt.Println(strings.Repeat("-", 80))
	for _, p := range results {
		dist := geo.Distance(orb.Point{p.Coordinate.Longitude, p.Coordinate.Latitude}, center)
		fmt.Printf("%-44s %8s  %s\n", p.Label(), formatDistance(dist), openLabel(p.OpenNow))
	}
	fmt.Println(strings.Repeat("-", 80))
	return nil
}

func printDetails(ctx context.Context, svc *places.Service, placeID string) error {
	d, err := svc.FetchPlaceDetails(ctx, placeID)
	if err != nil {
		return fmt.Errorf("details lookup failed: %w", err)
	}

	name := d.Name
	if name == "" {
		name = placeID
	}
	fmt.Printf("%s\n", name)
	fmt.Println(strings.Repeat("-", 80))
	if d.Rating != nil {
		fmt.Printf("Rating:  %.1f\n", *d.Rating)
	}
	if d.PriceLevel != nil {
		fmt.Printf("Price:   %s\n", strings.Repeat("$", *d.PriceLevel))
	}
	if d.OpenNow != nil {
		fmt.Printf("Status:  %s\n", openLabel(d.OpenNow))
	}
	if len(d.Photos) > 0 {
		fmt.Printf("Photos:  %d\n", len(d.Photos))
	}
	for _, r := range d.Reviews {
		fmt.Printf("\n%q\n", r.Text)
		fmt.Printf("   - %s (%d/5, %s)\n", r.Author, r.Rating, r.RelativeTime)
	}
	return nil
}

func printHistory(ctx context.Context, journal *store.SQLiteStore, n int) error {
	seen, err := journal.RecentPlaces(ctx, n)
	if err != nil {
		return fmt.Errorf("failed to read journal: %w", err)
	}
	if len(seen) == 0 {
		fmt.Println("Journal is empty. Run a search first.")
		return nil
	}

	fmt.Printf("Last %d places seen\n", len(seen))
	fmt.Println(strings.Repeat("-", 80))
	for _, s := range seen {
		fmt.Printf("%-44s seen %dx, last %s\n",
			s.Place.Label(), s.TimesSeen, s.LastSeen.Local().Format("2006-01-02 15:04"))
	}
	fmt.Println(strings.Repeat("-", 80))
	return nil
}

func printStats(tr *tracker.Tracker) {
	snapshot := tr.Snapshot()
	kinds := make([]string, 0, len(snapshot))
	for kind := range snapshot {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	fmt.Println("\nFetch counters")
	fmt.Println(strings.Repeat("-", 80))
	for _, kind := range kinds {
		s := snapshot[kind]
		fmt.Printf("%s: hits=%d misses=%d started=%d ok=%d failed=%d timeout=%d cancelled=%d empty=%d\n",
			kind, s.CacheHits, s.CacheMisses, s.Started, s.Successes,
			s.Failures, s.Timeouts, s.Cancelled, s.NoResults)
	}
}

func formatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.0fm", meters)
	}
	return fmt.Sprintf("%.1fkm", meters/1000)
}

func openLabel(open *bool) string {
	switch {
	case open == nil:
		return ""
	case *open:
		return "open"
	default:
		return "closed"
	}
}

func joinKeys(keys []model.CategoryKey) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = string(k)
	}
	return strings.Join(parts, ", ")
}

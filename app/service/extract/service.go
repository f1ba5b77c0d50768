package extract

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/elliotchance/pie/v2"
	"github.com/google/uuid"
	"github.com/rajjagirdar007/platemateuh/app/service/location"
	"github.com/rajjagirdar007/platemateuh/app/util/geo"
	"github.com/samber/do"
)

// Default coordinate used when no fix exists yet (downtown San Francisco).
const (
	defaultLatitude  = 37.7749
	defaultLongitude = -122.4194

	coordinateJitter = 0.01
)

// Extractor turns free-form model text into restaurant entities. It is a
// bounded heuristic over fixed vocabularies, not a real search; the
// randomized fields come from a seedable source so tests can pin output.
type Extractor struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func New(_ *do.Injector) (*Extractor, error) {
	return NewSeeded(time.Now().UnixNano()), nil
}

func NewSeeded(seed int64) *Extractor {
	return &Extractor{
		rnd: rand.New(rand.NewSource(seed)),
	}
}

type cuisineMatch struct {
	cuisine string
	index   int
}

// Extract scans responseText for venue-type keywords; if none match it
// returns no entities. Otherwise it synthesizes one entity per matched
// cuisine, first five distinct matches in text order, jittered around the
// fix (or the default coordinate). The response text is always returned
// unchanged as the second value.
func (e *Extractor) Extract(responseText string, fix *location.Fix) ([]Restaurant, string) {
	lower := strings.ToLower(responseText)

	hasVenue := pie.Any(venueKeywords, func(keyword string) bool {
		return strings.Contains(lower, keyword)
	})
	if !hasVenue {
		return nil, responseText
	}

	matches := make([]cuisineMatch, 0, len(cuisineVocabulary))
	for _, cuisine := range cuisineVocabulary {
		if idx := strings.Index(lower, strings.ToLower(cuisine)); idx >= 0 {
			matches = append(matches, cuisineMatch{cuisine: cuisine, index: idx})
		}
	}

	matches = pie.SortUsing(matches, func(a, b cuisineMatch) bool {
		return a.index < b.index
	})
	if len(matches) > maxEntities {
		matches = matches[:maxEntities]
	}

	entities := make([]Restaurant, 0, len(matches))
	for _, match := range matches {
		entities = append(entities, e.synthesize(match.cuisine, fix))
	}

	return entities, responseText
}

func (e *Extractor) synthesize(cuisine string, fix *location.Fix) Restaurant {
	e.mu.Lock()
	defer e.mu.Unlock()

	lat, lon := defaultLatitude, defaultLongitude
	if fix != nil {
		lat, lon = fix.Latitude, fix.Longitude
	}

	lat += (e.rnd.Float64()*2 - 1) * coordinateJitter
	lon += (e.rnd.Float64()*2 - 1) * coordinateJitter

	name := fmt.Sprintf("%s %s", cuisine, nameDescriptors[e.rnd.Intn(len(nameDescriptors))])
	street := streetNames[e.rnd.Intn(len(streetNames))]
	rating := math.Round((3.5+e.rnd.Float64()*1.5)*10) / 10

	record := Restaurant{
		ID:          uuid.NewString(),
		Name:        name,
		Address:     fmt.Sprintf("%d %s", 100+e.rnd.Intn(900), street),
		Phone:       fmt.Sprintf("(555) %03d-%04d", e.rnd.Intn(1000), e.rnd.Intn(10000)),
		Website:     fmt.Sprintf("https://%s.example.com", slugify(name)),
		Rating:      rating,
		PriceLevel:  1 + e.rnd.Intn(4),
		Cuisines:    []string{cuisine},
		Latitude:    lat,
		Longitude:   lon,
		Hours:       defaultHours,
		Description: fmt.Sprintf("A popular spot for %s food.", strings.ToLower(cuisine)),
	}

	if fix != nil {
		distance := geo.Distance(fix.Latitude, fix.Longitude, lat, lon)
		record.DistanceMeters = &distance
	}

	return record
}

func slugify(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "-")
}

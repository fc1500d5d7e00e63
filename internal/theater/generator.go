package theater

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
)

const earthRadiusKm = 6371.0088

// Continental US bounding box used when a place has no coordinates.
const (
	minLat = 24.396308
	maxLat = 49.384358
	minLon = -125.0
	maxLon = -66.93457
)

var openingHours = map[string]string{
	"monday":    "10:00-23:00",
	"tuesday":   "10:00-23:00",
	"wednesday": "10:00-23:00",
	"thursday":  "10:00-23:00",
	"friday":    "10:00-00:00",
	"saturday":  "10:00-00:00",
	"sunday":    "10:00-23:00",
}

// Generator synthesizes theaters for places. It is not safe for concurrent
// use because it shares one random source.
type Generator struct {
	rules  Rules
	rng    *rand.Rand
	logger *slog.Logger
}

// NewGenerator creates a Generator. A nil rng is seeded from the runtime.
func NewGenerator(rules Rules, rng *rand.Rand, logger *slog.Logger) *Generator {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Generator{rules: rules, rng: rng, logger: logger}
}

// Generate returns the theaters of every configured brand for place.
func (g *Generator) Generate(place domain.Place) []domain.Theater {
	tier := g.rules.Tier(place.PopulationOrZero())
	now := domain.Now()

	var out []domain.Theater
	for _, brand := range g.rules.Brands {
		n := g.between(g.rules.CountRange(tier, brand))
		for i := 0; i < n; i++ {
			out = append(out, g.theater(place, tier, brand, i, now))
		}
	}
	g.logger.Debug("theaters generated", "place", place.Key, "tier", tier, "count", len(out))
	return out
}

func (g *Generator) theater(place domain.Place, tier, brand string, i int, now time.Time) domain.Theater {
	lat, lon := g.location(place)
	return domain.Theater{
		UniqueID:   domain.TheaterID(brand, place.Key, i),
		Name:       g.name(tier, brand, place.Name),
		Brand:      brand,
		SourceCity: place.Name,
		CityKey:    place.Key,
		CityGEOID:  place.GEOID,
		Location:   domain.NewGeoPoint(lat, lon),
		Address: domain.Address{
			Street: fmt.Sprintf("%d %s", g.between(Range{100, 9999}), g.pick(g.rules.Streets)),
			City:   place.Name,
			State:  place.State,
			Zip:    strconv.Itoa(g.between(Range{10000, 99999})),
		},
		Contact: domain.Contact{
			Phone: fmt.Sprintf("(%d) %d-%d",
				g.between(Range{200, 999}), g.between(Range{200, 999}), g.between(Range{1000, 9999})),
			Website:      website(brand, place.Name, place.State, i),
			OpeningHours: copyHours(),
		},
		Features:    g.features(tier),
		LastUpdated: now,
	}
}

func (g *Generator) name(tier, brand, city string) string {
	name := strings.NewReplacer(
		"{brand}", strings.ToUpper(brand),
		"{city}", city,
		"{suffix}", g.pick(g.rules.Suffixes[brand]),
		"{number}", strconv.Itoa(g.between(g.rules.NameNumber)),
	).Replace(g.rules.NamePattern(tier, brand))
	return strings.Join(strings.Fields(name), " ")
}

func (g *Generator) features(tier string) []string {
	odds := g.rules.Features[tier]
	features := []string{domain.Feature2D, domain.Feature3D}
	if g.rng.Float64()*100 < odds.FourDX {
		features = append(features, domain.Feature4DX)
	}
	if g.rng.Float64()*100 < odds.IMAX {
		features = append(features, domain.FeatureIMAX)
	}
	return features
}

// location jitters the place centroid by up to JitterKm in a random
// direction, or falls back to a uniform point in the continental US.
func (g *Generator) location(place domain.Place) (lat, lon float64) {
	clat, clon, ok := place.Coordinates()
	if !ok {
		return minLat + g.rng.Float64()*(maxLat-minLat), minLon + g.rng.Float64()*(maxLon-minLon)
	}
	if g.rules.JitterKm <= 0 {
		return clat, clon
	}

	center := s2.PointFromLatLng(s2.LatLngFromDegrees(clat, clon))
	u := s2.Ortho(center)
	v := s2.Point{Vector: center.Cross(u.Vector).Normalize()}
	theta := g.rng.Float64() * 2 * math.Pi
	dir := s2.Point{Vector: u.Mul(math.Cos(theta)).Add(v.Mul(math.Sin(theta)))}

	// sqrt keeps the points uniform over the disc rather than clustered at the center.
	distKm := g.rules.JitterKm * math.Sqrt(g.rng.Float64())
	p := s2.InterpolateAtDistance(s1.Angle(distKm/earthRadiusKm), center, dir)
	ll := s2.LatLngFromPoint(p)
	return ll.Lat.Degrees(), ll.Lng.Degrees()
}

func (g *Generator) between(r Range) int {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + g.rng.IntN(r.Max-r.Min+1)
}

func (g *Generator) pick(options []string) string {
	if len(options) == 0 {
		return ""
	}
	return options[g.rng.IntN(len(options))]
}

func website(brand, city, state string, i int) string {
	slug := strings.Join(strings.Fields(strings.ToLower(city+" "+state)), "-")
	return fmt.Sprintf("https://www.%s.com/theaters/%s-%d", strings.ToLower(brand), slug, i+1)
}

func copyHours() map[string]string {
	out := make(map[string]string, len(openingHours))
	for day, hours := range openingHours {
		out[day] = hours
	}
	return out
}

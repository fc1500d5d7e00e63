package theater

import (
	"errors"
	"fmt"
)

// Population tiers.
const (
	TierMajorMetro = "major_metro"
	TierLargeCity  = "large_city"
	TierMediumCity = "medium_city"
	TierSmallCity  = "small_city"
)

// OtherBrand is the count-range and naming fallback for brands without their own entry.
const OtherBrand = "other"

// Tiers lists every tier, largest first.
var Tiers = []string{TierMajorMetro, TierLargeCity, TierMediumCity, TierSmallCity}

// Range is an inclusive integer interval.
type Range struct {
	Min int `koanf:"min" json:"min" validate:"gte=0"`
	Max int `koanf:"max" json:"max" validate:"gtefield=Min"`
}

// Thresholds are the minimum populations of the three upper tiers.
type Thresholds struct {
	MajorMetro int64 `koanf:"major_metro" json:"major_metro" validate:"gtfield=LargeCity"`
	LargeCity  int64 `koanf:"large_city" json:"large_city" validate:"gtfield=MediumCity"`
	MediumCity int64 `koanf:"medium_city" json:"medium_city" validate:"gt=0"`
}

// FeatureOdds are the percentage chances of premium formats in a tier.
type FeatureOdds struct {
	FourDX float64 `koanf:"four_dx" json:"four_dx" validate:"gte=0,lte=100"`
	IMAX   float64 `koanf:"imax" json:"imax" validate:"gte=0,lte=100"`
}

// Rules drive theater synthesis. Name patterns may use {brand}, {city},
// {suffix} and {number}.
type Rules struct {
	Brands       []string                     `koanf:"brands" json:"brands" validate:"required,min=1,dive,required"`
	Thresholds   Thresholds                   `koanf:"thresholds" json:"thresholds"`
	Counts       map[string]map[string]Range  `koanf:"counts" json:"counts" validate:"required,dive,dive"`
	NamePatterns map[string]map[string]string `koanf:"name_patterns" json:"name_patterns"`
	Suffixes     map[string][]string          `koanf:"suffixes" json:"suffixes"`
	NameNumber   Range                        `koanf:"name_number" json:"name_number"`
	Features     map[string]FeatureOdds       `koanf:"features" json:"features" validate:"dive"`
	Streets      []string                     `koanf:"streets" json:"streets" validate:"required,min=1"`
	JitterKm     float64                      `koanf:"jitter_km" json:"jitter_km" validate:"gte=0"`
}

// DefaultRules returns the built-in generation tables.
func DefaultRules() Rules {
	return Rules{
		Brands: []string{"amc", "regal", "cinemark"},
		Thresholds: Thresholds{
			MajorMetro: 1_000_000,
			LargeCity:  500_000,
			MediumCity: 100_000,
		},
		Counts: map[string]map[string]Range{
			TierMajorMetro: {"amc": {3, 8}, "regal": {2, 6}, "cinemark": {2, 5}, OtherBrand: {1, 3}},
			TierLargeCity:  {"amc": {2, 5}, "regal": {1, 4}, "cinemark": {1, 3}, OtherBrand: {1, 2}},
			TierMediumCity: {"amc": {1, 3}, "regal": {1, 2}, "cinemark": {1, 2}, OtherBrand: {0, 1}},
			TierSmallCity:  {"amc": {0, 2}, "regal": {0, 1}, "cinemark": {0, 1}, OtherBrand: {0, 0}},
		},
		NamePatterns: map[string]map[string]string{
			"amc": {
				TierMajorMetro: "{brand} {city} {number}",
				TierLargeCity:  "{brand} {city} {number}",
				TierMediumCity: "{brand} {city} {number}",
				TierSmallCity:  "{brand} {city} {number}",
			},
			"regal": {
				TierMajorMetro: "{brand} {city} {suffix} {number}",
				TierLargeCity:  "{brand} {city} {suffix}",
				TierMediumCity: "{brand} {city} {suffix}",
				TierSmallCity:  "{brand} {city} {suffix}",
			},
			"cinemark": {
				TierMajorMetro: "{brand} {city} {suffix} {number}",
				TierLargeCity:  "{brand} {city} {suffix}",
				TierMediumCity: "{brand} {city} {suffix}",
				TierSmallCity:  "{brand} {city} {suffix}",
			},
		},
		Suffixes: map[string][]string{
			"regal":    {"Cinema", "Stadium", "Grande", "Premiere", "Cineplex"},
			"cinemark": {"Theater", "Movies", "Cinema", "Xenon"},
		},
		NameNumber: Range{Min: 8, Max: 24},
		Features: map[string]FeatureOdds{
			TierMajorMetro: {FourDX: 40, IMAX: 30},
			TierLargeCity:  {FourDX: 30, IMAX: 20},
			TierMediumCity: {FourDX: 20, IMAX: 10},
			TierSmallCity:  {FourDX: 10, IMAX: 5},
		},
		Streets: []string{
			"Main Street", "Park Avenue", "Market Street", "Broadway",
			"First Avenue", "Second Street", "Oak Street", "Maple Avenue",
			"Pine Street", "Cedar Avenue", "Elm Street", "Washington Avenue",
			"Lake Street", "River Road", "Highland Avenue", "Valley View Drive",
			"Center Street", "Theater District", "Entertainment Boulevard",
			"Cinema Plaza", "Movie Lane", "Showtime Drive",
		},
		JitterKm: 15,
	}
}

// Tier classifies a population.
func (r Rules) Tier(population int64) string {
	switch {
	case population >= r.Thresholds.MajorMetro:
		return TierMajorMetro
	case population >= r.Thresholds.LargeCity:
		return TierLargeCity
	case population >= r.Thresholds.MediumCity:
		return TierMediumCity
	default:
		return TierSmallCity
	}
}

// CountRange returns how many theaters of brand a tier gets. Brands without
// an entry use the "other" range.
func (r Rules) CountRange(tier, brand string) Range {
	byBrand := r.Counts[tier]
	if rng, ok := byBrand[brand]; ok {
		return rng
	}
	return byBrand[OtherBrand]
}

// NamePattern returns the naming template for brand in tier.
func (r Rules) NamePattern(tier, brand string) string {
	if p := r.NamePatterns[brand][tier]; p != "" {
		return p
	}
	return "{brand} {city} {number}"
}

// CheckTables reports structural gaps that tag validation cannot express.
func (r Rules) CheckTables() error {
	var errs []error
	for _, tier := range Tiers {
		if _, ok := r.Counts[tier]; !ok {
			errs = append(errs, fmt.Errorf("counts: missing tier %q", tier))
		}
		if _, ok := r.Features[tier]; !ok {
			errs = append(errs, fmt.Errorf("features: missing tier %q", tier))
		}
	}
	if r.NameNumber.Max < r.NameNumber.Min {
		errs = append(errs, fmt.Errorf("name_number: max %d below min %d", r.NameNumber.Max, r.NameNumber.Min))
	}
	return errors.Join(errs...)
}

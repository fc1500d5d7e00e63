package census

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
)

// MajorCities are checked after every merge.
var MajorCities = []string{"New York city", "Los Angeles city", "Chicago city", "Houston city", "Phoenix city"}

// MergeResult reports the outcome of a population merge.
type MergeResult struct {
	Collect     CollectStats
	Attached    int
	Synthesized int
	Suppressed  int
	Unmatched   int // records left in the index after synthesis
	MajorCities []MajorCityStatus
}

// Merge joins the population CSV onto places in three sequential phases:
// collection into a MultiKeyIndex, attachment onto existing places, then
// synthesis of places missing from the gazetteer. places is updated in place.
// Row-level problems are counted; only header or reader failures are returned.
func Merge(places *domain.PlaceSet, population io.Reader, popColumn string, logger *slog.Logger) (MergeResult, error) {
	var res MergeResult

	index, stats, err := ReadPopulation(population, popColumn, logger)
	if err != nil {
		return res, fmt.Errorf("collect population: %w", err)
	}
	res.Collect = stats
	logger.Info("collected population records",
		"rows", stats.Rows,
		"kept", stats.Kept,
		"filtered", stats.Filtered,
		"bad_population", stats.BadPopulation,
		"discarded", stats.Discarded,
	)

	res.Attached = Attach(places, index)
	res.Synthesized, res.Suppressed = Synthesize(places, index, logger)
	res.MajorCities = VerifyMajorCities(places, index, logger)
	res.Unmatched = index.Len()

	logger.Info("merged population",
		"attached", res.Attached,
		"synthesized", res.Synthesized,
		"suppressed", res.Suppressed,
		"unmatched", res.Unmatched,
		"places", places.Len(),
	)
	return res, nil
}

// Attach sets population on each place from the first record found under its
// match key, its storage key, then its GEOID. A matched record is consumed so
// it cannot also spawn a synthesized place.
func Attach(places *domain.PlaceSet, index *MultiKeyIndex[Record]) int {
	attached := 0
	places.Each(func(p *domain.Place) bool {
		for _, key := range []string{domain.MatchKey(p.Name, p.State), p.Key, p.GEOID} {
			id, rec, ok := index.Lookup(key)
			if !ok {
				continue
			}
			p.SetPopulation(rec.Population)
			index.Consume(id)
			attached++
			break
		}
		return true
	})
	return attached
}

// Synthesize inserts a place for every remaining record that still holds a
// name-based key, unless a place in the same state shares the first word of
// its name. The first-word check is intentionally coarse: "Columbus Heights"
// is suppressed when "Columbus" exists.
func Synthesize(places *domain.PlaceSet, index *MultiKeyIndex[Record], logger *slog.Logger) (synthesized, suppressed int) {
	tokens := firstTokensByState(places)
	now := domain.Now()

	for _, e := range index.Remaining() {
		if !hasNameKey(e.Aliases) {
			continue
		}
		rec := e.Value
		token := domain.FirstToken(rec.Name)
		if token != "" && tokens[rec.Abbrev][token] {
			suppressed++
			logger.Debug("suppressed duplicate population record",
				"name", rec.Name,
				"state", rec.Abbrev,
			)
			continue
		}

		p := &domain.Place{
			Key:         domain.StorageKey("", rec.Name, rec.Abbrev),
			Name:        rec.Name,
			State:       rec.Abbrev,
			LastUpdated: now,
		}
		p.SetPopulation(rec.Population)
		places.Put(p)
		index.Consume(e.ID)
		synthesized++

		if tokens[rec.Abbrev] == nil {
			tokens[rec.Abbrev] = make(map[string]bool)
		}
		tokens[rec.Abbrev][token] = true
	}
	return synthesized, suppressed
}

func firstTokensByState(places *domain.PlaceSet) map[string]map[string]bool {
	out := make(map[string]map[string]bool)
	places.Each(func(p *domain.Place) bool {
		tok := domain.FirstToken(p.Name)
		if tok == "" {
			return true
		}
		st := domain.StateAbbrev(p.State)
		if out[st] == nil {
			out[st] = make(map[string]bool)
		}
		out[st][tok] = true
		return true
	})
	return out
}

// hasNameKey reports whether any alias contains an underscore and is not a
// bare place code.
func hasNameKey(aliases []Alias) bool {
	for _, a := range aliases {
		if strings.Contains(a.Key, "_") && !isDigits(a.Key) {
			return true
		}
	}
	return false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// MajorCityStatus reports what the merge produced for one major city.
type MajorCityStatus struct {
	Name       string
	State      string
	Found      bool
	Population int64
	BackFilled bool
}

// VerifyMajorCities checks that each of MajorCities is present with a
// population. A present city without one is back-filled from a remaining
// record whose key contains the city's match-key stem (see findByStem).
func VerifyMajorCities(places *domain.PlaceSet, index *MultiKeyIndex[Record], logger *slog.Logger) []MajorCityStatus {
	out := make([]MajorCityStatus, 0, len(MajorCities))
	for _, city := range MajorCities {
		found := false
		places.Each(func(p *domain.Place) bool {
			if p.Name != city {
				return true
			}
			found = true
			status := MajorCityStatus{Name: city, State: p.State, Found: true}
			if !p.HasPopulation() {
				if id, rec, ok := findByStem(index, city, p.State); ok {
					p.SetPopulation(rec.Population)
					index.Consume(id)
					status.BackFilled = true
					logger.Info("back-filled major city population", "city", city, "state", p.State, "population", rec.Population)
				}
			}
			status.Population = p.PopulationOrZero()
			out = append(out, status)
			return true
		})
		if !found {
			logger.Warn("major city not found in dataset", "city", city)
			out = append(out, MajorCityStatus{Name: city})
		}
	}
	return out
}

// findByStem picks the remaining record with a name key containing the
// city's stem. Same-state records win over others, then an exact stem match
// wins over a longer name; ties keep insertion order.
func findByStem(index *MultiKeyIndex[Record], city, state string) (int, Record, bool) {
	stem := nameStem(city)
	if stem == "" {
		return -1, Record{}, false
	}
	abbrev := domain.StateAbbrev(state)
	best, bestRank := -1, -1
	var bestRec Record
	for _, e := range index.Remaining() {
		if !aliasContains(e.Aliases, stem) {
			continue
		}
		rank := 0
		if e.Value.Abbrev == abbrev {
			rank += 2
		}
		if nameStem(e.Value.Name) == stem {
			rank++
		}
		if rank > bestRank {
			best, bestRank, bestRec = e.ID, rank, e.Value
		}
	}
	return best, bestRec, best >= 0
}

func aliasContains(aliases []Alias, stem string) bool {
	for _, a := range aliases {
		if a.Kind != AliasCode && strings.Contains(a.Key, stem) {
			return true
		}
	}
	return false
}

// nameStem is the name half of a match key.
func nameStem(name string) string {
	return strings.TrimSuffix(domain.MatchKey(name, ""), "_")
}

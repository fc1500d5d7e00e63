package domain

import "time"

// Place is one populated place assembled from the gazetteer and population feeds.
type Place struct {
	Key           string   `json:"key" bson:"key"`
	Name          string   `json:"name" bson:"name"`
	State         string   `json:"state" bson:"state"`
	GEOID         string   `json:"geoid,omitempty" bson:"geoid,omitempty"`
	Latitude      *float64 `json:"latitude,omitempty" bson:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty" bson:"longitude,omitempty"`
	Population    *int64   `json:"population,omitempty" bson:"population,omitempty"`
	LandAreaSqMi  *float64 `json:"land_area_sqmi,omitempty" bson:"land_area_sqmi,omitempty"`
	WaterAreaSqMi *float64 `json:"water_area_sqmi,omitempty" bson:"water_area_sqmi,omitempty"`

	// Processing progress, owned by the batch driver.
	Processed     bool       `json:"processed" bson:"processed"`
	TheatersFound int        `json:"theaters_found" bson:"theaters_found"`
	Error         string     `json:"error,omitempty" bson:"error,omitempty"`
	ProcessedAt   *time.Time `json:"processed_at,omitempty" bson:"processed_at,omitempty"`

	LastUpdated time.Time `json:"last_updated" bson:"last_updated"`
}

// HasPopulation reports whether a population figure is attached.
func (p *Place) HasPopulation() bool {
	return p.Population != nil
}

// PopulationOrZero returns the attached population or 0.
func (p *Place) PopulationOrZero() int64 {
	if p.Population == nil {
		return 0
	}
	return *p.Population
}

// SetPopulation attaches a population figure.
func (p *Place) SetPopulation(n int64) {
	p.Population = &n
}

// Coordinates returns the internal point when both components are known.
func (p *Place) Coordinates() (lat, lon float64, ok bool) {
	if p.Latitude == nil || p.Longitude == nil {
		return 0, 0, false
	}
	return *p.Latitude, *p.Longitude, true
}

// DisplayName formats the place as "Name, ST".
func (p *Place) DisplayName() string {
	if p.State == "" {
		return p.Name
	}
	return p.Name + ", " + p.State
}

// PlaceSet is an insertion-ordered collection of places keyed by storage key.
// Iteration order is stable so merges and exports are reproducible.
type PlaceSet struct {
	order []string
	byKey map[string]*Place
}

// NewPlaceSet returns an empty set.
func NewPlaceSet() *PlaceSet {
	return &PlaceSet{byKey: make(map[string]*Place)}
}

// Put stores p under its Key, replacing any existing place with that key
// while keeping the original position.
func (s *PlaceSet) Put(p *Place) {
	if _, ok := s.byKey[p.Key]; !ok {
		s.order = append(s.order, p.Key)
	}
	s.byKey[p.Key] = p
}

// Get returns the place stored under key.
func (s *PlaceSet) Get(key string) (*Place, bool) {
	p, ok := s.byKey[key]
	return p, ok
}

// Len returns the number of places.
func (s *PlaceSet) Len() int {
	return len(s.order)
}

// Each calls fn for every place in insertion order. Returning false stops the walk.
func (s *PlaceSet) Each(fn func(*Place) bool) {
	for _, k := range s.order {
		if !fn(s.byKey[k]) {
			return
		}
	}
}

// Places returns the places in insertion order.
func (s *PlaceSet) Places() []*Place {
	out := make([]*Place, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.byKey[k])
	}
	return out
}

// Keys returns the storage keys in insertion order.
func (s *PlaceSet) Keys() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// WithPopulation counts places that have a population figure.
func (s *PlaceSet) WithPopulation() int {
	n := 0
	for _, p := range s.byKey {
		if p.HasPopulation() {
			n++
		}
	}
	return n
}

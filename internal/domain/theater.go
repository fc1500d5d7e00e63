package domain

import (
	"strconv"
	"time"
)

// Theater features.
const (
	Feature2D   = "2D"
	Feature3D   = "3D"
	Feature4DX  = "4DX"
	FeatureIMAX = "IMAX"
)

// GeoPoint is a GeoJSON point. Coordinates are [lon, lat].
type GeoPoint struct {
	Type        string     `json:"type" bson:"type"`
	Coordinates [2]float64 `json:"coordinates" bson:"coordinates"`
}

// NewGeoPoint builds a GeoJSON point from latitude and longitude.
func NewGeoPoint(lat, lon float64) GeoPoint {
	return GeoPoint{Type: "Point", Coordinates: [2]float64{lon, lat}}
}

// Lat returns the point's latitude.
func (g GeoPoint) Lat() float64 { return g.Coordinates[1] }

// Lon returns the point's longitude.
func (g GeoPoint) Lon() float64 { return g.Coordinates[0] }

// Address is a theater street address.
type Address struct {
	Street string `json:"street" bson:"street"`
	City   string `json:"city" bson:"city"`
	State  string `json:"state" bson:"state"`
	Zip    string `json:"zip" bson:"zip"`
}

// Contact holds theater contact details and weekly opening hours
// ("HH:MM-HH:MM" per lower-case weekday).
type Contact struct {
	Phone        string            `json:"phone" bson:"phone"`
	Website      string            `json:"website" bson:"website"`
	OpeningHours map[string]string `json:"opening_hours" bson:"opening_hours"`
}

// Theater is a synthetic cinema generated for a place and brand.
type Theater struct {
	UniqueID    string    `json:"unique_id" bson:"unique_id"`
	Name        string    `json:"name" bson:"name"`
	Brand       string    `json:"brand" bson:"brand"`
	SourceCity  string    `json:"source_city" bson:"source_city"`
	CityKey     string    `json:"city_key" bson:"city_key"`
	CityGEOID   string    `json:"city_geoid,omitempty" bson:"city_geoid,omitempty"`
	Location    GeoPoint  `json:"location" bson:"location"`
	Address     Address   `json:"address" bson:"address"`
	Contact     Contact   `json:"contact" bson:"contact"`
	Features    []string  `json:"features" bson:"features"`
	LastUpdated time.Time `json:"last_updated" bson:"last_updated"`
}

// HasFeature reports whether the theater offers feature f.
func (t Theater) HasFeature(f string) bool {
	for _, have := range t.Features {
		if have == f {
			return true
		}
	}
	return false
}

// TheaterID composes the unique id for the index-th (0-based) theater of a
// brand in the place with storage key placeKey.
func TheaterID(brand, placeKey string, index int) string {
	return brand + "_" + placeKey + "_" + strconv.Itoa(index+1)
}

// BrandCount is the number of theaters of one brand.
type BrandCount struct {
	Brand string `json:"brand" bson:"_id"`
	Count int64  `json:"count" bson:"count"`
}

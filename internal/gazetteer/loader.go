// Package gazetteer parses the Census Bureau Gazetteer place file into places.
package gazetteer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
	"github.com/golang/geo/s2"
)

// ErrMissingColumn is returned when a required header column cannot be located.
var ErrMissingColumn = errors.New("gazetteer: required column not found")

// Header synonyms, compared after trimming surrounding whitespace.
var (
	nameCols  = []string{"NAME"}
	stateCols = []string{"USPS"}
	latCols   = []string{"INTPTLAT", "INTPTLAT_CURRENT"}
	lonCols   = []string{"INTPTLONG", "INTPTLONG_CURRENT", "INTPTLON", "INTPTLON_CURRENT"}
	geoidCols = []string{"GEOID"}
	landCols  = []string{"ALAND_SQMI", "LAND_SQMI"}
	waterCols = []string{"AWATER_SQMI", "WATER_SQMI"}
)

const maxLineBytes = 1 << 20

// LoadStats counts what happened to each data row.
type LoadStats struct {
	Rows           int
	Loaded         int
	ShortRows      int
	BadCoordinates int
	Replaced       int
}

// columns holds resolved header indices; optional columns are -1 when absent.
type columns struct {
	name, state, lat, lon int
	geoid, land, water    int
}

func (c columns) maxRequired() int {
	return max(c.name, c.state, c.lat, c.lon)
}

// Load reads tab-delimited gazetteer rows and returns the places keyed by
// storage key. Short rows and rows with unparsable or out-of-range
// coordinates are skipped and counted. A missing required column is fatal.
func Load(r io.Reader, logger *slog.Logger) (*domain.PlaceSet, LoadStats, error) {
	var stats LoadStats

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, stats, fmt.Errorf("read gazetteer header: %w", err)
		}
		return nil, stats, fmt.Errorf("%w: empty input", ErrMissingColumn)
	}

	cols, err := resolveColumns(splitRow(strings.TrimPrefix(scanner.Text(), "\ufeff")))
	if err != nil {
		return nil, stats, err
	}

	places := domain.NewPlaceSet()
	now := domain.Now()

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		stats.Rows++

		row := splitRow(line)
		if len(row) <= cols.maxRequired() {
			stats.ShortRows++
			continue
		}

		lat, errLat := strconv.ParseFloat(strings.TrimSpace(row[cols.lat]), 64)
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(row[cols.lon]), 64)
		if errLat != nil || errLon != nil || !s2.LatLngFromDegrees(lat, lon).IsValid() {
			stats.BadCoordinates++
			logger.Debug("skipping gazetteer row with bad coordinates",
				"name", strings.TrimSpace(row[cols.name]),
				"lat", row[cols.lat],
				"lon", row[cols.lon],
			)
			continue
		}

		p := &domain.Place{
			Name:          strings.TrimSpace(row[cols.name]),
			State:         strings.TrimSpace(row[cols.state]),
			GEOID:         optionalString(row, cols.geoid),
			Latitude:      &lat,
			Longitude:     &lon,
			LandAreaSqMi:  optionalFloat(row, cols.land),
			WaterAreaSqMi: optionalFloat(row, cols.water),
			LastUpdated:   now,
		}
		p.Key = domain.StorageKey(p.GEOID, p.Name, p.State)

		if _, exists := places.Get(p.Key); exists {
			stats.Replaced++
		}
		places.Put(p)
		stats.Loaded++
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("read gazetteer rows: %w", err)
	}

	return places, stats, nil
}

func resolveColumns(header []string) (columns, error) {
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	cols := columns{
		name:  indexOf(header, nameCols),
		state: indexOf(header, stateCols),
		lat:   indexOf(header, latCols),
		lon:   indexOf(header, lonCols),
		geoid: indexOf(header, geoidCols),
		land:  indexOf(header, landCols),
		water: indexOf(header, waterCols),
	}

	required := []struct {
		label string
		idx   int
	}{
		{"name", cols.name},
		{"state", cols.state},
		{"latitude", cols.lat},
		{"longitude", cols.lon},
	}
	for _, req := range required {
		if req.idx < 0 {
			return cols, fmt.Errorf("%w: %s (header: %v)", ErrMissingColumn, req.label, header)
		}
	}
	return cols, nil
}

func indexOf(header, synonyms []string) int {
	for i, col := range header {
		for _, s := range synonyms {
			if col == s {
				return i
			}
		}
	}
	return -1
}

func splitRow(line string) []string {
	return strings.Split(strings.TrimRight(line, "\r"), "\t")
}

func optionalString(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func optionalFloat(row []string, idx int) *float64 {
	s := optionalString(row, idx)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &v
}

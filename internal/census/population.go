// Package census merges Census Bureau population estimates into gazetteer places.
package census

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
)

// ErrMissingColumn is returned when the population header lacks a required column.
var ErrMissingColumn = errors.New("census: required population column not found")

// DefaultPopulationColumn is the estimate column read when none is configured.
const DefaultPopulationColumn = "POPESTIMATE2023"

// placeLevels are the summary levels that describe places.
var placeLevels = map[string]bool{"160": true, "162": true, "170": true}

// Record is one population row kept by the collection phase.
type Record struct {
	Name       string
	State      string // full state name as delivered
	Abbrev     string
	PlaceCode  string
	SumLevel   string
	Population int64
}

// CollectStats counts what happened to each population row.
type CollectStats struct {
	Rows            int
	Kept            int
	Filtered        int // summary level outside the place allow-list
	BadPopulation   int
	ShortRows       int
	Discarded       int // records whose keys were all overwritten by later rows
	UsedColumnLabel string
}

type popColumns struct {
	name, state, place, pop, sumlev int
}

func (c popColumns) maxRequired() int {
	return max(c.name, c.state, c.pop, c.sumlev)
}

// ReadPopulation reads the population CSV into a MultiKeyIndex. Each kept row
// is reachable by its full-state match key, its abbreviation match key when
// different, and its place code. Later rows win on shared keys.
//
// popColumn names the estimate column; when it is absent the first header
// containing "POP" and the column's year is used instead.
func ReadPopulation(r io.Reader, popColumn string, logger *slog.Logger) (*MultiKeyIndex[Record], CollectStats, error) {
	var stats CollectStats
	if popColumn == "" {
		popColumn = DefaultPopulationColumn
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, stats, fmt.Errorf("%w: empty input", ErrMissingColumn)
		}
		return nil, stats, fmt.Errorf("read population header: %w", err)
	}
	header = append([]string(nil), header...)
	cols, err := resolvePopColumns(header, popColumn)
	if err != nil {
		return nil, stats, err
	}
	stats.UsedColumnLabel = header[cols.pop]
	if stats.UsedColumnLabel != popColumn {
		logger.Warn("population column not found, using fallback",
			"configured", popColumn,
			"using", stats.UsedColumnLabel,
		)
	}

	index := NewMultiKeyIndex[Record]()
	ids := make([]int, 0, 1024)

	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				stats.Rows++
				stats.ShortRows++
				logger.Debug("skipping malformed population row", "error", err)
				continue
			}
			return nil, stats, fmt.Errorf("read population rows: %w", err)
		}
		stats.Rows++

		if len(row) <= cols.maxRequired() {
			stats.ShortRows++
			continue
		}
		if !placeLevels[strings.TrimSpace(row[cols.sumlev])] {
			stats.Filtered++
			continue
		}

		pop, ok := parsePopulation(row[cols.pop])
		name := strings.TrimSpace(row[cols.name])
		if !ok || name == "" {
			stats.BadPopulation++
			continue
		}

		rec := Record{
			Name:       name,
			State:      strings.TrimSpace(row[cols.state]),
			PlaceCode:  optionalField(row, cols.place),
			SumLevel:   strings.TrimSpace(row[cols.sumlev]),
			Population: pop,
		}
		rec.Abbrev = domain.StateAbbrev(rec.State)

		id, ok := index.Put(rec, recordAliases(rec)...)
		if !ok {
			continue
		}
		ids = append(ids, id)
		stats.Kept++
	}

	for _, id := range ids {
		if len(index.KeysOf(id)) == 0 {
			stats.Discarded++
		}
	}

	return index, stats, nil
}

// recordAliases builds the keys a record is reachable by.
func recordAliases(rec Record) []Alias {
	full := domain.RawMatchKey(rec.Name, rec.State)
	aliases := []Alias{{Kind: AliasFull, Key: full}}
	if abbrev := domain.MatchKey(rec.Name, rec.Abbrev); abbrev != full {
		aliases = append(aliases, Alias{Kind: AliasAbbrev, Key: abbrev})
	}
	if rec.PlaceCode != "" {
		aliases = append(aliases, Alias{Kind: AliasCode, Key: rec.PlaceCode})
	}
	return aliases
}

// parsePopulation accepts plain integers and thousands-separated figures.
func parsePopulation(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	n, err := strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func resolvePopColumns(header []string, popColumn string) (popColumns, error) {
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	cols := popColumns{
		name:   exactOr(header, "NAME", func(c string) bool { return strings.Contains(c, "NAME") && !strings.HasPrefix(c, "ST") }),
		state:  exactOr(header, "STNAME", func(c string) bool { return strings.Contains(c, "STNAME") || strings.Contains(c, "STATE") }),
		place:  exactOr(header, "PLACE", func(c string) bool { return strings.Contains(c, "PLACE") }),
		sumlev: exactOr(header, "SUMLEV", func(c string) bool { return strings.Contains(c, "SUMLEV") }),
		pop:    exactOr(header, popColumn, popFallback(popColumn)),
	}

	required := []struct {
		label string
		idx   int
	}{
		{"NAME", cols.name},
		{"STNAME", cols.state},
		{"SUMLEV", cols.sumlev},
		{popColumn, cols.pop},
	}
	for _, req := range required {
		if req.idx < 0 {
			return cols, fmt.Errorf("%w: %s (header: %v)", ErrMissingColumn, req.label, header)
		}
	}
	return cols, nil
}

// popFallback matches the first column mentioning POP and the configured year.
func popFallback(popColumn string) func(string) bool {
	year := strings.TrimLeftFunc(popColumn, func(r rune) bool { return r < '0' || r > '9' })
	return func(c string) bool {
		return strings.Contains(c, "POP") && (year == "" || strings.Contains(c, year))
	}
}

func exactOr(header []string, name string, fallback func(string) bool) int {
	for i, c := range header {
		if c == name {
			return i
		}
	}
	for i, c := range header {
		if fallback(c) {
			return i
		}
	}
	return -1
}

func optionalField(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

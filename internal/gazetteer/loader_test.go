package gazetteer

import (
	"archive/zip"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// gazRows joins tab-separated rows with newlines.
func gazRows(rows ...[]string) string {
	lines := make([]string, len(rows))
	for i, r := range rows {
		lines[i] = strings.Join(r, "\t")
	}
	return strings.Join(lines, "\n") + "\n"
}

func TestLoad_SpringfieldWithoutGEOID(t *testing.T) {
	input := gazRows(
		[]string{"USPS", "NAME", "INTPTLAT", "INTPTLONG"},
		[]string{"IL", "Springfield", "39.80", "-89.64"},
	)

	places, stats, err := Load(strings.NewReader(input), discardLogger())
	require.NoError(t, err)

	p, ok := places.Get("Springfield_IL")
	require.True(t, ok)
	assert.Equal(t, "Springfield", p.Name)
	assert.Equal(t, "IL", p.State)
	require.NotNil(t, p.Latitude)
	require.NotNil(t, p.Longitude)
	assert.InDelta(t, 39.80, *p.Latitude, 1e-9)
	assert.InDelta(t, -89.64, *p.Longitude, 1e-9)
	assert.Nil(t, p.Population)
	assert.Equal(t, 1, stats.Loaded)
}

func TestLoad_FullHeaderWithSynonymsAndPadding(t *testing.T) {
	// Real gazetteer files pad the last header cell with trailing spaces.
	input := gazRows(
		[]string{"USPS", "GEOID", "ANSICODE", "NAME", "LSAD", "FUNCSTAT", "ALAND", "AWATER", "LAND_SQMI", "AWATER_SQMI", "INTPTLAT_CURRENT", "INTPTLON_CURRENT                                                                                                               "},
		[]string{"IL", "1772000", "02395940", "Springfield city", "25", "A", "156000000", "1000000", "60.2", "0.39", "39.7638", "-89.6707"},
		[]string{"NY", "3651000", "02395220", "New York city", "25", "A", "778000000", "429000000", "300.4", "165.8", "40.6635", "-73.9387"},
	)

	places, stats, err := Load(strings.NewReader(input), discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Loaded)

	p, ok := places.Get("1772000")
	require.True(t, ok, "GEOID is the storage key when present")
	assert.Equal(t, "1772000", p.GEOID)
	require.NotNil(t, p.LandAreaSqMi)
	assert.InDelta(t, 60.2, *p.LandAreaSqMi, 1e-9)
	require.NotNil(t, p.WaterAreaSqMi)
	assert.InDelta(t, 0.39, *p.WaterAreaSqMi, 1e-9)
	assert.InDelta(t, -89.6707, *p.Longitude, 1e-9)

	assert.Equal(t, []string{"1772000", "3651000"}, places.Keys())
}

func TestLoad_MissingRequiredColumn(t *testing.T) {
	tests := []struct {
		name    string
		header  []string
		missing string
	}{
		{"no latitude", []string{"USPS", "NAME", "INTPTLONG"}, "latitude"},
		{"no longitude", []string{"USPS", "NAME", "INTPTLAT"}, "longitude"},
		{"no name", []string{"USPS", "INTPTLAT", "INTPTLONG"}, "name"},
		{"no state", []string{"NAME", "INTPTLAT", "INTPTLONG"}, "state"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Load(strings.NewReader(gazRows(tt.header)), discardLogger())
			require.ErrorIs(t, err, ErrMissingColumn)
			assert.Contains(t, err.Error(), tt.missing)
		})
	}
}

func TestLoad_EmptyInput(t *testing.T) {
	_, _, err := Load(strings.NewReader(""), discardLogger())
	require.ErrorIs(t, err, ErrMissingColumn)
}

func TestLoad_OptionalColumnsAbsent(t *testing.T) {
	input := gazRows(
		[]string{"NAME", "USPS", "INTPTLAT", "INTPTLONG"},
		[]string{"Tampa", "FL", "27.95", "-82.46"},
	)
	places, _, err := Load(strings.NewReader(input), discardLogger())
	require.NoError(t, err)

	p, ok := places.Get("Tampa_FL")
	require.True(t, ok)
	assert.Empty(t, p.GEOID)
	assert.Nil(t, p.LandAreaSqMi)
	assert.Nil(t, p.WaterAreaSqMi)
}

func TestLoad_SkipsAndCountsBadRows(t *testing.T) {
	input := gazRows(
		[]string{"USPS", "NAME", "INTPTLAT", "INTPTLONG", "ALAND_SQMI"},
		[]string{"IL", "Springfield", "39.80", "-89.64", "60.2"},
		[]string{"IL", "Short"},
		[]string{"IL", "BadLat", "north", "-89.64", "1"},
		[]string{"IL", "OutOfRange", "139.80", "-89.64", "1"},
		[]string{"IL", "BadArea", "40.0", "-89.0", "lots"},
		[]string{"TX", "Austin", "30.27", "-97.74", ""},
	)

	places, stats, err := Load(strings.NewReader(input), discardLogger())
	require.NoError(t, err)

	assert.Equal(t, 6, stats.Rows)
	assert.Equal(t, 3, stats.Loaded)
	assert.Equal(t, 1, stats.ShortRows)
	assert.Equal(t, 2, stats.BadCoordinates)
	assert.Equal(t, []string{"Springfield_IL", "BadArea_IL", "Austin_TX"}, places.Keys())

	p, _ := places.Get("BadArea_IL")
	assert.Nil(t, p.LandAreaSqMi, "unparsable area is left unset")
}

func TestLoad_DuplicateKeyReplaces(t *testing.T) {
	input := gazRows(
		[]string{"USPS", "NAME", "INTPTLAT", "INTPTLONG"},
		[]string{"IL", "Springfield", "39.80", "-89.64"},
		[]string{"IL", "Springfield", "39.81", "-89.65"},
	)
	places, stats, err := Load(strings.NewReader(input), discardLogger())
	require.NoError(t, err)

	assert.Equal(t, 1, places.Len())
	assert.Equal(t, 1, stats.Replaced)
	p, _ := places.Get("Springfield_IL")
	assert.InDelta(t, 39.81, *p.Latitude, 1e-9)
}

func TestLoad_StripsBOMAndCRLF(t *testing.T) {
	input := "\ufeffUSPS\tNAME\tINTPTLAT\tINTPTLONG\r\nIL\tSpringfield\t39.80\t-89.64\r\n"
	places, _, err := Load(strings.NewReader(input), discardLogger())
	require.NoError(t, err)

	p, ok := places.Get("Springfield_IL")
	require.True(t, ok)
	assert.InDelta(t, -89.64, *p.Longitude, 1e-9)
}

func writeZip(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gaz.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = io.WriteString(w, body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

func TestLoadArchive(t *testing.T) {
	path := writeZip(t, map[string]string{
		"2024_Gaz_place_national.txt": gazRows(
			[]string{"USPS", "GEOID", "NAME", "INTPTLAT", "INTPTLONG"},
			[]string{"FL", "1271000", "Tampa city", "27.95", "-82.46"},
		),
	})

	places, stats, err := LoadArchive(path, discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Loaded)
	_, ok := places.Get("1271000")
	assert.True(t, ok)
}

func TestOpenArchive_NoTextEntry(t *testing.T) {
	path := writeZip(t, map[string]string{"readme.md": "nothing here"})

	_, _, err := OpenArchive(path)
	require.ErrorIs(t, err, ErrNoTextEntry)
}

func TestOpenArchive_NotAZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o600))

	_, _, err := OpenArchive(path)
	require.Error(t, err)
}

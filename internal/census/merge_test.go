package census

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/movie-data-etl/internal/domain"
)

const popHeader = "SUMLEV,STATE,COUNTY,PLACE,NAME,STNAME,POPESTIMATE2022,POPESTIMATE2023\n"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func place(key, name, state, geoid string) *domain.Place {
	lat, lon := 40.0, -90.0
	return &domain.Place{Key: key, Name: name, State: state, GEOID: geoid, Latitude: &lat, Longitude: &lon}
}

func placeSet(ps ...*domain.Place) *domain.PlaceSet {
	s := domain.NewPlaceSet()
	for _, p := range ps {
		s.Put(p)
	}
	return s
}

func TestMerge_SpringfieldAttaches(t *testing.T) {
	places := placeSet(place("Springfield_IL", "Springfield", "IL", ""))
	csv := popHeader + `162,17,000,72000,Springfield city,Illinois,114000,"114,394"` + "\n"

	res, err := Merge(places, strings.NewReader(csv), "", discardLogger())
	require.NoError(t, err)

	p, _ := places.Get("Springfield_IL")
	require.True(t, p.HasPopulation())
	assert.Equal(t, int64(114394), p.PopulationOrZero())
	assert.Equal(t, 1, res.Attached)
	assert.Equal(t, 0, res.Synthesized)
	assert.Equal(t, 1, places.Len())
}

func TestMerge_StateLevelRowsNeverAttach(t *testing.T) {
	places := placeSet(place("Illinois_IL", "Illinois", "IL", ""))
	csv := popHeader + "040,17,000,00000,Illinois,Illinois,12600000,12549689\n"

	res, err := Merge(places, strings.NewReader(csv), "", discardLogger())
	require.NoError(t, err)

	p, _ := places.Get("Illinois_IL")
	assert.False(t, p.HasPopulation())
	assert.Equal(t, 0, res.Attached)
	assert.Equal(t, 0, res.Synthesized)
	assert.Equal(t, 1, res.Collect.Filtered)
}

func TestMerge_AttachCascade(t *testing.T) {
	tests := []struct {
		name  string
		place *domain.Place
		row   string
	}{
		{
			name:  "match key with full state name on place",
			place: place("1772000", "Springfield", "Illinois", "1772000"),
			row:   "162,17,000,72000,Springfield city,Illinois,0,100",
		},
		{
			name:  "storage key equals lower-cased match key",
			place: place("peoria_il", "Peoria Heights", "ZZ", ""),
			row:   "162,17,000,59000,Peoria,Illinois,0,100",
		},
		{
			name:  "geoid equals place code",
			place: place("99999", "Nowhere", "ZZ", "59001"),
			row:   "162,17,000,59001,Elsewhere,Illinois,0,100",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			places := placeSet(tt.place)
			res, err := Merge(places, strings.NewReader(popHeader+tt.row+"\n"), "", discardLogger())
			require.NoError(t, err)
			assert.Equal(t, 1, res.Attached)
			assert.Equal(t, int64(100), tt.place.PopulationOrZero())
			assert.Equal(t, 1, places.Len(), "consumed record must not be synthesized")
		})
	}
}

func TestMerge_SynthesizesMissingPlaces(t *testing.T) {
	places := placeSet(place("Springfield_IL", "Springfield", "IL", ""))
	csv := popHeader +
		"162,17,000,72000,Springfield city,Illinois,0,114394\n" +
		"162,17,000,04078,Aurora city,Illinois,0,180542\n" +
		"170,20,000,00000,Smallville town,Kansas,0,1200\n"

	res, err := Merge(places, strings.NewReader(csv), "", discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Synthesized)
	assert.Equal(t, []string{"Springfield_IL", "Aurora_city_IL", "Smallville_town_KS"}, places.Keys())

	aurora, ok := places.Get("Aurora_city_IL")
	require.True(t, ok)
	assert.Equal(t, "Aurora city", aurora.Name)
	assert.Equal(t, "IL", aurora.State)
	assert.Equal(t, int64(180542), aurora.PopulationOrZero())
	assert.Nil(t, aurora.Latitude)
}

func TestMerge_FirstTokenDuplicateSuppression(t *testing.T) {
	places := placeSet(place("3651000", "New York city", "NY", "3651000"))
	csv := popHeader +
		// Different full name, same first word in the same state.
		"162,36,000,50617,New Rochelle city,New York,0,81000\n" +
		// Same first word in a different state is not a duplicate.
		"162,34,000,51000,New Brunswick city,New Jersey,0,55000\n"

	res, err := Merge(places, strings.NewReader(csv), "", discardLogger())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Suppressed)
	assert.Equal(t, 1, res.Synthesized)
	_, ok := places.Get("New_Rochelle_city_NY")
	assert.False(t, ok)
	_, ok = places.Get("New_Brunswick_city_NJ")
	assert.True(t, ok)
}

func TestMerge_SuppressionSeesEarlierSyntheses(t *testing.T) {
	places := placeSet()
	csv := popHeader +
		"162,39,000,18000,Columbus city,Ohio,0,905748\n" +
		"162,39,000,18001,Columbus Heights village,Ohio,0,1200\n"

	res, err := Merge(places, strings.NewReader(csv), "", discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Synthesized)
	assert.Equal(t, 1, res.Suppressed)
	assert.Equal(t, []string{"Columbus_city_OH"}, places.Keys())
}

func TestMerge_Idempotent(t *testing.T) {
	csv := popHeader +
		"162,17,000,72000,Springfield city,Illinois,0,114394\n" +
		"162,17,000,04078,Aurora city,Illinois,0,180542\n" +
		"162,36,000,50617,New Rochelle city,New York,0,81000\n" +
		"170,20,000,00000,Smallville town,Kansas,0,1200\n" +
		"040,17,000,00000,Illinois,Illinois,0,12549689\n"

	build := func() *domain.PlaceSet {
		return placeSet(
			place("Springfield_IL", "Springfield", "IL", ""),
			place("3651000", "New York city", "NY", "3651000"),
		)
	}

	places := build()
	_, err := Merge(places, strings.NewReader(csv), "", discardLogger())
	require.NoError(t, err)
	firstKeys := places.Keys()
	firstPlaces := snapshot(places)

	res, err := Merge(places, strings.NewReader(csv), "", discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Synthesized)
	assert.Equal(t, firstKeys, places.Keys())
	if diff := cmp.Diff(firstPlaces, snapshot(places)); diff != "" {
		t.Errorf("second merge changed places (-first +second):\n%s", diff)
	}
}

// snapshot copies the fields a merge touches.
func snapshot(s *domain.PlaceSet) map[string]int64 {
	out := make(map[string]int64, s.Len())
	s.Each(func(p *domain.Place) bool {
		out[p.Key] = p.PopulationOrZero()
		return true
	})
	return out
}

func TestMerge_LastWriteWins(t *testing.T) {
	places := placeSet(place("Springfield_IL", "Springfield", "IL", ""))
	csv := popHeader +
		"162,17,000,72000,Springfield city,Illinois,0,100\n" +
		"162,17,000,72000,Springfield city,Illinois,0,200\n"

	res, err := Merge(places, strings.NewReader(csv), "", discardLogger())
	require.NoError(t, err)

	p, _ := places.Get("Springfield_IL")
	assert.Equal(t, int64(200), p.PopulationOrZero())
	assert.Equal(t, 1, res.Collect.Discarded)
	assert.Equal(t, 0, res.Synthesized)
}

func TestMerge_BadRowsAreCounted(t *testing.T) {
	places := placeSet()
	csv := popHeader +
		"162,17,000,72000,Springfield city,Illinois,0,\n" +
		"162,17,000,72001,Peoria city,Illinois,0,lots\n" +
		"162,17\n" +
		"162,17,000,72002,Joliet city,Illinois,0,150362\n"

	res, err := Merge(places, strings.NewReader(csv), "", discardLogger())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Collect.Rows)
	assert.Equal(t, 2, res.Collect.BadPopulation)
	assert.Equal(t, 1, res.Collect.ShortRows)
	assert.Equal(t, 1, res.Synthesized)
}

func TestMerge_MissingColumnIsFatal(t *testing.T) {
	_, err := Merge(placeSet(), strings.NewReader("SUMLEV,NAME,POPESTIMATE2023\n"), "", discardLogger())
	require.ErrorIs(t, err, ErrMissingColumn)
	assert.Contains(t, err.Error(), "STNAME")
}

func TestReadPopulation_ColumnFallback(t *testing.T) {
	csv := "SUMLEV,PLACE,NAME,STNAME,POPESTIMATE_2023\n162,72000,Springfield city,Illinois,114394\n"

	ix, stats, err := ReadPopulation(strings.NewReader(csv), "POPESTIMATE2023", discardLogger())
	require.NoError(t, err)
	assert.Equal(t, "POPESTIMATE_2023", stats.UsedColumnLabel)

	_, rec, ok := ix.Lookup("springfield_il")
	require.True(t, ok)
	assert.Equal(t, int64(114394), rec.Population)
	assert.Equal(t, "IL", rec.Abbrev)

	_, _, ok = ix.Lookup("springfield_illinois")
	assert.True(t, ok)
	_, _, ok = ix.Lookup("72000")
	assert.True(t, ok)
}

func TestReadPopulation_ConfiguredColumn(t *testing.T) {
	csv := popHeader + "162,17,000,72000,Springfield city,Illinois,111111,114394\n"

	ix, _, err := ReadPopulation(strings.NewReader(csv), "POPESTIMATE2022", discardLogger())
	require.NoError(t, err)
	_, rec, ok := ix.Lookup("springfield_il")
	require.True(t, ok)
	assert.Equal(t, int64(111111), rec.Population)
}

func TestParsePopulation(t *testing.T) {
	tests := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"114394", 114394, true},
		{"114,394", 114394, true},
		{" 1,234,567 ", 1234567, true},
		{"", 0, false},
		{"n/a", 0, false},
	}
	for _, tt := range tests {
		got, ok := parsePopulation(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestVerifyMajorCities(t *testing.T) {
	nyc := place("3651000", "New York city", "NY", "3651000")
	chicago := place("1714000", "Chicago city", "IL", "1714000")
	chicago.SetPopulation(2664452)
	places := placeSet(nyc, chicago)

	ix := NewMultiKeyIndex[Record]()
	ix.Put(Record{Name: "New York", State: "New York", Abbrev: "NY", Population: 8258035},
		Alias{AliasFull, "new_york_new_york"})

	got := VerifyMajorCities(places, ix, discardLogger())
	require.Len(t, got, len(MajorCities))

	assert.Equal(t, MajorCityStatus{Name: "New York city", State: "NY", Found: true, Population: 8258035, BackFilled: true}, got[0])
	assert.False(t, got[1].Found, "Los Angeles is absent")
	assert.Equal(t, MajorCityStatus{Name: "Chicago city", State: "IL", Found: true, Population: 2664452}, got[2])
	assert.Equal(t, 0, ix.Len(), "back-fill consumes the record")
}

func TestFindByStem(t *testing.T) {
	tests := []struct {
		name    string
		records []Record
		state   string
		want    string
		ok      bool
	}{
		{
			name:    "key containing the stem matches",
			records: []Record{{Name: "Houston city (balance)", State: "Texas", Abbrev: "TX", Population: 2314157}},
			state:   "TX",
			want:    "Houston city (balance)",
			ok:      true,
		},
		{
			name: "same state beats exact stem elsewhere",
			records: []Record{
				{Name: "Houston city", State: "Mississippi", Abbrev: "MS", Population: 3600},
				{Name: "Houston city (balance)", State: "Texas", Abbrev: "TX", Population: 2314157},
			},
			state: "TX",
			want:  "Houston city (balance)",
			ok:    true,
		},
		{
			name: "exact stem beats a longer name in the same state",
			records: []Record{
				{Name: "Houston Heights city", State: "Texas", Abbrev: "TX", Population: 40000},
				{Name: "Houston city", State: "Texas", Abbrev: "TX", Population: 2314157},
			},
			state: "TX",
			want:  "Houston city",
			ok:    true,
		},
		{
			name:    "other state used when nothing closer",
			records: []Record{{Name: "Houston city", State: "Mississippi", Abbrev: "MS", Population: 3600}},
			state:   "TX",
			want:    "Houston city",
			ok:      true,
		},
		{
			name:    "no containing key",
			records: []Record{{Name: "Dallas city", State: "Texas", Abbrev: "TX", Population: 1300000}},
			state:   "TX",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix := NewMultiKeyIndex[Record]()
			for _, r := range tt.records {
				ix.Put(r, recordAliases(r)...)
			}
			_, rec, ok := findByStem(ix, "Houston city", tt.state)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, rec.Name)
		})
	}
}

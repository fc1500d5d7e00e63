// Package domain models the movie catalog, Census place data, and the
// synthetic theater records derived from them.
//
// # Data Sources
//
// Places come from the Census Bureau Gazetteer place file, a zip archive
// holding one tab-delimited text file:
//
//	https://www2.census.gov/geo/docs/maps-data/data/gazetteer/
//
// Population figures come from the sub-county population estimates CSV
// (sub-est<year>.csv). Each row carries a SUMLEV code; only place-level rows
// (160 place, 162 incorporated place, 170 consolidated city) are used.
//
// Movies come from the TMDB v3 API (/discover/movie and /movie/{id}).
//
// # Keys
//
// Two key shapes exist and must not be conflated:
//
//	Storage key:  GEOID when present, else "<name>_<state abbrev>" with
//	              spaces replaced by underscores. Case is preserved.
//	              "Springfield", "IL"  →  "Springfield_IL"
//
//	Match key:    join-only key. Lower-cased, " city"/" town"/" village"
//	              suffixes stripped, whitespace collapsed, spaces replaced by
//	              underscores, then "_" + state token (abbreviation preferred).
//	              "Springfield city", "Illinois"  →  "springfield_il"
//
// See [StorageKey] and [MatchKey].
//
// # Population Tiers
//
// Theater synthesis buckets places by population:
//
//	major_metro  ≥ 1,000,000
//	large_city   ≥   500,000
//	medium_city  ≥   100,000
//	small_city   everything else, including places without population
//
// # Progress
//
// Each place carries a processed flag. Batch runs only select places whose
// flag is not set, ordered by population descending, so a restarted run
// resumes with the most significant remaining places.
package domain

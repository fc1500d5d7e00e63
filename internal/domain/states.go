package domain

import "strings"

// stateAbbrevs maps full state names to USPS abbreviations.
var stateAbbrevs = map[string]string{
	"Alabama":              "AL",
	"Alaska":               "AK",
	"Arizona":              "AZ",
	"Arkansas":             "AR",
	"California":           "CA",
	"Colorado":             "CO",
	"Connecticut":          "CT",
	"Delaware":             "DE",
	"Florida":              "FL",
	"Georgia":              "GA",
	"Hawaii":               "HI",
	"Idaho":                "ID",
	"Illinois":             "IL",
	"Indiana":              "IN",
	"Iowa":                 "IA",
	"Kansas":               "KS",
	"Kentucky":             "KY",
	"Louisiana":            "LA",
	"Maine":                "ME",
	"Maryland":             "MD",
	"Massachusetts":        "MA",
	"Michigan":             "MI",
	"Minnesota":            "MN",
	"Mississippi":          "MS",
	"Missouri":             "MO",
	"Montana":              "MT",
	"Nebraska":             "NE",
	"Nevada":               "NV",
	"New Hampshire":        "NH",
	"New Jersey":           "NJ",
	"New Mexico":           "NM",
	"New York":             "NY",
	"North Carolina":       "NC",
	"North Dakota":         "ND",
	"Ohio":                 "OH",
	"Oklahoma":             "OK",
	"Oregon":               "OR",
	"Pennsylvania":         "PA",
	"Rhode Island":         "RI",
	"South Carolina":       "SC",
	"South Dakota":         "SD",
	"Tennessee":            "TN",
	"Texas":                "TX",
	"Utah":                 "UT",
	"Vermont":              "VT",
	"Virginia":             "VA",
	"Washington":           "WA",
	"West Virginia":        "WV",
	"Wisconsin":            "WI",
	"Wyoming":              "WY",
	"District of Columbia": "DC",
	"Puerto Rico":          "PR",
}

// stateNames is the reverse of stateAbbrevs.
var stateNames = func() map[string]string {
	m := make(map[string]string, len(stateAbbrevs))
	for name, abbr := range stateAbbrevs {
		m[abbr] = name
	}
	return m
}()

// StateAbbrev returns the USPS abbreviation for a full state name.
// Unknown names, including values that are already abbreviations, are
// returned trimmed but otherwise unchanged.
func StateAbbrev(state string) string {
	state = strings.TrimSpace(state)
	if abbr, ok := stateAbbrevs[state]; ok {
		return abbr
	}
	return state
}

// StateName returns the full name for a USPS abbreviation, or the input
// unchanged when no mapping exists.
func StateName(abbr string) string {
	abbr = strings.TrimSpace(abbr)
	if name, ok := stateNames[strings.ToUpper(abbr)]; ok {
		return name
	}
	return abbr
}

package domain

import "strings"

// matchSuffixes are stripped from place names before joining. Only one
// trailing suffix is removed.
var matchSuffixes = []string{" city", " town", " village"}

// MatchKey builds the join key used to link gazetteer places with population
// records. It never fails: empty inputs still yield a deterministic key.
func MatchKey(name, state string) string {
	return matchName(name) + "_" + matchToken(StateAbbrev(state))
}

// RawMatchKey is MatchKey without the state abbreviation lookup, so a full
// state name stays in the key ("springfield_illinois").
func RawMatchKey(name, state string) string {
	return matchName(name) + "_" + matchToken(state)
}

// StorageKey returns the persistent identifier for a place: the GEOID when
// present, otherwise name and state abbreviation joined by an underscore with
// spaces replaced. Case is preserved.
func StorageKey(geoid, name, state string) string {
	if g := strings.TrimSpace(geoid); g != "" {
		return g
	}
	return strings.ReplaceAll(strings.TrimSpace(name)+"_"+StateAbbrev(state), " ", "_")
}

// FirstToken returns the lower-cased first whitespace-delimited word of name.
func FirstToken(name string) string {
	fields := strings.Fields(strings.ToLower(name))
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func matchName(name string) string {
	n := strings.Join(strings.Fields(strings.ToLower(name)), " ")
	for _, suffix := range matchSuffixes {
		if strings.HasSuffix(n, suffix) {
			n = strings.TrimSuffix(n, suffix)
			break
		}
	}
	return strings.ReplaceAll(n, " ", "_")
}

func matchToken(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "_")
}

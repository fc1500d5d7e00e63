package census

// AliasKind names one of the alias maps of a MultiKeyIndex.
type AliasKind string

const (
	AliasFull   AliasKind = "full"   // match key built with the full state name
	AliasAbbrev AliasKind = "abbrev" // match key built with the state abbreviation
	AliasCode   AliasKind = "code"   // raw census place code
)

// lookupOrder is the order alias maps are consulted by Lookup.
var lookupOrder = []AliasKind{AliasFull, AliasAbbrev, AliasCode}

// Alias is one key under which a record is reachable.
type Alias struct {
	Kind AliasKind
	Key  string
}

type indexEntry[T any] struct {
	value    T
	aliases  []Alias
	consumed bool
}

// MultiKeyIndex stores records once and reaches them through several named
// alias maps. A key string belongs to at most one record across all maps:
// putting a key that is already owned moves it to the new record, and a record
// left without keys is discarded. Consuming a record removes every alias that
// points at it.
type MultiKeyIndex[T any] struct {
	entries []*indexEntry[T]
	aliases map[AliasKind]map[string]int
	live    int
}

// NewMultiKeyIndex returns an empty index.
func NewMultiKeyIndex[T any]() *MultiKeyIndex[T] {
	ix := &MultiKeyIndex[T]{aliases: make(map[AliasKind]map[string]int, len(lookupOrder))}
	for _, kind := range lookupOrder {
		ix.aliases[kind] = make(map[string]int)
	}
	return ix
}

// Put stores value under the given aliases and returns its record id.
// Empty keys, unknown kinds and repeated keys are ignored. If no usable key
// remains the record is not stored and ok is false.
func (ix *MultiKeyIndex[T]) Put(value T, aliases ...Alias) (id int, ok bool) {
	usable := make([]Alias, 0, len(aliases))
	seen := make(map[string]bool, len(aliases))
	for _, a := range aliases {
		if _, known := ix.aliases[a.Kind]; !known || a.Key == "" || seen[a.Key] {
			continue
		}
		seen[a.Key] = true
		usable = append(usable, a)
	}
	if len(usable) == 0 {
		return -1, false
	}

	id = len(ix.entries)
	ix.entries = append(ix.entries, &indexEntry[T]{value: value})
	ix.live++

	for _, a := range usable {
		ix.evict(a.Key)
		ix.aliases[a.Kind][a.Key] = id
		ix.entries[id].aliases = append(ix.entries[id].aliases, a)
	}
	return id, true
}

// evict removes key from whichever record currently owns it.
func (ix *MultiKeyIndex[T]) evict(key string) {
	for kind, m := range ix.aliases {
		owner, ok := m[key]
		if !ok {
			continue
		}
		delete(m, key)
		e := ix.entries[owner]
		kept := e.aliases[:0]
		for _, a := range e.aliases {
			if !(a.Kind == kind && a.Key == key) {
				kept = append(kept, a)
			}
		}
		e.aliases = kept
		if len(e.aliases) == 0 && !e.consumed {
			e.consumed = true
			ix.live--
		}
	}
}

// Lookup returns the record reachable through key, consulting the full,
// abbreviation and code maps in that order.
func (ix *MultiKeyIndex[T]) Lookup(key string) (id int, value T, ok bool) {
	if key == "" {
		return -1, value, false
	}
	for _, kind := range lookupOrder {
		if id, found := ix.aliases[kind][key]; found {
			return id, ix.entries[id].value, true
		}
	}
	return -1, value, false
}

// Consume removes the record and every alias pointing at it.
func (ix *MultiKeyIndex[T]) Consume(id int) {
	if id < 0 || id >= len(ix.entries) {
		return
	}
	e := ix.entries[id]
	if e.consumed {
		return
	}
	for _, a := range e.aliases {
		delete(ix.aliases[a.Kind], a.Key)
	}
	e.aliases = nil
	e.consumed = true
	ix.live--
}

// KeysOf returns the aliases still pointing at the record.
func (ix *MultiKeyIndex[T]) KeysOf(id int) []Alias {
	if id < 0 || id >= len(ix.entries) {
		return nil
	}
	out := make([]Alias, len(ix.entries[id].aliases))
	copy(out, ix.entries[id].aliases)
	return out
}

// Entry is a live record returned by Remaining.
type Entry[T any] struct {
	ID      int
	Value   T
	Aliases []Alias
}

// Remaining returns unconsumed records that still hold at least one key, in
// insertion order.
func (ix *MultiKeyIndex[T]) Remaining() []Entry[T] {
	out := make([]Entry[T], 0, ix.live)
	for id, e := range ix.entries {
		if e.consumed || len(e.aliases) == 0 {
			continue
		}
		out = append(out, Entry[T]{ID: id, Value: e.value, Aliases: ix.KeysOf(id)})
	}
	return out
}

// Len returns the number of live records.
func (ix *MultiKeyIndex[T]) Len() int {
	return ix.live
}

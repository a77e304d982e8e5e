// Package symbols holds the ticker universe the typeahead searches.
package symbols

import "strings"

// Symbol is an upper-case ticker such as "TCS" or "RELIANCE".
type Symbol = string

// Index is an immutable, ordered snapshot of the symbol universe.
// The zero value is an empty index.
type Index struct {
	symbols []Symbol
	upper   []string
	set     map[string]Symbol
}

// NewIndex builds an index from symbols in the given order. The slice is
// copied; later changes by the caller are not observed.
func NewIndex(list []Symbol) *Index {
	idx := &Index{
		symbols: make([]Symbol, len(list)),
		upper:   make([]string, len(list)),
		set:     make(map[string]Symbol, len(list)),
	}
	copy(idx.symbols, list)
	for i, s := range idx.symbols {
		u := strings.ToUpper(s)
		idx.upper[i] = u
		if _, ok := idx.set[u]; !ok {
			idx.set[u] = s
		}
	}
	return idx
}

// Len returns the number of symbols.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.symbols)
}

// At returns the symbol at position i.
func (x *Index) At(i int) Symbol {
	return x.symbols[i]
}

// All returns a copy of the symbols in index order.
func (x *Index) All() []Symbol {
	if x == nil {
		return nil
	}
	out := make([]Symbol, len(x.symbols))
	copy(out, x.symbols)
	return out
}

// Lookup returns the catalog spelling of s, matched case-insensitively.
func (x *Index) Lookup(s string) (Symbol, bool) {
	if x == nil {
		return "", false
	}
	canonical, ok := x.set[strings.ToUpper(strings.TrimSpace(s))]
	return canonical, ok
}

// Contains reports whether s is in the index, ignoring case.
func (x *Index) Contains(s string) bool {
	_, ok := x.Lookup(s)
	return ok
}

// Search returns up to limit symbols whose upper-case form contains the
// upper-case query, in index order, and whether more matches existed beyond
// limit. A blank query matches nothing. limit <= 0 means no limit.
func (x *Index) Search(query string, limit int) ([]Symbol, bool) {
	if x == nil || strings.TrimSpace(query) == "" {
		return nil, false
	}
	needle := strings.ToUpper(query)

	var matches []Symbol
	for i, u := range x.upper {
		if !strings.Contains(u, needle) {
			continue
		}
		if limit > 0 && len(matches) == limit {
			return matches, true
		}
		matches = append(matches, x.symbols[i])
	}
	return matches, false
}

// Package filter implements faceted filtering over an in-memory result set.
//
// A Schema describes how to read searchable text and facet values out of a
// record. Apply is a pure function of (source, State): it never reorders or
// mutates the source and always returns a fresh slice.
package filter

import (
	"sort"
	"strconv"
	"strings"
)

// Any is the "no constraint" selection. It contains a NUL byte, which the write
// path strips from every stored text field, so no facet value can equal it.
const Any = "\x00any"

type MatchMode int

const (
	// Exact compares the raw value, case-sensitively.
	Exact MatchMode = iota
	// Contains is a case-insensitive substring match.
	Contains
)

type Order int

const (
	Lexical Order = iota
	Numeric
)

// Facet reads one categorical value from a record. Value must return "" for a
// missing value.
type Facet[T any] struct {
	Name  string
	Value func(T) string
	Match MatchMode
	Order Order
}

type Schema[T any] struct {
	Searchable []func(T) string
	Facets     []Facet[T]
}

// State is the user's current filter selection. A facet that is absent from
// Facets or set to Any is unconstrained; "" is a real selection.
type State struct {
	Search string
	Facets map[string]string
}

// NewState returns a State with every facet unconstrained.
func NewState() State {
	return State{Facets: map[string]string{}}
}

// Selection reports the active selection for facet, or false if unconstrained.
func (s State) Selection(facet string) (string, bool) {
	v, ok := s.Facets[facet]
	if !ok || v == Any {
		return "", false
	}
	return v, true
}

// Apply returns the records of src that satisfy state, in source order.
func (s Schema[T]) Apply(src []T, state State) []T {
	query := strings.ToLower(strings.TrimSpace(state.Search))

	type active struct {
		facet Facet[T]
		want  string
	}
	var constraints []active
	for _, f := range s.Facets {
		if v, ok := state.Selection(f.Name); ok {
			if f.Match == Contains {
				v = strings.ToLower(v)
			}
			constraints = append(constraints, active{facet: f, want: v})
		}
	}

	out := make([]T, 0, len(src))
	for _, rec := range src {
		if query != "" && !s.matchesSearch(rec, query) {
			continue
		}
		ok := true
		for _, c := range constraints {
			got := c.facet.Value(rec)
			if c.facet.Match == Contains {
				ok = strings.Contains(strings.ToLower(got), c.want)
			} else {
				ok = got == c.want
			}
			if !ok {
				break
			}
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out
}

func (s Schema[T]) matchesSearch(rec T, query string) bool {
	for _, field := range s.Searchable {
		if strings.Contains(strings.ToLower(field(rec)), query) {
			return true
		}
	}
	return false
}

// Values enumerates the distinct non-blank values of facet across the whole of
// src. It does not look at any State. Unknown facets yield nil.
func (s Schema[T]) Values(src []T, facet string) []string {
	f, ok := s.facet(facet)
	if !ok {
		return nil
	}
	seen := make(map[string]struct{})
	values := []string{}
	for _, rec := range src {
		v := f.Value(rec)
		if strings.TrimSpace(v) == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		values = append(values, v)
	}
	if f.Order == Numeric {
		sort.SliceStable(values, func(i, j int) bool { return numericLess(values[i], values[j]) })
	} else {
		sort.Strings(values)
	}
	return values
}

// AllValues enumerates every facet of the schema.
func (s Schema[T]) AllValues(src []T) map[string][]string {
	out := make(map[string][]string, len(s.Facets))
	for _, f := range s.Facets {
		out[f.Name] = s.Values(src, f.Name)
	}
	return out
}

// FacetNames lists the facets in declaration order.
func (s Schema[T]) FacetNames() []string {
	names := make([]string, 0, len(s.Facets))
	for _, f := range s.Facets {
		names = append(names, f.Name)
	}
	return names
}

func (s Schema[T]) facet(name string) (Facet[T], bool) {
	for _, f := range s.Facets {
		if f.Name == name {
			return f, true
		}
	}
	return Facet[T]{}, false
}

// numericLess orders parseable numbers ascending ahead of anything that does
// not parse; the latter fall back to lexical order.
func numericLess(a, b string) bool {
	fa, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
	fb, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)
	switch {
	case errA == nil && errB == nil:
		if fa != fb {
			return fa < fb
		}
		return a < b
	case errA == nil:
		return true
	case errB == nil:
		return false
	default:
		return a < b
	}
}

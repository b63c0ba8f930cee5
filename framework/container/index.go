package container

import (
	"sort"
	"strconv"
)

// ── Binding index ─────────────────────────────────────────────────────────────

// Range addresses Count consecutive factories starting at From in the flat
// factory array of a registration table. All of them serve Classifier.
type Range struct {
	From       int
	Count      int
	Classifier Classifier
}

type locationKind uint8

const (
	locSingle locationKind = iota + 1
	locRanged
	locMulti
)

// Location is where the factories for one Type live. Build it with
// SingleBinding, RangedBinding or MultiBinding.
type Location struct {
	kind    locationKind
	factory Factory
	// ranges is ordered by From; for locRanged it has one None range.
	ranges []Range
}

// SingleBinding binds exactly one unclassified factory, held outside the
// factory array.
func SingleBinding(f Factory) Location {
	return Location{kind: locSingle, factory: f}
}

// RangedBinding binds factories [from, from+count) unclassified.
func RangedBinding(from, count int) Location {
	return Location{kind: locRanged, ranges: []Range{{From: from, Count: count}}}
}

// MultiBinding binds one range per classifier.
//
//	// Page → {"": [0,1), "tab2": [1,2)}
//	index[PageType] = container.MultiBinding(
//	    container.Range{From: 0, Count: 1},
//	    container.Range{From: 1, Count: 1, Classifier: "tab2"},
//	)
func MultiBinding(ranges ...Range) Location {
	rs := append([]Range(nil), ranges...)
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].From < rs[j].From })
	return Location{kind: locMulti, ranges: rs}
}

// Ranges returns the location's ranges in registration order. A single
// binding has none.
func (l Location) Ranges() []Range { return append([]Range(nil), l.ranges...) }

// Index maps contract types to their locations. It is the second half of a
// registration table and is never mutated once registered.
type Index map[Type]Location

// validate checks l against a factory array of length n.
func (l Location) validate(t Type, n int) error {
	switch l.kind {
	case locSingle:
		if l.factory == nil {
			return indexError(t, "nil single factory")
		}
		return nil
	case locRanged, locMulti:
	default:
		return indexError(t, "zero location")
	}
	if len(l.ranges) == 0 {
		return indexError(t, "no ranges")
	}
	seen := make(map[Classifier]struct{}, len(l.ranges))
	end := 0
	for _, r := range l.ranges {
		if r.Count < 1 {
			return indexError(t, "range count "+strconv.Itoa(r.Count))
		}
		if r.From < 0 || r.From+r.Count > n {
			return indexError(t, "range ["+strconv.Itoa(r.From)+","+strconv.Itoa(r.From+r.Count)+") outside "+strconv.Itoa(n)+" factories")
		}
		if r.From < end {
			return indexError(t, "overlapping ranges")
		}
		if _, dup := seen[r.Classifier]; dup {
			return indexError(t, "classifier "+strconv.Quote(string(r.Classifier))+" listed twice")
		}
		seen[r.Classifier] = struct{}{}
		end = r.From + r.Count
	}
	if l.kind == locRanged && l.ranges[0].Classifier != None {
		return indexError(t, "ranged binding must be unclassified")
	}
	return nil
}

// rebase shifts array offsets by off when tables are merged.
func (l Location) rebase(off int) Location {
	if off == 0 || l.kind == locSingle {
		return l
	}
	rs := make([]Range, len(l.ranges))
	for i, r := range l.ranges {
		rs[i] = Range{From: r.From + off, Count: r.Count, Classifier: r.Classifier}
	}
	return Location{kind: l.kind, ranges: rs}
}

// merge appends other's classifier groups after l's. Used when two tables
// bind the same type.
func (l Location) merge(t Type, other Location) (Location, error) {
	if l.kind == locSingle || other.kind == locSingle {
		return Location{}, indexError(t, "single binding cannot be merged")
	}
	byClassifier := make(map[Classifier]bool, len(l.ranges))
	for _, r := range l.ranges {
		byClassifier[r.Classifier] = true
	}
	rs := append([]Range(nil), l.ranges...)
	for _, r := range other.ranges {
		if byClassifier[r.Classifier] {
			return Location{}, indexError(t, "classifier "+strconv.Quote(string(r.Classifier))+" bound by two tables")
		}
		rs = append(rs, r)
	}
	return Location{kind: locMulti, ranges: rs}, nil
}

// lookup returns the factories of l matching sel, in registration order.
func (l Location) lookup(factories []Factory, sel selector) []Binding {
	switch l.kind {
	case locSingle:
		if !sel.all && sel.classifier != None {
			return nil
		}
		return []Binding{{Factory: l.factory}}
	case locRanged, locMulti:
		var out []Binding
		for _, r := range l.ranges {
			if !sel.all && r.Classifier != sel.classifier {
				continue
			}
			for _, f := range factories[r.From : r.From+r.Count] {
				out = append(out, Binding{Factory: f, Classifier: r.Classifier})
			}
			if !sel.all {
				break
			}
		}
		return out
	}
	return nil
}

// selector is a classifier, or every classifier when all is set.
type selector struct {
	classifier Classifier
	all        bool
}

func exactly(c Classifier) selector { return selector{classifier: c} }

var everything = selector{all: true}

// Binding is a factory together with the classifier it is registered under.
type Binding struct {
	Factory    Factory
	Classifier Classifier
}

func indexError(t Type, msg string) error {
	return &invalidIndexError{t: t, msg: msg}
}

type invalidIndexError struct {
	t   Type
	msg string
}

func (e *invalidIndexError) Error() string {
	return "container: invalid binding index for " + strconv.Quote(string(e.t)) + ": " + e.msg
}

func (e *invalidIndexError) Unwrap() error { return ErrInvalidIndex }

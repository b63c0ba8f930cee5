package container

// ── Instance bucket ───────────────────────────────────────────────────────────

// Provision tells how an instance entered a scope.
type Provision uint8

const (
	// Injected instances were constructed by a factory.
	Injected Provision = iota
	// Bound instances were handed to Scope.Bind.
	Bound
)

func (p Provision) String() string {
	if p == Bound {
		return "bound"
	}
	return "injected"
}

// entry is one cached instance. factory is empty for bound instances.
type entry struct {
	classifier Classifier
	factory    string
	value      any
	provision  Provision
	scoping    Scoping
}

// bucket holds the instances of one contract type cached in one scope, in
// registration order. It is not synchronized; the owning scope guards it.
type bucket struct {
	t       Type
	entries []entry
}

func newBucket(t Type) *bucket {
	return &bucket{t: t}
}

// check reports whether e would collide with an entry already held. An
// entry with the same classifier and factory is a duplicate; so is a second
// bound value under one classifier.
func (b *bucket) check(e entry, scope string) error {
	for _, have := range b.entries {
		if have.classifier != e.classifier {
			continue
		}
		if have.factory == e.factory || e.provision == Bound || have.provision == Bound {
			return DuplicateBindingError{Type: b.t, Classifier: e.classifier, Scope: scope}
		}
	}
	return nil
}

// register appends e after check.
func (b *bucket) register(e entry, scope string) error {
	if err := b.check(e, scope); err != nil {
		return err
	}
	b.entries = append(b.entries, e)
	return nil
}

// single returns the only entry under c. found is false when there is none;
// more than one is an AmbiguousBindingError.
func (b *bucket) single(c Classifier) (e entry, found bool, err error) {
	n := 0
	for _, have := range b.entries {
		if have.classifier == c {
			e = have
			n++
		}
	}
	if n > 1 {
		return entry{}, false, AmbiguousBindingError{Type: b.t, Classifier: c, Count: n}
	}
	return e, n == 1, nil
}

// produced returns the entry factory created under c.
func (b *bucket) produced(c Classifier, factory string) (any, bool) {
	for _, have := range b.entries {
		if have.classifier == c && have.factory == factory {
			return have.value, true
		}
	}
	return nil, false
}

// many returns the values matching sel, in registration order.
func (b *bucket) many(sel selector) []any {
	var out []any
	for _, have := range b.entries {
		if sel.all || have.classifier == sel.classifier {
			out = append(out, have.value)
		}
	}
	return out
}

// bound returns the bound entries matching sel.
func (b *bucket) bound(sel selector) []entry {
	var out []entry
	for _, have := range b.entries {
		if have.provision == Bound && (sel.all || have.classifier == sel.classifier) {
			out = append(out, have)
		}
	}
	return out
}

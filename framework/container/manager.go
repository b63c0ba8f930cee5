package container

import (
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
)

// ── Manager ───────────────────────────────────────────────────────────────────

// Manager owns the factory array and the binding index of a process. Tables
// are registered during start-up; NewRoot seals the manager, after which it
// is read-only and safe for unsynchronized concurrent queries.
//
//	m := container.NewManager(container.WithLogger(logger))
//	if err := m.Register(factories, index); err != nil { ... }
//	root := container.NewRoot(m)
type Manager struct {
	mu     sync.Mutex
	sealed atomic.Bool

	factories []Factory
	index     Index
	ids       map[string]Factory

	logger   *slog.Logger
	observer Observer
	waits    *waitGraph
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for construction, release and
// registration records. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithObserver installs an Observer notified about constructions, failures
// and scope lifetimes.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// NewManager creates an empty manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		index:    make(Index),
		ids:      make(map[string]Factory),
		logger:   slog.New(slog.DiscardHandler),
		observer: nopObserver{},
		waits:    newWaitGraph(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Register merges one registration table. Ranges in index address positions
// in factories; they are rebased onto the end of the manager's array. When a
// type is already bound by an earlier table, the new classifier groups are
// appended after the existing ones.
//
// The table is validated as a whole; on error nothing is merged. Factories
// that declare each other as siblings must arrive in the same table.
func (m *Manager) Register(factories []Factory, index Index) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sealed.Load() {
		return ErrManagerSealed
	}

	local := make(map[string]Factory, len(factories))
	check := func(f Factory) error {
		id := f.ID()
		if _, dup := m.ids[id]; dup {
			return duplicateFactory(id)
		}
		if _, dup := local[id]; dup {
			return duplicateFactory(id)
		}
		local[id] = f
		return nil
	}
	for i, f := range factories {
		if f == nil {
			return indexError("", "nil factory at "+strconv.Itoa(i))
		}
		if err := check(f); err != nil {
			return err
		}
	}

	off := len(m.factories)
	merged := make(Index, len(index))
	for t, loc := range index {
		if err := loc.validate(t, len(factories)); err != nil {
			return err
		}
		if loc.kind == locSingle {
			if err := check(loc.factory); err != nil {
				return err
			}
		}
		loc = loc.rebase(off)
		if prev, ok := m.index[t]; ok {
			var err error
			if loc, err = prev.merge(t, loc); err != nil {
				return err
			}
		}
		merged[t] = loc
	}
	if err := m.checkSiblings(local, merged, append(m.factories[:len(m.factories):len(m.factories)], factories...)); err != nil {
		return err
	}

	m.factories = append(m.factories, factories...)
	for t, loc := range merged {
		m.index[t] = loc
	}
	for _, f := range factories {
		m.ids[f.ID()] = f
	}
	for _, loc := range merged {
		if loc.kind == locSingle {
			m.ids[loc.factory.ID()] = loc.factory
		}
	}
	m.logger.Debug("registration table merged",
		slog.Int("factories", len(factories)),
		slog.Int("types", len(index)),
		slog.Int("offset", off))
	return nil
}

// Seal freezes the manager. Further Register calls fail with ErrManagerSealed.
func (m *Manager) Seal() {
	m.mu.Lock()
	m.sealed.Store(true)
	m.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (m *Manager) Sealed() bool { return m.sealed.Load() }

// Factory returns the single factory bound to (t, c), or nil when there is
// none. More than one match is an AmbiguousBindingError.
func (m *Manager) Factory(t Type, c Classifier) (Factory, error) {
	return m.FilteredFactory(t, c, nil)
}

// FilteredFactory is Factory restricted to candidates accepted by filter. A
// nil filter accepts everything.
func (m *Manager) FilteredFactory(t Type, c Classifier, filter FactoryFilter) (Factory, error) {
	bs := m.query(t, exactly(c), filter)
	switch len(bs) {
	case 0:
		return nil, nil
	case 1:
		return bs[0].Factory, nil
	}
	return nil, AmbiguousBindingError{Type: t, Classifier: c, Count: len(bs)}
}

// ManyFactories returns every factory bound to t, all classifiers, in
// registration order.
func (m *Manager) ManyFactories(t Type, filter FactoryFilter) []Binding {
	return m.query(t, everything, filter)
}

// ClassifiedFactories returns the factories bound to t under c, in
// registration order.
func (m *Manager) ClassifiedFactories(t Type, c Classifier, filter FactoryFilter) []Binding {
	return m.query(t, exactly(c), filter)
}

// factoryByID finds id among the factories of the table being registered,
// then among those already merged. The caller holds m.mu.
func (m *Manager) factoryByID(id string, table map[string]Factory) (Factory, bool) {
	if f, ok := table[id]; ok {
		return f, true
	}
	f, ok := m.ids[id]
	return f, ok
}

// checkSiblings verifies every sibling declared by the table's factories:
// the sibling factory exists, serves the sibling type, shares the declaring
// factory's scoping and declares the declaring factory back. The caller
// holds m.mu.
func (m *Manager) checkSiblings(table map[string]Factory, merged Index, all []Factory) error {
	serves := func(t Type, id string) bool {
		loc, ok := merged[t]
		if !ok {
			loc, ok = m.index[t]
		}
		if !ok {
			return false
		}
		for _, b := range loc.lookup(all, everything) {
			if b.Factory.ID() == id {
				return true
			}
		}
		return false
	}
	for _, f := range table {
		for _, sib := range f.Siblings() {
			where := "factory " + strconv.Quote(f.ID()) + " sibling " + strconv.Quote(sib.Factory)
			g, ok := m.factoryByID(sib.Factory, table)
			if !ok {
				return indexError(sib.Type, where+" is not registered")
			}
			if !serves(sib.Type, g.ID()) {
				return indexError(sib.Type, where+" is not bound to the sibling type")
			}
			if g.Scoping() != f.Scoping() {
				return indexError(sib.Type, where+" is "+g.Scoping().String()+", want "+f.Scoping().String())
			}
			if !declares(g, f.ID()) {
				return indexError(sib.Type, where+" does not declare "+strconv.Quote(f.ID())+" back")
			}
		}
	}
	return nil
}

func declares(f Factory, sibling string) bool {
	for _, s := range f.Siblings() {
		if s.Factory == sibling {
			return true
		}
	}
	return false
}

// Types returns the number of bound contract types.
func (m *Manager) Types() int {
	if !m.sealed.Load() {
		m.mu.Lock()
		defer m.mu.Unlock()
	}
	return len(m.index)
}

func (m *Manager) query(t Type, sel selector, filter FactoryFilter) []Binding {
	if !m.sealed.Load() {
		m.mu.Lock()
		defer m.mu.Unlock()
	}
	loc, ok := m.index[t]
	if !ok {
		return nil
	}
	bs := loc.lookup(m.factories, sel)
	if filter == nil {
		return bs
	}
	kept := bs[:0:0]
	for _, b := range bs {
		if filter(b.Factory) {
			kept = append(kept, b)
		}
	}
	return kept
}

func duplicateFactory(id string) error {
	return &duplicateFactoryError{id: id}
}

type duplicateFactoryError struct{ id string }

func (e *duplicateFactoryError) Error() string {
	return "container: duplicate factory id " + strconv.Quote(e.id)
}

func (e *duplicateFactoryError) Unwrap() error { return ErrDuplicateFactory }

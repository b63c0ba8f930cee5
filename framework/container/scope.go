package container

import (
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

var scopeSeq atomic.Uint64

// ── Scope ─────────────────────────────────────────────────────────────────────

// Scope is a node in a tree of lifetime contexts. It caches the instances
// whose scoping places them here and resolves everything else through the
// Manager.
//
// A Scope is safe for concurrent use. Construction of one (factory group,
// classifier) slot runs at most once per scope; concurrent callers wait for
// the winner and receive the same instance.
//
//	root := container.NewRoot(m)
//	defer root.Release()
//
//	req := root.CreateChild()
//	defer req.Release()
//	page, err := container.Single[Page](req, PageType, "tab2")
type Scope struct {
	id      uint64
	manager *Manager
	parent  *Scope
	root    *Scope
	depth   int

	mu       sync.RWMutex
	buckets  map[Type]*bucket
	order    []Type
	owned    []entry // constructed here, in construction order
	children []*Scope
	released bool

	flight singleflight.Group
}

// NewRoot seals m and creates the root of a new scope tree.
func NewRoot(m *Manager) *Scope {
	m.Seal()
	s := newScope(m, nil)
	m.observer.ScopeOpened()
	m.logger.Debug("root scope created", slog.String("scope", s.String()), slog.Int("types", m.Types()))
	return s
}

func newScope(m *Manager, parent *Scope) *Scope {
	s := &Scope{
		id:      scopeSeq.Add(1),
		manager: m,
		parent:  parent,
		buckets: make(map[Type]*bucket),
	}
	if parent == nil {
		s.root = s
	} else {
		s.root = parent.root
		s.depth = parent.depth + 1
	}
	return s
}

// CreateChild opens a scope whose parent is s. A child of a released scope
// is born released.
func (s *Scope) CreateChild() *Scope {
	child := newScope(s.manager, s)
	s.mu.Lock()
	if s.released {
		child.released = true
	} else {
		s.children = append(s.children, child)
	}
	s.mu.Unlock()
	if !child.released {
		s.manager.observer.ScopeOpened()
	}
	return child
}

// Release disposes this scope: child scopes are released first, then every
// instance constructed here that implements Disposer, newest first. Instances
// owned by ancestors are untouched. Release is idempotent.
func (s *Scope) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	children, owned := s.children, s.owned
	s.children, s.owned = nil, nil
	s.buckets, s.order = nil, nil
	s.mu.Unlock()

	for i := len(children) - 1; i >= 0; i-- {
		children[i].Release()
	}
	for i := len(owned) - 1; i >= 0; i-- {
		if d, ok := owned[i].value.(Disposer); ok {
			s.dispose(owned[i], d)
		}
	}
	if s.parent != nil {
		s.parent.detach(s)
	}
	s.manager.observer.ScopeReleased()
	s.manager.logger.Debug("scope released",
		slog.String("scope", s.String()),
		slog.Int("disposed_candidates", len(owned)))
}

func (s *Scope) dispose(e entry, d Disposer) {
	defer func() {
		if rec := recover(); rec != nil {
			s.manager.logger.Error("dispose panicked",
				slog.String("scope", s.String()),
				slog.String("factory", e.factory),
				slog.Any("panic", rec))
		}
	}()
	d.Dispose()
}

// discard disposes an instance that was constructed for s but could not be
// stored, typically because s was released while it was being built.
func (s *Scope) discard(f Factory, v any) {
	if d, ok := v.(Disposer); ok {
		s.dispose(entry{factory: f.ID(), value: v}, d)
	}
}

func (s *Scope) detach(child *Scope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			return
		}
	}
}

// Bind registers a pre-built value under (t, c). Bound values are visible to
// s and its descendants and are never disposed by the container.
//
//	root.Bind(ConfigType, container.None, cfg)
func (s *Scope) Bind(t Type, c Classifier, v any) error {
	if v == nil {
		return ErrNilInstance
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrScopeReleased
	}
	return s.bucketLocked(t).register(entry{classifier: c, value: v, provision: Bound}, s.String())
}

// ── Accessors ─────────────────────────────────────────────────────────────────

// ID is unique across every scope created by the process.
func (s *Scope) ID() uint64 { return s.id }

// Parent returns the parent scope, nil for a root.
func (s *Scope) Parent() *Scope { return s.parent }

// Root returns the root of s's tree.
func (s *Scope) Root() *Scope { return s.root }

// Depth is 0 for a root and parent depth + 1 otherwise.
func (s *Scope) Depth() int { return s.depth }

// Manager returns the manager s resolves through.
func (s *Scope) Manager() *Manager { return s.manager }

// Released reports whether Release has been called.
func (s *Scope) Released() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.released
}

func (s *Scope) String() string { return "scope#" + strconv.FormatUint(s.id, 10) }

// ── Resolution entry points ───────────────────────────────────────────────────

// Single resolves exactly one instance of t under c. No match is a
// BindingNotFoundError.
func (s *Scope) Single(t Type, c Classifier) (any, error) { return s.resolver().Single(t, c) }

// Optional resolves at most one instance of t under c. No match is not an
// error.
func (s *Scope) Optional(t Type, c Classifier) (any, bool, error) {
	return s.resolver().Optional(t, c)
}

// Many resolves every instance of t across all classifiers, in registration
// order. No match yields an empty slice.
func (s *Scope) Many(t Type) ([]any, error) { return s.resolver().Many(t) }

// ManyClassified resolves every instance of t under c, in registration order.
func (s *Scope) ManyClassified(t Type, c Classifier) ([]any, error) {
	return s.resolver().ManyClassified(t, c)
}

func (s *Scope) resolver() *Resolver { return &Resolver{scope: s, path: new(callPath)} }

// ── Cache access (callers hold no lock) ───────────────────────────────────────

// bucketLocked returns the bucket for t, creating it. s.mu must be held.
func (s *Scope) bucketLocked(t Type) *bucket {
	b, ok := s.buckets[t]
	if !ok {
		b = newBucket(t)
		s.buckets[t] = b
		s.order = append(s.order, t)
	}
	return b
}

// cachedSingle looks for (t, c) in s, then for values bound to it in
// ancestors.
func (s *Scope) cachedSingle(t Type, c Classifier) (any, bool, error) {
	s.mu.RLock()
	if s.released {
		s.mu.RUnlock()
		return nil, false, ErrScopeReleased
	}
	if b := s.buckets[t]; b != nil {
		e, found, err := b.single(c)
		if err != nil || found {
			s.mu.RUnlock()
			return e.value, found, err
		}
	}
	s.mu.RUnlock()

	for p := s.parent; p != nil; p = p.parent {
		p.mu.RLock()
		var bs []entry
		if b := p.buckets[t]; b != nil {
			bs = b.bound(exactly(c))
		}
		p.mu.RUnlock()
		if len(bs) > 0 {
			return bs[0].value, true, nil
		}
	}
	return nil, false, nil
}

// boundMany collects values bound to t in s and its ancestors, nearest first.
func (s *Scope) boundMany(t Type, sel selector) []any {
	var out []any
	for p := s; p != nil; p = p.parent {
		p.mu.RLock()
		if b := p.buckets[t]; b != nil {
			for _, e := range b.bound(sel) {
				out = append(out, e.value)
			}
		}
		p.mu.RUnlock()
	}
	return out
}

// produced returns the instance factory has cached in s under (t, c).
func (s *Scope) produced(t Type, c Classifier, factory string) (any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.released {
		return nil, false, ErrScopeReleased
	}
	b := s.buckets[t]
	if b == nil {
		return nil, false, nil
	}
	v, ok := b.produced(c, factory)
	return v, ok, nil
}

// store caches v under t and under every sibling of f, all or nothing.
func (s *Scope) store(t Type, c Classifier, f Factory, v any) error {
	primary := entry{classifier: c, factory: f.ID(), value: v, provision: Injected, scoping: f.Scoping()}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return ErrScopeReleased
	}
	name := s.String()
	if b := s.buckets[t]; b != nil {
		if err := b.check(primary, name); err != nil {
			return err
		}
	}
	sibs := f.Siblings()
	for _, sib := range sibs {
		if b := s.buckets[sib.Type]; b != nil {
			e := entry{classifier: c, factory: sib.Factory, provision: Injected}
			if err := b.check(e, name); err != nil {
				return err
			}
		}
	}

	b := s.bucketLocked(t)
	b.entries = append(b.entries, primary)
	for _, sib := range sibs {
		sb := s.bucketLocked(sib.Type)
		sb.entries = append(sb.entries, entry{
			classifier: c,
			factory:    sib.Factory,
			value:      v,
			provision:  Injected,
			scoping:    f.Scoping(),
		})
	}
	s.owned = append(s.owned, primary)
	return nil
}

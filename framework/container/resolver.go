package container

import (
	"fmt"
	"log/slog"
	"time"
)

// ── Resolver ──────────────────────────────────────────────────────────────────

// Resolver is the view of a Scope handed to Factory.Create. It resolves like
// the scope it wraps and additionally tracks which factories are under
// construction on this call path, so that a cycle fails with
// CyclicResolutionError instead of recursing.
type Resolver struct {
	scope   *Scope
	chain   *link
	path    *callPath
	exclude FactoryFilter
}

// link is one frame of the construction chain, innermost first.
type link struct {
	group   string
	factory string
	next    *link
}

func (l *link) contains(group string) bool {
	for ; l != nil; l = l.next {
		if l.group == group {
			return true
		}
	}
	return false
}

// path lists factory IDs outermost first, ending with repeat.
func (l *link) path(repeat string) []string {
	var ids []string
	for ; l != nil; l = l.next {
		ids = append(ids, l.factory)
	}
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}
	return append(ids, repeat)
}

// Scope returns the scope r resolves on. For a Topmost factory this is the
// root of the requesting scope's tree.
func (r *Resolver) Scope() *Scope { return r.scope }

// Single resolves exactly one instance of t under c.
func (r *Resolver) Single(t Type, c Classifier) (any, error) {
	v, found, err := r.single(t, c)
	if err == nil && !found {
		err = BindingNotFoundError{Type: t, Classifier: c}
	}
	if err != nil {
		r.failed(t, err)
		return nil, err
	}
	return v, nil
}

// Optional resolves at most one instance of t under c. Only the absence of a
// binding is swallowed; failures while constructing are returned.
func (r *Resolver) Optional(t Type, c Classifier) (any, bool, error) {
	v, found, err := r.single(t, c)
	if err != nil {
		r.failed(t, err)
		return nil, false, err
	}
	return v, found, nil
}

// Many resolves every instance of t, all classifiers, in registration order.
func (r *Resolver) Many(t Type) ([]any, error) { return r.many(t, everything) }

// ManyClassified resolves every instance of t under c, in registration order.
func (r *Resolver) ManyClassified(t Type, c Classifier) ([]any, error) {
	return r.many(t, exactly(c))
}

func (r *Resolver) single(t Type, c Classifier) (any, bool, error) {
	s := r.scope
	if v, found, err := s.cachedSingle(t, c); err != nil || found {
		return v, found, err
	}
	f, err := s.manager.FilteredFactory(t, c, r.exclude)
	if err != nil || f == nil {
		return nil, false, err
	}
	v, err := r.instantiate(t, c, f)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (r *Resolver) many(t Type, sel selector) ([]any, error) {
	s := r.scope
	if s.Released() {
		r.failed(t, ErrScopeReleased)
		return nil, ErrScopeReleased
	}
	bindings := s.manager.query(t, sel, r.exclude)
	out := make([]any, 0, len(bindings))
	for _, b := range bindings {
		v, err := r.instantiate(t, b.Classifier, b.Factory)
		if err != nil {
			r.failed(t, err)
			return nil, err
		}
		out = append(out, v)
	}
	return append(out, s.boundMany(t, sel)...), nil
}

// instantiate applies f's scoping: Unscoped constructs on r's scope every
// time, Direct caches on r's scope, Topmost caches on the root.
func (r *Resolver) instantiate(t Type, c Classifier, f Factory) (any, error) {
	switch f.Scoping() {
	case Direct:
		return r.cached(r.scope, t, c, f)
	case Topmost:
		return r.cached(r.scope.root, t, c, f)
	}
	if err := r.enter(t, f); err != nil {
		return nil, err
	}
	return r.construct(r.scope, t, c, f)
}

// cached returns f's instance from target, constructing and storing it under
// a per-group single flight on a miss. Joining a flight that is itself
// waiting on this call path fails with CyclicResolutionError.
func (r *Resolver) cached(target *Scope, t Type, c Classifier, f Factory) (any, error) {
	if v, ok, err := target.produced(t, c, f.ID()); err != nil || ok {
		return v, err
	}
	if err := r.enter(t, f); err != nil {
		return nil, err
	}
	key := flightKey{scope: target, slot: groupID(f) + "\x00" + string(c)}
	waits := target.manager.waits
	if !waits.join(r.path, key) {
		return nil, CyclicResolutionError{Type: t, Chain: r.chain.path(f.ID())}
	}
	defer waits.leave(r.path)

	v, err, _ := target.flight.Do(key.slot, func() (any, error) {
		waits.run(r.path, key)
		defer waits.finish(r.path, key)
		if v, ok, err := target.produced(t, c, f.ID()); err != nil || ok {
			return v, err
		}
		v, err := r.construct(target, t, c, f)
		if err != nil {
			return nil, err
		}
		if err := target.store(t, c, f, v); err != nil {
			target.discard(f, v)
			return nil, err
		}
		return v, nil
	})
	return v, err
}

// enter fails when f's group is already constructing on this call path.
func (r *Resolver) enter(t Type, f Factory) error {
	if r.chain.contains(groupID(f)) {
		return CyclicResolutionError{Type: t, Chain: r.chain.path(f.ID())}
	}
	return nil
}

func (r *Resolver) construct(target *Scope, t Type, c Classifier, f Factory) (any, error) {
	inner := &Resolver{
		scope:   target,
		chain:   &link{group: groupID(f), factory: f.ID(), next: r.chain},
		path:    r.path,
		exclude: excludeSiblings(f),
	}
	start := time.Now()
	v, err := create(f, inner)
	if err != nil {
		return nil, fmt.Errorf("container: create %s via %q: %w", slot(t, c), f.ID(), err)
	}
	elapsed := time.Since(start)
	target.manager.observer.InstanceCreated(t, f.Scoping(), elapsed)
	target.manager.logger.Debug("instance created",
		slog.String("type", string(t)),
		slog.String("classifier", string(c)),
		slog.String("factory", f.ID()),
		slog.String("scoping", f.Scoping().String()),
		slog.String("scope", target.String()),
		slog.Duration("elapsed", elapsed))
	return v, nil
}

// create runs f.Create, converting panics into ErrFactoryPanic.
func create(f Factory, r *Resolver) (v any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			v = nil
			if recErr, ok := rec.(error); ok {
				err = fmt.Errorf("%w in %q: %w", ErrFactoryPanic, f.ID(), recErr)
			} else {
				err = fmt.Errorf("%w in %q: %v", ErrFactoryPanic, f.ID(), rec)
			}
		}
	}()
	v, err = f.Create(r)
	if err == nil && v == nil {
		err = ErrNilInstance
	}
	return v, err
}

// failed reports err to the observer once, at the outermost call.
func (r *Resolver) failed(t Type, err error) {
	if r.chain != nil {
		return
	}
	r.scope.manager.observer.ResolveFailed(t, err)
}

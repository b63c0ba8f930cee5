package container_test

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-magnet/framework/container"
)

// ── Scoping ───────────────────────────────────────────────────────────────────

func TestScope_Unscoped_NewInstanceEveryTime(t *testing.T) {
	var n atomic.Int32
	root := newRoot(t, nil, container.Index{
		repoType: container.SingleBinding(counting("repo", container.Unscoped, &n)),
	})

	a := single(t, root, repoType, container.None)
	b := single(t, root, repoType, container.None)

	assert.NotSame(t, a, b)
	assert.EqualValues(t, 2, n.Load())
	assert.Empty(t, instancesOf(root), "unscoped instances must not be cached")
}

func TestScope_Direct_CachedPerScope(t *testing.T) {
	var n atomic.Int32
	root := newRoot(t, nil, container.Index{
		repoType: container.SingleBinding(counting("repo", container.Direct, &n)),
	})
	child := root.CreateChild()

	r1 := single(t, root, repoType, container.None)
	r2 := single(t, root, repoType, container.None)
	c1 := single(t, child, repoType, container.None)
	c2 := single(t, child, repoType, container.None)

	assert.Same(t, r1, r2)
	assert.Same(t, c1, c2)
	assert.NotSame(t, r1, c1, "child must get its own direct instance")
	assert.EqualValues(t, 2, n.Load())
	assert.Equal(t, []string{string(repoType)}, instancesOf(child))
}

func TestScope_Topmost_CachedInRoot(t *testing.T) {
	var n atomic.Int32
	root := newRoot(t, nil, container.Index{
		repoType: container.SingleBinding(counting("repo", container.Topmost, &n)),
	})
	mid := root.CreateChild()
	leaf := mid.CreateChild()

	fromLeaf := single(t, leaf, repoType, container.None)
	fromMid := single(t, mid, repoType, container.None)
	fromRoot := single(t, root, repoType, container.None)

	assert.Same(t, fromLeaf, fromMid)
	assert.Same(t, fromLeaf, fromRoot)
	assert.EqualValues(t, 1, n.Load())
	assert.Equal(t, []string{string(repoType)}, instancesOf(root))
	assert.Empty(t, instancesOf(mid))
	assert.Empty(t, instancesOf(leaf))
}

func TestScope_Topmost_DependenciesResolvedAtRoot(t *testing.T) {
	var depCount atomic.Int32
	dep := counting("dep", container.Direct, &depCount)
	page := container.NewFactory("page", container.Topmost, func(r *container.Resolver) (any, error) {
		d, err := r.Single(repoType, container.None)
		if err != nil {
			return nil, err
		}
		assert.Nil(t, r.Scope().Parent(), "topmost factories construct on the root")
		return &thing{id: "page", deps: []any{d}}, nil
	})
	root := newRoot(t, nil, container.Index{
		repoType: container.SingleBinding(dep),
		pageType: container.SingleBinding(page),
	})
	leaf := root.CreateChild().CreateChild()

	p := single(t, leaf, pageType, container.None)
	require.Len(t, p.deps, 1)

	assert.ElementsMatch(t, []string{string(repoType), string(pageType)}, instancesOf(root))
	assert.Empty(t, instancesOf(leaf))
	assert.Same(t, p.deps[0], single(t, root, repoType, container.None))
}

// ── Siblings ──────────────────────────────────────────────────────────────────

func siblingTable(n *atomic.Int32, scoping container.Scoping) container.Index {
	f1 := counting("impl4.iface1", scoping, n, container.Sibling{Type: iface2Type, Factory: "impl4.iface2"})
	f2 := counting("impl4.iface2", scoping, n, container.Sibling{Type: iface1Type, Factory: "impl4.iface1"})
	return container.Index{
		iface1Type: container.SingleBinding(f1),
		iface2Type: container.SingleBinding(f2),
	}
}

func TestScope_Siblings_SameInstanceOneCreate(t *testing.T) {
	for _, scoping := range []container.Scoping{container.Direct, container.Topmost} {
		t.Run(scoping.String()+"/primary-first", func(t *testing.T) {
			var n atomic.Int32
			root := newRoot(t, nil, siblingTable(&n, scoping))
			s := root.CreateChild()

			a := single(t, s, iface1Type, container.None)
			b := single(t, s, iface2Type, container.None)

			assert.Same(t, a, b)
			assert.EqualValues(t, 1, n.Load())
		})
		t.Run(scoping.String()+"/sibling-first", func(t *testing.T) {
			var n atomic.Int32
			root := newRoot(t, nil, siblingTable(&n, scoping))
			s := root.CreateChild()

			b := single(t, s, iface2Type, container.None)
			a := single(t, s, iface1Type, container.None)

			assert.Same(t, a, b)
			assert.EqualValues(t, 1, n.Load())
		})
	}
}

func TestScope_Siblings_Unscoped_ConstructsPerContract(t *testing.T) {
	var n atomic.Int32
	root := newRoot(t, nil, siblingTable(&n, container.Unscoped))

	a := single(t, root, iface1Type, container.None)
	b := single(t, root, iface2Type, container.None)

	assert.NotSame(t, a, b)
	assert.EqualValues(t, 2, n.Load())
}

func TestScope_Siblings_OwnSiblingExcludedDuringCreate(t *testing.T) {
	f1 := container.NewFactory("impl.iface1", container.Direct, func(r *container.Resolver) (any, error) {
		_, err := r.Single(iface2Type, container.None)
		return nil, err
	}, container.Sibling{Type: iface2Type, Factory: "impl.iface2"})
	f2 := counting("impl.iface2", container.Direct, nil, container.Sibling{Type: iface1Type, Factory: "impl.iface1"})
	root := newRoot(t, nil, container.Index{
		iface1Type: container.SingleBinding(f1),
		iface2Type: container.SingleBinding(f2),
	})

	_, err := root.Single(iface1Type, container.None)

	require.Error(t, err)
	assert.ErrorIs(t, err, container.ErrBindingNotFound)
	var nf container.BindingNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, iface2Type, nf.Type)
}

// ── Classifiers and multi-binding ─────────────────────────────────────────────

func pagesTable() ([]container.Factory, container.Index) {
	factories := []container.Factory{
		counting("page.default", container.Topmost, nil),
		counting("page.tab2", container.Topmost, nil),
	}
	index := container.Index{
		pageType: container.MultiBinding(
			container.Range{From: 0, Count: 1},
			container.Range{From: 1, Count: 1, Classifier: "tab2"},
		),
	}
	return factories, index
}

func TestScope_Many_RegistrationOrder(t *testing.T) {
	root := pagesRoot(t)

	// Resolve the second one first; order must still follow the index.
	tab2 := single(t, root, pageType, "tab2")
	pages, err := container.Many[*thing](root, pageType)

	require.NoError(t, err)
	assert.Equal(t, []string{"page.default", "page.tab2"}, ids(pages))
	assert.Same(t, tab2, pages[1])
}

func TestScope_Single_Classified(t *testing.T) {
	root := pagesRoot(t)

	assert.Equal(t, "page.tab2", single(t, root, pageType, "tab2").id)
	assert.Equal(t, "page.default", single(t, root, pageType, container.None).id)
}

func TestScope_Single_MissingClassifier_NoFallback(t *testing.T) {
	root := pagesRoot(t)

	_, err := root.Single(pageType, "missing")

	var nf container.BindingNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, pageType, nf.Type)
	assert.Equal(t, container.Classifier("missing"), nf.Classifier)
}

func TestScope_ManyClassified(t *testing.T) {
	root := pagesRoot(t)

	pages, err := container.ManyClassified[*thing](root, pageType, "tab2")

	require.NoError(t, err)
	assert.Equal(t, []string{"page.tab2"}, ids(pages))
}

func TestScope_Ranged_SingleIsAmbiguous(t *testing.T) {
	root := newRoot(t, []container.Factory{
		counting("repo.a", container.Direct, nil),
		counting("repo.b", container.Direct, nil),
	}, container.Index{repoType: container.RangedBinding(0, 2)})

	_, err := root.Single(repoType, container.None)
	assert.ErrorIs(t, err, container.ErrAmbiguousBinding)

	repos, err := container.Many[*thing](root, repoType)
	require.NoError(t, err)
	assert.Equal(t, []string{"repo.a", "repo.b"}, ids(repos))
}

// ── Not found ─────────────────────────────────────────────────────────────────

func TestScope_Optional_NeverRegistered(t *testing.T) {
	root := pagesRoot(t)

	v, ok, err := root.Optional(unknown, container.None)

	assert.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestScope_Many_NeverRegistered(t *testing.T) {
	root := pagesRoot(t)

	vs, err := root.Many(unknown)

	assert.NoError(t, err)
	assert.Empty(t, vs)
}

func TestScope_Single_NeverRegistered(t *testing.T) {
	root := pagesRoot(t)

	_, err := root.Single(unknown, container.None)

	assert.ErrorIs(t, err, container.ErrBindingNotFound)
}

func TestScope_Optional_SurfacesConstructionFailure(t *testing.T) {
	broken := container.NewFactory("broken", container.Direct, func(r *container.Resolver) (any, error) {
		return r.Single(unknown, container.None)
	})
	root := newRoot(t, nil, container.Index{repoType: container.SingleBinding(broken)})

	_, ok, err := root.Optional(repoType, container.None)

	assert.False(t, ok)
	assert.ErrorIs(t, err, container.ErrBindingNotFound)
}

// ── Cycles ────────────────────────────────────────────────────────────────────

func TestScope_Cycle_FailsFast(t *testing.T) {
	a := container.NewFactory("a", container.Direct, func(r *container.Resolver) (any, error) {
		return r.Single(repoType, container.None)
	})
	b := container.NewFactory("b", container.Unscoped, func(r *container.Resolver) (any, error) {
		return r.Single(pageType, container.None)
	})
	root := newRoot(t, nil, container.Index{
		pageType: container.SingleBinding(a),
		repoType: container.SingleBinding(b),
	})

	_, err := root.Single(pageType, container.None)

	require.ErrorIs(t, err, container.ErrCyclicResolution)
	var cyc container.CyclicResolutionError
	require.ErrorAs(t, err, &cyc)
	assert.Equal(t, []string{"a", "b", "a"}, cyc.Chain)
	assert.Equal(t, pageType, cyc.Type)
}

func TestScope_Cycle_SelfReference(t *testing.T) {
	self := container.NewFactory("self", container.Topmost, func(r *container.Resolver) (any, error) {
		return r.Single(pageType, container.None)
	})
	root := newRoot(t, nil, container.Index{pageType: container.SingleBinding(self)})

	_, err := root.CreateChild().Single(pageType, container.None)

	assert.ErrorIs(t, err, container.ErrCyclicResolution)
}

// ── Bind ──────────────────────────────────────────────────────────────────────

func TestScope_Bind_VisibleToDescendants(t *testing.T) {
	root := newRoot(t, nil, nil)
	cfg := &thing{id: "config"}
	require.NoError(t, root.Bind(repoType, container.None, cfg))

	leaf := root.CreateChild().CreateChild()

	assert.Same(t, cfg, single(t, leaf, repoType, container.None))
	vs, err := leaf.Many(repoType)
	require.NoError(t, err)
	assert.Equal(t, []any{cfg}, vs)
}

func TestScope_Bind_Duplicate(t *testing.T) {
	root := newRoot(t, nil, nil)
	require.NoError(t, root.Bind(repoType, "x", &thing{}))

	err := root.Bind(repoType, "x", &thing{})

	var dup container.DuplicateBindingError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, container.Classifier("x"), dup.Classifier)
	assert.Equal(t, root.String(), dup.Scope)
}

// ── Release ───────────────────────────────────────────────────────────────────

type disposable struct {
	id  string
	log *[]string
}

func (d *disposable) Dispose() { *d.log = append(*d.log, d.id) }

func TestScope_Release_DisposesChildrenFirstNewestFirst(t *testing.T) {
	var log []string
	mk := func(id string, scoping container.Scoping) container.Factory {
		return container.NewFactory(id, scoping, func(*container.Resolver) (any, error) {
			return &disposable{id: id, log: &log}, nil
		})
	}
	root := newRoot(t, []container.Factory{
		mk("svc.a", container.Direct),
		mk("svc.b", container.Direct),
		mk("svc.top", container.Topmost),
	}, container.Index{
		repoType: container.RangedBinding(0, 2),
		pageType: container.RangedBinding(2, 1),
	})
	child := root.CreateChild()
	_, err := root.ManyClassified(repoType, container.None)
	require.NoError(t, err)
	_, err = child.Many(repoType)
	require.NoError(t, err)
	_, err = child.Single(pageType, container.None)
	require.NoError(t, err)

	child.Release()
	assert.Equal(t, []string{"svc.b", "svc.a"}, log, "child only disposes what it owns")

	log = nil
	root.Release()
	assert.Equal(t, []string{"svc.top", "svc.b", "svc.a"}, log)
}

func TestScope_Release_CascadesAndRejectsResolution(t *testing.T) {
	root := pagesRoot(t)
	child := root.CreateChild()
	grandchild := child.CreateChild()

	child.Release()
	child.Release() // idempotent

	assert.True(t, child.Released())
	assert.True(t, grandchild.Released())
	assert.False(t, root.Released())

	_, err := grandchild.Single(pageType, container.None)
	assert.ErrorIs(t, err, container.ErrScopeReleased)
	_, err = child.Many(pageType)
	assert.ErrorIs(t, err, container.ErrScopeReleased)
	assert.True(t, child.CreateChild().Released())

	assert.Empty(t, root.Snapshot().Children)
}

func TestScope_Release_SiblingDisposedOnce(t *testing.T) {
	var log []string
	mk := func(id, sibID string, sibType container.Type) container.Factory {
		return container.NewFactory(id, container.Direct, func(*container.Resolver) (any, error) {
			return &disposable{id: "impl", log: &log}, nil
		}, container.Sibling{Type: sibType, Factory: sibID})
	}
	root := newRoot(t, nil, container.Index{
		iface1Type: container.SingleBinding(mk("f1", "f2", iface2Type)),
		iface2Type: container.SingleBinding(mk("f2", "f1", iface1Type)),
	})
	s := root.CreateChild()
	_, err := s.Single(iface1Type, container.None)
	require.NoError(t, err)
	_, err = s.Single(iface2Type, container.None)
	require.NoError(t, err)

	s.Release()

	assert.Equal(t, []string{"impl"}, log)
}

// ── Factory failures ──────────────────────────────────────────────────────────

func TestScope_Release_DuringCreate_DisposesOrphan(t *testing.T) {
	var log []string
	started, proceed := make(chan struct{}), make(chan struct{})
	root := newRoot(t, nil, container.Index{
		repoType: container.SingleBinding(container.NewFactory("svc", container.Direct, func(*container.Resolver) (any, error) {
			close(started)
			<-proceed
			return &disposable{id: "svc", log: &log}, nil
		})),
	})
	child := root.CreateChild()

	done := make(chan error, 1)
	go func() {
		_, err := child.Single(repoType, container.None)
		done <- err
	}()
	<-started
	child.Release()
	close(proceed)

	err := <-done
	assert.ErrorIs(t, err, container.ErrScopeReleased)
	assert.Equal(t, []string{"svc"}, log, "an instance built for a released scope is disposed")
}

func TestScope_FactoryPanic_Recovered(t *testing.T) {
	boom := errors.New("boom")
	p := container.NewFactory("panics", container.Direct, func(*container.Resolver) (any, error) {
		panic(boom)
	})
	root := newRoot(t, nil, container.Index{repoType: container.SingleBinding(p)})

	_, err := root.Single(repoType, container.None)

	assert.ErrorIs(t, err, container.ErrFactoryPanic)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, instancesOf(root))
}

func TestScope_FactoryNil_Rejected(t *testing.T) {
	p := container.NewFactory("nil", container.Direct, func(*container.Resolver) (any, error) {
		return nil, nil
	})
	root := newRoot(t, nil, container.Index{repoType: container.SingleBinding(p)})

	_, err := root.Single(repoType, container.None)

	assert.ErrorIs(t, err, container.ErrNilInstance)
}

func TestScope_Accessors(t *testing.T) {
	root := newRoot(t, nil, nil)
	child := root.CreateChild()
	leaf := child.CreateChild()

	assert.Nil(t, root.Parent())
	assert.Same(t, child, leaf.Parent())
	assert.Same(t, root, leaf.Root())
	assert.Equal(t, 2, leaf.Depth())
	assert.True(t, root.Manager().Sealed())
}

func pagesRoot(t *testing.T) *container.Scope {
	t.Helper()
	factories, index := pagesTable()
	return newRoot(t, factories, index)
}

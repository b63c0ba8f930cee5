package container

// ── Factory contract ──────────────────────────────────────────────────────────

// Factory constructs one instance of a contract type.
//
// Scoping and Siblings are static: they are read on every resolution and
// must never change. Create may resolve its own dependencies through r.
//
//	type homePageFactory struct{}
//
//	func (homePageFactory) ID() string                 { return "app.HomePage" }
//	func (homePageFactory) Scoping() container.Scoping { return container.Topmost }
//	func (homePageFactory) Siblings() []container.Sibling { return nil }
//	func (homePageFactory) Create(r *container.Resolver) (any, error) {
//	    repos, err := container.Many[HomeRepository](r, RepositoryType)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return &HomePage{Repositories: repos}, nil
//	}
type Factory interface {
	// ID is unique across every table registered with one Manager.
	ID() string

	Scoping() Scoping

	// Siblings lists other contracts the produced instance also satisfies.
	Siblings() []Sibling

	Create(r *Resolver) (any, error)
}

// Sibling is an additional contract served by an instance. Factory is the ID
// of the factory the index uses for Type; the shared instance is cached under
// that identity so resolving Type finds it without constructing again.
type Sibling struct {
	Type    Type
	Factory string
}

// FactoryFilter accepts or rejects a candidate factory.
type FactoryFilter func(Factory) bool

// Disposer is implemented by instances that hold resources. Dispose is called
// once when the scope that cached the instance is released.
type Disposer interface {
	Dispose()
}

// CreateFunc is the body of a function-backed factory.
type CreateFunc func(r *Resolver) (any, error)

// NewFactory builds a Factory from a function.
//
//	container.NewFactory("app.Clock", container.Topmost, func(r *container.Resolver) (any, error) {
//	    return clock.New(), nil
//	})
func NewFactory(id string, scoping Scoping, create CreateFunc, siblings ...Sibling) Factory {
	return &funcFactory{id: id, scoping: scoping, create: create, siblings: siblings}
}

type funcFactory struct {
	id       string
	scoping  Scoping
	create   CreateFunc
	siblings []Sibling
}

func (f *funcFactory) ID() string                      { return f.id }
func (f *funcFactory) Scoping() Scoping                { return f.scoping }
func (f *funcFactory) Siblings() []Sibling             { return f.siblings }
func (f *funcFactory) Create(r *Resolver) (any, error) { return f.create(r) }

// groupID names the construction group of f: f plus its siblings share one
// instance, so they share one identity for single-flight and cycle checks.
func groupID(f Factory) string {
	id := f.ID()
	for _, s := range f.Siblings() {
		if s.Factory < id {
			id = s.Factory
		}
	}
	return id
}

// excludeSiblings rejects the factories serving f's sibling contracts. While
// f is constructing, asking for one of its sibling contracts must not start a
// second construction through the sibling's own factory.
func excludeSiblings(f Factory) FactoryFilter {
	sibs := f.Siblings()
	if len(sibs) == 0 {
		return nil
	}
	return func(candidate Factory) bool {
		id := candidate.ID()
		for _, s := range sibs {
			if s.Factory == id {
				return false
			}
		}
		return true
	}
}

// Package container is the runtime half of a generated dependency-injection
// system: it resolves "an instance (or all instances) of contract type T,
// optionally under classifier C" against a tree of lifetime scopes.
//
// # Inputs
//
// A generator emits, per compiled unit, factory implementations and a
// registration table: a flat []Factory plus an Index mapping each Type to a
// Location (a single factory, one unclassified range, or one range per
// classifier). Tables are merged into one Manager at start-up; offsets are
// rebased so ranges keep pointing at their own factories.
//
//	m := container.NewManager(container.WithLogger(logger))
//	_ = m.Register(pagesFactories, pagesIndex)
//	_ = m.Register(reposFactories, reposIndex)
//	root := container.NewRoot(m) // seals m
//
// # Scoping
//
//	Unscoped   constructed on every request, never cached
//	Direct     cached in the scope the request was made on
//	Topmost    cached in the root of the requesting scope's tree
//
// A factory may declare Siblings: other contracts the same instance
// satisfies. When the instance is cached, it is cached under every sibling
// too, so resolving any of them returns the same object without constructing
// again. Unscoped instances are never cached, so an unscoped factory with
// siblings constructs once per request of each contract.
//
// # Resolving
//
//	page, err := container.Single[Page](scope, PageType, "tab2")
//	repo, ok, err := container.Optional[Repo](scope, RepoType, container.None)
//	pages, err := container.Many[Page](scope, PageType)
//
//	req := root.CreateChild()
//	defer req.Release()
//
// Single fails with BindingNotFoundError when nothing matches. Optional and
// Many treat "nothing bound" as an empty result. There is no classifier
// fallback: asking for an absent classifier finds nothing even when a
// default binding exists.
//
// # Concurrency
//
// Scopes are safe for concurrent use. Each (factory group, classifier) slot
// is constructed at most once per scope; concurrent callers block until the
// first construction is stored and then share it. The Manager is read-only
// once sealed.
//
// Cycles on one call path fail with CyclicResolutionError. So do cycles
// split across goroutines: a resolution that would wait on a construction
// which is itself waiting, directly or transitively, on that resolution
// fails instead of joining it.
//
// # Inspection
//
//	container.Dump(os.Stdout, root)
//	json.NewEncoder(w).Encode(root.Snapshot())
package container

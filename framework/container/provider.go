package container

import (
	"errors"
	"fmt"
	"sync"
)

// ── ServiceProvider interface ─────────────────────────────────────────────────

// ServiceProvider contributes one registration table and, optionally, work to
// run once the root scope exists.
//
// Register runs while the Manager is still open. Boot runs after every
// provider has registered and the root scope has been created, so it may
// resolve anything.
//
//	type PagesProvider struct{ container.BaseProvider }
//
//	func (p *PagesProvider) Register(m *container.Manager) error {
//	    return m.Register(pageFactories, pageIndex)
//	}
//
//	func (p *PagesProvider) Boot(root *container.Scope) error {
//	    _, err := root.Many(PageType) // warm the topmost pages
//	    return err
//	}
type ServiceProvider interface {
	Register(m *Manager) error
	Boot(root *Scope) error
}

// ── BaseProvider ──────────────────────────────────────────────────────────────

// BaseProvider is an embeddable no-op Boot.
type BaseProvider struct{}

func (p *BaseProvider) Boot(_ *Scope) error { return nil }

// Table is a registration table as emitted by a generator: a flat factory
// array plus the index into it. A Table is itself a ServiceProvider.
//
//	var Table = container.Table{
//	    Factories: []container.Factory{homePage, tabPage},
//	    Index: container.Index{
//	        PageType: container.MultiBinding(
//	            container.Range{From: 0, Count: 1},
//	            container.Range{From: 1, Count: 1, Classifier: "tab2"},
//	        ),
//	    },
//	}
type Table struct {
	BaseProvider
	Factories []Factory
	Index     Index
}

// Register merges the table into m.
func (t *Table) Register(m *Manager) error { return m.Register(t.Factories, t.Index) }

// ── ProviderRegistry ──────────────────────────────────────────────────────────

// ProviderRegistry collects providers, registers their tables into one
// Manager and boots them against the root scope.
type ProviderRegistry struct {
	mu         sync.Mutex
	manager    *Manager
	providers  []ServiceProvider
	registered map[ServiceProvider]bool
	root       *Scope
}

// NewProviderRegistry creates a registry feeding m.
func NewProviderRegistry(m *Manager) *ProviderRegistry {
	return &ProviderRegistry{
		manager:    m,
		registered: make(map[ServiceProvider]bool),
	}
}

// Register calls p.Register. Registering the same provider twice is a no-op.
// Once booted, the manager is sealed and Register fails with
// ErrManagerSealed.
func (r *ProviderRegistry) Register(p ServiceProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.registered[p] {
		return nil
	}
	if err := p.Register(r.manager); err != nil {
		return fmt.Errorf("register %T: %w", p, err)
	}
	r.registered[p] = true
	r.providers = append(r.providers, p)
	return nil
}

// Boot seals the manager, creates the root scope and boots every provider in
// registration order. All Boot errors are returned joined. A second Boot
// returns the same root.
func (r *ProviderRegistry) Boot() (*Scope, error) {
	r.mu.Lock()
	if r.root != nil {
		root := r.root
		r.mu.Unlock()
		return root, nil
	}
	r.root = NewRoot(r.manager)
	root, providers := r.root, append([]ServiceProvider(nil), r.providers...)
	r.mu.Unlock()

	var errs []error
	for _, p := range providers {
		if err := p.Boot(root); err != nil {
			errs = append(errs, fmt.Errorf("boot %T: %w", p, err))
		}
	}
	return root, errors.Join(errs...)
}

// Booted reports whether Boot has been called.
func (r *ProviderRegistry) Booted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.root != nil
}

// Providers returns the registered providers in registration order.
func (r *ProviderRegistry) Providers() []ServiceProvider {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ServiceProvider(nil), r.providers...)
}

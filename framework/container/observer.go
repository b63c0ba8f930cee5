package container

import "time"

// Observer receives lifecycle notifications from a Manager's scope trees.
// Implementations must be safe for concurrent use and must not resolve.
type Observer interface {
	InstanceCreated(t Type, scoping Scoping, elapsed time.Duration)
	ResolveFailed(t Type, err error)
	ScopeOpened()
	ScopeReleased()
}

type nopObserver struct{}

func (nopObserver) InstanceCreated(Type, Scoping, time.Duration) {}
func (nopObserver) ResolveFailed(Type, error)                    {}
func (nopObserver) ScopeOpened()                                 {}
func (nopObserver) ScopeReleased()                               {}

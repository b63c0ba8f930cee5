package container

import (
	"errors"
	"strconv"
	"strings"
)

var (
	// ErrBindingNotFound is matched by BindingNotFoundError.
	ErrBindingNotFound = errors.New("container: binding not found")

	// ErrDuplicateBinding is matched by DuplicateBindingError.
	ErrDuplicateBinding = errors.New("container: duplicate binding")

	// ErrCyclicResolution is matched by CyclicResolutionError.
	ErrCyclicResolution = errors.New("container: cyclic resolution")

	// ErrAmbiguousBinding is matched by AmbiguousBindingError.
	ErrAmbiguousBinding = errors.New("container: ambiguous binding")

	// ErrScopeReleased is returned when resolving on a released scope.
	ErrScopeReleased = errors.New("container: scope released")

	// ErrManagerSealed is returned by Register once a root scope exists.
	ErrManagerSealed = errors.New("container: manager sealed")

	// ErrInvalidIndex is returned by Register for malformed binding locations.
	ErrInvalidIndex = errors.New("container: invalid binding index")

	// ErrDuplicateFactory is returned by Register when two factories share an ID.
	ErrDuplicateFactory = errors.New("container: duplicate factory id")

	// ErrFactoryPanic wraps a panic recovered from Factory.Create.
	ErrFactoryPanic = errors.New("container: panic during create")

	// ErrNilInstance is returned when Factory.Create yields nil without error.
	ErrNilInstance = errors.New("container: factory returned nil instance")
)

// BindingNotFoundError is returned by a required single resolution that
// matched no factory.
type BindingNotFoundError struct {
	Type       Type
	Classifier Classifier
}

// Error implements the error interface.
func (e BindingNotFoundError) Error() string {
	// Example: container: no binding for "app.Page"@"missing"
	return "container: no binding for " + slot(e.Type, e.Classifier)
}

// Is reports ErrBindingNotFound.
func (e BindingNotFoundError) Is(target error) bool { return target == ErrBindingNotFound }

// DuplicateBindingError is returned when a (type, classifier) slot of one
// scope is written twice.
type DuplicateBindingError struct {
	Type       Type
	Classifier Classifier
	Scope      string
}

// Error implements the error interface.
func (e DuplicateBindingError) Error() string {
	return "container: duplicate binding " + slot(e.Type, e.Classifier) + " in " + e.Scope
}

// Is reports ErrDuplicateBinding.
func (e DuplicateBindingError) Is(target error) bool { return target == ErrDuplicateBinding }

// CyclicResolutionError is returned when a factory is requested again while
// it is still constructing. Chain lists the factory IDs from outermost to the
// repeated one.
type CyclicResolutionError struct {
	Type  Type
	Chain []string
}

// Error implements the error interface.
func (e CyclicResolutionError) Error() string {
	// Example: container: cyclic resolution of "app.A" (a -> b -> a)
	return "container: cyclic resolution of " + strconv.Quote(string(e.Type)) +
		" (" + strings.Join(e.Chain, " -> ") + ")"
}

// Is reports ErrCyclicResolution.
func (e CyclicResolutionError) Is(target error) bool { return target == ErrCyclicResolution }

// AmbiguousBindingError is returned by a single resolution that matched more
// than one factory.
type AmbiguousBindingError struct {
	Type       Type
	Classifier Classifier
	Count      int
}

// Error implements the error interface.
func (e AmbiguousBindingError) Error() string {
	return "container: " + strconv.Itoa(e.Count) + " bindings match " + slot(e.Type, e.Classifier)
}

// Is reports ErrAmbiguousBinding.
func (e AmbiguousBindingError) Is(target error) bool { return target == ErrAmbiguousBinding }

func slot(t Type, c Classifier) string {
	if c == None {
		return strconv.Quote(string(t))
	}
	return strconv.Quote(string(t)) + "@" + strconv.Quote(string(c))
}

package container

import "fmt"

// ── Generic helpers ───────────────────────────────────────────────────────────

// Resolution is implemented by *Scope and *Resolver.
type Resolution interface {
	Single(t Type, c Classifier) (any, error)
	Optional(t Type, c Classifier) (any, bool, error)
	Many(t Type) ([]any, error)
	ManyClassified(t Type, c Classifier) ([]any, error)
}

var (
	_ Resolution = (*Scope)(nil)
	_ Resolution = (*Resolver)(nil)
)

// TypeMismatchError is returned by the generic helpers when a resolved
// instance is not a T.
type TypeMismatchError struct {
	Type Type
	Want string
	Got  string
}

// Error implements the error interface.
func (e TypeMismatchError) Error() string {
	return "container: " + slot(e.Type, None) + " resolved to " + e.Got + ", want " + e.Want
}

func mismatch[T any](t Type, v any) error {
	return TypeMismatchError{Type: t, Want: fmt.Sprintf("%T", (*T)(nil))[1:], Got: fmt.Sprintf("%T", v)}
}

// Single resolves (t, c) and asserts the result to T.
//
//	// Instead of: v, err := scope.Single(PageType, "tab2"); page := v.(Page)
//	// Write:      page, err := container.Single[Page](scope, PageType, "tab2")
func Single[T any](r Resolution, t Type, c Classifier) (T, error) {
	var zero T
	v, err := r.Single(t, c)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, mismatch[T](t, v)
	}
	return typed, nil
}

// MustSingle is like Single but panics on error. Use it in composition roots
// and generated factories where a missing binding is a programming error.
func MustSingle[T any](r Resolution, t Type, c Classifier) T {
	v, err := Single[T](r, t, c)
	if err != nil {
		panic(err)
	}
	return v
}

// Optional resolves (t, c) if bound and asserts the result to T.
func Optional[T any](r Resolution, t Type, c Classifier) (T, bool, error) {
	var zero T
	v, ok, err := r.Optional(t, c)
	if err != nil || !ok {
		return zero, false, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false, mismatch[T](t, v)
	}
	return typed, true, nil
}

// Many resolves every instance of t and asserts each to T.
func Many[T any](r Resolution, t Type) ([]T, error) {
	vs, err := r.Many(t)
	if err != nil {
		return nil, err
	}
	return assertAll[T](t, vs)
}

// ManyClassified resolves every instance of t under c and asserts each to T.
func ManyClassified[T any](r Resolution, t Type, c Classifier) ([]T, error) {
	vs, err := r.ManyClassified(t, c)
	if err != nil {
		return nil, err
	}
	return assertAll[T](t, vs)
}

func assertAll[T any](t Type, vs []any) ([]T, error) {
	out := make([]T, 0, len(vs))
	for _, v := range vs {
		typed, ok := v.(T)
		if !ok {
			return nil, mismatch[T](t, v)
		}
		out = append(out, typed)
	}
	return out, nil
}

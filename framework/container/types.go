package container

import (
	"reflect"
	"strconv"
)

// ── Contract identity ─────────────────────────────────────────────────────────

// Type identifies a contract. Keys are assigned when registration tables are
// built and compared as plain strings at resolution time.
//
//	const PageType container.Type = "app.Page"
type Type string

// TypeName derives a stable package-qualified key for v. It reflects, so
// call it when building tables (init, generated code), never per resolve.
//
//	var PageType = container.TypeName((*Page)(nil))  // "github.com/acme/app.Page"
func TypeName(v any) Type {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return Type(t.String())
	}
	return Type(t.PkgPath() + "." + t.Name())
}

// Classifier distinguishes bindings of the same Type. None is the default
// binding.
type Classifier string

// None is the unclassified binding.
const None Classifier = ""

// ── Scoping ───────────────────────────────────────────────────────────────────

// Scoping decides where a constructed instance is cached.
type Scoping int

const (
	// Unscoped instances are never cached; every request constructs.
	Unscoped Scoping = iota
	// Direct instances are cached in the scope the request was made on.
	Direct
	// Topmost instances are cached in the root of the requesting scope's tree.
	Topmost
)

func (s Scoping) String() string {
	switch s {
	case Unscoped:
		return "unscoped"
	case Direct:
		return "direct"
	case Topmost:
		return "topmost"
	}
	return "scoping(" + strconv.Itoa(int(s)) + ")"
}

package container

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// ── Inspection ────────────────────────────────────────────────────────────────

// Instance describes one cached instance for a Visitor.
type Instance struct {
	Type       Type
	Classifier Classifier
	Factory    string
	Provision  Provision
	Scoping    Scoping
	Value      any
}

// Visitor walks a scope tree depth first.
type Visitor interface {
	// EnterScope is called before a scope's instances. Returning false skips
	// the scope's instances and its children.
	EnterScope(s *Scope) bool

	// Instance is called per cached instance. Returning false skips the
	// remaining instances of the current scope.
	Instance(i Instance) bool

	ExitScope(s *Scope)
}

// Accept walks s and its descendants. The walk works on copies taken under
// the scope locks, so v may resolve freely.
func (s *Scope) Accept(v Visitor) {
	s.mu.RLock()
	var instances []Instance
	for _, t := range s.order {
		for _, e := range s.buckets[t].entries {
			instances = append(instances, Instance{
				Type:       t,
				Classifier: e.classifier,
				Factory:    e.factory,
				Provision:  e.provision,
				Scoping:    e.scoping,
				Value:      e.value,
			})
		}
	}
	children := append([]*Scope(nil), s.children...)
	s.mu.RUnlock()

	if !v.EnterScope(s) {
		return
	}
	for _, i := range instances {
		if !v.Instance(i) {
			break
		}
	}
	for _, c := range children {
		c.Accept(v)
	}
	v.ExitScope(s)
}

// ScopeSnapshot is a JSON-friendly picture of a scope tree.
type ScopeSnapshot struct {
	ID        string             `json:"id"`
	Depth     int                `json:"depth"`
	Instances []InstanceSnapshot `json:"instances"`
	Children  []ScopeSnapshot    `json:"children,omitempty"`
}

// InstanceSnapshot is the rendered form of an Instance.
type InstanceSnapshot struct {
	Type       string `json:"type"`
	Classifier string `json:"classifier,omitempty"`
	Factory    string `json:"factory,omitempty"`
	Provision  string `json:"provision"`
	Scoping    string `json:"scoping,omitempty"`
	Value      string `json:"value"`
}

// Snapshot captures s and its descendants.
func (s *Scope) Snapshot() ScopeSnapshot {
	b := &snapshotBuilder{}
	s.Accept(b)
	return b.done
}

type snapshotBuilder struct {
	stack []*ScopeSnapshot
	done  ScopeSnapshot
}

func (b *snapshotBuilder) EnterScope(s *Scope) bool {
	b.stack = append(b.stack, &ScopeSnapshot{ID: s.String(), Depth: s.Depth(), Instances: []InstanceSnapshot{}})
	return true
}

func (b *snapshotBuilder) Instance(i Instance) bool {
	cur := b.stack[len(b.stack)-1]
	is := InstanceSnapshot{
		Type:       string(i.Type),
		Classifier: string(i.Classifier),
		Factory:    i.Factory,
		Provision:  i.Provision.String(),
		Value:      fmt.Sprintf("%T", i.Value),
	}
	if i.Provision == Injected {
		is.Scoping = i.Scoping.String()
	}
	cur.Instances = append(cur.Instances, is)
	return true
}

func (b *snapshotBuilder) ExitScope(*Scope) {
	top := b.stack[len(b.stack)-1]
	b.stack = b.stack[:len(b.stack)-1]
	if len(b.stack) == 0 {
		b.done = *top
		return
	}
	parent := b.stack[len(b.stack)-1]
	parent.Children = append(parent.Children, *top)
}

// Dump writes an indented text rendering of s and its descendants:
//
//	[0] scope#1
//	   bound app.Config *config.Config
//	   topmost app.Page@tab2 *demo.TabPage
//	   [1] scope#2
//	      direct app.RequestInfo *demo.RequestInfo
func Dump(w io.Writer, s *Scope) error {
	return dumpSnapshot(w, s.Snapshot())
}

func dumpSnapshot(w io.Writer, snap ScopeSnapshot) error {
	indent := strings.Repeat("   ", snap.Depth)
	if _, err := fmt.Fprintf(w, "%s[%d] %s\n", indent, snap.Depth, snap.ID); err != nil {
		return err
	}
	lines := append([]InstanceSnapshot(nil), snap.Instances...)
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].Provision != lines[j].Provision {
			return lines[i].Provision < lines[j].Provision
		}
		if lines[i].Scoping != lines[j].Scoping {
			return lines[i].Scoping < lines[j].Scoping
		}
		return lines[i].Type < lines[j].Type
	})
	for _, l := range lines {
		label := l.Scoping
		if l.Provision == Bound.String() {
			label = l.Provision
		}
		name := l.Type
		if l.Classifier != "" {
			name += "@" + l.Classifier
		}
		if _, err := fmt.Fprintf(w, "%s   %s %s %s\n", indent, label, name, l.Value); err != nil {
			return err
		}
	}
	for _, c := range snap.Children {
		if err := dumpSnapshot(w, c); err != nil {
			return err
		}
	}
	return nil
}

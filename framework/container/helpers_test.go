package container_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/km-arc/go-magnet/framework/container"
)

// ── helpers ───────────────────────────────────────────────────────────────────

const (
	pageType   container.Type = "app.Page"
	repoType   container.Type = "app.Repository"
	iface1Type container.Type = "app.Interface1"
	iface2Type container.Type = "app.Interface2"
	unknown    container.Type = "app.NeverRegistered"
)

type thing struct {
	id   string
	deps []any
}

// counting returns a factory producing a fresh *thing per call and counting
// invocations in n.
func counting(id string, scoping container.Scoping, n *atomic.Int32, siblings ...container.Sibling) container.Factory {
	return container.NewFactory(id, scoping, func(r *container.Resolver) (any, error) {
		if n != nil {
			n.Add(1)
		}
		return &thing{id: id}, nil
	}, siblings...)
}

// slow is counting with a delay, to widen race windows.
func slow(id string, scoping container.Scoping, n *atomic.Int32, siblings ...container.Sibling) container.Factory {
	return container.NewFactory(id, scoping, func(r *container.Resolver) (any, error) {
		n.Add(1)
		time.Sleep(20 * time.Millisecond)
		return &thing{id: id}, nil
	}, siblings...)
}

func newRoot(t *testing.T, factories []container.Factory, index container.Index) *container.Scope {
	t.Helper()
	m := container.NewManager()
	require.NoError(t, m.Register(factories, index))
	root := container.NewRoot(m)
	t.Cleanup(root.Release)
	return root
}

func single(t *testing.T, r container.Resolution, typ container.Type, c container.Classifier) *thing {
	t.Helper()
	v, err := container.Single[*thing](r, typ, c)
	require.NoError(t, err)
	return v
}

func ids(things []*thing) []string {
	out := make([]string, len(things))
	for i, th := range things {
		out[i] = th.id
	}
	return out
}

// instancesOf lists "type@classifier" of every instance cached directly in s.
func instancesOf(s *container.Scope) []string {
	var out []string
	for _, i := range s.Snapshot().Instances {
		name := i.Type
		if i.Classifier != "" {
			name += "@" + i.Classifier
		}
		out = append(out, name)
	}
	return out
}

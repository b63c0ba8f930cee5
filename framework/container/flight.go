package container

import "sync"

// callPath identifies one outermost resolution together with every nested
// construction it runs. It must not be zero-sized: distinct paths need
// distinct addresses.
type callPath struct{ _ byte }

// flightKey names one in-flight construction: a slot on a scope.
type flightKey struct {
	scope *Scope
	slot  string
}

// waitGraph records which call path runs each in-flight construction and
// which construction each blocked path is waiting for. Joining a flight whose
// runner waits, directly or through other paths, on the joiner would block
// both forever; join refuses instead.
type waitGraph struct {
	mu    sync.Mutex
	owner map[flightKey]*callPath
	waits map[*callPath]flightKey
}

func newWaitGraph() *waitGraph {
	return &waitGraph{
		owner: make(map[flightKey]*callPath),
		waits: make(map[*callPath]flightKey),
	}
}

// join records that p is about to wait for k. It reports false, recording
// nothing, when waiting would close a cycle.
func (g *waitGraph) join(p *callPath, k flightKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	o := g.owner[k]
	for hops := 0; o != nil && hops <= len(g.waits); hops++ {
		if o == p {
			return false
		}
		next, ok := g.waits[o]
		if !ok {
			break
		}
		o = g.owner[next]
	}
	g.waits[p] = k
	return true
}

// run marks p as the path constructing k.
func (g *waitGraph) run(p *callPath, k flightKey) {
	g.mu.Lock()
	delete(g.waits, p)
	g.owner[k] = p
	g.mu.Unlock()
}

// finish clears k once p has finished constructing it.
func (g *waitGraph) finish(p *callPath, k flightKey) {
	g.mu.Lock()
	if g.owner[k] == p {
		delete(g.owner, k)
	}
	g.mu.Unlock()
}

// leave clears p's wait once it has stopped waiting.
func (g *waitGraph) leave(p *callPath) {
	g.mu.Lock()
	delete(g.waits, p)
	g.mu.Unlock()
}

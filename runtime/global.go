package runtime

import (
	"fmt"
	"sync"
)

// Factory builds the process-wide runtime on first use.
type Factory func() (Runtime, error)

type global struct {
	mu      sync.Mutex
	once    *sync.Once
	factory Factory
	rt      Runtime
	err     error
}

var g = global{once: new(sync.Once)}

// SetFactory installs the backend constructor used by Global. It resets any
// instance built by a previous factory.
func SetFactory(f Factory) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.factory = f
	g.once = new(sync.Once)
	g.rt = nil
	g.err = nil
}

// Global returns the process-wide runtime, constructing it lazily.
func Global() (Runtime, error) {
	g.mu.Lock()
	once, factory := g.once, g.factory
	g.mu.Unlock()

	once.Do(func() {
		var rt Runtime
		var err error
		if factory == nil {
			err = ErrNoRuntime
		} else {
			rt, err = factory()
			if err == nil && rt == nil {
				err = fmt.Errorf("runtime factory returned nil")
			}
		}
		g.mu.Lock()
		g.rt, g.err = rt, err
		g.mu.Unlock()
	})

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	return g.rt, nil
}

// Reset drops the current instance so the next Global call rebuilds it.
// Backends that hold device resources release them in their own teardown.
func Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.once = new(sync.Once)
	g.rt = nil
	g.err = nil
}

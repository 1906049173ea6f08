package necs

import (
	"sync"
	"testing"
	"time"
)

// testHandle is a stand-in engine object recording replicated attributes.
type testHandle struct {
	mu    sync.Mutex
	attrs map[string]any
	log   []string
}

func newTestHandle() *testHandle {
	return &testHandle{attrs: make(map[string]any)}
}

func (h *testHandle) PublishAttribute(name string, value any) {
	h.mu.Lock()
	h.attrs[name] = value
	h.log = append(h.log, name)
	h.mu.Unlock()
}

func (h *testHandle) attr(name string) (any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.attrs[name]
	return v, ok
}

func (h *testHandle) publishCount(name string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, entry := range h.log {
		if entry == name {
			n++
		}
	}
	return n
}

// newTestRuntime creates a started runtime with a fast tick for tests.
func newTestRuntime(t *testing.T, descriptors ...Descriptor) *Runtime {
	t.Helper()

	rt := NewRuntime(WithTickRate(5 * time.Millisecond))
	if len(descriptors) > 0 {
		if err := rt.ConfigureComponents(descriptors...); err != nil {
			t.Fatalf("configure components: %v", err)
		}
	}
	rt.Start()
	t.Cleanup(rt.Shutdown)
	return rt
}

// recorder is a destroy-order probe used by builder and entity tests.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

// probeComponent is a minimal component instance recording its teardown.
type probeComponent struct {
	name string
	rec  *recorder
}

func (p *probeComponent) Destroy() {
	p.rec.add("destroy:" + p.name)
}

// probeDescriptor builds a descriptor whose instance records lifecycle
// events on the shared recorder.
func probeDescriptor(name string, rec *recorder, deps ...string) Descriptor {
	return Descriptor{
		Name:         name,
		Dependencies: deps,
		Create: func(e *Entity) (ComponentInstance, error) {
			rec.add("create:" + name)
			return &probeComponent{name: name, rec: rec}, nil
		},
	}
}

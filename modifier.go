package necs

import (
	"sort"
	"sync"
)

// ModifierComponentName is the component name the modifier component is
// registered and looked up under.
const ModifierComponentName = "modifier"

// ModifierDescriptor returns the descriptor for the built-in modifier
// component.
func ModifierDescriptor() Descriptor {
	return Descriptor{
		Name: ModifierComponentName,
		Create: func(e *Entity) (ComponentInstance, error) {
			return &ModifierComponent{
				pipelines: make(map[string][]*modifierEntry),
			}, nil
		},
	}
}

// Modifiers returns the entity's modifier component, or nil if absent.
func Modifiers(e *Entity) *ModifierComponent {
	return Lookup[*ModifierComponent](e, ModifierComponentName)
}

// ModifierFunc transforms one stage of a pipeline: it receives the previous
// stage's output and the optional contextual data passed to Apply.
type ModifierFunc func(value float64, data any) float64

// modifierEntry is one registered transform in a pipeline.
type modifierEntry struct {
	priority int
	fn       ModifierFunc

	// seq preserves insertion order between entries with equal priority.
	seq uint64
}

// ModifierComponent holds named priority pipelines that transform a base
// numeric value. Entries within a pipeline are kept sorted ascending by
// priority; ties preserve insertion order.
type ModifierComponent struct {
	mu        sync.Mutex
	pipelines map[string][]*modifierEntry
	nextSeq   uint64
}

// Register inserts a transform into the named pipeline at the given
// priority. The returned func removes this exact entry; calling it more
// than once is safe.
func (c *ModifierComponent) Register(pipeline string, priority int, fn ModifierFunc) (unregister func()) {
	c.mu.Lock()
	c.nextSeq++
	entry := &modifierEntry{priority: priority, fn: fn, seq: c.nextSeq}
	entries := append(c.pipelines[pipeline], entry)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].priority == entries[j].priority {
			return entries[i].seq < entries[j].seq
		}
		return entries[i].priority < entries[j].priority
	})
	c.pipelines[pipeline] = entries
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			entries := c.pipelines[pipeline]
			for i, e := range entries {
				if e == entry {
					c.pipelines[pipeline] = append(entries[:i], entries[i+1:]...)
					break
				}
			}
			if len(c.pipelines[pipeline]) == 0 {
				delete(c.pipelines, pipeline)
			}
			c.mu.Unlock()
		})
	}
}

// Apply folds base through every entry of the named pipeline in ascending
// priority order, passing data to each stage. With no entries registered it
// returns base unchanged.
func (c *ModifierComponent) Apply(pipeline string, base float64, data any) float64 {
	c.mu.Lock()
	entries := c.pipelines[pipeline]
	fns := make([]ModifierFunc, len(entries))
	for i, e := range entries {
		fns[i] = e.fn
	}
	c.mu.Unlock()

	value := base
	for _, fn := range fns {
		value = fn(value, data)
	}
	return value
}

// Count returns the number of entries in the named pipeline.
func (c *ModifierComponent) Count(pipeline string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pipelines[pipeline])
}

// Clear removes the named pipelines, or every pipeline when called with no
// arguments.
func (c *ModifierComponent) Clear(pipelines ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(pipelines) == 0 {
		c.pipelines = make(map[string][]*modifierEntry)
		return
	}
	for _, p := range pipelines {
		delete(c.pipelines, p)
	}
}

// Destroy drops every pipeline.
func (c *ModifierComponent) Destroy() {
	c.Clear()
}

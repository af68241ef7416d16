// Package state holds a processing run's mutable, thread-safe runtime
// state: a bag of named controls keyed by dotted strings, and one or more
// tracked-files lists. Every mutation emits an event on the bus so a UI (or
// test) can observe state changes without polling.
package state

import (
	"fmt"
	"sync"

	"github.com/tabmod/tabmod/pkg/eventbus"
	"github.com/tabmod/tabmod/pkg/tabular"
)

// Controls is a thread-safe bag of named values keyed by dotted strings,
// e.g. "processing.chunk_size". Snapshots are copied out of the lock before
// returning so callers never hold a reference into the live map.
type Controls struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewControls returns an empty controls bag.
func NewControls() *Controls {
	return &Controls{values: make(map[string]any)}
}

// Set stores value under key.
func (c *Controls) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Get returns the raw value stored under key.
func (c *Controls) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// GetString returns key as a string, or def if absent or of the wrong type.
func (c *Controls) GetString(key, def string) string {
	if v, ok := c.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// GetBool returns key as a bool, or def if absent or of the wrong type.
func (c *Controls) GetBool(key string, def bool) bool {
	if v, ok := c.Get(key); ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// GetInt returns key as an int, or def if absent or of the wrong type.
func (c *Controls) GetInt(key string, def int) int {
	if v, ok := c.Get(key); ok {
		if n, ok := v.(int); ok {
			return n
		}
	}
	return def
}

// Snapshot returns a copy of every stored control.
func (c *Controls) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Stage is where a tracked file sits in the processing lifecycle.
type Stage string

const (
	StageNew        Stage = "new"
	StageProcessing Stage = "processing"
	StageProcessed  Stage = "processed"
	StageArchived   Stage = "archived"
)

// FileFlag is a combinable set of file status bits.
type FileFlag uint8

const (
	FlagUnknown FileFlag = 1 << iota
	FlagValid
	FlagExported
	FlagPending
	FlagError
	FlagDeleted
)

// Has reports whether flag is set within f.
func (f FileFlag) Has(flag FileFlag) bool { return f&flag != 0 }

// TrackedFile is one entry in a TrackedFiles list: a tabular handler plus
// its lifecycle stage and status flags.
type TrackedFile struct {
	Handler tabular.Handler
	Stage   Stage
	Flags   FileFlag
}

// TrackedFiles is a thread-safe, ordered collection of TrackedFile keyed by
// path, that emits state.file.<list>.<added|updated|deleted|cleared> and
// state.file.<list>.file.count on every mutation.
type TrackedFiles struct {
	mu       sync.RWMutex
	bus      *eventbus.Bus
	listName string
	files    map[string]*TrackedFile
	order    []string
}

// NewTrackedFiles returns an empty list named listName, emitting mutation
// events on bus (use eventbus.Default() unless a test needs isolation).
func NewTrackedFiles(bus *eventbus.Bus, listName string) *TrackedFiles {
	return &TrackedFiles{bus: bus, listName: listName, files: make(map[string]*TrackedFile)}
}

func (t *TrackedFiles) topic(action string) string {
	return fmt.Sprintf("state.file.%s.%s", t.listName, action)
}

func (t *TrackedFiles) emitCount() {
	t.mu.RLock()
	count := len(t.order)
	t.mu.RUnlock()
	t.bus.Emit(fmt.Sprintf("state.file.%s.file.count", t.listName), 0, eventbus.Payload{"count": count})
}

// Add tracks handler under its path, defaulting to stage "new" and flag
// "unknown". Re-adding an existing path is an Update, not an Add.
func (t *TrackedFiles) Add(h tabular.Handler) {
	path := h.Path()
	t.mu.Lock()
	_, exists := t.files[path]
	if !exists {
		t.order = append(t.order, path)
	}
	t.files[path] = &TrackedFile{Handler: h, Stage: StageNew, Flags: FlagUnknown}
	t.mu.Unlock()

	action := "added"
	if exists {
		action = "updated"
	}
	t.bus.Emit(t.topic(action), 0, eventbus.Payload{"file": path})
	t.emitCount()
}

// Update mutates the tracked entry for path in place, emitting "updated".
// A no-op (no event) if path isn't tracked.
func (t *TrackedFiles) Update(path string, mutate func(*TrackedFile)) {
	t.mu.Lock()
	tf, ok := t.files[path]
	if ok {
		mutate(tf)
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	t.bus.Emit(t.topic("updated"), 0, eventbus.Payload{"file": path, "status": tf.Stage})
	t.emitCount()
}

// Delete removes path from the list, emitting "deleted". A no-op if path
// isn't tracked.
func (t *TrackedFiles) Delete(path string) {
	t.mu.Lock()
	_, ok := t.files[path]
	if ok {
		delete(t.files, path)
		for i, p := range t.order {
			if p == path {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
	}
	t.mu.Unlock()
	if !ok {
		return
	}
	t.bus.Emit(t.topic("deleted"), 0, eventbus.Payload{"file": path})
	t.emitCount()
}

// Clear empties the list, emitting "cleared".
func (t *TrackedFiles) Clear() {
	t.mu.Lock()
	t.files = make(map[string]*TrackedFile)
	t.order = nil
	t.mu.Unlock()

	t.bus.Emit(t.topic("cleared"), 0, nil)
	t.emitCount()
}

// Snapshot returns tracked files in insertion order, copied out of the
// lock.
func (t *TrackedFiles) Snapshot() []*TrackedFile {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*TrackedFile, 0, len(t.order))
	for _, p := range t.order {
		out = append(out, t.files[p])
	}
	return out
}

// Get returns the tracked entry for path, if any.
func (t *TrackedFiles) Get(path string) (*TrackedFile, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tf, ok := t.files[path]
	return tf, ok
}

// State bundles the controls bag and tracked-files lists the engine and a
// UI share. Default controls keys read by the engine:
// processing.current, processing.strict, processing.strict_per_slot,
// processing.output_path, processing.chunk_size, processing.csv_delimiter.
type State struct {
	Controls *Controls
	Input    *TrackedFiles
}

// New returns a State wired to bus for its event emission.
func New(bus *eventbus.Bus) *State {
	return &State{
		Controls: NewControls(),
		Input:    NewTrackedFiles(bus, "input"),
	}
}

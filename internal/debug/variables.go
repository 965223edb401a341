// The flat, monotonically-id'd variable table of spec.md §4.7.3: scopes and
// their children share one id namespace so a variable id is a key into a
// flat table rather than a pointer, and a container's children are
// computed lazily, at most once per stop.
package debug

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// containerEntry backs one VariableContainer: the raw name->value map it
// was captured from, and (once built) the detail ids of its children.
type containerEntry struct {
	name     string
	raw      map[string]interface{}
	builtIDs []int
	built    bool
}

// Table is the flat, per-debug-stop-epoch variable container/detail store
// (spec.md §3 "Variable id namespace ... never reuse ids within a single
// debug-stop epoch; reset the vector on resume").
type Table struct {
	mu         sync.Mutex
	containers map[int]*containerEntry
	details    map[int]*varDetail
	nextID     int
}

// varDetail mirrors types.VariableDetail but additionally carries the raw
// value, so SetVariable and nested expansion can reach it without a
// second lookup.
type varDetail struct {
	id           int
	name         string
	raw          interface{}
	valueString  string
	isExpandable bool
	childrenID   int // 0 until this detail is itself expanded
}

// NewTable creates a Table whose monotonic allocator starts at floor — the
// first id past the fixed reserved range (dummy/global/script/auto-per-
// frame, spec.md §4.7.2 step 2).
func NewTable(floor int) *Table {
	return &Table{
		containers: make(map[int]*containerEntry),
		details:    make(map[int]*varDetail),
		nextID:     floor - 1,
	}
}

func (t *Table) alloc() int {
	t.nextID++
	return t.nextID
}

// RegisterReserved installs a container at a fixed, pre-allocated id
// (global, script, or one frame's auto scope) without consuming the
// monotonic allocator.
func (t *Table) RegisterReserved(id int, name string, raw map[string]interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.containers[id] = &containerEntry{name: name, raw: raw}
}

// NewContainer allocates a fresh monotonic id for a container (a frame's
// local scope, or a nested expansion) and registers it.
func (t *Table) NewContainer(name string, raw map[string]interface{}) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	id := t.alloc()
	t.containers[id] = &containerEntry{name: name, raw: raw}
	return id
}

// GetVariables returns containerID's children, building and caching them
// on first call (spec.md §4.7.3).
func (t *Table) GetVariables(containerID int) ([]varDetail, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	c, ok := t.containers[containerID]
	if !ok {
		return nil, fmt.Errorf("debug: no variable container with id %d", containerID)
	}
	if !c.built {
		t.build(c)
	}

	out := make([]varDetail, 0, len(c.builtIDs))
	for _, id := range c.builtIDs {
		out = append(out, *t.details[id])
	}
	return out, nil
}

// build enumerates c.raw into detail entries in stable (sorted-by-name)
// order and marks c built. Must be called with t.mu held.
func (t *Table) build(c *containerEntry) {
	names := make([]string, 0, len(c.raw))
	for name := range c.raw {
		names = append(names, name)
	}
	sort.Strings(names)

	c.builtIDs = make([]int, 0, len(names))
	for _, name := range names {
		val := c.raw[name]
		id := t.alloc()
		d := &varDetail{
			id:           id,
			name:         name,
			raw:          val,
			valueString:  formatValue(val),
			isExpandable: isExpandableValue(val),
		}
		if d.isExpandable {
			d.childrenID = t.newContainerLocked(name, toRawMap(val))
		}
		t.details[id] = d
		c.builtIDs = append(c.builtIDs, id)
	}
	c.built = true
}

// newContainerLocked is NewContainer's body for callers already holding
// t.mu (nested expansion during build).
func (t *Table) newContainerLocked(name string, raw map[string]interface{}) int {
	id := t.alloc()
	t.containers[id] = &containerEntry{name: name, raw: raw}
	return id
}

// Detail returns the detail registered at id, if any.
func (t *Table) Detail(id int) (varDetail, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.details[id]
	if !ok {
		return varDetail{}, false
	}
	return *d, true
}

// FindByName returns the first built detail named name inside containerID,
// case-insensitively, building the container first if needed.
func (t *Table) FindByName(containerID int, name string) (varDetail, bool) {
	children, err := t.GetVariables(containerID)
	if err != nil {
		return varDetail{}, false
	}
	for _, d := range children {
		if equalFold(d.name, name) {
			return d, true
		}
	}
	return varDetail{}, false
}

// SetRaw overwrites name's raw value inside containerID's backing map and
// invalidates the container's built cache so the next GetVariables call
// rebuilds it with the new value (used by SetVariable, spec.md §4.7.3).
func (t *Table) SetRaw(containerID int, name string, value interface{}) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.containers[containerID]
	if !ok {
		return fmt.Errorf("debug: no variable container with id %d", containerID)
	}
	c.raw[name] = value
	c.built = false
	c.builtIDs = nil
	return nil
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func isExpandableValue(v interface{}) bool {
	switch val := v.(type) {
	case map[string]interface{}:
		return len(val) > 0
	case []interface{}:
		return len(val) > 0
	}
	return false
}

func toRawMap(v interface{}) map[string]interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return val
	case []interface{}:
		m := make(map[string]interface{}, len(val))
		for i, e := range val {
			m[fmt.Sprintf("%d", i)] = e
		}
		return m
	default:
		return nil
	}
}

func formatValue(v interface{}) string {
	if v == nil {
		return "undefined"
	}
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("%q", val)
	case []interface{}:
		return fmt.Sprintf("%v", val)
	case map[string]interface{}:
		return fmt.Sprintf("%v", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// valuesEqual reports whether a local's value is indistinguishable from a
// global of the same name — used by auto-variable classification to skip
// constants that merely duplicate a global (spec.md §4.7.2 step 4).
func valuesEqual(a, b interface{}) bool {
	return reflect.DeepEqual(a, b)
}

// Package catalog holds the loggable actions: an immutable built-in seed plus
// custom entries added at runtime.
package catalog

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"kidpoints/internal/models"
)

// Snapshot is the persisted form of the catalog. Built-ins are never stored,
// so entries added in later releases appear while user deletions persist.
type Snapshot struct {
	Custom []models.Action `json:"custom"`
	Hidden []string        `json:"hidden"`
}

// Catalog is safe for concurrent use
type Catalog struct {
	mu     sync.RWMutex
	custom []models.Action
	hidden map[string]bool
	lastID int64
	now    func() time.Time
}

// New creates a catalog holding only the built-in seed
func New() *Catalog {
	return &Catalog{
		hidden: make(map[string]bool),
		now:    time.Now,
	}
}

// List returns visible built-ins followed by custom entries
func (c *Catalog) List() []models.Action {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.Action, 0, len(builtins)+len(c.custom))
	for _, a := range builtins {
		if !c.hidden[a.ID] {
			out = append(out, a)
		}
	}
	return append(out, c.custom...)
}

// Get looks up a visible action
func (c *Catalog) Get(id string) (models.Action, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if !c.hidden[id] {
		for _, a := range builtins {
			if a.ID == id {
				return a, true
			}
		}
	}
	for _, a := range c.custom {
		if a.ID == id {
			return a, true
		}
	}
	return models.Action{}, false
}

// Add appends a custom action. The value sign is normalized to the type and the id
// is prefix + "_" + unix millis, bumped so ids stay strictly increasing.
func (c *Catalog) Add(label string, typ models.ActionType, value float64, prefix string) (models.Action, error) {
	if !typ.Valid() {
		return models.Action{}, fmt.Errorf("invalid action type %q", typ)
	}
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), "_")
	if prefix == "" {
		prefix = "custom"
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stamp := c.now().UnixMilli()
	if stamp <= c.lastID {
		stamp = c.lastID + 1
	}
	c.lastID = stamp

	action := models.Action{
		ID:    fmt.Sprintf("%s_%d", prefix, stamp),
		Label: label,
		Type:  typ,
		Value: models.NormalizeValue(typ, value),
	}
	c.custom = append(c.custom, action)
	return action, nil
}

// Delete removes a custom action or hides a built-in. It reports whether anything changed.
func (c *Catalog) Delete(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, a := range c.custom {
		if a.ID == id {
			c.custom = append(c.custom[:i:i], c.custom[i+1:]...)
			return true
		}
	}
	if isBuiltin(id) && !c.hidden[id] {
		c.hidden[id] = true
		return true
	}
	return false
}

// Snapshot returns the persistable state
func (c *Catalog) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snap := Snapshot{
		Custom: append([]models.Action{}, c.custom...),
		Hidden: make([]string, 0, len(c.hidden)),
	}
	for _, a := range builtins {
		if c.hidden[a.ID] {
			snap.Hidden = append(snap.Hidden, a.ID)
		}
	}
	return snap
}

// Restore replaces the runtime state with a snapshot
func (c *Catalog) Restore(snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.custom = c.custom[:0]
	c.hidden = make(map[string]bool, len(snap.Hidden))
	for _, id := range snap.Hidden {
		c.hidden[id] = true
	}
	for _, a := range snap.Custom {
		if isBuiltin(a.ID) {
			continue
		}
		c.custom = append(c.custom, a)
		if stamp := idStamp(a.ID); stamp > c.lastID {
			c.lastID = stamp
		}
	}
}

// FromActions rebuilds a snapshot from a flat action list, as stored by older clients.
// Built-ins missing from the list are treated as hidden.
func FromActions(actions []models.Action) Snapshot {
	present := make(map[string]bool, len(actions))
	snap := Snapshot{Custom: []models.Action{}, Hidden: []string{}}
	for _, a := range actions {
		present[a.ID] = true
		if !isBuiltin(a.ID) {
			snap.Custom = append(snap.Custom, a)
		}
	}
	for _, a := range builtins {
		if !present[a.ID] {
			snap.Hidden = append(snap.Hidden, a.ID)
		}
	}
	return snap
}

func idStamp(id string) int64 {
	i := strings.LastIndexByte(id, '_')
	if i < 0 {
		return 0
	}
	var n int64
	if _, err := fmt.Sscanf(id[i+1:], "%d", &n); err != nil {
		return 0
	}
	return n
}

// Package ledger owns the children, the action log and score maintenance.
//
// Scores are stored, not recomputed: every mutator updates the log and the
// affected score under one lock, so readers never observe half of a change.
package ledger

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"kidpoints/internal/catalog"
	"kidpoints/internal/models"
)

var (
	ErrChildNotFound  = errors.New("child not found")
	ErrActionNotFound = errors.New("action not found")
	ErrLogNotFound    = errors.New("log entry not found")
)

// VictoryThreshold is the archived score at or above which week validation is a victory
const VictoryThreshold = 9.5

// DefaultDateLayout formats history dates as DD/MM/YYYY
const DefaultDateLayout = "02/01/2006"

// Option configures a Ledger
type Option func(*Ledger)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithIDGenerator overrides how child and log ids are minted
func WithIDGenerator(newID func() string) Option {
	return func(l *Ledger) { l.newID = newID }
}

// WithDateLayout sets the layout used for history dates
func WithDateLayout(layout string) Option {
	return func(l *Ledger) {
		if layout != "" {
			l.dateLayout = layout
		}
	}
}

// Ledger is safe for concurrent use
type Ledger struct {
	mu      sync.RWMutex
	kids    []models.Child
	logs    []models.LogEntry
	catalog *catalog.Catalog

	obsMu     sync.RWMutex
	observers map[int]Observer
	nextObs   int

	now        func() time.Time
	newID      func() string
	dateLayout string
}

// New creates an empty ledger over cat
func New(cat *catalog.Catalog, opts ...Option) *Ledger {
	l := &Ledger{
		catalog:    cat,
		observers:  make(map[int]Observer),
		now:        time.Now,
		newID:      uuid.NewString,
		dateLayout: DefaultDateLayout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// AddChild appends a child with the initial score and an empty history
func (l *Ledger) AddChild(name, avatar string) models.Child {
	child := models.Child{
		ID:      l.newID(),
		Name:    name,
		Avatar:  avatar,
		Score:   models.InitialScore,
		History: []models.HistoryEntry{},
	}

	l.mu.Lock()
	l.kids = append(l.kids, child)
	l.mu.Unlock()

	l.notify(Change{Scope: ScopeKids, ChildID: child.ID, Origin: OriginLocal})
	return child.Clone()
}

// RemoveChild drops a child from the roster. Its log entries are left in place.
func (l *Ledger) RemoveChild(childID string) error {
	l.mu.Lock()
	i := l.childIndex(childID)
	if i < 0 {
		l.mu.Unlock()
		return ErrChildNotFound
	}
	l.kids = append(l.kids[:i:i], l.kids[i+1:]...)
	l.mu.Unlock()

	l.notify(Change{Scope: ScopeKids, ChildID: childID, Origin: OriginLocal})
	return nil
}

// LogAction records actionID for childID and applies its value to the score
func (l *Ledger) LogAction(childID, actionID string) (models.LogEntry, Feedback, error) {
	action, ok := l.catalog.Get(actionID)
	if !ok {
		return models.LogEntry{}, FeedbackNone, ErrActionNotFound
	}

	l.mu.Lock()
	i := l.childIndex(childID)
	if i < 0 {
		l.mu.Unlock()
		return models.LogEntry{}, FeedbackNone, ErrChildNotFound
	}
	entry := l.appendLog(i, action)
	l.mu.Unlock()

	fb := feedbackFor(entry.Value)
	l.notify(Change{Scope: ScopeKids | ScopeLogs, ChildID: childID, Feedback: fb, Origin: OriginLocal})
	return entry, fb, nil
}

// LogActionBatch logs each known action id in order. Unknown ids are skipped.
// The feedback reflects the sign of the summed values.
func (l *Ledger) LogActionBatch(childID string, actionIDs []string) ([]models.LogEntry, Feedback, error) {
	actions := make([]models.Action, 0, len(actionIDs))
	for _, id := range actionIDs {
		if a, ok := l.catalog.Get(id); ok {
			actions = append(actions, a)
		}
	}

	l.mu.Lock()
	i := l.childIndex(childID)
	if i < 0 {
		l.mu.Unlock()
		return nil, FeedbackNone, ErrChildNotFound
	}
	entries := make([]models.LogEntry, 0, len(actions))
	var sum float64
	for _, a := range actions {
		entry := l.appendLog(i, a)
		entries = append(entries, entry)
		sum += entry.Value
	}
	l.mu.Unlock()

	if len(entries) == 0 {
		return entries, FeedbackNone, nil
	}
	fb := feedbackFor(sum)
	l.notify(Change{Scope: ScopeKids | ScopeLogs, ChildID: childID, Feedback: fb, Origin: OriginLocal})
	return entries, fb, nil
}

// appendLog must be called with l.mu held
func (l *Ledger) appendLog(childIdx int, action models.Action) models.LogEntry {
	entry := models.LogEntry{
		ID:       l.newID(),
		ChildID:  l.kids[childIdx].ID,
		ActionID: action.ID,
		Date:     l.now().UTC(),
		Value:    action.Value,
	}
	l.logs = append(l.logs, entry)
	l.kids[childIdx].Score = clamp(l.kids[childIdx].Score + entry.Value)
	return entry
}

// DeleteLog removes an entry and reverses its stored value against its child's score
func (l *Ledger) DeleteLog(logID string) (models.LogEntry, error) {
	l.mu.Lock()
	idx := -1
	for i, e := range l.logs {
		if e.ID == logID {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return models.LogEntry{}, ErrLogNotFound
	}
	entry := l.logs[idx]
	l.logs = append(l.logs[:idx:idx], l.logs[idx+1:]...)

	scope := ScopeLogs
	if ci := l.childIndex(entry.ChildID); ci >= 0 {
		l.kids[ci].Score = clamp(l.kids[ci].Score - entry.Value)
		scope |= ScopeKids
	}
	l.mu.Unlock()

	l.notify(Change{Scope: scope, ChildID: entry.ChildID, Origin: OriginLocal})
	return entry, nil
}

// AddAction creates a custom action. The value sign is forced to match typ.
func (l *Ledger) AddAction(label string, typ models.ActionType, value float64, prefix string) (models.Action, error) {
	action, err := l.catalog.Add(label, typ, value, prefix)
	if err != nil {
		return models.Action{}, err
	}
	l.notify(Change{Scope: ScopeActions, Origin: OriginLocal})
	return action, nil
}

// DeleteAction removes a definition. Existing log entries keep their value.
func (l *Ledger) DeleteAction(actionID string) error {
	if !l.catalog.Delete(actionID) {
		return ErrActionNotFound
	}
	l.notify(Change{Scope: ScopeActions, Origin: OriginLocal})
	return nil
}

// ValidateWeek archives the child's score, resets it and purges the child's logs
func (l *Ledger) ValidateWeek(childID string) (models.HistoryEntry, Feedback, error) {
	l.mu.Lock()
	i := l.childIndex(childID)
	if i < 0 {
		l.mu.Unlock()
		return models.HistoryEntry{}, FeedbackNone, ErrChildNotFound
	}
	entry := models.HistoryEntry{
		Date:  l.now().Format(l.dateLayout),
		Score: l.kids[i].Score,
	}
	l.kids[i].History = append(l.kids[i].History, entry)
	l.kids[i].Score = models.InitialScore
	l.logs = filterLogs(l.logs, func(e models.LogEntry) bool { return e.ChildID != childID })
	l.mu.Unlock()

	fb := FeedbackNone
	if entry.Score >= VictoryThreshold {
		fb = FeedbackVictory
	}
	l.notify(Change{Scope: ScopeKids | ScopeLogs, ChildID: childID, Feedback: fb, Origin: OriginLocal})
	return entry, fb, nil
}

// ResetScores sets every child back to the initial score and purges the whole log
func (l *Ledger) ResetScores() {
	l.mu.Lock()
	for i := range l.kids {
		l.kids[i].Score = models.InitialScore
	}
	l.logs = nil
	l.mu.Unlock()

	l.notify(Change{Scope: ScopeKids | ScopeLogs, Origin: OriginLocal})
}

// ReplaceKids overwrites the roster, e.g. with a remote record. Logs are untouched.
func (l *Ledger) ReplaceKids(kids []models.Child, origin Origin) {
	l.mu.Lock()
	l.kids = normalizeKids(kids)
	l.mu.Unlock()

	l.notify(Change{Scope: ScopeKids, Origin: origin})
}

// Load replaces the whole state, typically from local storage
func (l *Ledger) Load(state State, origin Origin) {
	l.mu.Lock()
	l.kids = normalizeKids(state.Kids)
	l.logs = append([]models.LogEntry(nil), state.Logs...)
	l.mu.Unlock()
	l.catalog.Restore(state.Actions)

	l.notify(Change{Scope: ScopeKids | ScopeLogs | ScopeActions, Origin: origin})
}

// State is a full copy of the ledger's contents
type State struct {
	Kids    []models.Child    `json:"kids"`
	Logs    []models.LogEntry `json:"logs"`
	Actions catalog.Snapshot  `json:"actions"`
}

// Snapshot returns a deep copy of the ledger's contents
func (l *Ledger) Snapshot() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return State{
		Kids:    models.CloneChildren(l.kids),
		Logs:    append([]models.LogEntry{}, l.logs...),
		Actions: l.catalog.Snapshot(),
	}
}

// Kids returns a copy of the roster
func (l *Ledger) Kids() []models.Child {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return models.CloneChildren(l.kids)
}

// Child looks up one child
func (l *Ledger) Child(childID string) (models.Child, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i := l.childIndex(childID); i >= 0 {
		return l.kids[i].Clone(), true
	}
	return models.Child{}, false
}

// ChildHistory returns the archived weekly scores of a child
func (l *Ledger) ChildHistory(childID string) ([]models.HistoryEntry, error) {
	c, ok := l.Child(childID)
	if !ok {
		return nil, ErrChildNotFound
	}
	return c.History, nil
}

// Logs returns the raw log collection, orphans included
func (l *Ledger) Logs() []models.LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.LogEntry{}, l.logs...)
}

// ChildLogs returns the entries of an existing child, newest first
func (l *Ledger) ChildLogs(childID string) []models.LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.childIndex(childID) < 0 {
		return []models.LogEntry{}
	}
	out := filterLogs(append([]models.LogEntry(nil), l.logs...), func(e models.LogEntry) bool { return e.ChildID == childID })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

// Actions lists the visible catalog
func (l *Ledger) Actions() []models.Action {
	return l.catalog.List()
}

// Action looks up a visible action
func (l *Ledger) Action(actionID string) (models.Action, bool) {
	return l.catalog.Get(actionID)
}

// childIndex must be called with l.mu held
func (l *Ledger) childIndex(childID string) int {
	for i, k := range l.kids {
		if k.ID == childID {
			return i
		}
	}
	return -1
}

func clamp(score float64) float64 {
	return math.Max(0, score)
}

func filterLogs(logs []models.LogEntry, keep func(models.LogEntry) bool) []models.LogEntry {
	out := logs[:0]
	for _, e := range logs {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}

func normalizeKids(kids []models.Child) []models.Child {
	out := models.CloneChildren(kids)
	for i := range out {
		if out[i].Score < 0 {
			out[i].Score = 0
		}
	}
	return out
}

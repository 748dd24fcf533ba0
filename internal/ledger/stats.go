package ledger

import (
	"sort"

	"kidpoints/internal/models"
)

// Stats aggregates log entries by polarity and category.
// Polarity follows the stored value sign, so entries of deleted actions still count.
type Stats struct {
	Good       int                     `json:"good"`
	Bad        int                     `json:"bad"`
	Gained     float64                 `json:"gained"`
	Lost       float64                 `json:"lost"`
	ByCategory map[models.Category]int `json:"byCategory"`
}

// ActionCount is how often one action was logged
type ActionCount struct {
	ActionID string  `json:"actionId"`
	Label    string  `json:"label"`
	Count    int     `json:"count"`
	Value    float64 `json:"value"`
}

// Recap summarizes a child's week so far
type Recap struct {
	ChildID string       `json:"childId"`
	Name    string       `json:"name"`
	Score   float64      `json:"score"`
	Stats   Stats        `json:"stats"`
	TopGood *ActionCount `json:"topGood,omitempty"`
	TopBad  *ActionCount `json:"topBad,omitempty"`
}

// Stats counts the logs of one child, or of every existing child when childID is empty
func (l *Ledger) Stats(childID string) Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st := Stats{ByCategory: make(map[models.Category]int)}
	for _, e := range l.logs {
		if childID != "" && e.ChildID != childID {
			continue
		}
		if l.childIndex(e.ChildID) < 0 {
			continue
		}
		switch {
		case e.Value > 0:
			st.Good++
			st.Gained += e.Value
		case e.Value < 0:
			st.Bad++
			st.Lost -= e.Value
		}
		st.ByCategory[models.CategoryOf(e.ActionID)]++
	}
	return st
}

// Recap builds the weekly summary of one child. Ties on frequency go to the earliest logged action.
func (l *Ledger) Recap(childID string) (Recap, error) {
	child, ok := l.Child(childID)
	if !ok {
		return Recap{}, ErrChildNotFound
	}

	l.mu.RLock()
	counts := make(map[string]*ActionCount)
	var order []string
	for _, e := range l.logs {
		if e.ChildID != childID {
			continue
		}
		c, seen := counts[e.ActionID]
		if !seen {
			c = &ActionCount{ActionID: e.ActionID, Value: e.Value}
			counts[e.ActionID] = c
			order = append(order, e.ActionID)
		}
		c.Count++
	}
	l.mu.RUnlock()

	recap := Recap{
		ChildID: child.ID,
		Name:    child.Name,
		Score:   child.Score,
		Stats:   l.Stats(childID),
	}

	ranked := make([]*ActionCount, 0, len(order))
	for _, id := range order {
		c := counts[id]
		c.Label = id
		if a, ok := l.catalog.Get(id); ok {
			c.Label = a.Label
		}
		ranked = append(ranked, c)
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Count > ranked[j].Count })

	for _, c := range ranked {
		if c.Value > 0 && recap.TopGood == nil {
			recap.TopGood = c
		}
		if c.Value < 0 && recap.TopBad == nil {
			recap.TopBad = c
		}
	}
	return recap, nil
}

package models

// InitialScore is the score a child starts with and returns to after week validation
const InitialScore = 10.0

// Child represents a child tracked by the family
type Child struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Avatar  string         `json:"avatar,omitempty"`
	Score   float64        `json:"score"`
	History []HistoryEntry `json:"history"`
}

// HistoryEntry archives a score at week validation
type HistoryEntry struct {
	Date  string  `json:"date"`
	Score float64 `json:"score"`
}

// Clone returns a deep copy so callers never share the history slice
func (c Child) Clone() Child {
	out := c
	out.History = append([]HistoryEntry(nil), c.History...)
	if out.History == nil {
		out.History = []HistoryEntry{}
	}
	return out
}

// CloneChildren deep-copies a roster
func CloneChildren(kids []Child) []Child {
	out := make([]Child, len(kids))
	for i, k := range kids {
		out[i] = k.Clone()
	}
	return out
}

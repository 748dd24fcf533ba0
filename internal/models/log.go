package models

import "time"

// LogEntry records one scored action for a child.
// Value is a snapshot of the action's value at log time.
type LogEntry struct {
	ID       string    `json:"id"`
	ChildID  string    `json:"childId"`
	ActionID string    `json:"actionId"`
	Date     time.Time `json:"date"`
	Value    float64   `json:"value"`
}

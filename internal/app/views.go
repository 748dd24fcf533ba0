package app

import (
	"context"

	"kidpoints/internal/ledger"
	"kidpoints/internal/models"
)

func (a *Application) Kids() []models.Child {
	return a.ledger.Kids()
}

func (a *Application) Child(childID string) (models.Child, bool) {
	return a.ledger.Child(childID)
}

func (a *Application) ChildHistory(childID string) ([]models.HistoryEntry, error) {
	return a.ledger.ChildHistory(childID)
}

// ChildLogs returns the child's logs, newest first
func (a *Application) ChildLogs(childID string) []models.LogEntry {
	return a.ledger.ChildLogs(childID)
}

func (a *Application) Stats(childID string) ledger.Stats {
	return a.ledger.Stats(childID)
}

func (a *Application) Recap(childID string) (ledger.Recap, error) {
	return a.ledger.Recap(childID)
}

func (a *Application) Actions() []models.Action {
	return a.ledger.Actions()
}

// State is the observable session state
func (a *Application) State() models.SessionState {
	return a.session.State()
}

func (a *Application) OnboardingRequired(ctx context.Context) (bool, error) {
	return a.session.OnboardingRequired(ctx)
}

// PendingAction names the action waiting for the PIN
func (a *Application) PendingAction() (string, bool) {
	return a.session.PendingAction()
}

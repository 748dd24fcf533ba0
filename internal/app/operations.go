package app

import (
	"context"
	"strings"

	"kidpoints/internal/ledger"
	"kidpoints/internal/models"
	"kidpoints/internal/service"
	"kidpoints/internal/validation"
)

// Names under which PIN-gated actions are parked
const (
	ActionLogAction      = "log_action"
	ActionLogActionBatch = "log_action_batch"
	ActionDeleteLog      = "delete_log"
	ActionValidateWeek   = "validate_week"
)

// LogResult is the outcome of a scoring action
type LogResult struct {
	Entries  []models.LogEntry `json:"entries"`
	Feedback ledger.Feedback   `json:"feedback"`
}

// WeekResult is the outcome of a week validation
type WeekResult struct {
	Entry    models.HistoryEntry `json:"entry"`
	Feedback ledger.Feedback     `json:"feedback"`
}

func (a *Application) AddChild(name, avatar string) (models.Child, error) {
	name = strings.TrimSpace(name)
	if err := validation.ValidateLabel("name", name); err != nil {
		return models.Child{}, err
	}
	return a.ledger.AddChild(name, avatar), nil
}

func (a *Application) RemoveChild(childID string) error {
	return a.ledger.RemoveChild(childID)
}

// LogAction scores one action. With a PIN set and none supplied through ctx,
// the action is parked and security.ErrPinRequired is returned.
func (a *Application) LogAction(ctx context.Context, childID, actionID string) (LogResult, error) {
	return guarded(ctx, a, ActionLogAction, func() (LogResult, error) {
		entry, feedback, err := a.ledger.LogAction(childID, actionID)
		if err != nil {
			return LogResult{}, err
		}
		return LogResult{Entries: []models.LogEntry{entry}, Feedback: feedback}, nil
	})
}

func (a *Application) LogActionBatch(ctx context.Context, childID string, actionIDs []string) (LogResult, error) {
	return guarded(ctx, a, ActionLogActionBatch, func() (LogResult, error) {
		entries, feedback, err := a.ledger.LogActionBatch(childID, actionIDs)
		if err != nil {
			return LogResult{}, err
		}
		if entries == nil {
			entries = []models.LogEntry{}
		}
		return LogResult{Entries: entries, Feedback: feedback}, nil
	})
}

func (a *Application) DeleteLog(ctx context.Context, logID string) (models.LogEntry, error) {
	return guarded(ctx, a, ActionDeleteLog, func() (models.LogEntry, error) {
		return a.ledger.DeleteLog(logID)
	})
}

func (a *Application) ValidateWeek(ctx context.Context, childID string) (WeekResult, error) {
	return guarded(ctx, a, ActionValidateWeek, func() (WeekResult, error) {
		recap, err := a.ledger.Recap(childID)
		if err != nil {
			return WeekResult{}, err
		}
		entry, feedback, err := a.ledger.ValidateWeek(childID)
		if err != nil {
			return WeekResult{}, err
		}
		a.sendRecaps(ctx, []service.WeeklyRecap{{Recap: recap, Archive: entry}})
		return WeekResult{Entry: entry, Feedback: feedback}, nil
	})
}

// guarded runs fn behind the PIN gate. A parked fn hands its result to
// ConfirmPin instead.
func guarded[T any](ctx context.Context, a *Application, name string, fn func() (T, error)) (T, error) {
	v, err := a.session.Guard(ctx, name, func() (any, error) { return fn() })
	res, _ := v.(T)
	return res, err
}

// SetPin sets the household PIN; nil clears it
func (a *Application) SetPin(pin *string) error {
	return a.session.SetPin(pin)
}

// ConfirmPin runs the parked action and returns its result: a LogResult,
// a WeekResult or the deleted models.LogEntry.
func (a *Application) ConfirmPin(pin string) (any, error) {
	return a.session.ConfirmPin(pin)
}

func (a *Application) CancelPin() {
	a.session.CancelPin()
}

func (a *Application) CreateFamilyCode(ctx context.Context) (string, error) {
	return a.session.CreateFamilyCode(ctx)
}

// JoinFamilyCode reports false when no family uses code
func (a *Application) JoinFamilyCode(ctx context.Context, code string) (bool, error) {
	return a.session.JoinFamilyCode(ctx, code)
}

func (a *Application) Register(ctx context.Context, email, password, name string) (*models.Session, error) {
	return a.session.Register(ctx, email, password, name)
}

func (a *Application) Login(ctx context.Context, email, password string) (*models.Session, error) {
	return a.session.Login(ctx, email, password)
}

func (a *Application) OAuthLogin(ctx context.Context, provider, subject, email, name string) (*models.Session, error) {
	return a.session.OAuthLogin(ctx, provider, subject, email, name)
}

func (a *Application) Logout(ctx context.Context) error {
	return a.session.Logout(ctx)
}

func (a *Application) CompleteOnboarding(ctx context.Context) error {
	return a.session.CompleteOnboarding(ctx)
}

// Resync re-reads the shared record in cloud mode
func (a *Application) Resync(ctx context.Context) {
	a.sync.Resync(ctx)
}

package security

import (
	"context"
	"crypto/subtle"
	"errors"
	"sync"
)

var (
	ErrPinRequired     = errors.New("pin required")
	ErrPinIncorrect    = errors.New("incorrect pin")
	ErrNoPendingAction = errors.New("no action awaiting pin confirmation")
)

type pinContextKey struct{}

// WithPin attaches a PIN supplied alongside a request
func WithPin(ctx context.Context, pin string) context.Context {
	return context.WithValue(ctx, pinContextKey{}, pin)
}

// PinFromContext returns the PIN attached with WithPin
func PinFromContext(ctx context.Context) (string, bool) {
	pin, ok := ctx.Value(pinContextKey{}).(string)
	return pin, ok && pin != ""
}

type pendingAction struct {
	name string
	run  func() (any, error)
}

// PinGate guards sensitive mutations behind the household PIN.
// At most one action waits for confirmation; parking a new one replaces it.
type PinGate struct {
	mu      sync.Mutex
	pin     func() (string, bool)
	pending *pendingAction
}

// NewPinGate creates a gate reading the current PIN from pin
func NewPinGate(pin func() (string, bool)) *PinGate {
	return &PinGate{pin: pin}
}

// Guard runs fn directly when no PIN is set or the context carries the right PIN.
// Otherwise fn is parked under name and ErrPinRequired is returned.
func (g *PinGate) Guard(ctx context.Context, name string, fn func() (any, error)) (any, error) {
	pin, set := g.pin()
	if !set {
		return fn()
	}

	if supplied, ok := PinFromContext(ctx); ok {
		if !pinEqual(pin, supplied) {
			return nil, ErrPinIncorrect
		}
		return fn()
	}

	g.mu.Lock()
	g.pending = &pendingAction{name: name, run: fn}
	g.mu.Unlock()
	return nil, ErrPinRequired
}

// Confirm runs the parked action when entered matches and returns what the
// action returned. A wrong PIN keeps it parked.
func (g *PinGate) Confirm(entered string) (any, error) {
	g.mu.Lock()
	p := g.pending
	if p == nil {
		g.mu.Unlock()
		return nil, ErrNoPendingAction
	}
	if pin, set := g.pin(); set && !pinEqual(pin, entered) {
		g.mu.Unlock()
		return nil, ErrPinIncorrect
	}
	g.pending = nil
	g.mu.Unlock()

	return p.run()
}

// Cancel drops the parked action
func (g *PinGate) Cancel() {
	g.mu.Lock()
	g.pending = nil
	g.mu.Unlock()
}

// Pending returns the name of the parked action
func (g *PinGate) Pending() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.pending == nil {
		return "", false
	}
	return g.pending.name, true
}

func pinEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

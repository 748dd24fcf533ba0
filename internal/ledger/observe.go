package ledger

// Feedback is the score-delta signal handed to presentation consumers
type Feedback string

const (
	FeedbackNone     Feedback = "none"
	FeedbackPositive Feedback = "positive"
	FeedbackNegative Feedback = "negative"
	FeedbackVictory  Feedback = "victory"
)

func feedbackFor(delta float64) Feedback {
	switch {
	case delta > 0:
		return FeedbackPositive
	case delta < 0:
		return FeedbackNegative
	default:
		return FeedbackNone
	}
}

// Scope is a bitmask of the collections a change touched
type Scope uint8

const (
	ScopeKids Scope = 1 << iota
	ScopeLogs
	ScopeActions
)

// Has reports whether s includes other
func (s Scope) Has(other Scope) bool {
	return s&other != 0
}

// Origin tells observers where a change came from
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
	OriginLoad   Origin = "load"
)

// Change describes one applied mutation
type Change struct {
	Scope    Scope
	ChildID  string
	Feedback Feedback
	Origin   Origin
}

// Observer is called synchronously after each mutation, outside the ledger lock
type Observer func(Change)

// Subscribe registers fn and returns a function that removes it
func (l *Ledger) Subscribe(fn Observer) func() {
	l.obsMu.Lock()
	id := l.nextObs
	l.nextObs++
	l.observers[id] = fn
	l.obsMu.Unlock()

	return func() {
		l.obsMu.Lock()
		delete(l.observers, id)
		l.obsMu.Unlock()
	}
}

func (l *Ledger) notify(c Change) {
	if c.Feedback == "" {
		c.Feedback = FeedbackNone
	}
	l.obsMu.RLock()
	observers := make([]Observer, 0, len(l.observers))
	for _, fn := range l.observers {
		observers = append(observers, fn)
	}
	l.obsMu.RUnlock()

	for _, fn := range observers {
		fn(c)
	}
}

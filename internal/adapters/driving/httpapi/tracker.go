package httpapi

import (
	"sync"
	"time"

	"github.com/custodia-labs/mailbox-usage/internal/core/domain"
	"github.com/custodia-labs/mailbox-usage/internal/logger"
)

// requestTracker follows one request through its states.
type requestTracker struct {
	id    string
	start time.Time

	mu      sync.Mutex
	state   domain.RequestState
	history []domain.RequestState
}

func newRequestTracker(id string) *requestTracker {
	return &requestTracker{
		id:      id,
		start:   time.Now(),
		state:   domain.StateUnauthenticated,
		history: []domain.RequestState{domain.StateUnauthenticated},
	}
}

// transition moves to next. Transitions out of a terminal state are ignored.
func (t *requestTracker) transition(next domain.RequestState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state.Terminal() {
		logger.Warn("http: request %s: ignoring %s after %s", t.id, next, t.state)
		return
	}
	logger.Debug("http: request %s: %s -> %s (%s)", t.id, t.state, next, time.Since(t.start).Round(time.Millisecond))
	t.state = next
	t.history = append(t.history, next)
}

// fail moves to Failed and logs the reason.
func (t *requestTracker) fail(status int, reason string) {
	from := t.current()
	logger.Error("http: request %s failed in %s with %d: %s", t.id, from, status, reason)
	t.transition(domain.StateFailed)
}

func (t *requestTracker) current() domain.RequestState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *requestTracker) states() []domain.RequestState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]domain.RequestState(nil), t.history...)
}

package authgw

import (
	"strings"
	"sync"
	"time"
)

// Class is the coarse route categorization used to pick a budget.
type Class int

// Route classes.
const (
	ClassGeneric Class = iota
	ClassLogin
	ClassRegister
	ClassAdmin
)

func (c Class) String() string {
	switch c {
	case ClassLogin:
		return "login"
	case ClassRegister:
		return "register"
	case ClassAdmin:
		return "admin"
	}
	return "generic"
}

// ClassifyPath maps a request path to its route class.
func ClassifyPath(path string) Class {
	switch {
	case strings.Contains(path, "/auth/login"):
		return ClassLogin
	case strings.Contains(path, "/auth/register"):
		return ClassRegister
	case strings.HasPrefix(path, "/api/admin"):
		return ClassAdmin
	}
	return ClassGeneric
}

// Budget is the request allowance for one route class.
type Budget struct {
	Max    int
	Window time.Duration
}

// Budgets maps every route class to its budget.
type Budgets map[Class]Budget

// DefaultBudgets returns the stock budgets: credential endpoints are
// budgeted tightly, admin traffic loosely to absorb back-office bursts.
func DefaultBudgets() Budgets {
	return Budgets{
		ClassLogin:    {Max: 5, Window: 15 * time.Minute},
		ClassRegister: {Max: 3, Window: time.Hour},
		ClassGeneric:  {Max: 300, Window: 15 * time.Minute},
		ClassAdmin:    {Max: 1000, Window: 15 * time.Minute},
	}
}

// CleanupInterval is the period of the expired-window sweep.
const CleanupInterval = 5 * time.Minute

type windowKey struct {
	class  Class
	client string
}

type window struct {
	count   int
	resetAt time.Time
}

// Limiter enforces fixed-window request budgets per (class, client id)
// and administrative hard blocks per client id. All state is process
// local; the maps are mutex-guarded since requests from the same
// client may race on a counter.
type Limiter struct {
	budgets Budgets

	mu      sync.Mutex
	windows map[windowKey]*window
	blocked map[string]time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewLimiter creates a limiter and starts its cleanup loop.
func NewLimiter(budgets Budgets) *Limiter {
	l := &Limiter{
		budgets: budgets,
		windows: make(map[windowKey]*window),
		blocked: make(map[string]time.Time),
		stopCh:  make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Stop terminates the cleanup loop.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

// Allow registers a request and reports whether it fits the budget.
// On rejection it returns the time until the window resets or the
// block expires.
func (l *Limiter) Allow(client string, class Class, now time.Time) (bool, time.Duration) {
	budget, ok := l.budgets[class]
	if !ok {
		budget = l.budgets[ClassGeneric]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if until, ok := l.blocked[client]; ok {
		if now.Before(until) {
			return false, until.Sub(now)
		}
		delete(l.blocked, client)
	}
	key := windowKey{class: class, client: client}
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(budget.Window)}
		l.windows[key] = w
	}
	if w.count >= budget.Max {
		return false, w.resetAt.Sub(now)
	}
	w.count++
	return true, 0
}

// Block force-rejects a client id for the given duration,
// independent of its counters.
func (l *Limiter) Block(client string, d time.Duration, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blocked[client] = now.Add(d)
}

// Len returns the number of tracked windows. For tests and metrics.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanup(time.Now())
		case <-l.stopCh:
			return
		}
	}
}

// cleanup drops windows past their reset time and expired blocks.
func (l *Limiter) cleanup(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
	for client, until := range l.blocked {
		if !now.Before(until) {
			delete(l.blocked, client)
		}
	}
}

// Package segment provides segment ID generation and work unit lifecycle management.
package segment

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a work unit.
type State int

const (
	// StatePending - Unit is created, not yet handed to an engine.
	StatePending State = iota
	// StateDispatched - Engine call in progress.
	StateDispatched
	// StateResolved - Exactly one outcome has been recorded.
	StateResolved
	// StateAbandoned - Pipeline was cancelled before the unit produced an outcome.
	// This is a terminal state.
	StateAbandoned
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateDispatched:
		return "DISPATCHED"
	case StateResolved:
		return "RESOLVED"
	case StateAbandoned:
		return "ABANDONED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is terminal (RESOLVED or ABANDONED).
func (s State) IsTerminal() bool {
	return s == StateResolved || s == StateAbandoned
}

// Errors for invalid state transitions.
var (
	ErrUnitClosed         = errors.New("unit is closed")
	ErrAlreadyDispatched  = errors.New("unit already dispatched")
	ErrAlreadyResolved    = errors.New("outcome already recorded for this unit")
	ErrResolveBeforeStart = errors.New("cannot resolve a unit that was not dispatched")
)

// Lifecycle manages the state machine for a single work unit.
// Thread-safe for concurrent access.
//
// State transitions:
//
//	PENDING → DISPATCHED → RESOLVED
//	   │           │
//	   └───────────┴── Abandon() ──→ ABANDONED
//
// Rules:
//   - PENDING: can be dispatched once, or abandoned
//   - DISPATCHED: can be resolved once, or abandoned
//   - RESOLVED / ABANDONED: all transitions return errors
type Lifecycle struct {
	mu    sync.RWMutex
	index int
	state State
}

// NewLifecycle creates a new unit lifecycle in PENDING state.
func NewLifecycle(index int) *Lifecycle {
	return &Lifecycle{
		index: index,
		state: StatePending,
	}
}

// Index returns the unit index.
func (l *Lifecycle) Index() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.index
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsClosed returns true if the unit is in a terminal state.
func (l *Lifecycle) IsClosed() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.IsTerminal()
}

// Dispatch transitions PENDING to DISPATCHED.
func (l *Lifecycle) Dispatch() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StatePending:
		l.state = StateDispatched
		return nil
	case StateDispatched:
		return ErrAlreadyDispatched
	case StateResolved, StateAbandoned:
		return ErrUnitClosed
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// Resolve transitions DISPATCHED to RESOLVED. It succeeds at most once.
func (l *Lifecycle) Resolve() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateDispatched:
		l.state = StateResolved
		return nil
	case StatePending:
		return ErrResolveBeforeStart
	case StateResolved:
		return ErrAlreadyResolved
	case StateAbandoned:
		return ErrUnitClosed
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// Abandon marks a non-terminal unit as ABANDONED.
// Returns true if the unit was abandoned, false if already in a terminal state.
func (l *Lifecycle) Abandon() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = StateAbandoned
	return true
}

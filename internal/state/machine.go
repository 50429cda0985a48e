// Package state implements the robot-level finite state machine. It is a
// pure, synchronous component: no I/O and no blocking beyond a short mutex
// hold, so it is safe to consult from the control loop, the safety poller
// and the telemetry reporter concurrently.
package state

import (
	"log/slog"
	"sync"
	"time"
)

// RobotState is one of the robot's operational states. Exactly one state is
// current at any time.
type RobotState string

const (
	Idle        RobotState = "idle"
	Moving      RobotState = "moving"
	Positioning RobotState = "positioning"
	Painting    RobotState = "painting"
	Completed   RobotState = "completed"
	Error       RobotState = "error"
)

// String returns the string representation of the state.
func (s RobotState) String() string {
	return string(s)
}

// IsValid checks if the RobotState is a valid value.
func (s RobotState) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// transitions is the fixed table of allowed predecessor -> successor pairs.
// Error can only recover to Idle; that restriction holds even for forced
// transitions (operator/software must explicitly clear the fault).
var transitions = map[RobotState][]RobotState{
	Idle:        {Moving, Error},
	Moving:      {Positioning, Idle, Error},
	Positioning: {Painting, Moving, Error},
	Painting:    {Completed, Error},
	Completed:   {Idle, Error},
	Error:       {Idle},
}

// ChangeFunc is invoked with (old, new) on every accepted transition.
type ChangeFunc func(old, new RobotState)

// Machine validates and tracks state transitions.
type Machine struct {
	mu        sync.Mutex
	current   RobotState
	previous  RobotState
	enteredAt time.Time
	callbacks []ChangeFunc
	logger    *slog.Logger
}

// NewMachine creates a state machine starting in Idle.
func NewMachine(logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		current:   Idle,
		enteredAt: time.Now(),
		logger:    logger.With("component", "state"),
	}
}

// Current returns the current state.
func (m *Machine) Current() RobotState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Previous returns the state before the last accepted transition, or ""
// when no transition has happened yet.
func (m *Machine) Previous() RobotState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.previous
}

// TimeInState returns how long the machine has been in the current state.
func (m *Machine) TimeInState() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Since(m.enteredAt)
}

// Subscribe registers a callback fired with (old, new) on every accepted
// transition. Callbacks run synchronously on the transitioning goroutine,
// outside the machine's lock.
func (m *Machine) Subscribe(fn ChangeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, fn)
}

// CanTransition reports whether the table allows moving to target from the
// current state.
func (m *Machine) CanTransition(target RobotState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return allowed(m.current, target)
}

// Request transitions to target if the table allows it. Requesting the
// current state is a no-op success and fires no callback. A disallowed
// transition is rejected without mutating state.
func (m *Machine) Request(target RobotState) bool {
	return m.set(target, false)
}

// Force transitions to target bypassing the table. It is reserved for
// emergency stop and explicit reset-to-idle; the Error state still accepts
// nothing but Idle.
func (m *Machine) Force(target RobotState) bool {
	return m.set(target, true)
}

// ResetToIdle forces the machine back to Idle, clearing an Error fault.
func (m *Machine) ResetToIdle() bool {
	m.logger.Info("forcing reset to idle")
	return m.Force(Idle)
}

// EmergencyStop forces the machine into Error.
func (m *Machine) EmergencyStop() bool {
	m.logger.Warn("emergency stop, transitioning to error state")
	return m.Force(Error)
}

// Busy reports whether the robot is in a mission-carrying state (neither
// Idle nor Error).
func (m *Machine) Busy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current != Idle && m.current != Error
}

func (m *Machine) set(target RobotState, force bool) bool {
	m.mu.Lock()

	if m.current == target {
		m.mu.Unlock()
		m.logger.Debug("already in state", "state", target)
		return true
	}

	// Error only ever clears to Idle, forced or not.
	if m.current == Error && target != Idle {
		m.mu.Unlock()
		m.logger.Error("invalid transition out of error state", "target", target)
		return false
	}

	if !force && !allowed(m.current, target) {
		m.mu.Unlock()
		m.logger.Error("invalid transition", "from", m.current, "to", target)
		return false
	}

	old := m.current
	m.previous = old
	m.current = target
	m.enteredAt = time.Now()
	callbacks := make([]ChangeFunc, len(m.callbacks))
	copy(callbacks, m.callbacks)
	m.mu.Unlock()

	m.logger.Info("state transition", "from", old, "to", target, "forced", force)

	for _, fn := range callbacks {
		fn(old, target)
	}

	return true
}

func allowed(from, to RobotState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

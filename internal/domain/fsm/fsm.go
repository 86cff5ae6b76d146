// Package fsm provides a small builder-configured state machine. Guards
// return errors rather than booleans so that a refused transition carries
// the specific business violation back to the caller.
package fsm

import (
	"context"
	"errors"
	"fmt"
)

// State is a lifecycle state of a document.
type State string

// Trigger is an action that may cause a state transition.
type Trigger string

// ErrInvalidTransition is returned when a trigger is not configured for the
// current state.
var ErrInvalidTransition = errors.New("invalid state transition")

// ErrSkip tells the machine a guarded transition does not apply and the
// next transition for the same trigger should be tried. It is never
// surfaced to callers.
var ErrSkip = errors.New("transition does not apply")

// GuardFunc evaluates whether a transition may be taken. Returning nil takes
// the transition; returning ErrSkip tries the next configured transition;
// any other error refuses the trigger with that error.
type GuardFunc func(ctx context.Context) error

type transition struct {
	toState State
	guard   GuardFunc
}

// Machine tracks the current state and validates transitions.
type Machine struct {
	currentState State
	transitions  map[State]map[Trigger][]transition
}

// Builder accumulates state configuration before building machines.
type Builder struct {
	transitions map[State]map[Trigger][]transition
}

// StateConfig configures the transitions leaving a single state.
type StateConfig struct {
	builder *Builder
	state   State
}

// NewBuilder creates an empty state machine builder.
func NewBuilder() *Builder {
	return &Builder{transitions: make(map[State]map[Trigger][]transition)}
}

// Configure returns the configuration for the given state, creating it on
// first use.
func (b *Builder) Configure(state State) *StateConfig {
	if _, ok := b.transitions[state]; !ok {
		b.transitions[state] = make(map[Trigger][]transition)
	}
	return &StateConfig{builder: b, state: state}
}

// Permit allows a trigger to transition to the target state unconditionally.
func (c *StateConfig) Permit(trigger Trigger, toState State) *StateConfig {
	return c.PermitIf(trigger, toState, nil)
}

// PermitIf allows a trigger to transition to the target state when the guard
// passes. Transitions for the same trigger are tried in configuration order.
func (c *StateConfig) PermitIf(trigger Trigger, toState State, guard GuardFunc) *StateConfig {
	byTrigger := c.builder.transitions[c.state]
	byTrigger[trigger] = append(byTrigger[trigger], transition{toState: toState, guard: guard})
	return c
}

// Build creates a machine positioned at the initial state. The configuration
// is copied so machines built from the same builder stay independent.
func (b *Builder) Build(initialState State) *Machine {
	copied := make(map[State]map[Trigger][]transition, len(b.transitions))
	for state, byTrigger := range b.transitions {
		tc := make(map[Trigger][]transition, len(byTrigger))
		for trigger, ts := range byTrigger {
			tc[trigger] = append([]transition{}, ts...)
		}
		copied[state] = tc
	}
	return &Machine{currentState: initialState, transitions: copied}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.currentState
}

// CanFire reports whether any transition is configured for the trigger in
// the current state. Guards are not evaluated here.
func (m *Machine) CanFire(trigger Trigger) bool {
	byTrigger, ok := m.transitions[m.currentState]
	if !ok {
		return false
	}
	return len(byTrigger[trigger]) > 0
}

// Peek evaluates the trigger without committing the transition, returning
// the state the machine would move to. The guard-table lookup for an action
// request goes through Peek so that nothing mutates before the transaction.
func (m *Machine) Peek(ctx context.Context, trigger Trigger) (State, error) {
	return m.resolve(ctx, trigger)
}

// Fire executes the trigger, transitioning to the resolved state.
func (m *Machine) Fire(ctx context.Context, trigger Trigger) error {
	next, err := m.resolve(ctx, trigger)
	if err != nil {
		return err
	}
	m.currentState = next
	return nil
}

// PermittedTriggers returns the triggers configured for the current state.
func (m *Machine) PermittedTriggers() []Trigger {
	byTrigger, ok := m.transitions[m.currentState]
	if !ok {
		return nil
	}
	triggers := make([]Trigger, 0, len(byTrigger))
	for trigger := range byTrigger {
		triggers = append(triggers, trigger)
	}
	return triggers
}

func (m *Machine) resolve(ctx context.Context, trigger Trigger) (State, error) {
	byTrigger, ok := m.transitions[m.currentState]
	if !ok {
		return "", fmt.Errorf("%w: trigger %s from state %s", ErrInvalidTransition, trigger, m.currentState)
	}
	ts := byTrigger[trigger]
	if len(ts) == 0 {
		return "", fmt.Errorf("%w: trigger %s from state %s", ErrInvalidTransition, trigger, m.currentState)
	}

	for _, t := range ts {
		if t.guard == nil {
			return t.toState, nil
		}
		err := t.guard(ctx)
		if err == nil {
			return t.toState, nil
		}
		if errors.Is(err, ErrSkip) {
			continue
		}
		return "", err
	}

	// Every transition skipped itself; treat as not configured.
	return "", fmt.Errorf("%w: trigger %s from state %s", ErrInvalidTransition, trigger, m.currentState)
}

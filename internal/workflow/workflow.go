// Package workflow provides the status transition tables used by the
// procurement documents. Each document declares its table once and every
// status mutation goes through Apply, so illegal transitions are rejected in
// one place instead of per endpoint.
package workflow

import (
	"errors"
	"fmt"
	"strings"
)

// State is a document status value.
type State string

// Action names a user or system operation that can change a status.
type Action string

var (
	// ErrTransition occurs when an action is not allowed from the current state.
	ErrTransition = errors.New("workflow: transition not allowed")
	// ErrReasonRequired occurs when a transition demands a non-empty reason.
	ErrReasonRequired = errors.New("workflow: reason required")
	// ErrUnknownState occurs when the current state is not part of the table.
	ErrUnknownState = errors.New("workflow: unknown state")
)

// Rule describes a single allowed transition.
type Rule struct {
	Next          State
	RequireReason bool
}

// Definition is the full transition table of one document type.
type Definition struct {
	Name        string
	Initial     State
	Terminal    map[State]bool
	Transitions map[State]map[Action]Rule
}

// Apply validates and performs a transition, returning the next state.
func (d Definition) Apply(current State, action Action, reason string) (State, error) {
	rules, ok := d.Transitions[current]
	if !ok {
		if d.Terminal[current] {
			return "", fmt.Errorf("%w: %s is terminal in %s", ErrTransition, current, d.Name)
		}
		return "", fmt.Errorf("%w: %s in %s", ErrUnknownState, current, d.Name)
	}
	rule, ok := rules[action]
	if !ok {
		return "", fmt.Errorf("%w: cannot %s a %s %s", ErrTransition, action, current, d.Name)
	}
	if rule.RequireReason && strings.TrimSpace(reason) == "" {
		return "", fmt.Errorf("%w: %s on %s", ErrReasonRequired, action, d.Name)
	}
	return rule.Next, nil
}

// Can reports whether the action is allowed from the current state.
func (d Definition) Can(current State, action Action) bool {
	rules, ok := d.Transitions[current]
	if !ok {
		return false
	}
	_, ok = rules[action]
	return ok
}

// IsTerminal reports whether the state permits no further transitions.
func (d Definition) IsTerminal(s State) bool {
	return d.Terminal[s]
}

// Actions lists the actions available from the current state. Used by list
// endpoints so clients can render only the buttons that will succeed.
func (d Definition) Actions(current State) []Action {
	rules, ok := d.Transitions[current]
	if !ok {
		return nil
	}
	actions := make([]Action, 0, len(rules))
	for action := range rules {
		actions = append(actions, action)
	}
	return actions
}

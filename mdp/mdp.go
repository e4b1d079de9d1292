// Package mdp holds the shared machinery for solving finite, tabular Markov
// decision processes: the contracts a game must satisfy (state space,
// transition model, simulation environment), the value and action-value
// stores, the Policy artifact every solver produces, and the Bellman
// expansion and greedy extraction the solvers share.
//
// States and actions are any comparable types. Two states with the same
// content must compare equal, since they are used directly as map keys.
package mdp

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrMissingEntry is returned for a lookup or write on a state or
	// state-action pair that was not populated before training. It always
	// points at a setup defect.
	ErrMissingEntry = errors.New("missing entry")
	// ErrIllegalAction is returned by an Environment when the submitted
	// action is not legal in its current state.
	ErrIllegalAction = errors.New("illegal action")
	// ErrDiscountRange is returned when a discount would let policy
	// evaluation run forever.
	ErrDiscountRange = errors.New("discount out of range")
	// ErrBadParameter is returned when solver parameters fail validation.
	ErrBadParameter = errors.New("bad parameter")
	// ErrBadOutcomes is returned for a transition whose outcomes are not a
	// probability distribution.
	ErrBadOutcomes = errors.New("outcome probabilities do not sum to 1")
)

// ProbabilityTolerance is how far an outcome set may sum away from 1.
const ProbabilityTolerance = 1e-9

// Outcome is one possible result of taking an action in a state.
type Outcome[S comparable] struct {
	Prob   float64
	Reward float64
	Next   S
}

// Sample is a single observed transition (s, a, r, s').
type Sample[S, A comparable] struct {
	State  S
	Action A
	Reward float64
	Next   S
}

// StateSpace enumerates every state the solvers work over.
type StateSpace[S, A comparable] interface {
	// States returns every state, terminal ones included, in a stable order.
	States() []S
	Terminal(s S) bool
	// Actions returns the legal actions in s in a stable order. It is
	// empty iff s is terminal.
	Actions(s S) []A
}

// Model is a state space together with its transition function.
type Model[S, A comparable] interface {
	StateSpace[S, A]
	// Transitions returns the possible outcomes of taking a in s. The
	// probabilities sum to 1.
	Transitions(s S, a A) ([]Outcome[S], error)
}

// Environment is a simulator the agent acts in. It plays any opponent moves
// itself, so Step returns the state the agent next has to act in.
type Environment[S, A comparable] interface {
	Reset()
	CurrentState() S
	Terminal() bool
	Step(a A) (Sample[S, A], error)
}

// Solver computes a policy.
type Solver[S, A comparable] interface {
	Solve(ctx context.Context) (*Policy[S, A], error)
}

// ValidateDiscount rejects discounts outside [0, 1).
func ValidateDiscount(discount float64) error {
	if math.IsNaN(discount) || discount < 0 || discount >= 1 {
		return fmt.Errorf("%w: %v not in [0, 1)", ErrDiscountRange, discount)
	}
	return nil
}

// CheckOutcomes verifies that the outcome probabilities form a distribution.
func CheckOutcomes[S comparable](outcomes []Outcome[S]) error {
	sum := 0.0
	for _, o := range outcomes {
		if o.Prob < 0 {
			return fmt.Errorf("%w: negative probability %v", ErrBadOutcomes, o.Prob)
		}
		sum += o.Prob
	}
	if math.Abs(sum-1) > ProbabilityTolerance {
		return fmt.Errorf("%w: sum is %v", ErrBadOutcomes, sum)
	}
	return nil
}

// CheckModel runs CheckOutcomes over every legal (state, action) pair.
func CheckModel[S, A comparable](m Model[S, A]) error {
	for _, s := range m.States() {
		if m.Terminal(s) {
			continue
		}
		for _, a := range m.Actions(s) {
			outs, err := m.Transitions(s, a)
			if err != nil {
				return err
			}
			if err := CheckOutcomes(outs); err != nil {
				return fmt.Errorf("state %v action %v: %w", s, a, err)
			}
		}
	}
	return nil
}

package mdp

import (
	"fmt"
	"math"
)

// TieBreak decides which of several equally valued actions an argmax
// returns.
type TieBreak int

const (
	// FirstMax keeps the first action seen with the best value; a later
	// action replaces it only if strictly greater. Policy improvement and
	// value-iteration extraction use it.
	FirstMax TieBreak = iota
	// LastMax lets a later action with an equal value replace the running
	// best. Q-learning uses it for both action selection and extraction.
	LastMax
)

func (t TieBreak) String() string {
	switch t {
	case FirstMax:
		return "first"
	case LastMax:
		return "last"
	}
	return fmt.Sprintf("TieBreak(%d)", int(t))
}

func (t TieBreak) better(v, best float64) bool {
	if t == LastMax {
		return v >= best
	}
	return v > best
}

// Argmax scans the actions in order and returns the best one and its value.
func Argmax[A comparable](actions []A, value func(A) (float64, error), tb TieBreak) (A, float64, error) {
	var best A
	if len(actions) == 0 {
		return best, 0, fmt.Errorf("%w: no actions to choose from", ErrMissingEntry)
	}
	bestVal := math.Inf(-1)
	found := false
	for _, a := range actions {
		v, err := value(a)
		if err != nil {
			return best, 0, err
		}
		if !found || tb.better(v, bestVal) {
			best, bestVal, found = a, v, true
		}
	}
	return best, bestVal, nil
}

// ActionValue expands Q(s, a) = Σ p·(r + γ·V(s')) over the outcomes of a in s.
func ActionValue[S, A comparable](m Model[S, A], v *ValueFunction[S], s S, a A, discount float64) (float64, error) {
	outs, err := m.Transitions(s, a)
	if err != nil {
		return 0, err
	}
	q := 0.0
	for _, o := range outs {
		next, err := v.Value(o.Next)
		if err != nil {
			return 0, err
		}
		q += o.Prob * (o.Reward + discount*next)
	}
	return q, nil
}

// Greedy performs a one-step lookahead from s and returns the best action
// and its action-value.
func Greedy[S, A comparable](m Model[S, A], v *ValueFunction[S], s S, discount float64, tb TieBreak) (A, float64, error) {
	return Argmax(m.Actions(s), func(a A) (float64, error) {
		return ActionValue(m, v, s, a, discount)
	}, tb)
}

// ExtractPolicy runs one greedy pass over every non-terminal state that has
// legal actions.
func ExtractPolicy[S, A comparable](m Model[S, A], v *ValueFunction[S], discount float64, tb TieBreak) (*Policy[S, A], error) {
	pol := make(map[S]A)
	for _, s := range v.States() {
		if m.Terminal(s) || len(m.Actions(s)) == 0 {
			continue
		}
		a, _, err := Greedy(m, v, s, discount, tb)
		if err != nil {
			return nil, err
		}
		pol[s] = a
	}
	return NewPolicy(pol), nil
}

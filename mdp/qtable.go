package mdp

import "fmt"

type stateAction[S, A comparable] struct {
	s S
	a A
}

// QTable maps every (state, action) pair with a non-terminal state and a
// legal action to an action-value estimate. All pairs exist from
// construction on.
type QTable[S, A comparable] struct {
	values  map[stateAction[S, A]]float64
	actions map[S][]A
	order   []S
}

// NewQTable returns a zeroed table over the space.
func NewQTable[S, A comparable](space StateSpace[S, A]) *QTable[S, A] {
	q := &QTable[S, A]{
		values:  make(map[stateAction[S, A]]float64),
		actions: make(map[S][]A),
	}
	for _, s := range space.States() {
		if space.Terminal(s) {
			continue
		}
		if _, ok := q.actions[s]; ok {
			continue
		}
		acts := space.Actions(s)
		if len(acts) == 0 {
			continue
		}
		q.actions[s] = acts
		q.order = append(q.order, s)
		for _, a := range acts {
			q.values[stateAction[S, A]{s, a}] = 0
		}
	}
	return q
}

// Value returns Q(s, a).
func (q *QTable[S, A]) Value(s S, a A) (float64, error) {
	v, ok := q.values[stateAction[S, A]{s, a}]
	if !ok {
		return 0, fmt.Errorf("%w: no q-value for state %v action %v", ErrMissingEntry, s, a)
	}
	return v, nil
}

// Set assigns Q(s, a).
func (q *QTable[S, A]) Set(s S, a A, v float64) error {
	k := stateAction[S, A]{s, a}
	if _, ok := q.values[k]; !ok {
		return fmt.Errorf("%w: no q-value for state %v action %v", ErrMissingEntry, s, a)
	}
	q.values[k] = v
	return nil
}

// Actions returns the actions tabulated for s, in legal-action order.
func (q *QTable[S, A]) Actions(s S) ([]A, error) {
	acts, ok := q.actions[s]
	if !ok {
		return nil, fmt.Errorf("%w: no q-values for state %v", ErrMissingEntry, s)
	}
	return acts, nil
}

// States returns the tabulated states in construction order.
func (q *QTable[S, A]) States() []S {
	return q.order
}

// Len returns the number of (state, action) entries.
func (q *QTable[S, A]) Len() int {
	return len(q.values)
}

// Greedy returns the best action in s and its value under the tie-break
// rule.
func (q *QTable[S, A]) Greedy(s S, tb TieBreak) (A, float64, error) {
	acts, err := q.Actions(s)
	if err != nil {
		var zero A
		return zero, 0, err
	}
	return Argmax(acts, func(a A) (float64, error) { return q.Value(s, a) }, tb)
}

// MaxValue returns max_a Q(s, a).
func (q *QTable[S, A]) MaxValue(s S) (float64, error) {
	_, v, err := q.Greedy(s, FirstMax)
	return v, err
}

// ExtractPolicy returns the greedy policy over every tabulated state.
func (q *QTable[S, A]) ExtractPolicy(tb TieBreak) (*Policy[S, A], error) {
	m := make(map[S]A, len(q.order))
	for _, s := range q.order {
		a, _, err := q.Greedy(s, tb)
		if err != nil {
			return nil, err
		}
		m[s] = a
	}
	return NewPolicy(m), nil
}

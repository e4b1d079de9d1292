package mdp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// ValueFunction maps every state of a state space to an estimate of its
// expected discounted return. Its domain is fixed at construction; Set on a
// state outside the domain fails instead of growing the map.
type ValueFunction[S comparable] struct {
	index  map[S]int
	order  []S
	values []float64
}

// NewValueFunction returns a zeroed value function over every state of the
// space.
func NewValueFunction[S, A comparable](space StateSpace[S, A]) *ValueFunction[S] {
	states := space.States()
	v := &ValueFunction[S]{
		index:  make(map[S]int, len(states)),
		order:  make([]S, 0, len(states)),
		values: make([]float64, 0, len(states)),
	}
	for _, s := range states {
		if _, ok := v.index[s]; ok {
			continue
		}
		v.index[s] = len(v.order)
		v.order = append(v.order, s)
		v.values = append(v.values, 0)
	}
	return v
}

// Value returns V(s).
func (v *ValueFunction[S]) Value(s S) (float64, error) {
	i, ok := v.index[s]
	if !ok {
		return 0, fmt.Errorf("%w: no value for state %v", ErrMissingEntry, s)
	}
	return v.values[i], nil
}

// Set assigns V(s).
func (v *ValueFunction[S]) Set(s S, val float64) error {
	i, ok := v.index[s]
	if !ok {
		return fmt.Errorf("%w: no value for state %v", ErrMissingEntry, s)
	}
	v.values[i] = val
	return nil
}

// States returns the domain in construction order. The slice is shared and
// must not be modified.
func (v *ValueFunction[S]) States() []S {
	return v.order
}

func (v *ValueFunction[S]) Len() int {
	return len(v.order)
}

// Blank returns a zeroed value function with the same domain. Sweeps write
// into a blank copy so every read sees the previous sweep.
func (v *ValueFunction[S]) Blank() *ValueFunction[S] {
	return &ValueFunction[S]{
		index:  v.index,
		order:  v.order,
		values: make([]float64, len(v.values)),
	}
}

// Copy returns an independent copy.
func (v *ValueFunction[S]) Copy() *ValueFunction[S] {
	c := v.Blank()
	copy(c.values, v.values)
	return c
}

// Vector returns the values in domain order.
func (v *ValueFunction[S]) Vector() []float64 {
	out := make([]float64, len(v.values))
	copy(out, v.values)
	return out
}

// MaxNorm returns the largest absolute difference between two value
// functions over the same domain.
func MaxNorm[S comparable](a, b *ValueFunction[S]) (float64, error) {
	if len(a.values) != len(b.values) {
		return 0, fmt.Errorf("%w: value functions have %d and %d states",
			ErrBadParameter, len(a.values), len(b.values))
	}
	if len(a.values) == 0 {
		return 0, nil
	}
	return floats.Distance(a.values, b.values, math.Inf(1)), nil
}

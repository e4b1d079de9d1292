package mdp

import "maps"

// Policy is an immutable mapping from state to the action to take there.
type Policy[S, A comparable] struct {
	actions map[S]A
}

// NewPolicy copies m into a new Policy.
func NewPolicy[S, A comparable](m map[S]A) *Policy[S, A] {
	return &Policy[S, A]{actions: maps.Clone(m)}
}

// Action returns the action for s, and false if s is outside the domain.
func (p *Policy[S, A]) Action(s S) (A, bool) {
	a, ok := p.actions[s]
	return a, ok
}

func (p *Policy[S, A]) Len() int {
	return len(p.actions)
}

// Map returns a copy of the underlying mapping.
func (p *Policy[S, A]) Map() map[S]A {
	return maps.Clone(p.actions)
}

// Diff counts the states whose action differs between p and o, including
// states present in only one of them.
func (p *Policy[S, A]) Diff(o *Policy[S, A]) int {
	n := 0
	for s, a := range p.actions {
		if b, ok := o.actions[s]; !ok || a != b {
			n++
		}
	}
	for s := range o.actions {
		if _, ok := p.actions[s]; !ok {
			n++
		}
	}
	return n
}

// Package agent has the players that pick moves: one that follows a
// computed policy, and one that plays uniformly at random.
package agent

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/domino14/noughts/mdp"
)

var ErrNoMove = errors.New("no move available")

// Player picks an action in a state.
type Player[S, A comparable] interface {
	Move(s S) (A, error)
}

// ActionSource lists the legal actions in a state.
type ActionSource[S, A comparable] interface {
	Actions(s S) []A
}

// PolicyAgent plays the action a policy prescribes. For states outside the
// policy it asks its fallback, if it has one.
type PolicyAgent[S, A comparable] struct {
	name     string
	policy   *mdp.Policy[S, A]
	fallback Player[S, A]
}

func NewPolicyAgent[S, A comparable](name string, p *mdp.Policy[S, A]) *PolicyAgent[S, A] {
	return &PolicyAgent[S, A]{name: name, policy: p}
}

// WithFallback sets the player consulted for states the policy does not
// cover.
func (p *PolicyAgent[S, A]) WithFallback(f Player[S, A]) *PolicyAgent[S, A] {
	p.fallback = f
	return p
}

func (p *PolicyAgent[S, A]) Move(s S) (A, error) {
	if a, ok := p.policy.Action(s); ok {
		return a, nil
	}
	if p.fallback != nil {
		return p.fallback.Move(s)
	}
	var zero A
	return zero, fmt.Errorf("%w: %s has no policy entry for %v", ErrNoMove, p.name, s)
}

func (p *PolicyAgent[S, A]) Policy() *mdp.Policy[S, A] {
	return p.policy
}

func (p *PolicyAgent[S, A]) String() string {
	return p.name
}

// RandomAgent picks uniformly among the legal actions.
type RandomAgent[S, A comparable] struct {
	source ActionSource[S, A]
	rand   *rand.Rand
}

func NewRandomAgent[S, A comparable](src ActionSource[S, A], r *rand.Rand) *RandomAgent[S, A] {
	return &RandomAgent[S, A]{source: src, rand: r}
}

func (r *RandomAgent[S, A]) Move(s S) (A, error) {
	acts := r.source.Actions(s)
	if len(acts) == 0 {
		var zero A
		return zero, fmt.Errorf("%w: no legal actions in %v", ErrNoMove, s)
	}
	return acts[r.rand.IntN(len(acts))], nil
}

func (r *RandomAgent[S, A]) String() string {
	return "random"
}

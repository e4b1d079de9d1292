// Package mdptest builds small, hand-written MDPs for solver tests.
package mdptest

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/domino14/noughts/mdp"
)

type key struct {
	s, a string
}

// Model is a table-driven mdp.Model over string states and actions.
type Model struct {
	order    []string
	terminal map[string]bool
	actions  map[string][]string
	trans    map[key][]mdp.Outcome[string]
}

var _ mdp.Model[string, string] = (*Model)(nil)

func New() *Model {
	return &Model{
		terminal: make(map[string]bool),
		actions:  make(map[string][]string),
		trans:    make(map[key][]mdp.Outcome[string]),
	}
}

// Out is shorthand for an outcome.
func Out(prob, reward float64, next string) mdp.Outcome[string] {
	return mdp.Outcome[string]{Prob: prob, Reward: reward, Next: next}
}

func (m *Model) addState(s string) {
	if !slices.Contains(m.order, s) {
		m.order = append(m.order, s)
	}
}

// Terminals registers terminal states.
func (m *Model) Terminals(states ...string) *Model {
	for _, s := range states {
		m.addState(s)
		m.terminal[s] = true
	}
	return m
}

// Add registers action a in state s with the given outcomes. Actions keep
// the order they were added in.
func (m *Model) Add(s, a string, outs ...mdp.Outcome[string]) *Model {
	m.addState(s)
	for _, o := range outs {
		m.addState(o.Next)
	}
	if !slices.Contains(m.actions[s], a) {
		m.actions[s] = append(m.actions[s], a)
	}
	m.trans[key{s, a}] = outs
	return m
}

func (m *Model) States() []string {
	return m.order
}

func (m *Model) Terminal(s string) bool {
	return m.terminal[s]
}

func (m *Model) Actions(s string) []string {
	if m.terminal[s] {
		return nil
	}
	return m.actions[s]
}

func (m *Model) Transitions(s, a string) ([]mdp.Outcome[string], error) {
	outs, ok := m.trans[key{s, a}]
	if !ok {
		return nil, fmt.Errorf("%w: %q in state %q", mdp.ErrIllegalAction, a, s)
	}
	return outs, nil
}

// Env samples a Model's transitions, starting every episode in Start.
type Env struct {
	Model *Model
	Start string
	Rand  *rand.Rand

	cur string
}

var _ mdp.Environment[string, string] = (*Env)(nil)

func NewEnv(m *Model, start string, r *rand.Rand) *Env {
	return &Env{Model: m, Start: start, Rand: r, cur: start}
}

func (e *Env) Reset() {
	e.cur = e.Start
}

func (e *Env) CurrentState() string {
	return e.cur
}

func (e *Env) Terminal() bool {
	return e.Model.Terminal(e.cur)
}

func (e *Env) Step(a string) (mdp.Sample[string, string], error) {
	outs, err := e.Model.Transitions(e.cur, a)
	if err != nil {
		return mdp.Sample[string, string]{}, err
	}
	x := e.Rand.Float64()
	chosen := outs[len(outs)-1]
	acc := 0.0
	for _, o := range outs {
		acc += o.Prob
		if x < acc {
			chosen = o
			break
		}
	}
	smp := mdp.Sample[string, string]{State: e.cur, Action: a, Reward: chosen.Reward, Next: chosen.Next}
	e.cur = chosen.Next
	return smp, nil
}

// Chain returns a deterministic corridor s0 -> s1 -> ... -> goal where each
// state offers "stay" (reward 0, back to s0) and "go" (reward 0, forward);
// stepping into the goal pays 1.
func Chain(n int) *Model {
	m := New()
	for i := 0; i < n; i++ {
		s := fmt.Sprintf("s%d", i)
		next := fmt.Sprintf("s%d", i+1)
		reward := 0.0
		if i == n-1 {
			next = "goal"
			reward = 1
		}
		m.Add(s, "stay", Out(1, 0, "s0"))
		m.Add(s, "go", Out(1, reward, next))
	}
	return m.Terminals("goal")
}

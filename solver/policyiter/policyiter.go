// Package policyiter solves an MDP by policy iteration: evaluate the current
// policy to convergence, improve it greedily, and repeat until no state
// changes its action.
package policyiter

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/domino14/noughts/mdp"
)

// Phase is where the solver is in its evaluate/improve cycle.
type Phase int

const (
	Evaluating Phase = iota
	Improving
	Converged
)

func (p Phase) String() string {
	switch p {
	case Evaluating:
		return "evaluating"
	case Improving:
		return "improving"
	case Converged:
		return "converged"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

const (
	DefaultDiscount = 0.9
	DefaultDelta    = 0.1
)

type Params struct {
	Discount float64
	// Delta is the policy evaluation threshold: evaluation stops once no
	// state's value moves by more than Delta in a sweep.
	Delta float64
	// Rand picks the initial policy.
	Rand *rand.Rand
}

func (p Params) Validate() error {
	if err := mdp.ValidateDiscount(p.Discount); err != nil {
		return err
	}
	if !(p.Delta > 0) {
		return fmt.Errorf("%w: delta must be positive, got %v", mdp.ErrBadParameter, p.Delta)
	}
	if p.Rand == nil {
		return fmt.Errorf("%w: no random generator", mdp.ErrBadParameter)
	}
	return nil
}

// EvaluateSweep performs one synchronous Bellman-expectation sweep of the
// policy and returns the new value function along with the largest change.
func EvaluateSweep[S, A comparable](m mdp.Model[S, A], policy *mdp.Policy[S, A],
	values *mdp.ValueFunction[S], discount float64) (*mdp.ValueFunction[S], float64, error) {

	next := values.Blank()
	maxChange := 0.0
	for _, s := range values.States() {
		if m.Terminal(s) {
			// Blank already holds 0 here.
			continue
		}
		a, ok := policy.Action(s)
		if !ok {
			if len(m.Actions(s)) == 0 {
				continue
			}
			return nil, 0, fmt.Errorf("%w: policy has no action for state %v", mdp.ErrMissingEntry, s)
		}
		v, err := mdp.ActionValue(m, values, s, a, discount)
		if err != nil {
			return nil, 0, err
		}
		old, err := values.Value(s)
		if err != nil {
			return nil, 0, err
		}
		if err := next.Set(s, v); err != nil {
			return nil, 0, err
		}
		maxChange = math.Max(maxChange, math.Abs(v-old))
	}
	return next, maxChange, nil
}

// Evaluate sweeps until the largest change in a sweep is at most delta. It
// returns the converged values and the number of sweeps it took.
func Evaluate[S, A comparable](m mdp.Model[S, A], policy *mdp.Policy[S, A],
	values *mdp.ValueFunction[S], discount, delta float64) (*mdp.ValueFunction[S], int, error) {

	if err := mdp.ValidateDiscount(discount); err != nil {
		return nil, 0, err
	}
	if !(delta > 0) {
		return nil, 0, fmt.Errorf("%w: delta must be positive, got %v", mdp.ErrBadParameter, delta)
	}
	sweeps := 0
	for {
		next, change, err := EvaluateSweep(m, policy, values, discount)
		if err != nil {
			return nil, sweeps, err
		}
		sweeps++
		values = next
		if change <= delta {
			return values, sweeps, nil
		}
	}
}

// Improve derives the greedy policy from values with a one-step lookahead.
// Among equally valued actions the first one wins. changed reports whether
// any state's action differs from current.
func Improve[S, A comparable](m mdp.Model[S, A], values *mdp.ValueFunction[S],
	current *mdp.Policy[S, A], discount float64) (*mdp.Policy[S, A], bool, error) {

	improved, err := mdp.ExtractPolicy(m, values, discount, mdp.FirstMax)
	if err != nil {
		return nil, false, err
	}
	return improved, improved.Diff(current) > 0, nil
}

// Solver runs policy iteration over a model.
type Solver[S, A comparable] struct {
	model  mdp.Model[S, A]
	params Params

	values *mdp.ValueFunction[S]
	policy *mdp.Policy[S, A]
	phase  Phase

	iterations  int
	totalSweeps int
}

var _ mdp.Solver[int, int] = (*Solver[int, int])(nil)

// New validates params, zeroes the value function and draws a random
// initial policy.
func New[S, A comparable](m mdp.Model[S, A], params Params) (*Solver[S, A], error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	s := &Solver[S, A]{
		model:  m,
		params: params,
		values: mdp.NewValueFunction[S, A](m),
		phase:  Evaluating,
	}
	s.policy = s.randomPolicy()
	return s, nil
}

func (s *Solver[S, A]) randomPolicy() *mdp.Policy[S, A] {
	pol := make(map[S]A)
	for _, st := range s.values.States() {
		if s.model.Terminal(st) {
			continue
		}
		acts := s.model.Actions(st)
		if len(acts) == 0 {
			continue
		}
		pol[st] = acts[s.params.Rand.IntN(len(acts))]
	}
	return mdp.NewPolicy(pol)
}

// Step advances the solver by one phase.
func (s *Solver[S, A]) Step() error {
	switch s.phase {
	case Evaluating:
		values, sweeps, err := Evaluate(s.model, s.policy, s.values, s.params.Discount, s.params.Delta)
		if err != nil {
			return err
		}
		s.values = values
		s.totalSweeps += sweeps
		log.Debug().Int("iteration", s.iterations).Int("sweeps", sweeps).Msg("policy-evaluated")
		s.phase = Improving
	case Improving:
		improved, changed, err := Improve(s.model, s.values, s.policy, s.params.Discount)
		if err != nil {
			return err
		}
		log.Debug().Int("iteration", s.iterations).Int("changed-states", improved.Diff(s.policy)).
			Msg("policy-improved")
		s.policy = improved
		s.iterations++
		if changed {
			s.phase = Evaluating
		} else {
			s.phase = Converged
		}
	}
	return nil
}

// Solve alternates evaluation and improvement until the policy is stable.
func (s *Solver[S, A]) Solve(ctx context.Context) (*mdp.Policy[S, A], error) {
	ts := time.Now()
	for s.phase != Converged {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.Step(); err != nil {
			return nil, err
		}
	}
	log.Info().Int("iterations", s.iterations).Int("sweeps", s.totalSweeps).
		Int("states", s.policy.Len()).Dur("elapsed", time.Since(ts)).
		Msg("policy-iteration-converged")
	return s.policy, nil
}

func (s *Solver[S, A]) Phase() Phase {
	return s.phase
}

// Iterations returns the number of completed improvement steps.
func (s *Solver[S, A]) Iterations() int {
	return s.iterations
}

func (s *Solver[S, A]) Sweeps() int {
	return s.totalSweeps
}

// Values returns the value function of the latest evaluated policy.
func (s *Solver[S, A]) Values() *mdp.ValueFunction[S] {
	return s.values
}

// Policy returns the current policy, stable or not.
func (s *Solver[S, A]) Policy() *mdp.Policy[S, A] {
	return s.policy
}

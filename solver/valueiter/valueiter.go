// Package valueiter solves an MDP by a fixed number of Bellman-optimality
// sweeps followed by one greedy extraction pass.
package valueiter

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/domino14/noughts/mdp"
)

const (
	DefaultDiscount = 0.9
	DefaultSweeps   = 50
)

type Params struct {
	Discount float64
	// Sweeps is how many sweeps to run. There is no convergence check; the
	// residual is only logged.
	Sweeps int
	// TieBreak applies to the final extraction. The zero value is
	// mdp.FirstMax.
	TieBreak mdp.TieBreak
}

func (p Params) Validate() error {
	if math.IsNaN(p.Discount) || p.Discount < 0 || p.Discount > 1 {
		return fmt.Errorf("%w: %v not in [0, 1]", mdp.ErrDiscountRange, p.Discount)
	}
	if p.Sweeps <= 0 {
		return fmt.Errorf("%w: sweeps must be positive, got %d", mdp.ErrBadParameter, p.Sweeps)
	}
	return nil
}

type Solver[S, A comparable] struct {
	model  mdp.Model[S, A]
	params Params
	values *mdp.ValueFunction[S]
	sweeps int
	// residual of the most recent sweep
	residual float64
}

var _ mdp.Solver[int, int] = (*Solver[int, int])(nil)

func New[S, A comparable](m mdp.Model[S, A], params Params) (*Solver[S, A], error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Solver[S, A]{
		model:  m,
		params: params,
		values: mdp.NewValueFunction[S, A](m),
	}, nil
}

// Sweep runs one synchronous sweep of V(s) = max_a Σ p·(r + γ·V(s')) over
// every non-terminal state.
func (s *Solver[S, A]) Sweep() error {
	next := s.values.Blank()
	for _, st := range s.values.States() {
		if s.model.Terminal(st) || len(s.model.Actions(st)) == 0 {
			continue
		}
		_, v, err := mdp.Greedy(s.model, s.values, st, s.params.Discount, mdp.FirstMax)
		if err != nil {
			return err
		}
		if err := next.Set(st, v); err != nil {
			return err
		}
	}
	res, err := mdp.MaxNorm(s.values, next)
	if err != nil {
		return err
	}
	s.values = next
	s.residual = res
	s.sweeps++
	log.Debug().Int("sweep", s.sweeps).Float64("residual", res).Msg("value-iteration-sweep")
	return nil
}

// Solve runs the configured number of sweeps and extracts the greedy policy.
func (s *Solver[S, A]) Solve(ctx context.Context) (*mdp.Policy[S, A], error) {
	ts := time.Now()
	for s.sweeps < s.params.Sweeps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.Sweep(); err != nil {
			return nil, err
		}
	}
	pol, err := mdp.ExtractPolicy(s.model, s.values, s.params.Discount, s.params.TieBreak)
	if err != nil {
		return nil, err
	}
	log.Info().Int("sweeps", s.sweeps).Float64("residual", s.residual).
		Int("states", pol.Len()).Dur("elapsed", time.Since(ts)).
		Msg("value-iteration-done")
	return pol, nil
}

func (s *Solver[S, A]) Values() *mdp.ValueFunction[S] {
	return s.values
}

func (s *Solver[S, A]) Sweeps() int {
	return s.sweeps
}

// Residual is the largest value change in the last sweep.
func (s *Solver[S, A]) Residual() float64 {
	return s.residual
}

// Package qlearning learns a policy from simulated play with tabular
// Q-learning and an ε-greedy behavior policy.
package qlearning

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/domino14/noughts/mdp"
	"github.com/domino14/noughts/stats"
)

const (
	DefaultLearningRate = 0.1
	DefaultDiscount     = 0.9
	DefaultEpsilon      = 0.1
	DefaultEpisodes     = 40000
)

// SelectHook is called for every action the behavior policy picks. explored
// is true when the action was drawn at random.
type SelectHook[S, A comparable] func(s S, a A, explored bool)

type Params[S, A comparable] struct {
	LearningRate float64
	Discount     float64
	Epsilon      float64
	Episodes     int
	Rand         *rand.Rand
	// TieBreak is used both to select greedy actions during training and to
	// extract the final policy. New defaults it to mdp.LastMax.
	TieBreak *mdp.TieBreak
	// LogEvery logs a progress line every LogEvery episodes. Zero disables
	// it.
	LogEvery int
	OnSelect SelectHook[S, A]
}

func (p Params[S, A]) Validate() error {
	if !(p.LearningRate > 0 && p.LearningRate <= 1) {
		return fmt.Errorf("%w: learning rate %v not in (0, 1]", mdp.ErrBadParameter, p.LearningRate)
	}
	if math.IsNaN(p.Discount) || p.Discount < 0 || p.Discount > 1 {
		return fmt.Errorf("%w: %v not in [0, 1]", mdp.ErrDiscountRange, p.Discount)
	}
	if !(p.Epsilon >= 0 && p.Epsilon <= 1) {
		return fmt.Errorf("%w: epsilon %v not in [0, 1]", mdp.ErrBadParameter, p.Epsilon)
	}
	if p.Episodes < 0 {
		return fmt.Errorf("%w: negative episode count %d", mdp.ErrBadParameter, p.Episodes)
	}
	if p.Rand == nil {
		return fmt.Errorf("%w: no random generator", mdp.ErrBadParameter)
	}
	return nil
}

type Solver[S, A comparable] struct {
	env      mdp.Environment[S, A]
	params   Params[S, A]
	tieBreak mdp.TieBreak
	table    *mdp.QTable[S, A]

	episodes int
	aborted  int
	steps    int
	returns  *stats.Statistic
}

var _ mdp.Solver[int, int] = (*Solver[int, int])(nil)

// New builds a solver whose table is populated, zeroed, over every
// non-terminal state of space.
func New[S, A comparable](space mdp.StateSpace[S, A], env mdp.Environment[S, A], params Params[S, A]) (*Solver[S, A], error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if env == nil {
		return nil, fmt.Errorf("%w: no environment", mdp.ErrBadParameter)
	}
	tb := mdp.LastMax
	if params.TieBreak != nil {
		tb = *params.TieBreak
	}
	return &Solver[S, A]{
		env:      env,
		params:   params,
		tieBreak: tb,
		table:    mdp.NewQTable(space),
		returns:  &stats.Statistic{},
	}, nil
}

// selectAction is the ε-greedy behavior policy.
func (s *Solver[S, A]) selectAction(st S) (A, error) {
	acts, err := s.table.Actions(st)
	if err != nil {
		var zero A
		return zero, err
	}
	if s.params.Rand.Float64() < s.params.Epsilon {
		a := acts[s.params.Rand.IntN(len(acts))]
		if s.params.OnSelect != nil {
			s.params.OnSelect(st, a, true)
		}
		return a, nil
	}
	a, _, err := s.table.Greedy(st, s.tieBreak)
	if err != nil {
		return a, err
	}
	if s.params.OnSelect != nil {
		s.params.OnSelect(st, a, false)
	}
	return a, nil
}

// update applies Q(s,a) ← (1-α)·Q(s,a) + α·target.
func (s *Solver[S, A]) update(smp mdp.Sample[S, A], terminal bool) error {
	target := smp.Reward
	if !terminal {
		best, err := s.table.MaxValue(smp.Next)
		if err != nil {
			return err
		}
		target += s.params.Discount * best
	}
	old, err := s.table.Value(smp.State, smp.Action)
	if err != nil {
		return err
	}
	alpha := s.params.LearningRate
	return s.table.Set(smp.State, smp.Action, (1-alpha)*old+alpha*target)
}

// Episode plays one episode from a fresh environment. It returns the
// undiscounted return and whether the episode ran to a terminal state.
func (s *Solver[S, A]) Episode() (float64, bool, error) {
	s.env.Reset()
	ret := 0.0
	for !s.env.Terminal() {
		st := s.env.CurrentState()
		a, err := s.selectAction(st)
		if err != nil {
			return ret, false, err
		}
		smp, err := s.env.Step(a)
		if errors.Is(err, mdp.ErrIllegalAction) {
			log.Warn().Err(err).Int("episode", s.episodes).Msg("episode-aborted")
			return ret, false, nil
		} else if err != nil {
			return ret, false, err
		}
		if err := s.update(smp, s.env.Terminal()); err != nil {
			return ret, false, err
		}
		ret += smp.Reward
		s.steps++
	}
	return ret, true, nil
}

// Solve runs the configured number of episodes and extracts the greedy
// policy from the table.
func (s *Solver[S, A]) Solve(ctx context.Context) (*mdp.Policy[S, A], error) {
	ts := time.Now()
	for s.episodes < s.params.Episodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ret, finished, err := s.Episode()
		if err != nil {
			return nil, err
		}
		s.episodes++
		if finished {
			s.returns.Push(ret)
		} else {
			s.aborted++
		}
		if s.params.LogEvery > 0 && s.episodes%s.params.LogEvery == 0 {
			log.Info().Int("episode", s.episodes).Float64("mean-return", s.returns.Mean()).
				Int("aborted", s.aborted).Msg("q-learning-progress")
		}
	}
	pol, err := s.table.ExtractPolicy(s.tieBreak)
	if err != nil {
		return nil, err
	}
	log.Info().Int("episodes", s.episodes).Int("steps", s.steps).Int("aborted", s.aborted).
		Float64("mean-return", s.returns.Mean()).Int("states", pol.Len()).
		Dur("elapsed", time.Since(ts)).Msg("q-learning-done")
	return pol, nil
}

func (s *Solver[S, A]) Table() *mdp.QTable[S, A] {
	return s.table
}

// Aborted counts episodes cut short by an illegal action.
func (s *Solver[S, A]) Aborted() int {
	return s.aborted
}

func (s *Solver[S, A]) Episodes() int {
	return s.episodes
}

// Returns holds the returns of the finished episodes.
func (s *Solver[S, A]) Returns() *stats.Statistic {
	return s.returns
}

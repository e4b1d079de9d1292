package qlearning

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/domino14/noughts/mdp"
	"github.com/domino14/noughts/mdp/mdptest"
	"github.com/domino14/noughts/rng"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	os.Exit(m.Run())
}

func tieModel() *mdptest.Model {
	return mdptest.New().
		Add("s", "left", mdptest.Out(1, 1, "end")).
		Add("s", "right", mdptest.Out(1, 1, "end")).
		Terminals("end")
}

func params(episodes int, alpha, epsilon float64, seed uint64) Params[string, string] {
	return Params[string, string]{
		LearningRate: alpha,
		Discount:     0.9,
		Epsilon:      epsilon,
		Episodes:     episodes,
		Rand:         rng.New(seed),
	}
}

func TestLearnsChain(t *testing.T) {
	is := is.New(t)
	m := mdptest.Chain(3)
	p := params(3000, 0.5, 0.2, 11)
	s, err := New[string, string](m, mdptest.NewEnv(m, "s0", p.Rand), p)
	is.NoErr(err)

	pol, err := s.Solve(context.Background())
	is.NoErr(err)
	is.Equal(s.Episodes(), 3000)
	is.Equal(s.Aborted(), 0)
	is.Equal(s.Returns().Iterations(), 3000)
	is.Equal(s.Returns().Mean(), 1.0)
	for _, st := range []string{"s0", "s1", "s2"} {
		a, ok := pol.Action(st)
		is.True(ok)
		is.Equal(a, "go")
	}
	q, err := s.Table().Value("s2", "go")
	is.NoErr(err)
	is.True(q > 0.99)
}

func TestZeroEpsilonNeverExplores(t *testing.T) {
	is := is.New(t)
	m := mdptest.Chain(4)
	p := params(200, 0.3, 0, 4)

	var s *Solver[string, string]
	selections := 0
	p.OnSelect = func(st, a string, explored bool) {
		selections++
		is.True(!explored)
		best, _, err := s.Table().Greedy(st, mdp.LastMax)
		is.NoErr(err)
		is.Equal(a, best)
	}
	s, err := New[string, string](m, mdptest.NewEnv(m, "s0", p.Rand), p)
	is.NoErr(err)
	_, err = s.Solve(context.Background())
	is.NoErr(err)
	is.True(selections >= 200*4)
}

func TestExtractionKeepsLastTie(t *testing.T) {
	is := is.New(t)
	m := tieModel()
	p := params(100, 1, 1, 8)
	s, err := New[string, string](m, mdptest.NewEnv(m, "s", p.Rand), p)
	is.NoErr(err)
	pol, err := s.Solve(context.Background())
	is.NoErr(err)

	l, _ := s.Table().Value("s", "left")
	r, _ := s.Table().Value("s", "right")
	is.Equal(l, 1.0)
	is.Equal(r, 1.0)
	a, _ := pol.Action("s")
	is.Equal(a, "right")
}

func TestNoEpisodes(t *testing.T) {
	is := is.New(t)
	m := tieModel()
	p := params(0, 0.1, 0.1, 8)
	s, err := New[string, string](m, mdptest.NewEnv(m, "s", p.Rand), p)
	is.NoErr(err)
	pol, err := s.Solve(context.Background())
	is.NoErr(err)
	is.Equal(pol.Len(), 1)
	a, _ := pol.Action("s")
	is.Equal(a, "right")

	first := mdp.FirstMax
	p.TieBreak = &first
	s, err = New[string, string](m, mdptest.NewEnv(m, "s", p.Rand), p)
	is.NoErr(err)
	pol, err = s.Solve(context.Background())
	is.NoErr(err)
	a, _ = pol.Action("s")
	is.Equal(a, "left")
}

func TestIllegalActionAbortsEpisode(t *testing.T) {
	is := is.New(t)
	// The table knows about "b", but the environment does not accept it.
	table := mdptest.New().
		Add("s", "a", mdptest.Out(1, 1, "end")).
		Add("s", "b", mdptest.Out(1, 5, "end")).
		Terminals("end")
	world := mdptest.New().
		Add("s", "a", mdptest.Out(1, 1, "end")).
		Terminals("end")

	p := params(100, 1, 1, 21)
	s, err := New[string, string](table, mdptest.NewEnv(world, "s", p.Rand), p)
	is.NoErr(err)
	_, err = s.Solve(context.Background())
	is.NoErr(err)

	is.True(s.Aborted() > 0)
	is.Equal(s.Aborted()+s.Returns().Iterations(), 100)
	b, err := s.Table().Value("s", "b")
	is.NoErr(err)
	is.Equal(b, 0.0)
	a, err := s.Table().Value("s", "a")
	is.NoErr(err)
	is.Equal(a, 1.0)
}

func TestParamsValidate(t *testing.T) {
	is := is.New(t)
	m := tieModel()
	env := mdptest.NewEnv(m, "s", rng.New(1))

	for _, p := range []Params[string, string]{
		params(10, 0, 0.1, 1),
		params(10, 1.5, 0.1, 1),
		params(10, 0.1, -0.1, 1),
		params(10, 0.1, 1.1, 1),
		params(-1, 0.1, 0.1, 1),
		{LearningRate: 0.1, Discount: 0.9, Epsilon: 0.1, Episodes: 1},
	} {
		_, err := New[string, string](m, env, p)
		is.True(errors.Is(err, mdp.ErrBadParameter))
	}
	p := params(10, 0.1, 0.1, 1)
	p.Discount = 1.01
	_, err := New[string, string](m, env, p)
	is.True(errors.Is(err, mdp.ErrDiscountRange))
}

func TestSolveCancelled(t *testing.T) {
	is := is.New(t)
	m := tieModel()
	p := params(10, 0.1, 0.1, 1)
	s, err := New[string, string](m, mdptest.NewEnv(m, "s", p.Rand), p)
	is.NoErr(err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Solve(ctx)
	is.True(errors.Is(err, context.Canceled))
	is.Equal(s.Episodes(), 0)
}

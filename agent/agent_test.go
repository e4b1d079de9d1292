package agent

import (
	"errors"
	"testing"

	"github.com/matryer/is"

	"github.com/domino14/noughts/mdp"
	"github.com/domino14/noughts/mdp/mdptest"
	"github.com/domino14/noughts/rng"
)

func TestPolicyAgent(t *testing.T) {
	is := is.New(t)
	p := NewPolicyAgent("pi", mdp.NewPolicy(map[string]string{"s0": "go"}))
	a, err := p.Move("s0")
	is.NoErr(err)
	is.Equal(a, "go")

	_, err = p.Move("s1")
	is.True(errors.Is(err, ErrNoMove))
	is.Equal(p.String(), "pi")
}

func TestPolicyAgentFallback(t *testing.T) {
	is := is.New(t)
	m := mdptest.Chain(2)
	r := NewRandomAgent[string, string](m, rng.New(3))
	p := NewPolicyAgent("pi", mdp.NewPolicy(map[string]string{"s0": "go"})).WithFallback(r)

	a, err := p.Move("s1")
	is.NoErr(err)
	is.True(a == "go" || a == "stay")
}

func TestRandomAgent(t *testing.T) {
	is := is.New(t)
	m := mdptest.Chain(2)
	r := NewRandomAgent[string, string](m, rng.New(3))
	seen := map[string]int{}
	for i := 0; i < 200; i++ {
		a, err := r.Move("s0")
		is.NoErr(err)
		seen[a]++
	}
	is.Equal(len(seen), 2)

	_, err := r.Move("goal")
	is.True(errors.Is(err, ErrNoMove))
}

package mdp_test

import (
	"errors"
	"math"
	"testing"

	"github.com/matryer/is"

	"github.com/domino14/noughts/mdp"
	"github.com/domino14/noughts/mdp/mdptest"
)

func tieModel() *mdptest.Model {
	return mdptest.New().
		Add("s", "left", mdptest.Out(1, 1, "end")).
		Add("s", "right", mdptest.Out(1, 1, "end")).
		Terminals("end")
}

func TestValueFunctionDomain(t *testing.T) {
	is := is.New(t)
	m := mdptest.Chain(3)
	v := mdp.NewValueFunction[string, string](m)
	is.Equal(v.Len(), 4) // s0 s1 s2 goal
	for _, s := range v.States() {
		val, err := v.Value(s)
		is.NoErr(err)
		is.Equal(val, 0.0)
	}
	_, err := v.Value("nowhere")
	is.True(errors.Is(err, mdp.ErrMissingEntry))
	err = v.Set("nowhere", 1)
	is.True(errors.Is(err, mdp.ErrMissingEntry))
	is.Equal(v.Len(), 4)
}

func TestValueFunctionBlankAndCopy(t *testing.T) {
	is := is.New(t)
	v := mdp.NewValueFunction[string, string](mdptest.Chain(2))
	is.NoErr(v.Set("s1", 0.5))

	b := v.Blank()
	val, _ := b.Value("s1")
	is.Equal(val, 0.0)

	c := v.Copy()
	is.NoErr(c.Set("s1", 0.75))
	val, _ = v.Value("s1")
	is.Equal(val, 0.5)

	d, err := mdp.MaxNorm(v, c)
	is.NoErr(err)
	is.Equal(d, 0.25)
}

func TestQTable(t *testing.T) {
	is := is.New(t)
	m := mdptest.Chain(2)
	q := mdp.NewQTable[string, string](m)
	is.Equal(q.Len(), 4)
	is.Equal(q.States(), []string{"s0", "s1"})

	acts, err := q.Actions("s1")
	is.NoErr(err)
	is.Equal(acts, []string{"stay", "go"})

	_, err = q.Actions("goal")
	is.True(errors.Is(err, mdp.ErrMissingEntry))
	_, err = q.Value("goal", "go")
	is.True(errors.Is(err, mdp.ErrMissingEntry))
	err = q.Set("s0", "jump", 1)
	is.True(errors.Is(err, mdp.ErrMissingEntry))

	is.NoErr(q.Set("s1", "go", 0.9))
	v, err := q.MaxValue("s1")
	is.NoErr(err)
	is.Equal(v, 0.9)
}

func TestArgmaxTieBreak(t *testing.T) {
	is := is.New(t)
	vals := map[string]float64{"a": 1, "b": 3, "c": 3, "d": 2}
	f := func(a string) (float64, error) { return vals[a], nil }
	acts := []string{"a", "b", "c", "d"}

	a, v, err := mdp.Argmax(acts, f, mdp.FirstMax)
	is.NoErr(err)
	is.Equal(a, "b")
	is.Equal(v, 3.0)

	a, v, err = mdp.Argmax(acts, f, mdp.LastMax)
	is.NoErr(err)
	is.Equal(a, "c")
	is.Equal(v, 3.0)

	_, _, err = mdp.Argmax(nil, f, mdp.FirstMax)
	is.True(errors.Is(err, mdp.ErrMissingEntry))
}

func TestArgmaxAllNegativeInfinity(t *testing.T) {
	is := is.New(t)
	f := func(string) (float64, error) { return math.Inf(-1), nil }
	a, _, err := mdp.Argmax([]string{"x", "y"}, f, mdp.FirstMax)
	is.NoErr(err)
	is.Equal(a, "x")
}

func TestActionValue(t *testing.T) {
	is := is.New(t)
	m := mdptest.New().
		Add("s", "a", mdptest.Out(0.25, 1, "t1"), mdptest.Out(0.75, -1, "t2")).
		Add("t2", "a", mdptest.Out(1, 0, "end")).
		Terminals("t1", "end")
	v := mdp.NewValueFunction[string, string](m)
	is.NoErr(v.Set("t2", 2))
	q, err := mdp.ActionValue[string, string](m, v, "s", "a", 0.5)
	is.NoErr(err)
	// 0.25*(1+0) + 0.75*(-1 + 0.5*2)
	is.Equal(q, 0.25)
}

func TestExtractPolicyTieBreak(t *testing.T) {
	is := is.New(t)
	m := tieModel()
	v := mdp.NewValueFunction[string, string](m)

	p, err := mdp.ExtractPolicy[string, string](m, v, 0.9, mdp.FirstMax)
	is.NoErr(err)
	a, ok := p.Action("s")
	is.True(ok)
	is.Equal(a, "left")
	_, ok = p.Action("end")
	is.True(!ok) // terminal states never appear

	p, err = mdp.ExtractPolicy[string, string](m, v, 0.9, mdp.LastMax)
	is.NoErr(err)
	a, _ = p.Action("s")
	is.Equal(a, "right")
}

func TestPolicyImmutable(t *testing.T) {
	is := is.New(t)
	src := map[string]string{"s": "left"}
	p := mdp.NewPolicy(src)
	src["s"] = "right"
	a, _ := p.Action("s")
	is.Equal(a, "left")

	m := p.Map()
	m["s"] = "right"
	a, _ = p.Action("s")
	is.Equal(a, "left")

	o := mdp.NewPolicy(map[string]string{"s": "right", "u": "up"})
	is.Equal(p.Diff(o), 2)
	is.Equal(p.Diff(p), 0)
}

func TestCheckModel(t *testing.T) {
	is := is.New(t)
	is.NoErr(mdp.CheckModel[string, string](tieModel()))

	bad := mdptest.New().
		Add("s", "a", mdptest.Out(0.5, 0, "end"), mdptest.Out(0.4, 0, "end")).
		Terminals("end")
	err := mdp.CheckModel[string, string](bad)
	is.True(errors.Is(err, mdp.ErrBadOutcomes))
}

func TestValidateDiscount(t *testing.T) {
	is := is.New(t)
	is.NoErr(mdp.ValidateDiscount(0))
	is.NoErr(mdp.ValidateDiscount(0.99))
	for _, d := range []float64{1, 1.5, -0.1, math.NaN()} {
		is.True(errors.Is(mdp.ValidateDiscount(d), mdp.ErrDiscountRange))
	}
}

package board

import (
	"errors"
	"testing"

	"github.com/matryer/is"
	"github.com/stretchr/testify/assert"
)

func mustParse(t *testing.T, str string) State {
	s, err := Parse(str)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestPlay(t *testing.T) {
	is := is.New(t)
	s := New(X)
	is.Equal(s.ToMove(), X)
	is.Equal(len(s.LegalMoves()), 9)

	s, err := s.Play(4)
	is.NoErr(err)
	is.Equal(s.Cell(4), X)
	is.Equal(s.ToMove(), O)
	is.Equal(s.String(), "....X.... O")

	_, err = s.Play(4)
	is.True(errors.Is(err, ErrIllegalMove))
	_, err = s.Play(9)
	is.True(errors.Is(err, ErrIllegalMove))
	is.Equal(len(s.LegalMoves()), 8)
}

func TestWinner(t *testing.T) {
	cases := []struct {
		pos    string
		winner Marker
		term   bool
		draw   bool
	}{
		{"XXXOO.... O", X, true, false},
		{"XO.XO.X.. O", X, true, false},
		{"OXXXO.X.O X", O, true, false},
		{"XOXXOOOXX X", None, true, true},
		{"XO....... X", None, false, false},
		{"..X.X.XOO O", X, true, false},
	}
	for _, tc := range cases {
		s := mustParse(t, tc.pos)
		assert.Equal(t, tc.winner, s.Winner(), tc.pos)
		assert.Equal(t, tc.term, s.Terminal(), tc.pos)
		assert.Equal(t, tc.draw, s.Draw(), tc.pos)
	}
}

func TestTerminalHasNoMoves(t *testing.T) {
	is := is.New(t)
	s := mustParse(t, "XXXOO.... O")
	is.Equal(len(s.LegalMoves()), 0)
	_, err := s.Play(5)
	is.True(errors.Is(err, ErrIllegalMove))
}

func TestParseRoundTrip(t *testing.T) {
	is := is.New(t)
	for _, s := range Enumerate(X)[:200] {
		p, err := Parse(s.String())
		is.NoErr(err)
		is.Equal(p, s)
	}
	_, err := Parse("XX. X")
	is.True(err != nil)
	_, err = Parse("XXQ...... O")
	is.True(err != nil)
	_, err = Parse("......... Z")
	is.True(err != nil)
}

func TestParseMove(t *testing.T) {
	is := is.New(t)
	for str, want := range map[string]Move{"a1": 0, "c1": 2, "B2": 4, "a3": 6, "c3": 8, "7": 7} {
		m, err := ParseMove(str)
		is.NoErr(err)
		is.Equal(m, want)
	}
	is.Equal(Move(5).String(), "c2")
	for _, bad := range []string{"d1", "a4", "", "a", "9", "bb2"} {
		_, err := ParseMove(bad)
		is.True(errors.Is(err, ErrIllegalMove))
	}
}

func TestEnumerate(t *testing.T) {
	is := is.New(t)
	xs := Enumerate(X)
	os := Enumerate(O)
	is.Equal(len(xs), 3381)
	is.Equal(len(os), 3055)

	terminal := 0
	for i, s := range xs {
		if i > 0 {
			is.True(xs[i-1] < s)
		}
		if s.Terminal() {
			terminal++
		} else {
			is.Equal(s.ToMove(), X)
		}
	}
	is.Equal(terminal, 958)
	is.Equal(xs[0], New(X))
}

func TestMarker(t *testing.T) {
	is := is.New(t)
	is.Equal(X.Opponent(), O)
	is.Equal(O.Opponent(), X)
	m, err := ParseMarker(" o")
	is.NoErr(err)
	is.Equal(m, O)
	_, err = ParseMarker("z")
	is.True(err != nil)
}

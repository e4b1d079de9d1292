// Package board is a packed tic-tac-toe position.
package board

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

const (
	Dim      = 3
	NumCells = Dim * Dim
)

var ErrIllegalMove = errors.New("illegal move")

// A Marker is what occupies a cell, or whose turn it is.
type Marker uint8

const (
	None Marker = iota
	X
	O
)

func (m Marker) Opponent() Marker {
	switch m {
	case X:
		return O
	case O:
		return X
	}
	return None
}

func (m Marker) String() string {
	switch m {
	case X:
		return "X"
	case O:
		return "O"
	}
	return "."
}

// ParseMarker accepts "x", "X", "o" or "O".
func ParseMarker(s string) (Marker, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "X":
		return X, nil
	case "O":
		return O, nil
	}
	return None, fmt.Errorf("unknown marker %q", s)
}

// A Move is a cell index, 0 through 8, row-major from the top left.
type Move uint8

// String gives the move as a column letter and a row number, like b2.
func (m Move) String() string {
	return fmt.Sprintf("%c%d", 'a'+int(m)%Dim, int(m)/Dim+1)
}

// ParseMove accepts a coordinate like "b2" (column, then row) or a bare
// cell index.
func ParseMove(s string) (Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) == 1 && s[0] >= '0' && s[0] < '0'+NumCells {
		return Move(s[0] - '0'), nil
	}
	if len(s) != 2 {
		return 0, fmt.Errorf("%w: cannot parse %q", ErrIllegalMove, s)
	}
	col := int(s[0]) - 'a'
	row := int(s[1]) - '1'
	if col < 0 || col >= Dim || row < 0 || row >= Dim {
		return 0, fmt.Errorf("%w: %q is off the board", ErrIllegalMove, s)
	}
	return Move(row*Dim + col), nil
}

// State packs a position into 20 bits: two bits per cell, then two bits for
// the marker to move. Equal positions have equal values, so a State can be
// used directly as a map key.
type State uint32

const toMoveShift = 2 * NumCells

var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// New returns an empty board with first to move.
func New(first Marker) State {
	return State(uint32(first) << toMoveShift)
}

func (s State) Cell(i int) Marker {
	return Marker((s >> (2 * i)) & 3)
}

func (s State) ToMove() Marker {
	return Marker((s >> toMoveShift) & 3)
}

func (s State) withCell(i int, m Marker) State {
	s &^= 3 << (2 * i)
	return s | State(m)<<(2*i)
}

func (s State) withToMove(m Marker) State {
	s &^= 3 << toMoveShift
	return s | State(m)<<toMoveShift
}

// Play puts the marker to move on cell m and passes the turn.
func (s State) Play(m Move) (State, error) {
	if int(m) >= NumCells {
		return s, fmt.Errorf("%w: no cell %d", ErrIllegalMove, m)
	}
	if s.Terminal() {
		return s, fmt.Errorf("%w: game is over", ErrIllegalMove)
	}
	if s.Cell(int(m)) != None {
		return s, fmt.Errorf("%w: %v is taken", ErrIllegalMove, m)
	}
	who := s.ToMove()
	return s.withCell(int(m), who).withToMove(who.Opponent()), nil
}

// Winner returns the marker with three in a row, or None.
func (s State) Winner() Marker {
	for _, l := range lines {
		m := s.Cell(l[0])
		if m != None && m == s.Cell(l[1]) && m == s.Cell(l[2]) {
			return m
		}
	}
	return None
}

func (s State) Full() bool {
	for i := 0; i < NumCells; i++ {
		if s.Cell(i) == None {
			return false
		}
	}
	return true
}

func (s State) Terminal() bool {
	return s.Winner() != None || s.Full()
}

// Draw is true for a full board with no winner.
func (s State) Draw() bool {
	return s.Winner() == None && s.Full()
}

// LegalMoves returns the empty cells in ascending order, or nothing if the
// game is over.
func (s State) LegalMoves() []Move {
	if s.Terminal() {
		return nil
	}
	cells := lo.Filter(lo.Range(NumCells), func(i int, _ int) bool {
		return s.Cell(i) == None
	})
	return lo.Map(cells, func(i int, _ int) Move { return Move(i) })
}

// String is the nine cells row-major, a space, and the marker to move:
// "X.O.X.... O".
func (s State) String() string {
	var sb strings.Builder
	for i := 0; i < NumCells; i++ {
		sb.WriteString(s.Cell(i).String())
	}
	sb.WriteByte(' ')
	sb.WriteString(s.ToMove().String())
	return sb.String()
}

// Parse is the inverse of String.
func Parse(str string) (State, error) {
	cells, turn, ok := strings.Cut(strings.TrimSpace(str), " ")
	if !ok || len(cells) != NumCells {
		return 0, fmt.Errorf("cannot parse position %q", str)
	}
	toMove, err := ParseMarker(turn)
	if err != nil {
		return 0, err
	}
	s := New(toMove)
	for i, c := range strings.ToUpper(cells) {
		switch c {
		case 'X':
			s = s.withCell(i, X)
		case 'O':
			s = s.withCell(i, O)
		case '.':
		default:
			return 0, fmt.Errorf("bad cell %q in position %q", c, str)
		}
	}
	return s, nil
}

func (s State) ToDisplayText() string {
	var str string
	row := "   "
	for i := 0; i < Dim; i++ {
		row = row + fmt.Sprintf("%c", 'a'+i) + " "
	}
	str = str + row + "\n"
	str = str + "   " + strings.Repeat("-", Dim*2) + "\n"
	for i := 0; i < Dim; i++ {
		row := fmt.Sprintf("%2d|", i+1)
		for j := 0; j < Dim; j++ {
			row = row + s.Cell(i*Dim+j).String() + " "
		}
		row = row + "|"
		str = str + row + "\n"
	}
	str = str + "   " + strings.Repeat("-", Dim*2) + "\n"
	switch {
	case s.Winner() != None:
		str = str + fmt.Sprintf("%v wins\n", s.Winner())
	case s.Full():
		str = str + "draw\n"
	default:
		str = str + fmt.Sprintf("%v to move\n", s.ToMove())
	}
	return "\n" + str
}

// Enumerate walks every position reachable from an empty board with X to
// move, and returns the ones where agent is to move together with every
// terminal position, sorted.
func Enumerate(agent Marker) []State {
	seen := make(map[State]bool)
	var walk func(s State)
	walk = func(s State) {
		if seen[s] {
			return
		}
		seen[s] = true
		for _, m := range s.LegalMoves() {
			next, err := s.Play(m)
			if err != nil {
				panic(err)
			}
			walk(next)
		}
	}
	walk(New(X))

	states := lo.Filter(lo.Keys(seen), func(s State, _ int) bool {
		return s.Terminal() || s.ToMove() == agent
	})
	slices.Sort(states)
	return states
}

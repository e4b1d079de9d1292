package arena

import (
	"context"
	"errors"
	"math/rand/v2"
	"os"
	"testing"

	"github.com/matryer/is"
	"github.com/rs/zerolog"

	"github.com/domino14/noughts/agent"
	"github.com/domino14/noughts/board"
	"github.com/domino14/noughts/mdp"
	"github.com/domino14/noughts/solver/valueiter"
	"github.com/domino14/noughts/tictactoe"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	os.Exit(m.Run())
}

type legalMoves struct{}

func (legalMoves) Actions(s board.State) []board.Move {
	return s.LegalMoves()
}

func randomVsRandom(worker int, r *rand.Rand) (Player, Player, error) {
	return agent.NewRandomAgent[board.State, board.Move](legalMoves{}, r),
		agent.NewRandomAgent[board.State, board.Move](legalMoves{}, r), nil
}

func TestPlayGame(t *testing.T) {
	is := is.New(t)
	x := agent.NewPolicyAgent("x", mdp.NewPolicy(map[board.State]board.Move{}))
	_, err := PlayGame(x, x)
	is.True(errors.Is(err, agent.ErrNoMove))

	final, err := randomGame(3)
	is.NoErr(err)
	is.True(final.Terminal())
}

func randomGame(seed uint64) (board.State, error) {
	x, o, _ := randomVsRandom(0, rand.New(rand.NewPCG(seed, seed)))
	return PlayGame(x, o)
}

func TestRandomVsRandom(t *testing.T) {
	is := is.New(t)
	res, err := Play(context.Background(), 2000, 4, 42, randomVsRandom)
	is.NoErr(err)
	is.Equal(res.Games, 2000)
	is.Equal(res.XWins+res.OWins+res.Draws, 2000)
	is.Equal(res.Score.Iterations(), 2000)
	// X wins about 58% of random games, O about 29%.
	is.True(res.XWins > res.OWins)
	is.True(res.Score.Mean() > 0)
	is.Equal(IsPlaying.Value(), int64(0))
}

func TestOptimalBeatsRandom(t *testing.T) {
	is := is.New(t)
	m, err := tictactoe.NewMDP(board.X, tictactoe.DefaultRewards())
	is.NoErr(err)
	vi, err := valueiter.New[board.State, board.Move](m, valueiter.Params{Discount: 0.9, Sweeps: 10})
	is.NoErr(err)
	pol, err := vi.Solve(context.Background())
	is.NoErr(err)

	res, err := Play(context.Background(), 1000, 2, 7, func(w int, r *rand.Rand) (Player, Player, error) {
		return agent.NewPolicyAgent("vi", pol), agent.NewRandomAgent[board.State, board.Move](m, r), nil
	})
	is.NoErr(err)
	is.Equal(res.Games, 1000)
	is.True(res.Score.Mean() > 0.8)
	is.True(res.Score.ConfidenceInterval(95) > 0)
}

func TestFactoryError(t *testing.T) {
	is := is.New(t)
	boom := errors.New("boom")
	_, err := Play(context.Background(), 500, 3, 1, func(int, *rand.Rand) (Player, Player, error) {
		return nil, nil, boom
	})
	is.True(errors.Is(err, boom))
}

func TestBadArguments(t *testing.T) {
	is := is.New(t)
	_, err := Play(context.Background(), 0, 1, 1, randomVsRandom)
	is.True(err != nil)
	_, err = Play(context.Background(), 10, 0, 1, randomVsRandom)
	is.True(err != nil)
}

func TestCancelled(t *testing.T) {
	is := is.New(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Play(ctx, 100000, 2, 1, randomVsRandom)
	is.NoErr(err)
	is.True(res.Games < 100000)
}

func TestAlreadyPlaying(t *testing.T) {
	is := is.New(t)
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := Play(context.Background(), 10, 1, 1, func(w int, r *rand.Rand) (Player, Player, error) {
			close(started)
			<-release
			return randomVsRandom(w, r)
		})
		done <- err
	}()

	<-started
	is.Equal(IsPlaying.Value(), int64(1))
	_, err := Play(context.Background(), 10, 1, 1, randomVsRandom)
	is.True(errors.Is(err, ErrAlreadyPlaying))

	close(release)
	is.NoErr(<-done)
	is.Equal(IsPlaying.Value(), int64(0))

	// free again once the first run returns
	res, err := Play(context.Background(), 10, 1, 1, randomVsRandom)
	is.NoErr(err)
	is.Equal(res.Games, 10)
}

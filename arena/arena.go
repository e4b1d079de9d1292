// Package arena plays agents against each other over many games and keeps
// score.
package arena

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/domino14/noughts/agent"
	"github.com/domino14/noughts/board"
	"github.com/domino14/noughts/rng"
	"github.com/domino14/noughts/stats"
)

type Player = agent.Player[board.State, board.Move]

var (
	GamesCounter *expvar.Int
	IsPlaying    *expvar.Int
)

func init() {
	GamesCounter = expvar.NewInt("arenaGames")
	IsPlaying = expvar.NewInt("arenaIsPlaying")
}

// playing is held for the length of a Play call.
var playing sync.Mutex

var ErrAlreadyPlaying = errors.New("games are already being played, please wait till complete")

// PlayerFactory builds the X and O players for one worker. Players are not
// shared between workers, so they need not be safe for concurrent use. r is
// the worker's own generator.
type PlayerFactory func(worker int, r *rand.Rand) (x, o Player, err error)

// Result tallies a series of games. Score is +1 for every X win, -1 for
// every O win and 0 for a draw.
type Result struct {
	Games int
	XWins int
	OWins int
	Draws int
	Score *stats.Statistic
}

func newResult() *Result {
	return &Result{Score: &stats.Statistic{}}
}

func (r *Result) add(final board.State) {
	r.Games++
	switch final.Winner() {
	case board.X:
		r.XWins++
		r.Score.Push(1)
	case board.O:
		r.OWins++
		r.Score.Push(-1)
	default:
		r.Draws++
		r.Score.Push(0)
	}
}

func (r *Result) merge(o *Result) {
	r.Games += o.Games
	r.XWins += o.XWins
	r.OWins += o.OWins
	r.Draws += o.Draws
	r.Score.Merge(o.Score)
}

func pct(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return 100 * float64(n) / float64(d)
}

func (r *Result) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Games: %d\n", r.Games)
	fmt.Fprintf(&sb, "X wins: %d (%.1f%%)\n", r.XWins, pct(r.XWins, r.Games))
	fmt.Fprintf(&sb, "O wins: %d (%.1f%%)\n", r.OWins, pct(r.OWins, r.Games))
	fmt.Fprintf(&sb, "Draws: %d (%.1f%%)\n", r.Draws, pct(r.Draws, r.Games))
	fmt.Fprintf(&sb, "X score: %.3f ± %.3f (95%%)\n", r.Score.Mean(), r.Score.ConfidenceInterval(95))
	return sb.String()
}

// PlayGame plays one game from the empty board and returns the final
// position.
func PlayGame(x, o Player) (board.State, error) {
	s := board.New(board.X)
	for !s.Terminal() {
		p := x
		if s.ToMove() == board.O {
			p = o
		}
		mv, err := p.Move(s)
		if err != nil {
			return s, err
		}
		s, err = s.Play(mv)
		if err != nil {
			return s, fmt.Errorf("%v played %v: %w", s.ToMove(), mv, err)
		}
	}
	return s, nil
}

// Play runs games across threads workers. Each worker gets players from
// factory and a generator derived from seed. A cancelled context stops
// queueing new games; the games already queued are still counted. The first
// worker error stops the run.
func Play(ctx context.Context, games, threads int, seed uint64, factory PlayerFactory) (*Result, error) {
	if games <= 0 || threads <= 0 {
		return nil, fmt.Errorf("need a positive number of games and threads, got %d and %d", games, threads)
	}
	if !playing.TryLock() {
		return nil, ErrAlreadyPlaying
	}
	defer playing.Unlock()
	IsPlaying.Set(1)
	defer IsPlaying.Set(0)

	log.Debug().Int("games", games).Int("threads", threads).Msg("starting-arena")
	ts := time.Now()

	total := newResult()
	var mu sync.Mutex
	jobs := make(chan struct{}, 100)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < threads; w++ {
		g.Go(func() error {
			x, o, err := factory(w, rng.Derive(seed, w))
			if err != nil {
				return err
			}
			local := newResult()
			for range jobs {
				final, err := PlayGame(x, o)
				if err != nil {
					return err
				}
				local.add(final)
				GamesCounter.Add(1)
			}
			mu.Lock()
			total.merge(local)
			mu.Unlock()
			return nil
		})
	}

	g.Go(func() error {
		defer close(jobs)
		for i := 0; i < games; i++ {
			select {
			case <-gctx.Done():
				log.Info().Int("queued", i).Msg("arena-stopped-early")
				return nil
			case jobs <- struct{}{}:
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Info().Int("games", total.Games).Int("x-wins", total.XWins).Int("o-wins", total.OWins).
		Int("draws", total.Draws).Dur("elapsed", time.Since(ts)).Msg("arena-done")
	return total, nil
}

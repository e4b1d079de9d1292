// Package tictactoe models tic-tac-toe against a random opponent as an MDP,
// and simulates it against any opponent for learning from play.
package tictactoe

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/domino14/noughts/agent"
	"github.com/domino14/noughts/board"
	"github.com/domino14/noughts/mdp"
)

// Rewards is the reward scheme, seen from the agent's side.
type Rewards struct {
	Win    float64
	Lose   float64
	Draw   float64
	Living float64
}

func DefaultRewards() Rewards {
	return Rewards{Win: 1, Lose: -1, Draw: 0, Living: 0}
}

// MDP is tic-tac-toe from the point of view of agent, against an opponent
// that replies uniformly at random. X always moves first.
type MDP struct {
	agent   board.Marker
	rewards Rewards
	states  []board.State
}

var _ mdp.Model[board.State, board.Move] = (*MDP)(nil)

func NewMDP(side board.Marker, r Rewards) (*MDP, error) {
	if side != board.X && side != board.O {
		return nil, fmt.Errorf("%w: agent must play X or O", mdp.ErrBadParameter)
	}
	states := board.Enumerate(side)
	log.Debug().Stringer("agent", side).Int("states", len(states)).Msg("enumerated-states")
	return &MDP{agent: side, rewards: r, states: states}, nil
}

func (m *MDP) Agent() board.Marker {
	return m.agent
}

func (m *MDP) Rewards() Rewards {
	return m.rewards
}

// States returns every position where the agent is to move, and every
// finished position.
func (m *MDP) States() []board.State {
	return m.states
}

func (m *MDP) Terminal(s board.State) bool {
	return s.Terminal()
}

// Actions returns the empty cells. It answers for either side, so the MDP
// can also drive a random opponent.
func (m *MDP) Actions(s board.State) []board.Move {
	return s.LegalMoves()
}

// Reward is the reward for arriving in s.
func (m *MDP) Reward(s board.State) float64 {
	switch w := s.Winner(); {
	case w == m.agent:
		return m.rewards.Win
	case w != board.None:
		return m.rewards.Lose
	case s.Full():
		return m.rewards.Draw
	}
	return m.rewards.Living
}

// Transitions plays a for the agent and then every possible opponent reply,
// each with equal probability.
func (m *MDP) Transitions(s board.State, a board.Move) ([]mdp.Outcome[board.State], error) {
	if s.ToMove() != m.agent {
		return nil, fmt.Errorf("%w: %v is not the agent's turn", mdp.ErrIllegalAction, s)
	}
	after, err := s.Play(a)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", mdp.ErrIllegalAction, err)
	}
	if after.Terminal() {
		return []mdp.Outcome[board.State]{{Prob: 1, Reward: m.Reward(after), Next: after}}, nil
	}
	replies := after.LegalMoves()
	p := 1 / float64(len(replies))
	outs := make([]mdp.Outcome[board.State], 0, len(replies))
	for _, r := range replies {
		next, err := after.Play(r)
		if err != nil {
			return nil, err
		}
		outs = append(outs, mdp.Outcome[board.State]{Prob: p, Reward: m.Reward(next), Next: next})
	}
	return outs, nil
}

// Environment plays the agent's moves against an opponent. Step returns
// once the opponent has replied, or the game is over.
type Environment struct {
	model    *MDP
	opponent agent.Player[board.State, board.Move]
	cur      board.State
}

var _ mdp.Environment[board.State, board.Move] = (*Environment)(nil)

func NewEnvironment(m *MDP, opponent agent.Player[board.State, board.Move]) *Environment {
	e := &Environment{model: m, opponent: opponent}
	e.Reset()
	return e
}

// Reset starts a new game. If the agent plays O, the opponent opens.
func (e *Environment) Reset() {
	e.cur = board.New(board.X)
	if e.model.agent == board.X {
		return
	}
	mv, err := e.opponent.Move(e.cur)
	if err == nil {
		e.cur, err = e.cur.Play(mv)
	}
	if err != nil {
		log.Error().Err(err).Msg("opponent-failed-to-open")
	}
}

func (e *Environment) CurrentState() board.State {
	return e.cur
}

func (e *Environment) Terminal() bool {
	return e.cur.Terminal()
}

func (e *Environment) Step(a board.Move) (mdp.Sample[board.State, board.Move], error) {
	smp := mdp.Sample[board.State, board.Move]{State: e.cur, Action: a}
	if e.cur.ToMove() != e.model.agent {
		return smp, fmt.Errorf("%w: %v is not the agent's turn", mdp.ErrIllegalAction, e.cur)
	}
	after, err := e.cur.Play(a)
	if err != nil {
		return smp, fmt.Errorf("%w: %w", mdp.ErrIllegalAction, err)
	}
	next := after
	if !after.Terminal() {
		mv, err := e.opponent.Move(after)
		if err != nil {
			return smp, fmt.Errorf("opponent: %w", err)
		}
		next, err = after.Play(mv)
		if err != nil {
			return smp, fmt.Errorf("opponent: %w", err)
		}
	}
	e.cur = next
	smp.Reward = e.model.Reward(next)
	smp.Next = next
	return smp, nil
}

package shell

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aybabtme/uniplot/histogram"

	"github.com/domino14/noughts/agent"
	"github.com/domino14/noughts/arena"
	"github.com/domino14/noughts/board"
	"github.com/domino14/noughts/config"
	"github.com/domino14/noughts/mdp"
	"github.com/domino14/noughts/policyio"
	"github.com/domino14/noughts/solver/policyiter"
	"github.com/domino14/noughts/solver/qlearning"
	"github.com/domino14/noughts/solver/valueiter"
	"github.com/domino14/noughts/tictactoe"
)

const histogramWidth = 50

func (sc *ShellController) floatOption(cmd *shellcmd, key string) (float64, error) {
	if v, ok := cmd.options[key]; ok {
		return strconv.ParseFloat(v, 64)
	}
	return sc.config.GetFloat64(key), nil
}

func (sc *ShellController) intOption(cmd *shellcmd, key string) (int, error) {
	if v, ok := cmd.options[key]; ok {
		return strconv.Atoi(v)
	}
	return sc.config.GetInt(key), nil
}

// nonTerminalValues lists V(s) for every state the agent acts in.
func nonTerminalValues(m *tictactoe.MDP, v *mdp.ValueFunction[board.State]) []float64 {
	var out []float64
	for _, s := range v.States() {
		if m.Terminal(s) {
			continue
		}
		val, err := v.Value(s)
		if err != nil {
			continue
		}
		out = append(out, val)
	}
	return out
}

func (sc *ShellController) train(ctx context.Context, cmd *shellcmd) (*Response, error) {
	if len(cmd.args) != 1 {
		return nil, errors.New("usage: train <pi|vi|ql> [-option value ...]")
	}
	m, err := sc.ensureModel()
	if err != nil {
		return nil, err
	}
	discount, err := sc.floatOption(cmd, config.ConfigDiscount)
	if err != nil {
		return nil, err
	}
	ts := time.Now()
	var pol *Policy
	var values []float64
	params := map[string]float64{config.ConfigDiscount: discount}

	switch strings.ToLower(cmd.args[0]) {
	case "pi", "policy":
		delta, err := sc.floatOption(cmd, config.ConfigDelta)
		if err != nil {
			return nil, err
		}
		s, err := policyiter.New[board.State, board.Move](m, policyiter.Params{
			Discount: discount, Delta: delta, Rand: sc.rand,
		})
		if err != nil {
			return nil, err
		}
		if pol, err = s.Solve(ctx); err != nil {
			return nil, err
		}
		values = nonTerminalValues(m, s.Values())
		params[config.ConfigDelta] = delta
		sc.solver = "policy-iteration"

	case "vi", "value":
		sweeps, err := sc.intOption(cmd, config.ConfigSweeps)
		if err != nil {
			return nil, err
		}
		s, err := valueiter.New[board.State, board.Move](m, valueiter.Params{
			Discount: discount, Sweeps: sweeps,
		})
		if err != nil {
			return nil, err
		}
		if pol, err = s.Solve(ctx); err != nil {
			return nil, err
		}
		values = nonTerminalValues(m, s.Values())
		params[config.ConfigSweeps] = float64(sweeps)
		sc.solver = "value-iteration"

	case "ql", "q":
		alpha, err := sc.floatOption(cmd, config.ConfigLearningRate)
		if err != nil {
			return nil, err
		}
		epsilon, err := sc.floatOption(cmd, config.ConfigEpsilon)
		if err != nil {
			return nil, err
		}
		episodes, err := sc.intOption(cmd, config.ConfigEpisodes)
		if err != nil {
			return nil, err
		}
		opponent := agent.NewRandomAgent[board.State, board.Move](m, sc.rand)
		env := tictactoe.NewEnvironment(m, opponent)
		s, err := qlearning.New[board.State, board.Move](m, env, qlearning.Params[board.State, board.Move]{
			LearningRate: alpha,
			Discount:     discount,
			Epsilon:      epsilon,
			Episodes:     episodes,
			Rand:         sc.rand,
			LogEvery:     sc.config.GetInt(config.ConfigLogEvery),
		})
		if err != nil {
			return nil, err
		}
		if pol, err = s.Solve(ctx); err != nil {
			return nil, err
		}
		for _, st := range s.Table().States() {
			if v, err := s.Table().MaxValue(st); err == nil {
				values = append(values, v)
			}
		}
		params[config.ConfigLearningRate] = alpha
		params[config.ConfigEpsilon] = epsilon
		params[config.ConfigEpisodes] = float64(episodes)
		sc.solver = "q-learning"

	default:
		return nil, fmt.Errorf("unknown solver %q; use pi, vi or ql", cmd.args[0])
	}

	sc.policy = pol
	sc.marker = m.Agent()
	sc.params = params
	sc.values = values
	return msg(fmt.Sprintf("Trained a %s policy for %v over %d states in %v",
		sc.solver, sc.marker, pol.Len(), time.Since(ts).Round(time.Millisecond))), nil
}

func (sc *ShellController) player() (*agent.PolicyAgent[board.State, board.Move], error) {
	if sc.policy == nil {
		return nil, errNoPolicy
	}
	return agent.NewPolicyAgent(sc.solver, sc.policy), nil
}

func (sc *ShellController) gameText() string {
	var sb strings.Builder
	sb.WriteString(sc.game.ToDisplayText())
	if sc.playing {
		if sc.game.ToMove() == sc.marker {
			sb.WriteString("The agent is thinking. Use `ai` to let it move.\n")
		} else {
			fmt.Fprintf(&sb, "You play %v. Use `play <cell>`, e.g. `play b2`.\n", sc.game.ToMove())
		}
	}
	return sb.String()
}

// agentMove plays the policy's move in the current game.
func (sc *ShellController) agentMove() (board.Move, error) {
	p, err := sc.player()
	if err != nil {
		return 0, err
	}
	mv, err := p.Move(sc.game)
	if err != nil {
		return 0, err
	}
	next, err := sc.game.Play(mv)
	if err != nil {
		return 0, err
	}
	sc.game = next
	sc.playing = !next.Terminal()
	return mv, nil
}

func (sc *ShellController) newGame(cmd *shellcmd) (*Response, error) {
	if sc.policy == nil {
		return nil, errNoPolicy
	}
	sc.game = board.New(board.X)
	sc.playing = true
	var sb strings.Builder
	fmt.Fprintf(&sb, "New game. The %s agent plays %v, you play %v.\n", sc.solver, sc.marker, sc.marker.Opponent())
	if sc.marker == board.X {
		mv, err := sc.agentMove()
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&sb, "Agent plays %v\n", mv)
	}
	sb.WriteString(sc.gameText())
	return msg(sb.String()), nil
}

func (sc *ShellController) play(cmd *shellcmd) (*Response, error) {
	if !sc.playing {
		return nil, errNoGame
	}
	if len(cmd.args) != 1 {
		return nil, errors.New("usage: play <cell>")
	}
	if sc.game.ToMove() == sc.marker {
		return nil, errors.New("it is the agent's turn; use `ai`")
	}
	mv, err := board.ParseMove(cmd.args[0])
	if err != nil {
		return nil, err
	}
	next, err := sc.game.Play(mv)
	if err != nil {
		return nil, err
	}
	sc.game = next
	sc.playing = !next.Terminal()
	var sb strings.Builder
	if sc.playing {
		amv, err := sc.agentMove()
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&sb, "Agent plays %v\n", amv)
	}
	sb.WriteString(sc.gameText())
	return msg(sb.String()), nil
}

func (sc *ShellController) aiplay() (*Response, error) {
	if !sc.playing {
		return nil, errNoGame
	}
	if sc.game.ToMove() != sc.marker {
		return nil, errors.New("it is your turn")
	}
	mv, err := sc.agentMove()
	if err != nil {
		return nil, err
	}
	return msg(fmt.Sprintf("Agent plays %v\n%s", mv, sc.gameText())), nil
}

func (sc *ShellController) show() (*Response, error) {
	if sc.game == 0 {
		if sc.policy == nil {
			return msg("No policy and no game yet."), nil
		}
		return msg(fmt.Sprintf("Current policy: %s for %v, %d states", sc.solver, sc.marker, sc.policy.Len())), nil
	}
	return msg(sc.gameText()), nil
}

func (sc *ShellController) arena(ctx context.Context, cmd *shellcmd) (*Response, error) {
	p, err := sc.player()
	if err != nil {
		return nil, err
	}
	games := sc.config.GetInt(config.ConfigArenaGames)
	if len(cmd.args) > 0 {
		if games, err = strconv.Atoi(cmd.args[0]); err != nil {
			return nil, err
		}
	}
	threads, err := sc.intOption(cmd, config.ConfigArenaThreads)
	if err != nil {
		return nil, err
	}
	marker := sc.marker
	pol := p.Policy()
	res, err := arena.Play(ctx, games, threads, sc.rand.Uint64(),
		func(w int, r *rand.Rand) (arena.Player, arena.Player, error) {
			var me arena.Player = agent.NewPolicyAgent(sc.solver, pol)
			var opp arena.Player = agent.NewRandomAgent[board.State, board.Move](legalMoves{}, r)
			if marker == board.X {
				return me, opp, nil
			}
			return opp, me, nil
		})
	if err != nil {
		return nil, err
	}
	return msg(fmt.Sprintf("%s agent (%v) vs random:\n%s", sc.solver, marker, res)), nil
}

type legalMoves struct{}

func (legalMoves) Actions(s board.State) []board.Move {
	return s.LegalMoves()
}

func (sc *ShellController) valueHistogram(cmd *shellcmd) (*Response, error) {
	if len(sc.values) == 0 {
		return nil, errors.New("no state values; train a policy in this session first")
	}
	bins, err := sc.intOption(cmd, config.ConfigHistogramBins)
	if err != nil {
		return nil, err
	}
	hist := histogram.Hist(bins, sc.values)
	var sb strings.Builder
	fmt.Fprintf(&sb, "Values of %d states under the %s policy:\n", len(sc.values), sc.solver)
	if err := histogram.Fprint(&sb, hist, histogram.Linear(histogramWidth)); err != nil {
		return nil, err
	}
	return msg(sb.String()), nil
}

func (sc *ShellController) document() (*policyio.Document, error) {
	if sc.policy == nil {
		return nil, errNoPolicy
	}
	return policyio.NewDocument(sc.solver, sc.marker, sc.policy, sc.params), nil
}

// adopt makes doc's policy the current one. Values are not stored with a
// policy, so they are cleared.
func (sc *ShellController) adopt(doc *policyio.Document) error {
	pol, err := doc.Policy()
	if err != nil {
		return err
	}
	marker, err := board.ParseMarker(doc.Agent)
	if err != nil {
		return err
	}
	sc.policy = pol
	sc.marker = marker
	sc.solver = doc.Solver
	sc.params = doc.Params
	sc.values = nil
	sc.playing = false
	sc.config.Set(config.ConfigAgentMarker, marker.String())
	return nil
}

func (sc *ShellController) save(ctx context.Context, cmd *shellcmd) (*Response, error) {
	if len(cmd.args) != 1 {
		return nil, errors.New("usage: save <name>")
	}
	doc, err := sc.document()
	if err != nil {
		return nil, err
	}
	st, err := sc.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Save(ctx, cmd.args[0], doc); err != nil {
		return nil, err
	}
	return msg("saved policy " + cmd.args[0]), nil
}

func (sc *ShellController) load(ctx context.Context, cmd *shellcmd) (*Response, error) {
	if len(cmd.args) != 1 {
		return nil, errors.New("usage: load <name>")
	}
	st, err := sc.openStore(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := st.Load(ctx, cmd.args[0])
	if err != nil {
		return nil, err
	}
	if err := sc.adopt(doc); err != nil {
		return nil, err
	}
	return msg(fmt.Sprintf("loaded %s policy %s for %v", sc.solver, cmd.args[0], sc.marker)), nil
}

func (sc *ShellController) list(ctx context.Context) (*Response, error) {
	st, err := sc.openStore(ctx)
	if err != nil {
		return nil, err
	}
	sums, err := st.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(sums) == 0 {
		return msg("No saved policies"), nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-20s%-20s%-8s%-18s%s\n", "Name", "Solver", "Agent", "Checksum", "Created")
	for _, s := range sums {
		fmt.Fprintf(&sb, "%-20s%-20s%-8s%-18s%s\n", s.Name, s.Solver, s.Marker, s.Checksum,
			s.Created.Format(time.RFC3339))
	}
	return msg(sb.String()), nil
}

func (sc *ShellController) export(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) != 1 {
		return nil, errors.New("usage: export <file>")
	}
	doc, err := sc.document()
	if err != nil {
		return nil, err
	}
	f, err := os.Create(cmd.args[0])
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := policyio.Write(f, doc); err != nil {
		return nil, err
	}
	return msg("exported policy to " + cmd.args[0]), nil
}

func (sc *ShellController) importPolicy(cmd *shellcmd) (*Response, error) {
	if len(cmd.args) != 1 {
		return nil, errors.New("usage: import <file>")
	}
	f, err := os.Open(cmd.args[0])
	if err != nil {
		return nil, err
	}
	defer f.Close()
	doc, err := policyio.Read(f)
	if err != nil {
		return nil, err
	}
	if err := sc.adopt(doc); err != nil {
		return nil, err
	}
	return msg(fmt.Sprintf("imported %s policy for %v", sc.solver, sc.marker)), nil
}

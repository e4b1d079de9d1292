package shell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/kballard/go-shellquote"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/domino14/noughts/board"
	"github.com/domino14/noughts/config"
	"github.com/domino14/noughts/mdp"
	"github.com/domino14/noughts/rng"
	"github.com/domino14/noughts/store"
	"github.com/domino14/noughts/tictactoe"
)

var (
	errNoData            = errors.New("no data in this line")
	errWrongOptionSyntax = errors.New("wrong format; all options need arguments")
	errNoPolicy          = errors.New("no policy yet; use `train` or `load` first")
	errNoGame            = errors.New("no game in progress; use `new` first")
)

type Policy = mdp.Policy[board.State, board.Move]

type Response struct {
	message string
}

func msg(message string) *Response {
	return &Response{message: message}
}

type shellcmd struct {
	cmd     string
	args    []string
	options map[string]string
}

// extractFields splits a line into a command, its positional arguments and
// its -key value options.
func extractFields(line string) (*shellcmd, error) {
	fields, err := shellquote.Split(line)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, errNoData
	}
	cmd := fields[0]
	var args []string
	options := map[string]string{}
	for idx := 1; idx < len(fields); idx++ {
		if strings.HasPrefix(fields[idx], "-") {
			if idx == len(fields)-1 {
				return nil, errWrongOptionSyntax
			}
			options[fields[idx][1:]] = fields[idx+1]
			idx++
			continue
		}
		args = append(args, fields[idx])
	}
	return &shellcmd{cmd: cmd, args: args, options: options}, nil
}

// ShellController holds the state of an interactive session: the config,
// the current policy and its provenance, and the game being played against
// it.
type ShellController struct {
	l      *readline.Instance
	config *config.Config

	model   *tictactoe.MDP
	rand    *rand.Rand
	policy  *Policy
	marker  board.Marker
	solver  string
	params  map[string]float64
	values  []float64
	store   *store.Store
	game    board.State
	playing bool
}

func filterInput(r rune) (rune, bool) {
	switch r {
	// block CtrlZ feature
	case readline.CharCtrlZ:
		return r, false
	}
	return r, true
}

func writeln(msg string, w io.Writer) {
	io.WriteString(w, msg)
	io.WriteString(w, "\n")
}

func (sc *ShellController) showMessage(msg string) {
	writeln(msg, sc.l.Stderr())
}

func (sc *ShellController) showError(err error) {
	sc.showMessage("Error: " + err.Error())
}

func NewShellController(cfg *config.Config) *ShellController {
	l, err := readline.NewEx(&readline.Config{
		Prompt:          "\033[31mnoughts>\033[0m ",
		HistoryFile:     cfg.GetString(config.ConfigHistoryFile),
		EOFPrompt:       "exit",
		InterruptPrompt: "^C",

		HistorySearchFold:   true,
		FuncFilterInputRune: filterInput,
	})
	if err != nil {
		panic(err)
	}
	sc := newController(cfg)
	sc.l = l
	return sc
}

func newController(cfg *config.Config) *ShellController {
	return &ShellController{config: cfg, rand: rng.New(cfg.GetUint64(config.ConfigSeed))}
}

func (sc *ShellController) agentMarker() (board.Marker, error) {
	return board.ParseMarker(sc.config.GetString(config.ConfigAgentMarker))
}

func (sc *ShellController) rewards() tictactoe.Rewards {
	return tictactoe.Rewards{
		Win:    sc.config.GetFloat64(config.ConfigWinReward),
		Lose:   sc.config.GetFloat64(config.ConfigLoseReward),
		Draw:   sc.config.GetFloat64(config.ConfigDrawReward),
		Living: sc.config.GetFloat64(config.ConfigLivingReward),
	}
}

// ensureModel rebuilds the model if the agent's marker or rewards changed
// since it was last built.
func (sc *ShellController) ensureModel() (*tictactoe.MDP, error) {
	marker, err := sc.agentMarker()
	if err != nil {
		return nil, err
	}
	if sc.model != nil && sc.model.Agent() == marker && sc.model.Rewards() == sc.rewards() {
		return sc.model, nil
	}
	m, err := tictactoe.NewMDP(marker, sc.rewards())
	if err != nil {
		return nil, err
	}
	sc.model = m
	return m, nil
}

func (sc *ShellController) openStore(ctx context.Context) (*store.Store, error) {
	if sc.store != nil {
		return sc.store, nil
	}
	s, err := store.Open(ctx, sc.config.GetString(config.ConfigStorePath))
	if err != nil {
		return nil, err
	}
	sc.store = s
	return s, nil
}

func (sc *ShellController) set(cmd *shellcmd) (*Response, error) {
	if cmd.args == nil {
		return msg(sc.config.ToDisplayText()), nil
	}
	key := cmd.args[0]
	if !lo.Contains(sc.config.AllKeys(), key) {
		return nil, fmt.Errorf("no such setting: %v", key)
	}
	if len(cmd.args) == 1 {
		return msg(fmt.Sprintf("%v: %v", key, sc.config.Get(key))), nil
	}
	val := cmd.args[1]
	switch key {
	case config.ConfigAgentMarker:
		if _, err := board.ParseMarker(val); err != nil {
			return nil, err
		}
		sc.config.Set(key, strings.ToUpper(val))
	case config.ConfigSeed:
		seed, err := strconv.ParseUint(val, 10, 64)
		if err != nil {
			return nil, err
		}
		sc.config.Set(key, seed)
		sc.rand = rng.New(seed)
	case config.ConfigStorePath, config.ConfigCPUProfile, config.ConfigHistoryFile:
		sc.config.Set(key, val)
	case config.ConfigDebug:
		b, err := strconv.ParseBool(val)
		if err != nil {
			return nil, err
		}
		sc.config.Set(key, b)
	default:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, err
		}
		sc.config.Set(key, f)
	}
	return msg("set " + key + " to " + val), nil
}

func (sc *ShellController) handle(ctx context.Context, line string) (*Response, error) {
	cmd, err := extractFields(line)
	if err != nil {
		return nil, err
	}
	switch cmd.cmd {
	case "train", "t":
		return sc.train(ctx, cmd)
	case "new", "n":
		return sc.newGame(cmd)
	case "play", "pl", "p":
		return sc.play(cmd)
	case "ai", "a":
		return sc.aiplay()
	case "show", "s", "b":
		return sc.show()
	case "arena":
		return sc.arena(ctx, cmd)
	case "values", "v":
		return sc.valueHistogram(cmd)
	case "save":
		return sc.save(ctx, cmd)
	case "load":
		return sc.load(ctx, cmd)
	case "list":
		return sc.list(ctx)
	case "export":
		return sc.export(cmd)
	case "import":
		return sc.importPolicy(cmd)
	case "set":
		return sc.set(cmd)
	case "help", "h":
		if cmd.args == nil {
			return usage("usage")
		}
		return usageTopic(cmd.args[0])
	default:
		msg := fmt.Sprintf("command %v not found", strconv.Quote(cmd.cmd))
		log.Info().Msg(msg)
		return nil, errors.New(msg)
	}
}

// Execute runs a single command line, for non-interactive use.
func (sc *ShellController) Execute(sig chan os.Signal, line string) {
	resp, err := sc.handle(context.Background(), line)
	if err != nil {
		sc.showError(err)
	} else if resp != nil {
		sc.showMessage(resp.message)
	}
}

func (sc *ShellController) Loop(sig chan os.Signal) {
	defer sc.l.Close()
	ctx := context.Background()

	for {
		line, err := sc.l.Readline()
		if err == readline.ErrInterrupt {
			if len(line) == 0 {
				sig <- syscall.SIGINT
				break
			} else {
				continue
			}
		} else if err == io.EOF {
			sig <- syscall.SIGINT
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if line == "exit" || line == "bye" {
			sig <- syscall.SIGINT
			break
		}
		resp, err := sc.handle(ctx, line)
		if err != nil {
			sc.showError(err)
		} else if resp != nil {
			sc.showMessage(resp.message)
		}
	}
	log.Debug().Msg("exiting-readline-loop")
}

// Cleanup closes the policy store, if it was opened.
func (sc *ShellController) Cleanup() {
	if sc.store != nil {
		if err := sc.store.Close(); err != nil {
			log.Error().Err(err).Msg("closing-store")
		}
	}
}

package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ConfigDiscount      = "discount"
	ConfigDelta         = "delta"
	ConfigSweeps        = "sweeps"
	ConfigLearningRate  = "learning-rate"
	ConfigEpsilon       = "epsilon"
	ConfigEpisodes      = "episodes"
	ConfigSeed          = "seed"
	ConfigWinReward     = "win-reward"
	ConfigLoseReward    = "lose-reward"
	ConfigDrawReward    = "draw-reward"
	ConfigLivingReward  = "living-reward"
	ConfigAgentMarker   = "agent-marker"
	ConfigArenaGames    = "arena-games"
	ConfigArenaThreads  = "arena-threads"
	ConfigStorePath     = "store-path"
	ConfigLogEvery      = "log-every"
	ConfigDebug         = "debug"
	ConfigCPUProfile    = "cpu-profile"
	ConfigHistoryFile   = "history-file"
	ConfigHistogramBins = "histogram-bins"
)

type Config struct {
	*viper.Viper
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(ConfigDiscount, 0.9)
	v.SetDefault(ConfigDelta, 0.1)
	v.SetDefault(ConfigSweeps, 50)
	v.SetDefault(ConfigLearningRate, 0.1)
	v.SetDefault(ConfigEpsilon, 0.1)
	v.SetDefault(ConfigEpisodes, 40000)
	v.SetDefault(ConfigSeed, uint64(0))
	v.SetDefault(ConfigWinReward, 1.0)
	v.SetDefault(ConfigLoseReward, -1.0)
	v.SetDefault(ConfigDrawReward, 0.0)
	v.SetDefault(ConfigLivingReward, 0.0)
	v.SetDefault(ConfigAgentMarker, "X")
	v.SetDefault(ConfigArenaGames, 1000)
	v.SetDefault(ConfigArenaThreads, 4)
	v.SetDefault(ConfigStorePath, "./data/policies.db")
	v.SetDefault(ConfigLogEvery, 5000)
	v.SetDefault(ConfigDebug, false)
	v.SetDefault(ConfigCPUProfile, "")
	v.SetDefault(ConfigHistoryFile, "/tmp/noughts_readline.tmp")
	v.SetDefault(ConfigHistogramBins, 15)
}

// DefaultConfig returns a config with only defaults and environment
// overrides applied. It is mostly meant for tests.
func DefaultConfig() *Config {
	c := &Config{Viper: viper.New()}
	c.bindEnv()
	setDefaults(c.Viper)
	return c
}

func (c *Config) bindEnv() {
	c.SetEnvPrefix("noughts")
	c.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.AutomaticEnv()
}

// Load parses the command-line args into the config. Flags take precedence
// over environment variables, which take precedence over defaults. It
// returns the positional arguments left over after flag parsing.
func (c *Config) Load(args []string) ([]string, error) {
	c.Viper = viper.New()
	c.bindEnv()
	setDefaults(c.Viper)

	fs := pflag.NewFlagSet("noughts", pflag.ContinueOnError)
	fs.Float64(ConfigDiscount, 0.9, "discount factor (gamma)")
	fs.Float64(ConfigDelta, 0.1, "policy evaluation convergence threshold")
	fs.Int(ConfigSweeps, 50, "number of value iteration sweeps")
	fs.Float64(ConfigLearningRate, 0.1, "q-learning learning rate (alpha)")
	fs.Float64(ConfigEpsilon, 0.1, "q-learning exploration rate")
	fs.Int(ConfigEpisodes, 40000, "number of q-learning episodes")
	fs.Uint64(ConfigSeed, 0, "random seed; 0 picks a fresh one")
	fs.Float64(ConfigWinReward, 1.0, "reward for a win")
	fs.Float64(ConfigLoseReward, -1.0, "reward for a loss")
	fs.Float64(ConfigDrawReward, 0.0, "reward for a draw")
	fs.Float64(ConfigLivingReward, 0.0, "reward for any non-terminal move")
	fs.String(ConfigAgentMarker, "X", "marker the trained agent plays (X or O)")
	fs.Int(ConfigArenaGames, 1000, "number of games per arena run")
	fs.Int(ConfigArenaThreads, 4, "number of arena worker goroutines")
	fs.String(ConfigStorePath, "./data/policies.db", "path to the sqlite policy store")
	fs.Int(ConfigLogEvery, 5000, "log q-learning progress every this many episodes")
	fs.Bool(ConfigDebug, false, "debug logging on")
	fs.String(ConfigCPUProfile, "", "write a cpu profile to this path")
	fs.String(ConfigHistoryFile, "/tmp/noughts_readline.tmp", "readline history file")
	fs.Int(ConfigHistogramBins, 15, "number of bins for value histograms")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := c.BindPFlags(fs); err != nil {
		return nil, err
	}
	return fs.Args(), nil
}

// ToDisplayText lists every setting, sorted by key.
func (c *Config) ToDisplayText() string {
	settings := c.AllSettings()
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	sb.WriteString("Settings:\n")
	for _, k := range keys {
		fmt.Fprintf(&sb, "  %s: %v\n", k, settings[k])
	}
	return sb.String()
}

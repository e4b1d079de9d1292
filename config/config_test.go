package config

import (
	"testing"

	"github.com/matryer/is"
)

func TestDefaults(t *testing.T) {
	is := is.New(t)
	cfg := DefaultConfig()
	is.Equal(cfg.GetFloat64(ConfigDiscount), 0.9)
	is.Equal(cfg.GetFloat64(ConfigDelta), 0.1)
	is.Equal(cfg.GetInt(ConfigSweeps), 50)
	is.Equal(cfg.GetInt(ConfigEpisodes), 40000)
	is.Equal(cfg.GetFloat64(ConfigLoseReward), -1.0)
	is.Equal(cfg.GetString(ConfigAgentMarker), "X")
}

func TestLoadFlags(t *testing.T) {
	is := is.New(t)
	cfg := &Config{}
	rest, err := cfg.Load([]string{"--discount", "0.5", "--episodes=10", "--debug", "train", "vi"})
	is.NoErr(err)
	is.Equal(rest, []string{"train", "vi"})
	is.Equal(cfg.GetFloat64(ConfigDiscount), 0.5)
	is.Equal(cfg.GetInt(ConfigEpisodes), 10)
	is.True(cfg.GetBool(ConfigDebug))
	// untouched keys keep their defaults
	is.Equal(cfg.GetInt(ConfigSweeps), 50)
}

func TestLoadEnv(t *testing.T) {
	is := is.New(t)
	t.Setenv("NOUGHTS_LEARNING_RATE", "0.25")
	cfg := &Config{}
	_, err := cfg.Load(nil)
	is.NoErr(err)
	is.Equal(cfg.GetFloat64(ConfigLearningRate), 0.25)
}

func TestLoadBadFlag(t *testing.T) {
	is := is.New(t)
	cfg := &Config{}
	_, err := cfg.Load([]string{"--no-such-flag"})
	is.True(err != nil)
}

package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/avbelov/squadduel/internal/engine"
	"github.com/avbelov/squadduel/internal/guess"
	"github.com/avbelov/squadduel/internal/match"
)

// Config is the YAML application configuration. Connection endpoints and
// secrets come from the environment instead.
type Config struct {
	Catalog struct {
		Leagues map[string]string `yaml:"leagues"`
	} `yaml:"catalog"`

	Engine struct {
		RoundPauseSec      float64 `yaml:"round_pause_sec"`
		MinTimeBankSec     float64 `yaml:"min_time_bank_sec"`
		MaxTimeBankSec     float64 `yaml:"max_time_bank_sec"`
		DefaultTimeBankSec float64 `yaml:"default_time_bank_sec"`
		GuessThreshold     float64 `yaml:"guess_threshold"`
		LeaderboardSize    int     `yaml:"leaderboard_size"`
	} `yaml:"engine"`

	Auth struct {
		InitDataMaxAgeSec int `yaml:"init_data_max_age_sec"`
	} `yaml:"auth"`
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// engineConfig maps the YAML section onto the engine defaults, keeping any
// value the file leaves at zero.
func (c *Config) engineConfig() engine.Config {
	cfg := engine.DefaultConfig()
	if c.Engine.RoundPauseSec > 0 {
		cfg.RoundPause = time.Duration(c.Engine.RoundPauseSec * float64(time.Second))
	}
	if c.Engine.LeaderboardSize > 0 {
		cfg.LeaderboardSize = c.Engine.LeaderboardSize
	}
	if c.Engine.GuessThreshold > 0 {
		cfg.GuessThreshold = c.Engine.GuessThreshold
	} else {
		cfg.GuessThreshold = guess.DefaultThreshold
	}
	lim := match.DefaultLimits
	if c.Engine.MinTimeBankSec > 0 {
		lim.MinTimeBankSec = c.Engine.MinTimeBankSec
	}
	if c.Engine.MaxTimeBankSec > 0 {
		lim.MaxTimeBankSec = c.Engine.MaxTimeBankSec
	}
	if c.Engine.DefaultTimeBankSec > 0 {
		lim.DefaultTimeBankSec = c.Engine.DefaultTimeBankSec
	}
	cfg.Limits = lim
	return cfg
}

func (c *Config) initDataMaxAge() time.Duration {
	if c.Auth.InitDataMaxAgeSec <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Auth.InitDataMaxAgeSec) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

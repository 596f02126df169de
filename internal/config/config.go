// Package config loads mathrl configuration. Values are resolved from
// (highest to lowest priority):
// 1. Command-line flags (applied by the caller)
// 2. Environment variables (MATHRL_*)
// 3. A YAML config file
// 4. Defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/AmirDavoodi/MPEC/internal/agent"
	"github.com/AmirDavoodi/MPEC/internal/env"
	"github.com/AmirDavoodi/MPEC/internal/trainer"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// #region types
// Config holds all mathrl configuration.
type Config struct {
	Agent    AgentConfig    `yaml:"agent" json:"agent"`
	Training TrainingConfig `yaml:"training" json:"training"`

	// Seed drives exploration and tie-breaks.
	Seed uint64 `yaml:"seed" json:"seed"`

	// DBPath is the SQLite database for snapshots, episodes and graphs.
	DBPath string `yaml:"db_path" json:"db_path"`

	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`
}

// AgentConfig holds the learner's parameters.
type AgentConfig struct {
	LearningRate    float64 `yaml:"learning_rate" json:"learning_rate"`
	DiscountFactor  float64 `yaml:"discount_factor" json:"discount_factor"`
	ExplorationRate float64 `yaml:"exploration_rate" json:"exploration_rate"`
	DecayRate       float64 `yaml:"decay_rate" json:"decay_rate"`
}

// TrainingConfig holds the episode loop settings.
type TrainingConfig struct {
	NumEpisodes int `yaml:"num_episodes" json:"num_episodes"`
	MaxSteps    int `yaml:"max_steps" json:"max_steps"`
	DecayEvery  int `yaml:"decay_every" json:"decay_every"`
	Workers     int `yaml:"workers" json:"workers"`
}

// #endregion types

// #region defaults
// Default returns the built-in configuration.
func Default() Config {
	a := agent.DefaultConfig()
	t := trainer.DefaultConfig()
	return Config{
		Agent: AgentConfig{
			LearningRate:    a.LearningRate,
			DiscountFactor:  a.DiscountFactor,
			ExplorationRate: a.ExplorationRate,
			DecayRate:       t.DecayRate,
		},
		Training: TrainingConfig{
			NumEpisodes: t.NumEpisodes,
			MaxSteps:    t.MaxSteps,
			DecayEvery:  t.DecayEvery,
			Workers:     1,
		},
		Seed:      1,
		DBPath:    "mathrl.db",
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// #endregion defaults

// #region load
// Load reads path over the defaults, applies MATHRL_* overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv applies environment variable overrides.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("MATHRL_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("MATHRL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MATHRL_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("MATHRL_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: MATHRL_SEED=%q: %v", ErrInvalid, v, err)
		}
		cfg.Seed = seed
	}
	return nil
}

// #endregion load

// #region validate
// Validate rejects out-of-range rates and non-positive counts.
func (c Config) Validate() error {
	switch {
	case c.Agent.LearningRate <= 0 || c.Agent.LearningRate > 1:
		return fmt.Errorf("%w: learning_rate %v not in (0, 1]", ErrInvalid, c.Agent.LearningRate)
	case c.Agent.DiscountFactor < 0 || c.Agent.DiscountFactor > 1:
		return fmt.Errorf("%w: discount_factor %v not in [0, 1]", ErrInvalid, c.Agent.DiscountFactor)
	case c.Agent.ExplorationRate < 0 || c.Agent.ExplorationRate > 1:
		return fmt.Errorf("%w: exploration_rate %v not in [0, 1]", ErrInvalid, c.Agent.ExplorationRate)
	case c.Agent.DecayRate <= 0 || c.Agent.DecayRate > 1:
		return fmt.Errorf("%w: decay_rate %v not in (0, 1]", ErrInvalid, c.Agent.DecayRate)
	case c.Training.NumEpisodes <= 0:
		return fmt.Errorf("%w: num_episodes must be positive", ErrInvalid)
	case c.Training.MaxSteps <= 0:
		return fmt.Errorf("%w: max_steps must be positive", ErrInvalid)
	case c.Training.DecayEvery < 0:
		return fmt.Errorf("%w: decay_every must not be negative", ErrInvalid)
	case c.Training.Workers <= 0:
		return fmt.Errorf("%w: workers must be positive", ErrInvalid)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format %q", ErrInvalid, c.LogFormat)
	}
	return nil
}

// #endregion validate

// #region convert
// AgentParams converts to the agent's parameters.
func (c Config) AgentParams() agent.Config {
	return agent.Config{
		LearningRate:    c.Agent.LearningRate,
		DiscountFactor:  c.Agent.DiscountFactor,
		ExplorationRate: c.Agent.ExplorationRate,
	}
}

// TrainerParams converts to the episode loop settings.
func (c Config) TrainerParams() trainer.Config {
	return trainer.Config{
		NumEpisodes: c.Training.NumEpisodes,
		MaxSteps:    c.Training.MaxSteps,
		DecayEvery:  c.Training.DecayEvery,
		DecayRate:   c.Agent.DecayRate,
	}
}

// #endregion convert

// #region problems
type problemFile struct {
	Problems []trainer.Problem `yaml:"problems"`
}

// LoadProblems reads a batch of problems from a YAML or JSON file holding
// {"problems": [...]}. A missing variant means recursive.
func LoadProblems(path string) ([]trainer.Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read problems: %w", err)
	}
	var pf problemFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse problems %s: %w", path, err)
	}
	if len(pf.Problems) == 0 {
		return nil, fmt.Errorf("%w: %s lists no problems", ErrInvalid, path)
	}
	for i := range pf.Problems {
		p := &pf.Problems[i]
		if p.Variant == "" {
			p.Variant = env.VariantRecursive
		}
		v, err := env.ParseVariant(string(p.Variant))
		if err != nil {
			return nil, fmt.Errorf("problem %d: %w", i, err)
		}
		p.Variant = v
	}
	return pf.Problems, nil
}

// #endregion problems

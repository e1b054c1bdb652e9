package config

// #region imports
import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cogniflow-ai/go-engine/internal/miner"
	"github.com/cogniflow-ai/go-engine/internal/policy"
	"github.com/cogniflow-ai/go-engine/internal/ranker"
	"github.com/cogniflow-ai/go-engine/internal/replay"
)

// #endregion

// #region sandbox-config

// SandboxConfig holds the sandbox runner settings.
type SandboxConfig struct {
	WorkDir string        `yaml:"work_dir"`
	Timeout time.Duration `yaml:"timeout"`
}

// UnmarshalYAML accepts duration strings like "30s" for the timeout and
// leaves fields untouched when their keys are absent.
func (s *SandboxConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		WorkDir *string `yaml:"work_dir"`
		Timeout *string `yaml:"timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.WorkDir != nil {
		s.WorkDir = *raw.WorkDir
	}
	if raw.Timeout != nil {
		d, err := time.ParseDuration(*raw.Timeout)
		if err != nil {
			return fmt.Errorf("parse sandbox timeout: %w", err)
		}
		s.Timeout = d
	}
	return nil
}

// #endregion

// #region config

// Config bundles every tunable of the pipeline. Zero values are filled from
// defaults on load so partial files stay valid.
type Config struct {
	DBPath  string        `yaml:"db_path"` // empty = no durable journal
	Miner   miner.Config  `yaml:"miner"`
	Ranker  ranker.Config `yaml:"ranker"`
	Sandbox SandboxConfig `yaml:"sandbox"`
	Replay  replay.Config `yaml:"replay"`
	Policy  policy.Config `yaml:"policy"`
}

// Default returns the standard pipeline configuration.
func Default() Config {
	return Config{
		Miner:  miner.DefaultConfig(),
		Ranker: ranker.DefaultConfig(),
		Sandbox: SandboxConfig{
			WorkDir: "./sandbox",
			Timeout: 30 * time.Second,
		},
		Replay: replay.DefaultConfig(),
		Policy: policy.DefaultConfig(),
	}
}

// #endregion

// #region load

// Load reads a YAML config file over the defaults. A missing file is an
// error; use Default() when no file is expected.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Policy.Epsilon < 0 || c.Policy.Epsilon > 1 {
		return fmt.Errorf("policy epsilon %v outside [0,1]", c.Policy.Epsilon)
	}
	if c.Policy.LearningRate <= 0 || c.Policy.LearningRate > 1 {
		return fmt.Errorf("policy learning rate %v outside (0,1]", c.Policy.LearningRate)
	}
	if c.Replay.GateThreshold < 0 || c.Replay.GateThreshold >= 1 {
		return fmt.Errorf("gate threshold %v outside [0,1)", c.Replay.GateThreshold)
	}
	if c.Miner.MinSequenceLen < 2 {
		return fmt.Errorf("min sequence length %d too small for causal pairs", c.Miner.MinSequenceLen)
	}
	return nil
}

// #endregion

package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/bcdannyboy/sabrcal/market"
	"github.com/bcdannyboy/sabrcal/models"
)

// Config is the calibration run configuration.
type Config struct {
	Handle             string              `yaml:"handle"`
	Beta               float64             `yaml:"beta"`
	SmileInterpolation string              `yaml:"smile_interpolation"`
	Solver             models.SolverConfig `yaml:"solver"`
	Log                LogConf             `yaml:"log"`
	Tradier            TradierConf         `yaml:"tradier"`
}

type LogConf struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TradierConf drives chain download when the CLI runs against a symbol.
type TradierConf struct {
	BaseURL  string    `yaml:"base_url"`
	Token    string    `yaml:"token"`
	Currency string    `yaml:"currency"`
	MinDTE   int       `yaml:"min_dte"`
	MaxDTE   int       `yaml:"max_dte"`
	Strikes  []float64 `yaml:"strikes,omitempty"`
	Rate     float64   `yaml:"rate"`
	Dividend float64   `yaml:"dividend"`
}

func Default() *Config {
	return &Config{
		Handle:             "default",
		Beta:               0.5,
		SmileInterpolation: market.Linear.String(),
		Solver:             models.DefaultSolverConfig,
		Log:                LogConf{Level: "info", Format: "text"},
		Tradier: TradierConf{
			BaseURL:  "https://api.tradier.com/v1",
			Currency: "USD",
			MinDTE:   7,
			MaxDTE:   365,
		},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("cannot parse YAML: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SABR_BETA"); v != "" {
		beta, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid SABR_BETA %q: %w", v, err)
		}
		c.Beta = beta
	}
	if v := os.Getenv("TRADIER_KEY"); v != "" {
		c.Tradier.Token = v
	}
	return nil
}

// Settings validates the calibration section.
func (c *Config) Settings() (models.CalibrationSettings, error) {
	kind, err := market.ParseInterpolationKind(c.SmileInterpolation)
	if err != nil {
		return models.CalibrationSettings{}, err
	}
	s, err := models.NewCalibrationSettings(c.Beta, kind, c.Handle)
	if err != nil {
		return models.CalibrationSettings{}, err
	}
	s.Solver = c.Solver
	return s, nil
}

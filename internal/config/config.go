package config

// #region imports
import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/danielpatrickdp/cag-verifier/internal/check"
	"github.com/danielpatrickdp/cag-verifier/internal/guard"
	"github.com/danielpatrickdp/cag-verifier/internal/router"
	"github.com/danielpatrickdp/cag-verifier/internal/score"
	"gopkg.in/yaml.v3"
)

// #endregion

// #region types

// Config is the full runtime configuration.
type Config struct {
	Thresholds ThresholdConfig `yaml:"thresholds"`
	Penalties  PenaltyConfig   `yaml:"penalties"`
	Checker    CheckerConfig   `yaml:"checker"`
	Timeout    time.Duration   `yaml:"timeout"` // per external model call
	Generator  GeneratorConfig `yaml:"generator"`
	Storage    StorageConfig   `yaml:"storage"`
	Server     ServerConfig    `yaml:"server"`
}

// ThresholdConfig holds the router cutoffs.
type ThresholdConfig struct {
	Accept       float64 `yaml:"accept"`
	HardReject   float64 `yaml:"hard_reject"`
	StrictAccept float64 `yaml:"strict_accept"`
}

// PenaltyConfig holds the per-severity confidence deductions.
type PenaltyConfig struct {
	Critical float64 `yaml:"critical"`
	Warning  float64 `yaml:"warning"`
	Info     float64 `yaml:"info"`
}

// CheckerConfig holds the rule-checker tunables.
type CheckerConfig struct {
	DisclaimerMarker      string  `yaml:"disclaimer_marker"`
	DisclaimerText        string  `yaml:"disclaimer_text"`
	ClaimOverlapThreshold float64 `yaml:"claim_overlap_threshold"`
	MinAnswerLength       int     `yaml:"min_answer_length"`
	MaxAnswerLength       int     `yaml:"max_answer_length"`
}

// GeneratorConfig selects and configures the external model.
type GeneratorConfig struct {
	Provider    string  `yaml:"provider"` // "openai" | "groq" | "grpc" | "none"
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	APIKey      string  `yaml:"-"` // env only
	GRPCAddr    string  `yaml:"grpc_addr"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// StorageConfig locates the audit database. Empty DBPath disables auditing.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// #endregion types

// #region defaults

// Default returns the production defaults.
func Default() Config {
	t := router.DefaultThresholds()
	p := score.DefaultPenalties()
	c := check.DefaultConfig()
	return Config{
		Thresholds: ThresholdConfig{Accept: t.Accept, HardReject: t.HardReject, StrictAccept: t.StrictAccept},
		Penalties:  PenaltyConfig{Critical: p.Critical, Warning: p.Warning, Info: p.Info},
		Checker: CheckerConfig{
			DisclaimerMarker:      c.DisclaimerMarker,
			DisclaimerText:        c.DisclaimerText,
			ClaimOverlapThreshold: c.ClaimOverlapThreshold,
			MinAnswerLength:       c.MinAnswerLength,
			MaxAnswerLength:       c.MaxAnswerLength,
		},
		Timeout: guard.DefaultTimeout,
		Generator: GeneratorConfig{
			Provider: "openai",
			GRPCAddr: "localhost:50051",
		},
		Storage: StorageConfig{DBPath: "cag_audit.db"},
		Server:  ServerConfig{Addr: ":8080"},
	}
}

// #endregion defaults

// #region load

// Load builds a config from defaults, the optional YAML file at path, and
// environment overrides, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Storage.DBPath = envOr("CAG_DB", c.Storage.DBPath)
	c.Server.Addr = envOr("CAG_ADDR", c.Server.Addr)
	c.Generator.Provider = envOr("CAG_GENERATOR", c.Generator.Provider)
	c.Generator.GRPCAddr = envOr("CAG_GRPC_ADDR", c.Generator.GRPCAddr)
	c.Generator.BaseURL = envOr("CAG_OPENAI_BASE_URL", c.Generator.BaseURL)
	c.Generator.Model = envOr("CAG_MODEL", c.Generator.Model)

	switch c.Generator.Provider {
	case "groq":
		c.Generator.APIKey = os.Getenv("GROQ_API_KEY")
	default:
		c.Generator.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if v := os.Getenv("CAG_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("CAG_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	return nil
}

// #endregion load

// #region validate

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	var errs []error
	t := c.Thresholds
	if !inUnit(t.Accept) || !inUnit(t.HardReject) || !inUnit(t.StrictAccept) {
		errs = append(errs, errors.New("thresholds must be within [0,1]"))
	}
	if t.HardReject >= t.Accept {
		errs = append(errs, fmt.Errorf("hard_reject %.2f must be below accept %.2f", t.HardReject, t.Accept))
	}
	if t.StrictAccept < t.Accept {
		errs = append(errs, fmt.Errorf("strict_accept %.2f must not be below accept %.2f", t.StrictAccept, t.Accept))
	}
	p := c.Penalties
	if !inUnit(p.Critical) || !inUnit(p.Warning) || !inUnit(p.Info) {
		errs = append(errs, errors.New("penalties must be within [0,1]"))
	}
	if c.Timeout <= 0 {
		errs = append(errs, errors.New("timeout must be positive"))
	}
	if !inUnit(c.Checker.ClaimOverlapThreshold) {
		errs = append(errs, errors.New("claim_overlap_threshold must be within [0,1]"))
	}
	switch c.Generator.Provider {
	case "openai", "groq", "grpc", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown generator provider %q", c.Generator.Provider))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func inUnit(v float64) bool {
	return v >= 0 && v <= 1
}

// #endregion validate

// #region conversions

// CheckConfig converts to the checker's configuration.
func (c Config) CheckConfig() check.Config {
	return check.Config{
		DisclaimerMarker:      c.Checker.DisclaimerMarker,
		DisclaimerText:        c.Checker.DisclaimerText,
		ClaimOverlapThreshold: c.Checker.ClaimOverlapThreshold,
		MinAnswerLength:       c.Checker.MinAnswerLength,
		MaxAnswerLength:       c.Checker.MaxAnswerLength,
	}
}

// RouterThresholds converts to the router's thresholds.
func (c Config) RouterThresholds() router.Thresholds {
	return router.Thresholds{
		Accept:       c.Thresholds.Accept,
		HardReject:   c.Thresholds.HardReject,
		StrictAccept: c.Thresholds.StrictAccept,
	}
}

// ScorePenalties converts to the scorer's penalties.
func (c Config) ScorePenalties() score.Penalties {
	return score.Penalties{
		Critical: c.Penalties.Critical,
		Warning:  c.Penalties.Warning,
		Info:     c.Penalties.Info,
	}
}

// #endregion conversions

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers

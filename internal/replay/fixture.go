package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/cag-verifier/internal/check"
	"github.com/danielpatrickdp/cag-verifier/internal/generate"
	"github.com/danielpatrickdp/cag-verifier/internal/pipeline"
	"github.com/danielpatrickdp/cag-verifier/internal/router"
	"github.com/danielpatrickdp/cag-verifier/internal/score"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string        `json:"description"`
	Config      FixtureConfig `json:"config"`
	Cases       []FixtureCase `json:"cases"`
}

// FixtureConfig overrides pipeline tunables. Zero values keep the defaults.
type FixtureConfig struct {
	Accept                float64 `json:"accept"`
	HardReject            float64 `json:"hard_reject"`
	StrictAccept          float64 `json:"strict_accept"`
	CriticalPenalty       float64 `json:"critical_penalty"`
	WarningPenalty        float64 `json:"warning_penalty"`
	InfoPenalty           float64 `json:"info_penalty"`
	ClaimOverlapThreshold float64 `json:"claim_overlap_threshold"`
	MinAnswerLength       int     `json:"min_answer_length"`
	TimeoutMs             int     `json:"timeout_ms"`
}

// FixtureCase is one recorded request with the generator output it saw.
type FixtureCase struct {
	Name     string           `json:"name"`
	Mode     string           `json:"mode"` // "verify" (default) | "answer"
	Request  pipeline.Request `json:"request"`
	Replies  []generate.Reply `json:"replies"`
	Expected FixtureExpected  `json:"expected"`
}

// FixtureExpected lists the outcome fields a case asserts. Nil pointers are
// not checked.
type FixtureExpected struct {
	Decision      string `json:"decision"`
	RequiresHuman *bool  `json:"requires_human,omitempty"`
	Revisions     *int   `json:"revisions,omitempty"`
	Stages        *int   `json:"stages,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	for i, c := range f.Cases {
		if c.Expected.Decision == "" {
			continue
		}
		if _, err := router.ParseDecision(c.Expected.Decision); err != nil {
			return nil, fmt.Errorf("fixture %s case %d (%s): %w", path, i, c.Name, err)
		}
	}
	return &f, nil
}

// ToCheckConfig applies overrides to the default checker configuration.
func (fc *FixtureConfig) ToCheckConfig() check.Config {
	cfg := check.DefaultConfig()
	if fc.ClaimOverlapThreshold > 0 {
		cfg.ClaimOverlapThreshold = fc.ClaimOverlapThreshold
	}
	if fc.MinAnswerLength > 0 {
		cfg.MinAnswerLength = fc.MinAnswerLength
	}
	return cfg
}

// ToThresholds applies overrides to the default router thresholds.
func (fc *FixtureConfig) ToThresholds() router.Thresholds {
	t := router.DefaultThresholds()
	if fc.Accept > 0 {
		t.Accept = fc.Accept
	}
	if fc.HardReject > 0 {
		t.HardReject = fc.HardReject
	}
	if fc.StrictAccept > 0 {
		t.StrictAccept = fc.StrictAccept
	}
	return t
}

// ToPenalties applies overrides to the default scorer penalties.
func (fc *FixtureConfig) ToPenalties() score.Penalties {
	p := score.DefaultPenalties()
	if fc.CriticalPenalty > 0 {
		p.Critical = fc.CriticalPenalty
	}
	if fc.WarningPenalty > 0 {
		p.Warning = fc.WarningPenalty
	}
	if fc.InfoPenalty > 0 {
		p.Info = fc.InfoPenalty
	}
	return p
}

// #endregion fixture-loader

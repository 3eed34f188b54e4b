// Package replay runs recorded gate scenarios against the current gate
// implementation and reports expectation mismatches. Fixtures are plain
// JSON so other implementations of the same gate can be checked against
// identical inputs.
package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spiralsafe/qrbridge/pkg/gate"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description string            `json:"description"`
	Config      FixtureGateConfig `json:"config"`
	Cases       []FixtureCase     `json:"cases"`
}

// FixtureGateConfig mirrors gate.Config with JSON tags. A zero-value
// config block means "use the default threshold table".
type FixtureGateConfig struct {
	KENLThreshold       float64 `json:"kenl_threshold"`
	AWIThreshold        float64 `json:"awi_threshold"`
	ATOMThreshold       float64 `json:"atom_threshold"`
	SAIFThreshold       float64 `json:"saif_threshold"`
	SPIRALThreshold     float64 `json:"spiral_threshold"`
	ProductionThreshold float64 `json:"production_threshold"`
	SnapInThreshold     float64 `json:"snap_in_threshold"`
	EmergencyLabel      string  `json:"emergency_label"`
	CoherenceLabel      string  `json:"coherence_label"`
}

// FixtureCase is one recorded scenario: the gate context plus the outcome
// the recording produced.
type FixtureCase struct {
	CaseID   string          `json:"case_id"`
	Context  FixtureContext  `json:"context"`
	Expected FixtureExpected `json:"expected"`
}

// FixtureContext mirrors gate.Context with JSON tags.
type FixtureContext struct {
	CoherenceScore float64  `json:"coherence_score"`
	HasIntent      bool     `json:"has_intent"`
	HasRollback    bool     `json:"has_rollback"`
	IsProduction   bool     `json:"is_production"`
	Labels         []string `json:"labels"`
}

// FixtureExpected captures the recorded outcome. FailureReason is only
// compared when non-empty.
type FixtureExpected struct {
	ValidationResult bool     `json:"validation_result"`
	PhasesPassed     []string `json:"phases_passed"`
	FailureReason    string   `json:"failure_reason,omitempty"`
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
	return &f, nil
}

// ToGateConfig converts a FixtureGateConfig to a domain gate.Config. The
// zero value maps to the default table so hand-written fixtures can omit
// the block entirely.
func (fc FixtureGateConfig) ToGateConfig() gate.Config {
	if fc == (FixtureGateConfig{}) {
		return gate.DefaultConfig()
	}
	return gate.Config{
		KENLThreshold:       fc.KENLThreshold,
		AWIThreshold:        fc.AWIThreshold,
		ATOMThreshold:       fc.ATOMThreshold,
		SAIFThreshold:       fc.SAIFThreshold,
		SPIRALThreshold:     fc.SPIRALThreshold,
		ProductionThreshold: fc.ProductionThreshold,
		SnapInThreshold:     fc.SnapInThreshold,
		EmergencyLabel:      fc.EmergencyLabel,
		CoherenceLabel:      fc.CoherenceLabel,
	}
}

// FromGateConfig converts a domain gate.Config into its fixture mirror.
func FromGateConfig(c gate.Config) FixtureGateConfig {
	return FixtureGateConfig{
		KENLThreshold:       c.KENLThreshold,
		AWIThreshold:        c.AWIThreshold,
		ATOMThreshold:       c.ATOMThreshold,
		SAIFThreshold:       c.SAIFThreshold,
		SPIRALThreshold:     c.SPIRALThreshold,
		ProductionThreshold: c.ProductionThreshold,
		SnapInThreshold:     c.SnapInThreshold,
		EmergencyLabel:      c.EmergencyLabel,
		CoherenceLabel:      c.CoherenceLabel,
	}
}

// ToContext converts a FixtureContext to a domain gate.Context.
func (fc FixtureContext) ToContext() gate.Context {
	return gate.Context{
		CoherenceScore: fc.CoherenceScore,
		HasIntent:      fc.HasIntent,
		HasRollback:    fc.HasRollback,
		IsProduction:   fc.IsProduction,
		Labels:         fc.Labels,
	}
}

// WriteFixture serializes a fixture with indentation for hand editing.
func WriteFixture(f Fixture, path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// #endregion fixture-loader

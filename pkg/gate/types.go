package gate

import (
	"encoding/json"
	"fmt"
)

// #region phase

// Phase identifies one checkpoint in the fixed five-stage progression.
// The declaration order is the evaluation order; there is no sixth value
// and callers must never construct one.
type Phase int

const (
	// KENL — Knowledge: the circuit definition exists.
	KENL Phase = iota
	// AWI — Intent: the purpose is documented.
	AWI
	// ATOM — Execution: the circuit runs correctly.
	ATOM
	// SAIF — Assessment: results match theory.
	SAIF
	// SPIRAL — Learning: insights are captured.
	SPIRAL
)

var phaseNames = [...]string{"KENL", "AWI", "ATOM", "SAIF", "SPIRAL"}

// PhaseOrder returns the five phases in evaluation order.
func PhaseOrder() []Phase {
	return []Phase{KENL, AWI, ATOM, SAIF, SPIRAL}
}

// ParsePhase resolves a phase name. Unknown names are a data error, not a
// panic: they reach us from persisted trail lines and fixtures.
func ParsePhase(name string) (Phase, error) {
	for i, n := range phaseNames {
		if n == name {
			return Phase(i), nil
		}
	}
	return 0, fmt.Errorf("unknown phase %q", name)
}

func (p Phase) valid() bool {
	return p >= KENL && p <= SPIRAL
}

// String returns the canonical phase name.
func (p Phase) String() string {
	if !p.valid() {
		return fmt.Sprintf("Phase(%d)", int(p))
	}
	return phaseNames[p]
}

// MarshalJSON encodes the phase by name.
func (p Phase) MarshalJSON() ([]byte, error) {
	if !p.valid() {
		return nil, fmt.Errorf("cannot marshal invalid phase %d", int(p))
	}
	return json.Marshal(phaseNames[p])
}

// UnmarshalJSON decodes a phase from its name.
func (p *Phase) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("phase: %w", err)
	}
	parsed, err := ParsePhase(name)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// #endregion phase

// #region context

// Context carries everything a single gate evaluation needs. It is built
// per call and never persisted; Labels is an unordered set consulted only
// for membership.
type Context struct {
	CoherenceScore float64
	HasIntent      bool
	HasRollback    bool
	IsProduction   bool
	Labels         []string
}

func (c Context) hasLabel(label string) bool {
	for _, l := range c.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// #endregion context

// #region result

// Result is the verdict for one (phase, context) evaluation.
// Reason always names the phase-threshold label on threshold failures so
// downstream consumers can pattern-match without re-deriving gate logic.
// EscapedVia is set only when an override label fired.
type Result struct {
	Phase      Phase
	Passed     bool
	Reason     string
	EscapedVia string
}

// #endregion result

// #region config

// Override label names. Emergency is the full bypass and always wins when
// both labels are present; coherence bypasses thresholds and flags only.
const (
	EmergencyOverrideLabel = "emergency-override"
	CoherenceOverrideLabel = "coherence-override"
)

// Config is the canonical threshold table. There is exactly one of these
// per Gate and it never changes after construction; the historical drift
// between the analysis-side and test-side tables (ATOM 59.5 vs 60) is
// resolved here in favor of the exact integer 60.
type Config struct {
	KENLThreshold   float64
	AWIThreshold    float64
	ATOMThreshold   float64
	SAIFThreshold   float64
	SPIRALThreshold float64

	// ProductionThreshold replaces SAIFThreshold when the context is
	// flagged production.
	ProductionThreshold float64

	// SnapInThreshold is the base threshold B shared with trail
	// aggregation ("snap-in" = mean coherence >= B).
	SnapInThreshold float64

	// Override labels, renameable per deployment.
	EmergencyLabel string
	CoherenceLabel string
}

// DefaultConfig returns the canonical table: KENL and AWI derived from the
// base threshold (0.4x and 0.6x of 70), ATOM pinned at 60, SAIF and SPIRAL
// at the base, production at 85.
func DefaultConfig() Config {
	const snapIn = 70
	return Config{
		KENLThreshold:       snapIn * 0.4,
		AWIThreshold:        snapIn * 0.6,
		ATOMThreshold:       60,
		SAIFThreshold:       snapIn,
		SPIRALThreshold:     snapIn,
		ProductionThreshold: 85,
		SnapInThreshold:     snapIn,
		EmergencyLabel:      EmergencyOverrideLabel,
		CoherenceLabel:      CoherenceOverrideLabel,
	}
}

// Threshold returns the non-production score requirement for a phase.
func (c Config) Threshold(p Phase) float64 {
	switch p {
	case KENL:
		return c.KENLThreshold
	case AWI:
		return c.AWIThreshold
	case ATOM:
		return c.ATOMThreshold
	case SAIF:
		return c.SAIFThreshold
	case SPIRAL:
		return c.SPIRALThreshold
	}
	panic(fmt.Sprintf("gate: threshold lookup for invalid phase %d", int(p)))
}

// #endregion config

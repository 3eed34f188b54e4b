package trail

import (
	"fmt"
	"path/filepath"

	"github.com/spiralsafe/qrbridge/pkg/coherence"
	"github.com/spiralsafe/qrbridge/pkg/gate"
)

// #region record

// ValidationRecord is one appended line of the audit trail. Records are
// immutable once written; the trail is append-only and nothing in this
// package mutates or deletes lines.
//
// ExecutionResult feeds feature analysis but is not part of the persisted
// line format, hence the json:"-".
type ValidationRecord struct {
	AtomTag            string            `json:"atomTag"`
	CircuitName        string            `json:"circuitName"`
	MinecraftSchematic *string           `json:"minecraftSchematic"`
	QiskitCircuit      *string           `json:"qiskitCircuit"`
	TheoreticalClaim   string            `json:"theoreticalClaim"`
	ValidationResult   bool              `json:"validationResult"`
	Coherence          coherence.Metrics `json:"coherence"`
	PhasesPassed       []gate.Phase      `json:"phasesPassed"`
	Timestamp          string            `json:"timestamp"`

	ExecutionResult string `json:"-"`
}

// Validate checks the record invariants before it is persisted:
// a non-empty atom tag, phasesPassed forming a contiguous prefix of the
// phase order, and validationResult true exactly when all five passed.
func (r ValidationRecord) Validate() error {
	if r.AtomTag == "" {
		return fmt.Errorf("validation record: atom tag required")
	}
	order := gate.PhaseOrder()
	if len(r.PhasesPassed) > len(order) {
		return fmt.Errorf("validation record: %d phases passed, only %d exist", len(r.PhasesPassed), len(order))
	}
	for i, p := range r.PhasesPassed {
		if p != order[i] {
			return fmt.Errorf("validation record: phasesPassed is not a contiguous prefix (index %d holds %s)", i, p)
		}
	}
	if r.ValidationResult != (len(r.PhasesPassed) == len(order)) {
		return fmt.Errorf("validation record: validationResult %v disagrees with %d/%d phases passed",
			r.ValidationResult, len(r.PhasesPassed), len(order))
	}
	return nil
}

// #endregion record

// #region health

// HealthReport aggregates every record in the trail.
type HealthReport struct {
	TotalValidations  int            `json:"totalValidations"`
	AverageCoherence  float64        `json:"averageCoherence"`
	SnapInAchieved    bool           `json:"snapInAchieved"`
	PhaseDistribution map[string]int `json:"phaseDistribution"`
}

func emptyHealthReport() HealthReport {
	dist := make(map[string]int, len(gate.PhaseOrder()))
	for _, p := range gate.PhaseOrder() {
		dist[p.String()] = 0
	}
	return HealthReport{PhaseDistribution: dist}
}

// #endregion health

// #region config

// DefaultPath is the trail location relative to the working directory.
var DefaultPath = filepath.Join(".atom-trail", "quantum-circuits.jsonl")

// Config locates the trail and fixes the snap-in threshold used by
// aggregation.
type Config struct {
	Path            string
	SnapInThreshold float64
}

// DefaultConfig returns the standard trail path with the base threshold.
func DefaultConfig() Config {
	return Config{
		Path:            DefaultPath,
		SnapInThreshold: 70,
	}
}

// #endregion config

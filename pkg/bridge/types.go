package bridge

import (
	"time"

	"github.com/spiralsafe/qrbridge/pkg/coherence"
	"github.com/spiralsafe/qrbridge/pkg/gate"
	"github.com/spiralsafe/qrbridge/pkg/trail"
)

// #region collaborators

// FeatureSource turns free-text circuit evidence into coherence metrics.
type FeatureSource interface {
	Extract(description, claim, result string) coherence.Metrics
}

// TagSource mints the atom tag for a new validation record.
type TagSource interface {
	Tag(circuitName string) string
}

// Recorder receives each persisted record for secondary indexing. The
// trail stays the source of truth; a Recorder error surfaces to the
// caller but the trail line is already written.
type Recorder interface {
	RecordValidation(rec trail.ValidationRecord, contributor string) error
}

// #endregion collaborators

// #region request

// Request describes one circuit validation. MinecraftSchematic and
// QiskitCircuit are optional; when both are present the qiskit source is
// used as the analysis description.
type Request struct {
	CircuitName        string
	MinecraftSchematic *string
	QiskitCircuit      *string
	TheoreticalClaim   string
	ExecutionResult    string
	IsProduction       bool
	Labels             []string
}

// #endregion request

// #region outcome

// Outcome pairs the persisted record with the per-phase gate verdicts
// that produced it.
type Outcome struct {
	Record  trail.ValidationRecord
	Results []gate.Result
}

// FailureReason returns the reason of the first failed phase, or the
// empty string when every phase passed.
func (o Outcome) FailureReason() string {
	for _, r := range o.Results {
		if !r.Passed {
			return r.Reason
		}
	}
	return ""
}

// #endregion outcome

// #region config

// Config wires the gate thresholds, trail location, and attribution for
// a bridge.
type Config struct {
	Gate        gate.Config
	Trail       trail.Config
	Contributor string
}

// DefaultConfig returns the stock thresholds and trail path with no
// contributor attribution.
func DefaultConfig() Config {
	return Config{
		Gate:  gate.DefaultConfig(),
		Trail: trail.DefaultConfig(),
	}
}

// Options carries optional collaborators. Nil fields fall back to the
// built-in implementations; a nil Recorder disables ledger indexing.
type Options struct {
	Features FeatureSource
	Tags     TagSource
	Recorder Recorder
	Clock    func() time.Time
}

// #endregion config

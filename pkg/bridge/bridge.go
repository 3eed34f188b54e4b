package bridge

// #region imports
import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spiralsafe/qrbridge/internal/analysis"
	"github.com/spiralsafe/qrbridge/internal/atomtag"
	"github.com/spiralsafe/qrbridge/pkg/gate"
	"github.com/spiralsafe/qrbridge/pkg/trail"
)

// #endregion

// #region bridge-struct

// Bridge is the top-level coordinator for coherence analysis, gate
// evaluation, trail persistence, and ledger indexing.
type Bridge struct {
	config   Config
	gate     *gate.Gate
	trail    *trail.Trail
	features FeatureSource
	tags     TagSource
	recorder Recorder
	now      func() time.Time
}

// #endregion

// #region constructor

// New creates a fully wired bridge. A zero-value cfg.Gate falls back to
// the stock thresholds; the trail applies its own path and snap-in
// defaults.
func New(cfg Config, opts Options) *Bridge {
	if cfg.Gate == (gate.Config{}) {
		cfg.Gate = gate.DefaultConfig()
	}

	features := opts.Features
	if features == nil {
		features = analysis.NewExtractor()
	}
	tags := opts.Tags
	if tags == nil {
		tags = atomtag.NewGenerator()
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	return &Bridge{
		config:   cfg,
		gate:     gate.New(cfg.Gate),
		trail:    trail.New(cfg.Trail),
		features: features,
		tags:     tags,
		recorder: opts.Recorder,
		now:      now,
	}
}

// Config returns the configuration the bridge was built with.
func (b *Bridge) Config() Config {
	return b.config
}

// TrailPath returns the location of the backing trail file.
func (b *Bridge) TrailPath() string {
	return b.trail.Path()
}

// #endregion

// #region validate

// Validate runs one circuit through the pipeline and appends the outcome
// to the trail. A gate stop is data, not an error: the returned record
// carries the partial phase list and ValidationResult false. Errors are
// reserved for invalid records and persistence failures.
func (b *Bridge) Validate(req Request) (Outcome, error) {
	metrics := b.features.Extract(describe(req), req.TheoreticalClaim, req.ExecutionResult)

	ctx := gate.Context{
		CoherenceScore: metrics.Score,
		HasIntent:      strings.TrimSpace(req.TheoreticalClaim) != "",
		HasRollback:    strings.TrimSpace(req.ExecutionResult) != "",
		IsProduction:   req.IsProduction,
		Labels:         req.Labels,
	}
	results := b.gate.EvaluateSequence(ctx)
	passed := gate.PassedPhases(results)

	rec := trail.ValidationRecord{
		AtomTag:            b.tags.Tag(req.CircuitName),
		CircuitName:        req.CircuitName,
		MinecraftSchematic: req.MinecraftSchematic,
		QiskitCircuit:      req.QiskitCircuit,
		TheoreticalClaim:   req.TheoreticalClaim,
		ValidationResult:   len(passed) == len(gate.PhaseOrder()),
		Coherence:          metrics,
		PhasesPassed:       passed,
		Timestamp:          b.now().UTC().Format(time.RFC3339Nano),
		ExecutionResult:    req.ExecutionResult,
	}
	out := Outcome{Record: rec, Results: results}

	if err := rec.Validate(); err != nil {
		return Outcome{}, err
	}
	if err := b.trail.Append(rec); err != nil {
		return Outcome{}, fmt.Errorf("append trail: %w", err)
	}

	log.Printf("[BRIDGE] %s circuit=%q score=%.1f phases=%d/%d result=%v",
		rec.AtomTag, rec.CircuitName, metrics.Score, len(passed), len(gate.PhaseOrder()), rec.ValidationResult)

	if b.recorder != nil {
		if err := b.recorder.RecordValidation(rec, b.config.Contributor); err != nil {
			return out, fmt.Errorf("ledger record: %w", err)
		}
	}
	return out, nil
}

// describe picks the analysis description from the request sources:
// qiskit circuit first, then the schematic, then empty.
func describe(req Request) string {
	if req.QiskitCircuit != nil && *req.QiskitCircuit != "" {
		return *req.QiskitCircuit
	}
	if req.MinecraftSchematic != nil && *req.MinecraftSchematic != "" {
		return *req.MinecraftSchematic
	}
	return ""
}

// #endregion

// #region health

// Health aggregates every record in the trail.
func (b *Bridge) Health() (trail.HealthReport, error) {
	return b.trail.Aggregate()
}

// #endregion

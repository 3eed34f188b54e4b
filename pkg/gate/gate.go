// Package gate implements the five-phase sequential gate validator.
//
// Evaluation always proceeds KENL → AWI → ATOM → SAIF → SPIRAL and stops at
// the first failure. Two escape hatches bypass the per-phase rules: the
// emergency override (absolute precedence, passes everything) and the
// coherence override (passes thresholds and flag checks). Both are plain
// label-membership tests on the caller-supplied context.
package gate

import "fmt"

// #region gate

// Gate evaluates phases against an immutable threshold table.
type Gate struct {
	config Config
}

// New creates a gate with the given configuration.
func New(config Config) *Gate {
	return &Gate{config: config}
}

// Config returns the threshold table the gate was built with.
func (g *Gate) Config() Config {
	return g.config
}

// #endregion gate

// #region evaluate

// Evaluate checks one phase against the context.
//
// Order: emergency override, then coherence override, then the phase rule.
// Overrides bypass every phase-specific requirement including the boolean
// flags. Phase must be one of the five declared values; anything else is a
// caller bug and panics.
func (g *Gate) Evaluate(phase Phase, ctx Context) Result {
	if !phase.valid() {
		panic(fmt.Sprintf("gate: evaluate called with invalid phase %d", int(phase)))
	}

	if ctx.hasLabel(g.config.EmergencyLabel) {
		return Result{Phase: phase, Passed: true, Reason: "Emergency override", EscapedVia: g.config.EmergencyLabel}
	}
	if ctx.hasLabel(g.config.CoherenceLabel) {
		return Result{Phase: phase, Passed: true, Reason: "Coherence override", EscapedVia: g.config.CoherenceLabel}
	}

	switch phase {
	case KENL:
		if r, ok := g.thresholdCheck(phase, ctx, "KENL"); !ok {
			return r
		}
		return Result{Phase: phase, Passed: true, Reason: "Knowledge context verified"}

	case AWI:
		if !ctx.HasIntent {
			return Result{Phase: phase, Reason: "Intent documentation missing"}
		}
		if r, ok := g.thresholdCheck(phase, ctx, "AWI"); !ok {
			return r
		}
		return Result{Phase: phase, Passed: true, Reason: "Intent documented and coherent"}

	case ATOM:
		if r, ok := g.thresholdCheck(phase, ctx, "ATOM"); !ok {
			return r
		}
		return Result{Phase: phase, Passed: true, Reason: "Execution gate passed"}

	case SAIF:
		threshold, label := g.config.SAIFThreshold, "SAIF"
		if ctx.IsProduction {
			threshold, label = g.config.ProductionThreshold, "PRODUCTION"
		}
		if ctx.CoherenceScore < threshold {
			return Result{Phase: phase, Reason: failReason(ctx.CoherenceScore, threshold, label)}
		}
		return Result{Phase: phase, Passed: true, Reason: "SNAP-IN ACHIEVED"}

	case SPIRAL:
		if !ctx.HasRollback {
			return Result{Phase: phase, Reason: "Rollback plan missing for learning gate"}
		}
		if r, ok := g.thresholdCheck(phase, ctx, "SPIRAL"); !ok {
			return r
		}
		return Result{Phase: phase, Passed: true, Reason: "Ready for next cycle"}
	}

	panic(fmt.Sprintf("gate: evaluate called with invalid phase %d", int(phase)))
}

// thresholdCheck applies the non-production score requirement for a phase.
// ok=false carries the failing result.
func (g *Gate) thresholdCheck(phase Phase, ctx Context, label string) (Result, bool) {
	threshold := g.config.Threshold(phase)
	if ctx.CoherenceScore < threshold {
		return Result{Phase: phase, Reason: failReason(ctx.CoherenceScore, threshold, label)}, false
	}
	return Result{}, true
}

func failReason(score, threshold float64, label string) string {
	return fmt.Sprintf("Coherence %g%% < %g%% (%s threshold)", score, threshold, label)
}

// #endregion evaluate

// #region sequence

// EvaluateSequence runs the phases in fixed order against one context and
// stops after the first failure. The returned slice holds every evaluated
// result, including the failing one; no later phase is attempted once a
// phase fails, even if it would independently pass.
func (g *Gate) EvaluateSequence(ctx Context) []Result {
	results := make([]Result, 0, len(phaseNames))
	for _, phase := range PhaseOrder() {
		r := g.Evaluate(phase, ctx)
		results = append(results, r)
		if !r.Passed {
			break
		}
	}
	return results
}

// PassedPhases extracts the contiguous passing prefix from sequence
// results. This is what audit records persist as phasesPassed.
func PassedPhases(results []Result) []Phase {
	phases := make([]Phase, 0, len(results))
	for _, r := range results {
		if !r.Passed {
			break
		}
		phases = append(phases, r.Phase)
	}
	return phases
}

// #endregion sequence

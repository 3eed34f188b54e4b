package replay

import (
	"fmt"

	"github.com/spiralsafe/qrbridge/pkg/gate"
)

// #region types

// CaseResult captures the outcome of replaying one case.
type CaseResult struct {
	CaseID  string
	Matched bool

	// Mismatches holds one line per diverging expectation. Empty when
	// Matched.
	Mismatches []string

	// Actual gate output for the case.
	Results          []gate.Result
	PhasesPassed     []gate.Phase
	ValidationResult bool
	FailureReason    string // reason of the failing phase, empty on full pass
}

// Summary provides aggregate stats from a replay run.
type Summary struct {
	TotalCases int
	Matched    int
	Mismatched int
}

// #endregion types

// #region run

// Run replays every case through a gate built from the fixture config and
// compares the outcomes to the recorded expectations.
func Run(f *Fixture) []CaseResult {
	g := gate.New(f.Config.ToGateConfig())
	results := make([]CaseResult, 0, len(f.Cases))
	for _, c := range f.Cases {
		results = append(results, runCase(g, c))
	}
	return results
}

func runCase(g *gate.Gate, c FixtureCase) CaseResult {
	seq := g.EvaluateSequence(c.Context.ToContext())
	passed := gate.PassedPhases(seq)

	r := CaseResult{
		CaseID:           c.CaseID,
		Results:          seq,
		PhasesPassed:     passed,
		ValidationResult: len(passed) == len(gate.PhaseOrder()),
	}
	if !r.ValidationResult {
		r.FailureReason = seq[len(seq)-1].Reason
	}

	if r.ValidationResult != c.Expected.ValidationResult {
		r.Mismatches = append(r.Mismatches,
			fmt.Sprintf("validation_result: got %v, want %v", r.ValidationResult, c.Expected.ValidationResult))
	}
	if got, want := phaseNames(passed), c.Expected.PhasesPassed; !equalNames(got, want) {
		r.Mismatches = append(r.Mismatches,
			fmt.Sprintf("phases_passed: got %v, want %v", got, want))
	}
	if c.Expected.FailureReason != "" && r.FailureReason != c.Expected.FailureReason {
		r.Mismatches = append(r.Mismatches,
			fmt.Sprintf("failure_reason: got %q, want %q", r.FailureReason, c.Expected.FailureReason))
	}

	r.Matched = len(r.Mismatches) == 0
	return r
}

// Summarize computes aggregate stats from case results.
func Summarize(results []CaseResult) Summary {
	s := Summary{TotalCases: len(results)}
	for _, r := range results {
		if r.Matched {
			s.Matched++
		} else {
			s.Mismatched++
		}
	}
	return s
}

// #endregion run

// #region helpers

func phaseNames(phases []gate.Phase) []string {
	names := make([]string, len(phases))
	for i, p := range phases {
		names[i] = p.String()
	}
	return names
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// #endregion helpers

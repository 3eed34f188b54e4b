package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/spiralsafe/qrbridge/internal/config"
	"github.com/spiralsafe/qrbridge/internal/replay"
	"github.com/spiralsafe/qrbridge/pkg/gate"
	"github.com/spiralsafe/qrbridge/pkg/trail"
)

// #region main

func main() {
	configPath := flag.String("config", "", "config file (default qrbridge.yaml when present)")
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	trailPath := flag.String("trail", "", "path to trail JSONL (trail mode)")
	flag.Parse()

	if (*fixturePath == "" && *trailPath == "") || (*fixturePath != "" && *trailPath != "") {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json")
		fmt.Fprintln(os.Stderr, "       replay --trail path/to/quantum-circuits.jsonl [--config qrbridge.yaml]")
		os.Exit(2)
	}

	var exitCode int
	if *fixturePath != "" {
		exitCode = runFixtureMode(*fixturePath)
	} else {
		exitCode = runTrailMode(*configPath, *trailPath)
	}
	os.Exit(exitCode)
}

// #endregion main

// #region fixture-mode

func runFixtureMode(path string) int {
	f, err := replay.LoadFixture(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		return 2
	}

	results := replay.Run(f)
	summary := replay.Summarize(results)

	fmt.Printf("%-24s| %-6s| %s\n", "Case", "Status", "Detail")
	fmt.Printf("%-24s+%-7s+%s\n", strings.Repeat("-", 24), "-------", strings.Repeat("-", 40))
	for _, r := range results {
		status, detail := "OK", ""
		if !r.Matched {
			status = "DIFF"
			detail = strings.Join(r.Mismatches, "; ")
		}
		fmt.Printf("%-24s| %-6s| %s\n", r.CaseID, status, detail)
	}

	fmt.Printf("\nSummary: %d total, %d match, %d diverge\n",
		summary.TotalCases, summary.Matched, summary.Mismatched)

	if summary.Mismatched > 0 {
		return 1
	}
	return 0
}

// #endregion fixture-mode

// #region trail-mode

func runTrailMode(configPath, trailPath string) int {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 2
	}
	cfg.Trail.Path = trailPath

	records, err := trail.New(cfg.TrailConfig()).Records()
	if err != nil {
		fmt.Fprintf(os.Stderr, "read trail: %v\n", err)
		return 2
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stderr, "no trail records to replay")
		return 2
	}

	gateConfig := cfg.GateConfig()
	g := gate.New(gateConfig)
	total := len(gate.PhaseOrder())

	fmt.Printf("%-41s| %-9s| %-9s| %s\n", "Atom", "Persisted", "Replayed", "Match")
	fmt.Printf("%-41s+%-10s+%-10s+%s\n",
		strings.Repeat("-", 41), strings.Repeat("-", 10), strings.Repeat("-", 10), "------")

	diverge := 0
	for _, rec := range records {
		results := g.EvaluateSequence(reconstructContext(rec, gateConfig))
		passed := gate.PassedPhases(results)
		replayedResult := len(passed) == total

		match := "OK"
		if len(passed) != len(rec.PhasesPassed) || replayedResult != rec.ValidationResult {
			match = "DIFF"
			diverge++
		}
		fmt.Printf("%-41s| %4d/%d    | %4d/%d    | %s\n",
			rec.AtomTag, len(rec.PhasesPassed), total, len(passed), total, match)
	}

	fmt.Printf("\nSummary: %d total, %d match, %d diverge\n",
		len(records), len(records)-diverge, diverge)

	if diverge > 0 {
		return 1
	}
	return 0
}

// reconstructContext rebuilds a gate context from what the trail
// persists. Override labels and the production flag are not recorded, so
// records validated with them surface as divergence.
func reconstructContext(rec trail.ValidationRecord, cfg gate.Config) gate.Context {
	total := len(gate.PhaseOrder())

	// The execution result is not persisted. A record that passed SAIF yet
	// stopped at SPIRAL with a score clearing the SPIRAL threshold can
	// only have been missing its rollback plan.
	hasRollback := true
	if len(rec.PhasesPassed) == total-1 && rec.Coherence.Score >= cfg.SPIRALThreshold {
		hasRollback = false
	}

	return gate.Context{
		CoherenceScore: rec.Coherence.Score,
		HasIntent:      strings.TrimSpace(rec.TheoreticalClaim) != "",
		HasRollback:    hasRollback,
	}
}

// #endregion trail-mode

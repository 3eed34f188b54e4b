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
	trailPath := flag.String("trail", "", "trail file (overrides config)")
	last := flag.Int("last", 8, "number of most recent records to export")
	outPath := flag.String("out", "", "output fixture JSON path")
	flag.Parse()

	if *outPath == "" {
		fmt.Fprintln(os.Stderr, "usage: fixture-export --out path/to/fixture.json [--trail path] [--last N] [--config qrbridge.yaml]")
		os.Exit(2)
	}

	if err := run(*configPath, *trailPath, *last, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region export

func run(configPath, trailPath string, last int, outPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if trailPath != "" {
		cfg.Trail.Path = trailPath
	}

	records, err := trail.New(cfg.TrailConfig()).Records()
	if err != nil {
		return fmt.Errorf("read trail: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("no records found in %s", cfg.Trail.Path)
	}
	if len(records) > last {
		records = records[len(records)-last:]
	}

	fmt.Printf("Found %d trail records\n", len(records))

	fixture := buildFixture(records, cfg.GateConfig())
	if err := replay.WriteFixture(fixture, outPath); err != nil {
		return err
	}

	fmt.Printf("Wrote fixture to %s (%d cases)\n", outPath, len(fixture.Cases))
	return nil
}

// #endregion export

// #region build

func buildFixture(records []trail.ValidationRecord, gateConfig gate.Config) replay.Fixture {
	total := len(gate.PhaseOrder())
	cases := make([]replay.FixtureCase, len(records))

	for i, rec := range records {
		names := make([]string, len(rec.PhasesPassed))
		for j, p := range rec.PhasesPassed {
			names[j] = p.String()
		}

		cases[i] = replay.FixtureCase{
			CaseID: rec.AtomTag,
			Context: replay.FixtureContext{
				CoherenceScore: rec.Coherence.Score,
				HasIntent:      strings.TrimSpace(rec.TheoreticalClaim) != "",
				HasRollback:    hasRollback(rec, gateConfig, total),
			},
			Expected: replay.FixtureExpected{
				ValidationResult: rec.ValidationResult,
				PhasesPassed:     names,
			},
		}
	}

	return replay.Fixture{
		Description: fmt.Sprintf("Trail export: %d validation records", len(records)),
		Config:      replay.FromGateConfig(gateConfig),
		Cases:       cases,
	}
}

// hasRollback reconstructs the rollback flag the trail does not persist.
// A record that passed SAIF yet stopped at SPIRAL with a score clearing
// the SPIRAL threshold can only have been missing its rollback plan.
func hasRollback(rec trail.ValidationRecord, cfg gate.Config, total int) bool {
	if len(rec.PhasesPassed) == total-1 && rec.Coherence.Score >= cfg.SPIRALThreshold {
		return false
	}
	return true
}

// #endregion build

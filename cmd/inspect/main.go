package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/spiralsafe/qrbridge/internal/config"
	"github.com/spiralsafe/qrbridge/internal/ledger"
	"github.com/spiralsafe/qrbridge/pkg/gate"
	"github.com/spiralsafe/qrbridge/pkg/trail"
)

// #region main

func main() {
	configPath := flag.String("config", "", "config file (default qrbridge.yaml when present)")
	trailPath := flag.String("trail", "", "trail file (overrides config)")
	dbPath := flag.String("db", "", "ledger file (overrides config)")
	last := flag.Int("last", 20, "show N most recent records")
	atomTag := flag.String("atom", "", "show single atom detail")
	circuit := flag.String("circuit", "", "show ledger state for one circuit")
	contributor := flag.String("contributor", "", "show ledger attribution for one contributor")
	vortex := flag.Bool("vortex", false, "show ledger vortex state")
	jsonOut := flag.Bool("json", false, "output as JSON instead of tables")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}
	if *trailPath != "" {
		cfg.Trail.Path = *trailPath
	}
	if *dbPath != "" {
		cfg.Ledger.Path = *dbPath
	}

	var runErr error
	switch {
	case *atomTag != "":
		runErr = runAtomMode(cfg, *atomTag, *jsonOut)
	case *circuit != "":
		runErr = runCircuitMode(cfg, *circuit, *last, *jsonOut)
	case *contributor != "":
		runErr = runContributorMode(cfg, *contributor, *jsonOut)
	case *vortex:
		runErr = runVortexMode(cfg, *jsonOut)
	default:
		runErr = runListMode(cfg, *last, *jsonOut)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type listRow struct {
	AtomTag          string  `json:"atomTag"`
	CircuitName      string  `json:"circuitName"`
	Score            float64 `json:"score"`
	PhasesPassed     int     `json:"phasesPassed"`
	ValidationResult bool    `json:"validationResult"`
	Timestamp        string  `json:"timestamp"`
}

type listOutput struct {
	Health  trail.HealthReport `json:"health"`
	Records []listRow          `json:"records"`
}

func runListMode(cfg *config.Config, last int, jsonOut bool) error {
	tr := trail.New(cfg.TrailConfig())
	records, err := tr.Records()
	if err != nil {
		return err
	}
	health, err := tr.Aggregate()
	if err != nil {
		return err
	}

	if len(records) > last {
		records = records[len(records)-last:]
	}
	rows := make([]listRow, len(records))
	for i, rec := range records {
		rows[i] = listRow{
			AtomTag:          rec.AtomTag,
			CircuitName:      rec.CircuitName,
			Score:            rec.Coherence.Score,
			PhasesPassed:     len(rec.PhasesPassed),
			ValidationResult: rec.ValidationResult,
			Timestamp:        rec.Timestamp,
		}
	}

	if jsonOut {
		return printJSON(listOutput{Health: health, Records: rows})
	}

	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "no trail records found")
	} else {
		printListTable(rows)
	}
	printHealth(health)
	return nil
}

func printListTable(rows []listRow) {
	total := len(gate.PhaseOrder())
	fmt.Printf("%-41s  %-20s  %6s  %6s  %-8s  %s\n",
		"Atom", "Circuit", "Score", "Phases", "Result", "Time")
	fmt.Printf("%-41s  %-20s  %6s  %6s  %-8s  %s\n",
		strings.Repeat("-", 41), strings.Repeat("-", 20), "------", "------", "--------", "--------------------")

	for _, r := range rows {
		fmt.Printf("%-41s  %-20s  %6.1f  %3d/%d   %-8s  %s\n",
			r.AtomTag, cut(r.CircuitName, 20), r.Score, r.PhasesPassed, total,
			verdict(r.ValidationResult), r.Timestamp)
	}
}

func printHealth(h trail.HealthReport) {
	fmt.Printf("\nTrail health:\n")
	fmt.Printf("  Validations:   %d\n", h.TotalValidations)
	fmt.Printf("  Avg coherence: %.1f%%\n", h.AverageCoherence)
	fmt.Printf("  Snap-in:       %v\n", h.SnapInAchieved)
	fmt.Printf("  Phases:       ")
	for _, p := range gate.PhaseOrder() {
		fmt.Printf(" %s=%d", p, h.PhaseDistribution[p.String()])
	}
	fmt.Println()
}

// #endregion list-mode

// #region atom-mode

func runAtomMode(cfg *config.Config, tag string, jsonOut bool) error {
	records, err := trail.New(cfg.TrailConfig()).Records()
	if err != nil {
		return err
	}
	for _, rec := range records {
		if rec.AtomTag != tag {
			continue
		}
		if jsonOut {
			return printJSON(rec)
		}
		printRecordDetail(rec)
		return nil
	}
	return fmt.Errorf("atom %s not found in %s", tag, cfg.Trail.Path)
}

func printRecordDetail(rec trail.ValidationRecord) {
	total := len(gate.PhaseOrder())
	fmt.Printf("Atom:       %s\n", rec.AtomTag)
	fmt.Printf("Circuit:    %s\n", rec.CircuitName)
	fmt.Printf("Claim:      %s\n", rec.TheoreticalClaim)
	fmt.Printf("Result:     %s (%d/%d phases)\n", verdict(rec.ValidationResult), len(rec.PhasesPassed), total)
	fmt.Printf("Timestamp:  %s\n", rec.Timestamp)
	fmt.Printf("Sources:    %s\n", strings.Join(sourceNames(rec), ", "))

	fmt.Printf("\nCoherence:  %.1f%%\n", rec.Coherence.Score)
	fmt.Printf("  Curl:        %.4f\n", rec.Coherence.Curl)
	fmt.Printf("  Divergence:  %.4f\n", rec.Coherence.Divergence)
	fmt.Printf("  Potential:   %.4f\n", rec.Coherence.Potential)
	fmt.Printf("  Entropy:     %.4f\n", rec.Coherence.Entropy)

	fmt.Printf("\nPhases passed:\n")
	for _, p := range rec.PhasesPassed {
		fmt.Printf("  %s\n", p)
	}
}

func sourceNames(rec trail.ValidationRecord) []string {
	var s []string
	if rec.QiskitCircuit != nil {
		s = append(s, "qiskit")
	}
	if rec.MinecraftSchematic != nil {
		s = append(s, "schematic")
	}
	if len(s) == 0 {
		s = append(s, "none")
	}
	return s
}

// #endregion atom-mode

// #region ledger-modes

type circuitOutput struct {
	State ledger.CircuitState `json:"state"`
	Atoms []ledger.AtomRecord `json:"atoms"`
}

func runCircuitMode(cfg *config.Config, circuit string, last int, jsonOut bool) error {
	store, err := openLedger(cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	state, err := store.CircuitState(circuit)
	if err != nil {
		return err
	}
	atoms, err := store.CircuitAtoms(circuit, last)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(circuitOutput{State: state, Atoms: atoms})
	}

	fmt.Printf("Circuit:      %s\n", state.Circuit)
	fmt.Printf("Atoms:        %d\n", state.AtomCount)
	fmt.Printf("Avg score:    %.1f%%\n", state.AverageScore)
	if state.LastSnapIn != "" {
		fmt.Printf("Last snap-in: %s\n", state.LastSnapIn)
	}
	printAtomsTable(atoms)
	return nil
}

type contributorOutput struct {
	Contributor string              `json:"contributor"`
	AtomCount   int64               `json:"atomCount"`
	TotalScore  float64             `json:"totalScore"`
	Atoms       []ledger.AtomRecord `json:"atoms"`
}

func runContributorMode(cfg *config.Config, name string, jsonOut bool) error {
	store, err := openLedger(cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	count, totalScore, err := store.Attribution(name)
	if err != nil {
		return err
	}
	atoms, err := store.ContributorAtoms(name)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(contributorOutput{
			Contributor: name,
			AtomCount:   count,
			TotalScore:  totalScore,
			Atoms:       atoms,
		})
	}

	fmt.Printf("Contributor: %s\n", name)
	fmt.Printf("Atoms:       %d\n", count)
	fmt.Printf("Total score: %.1f\n", totalScore)
	if count > 0 {
		fmt.Printf("Avg score:   %.1f%%\n", totalScore/float64(count))
	}
	printAtomsTable(atoms)
	return nil
}

type vortexOutput struct {
	Vortex          ledger.VortexState    `json:"vortex"`
	EcosystemSnapIn bool                  `json:"ecosystemSnapIn"`
	Circuits        []ledger.CircuitState `json:"circuits"`
}

func runVortexMode(cfg *config.Config, jsonOut bool) error {
	store, err := openLedger(cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	vs, err := store.VortexState()
	if err != nil {
		return err
	}
	snapped, _, err := store.EcosystemSnapIn()
	if err != nil {
		return err
	}
	circuits, err := store.ListCircuits()
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(vortexOutput{Vortex: vs, EcosystemSnapIn: snapped, Circuits: circuits})
	}

	fmt.Printf("Vortex state:\n")
	fmt.Printf("  Total atoms:   %d\n", vs.TotalAtoms)
	fmt.Printf("  Avg coherence: %.1f%%\n", vs.AverageScore)
	fmt.Printf("  Snap-ins:      %d\n", vs.SnapInCount)
	fmt.Printf("  Threshold:     %g%%\n", vs.SnapInThreshold)
	fmt.Printf("  Last update:   %s\n", vs.LastUpdate)
	if snapped {
		fmt.Printf("  Ecosystem:     snap-in achieved\n")
	} else {
		fmt.Printf("  Ecosystem:     below threshold\n")
	}

	if len(circuits) > 0 {
		fmt.Printf("\nCircuits:\n")
		fmt.Printf("%-24s  %6s  %9s  %s\n", "Circuit", "Atoms", "Avg", "Last Snap-In")
		fmt.Printf("%-24s  %6s  %9s  %s\n",
			strings.Repeat("-", 24), "------", "---------", strings.Repeat("-", 41))
		for _, c := range circuits {
			fmt.Printf("%-24s  %6d  %8.1f%%  %s\n",
				cut(c.Circuit, 24), c.AtomCount, c.AverageScore, c.LastSnapIn)
		}
	}
	return nil
}

// openLedger opens an existing ledger for reading. Inspection never
// creates the file.
func openLedger(path string) (*ledger.Store, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no ledger at %s (validate --ledger or ledger-rebuild creates one)", path)
	}
	return ledger.NewStore(path)
}

// #endregion ledger-modes

// #region output

func printAtomsTable(atoms []ledger.AtomRecord) {
	if len(atoms) == 0 {
		return
	}
	total := len(gate.PhaseOrder())
	fmt.Printf("\n%-41s  %-20s  %-12s  %6s  %6s  %s\n",
		"Atom", "Circuit", "Contributor", "Score", "Phases", "Time")
	fmt.Printf("%-41s  %-20s  %-12s  %6s  %6s  %s\n",
		strings.Repeat("-", 41), strings.Repeat("-", 20), strings.Repeat("-", 12),
		"------", "------", "--------------------")
	for _, a := range atoms {
		fmt.Printf("%-41s  %-20s  %-12s  %6.1f  %3d/%d   %s\n",
			a.AtomTag, cut(a.Circuit, 20), cut(a.Contributor, 12), a.Score,
			len(a.PhasesPassed), total, a.Timestamp)
	}
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func verdict(ok bool) string {
	if ok {
		return "snap-in"
	}
	return "stopped"
}

func cut(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// #endregion output

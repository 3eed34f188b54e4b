package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/spiralsafe/qrbridge/internal/config"
	"github.com/spiralsafe/qrbridge/internal/ledger"
	"github.com/spiralsafe/qrbridge/internal/printer"
	"github.com/spiralsafe/qrbridge/pkg/bridge"
	"github.com/spiralsafe/qrbridge/pkg/gate"
)

// #region main

type cliArgs struct {
	configPath  string
	name        string
	schematic   string
	qiskit      string
	claim       string
	result      string
	production  bool
	labels      string
	contributor string
	useLedger   bool
	interactive bool
	jsonOut     bool
}

func parseArgs() cliArgs {
	var a cliArgs
	flag.StringVar(&a.configPath, "config", "", "config file (default qrbridge.yaml when present)")
	flag.StringVar(&a.name, "name", "", "circuit name")
	flag.StringVar(&a.schematic, "schematic", "", "minecraft schematic source, or @file to read one")
	flag.StringVar(&a.qiskit, "qiskit", "", "qiskit circuit source, or @file to read one")
	flag.StringVar(&a.claim, "claim", "", "theoretical claim")
	flag.StringVar(&a.result, "result", "", "execution result")
	flag.BoolVar(&a.production, "production", false, "apply the production assessment threshold")
	flag.StringVar(&a.labels, "labels", "", "comma-separated override labels")
	flag.StringVar(&a.contributor, "contributor", "", "ledger attribution (overrides config)")
	flag.BoolVar(&a.useLedger, "ledger", false, "record atoms in the sqlite ledger")
	flag.BoolVar(&a.interactive, "interactive", false, "read circuits from stdin")
	flag.BoolVar(&a.jsonOut, "json", false, "print the persisted record as JSON")
	flag.Parse()
	return a
}

func main() {
	os.Exit(run(parseArgs()))
}

// run returns the process exit code: 0 for snap-in, 1 for a gate stop,
// 2 for usage and operational errors.
func run(a cliArgs) int {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 2
	}
	if a.contributor != "" {
		cfg.Ledger.Contributor = a.contributor
	}
	if a.useLedger {
		cfg.Ledger.Enabled = true
	}

	opts := bridge.Options{}
	if cfg.Ledger.Enabled {
		store, err := ledger.NewStore(cfg.Ledger.Path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open ledger: %v\n", err)
			return 2
		}
		defer store.Close()
		opts.Recorder = store
	}
	b := bridge.New(cfg.BridgeConfig(), opts)

	if a.interactive {
		return runInteractive(b)
	}

	if a.name == "" {
		fmt.Fprintln(os.Stderr, "usage: validate --name \"Bell State\" [--qiskit src|@file] [--schematic src|@file] [--claim text] [--result text] [--production] [--labels a,b] [--ledger] [--json]")
		fmt.Fprintln(os.Stderr, "       validate --interactive")
		return 2
	}

	req := bridge.Request{
		CircuitName:      a.name,
		TheoreticalClaim: a.claim,
		ExecutionResult:  a.result,
		IsProduction:     a.production,
		Labels:           splitLabels(a.labels),
	}
	if a.qiskit != "" {
		src, err := sourceArg(a.qiskit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 2
		}
		req.QiskitCircuit = &src
	}
	if a.schematic != "" {
		src, err := sourceArg(a.schematic)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 2
		}
		req.MinecraftSchematic = &src
	}

	out, err := b.Validate(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}

	if a.jsonOut {
		if err := printJSON(out.Record); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			return 2
		}
	} else {
		printOutcome(out)
	}

	if out.Record.ValidationResult {
		return 0
	}
	return 1
}

// #endregion main

// #region interactive

func runInteractive(b *bridge.Bridge) int {
	fmt.Println("Quantum-Redstone bridge validator ready.")
	fmt.Printf("  Trail: %s\n", b.TrailPath())
	fmt.Println("Enter one circuit per round (empty name or 'quit' to exit):")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		name := promptLine(scanner, "circuit> ")
		if name == "" || name == "quit" || name == "exit" {
			return 0
		}
		qiskit := promptLine(scanner, "qiskit> ")
		claim := promptLine(scanner, "claim> ")
		result := promptLine(scanner, "result> ")

		req := bridge.Request{
			CircuitName:      name,
			TheoreticalClaim: claim,
			ExecutionResult:  result,
		}
		if qiskit != "" {
			req.QiskitCircuit = &qiskit
		}

		out, err := b.Validate(req)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		printOutcome(out)
	}
}

func promptLine(scanner *bufio.Scanner, prompt string) string {
	fmt.Print(prompt)
	if !scanner.Scan() {
		return ""
	}
	return strings.TrimSpace(scanner.Text())
}

// #endregion interactive

// #region output

func printOutcome(out bridge.Outcome) {
	rec := out.Record
	total := len(gate.PhaseOrder())

	printer.Step("Validating %q\n", rec.CircuitName)
	for _, r := range out.Results {
		switch {
		case r.Passed && r.EscapedVia != "":
			printer.Warning("%s gate: %s (via %s)\n", r.Phase, r.Reason, r.EscapedVia)
		case r.Passed:
			printer.Success("%s gate: %s\n", r.Phase, r.Reason)
		default:
			printer.Fail("%s gate: %s\n", r.Phase, r.Reason)
		}
	}

	printer.Println()
	printer.Printf("Atom:      %s\n", rec.AtomTag)
	printer.Printf("Coherence: %.1f%% (curl %.2f, divergence %.2f, potential %.2f, entropy %.2f)\n",
		rec.Coherence.Score, rec.Coherence.Curl, rec.Coherence.Divergence,
		rec.Coherence.Potential, rec.Coherence.Entropy)
	if rec.ValidationResult {
		printer.Success("SNAP-IN achieved: %d/%d phases\n", len(rec.PhasesPassed), total)
	} else {
		printer.Warning("Stopped after %d/%d phases\n", len(rec.PhasesPassed), total)
	}
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

// #endregion output

// #region helpers

// sourceArg resolves a circuit source argument: "@path" reads the file,
// anything else is taken literally.
func sourceArg(arg string) (string, error) {
	if !strings.HasPrefix(arg, "@") {
		return arg, nil
	}
	data, err := os.ReadFile(arg[1:])
	if err != nil {
		return "", fmt.Errorf("read source %s: %w", arg[1:], err)
	}
	return string(data), nil
}

func splitLabels(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	labels := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			labels = append(labels, p)
		}
	}
	return labels
}

// #endregion helpers

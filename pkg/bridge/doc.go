// Package bridge runs the full circuit validation pipeline: coherence
// analysis, five-phase gate evaluation, audit trail persistence, and
// optional ledger indexing.
//
// # Overview
//
// A Bridge accepts a validation Request describing one quantum circuit
// (its name, source representations, theoretical claim, and execution
// result), scores the combined text for coherence, walks the gate
// sequence KENL → AWI → ATOM → SAIF → SPIRAL, and appends the outcome to
// the append-only trail. A gate failure is recorded data, not an error:
// the error path is reserved for persistence problems.
//
// # Pipeline
//
// Feature extraction reads one description string, chosen from the
// request sources in fixed preference order (qiskit circuit first, then
// the minecraft schematic, then empty), plus the claim and execution
// result. The resulting metrics feed the gate context together with the
// request's intent and rollback evidence.
//
// The trail is the source of truth. When a Recorder is wired, each
// record is also folded into the ledger after the trail append succeeds;
// a Recorder failure surfaces as an error but never unwinds the trail
// line.
//
// # Usage Example
//
//	import "github.com/spiralsafe/qrbridge/pkg/bridge"
//
//	b := bridge.New(bridge.DefaultConfig(), bridge.Options{})
//
//	qiskit := "qc = QuantumCircuit(2); qc.h(0); qc.cx(0, 1)"
//	out, err := b.Validate(bridge.Request{
//		CircuitName:      "Bell State",
//		QiskitCircuit:    &qiskit,
//		TheoreticalClaim: "Measurement outcomes are perfectly correlated.",
//		ExecutionResult:  "Observed 00 and 11 in equal proportion.",
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	if !out.Record.ValidationResult {
//		log.Printf("stopped: %s", out.FailureReason())
//	}
//
// Collaborators default to the built-in analyzer and tag generator;
// tests swap in fixed-output implementations through Options.
package bridge

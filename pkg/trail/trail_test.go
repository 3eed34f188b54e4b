package trail

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spiralsafe/qrbridge/pkg/coherence"
	"github.com/spiralsafe/qrbridge/pkg/gate"
)

func tempTrail(t *testing.T) *Trail {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Path = filepath.Join(t.TempDir(), ".atom-trail", "quantum-circuits.jsonl")
	return New(cfg)
}

func makeRecord(tag string, score float64, phases []gate.Phase) ValidationRecord {
	return ValidationRecord{
		AtomTag:          tag,
		CircuitName:      "CNOT Gate",
		TheoreticalClaim: "Controlled-NOT flips target qubit when control is |1>",
		ValidationResult: len(phases) == 5,
		Coherence:        coherence.Metrics{Curl: 0.1, Divergence: 0.2, Potential: 0.8, Entropy: 0.7, Score: score},
		PhasesPassed:     phases,
		Timestamp:        "2026-08-23T12:00:00Z",
	}
}

func TestAggregateMissingFileReturnsZeroReport(t *testing.T) {
	tr := tempTrail(t)
	report, err := tr.Aggregate()
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if report.TotalValidations != 0 || report.AverageCoherence != 0 {
		t.Fatalf("expected zero report, got %+v", report)
	}
	if report.SnapInAchieved {
		t.Fatal("empty trail must not report snap-in")
	}
	for _, p := range gate.PhaseOrder() {
		if report.PhaseDistribution[p.String()] != 0 {
			t.Fatalf("expected zero count for %s", p)
		}
	}
}

func TestAppendCreatesDirAndWritesOneLine(t *testing.T) {
	tr := tempTrail(t)
	if err := tr.Append(makeRecord("ATOM-QR-20260823-AAA-cnot", 80, gate.PhaseOrder())); err != nil {
		t.Fatalf("Append: %v", err)
	}

	data, err := os.ReadFile(tr.Path())
	if err != nil {
		t.Fatalf("read trail: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(lines[0]), &raw); err != nil {
		t.Fatalf("line is not valid JSON: %v", err)
	}
	for _, key := range []string{
		"atomTag", "circuitName", "minecraftSchematic", "qiskitCircuit",
		"theoreticalClaim", "validationResult", "coherence", "phasesPassed", "timestamp",
	} {
		if _, ok := raw[key]; !ok {
			t.Fatalf("line missing key %q: %s", key, lines[0])
		}
	}
	if _, ok := raw["executionResult"]; ok {
		t.Fatal("executionResult must not be persisted")
	}
	if string(raw["minecraftSchematic"]) != "null" {
		t.Fatalf("absent schematic should serialize as null, got %s", raw["minecraftSchematic"])
	}
}

func TestAggregateMeanAndSnapIn(t *testing.T) {
	tr := tempTrail(t)
	scores := []float64{80, 75, 55}
	for i, s := range scores {
		rec := makeRecord("ATOM-QR-20260823-AA"+string(rune('A'+i)), s, gate.PhaseOrder()[:3])
		if err := tr.Append(rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	report, err := tr.Aggregate()
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if report.TotalValidations != 3 {
		t.Fatalf("expected 3 validations, got %d", report.TotalValidations)
	}
	if report.AverageCoherence != 70 {
		t.Fatalf("expected mean 70, got %v", report.AverageCoherence)
	}
	// Mean exactly at the threshold counts as snap-in.
	if !report.SnapInAchieved {
		t.Fatal("mean 70 should achieve snap-in")
	}
}

func TestAggregateBelowSnapIn(t *testing.T) {
	tr := tempTrail(t)
	for _, s := range []float64{60, 65} {
		if err := tr.Append(makeRecord("ATOM-QR-20260823-AAA", s, nil)); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	report, err := tr.Aggregate()
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if report.AverageCoherence != 62.5 {
		t.Fatalf("expected mean 62.5, got %v", report.AverageCoherence)
	}
	if report.SnapInAchieved {
		t.Fatal("mean 62.5 must not achieve snap-in")
	}
}

func TestAggregatePhaseDistribution(t *testing.T) {
	tr := tempTrail(t)
	tr.Append(makeRecord("t1", 80, gate.PhaseOrder()))    // all five
	tr.Append(makeRecord("t2", 65, gate.PhaseOrder()[:3])) // KENL..ATOM
	tr.Append(makeRecord("t3", 30, gate.PhaseOrder()[:1])) // KENL only

	report, err := tr.Aggregate()
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	want := map[string]int{"KENL": 3, "AWI": 2, "ATOM": 2, "SAIF": 1, "SPIRAL": 1}
	for name, count := range want {
		if report.PhaseDistribution[name] != count {
			t.Fatalf("%s: expected %d, got %d", name, count, report.PhaseDistribution[name])
		}
	}
}

func TestAggregateSkipsBlankLines(t *testing.T) {
	tr := tempTrail(t)
	if err := tr.Append(makeRecord("t1", 90, gate.PhaseOrder())); err != nil {
		t.Fatalf("Append: %v", err)
	}
	f, err := os.OpenFile(tr.Path(), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	f.WriteString("\n   \n")
	f.Close()
	tr.Append(makeRecord("t2", 70, gate.PhaseOrder()))

	report, err := tr.Aggregate()
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	if report.TotalValidations != 2 {
		t.Fatalf("blank lines must be skipped, got total %d", report.TotalValidations)
	}
}

func TestAggregateFailsFastOnMalformedLine(t *testing.T) {
	tr := tempTrail(t)
	tr.Append(makeRecord("t1", 90, gate.PhaseOrder()))
	f, _ := os.OpenFile(tr.Path(), os.O_APPEND|os.O_WRONLY, 0644)
	f.WriteString("{not json\n")
	f.Close()
	tr.Append(makeRecord("t2", 70, gate.PhaseOrder()))

	_, err := tr.Aggregate()
	if err == nil {
		t.Fatal("expected error for malformed line")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("error should name line 2, got: %v", err)
	}
}

func TestAggregateRejectsUnknownPhaseName(t *testing.T) {
	tr := tempTrail(t)
	dir := filepath.Dir(tr.Path())
	os.MkdirAll(dir, 0755)
	line := `{"atomTag":"t1","circuitName":"c","minecraftSchematic":null,"qiskitCircuit":null,` +
		`"theoreticalClaim":"","validationResult":false,` +
		`"coherence":{"curl":0,"divergence":0.2,"potential":1,"entropy":1,"score":100},` +
		`"phasesPassed":["VORTEX"],"timestamp":"2026-08-23T12:00:00Z"}`
	if err := os.WriteFile(tr.Path(), []byte(line+"\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := tr.Aggregate(); err == nil {
		t.Fatal("expected error for unknown phase name")
	}
}

func TestRecordsRoundTrip(t *testing.T) {
	tr := tempTrail(t)
	schematic := "hadamard_gate.schematic"
	rec := makeRecord("ATOM-QR-20260823-XYZ-hadamard", 88.5, gate.PhaseOrder())
	rec.MinecraftSchematic = &schematic
	if err := tr.Append(rec); err != nil {
		t.Fatalf("Append: %v", err)
	}

	records, err := tr.Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.AtomTag != rec.AtomTag {
		t.Fatalf("tag mismatch: %s vs %s", got.AtomTag, rec.AtomTag)
	}
	if got.MinecraftSchematic == nil || *got.MinecraftSchematic != schematic {
		t.Fatalf("schematic mismatch: %v", got.MinecraftSchematic)
	}
	if got.QiskitCircuit != nil {
		t.Fatal("absent circuit should stay nil")
	}
	if got.Coherence.Score != 88.5 {
		t.Fatalf("score mismatch: %v", got.Coherence.Score)
	}
	if len(got.PhasesPassed) != 5 {
		t.Fatalf("expected 5 phases, got %d", len(got.PhasesPassed))
	}
}

func TestValidateAcceptsWellFormedRecord(t *testing.T) {
	rec := makeRecord("t1", 80, gate.PhaseOrder()[:3])
	if err := rec.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsNonContiguousPrefix(t *testing.T) {
	rec := makeRecord("t1", 80, []gate.Phase{gate.KENL, gate.ATOM})
	if err := rec.Validate(); err == nil {
		t.Fatal("expected error for non-contiguous phases")
	}
}

func TestValidateRejectsResultMismatch(t *testing.T) {
	rec := makeRecord("t1", 80, gate.PhaseOrder()[:3])
	rec.ValidationResult = true
	if err := rec.Validate(); err == nil {
		t.Fatal("expected error for validationResult disagreeing with phases")
	}
}

func TestValidateRejectsEmptyTag(t *testing.T) {
	rec := makeRecord("", 80, nil)
	if err := rec.Validate(); err == nil {
		t.Fatal("expected error for empty atom tag")
	}
}

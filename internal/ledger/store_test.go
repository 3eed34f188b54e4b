package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spiralsafe/qrbridge/pkg/coherence"
	"github.com/spiralsafe/qrbridge/pkg/gate"
	"github.com/spiralsafe/qrbridge/pkg/trail"
)

func tempDB(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewStore(filepath.Join(dir, "ledger.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func atom(tag, circuit, contributor string, score float64) AtomRecord {
	return AtomRecord{
		AtomTag:      tag,
		Circuit:      circuit,
		Contributor:  contributor,
		Score:        score,
		PhasesPassed: []string{"KENL", "AWI", "ATOM"},
		Timestamp:    "2026-08-23T12:00:00Z",
	}
}

func TestRecordAndGetAtom(t *testing.T) {
	s := tempDB(t)

	in := atom("ATOM-QR-20260823-AAA-cnot", "cnot", "ada", 82.5)
	if err := s.RecordAtom(in); err != nil {
		t.Fatalf("RecordAtom: %v", err)
	}

	got, err := s.GetAtom(in.AtomTag)
	if err != nil {
		t.Fatalf("GetAtom: %v", err)
	}
	if got.Circuit != "cnot" || got.Contributor != "ada" || got.Score != 82.5 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if len(got.PhasesPassed) != 3 || got.PhasesPassed[2] != "ATOM" {
		t.Fatalf("phases mismatch: %v", got.PhasesPassed)
	}
	if got.Timestamp != in.Timestamp {
		t.Fatalf("timestamp mismatch: %s", got.Timestamp)
	}
}

func TestGetAtomNotFound(t *testing.T) {
	s := tempDB(t)
	if _, err := s.GetAtom("missing"); err == nil {
		t.Fatal("expected error for unknown tag")
	}
}

func TestRecordAtomRejectsDuplicateTag(t *testing.T) {
	s := tempDB(t)
	if err := s.RecordAtom(atom("t1", "c", "ada", 50)); err != nil {
		t.Fatalf("RecordAtom: %v", err)
	}
	if err := s.RecordAtom(atom("t1", "c", "ada", 60)); err == nil {
		t.Fatal("expected error for duplicate tag")
	}

	// The failed insert must not touch the aggregates.
	st, err := s.VortexState()
	if err != nil {
		t.Fatalf("VortexState: %v", err)
	}
	if st.TotalAtoms != 1 {
		t.Fatalf("expected 1 atom after rejected duplicate, got %d", st.TotalAtoms)
	}
}

func TestRecordAtomValidation(t *testing.T) {
	s := tempDB(t)
	if err := s.RecordAtom(atom("", "c", "ada", 50)); err == nil {
		t.Fatal("expected error for empty tag")
	}
	if err := s.RecordAtom(atom("t1", "c", "ada", -1)); err == nil {
		t.Fatal("expected error for negative score")
	}
	if err := s.RecordAtom(atom("t2", "c", "ada", 100.5)); err == nil {
		t.Fatal("expected error for score above 100")
	}
}

func TestCircuitStateRollsUp(t *testing.T) {
	s := tempDB(t)
	first := atom("t1", "cnot", "ada", 80)
	first.Timestamp = "2026-08-23T10:00:00Z"
	second := atom("t2", "cnot", "ada", 60)
	second.Timestamp = "2026-08-23T11:00:00Z"
	s.RecordAtom(first)
	s.RecordAtom(second)

	st, err := s.CircuitState("cnot")
	if err != nil {
		t.Fatalf("CircuitState: %v", err)
	}
	if st.AtomCount != 2 {
		t.Fatalf("count: got %d, want 2", st.AtomCount)
	}
	if st.TotalScore != 140 {
		t.Fatalf("total: got %v, want 140", st.TotalScore)
	}
	if st.AverageScore != 70 {
		t.Fatalf("average: got %v, want 70", st.AverageScore)
	}
	// Only the 80-score atom reached the threshold.
	if st.LastSnapIn != "2026-08-23T10:00:00Z" {
		t.Fatalf("last snap-in: got %q", st.LastSnapIn)
	}
}

func TestCircuitStateNotFound(t *testing.T) {
	s := tempDB(t)
	if _, err := s.CircuitState("missing"); err == nil {
		t.Fatal("expected error for unknown circuit")
	}
}

func TestVortexStateEmpty(t *testing.T) {
	s := tempDB(t)
	st, err := s.VortexState()
	if err != nil {
		t.Fatalf("VortexState: %v", err)
	}
	if st.TotalAtoms != 0 || st.AverageScore != 0 || st.SnapInCount != 0 {
		t.Fatalf("expected zero vortex state, got %+v", st)
	}
	if st.SnapInThreshold != 70 {
		t.Fatalf("default threshold: got %v, want 70", st.SnapInThreshold)
	}

	snap, avg, err := s.EcosystemSnapIn()
	if err != nil {
		t.Fatalf("EcosystemSnapIn: %v", err)
	}
	if snap || avg != 0 {
		t.Fatalf("empty ledger must not snap in: %v %v", snap, avg)
	}
}

func TestEcosystemSnapIn(t *testing.T) {
	s := tempDB(t)
	s.RecordAtom(atom("t1", "cnot", "ada", 80))
	s.RecordAtom(atom("t2", "bell", "ada", 70))

	snap, avg, err := s.EcosystemSnapIn()
	if err != nil {
		t.Fatalf("EcosystemSnapIn: %v", err)
	}
	if avg != 75 {
		t.Fatalf("average: got %v, want 75", avg)
	}
	if !snap {
		t.Fatal("mean 75 should snap in at threshold 70")
	}
}

func TestSnapInCount(t *testing.T) {
	s := tempDB(t)
	s.RecordAtom(atom("t1", "c", "ada", 80)) // counts
	s.RecordAtom(atom("t2", "c", "ada", 60)) // does not
	s.RecordAtom(atom("t3", "c", "ada", 70)) // boundary counts

	st, _ := s.VortexState()
	if st.SnapInCount != 2 {
		t.Fatalf("snap-in count: got %d, want 2", st.SnapInCount)
	}
}

func TestSetSnapInThreshold(t *testing.T) {
	s := tempDB(t)
	if err := s.SetSnapInThreshold(90); err != nil {
		t.Fatalf("SetSnapInThreshold: %v", err)
	}
	if err := s.SetSnapInThreshold(101); err == nil {
		t.Fatal("expected error for threshold above 100")
	}

	// 85 no longer counts as a snap-in under the raised threshold.
	s.RecordAtom(atom("t1", "c", "ada", 85))
	st, _ := s.VortexState()
	if st.SnapInThreshold != 90 {
		t.Fatalf("threshold: got %v, want 90", st.SnapInThreshold)
	}
	if st.SnapInCount != 0 {
		t.Fatalf("snap-in count: got %d, want 0", st.SnapInCount)
	}
	cs, _ := s.CircuitState("c")
	if cs.LastSnapIn != "" {
		t.Fatalf("last snap-in should stay empty, got %q", cs.LastSnapIn)
	}
}

func TestContributorAtomsAndAttribution(t *testing.T) {
	s := tempDB(t)
	s.RecordAtom(atom("t1", "cnot", "ada", 80))
	s.RecordAtom(atom("t2", "bell", "ada", 60))
	s.RecordAtom(atom("t3", "bell", "grace", 90))

	atoms, err := s.ContributorAtoms("ada")
	if err != nil {
		t.Fatalf("ContributorAtoms: %v", err)
	}
	if len(atoms) != 2 || atoms[0].AtomTag != "t1" || atoms[1].AtomTag != "t2" {
		t.Fatalf("unexpected trail: %+v", atoms)
	}

	count, avg, err := s.Attribution("ada")
	if err != nil {
		t.Fatalf("Attribution: %v", err)
	}
	if count != 2 || avg != 70 {
		t.Fatalf("attribution: got %d/%v, want 2/70", count, avg)
	}

	count, avg, err = s.Attribution("nobody")
	if err != nil {
		t.Fatalf("Attribution: %v", err)
	}
	if count != 0 || avg != 0 {
		t.Fatalf("unknown contributor: got %d/%v", count, avg)
	}
}

func TestCircuitAtomsLimit(t *testing.T) {
	s := tempDB(t)
	s.RecordAtom(atom("t1", "cnot", "ada", 50))
	s.RecordAtom(atom("t2", "cnot", "ada", 60))
	s.RecordAtom(atom("t3", "cnot", "ada", 70))

	atoms, err := s.CircuitAtoms("cnot", 2)
	if err != nil {
		t.Fatalf("CircuitAtoms: %v", err)
	}
	if len(atoms) != 2 || atoms[0].AtomTag != "t1" || atoms[1].AtomTag != "t2" {
		t.Fatalf("expected first two atoms, got %+v", atoms)
	}
}

func TestListCircuits(t *testing.T) {
	s := tempDB(t)
	s.RecordAtom(atom("t1", "cnot", "ada", 80))
	s.RecordAtom(atom("t2", "bell", "ada", 60))

	states, err := s.ListCircuits()
	if err != nil {
		t.Fatalf("ListCircuits: %v", err)
	}
	if len(states) != 2 {
		t.Fatalf("expected 2 circuits, got %d", len(states))
	}
	if states[0].Circuit != "bell" || states[1].Circuit != "cnot" {
		t.Fatalf("expected name order, got %+v", states)
	}
}

func TestRecordBatchAtomic(t *testing.T) {
	s := tempDB(t)
	s.RecordAtom(atom("t1", "c", "ada", 50))

	// Second entry collides with the existing tag; the whole batch rolls back.
	err := s.RecordBatch([]AtomRecord{
		atom("t2", "c", "ada", 60),
		atom("t1", "c", "ada", 70),
	})
	if err == nil {
		t.Fatal("expected error for colliding batch")
	}
	if _, err := s.GetAtom("t2"); err == nil {
		t.Fatal("t2 should have been rolled back")
	}
	st, _ := s.VortexState()
	if st.TotalAtoms != 1 {
		t.Fatalf("expected 1 atom after rollback, got %d", st.TotalAtoms)
	}

	if err := s.RecordBatch([]AtomRecord{
		atom("t3", "c", "ada", 60),
		atom("t4", "c", "ada", 70),
	}); err != nil {
		t.Fatalf("RecordBatch: %v", err)
	}
	st, _ = s.VortexState()
	if st.TotalAtoms != 3 {
		t.Fatalf("expected 3 atoms, got %d", st.TotalAtoms)
	}
}

func TestThresholdSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ledger.db")

	s, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	s.SetSnapInThreshold(55)
	s.Close()

	s2, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	st, _ := s2.VortexState()
	if st.SnapInThreshold != 55 {
		t.Fatalf("threshold after reopen: got %v, want 55", st.SnapInThreshold)
	}
}

func TestNewStoreInvalidPath(t *testing.T) {
	_, err := NewStore(filepath.Join(string(os.PathSeparator), "nonexistent", "deep", "path", "ledger.db"))
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestRecordAtomOnClosedDB(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewStore(filepath.Join(dir, "ledger.db"))
	s.Close()

	if err := s.RecordAtom(atom("t1", "c", "ada", 50)); err == nil {
		t.Fatal("expected error on closed DB")
	}
}

func TestRecordValidation(t *testing.T) {
	s := tempDB(t)
	rec := trail.ValidationRecord{
		AtomTag:          "ATOM-QR-20260823-AAA-cnot",
		CircuitName:      "cnot",
		TheoreticalClaim: "flips the target",
		ValidationResult: false,
		Coherence:        coherence.Metrics{Curl: 0.1, Divergence: 0.2, Potential: 0.9, Entropy: 0.8, Score: 66},
		PhasesPassed:     gate.PhaseOrder()[:3],
		Timestamp:        "2026-08-23T12:00:00Z",
	}

	if err := s.RecordValidation(rec, "ada"); err != nil {
		t.Fatalf("RecordValidation: %v", err)
	}

	got, err := s.GetAtom(rec.AtomTag)
	if err != nil {
		t.Fatalf("GetAtom: %v", err)
	}
	if got.Circuit != "cnot" || got.Contributor != "ada" || got.Score != 66 {
		t.Fatalf("mapping mismatch: %+v", got)
	}
	want := []string{"KENL", "AWI", "ATOM"}
	if len(got.PhasesPassed) != len(want) {
		t.Fatalf("phases: got %v", got.PhasesPassed)
	}
	for i := range want {
		if got.PhasesPassed[i] != want[i] {
			t.Fatalf("phase %d: got %s, want %s", i, got.PhasesPassed[i], want[i])
		}
	}
}

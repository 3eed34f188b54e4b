// Package ledger keeps a queryable SQLite index over recorded validations:
// one row per atom tag plus rolling per-circuit and ecosystem-wide
// aggregates. The JSONL trail stays the source of truth; the ledger is the
// fast side index for inspection and attribution queries.
package ledger

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spiralsafe/qrbridge/pkg/trail"
	_ "modernc.org/sqlite"
)

const defaultSnapInThreshold = 70.0

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS atoms (
	atom_tag     TEXT PRIMARY KEY,
	circuit      TEXT NOT NULL,
	contributor  TEXT NOT NULL,
	score        REAL NOT NULL,
	phases_json  TEXT NOT NULL,
	recorded_at  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS circuit_state (
	circuit      TEXT PRIMARY KEY,
	atom_count   INTEGER NOT NULL,
	total_score  REAL NOT NULL,
	last_snap_in TEXT
);

CREATE TABLE IF NOT EXISTS vortex_state (
	id                INTEGER PRIMARY KEY CHECK (id = 1),
	total_atoms       INTEGER NOT NULL,
	total_score       REAL NOT NULL,
	snap_in_count     INTEGER NOT NULL,
	snap_in_threshold REAL NOT NULL,
	last_update       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_atoms_circuit ON atoms(circuit);
CREATE INDEX IF NOT EXISTS idx_atoms_contributor ON atoms(contributor);
`

// #endregion schema

// #region store-struct

// Store manages the ledger database.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor

// NewStore opens a SQLite database, runs migrations and seeds the vortex
// row.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	_, err = db.Exec(
		`INSERT OR IGNORE INTO vortex_state (id, total_atoms, total_score, snap_in_count, snap_in_threshold, last_update)
		 VALUES (1, 0, 0, 0, ?, ?)`,
		defaultSnapInThreshold, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("seed vortex state: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region record

// RecordAtom stores one atom and folds it into the circuit and vortex
// aggregates atomically. Duplicate tags are rejected.
func (s *Store) RecordAtom(atom AtomRecord) error {
	if err := validateAtom(atom); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := s.recordInTx(tx, atom); err != nil {
		return err
	}
	return tx.Commit()
}

// RecordBatch stores several atoms in one transaction. Either every atom
// lands or none does.
func (s *Store) RecordBatch(atoms []AtomRecord) error {
	for _, atom := range atoms {
		if err := validateAtom(atom); err != nil {
			return err
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, atom := range atoms {
		if err := s.recordInTx(tx, atom); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func validateAtom(atom AtomRecord) error {
	if atom.AtomTag == "" {
		return fmt.Errorf("atom tag required")
	}
	if atom.Score < 0 || atom.Score > 100 {
		return fmt.Errorf("invalid coherence score %g for %s", atom.Score, atom.AtomTag)
	}
	return nil
}

// recordInTx inserts the atom row and updates both aggregate tables. The
// snap-in threshold read inside the transaction decides whether this atom
// counts as a snap-in.
func (s *Store) recordInTx(tx *sql.Tx, atom AtomRecord) error {
	phasesJSON, err := json.Marshal(atom.PhasesPassed)
	if err != nil {
		return fmt.Errorf("marshal phases: %w", err)
	}

	var threshold float64
	if err := tx.QueryRow(`SELECT snap_in_threshold FROM vortex_state WHERE id = 1`).Scan(&threshold); err != nil {
		return fmt.Errorf("read threshold: %w", err)
	}
	snapIn := atom.Score >= threshold

	_, err = tx.Exec(
		`INSERT INTO atoms (atom_tag, circuit, contributor, score, phases_json, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		atom.AtomTag, atom.Circuit, atom.Contributor, atom.Score, string(phasesJSON), atom.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert atom %s: %w", atom.AtomTag, err)
	}

	if snapIn {
		_, err = tx.Exec(
			`INSERT INTO circuit_state (circuit, atom_count, total_score, last_snap_in)
			 VALUES (?, 1, ?, ?)
			 ON CONFLICT(circuit) DO UPDATE SET
			   atom_count = atom_count + 1,
			   total_score = total_score + excluded.total_score,
			   last_snap_in = excluded.last_snap_in`,
			atom.Circuit, atom.Score, atom.Timestamp,
		)
	} else {
		_, err = tx.Exec(
			`INSERT INTO circuit_state (circuit, atom_count, total_score, last_snap_in)
			 VALUES (?, 1, ?, NULL)
			 ON CONFLICT(circuit) DO UPDATE SET
			   atom_count = atom_count + 1,
			   total_score = total_score + excluded.total_score`,
			atom.Circuit, atom.Score,
		)
	}
	if err != nil {
		return fmt.Errorf("update circuit state: %w", err)
	}

	snapInIncrement := 0
	if snapIn {
		snapInIncrement = 1
	}
	_, err = tx.Exec(
		`UPDATE vortex_state SET
		   total_atoms = total_atoms + 1,
		   total_score = total_score + ?,
		   snap_in_count = snap_in_count + ?,
		   last_update = ?
		 WHERE id = 1`,
		atom.Score, snapInIncrement, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("update vortex state: %w", err)
	}
	return nil
}

// RecordValidation folds one trail record into the ledger under the
// given contributor.
func (s *Store) RecordValidation(rec trail.ValidationRecord, contributor string) error {
	names := make([]string, len(rec.PhasesPassed))
	for i, p := range rec.PhasesPassed {
		names[i] = p.String()
	}
	return s.RecordAtom(AtomRecord{
		AtomTag:      rec.AtomTag,
		Circuit:      rec.CircuitName,
		Contributor:  contributor,
		Score:        rec.Coherence.Score,
		PhasesPassed: names,
		Timestamp:    rec.Timestamp,
	})
}

// #endregion record

// #region atom-queries

// GetAtom retrieves a single atom by tag.
func (s *Store) GetAtom(tag string) (AtomRecord, error) {
	row := s.db.QueryRow(
		`SELECT atom_tag, circuit, contributor, score, phases_json, recorded_at
		 FROM atoms WHERE atom_tag = ?`, tag,
	)
	atom, err := scanAtom(row)
	if err != nil {
		return AtomRecord{}, fmt.Errorf("get atom %s: %w", tag, err)
	}
	return atom, nil
}

// CircuitAtoms returns the atoms recorded for one circuit in insertion
// order, up to limit.
func (s *Store) CircuitAtoms(circuit string, limit int) ([]AtomRecord, error) {
	rows, err := s.db.Query(
		`SELECT atom_tag, circuit, contributor, score, phases_json, recorded_at
		 FROM atoms WHERE circuit = ? ORDER BY rowid LIMIT ?`, circuit, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("circuit atoms: %w", err)
	}
	defer rows.Close()
	return collectAtoms(rows)
}

// ContributorAtoms returns every atom recorded by one contributor in
// insertion order.
func (s *Store) ContributorAtoms(contributor string) ([]AtomRecord, error) {
	rows, err := s.db.Query(
		`SELECT atom_tag, circuit, contributor, score, phases_json, recorded_at
		 FROM atoms WHERE contributor = ? ORDER BY rowid`, contributor,
	)
	if err != nil {
		return nil, fmt.Errorf("contributor atoms: %w", err)
	}
	defer rows.Close()
	return collectAtoms(rows)
}

// Attribution summarizes a contributor's trail: atom count and mean score.
func (s *Store) Attribution(contributor string) (int64, float64, error) {
	var count int64
	var total sql.NullFloat64
	err := s.db.QueryRow(
		`SELECT COUNT(*), SUM(score) FROM atoms WHERE contributor = ?`, contributor,
	).Scan(&count, &total)
	if err != nil {
		return 0, 0, fmt.Errorf("attribution: %w", err)
	}
	if count == 0 {
		return 0, 0, nil
	}
	return count, total.Float64 / float64(count), nil
}

// #endregion atom-queries

// #region aggregate-queries

// CircuitState reads the rolling aggregate for one circuit.
func (s *Store) CircuitState(circuit string) (CircuitState, error) {
	var st CircuitState
	var lastSnapIn sql.NullString
	err := s.db.QueryRow(
		`SELECT circuit, atom_count, total_score, last_snap_in
		 FROM circuit_state WHERE circuit = ?`, circuit,
	).Scan(&st.Circuit, &st.AtomCount, &st.TotalScore, &lastSnapIn)
	if err != nil {
		return CircuitState{}, fmt.Errorf("circuit state %s: %w", circuit, err)
	}
	if lastSnapIn.Valid {
		st.LastSnapIn = lastSnapIn.String
	}
	if st.AtomCount > 0 {
		st.AverageScore = st.TotalScore / float64(st.AtomCount)
	}
	return st, nil
}

// ListCircuits returns the rolling aggregate for every known circuit.
func (s *Store) ListCircuits() ([]CircuitState, error) {
	rows, err := s.db.Query(
		`SELECT circuit, atom_count, total_score, last_snap_in
		 FROM circuit_state ORDER BY circuit`,
	)
	if err != nil {
		return nil, fmt.Errorf("list circuits: %w", err)
	}
	defer rows.Close()

	var states []CircuitState
	for rows.Next() {
		var st CircuitState
		var lastSnapIn sql.NullString
		if err := rows.Scan(&st.Circuit, &st.AtomCount, &st.TotalScore, &lastSnapIn); err != nil {
			return nil, fmt.Errorf("scan circuit state: %w", err)
		}
		if lastSnapIn.Valid {
			st.LastSnapIn = lastSnapIn.String
		}
		if st.AtomCount > 0 {
			st.AverageScore = st.TotalScore / float64(st.AtomCount)
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

// VortexState reads the ecosystem-wide aggregate.
func (s *Store) VortexState() (VortexState, error) {
	var st VortexState
	var totalScore float64
	err := s.db.QueryRow(
		`SELECT total_atoms, total_score, snap_in_count, snap_in_threshold, last_update
		 FROM vortex_state WHERE id = 1`,
	).Scan(&st.TotalAtoms, &totalScore, &st.SnapInCount, &st.SnapInThreshold, &st.LastUpdate)
	if err != nil {
		return VortexState{}, fmt.Errorf("vortex state: %w", err)
	}
	if st.TotalAtoms > 0 {
		st.AverageScore = totalScore / float64(st.TotalAtoms)
	}
	return st, nil
}

// EcosystemSnapIn reports whether the ecosystem mean has reached the
// snap-in threshold, along with the mean itself. An empty ledger never
// snaps in.
func (s *Store) EcosystemSnapIn() (bool, float64, error) {
	st, err := s.VortexState()
	if err != nil {
		return false, 0, err
	}
	if st.TotalAtoms == 0 {
		return false, 0, nil
	}
	return st.AverageScore >= st.SnapInThreshold, st.AverageScore, nil
}

// #endregion aggregate-queries

// #region governance

// SetSnapInThreshold updates the threshold used for future snap-in
// decisions. Already-counted snap-ins are not recomputed.
func (s *Store) SetSnapInThreshold(threshold float64) error {
	if threshold < 0 || threshold > 100 {
		return fmt.Errorf("invalid threshold %g", threshold)
	}
	_, err := s.db.Exec(
		`UPDATE vortex_state SET snap_in_threshold = ?, last_update = ? WHERE id = 1`,
		threshold, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("set threshold: %w", err)
	}
	return nil
}

// #endregion governance

// #region scan-helpers

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAtom(row rowScanner) (AtomRecord, error) {
	var atom AtomRecord
	var phasesJSON string
	if err := row.Scan(&atom.AtomTag, &atom.Circuit, &atom.Contributor, &atom.Score, &phasesJSON, &atom.Timestamp); err != nil {
		return AtomRecord{}, err
	}
	if err := json.Unmarshal([]byte(phasesJSON), &atom.PhasesPassed); err != nil {
		return AtomRecord{}, fmt.Errorf("unmarshal phases: %w", err)
	}
	return atom, nil
}

func collectAtoms(rows *sql.Rows) ([]AtomRecord, error) {
	var atoms []AtomRecord
	for rows.Next() {
		atom, err := scanAtom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan atom: %w", err)
		}
		atoms = append(atoms, atom)
	}
	return atoms, rows.Err()
}

// #endregion scan-helpers

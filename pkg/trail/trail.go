// Package trail implements the append-only audit trail: one JSON object
// per line, appended to a UTF-8 log file, plus the aggregation query that
// turns the full trail into a health report.
//
// There is no locking and no atomicity beyond what the underlying append
// write provides: concurrent writers may interleave lines but each fully
// written line is a complete record. Aggregation fails fast on a malformed
// line — a corrupt trail is an infrastructure fault, and skipping lines
// would silently bias the report.
package trail

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// maxLineBytes bounds a single trail line; circuit sources are inlined in
// records so lines can far exceed bufio's default token size.
const maxLineBytes = 4 * 1024 * 1024

// #region trail

// Trail is an append-only record store bound to one file path.
type Trail struct {
	config Config
}

// New creates a trail handle. The file itself is created lazily on the
// first append. Zero-valued config fields fall back to DefaultConfig.
func New(config Config) *Trail {
	if config.Path == "" {
		config.Path = DefaultPath
	}
	if config.SnapInThreshold == 0 {
		config.SnapInThreshold = DefaultConfig().SnapInThreshold
	}
	return &Trail{config: config}
}

// Path returns the trail file location.
func (t *Trail) Path() string {
	return t.config.Path
}

// #endregion trail

// #region append

// Append serializes one record and appends it as a single line, creating
// the parent directory if needed. Only infrastructure failures are
// returned; Append never inspects the record beyond serializing it.
func (t *Trail) Append(rec ValidationRecord) error {
	if dir := filepath.Dir(t.config.Path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create trail dir: %w", err)
		}
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	f, err := os.OpenFile(t.config.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open trail: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

// #endregion append

// #region aggregate

// Aggregate scans the whole trail and computes the health report: total
// record count, mean coherence score, snap-in (mean >= threshold), and
// how many records passed each phase. A missing trail file yields the
// zero-valued report without error; a malformed line is an error naming
// the line number.
func (t *Trail) Aggregate() (HealthReport, error) {
	report := emptyHealthReport()
	var scoreSum float64

	err := t.scan(func(_ int, rec ValidationRecord) error {
		report.TotalValidations++
		scoreSum += rec.Coherence.Score
		for _, p := range rec.PhasesPassed {
			report.PhaseDistribution[p.String()]++
		}
		return nil
	})
	if err != nil {
		return HealthReport{}, err
	}

	if report.TotalValidations > 0 {
		report.AverageCoherence = scoreSum / float64(report.TotalValidations)
	}
	report.SnapInAchieved = report.TotalValidations > 0 &&
		report.AverageCoherence >= t.config.SnapInThreshold
	return report, nil
}

// Records reads every record in trail order. Used by tooling (fixture
// export, inspection); Aggregate streams instead of going through here.
func (t *Trail) Records() ([]ValidationRecord, error) {
	var records []ValidationRecord
	err := t.scan(func(_ int, rec ValidationRecord) error {
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// scan streams the trail line by line, skipping blank lines and failing
// fast on the first line that does not parse as a record.
func (t *Trail) scan(fn func(line int, rec ValidationRecord) error) error {
	f, err := os.Open(t.config.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open trail: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		var rec ValidationRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return fmt.Errorf("malformed trail record at line %d: %w", lineNum, err)
		}
		if err := fn(lineNum, rec); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read trail: %w", err)
	}
	return nil
}

// #endregion aggregate

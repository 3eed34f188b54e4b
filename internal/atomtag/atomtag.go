// Package atomtag generates ecosystem ATOM tags for validation records.
//
// Tag shape: ATOM-QR-<YYYYMMDD>-<XXX>-<name>, where XXX is three characters
// of tag alphabet entropy and name is the circuit name lowercased with
// spaces dashed, truncated to twenty characters.
package atomtag

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	prefix     = "ATOM-QR"
	alphabet   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffixLen  = 3
	maxNameLen = 20
	dateLayout = "20060102"
)

// #region generator

// Generator produces atom tags. The clock and entropy source are fields so
// replay and tests can pin them.
type Generator struct {
	now     func() time.Time
	entropy func() [16]byte
}

// NewGenerator creates a Generator backed by the wall clock and random
// UUIDs.
func NewGenerator() *Generator {
	return &Generator{
		now:     time.Now,
		entropy: func() [16]byte { return [16]byte(uuid.New()) },
	}
}

// NewFixedGenerator creates a Generator that always uses the given instant
// and seed. Output is fully deterministic.
func NewFixedGenerator(at time.Time, seed [16]byte) *Generator {
	return &Generator{
		now:     func() time.Time { return at },
		entropy: func() [16]byte { return seed },
	}
}

// Tag builds a tag for the circuit name.
func (g *Generator) Tag(circuitName string) string {
	date := g.now().UTC().Format(dateLayout)
	return fmt.Sprintf("%s-%s-%s-%s", prefix, date, suffix(g.entropy()), safeName(circuitName))
}

// #endregion generator

// #region helpers

// suffix maps the first entropy bytes onto the tag alphabet.
func suffix(seed [16]byte) string {
	out := make([]byte, suffixLen)
	for i := range out {
		out[i] = alphabet[int(seed[i])%len(alphabet)]
	}
	return string(out)
}

// safeName normalizes a circuit name for embedding in a tag.
func safeName(name string) string {
	s := strings.ReplaceAll(strings.ToLower(name), " ", "-")
	runes := []rune(s)
	if len(runes) > maxNameLen {
		s = string(runes[:maxNameLen])
	}
	return s
}

// #endregion helpers

// Package analysis derives the four field metrics from validation text.
//
// The heuristics are intentionally cheap: curl from repeated word bigrams,
// divergence from sentence-length variance, potential from lexical
// diversity, entropy from the character distribution. They stand in for a
// full wave analysis of the circuit itself.
package analysis

import (
	"math"
	"strings"

	"github.com/spiralsafe/qrbridge/pkg/coherence"
)

const (
	divergenceDefault  = 0.2 // fewer than two sentences
	varianceNormalizer = 100.0
	entropyNormalizer  = 5.0
	entropyDefault     = 0.5 // empty text
)

// #region extractor

// Extractor computes coherence metrics from circuit text.
type Extractor struct{}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract combines the description, claim and execution result into one
// text and scores it. Pure and deterministic.
func (e *Extractor) Extract(description, claim, result string) coherence.Metrics {
	combined := description + "\n" + claim + "\n" + result
	words := strings.Fields(combined)

	return coherence.NewMetrics(
		curl(words),
		divergence(combined),
		potential(words),
		entropy(combined),
	)
}

// #endregion extractor

// #region metrics

// curl measures repeated word pairs. Heavy bigram reuse reads as circular
// reasoning. Fewer than two words yields the maximum of 1.
func curl(words []string) float64 {
	if len(words) < 2 {
		return 1.0
	}
	pairs := make(map[string]struct{}, len(words)-1)
	for i := 0; i < len(words)-1; i++ {
		pairs[words[i]+" "+words[i+1]] = struct{}{}
	}
	total := len(words) - 1
	return 1.0 - float64(len(pairs))/float64(total)
}

// divergence measures sentence-length variation across '.'-separated
// sentences. A single sentence gets the optimal default.
func divergence(text string) float64 {
	var lengths []int
	for _, s := range strings.Split(text, ".") {
		if strings.TrimSpace(s) == "" {
			continue
		}
		lengths = append(lengths, len(strings.Fields(s)))
	}
	if len(lengths) < 2 {
		return divergenceDefault
	}
	var sum float64
	for _, l := range lengths {
		sum += float64(l)
	}
	mean := sum / float64(len(lengths))
	var variance float64
	for _, l := range lengths {
		d := float64(l) - mean
		variance += d * d
	}
	variance /= float64(len(lengths))
	return math.Min(1.0, variance/varianceNormalizer)
}

// potential measures lexical diversity as the unique-word ratio.
func potential(words []string) float64 {
	if len(words) == 0 {
		return 0
	}
	unique := make(map[string]struct{}, len(words))
	for _, w := range words {
		unique[w] = struct{}{}
	}
	return float64(len(unique)) / float64(len(words))
}

// entropy computes Shannon entropy over the lowercased character
// distribution, normalized so ~5 bits maps to 1.
func entropy(text string) float64 {
	counts := make(map[rune]int)
	total := 0
	for _, r := range strings.ToLower(text) {
		counts[r]++
		total++
	}
	if total == 0 {
		return entropyDefault
	}
	var raw float64
	for _, c := range counts {
		p := float64(c) / float64(total)
		raw -= p * math.Log2(p)
	}
	return math.Min(1.0, raw/entropyNormalizer)
}

// #endregion metrics

// Package coherence implements the shared coherence scoring formula.
//
// The formula is the single source of truth across every component that
// consumes coherence scores (gate evaluation, the audit trail, the ledger).
// It must stay bit-for-bit identical to the other ecosystem implementations,
// which is why it is float64 end to end and free of any configuration.
package coherence

import "math"

// #region weights

// Penalty weights. Divergence is penalized by distance from its interior
// optimum at 0.2; every other term is a monotonic penalty.
const (
	curlWeight       = 0.4
	divergenceWeight = 0.3
	potentialWeight  = 0.2
	entropyWeight    = 0.1

	divergenceOptimum = 0.2
)

// #endregion weights

// #region metrics

// Metrics bundles the four raw features with the derived score.
// Values are immutable once computed; build them with NewMetrics.
type Metrics struct {
	Curl       float64 `json:"curl"`
	Divergence float64 `json:"divergence"`
	Potential  float64 `json:"potential"`
	Entropy    float64 `json:"entropy"`
	Score      float64 `json:"score"`
}

// NewMetrics computes the coherence score for the four raw features.
func NewMetrics(curl, divergence, potential, entropy float64) Metrics {
	return Metrics{
		Curl:       curl,
		Divergence: divergence,
		Potential:  potential,
		Entropy:    entropy,
		Score:      Score(curl, divergence, potential, entropy),
	}
}

// #endregion metrics

// #region score

// Score computes the coherence score in [0, 100] from four features.
// Inputs are expected in [0, 1] by contract but are not validated here:
// out-of-range values simply produce more extreme scores before clamping.
//
//	raw = 1 - curl*0.4 - |divergence-0.2|*0.3 - (1-potential)*0.2 - (1-entropy)*0.1
//	score = clamp(raw*100, 0, 100)
func Score(curl, divergence, potential, entropy float64) float64 {
	raw := 1.0 -
		curl*curlWeight -
		math.Abs(divergence-divergenceOptimum)*divergenceWeight -
		(1.0-potential)*potentialWeight -
		(1.0-entropy)*entropyWeight
	return Clamp(raw*100, 0, 100)
}

// Clamp restricts v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// #endregion score

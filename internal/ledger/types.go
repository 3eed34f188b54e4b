package ledger

// #region atom

// AtomRecord is one keyed provenance entry. AtomTag is the primary key;
// re-recording a tag is rejected so the rolling aggregates stay honest.
type AtomRecord struct {
	AtomTag      string   `json:"atomTag"`
	Circuit      string   `json:"circuit"`
	Contributor  string   `json:"contributor"`
	Score        float64  `json:"score"`
	PhasesPassed []string `json:"phasesPassed"`
	Timestamp    string   `json:"timestamp"`
}

// #endregion atom

// #region aggregates

// CircuitState is the rolling aggregate for one circuit.
type CircuitState struct {
	Circuit      string  `json:"circuit"`
	AtomCount    int64   `json:"atomCount"`
	TotalScore   float64 `json:"totalScore"`
	AverageScore float64 `json:"averageScore"`
	LastSnapIn   string  `json:"lastSnapIn,omitempty"` // empty when never achieved
}

// VortexState is the rolling aggregate across every circuit.
type VortexState struct {
	TotalAtoms      int64   `json:"totalAtoms"`
	AverageScore    float64 `json:"averageScore"`
	SnapInCount     int64   `json:"snapInCount"`
	SnapInThreshold float64 `json:"snapInThreshold"`
	LastUpdate      string  `json:"lastUpdate"`
}

// #endregion aggregates

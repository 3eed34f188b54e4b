// Package config loads validator settings from a YAML file and
// environment variables so threshold tables can be tuned per environment
// without rebuilding.
package config

import (
	"fmt"

	"github.com/spiralsafe/qrbridge/pkg/bridge"
	"github.com/spiralsafe/qrbridge/pkg/gate"
	"github.com/spiralsafe/qrbridge/pkg/trail"
)

// #region types

// Config is the full loadable configuration.
type Config struct {
	Gate   Gate   `koanf:"gate"`
	Trail  Trail  `koanf:"trail"`
	Ledger Ledger `koanf:"ledger"`
}

// Gate holds the threshold table and override label names.
type Gate struct {
	SnapInThreshold     float64 `koanf:"snap_in_threshold"`
	KENLThreshold       float64 `koanf:"kenl_threshold"`
	AWIThreshold        float64 `koanf:"awi_threshold"`
	ATOMThreshold       float64 `koanf:"atom_threshold"`
	SAIFThreshold       float64 `koanf:"saif_threshold"`
	SPIRALThreshold     float64 `koanf:"spiral_threshold"`
	ProductionThreshold float64 `koanf:"production_threshold"`
	EmergencyLabel      string  `koanf:"emergency_label"`
	CoherenceLabel      string  `koanf:"coherence_label"`
}

// Trail holds the audit trail location.
type Trail struct {
	Path string `koanf:"path"`
}

// Ledger holds the optional SQLite index settings. Contributor is the
// attribution recorded with each atom.
type Ledger struct {
	Enabled     bool   `koanf:"enabled"`
	Path        string `koanf:"path"`
	Contributor string `koanf:"contributor"`
}

// #endregion types

// #region defaults

// Default returns the built-in configuration: the canonical threshold
// table, the conventional trail path, and the ledger disabled.
func Default() Config {
	g := gate.DefaultConfig()
	return Config{
		Gate: Gate{
			SnapInThreshold:     g.SnapInThreshold,
			KENLThreshold:       g.KENLThreshold,
			AWIThreshold:        g.AWIThreshold,
			ATOMThreshold:       g.ATOMThreshold,
			SAIFThreshold:       g.SAIFThreshold,
			SPIRALThreshold:     g.SPIRALThreshold,
			ProductionThreshold: g.ProductionThreshold,
			EmergencyLabel:      g.EmergencyLabel,
			CoherenceLabel:      g.CoherenceLabel,
		},
		Trail:  Trail{Path: trail.DefaultPath},
		Ledger: Ledger{Enabled: false, Path: ".atom-trail/ledger.db"},
	}
}

// #endregion defaults

// #region validation

// Validate checks the loaded configuration for values the validator cannot
// run with.
func (c *Config) Validate() error {
	thresholds := map[string]float64{
		"gate.snap_in_threshold":    c.Gate.SnapInThreshold,
		"gate.kenl_threshold":       c.Gate.KENLThreshold,
		"gate.awi_threshold":        c.Gate.AWIThreshold,
		"gate.atom_threshold":       c.Gate.ATOMThreshold,
		"gate.saif_threshold":       c.Gate.SAIFThreshold,
		"gate.spiral_threshold":     c.Gate.SPIRALThreshold,
		"gate.production_threshold": c.Gate.ProductionThreshold,
	}
	for name, v := range thresholds {
		if v < 0 || v > 100 {
			return fmt.Errorf("%s: %g outside [0, 100]", name, v)
		}
	}
	if c.Gate.EmergencyLabel == "" {
		return fmt.Errorf("gate.emergency_label must not be empty")
	}
	if c.Gate.CoherenceLabel == "" {
		return fmt.Errorf("gate.coherence_label must not be empty")
	}
	if c.Gate.EmergencyLabel == c.Gate.CoherenceLabel {
		return fmt.Errorf("gate override labels must differ")
	}
	if c.Trail.Path == "" {
		return fmt.Errorf("trail.path must not be empty")
	}
	if c.Ledger.Enabled && c.Ledger.Path == "" {
		return fmt.Errorf("ledger.path must not be empty when the ledger is enabled")
	}
	return nil
}

// #endregion validation

// #region conversions

// GateConfig converts the loaded section into the gate's config type.
func (c *Config) GateConfig() gate.Config {
	return gate.Config{
		SnapInThreshold:     c.Gate.SnapInThreshold,
		KENLThreshold:       c.Gate.KENLThreshold,
		AWIThreshold:        c.Gate.AWIThreshold,
		ATOMThreshold:       c.Gate.ATOMThreshold,
		SAIFThreshold:       c.Gate.SAIFThreshold,
		SPIRALThreshold:     c.Gate.SPIRALThreshold,
		ProductionThreshold: c.Gate.ProductionThreshold,
		EmergencyLabel:      c.Gate.EmergencyLabel,
		CoherenceLabel:      c.Gate.CoherenceLabel,
	}
}

// TrailConfig converts the loaded sections into the trail's config type.
// The trail shares the gate's snap-in threshold.
func (c *Config) TrailConfig() trail.Config {
	return trail.Config{
		Path:            c.Trail.Path,
		SnapInThreshold: c.Gate.SnapInThreshold,
	}
}

// BridgeConfig assembles the full pipeline configuration from the loaded
// sections.
func (c *Config) BridgeConfig() bridge.Config {
	return bridge.Config{
		Gate:        c.GateConfig(),
		Trail:       c.TrailConfig(),
		Contributor: c.Ledger.Contributor,
	}
}

// #endregion conversions

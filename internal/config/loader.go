package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// DefaultFile is the conventional per-project config location,
	// resolved against the working directory like the trail itself.
	DefaultFile = "qrbridge.yaml"

	envPrefix         = "QRBRIDGE_"
	maxConfigFileSize = 1024 * 1024
)

// Load reads configuration with the usual precedence, highest first:
//
//  1. Environment variables (QRBRIDGE_GATE_SNAP_IN_THRESHOLD, ...)
//  2. YAML config file
//  3. Built-in defaults
//
// An empty configPath means DefaultFile, which may be absent; a path given
// explicitly must exist. Keys missing from file and environment keep their
// default values, so a partial config tuning one threshold is fine.
//
// Environment variables map section-first: the first underscore separates
// the section from the field, the rest of the name stays as written.
//
//	QRBRIDGE_GATE_SNAP_IN_THRESHOLD -> gate.snap_in_threshold
//	QRBRIDGE_TRAIL_PATH             -> trail.path
//	QRBRIDGE_LEDGER_ENABLED         -> ledger.enabled
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	required := configPath != ""
	if configPath == "" {
		configPath = DefaultFile
	}

	content, err := readConfigFile(configPath)
	if err != nil {
		if required || !os.IsNotExist(err) {
			return nil, fmt.Errorf("config file %s: %w", configPath, err)
		}
	}
	if content != nil {
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		parts := strings.SplitN(key, "_", 2)
		if len(parts) == 1 {
			return key
		}
		return parts[0] + "." + parts[1]
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	// Start from the full default struct; Unmarshal only touches keys that
	// were actually loaded.
	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, err
		}
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return content, nil
}

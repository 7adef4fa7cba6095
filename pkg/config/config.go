// Package config loads the daemon's static configuration: the var dir,
// policy selection, sync strategy and logging setup, as a plain struct
// with a Load function.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the daemon's top-level configuration, loaded from YAML.
type Config struct {
	// VarDir holds the runtime's var directory; the command FIFO is
	// created at VarDir/bbque_cmds (spec.md §6.1).
	VarDir string `yaml:"var_dir"`

	// Policy names the scheduling policy pkg/policy.Registry must resolve.
	Policy string `yaml:"policy"`

	// ForceSync toggles the synchronous-sleep sync variant (spec.md §4.7).
	ForceSync bool `yaml:"force_sync"`

	// SettleMultiplier is loaded and defaulted (1.2) but not read by the
	// synchronisation manager: the force_sync variant sleeps exactly the
	// PreChange latency each agent reports.
	SettleMultiplier float64 `yaml:"settle_multiplier"`

	// EventPeriod arms the event loop's periodic mode (0 disables it,
	// spec.md §4.8 "zero-period means on-demand only").
	EventPeriod time.Duration `yaml:"event_period"`

	// AgentDeadline is the default per-phase agent RPC deadline
	// (spec.md §5).
	AgentDeadline time.Duration `yaml:"agent_deadline"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// FIFOPath returns the command FIFO's well-known location under VarDir.
func (c Config) FIFOPath() string {
	return filepath.Join(c.VarDir, "bbque_cmds")
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		VarDir:           "/var/lib/rtrm",
		Policy:           "fifo",
		ForceSync:        false,
		SettleMultiplier: 1.2,
		EventPeriod:      0,
		AgentDeadline:    500 * time.Millisecond,
		LogLevel:         "info",
		LogJSON:          false,
	}
}

// Load reads and parses a YAML configuration file at path, filling unset
// fields from Default().
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: load %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.SettleMultiplier <= 0 {
		cfg.SettleMultiplier = Default().SettleMultiplier
	}
	return cfg, nil
}

// Package config holds the environment/configuration table of spec section
// 6, loadable from flags, environment variables, or a config file via
// spf13/viper.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// MigrationMode controls whether the granular engine is engaged at all
// (spec section 6's migration-mode setting).
type MigrationMode string

const (
	MigrationDisabled  MigrationMode = "disabled"
	MigrationDualWrite MigrationMode = "dual-write"
	MigrationReadOnly  MigrationMode = "read-only"
	MigrationFull      MigrationMode = "full"
)

// Enabled reports whether granular writes should run at all: any mode other
// than "disabled" (spec section 6).
func (m MigrationMode) Enabled() bool {
	return m != MigrationDisabled
}

// Config is the full set of tunables spec section 6 enumerates.
type Config struct {
	MigrationMode MigrationMode `mapstructure:"migration_mode"`

	PendingMutationTimeout       time.Duration `mapstructure:"pending_mutation_timeout"`
	PendingMutationSweepInterval time.Duration `mapstructure:"pending_mutation_sweep_interval"`

	DescendantsBFSCap int `mapstructure:"descendants_bfs_cap"`

	// BufferedQueueMax bounds the 60 Hz buffered batch-processor variant's
	// queue before a BufferOverflow warning is logged; 0 means unbounded.
	BufferedQueueMax int `mapstructure:"buffered_queue_max"`
}

// Default returns the configuration spec section 6 names as defaults.
func Default() Config {
	return Config{
		MigrationMode:                MigrationFull,
		PendingMutationTimeout:       10 * time.Second,
		PendingMutationSweepInterval: 5 * time.Second,
		DescendantsBFSCap:            20,
		BufferedQueueMax:             0,
	}
}

// Load reads configuration from v (already populated from flags/env/file by
// the caller, e.g. cmd/portstated/cmd) over top of Default, returning an
// error if the resulting migration mode is not one of the four valid values.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()
	if v == nil {
		return cfg, nil
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	switch cfg.MigrationMode {
	case MigrationDisabled, MigrationDualWrite, MigrationReadOnly, MigrationFull:
	default:
		return Config{}, fmt.Errorf("config: invalid migration_mode %q", cfg.MigrationMode)
	}
	if cfg.PendingMutationTimeout <= 0 {
		return Config{}, fmt.Errorf("config: pending_mutation_timeout must be positive")
	}
	if cfg.PendingMutationSweepInterval <= 0 {
		return Config{}, fmt.Errorf("config: pending_mutation_sweep_interval must be positive")
	}
	if cfg.DescendantsBFSCap <= 0 {
		return Config{}, fmt.Errorf("config: descendants_bfs_cap must be positive")
	}
	return cfg, nil
}

// BindFlags registers each of this package's tunables as a default on v, for
// cmd/portstated's root command to call during init. It registers no
// command-line flags.
func BindFlags(v *viper.Viper) {
	d := Default()
	v.SetDefault("migration_mode", string(d.MigrationMode))
	v.SetDefault("pending_mutation_timeout", d.PendingMutationTimeout)
	v.SetDefault("pending_mutation_sweep_interval", d.PendingMutationSweepInterval)
	v.SetDefault("descendants_bfs_cap", d.DescendantsBFSCap)
	v.SetDefault("buffered_queue_max", d.BufferedQueueMax)
}

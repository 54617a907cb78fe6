// Package config defines the typed configuration contract consumed by every
// component. Loading it from a file and parsing environment variables is an
// external collaborator's responsibility (spec §1, out of scope here); this
// package only defines the shape and structural validation.
package config

import (
	"fmt"
	"time"
)

// Config is the top-level configuration handed to every component at
// construction. There is no ambient singleton: callers build one Config and
// thread it (or the relevant sub-struct) through explicitly.
type Config struct {
	// DataDir roots the persisted state layout from spec §6 (data/config,
	// data/state, data/logs, data/pids, data/backups).
	DataDir string `json:"data_dir"`
	// WorkspaceRoot bounds every path the shell/file tool may touch.
	WorkspaceRoot string `json:"workspace_root"`

	Loops      LoopsConfig      `json:"loops"`
	Budgets    BudgetsConfig    `json:"budgets"`
	Gateway    GatewayConfig    `json:"gateway"`
	Approval   ApprovalConfig   `json:"approval"`
	Store      StoreConfig      `json:"store"`
}

// LoopsConfig controls the two autonomous control loops (spec §4.8, §4.10).
type LoopsConfig struct {
	TacticalIntervalSeconds  int `json:"tactical_interval_seconds"`
	StrategicIntervalSeconds int `json:"strategic_interval_seconds"`
	// ValidateDelaySeconds is copied into Mastermind.ValidateDelay, the delay
	// between Execute and the re-audit that computes the resolution score;
	// nothing in this module schedules that re-audit from it.
	ValidateDelaySeconds int `json:"validate_delay_seconds"`
	// DefaultCooldownSeconds is applied to a backlog item's component on
	// SIW failure (spec §4.8 step 5).
	DefaultCooldownSeconds int `json:"default_cooldown_seconds"`
}

// BudgetsConfig bounds resource consumption (spec §5 resource guards).
type BudgetsConfig struct {
	CPUPercentCeiling   float64 `json:"cpu_percent_ceiling"`
	DailyLLMCostCents   int64   `json:"daily_llm_cost_cents"`
	FreeDiskBytesFloor  int64   `json:"free_disk_bytes_floor"`
}

// GatewayConfig configures the LLM gateway's rate limiter and defaults.
type GatewayConfig struct {
	DefaultModel       string        `json:"default_model"`
	DefaultTemperature float64       `json:"default_temperature"`
	RateLimitPerSecond float64       `json:"rate_limit_per_second"`
	RateLimitBurst     int           `json:"rate_limit_burst"`
	DefaultTimeout     time.Duration `json:"default_timeout"`
	MaxRetries         int           `json:"max_retries"`
	BaseRetryDelay     time.Duration `json:"base_retry_delay"`
	MaxRetryDelay      time.Duration `json:"max_retry_delay"`
	PricingTablePath   string        `json:"pricing_table_path"`
}

// ApprovalConfig names the HITL gate configuration (spec §4.8, §4.9's "only
// an external set of critical_components is strict").
type ApprovalConfig struct {
	CriticalComponents []string `json:"critical_components"`
}

// StoreConfig selects and configures the persistent-store backends (spec §4.4).
type StoreConfig struct {
	BackupRotation int    `json:"backup_rotation"`
	MongoURI       string `json:"mongo_uri,omitempty"`
	MongoDatabase  string `json:"mongo_database,omitempty"`
	RedisAddr      string `json:"redis_addr,omitempty"`
}

// Default returns a Config with conservative, safe defaults suitable for
// local development. It performs no I/O.
func Default() Config {
	return Config{
		DataDir:       "data",
		WorkspaceRoot: ".",
		Loops: LoopsConfig{
			TacticalIntervalSeconds:  3600,
			StrategicIntervalSeconds: 14400,
			ValidateDelaySeconds:     3600,
			DefaultCooldownSeconds:   1800,
		},
		Budgets: BudgetsConfig{
			CPUPercentCeiling:  85,
			DailyLLMCostCents:  10000,
			FreeDiskBytesFloor: 1 << 30,
		},
		Gateway: GatewayConfig{
			DefaultModel:       "default",
			DefaultTemperature: 0.2,
			RateLimitPerSecond: 1,
			RateLimitBurst:     4,
			DefaultTimeout:     30 * time.Second,
			MaxRetries:         3,
			BaseRetryDelay:     500 * time.Millisecond,
			MaxRetryDelay:      30 * time.Second,
		},
		Store: StoreConfig{
			BackupRotation: 10,
		},
	}
}

// Validate performs structural checks a loader should run before handing a
// Config to the rest of the system. It never touches the filesystem.
func (c Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("config: data_dir is required")
	}
	if c.WorkspaceRoot == "" {
		return fmt.Errorf("config: workspace_root is required")
	}
	if c.Loops.TacticalIntervalSeconds <= 0 {
		return fmt.Errorf("config: loops.tactical_interval_seconds must be positive")
	}
	if c.Loops.StrategicIntervalSeconds <= 0 {
		return fmt.Errorf("config: loops.strategic_interval_seconds must be positive")
	}
	if c.Gateway.RateLimitPerSecond <= 0 {
		return fmt.Errorf("config: gateway.rate_limit_per_second must be positive")
	}
	if c.Gateway.RateLimitBurst <= 0 {
		return fmt.Errorf("config: gateway.rate_limit_burst must be positive")
	}
	if c.Store.BackupRotation <= 0 {
		return fmt.Errorf("config: store.backup_rotation must be positive")
	}
	return nil
}

package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks value ranges the strict decoder cannot: durations, driver
// names, numeric bounds. It is installed as the Watch validator so a bad
// edit never replaces a good running config.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if cfg.Scheduler.EffectiveWaitCost() < 0 {
		return errors.New("scheduler.wait_cost: must be >= 0")
	}
	if cfg.Scheduler.EffectiveSurchargeFrequency() < 0 {
		return errors.New("scheduler.surcharge_frequency: must be >= 0")
	}
	if cfg.Scheduler.MaxPID < 0 {
		return errors.New("scheduler.max_pid: must be >= 0")
	}
	if cfg.Scheduler.PlayerQuota < 0 {
		return errors.New("scheduler.player_quota: must be >= 0")
	}
	if cfg.Heartbeat.DrainBudget < 0 {
		return errors.New("heartbeat.drain_budget: must be >= 0")
	}
	if _, err := ParseDurationField("heartbeat.tick", cfg.Heartbeat.Tick); err != nil {
		return err
	}
	for path, raw := range map[string]string{
		"diag.read_timeout":  cfg.Diag.ReadTimeout,
		"diag.write_timeout": cfg.Diag.WriteTimeout,
		"diag.idle_timeout":  cfg.Diag.IdleTimeout,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			return err
		}
	}
	if cfg.Storage != nil {
		driver := strings.TrimSpace(cfg.Storage.Driver)
		if driver != "" && driver != "sqlite" {
			return fmt.Errorf("storage.driver: unsupported driver %q", driver)
		}
		if driver == "sqlite" && strings.TrimSpace(cfg.Storage.Path) == "" {
			return errors.New("storage.path: required for sqlite")
		}
		if _, err := ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout); err != nil {
			return err
		}
		if cfg.Storage.KeepEntries < 0 {
			return errors.New("storage.keep_entries: must be >= 0")
		}
	}
	return nil
}

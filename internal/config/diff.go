package config

import (
	"sort"
	"strings"

	logx "mudq/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections plus safe
// structured attrs for logging the reload.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 16)

	// Logging
	if oldCfg.Logging.Level != newCfg.Logging.Level ||
		oldCfg.Logging.Console != newCfg.Logging.Console ||
		oldCfg.Logging.File.Enabled != newCfg.Logging.File.Enabled ||
		strings.TrimSpace(oldCfg.Logging.File.Path) != strings.TrimSpace(newCfg.Logging.File.Path) {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	// Scheduler admission knobs
	if oldCfg.Scheduler.EffectiveWaitCost() != newCfg.Scheduler.EffectiveWaitCost() ||
		oldCfg.Scheduler.EffectiveSurchargeFrequency() != newCfg.Scheduler.EffectiveSurchargeFrequency() ||
		oldCfg.Scheduler.MaxPID != newCfg.Scheduler.MaxPID ||
		oldCfg.Scheduler.PlayerQuota != newCfg.Scheduler.PlayerQuota {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Int("scheduler.wait_cost", newCfg.Scheduler.EffectiveWaitCost()),
			logx.Int("scheduler.surcharge_frequency", newCfg.Scheduler.EffectiveSurchargeFrequency()),
			logx.Int("scheduler.max_pid", newCfg.Scheduler.MaxPID),
			logx.Int("scheduler.player_quota", newCfg.Scheduler.PlayerQuota),
		)
	}

	// Heartbeat
	oDeq := oldCfg.Heartbeat.Dequeue == nil || *oldCfg.Heartbeat.Dequeue
	nDeq := newCfg.Heartbeat.Dequeue == nil || *newCfg.Heartbeat.Dequeue
	if strings.TrimSpace(oldCfg.Heartbeat.Tick) != strings.TrimSpace(newCfg.Heartbeat.Tick) ||
		oldCfg.Heartbeat.DrainBudget != newCfg.Heartbeat.DrainBudget ||
		oDeq != nDeq {
		changed = append(changed, "heartbeat")
		attrs = append(attrs,
			logx.String("heartbeat.tick", strings.TrimSpace(newCfg.Heartbeat.Tick)),
			logx.Int("heartbeat.drain_budget", newCfg.Heartbeat.DrainBudget),
			logx.Bool("heartbeat.dequeue", nDeq),
		)
	}

	// Diag server
	if oldCfg.Diag.Enabled != newCfg.Diag.Enabled ||
		strings.TrimSpace(oldCfg.Diag.Addr) != strings.TrimSpace(newCfg.Diag.Addr) ||
		strings.TrimSpace(oldCfg.Diag.ReadTimeout) != strings.TrimSpace(newCfg.Diag.ReadTimeout) ||
		strings.TrimSpace(oldCfg.Diag.WriteTimeout) != strings.TrimSpace(newCfg.Diag.WriteTimeout) ||
		strings.TrimSpace(oldCfg.Diag.IdleTimeout) != strings.TrimSpace(newCfg.Diag.IdleTimeout) {
		changed = append(changed, "diag")
		attrs = append(attrs,
			logx.Bool("diag.enabled", newCfg.Diag.Enabled),
			logx.String("diag.addr", strings.TrimSpace(newCfg.Diag.Addr)),
		)
	}

	// Storage (nil means disabled)
	var oDriver, nDriver, oBusy, nBusy string
	var oPathSet, nPathSet bool
	var oKeep, nKeep int
	if oldCfg.Storage != nil {
		oDriver = strings.TrimSpace(oldCfg.Storage.Driver)
		oBusy = strings.TrimSpace(oldCfg.Storage.BusyTimeout)
		oPathSet = strings.TrimSpace(oldCfg.Storage.Path) != ""
		oKeep = oldCfg.Storage.KeepEntries
	}
	if newCfg.Storage != nil {
		nDriver = strings.TrimSpace(newCfg.Storage.Driver)
		nBusy = strings.TrimSpace(newCfg.Storage.BusyTimeout)
		nPathSet = strings.TrimSpace(newCfg.Storage.Path) != ""
		nKeep = newCfg.Storage.KeepEntries
	}
	if oDriver != nDriver || oBusy != nBusy || oPathSet != nPathSet || oKeep != nKeep {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", nDriver),
			logx.Bool("storage.path_set", nPathSet),
			logx.String("storage.busy_timeout", nBusy),
		)
	}

	// Housekeeping
	if oldCfg.Housekeeping != newCfg.Housekeeping {
		changed = append(changed, "housekeeping")
		attrs = append(attrs,
			logx.Bool("housekeeping.enabled", newCfg.Housekeeping.Enabled),
			logx.String("housekeeping.audit_prune_spec", strings.TrimSpace(newCfg.Housekeeping.AuditPruneSpec)),
			logx.String("housekeeping.summary_spec", strings.TrimSpace(newCfg.Housekeeping.SummarySpec)),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

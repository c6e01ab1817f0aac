package config

// Config is the daemon's whole configuration file (JSON or YAML). Unknown
// keys are rejected at parse time so typos surface on reload instead of
// silently falling back to defaults.
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Heartbeat HeartbeatConfig `json:"heartbeat"`
	Diag      DiagConfig      `json:"diag,omitempty"`

	// Storage controls the optional audit trail. Nil disables persistence.
	Storage *StorageConfig `json:"storage,omitempty"`

	Housekeeping HousekeepingConfig `json:"housekeeping,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// SchedulerConfig carries the queue admission knobs.
//
// Defaults (when fields are omitted/zero):
//   - wait_cost: 10
//   - surcharge_frequency: 64
//   - max_pid: 8192
//   - player_quota: 100
type SchedulerConfig struct {
	// WaitCost is debited per queued command and refunded on dispatch.
	WaitCost *int `json:"wait_cost,omitempty"`
	// SurchargeFrequency: one in this many enqueues costs one extra unit.
	// 0 disables the surcharge.
	SurchargeFrequency *int `json:"surcharge_frequency,omitempty"`
	// MaxPID bounds the job-id namespace.
	MaxPID int `json:"max_pid,omitempty"`
	// PlayerQuota is the outstanding-job ceiling for unprivileged owners.
	PlayerQuota int `json:"player_quota,omitempty"`
}

// EffectiveWaitCost resolves the pointer default.
func (c SchedulerConfig) EffectiveWaitCost() int {
	if c.WaitCost == nil {
		return 10
	}
	return *c.WaitCost
}

func (c SchedulerConfig) EffectiveSurchargeFrequency() int {
	if c.SurchargeFrequency == nil {
		return 64
	}
	return *c.SurchargeFrequency
}

// HeartbeatConfig drives the tick loop.
//
// All durations are Go duration strings (e.g. "500ms", "1s").
type HeartbeatConfig struct {
	// Tick is the simulated-second length. Default "1s".
	Tick string `json:"tick,omitempty"`
	// DrainBudget is the number of entries executed per tick. Default 10.
	DrainBudget int `json:"drain_budget,omitempty"`
	// Dequeue is the execution gate. Omitted means enabled; an explicit
	// false boots the daemon with a frozen queue.
	Dequeue *bool `json:"dequeue,omitempty"`
}

// DiagConfig controls the diagnostics HTTP server (health, metrics, queue
// inspection).
//
// Security note: prefer binding to localhost; the queue endpoints can halt
// jobs.
type DiagConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:7683"

	// Server timeouts (Go duration strings).
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

// StorageConfig controls the audit-trail persistence layer.
//
// Example:
//
//	"storage": { "driver": "sqlite", "path": "./mudq.db" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
	// KeepEntries caps the audit table; older rows are pruned. Default 10000.
	KeepEntries int `json:"keep_entries,omitempty"`
}

// HousekeepingConfig schedules the periodic maintenance jobs (cron specs,
// standard five-field syntax).
type HousekeepingConfig struct {
	Enabled bool `json:"enabled"`
	// AuditPruneSpec trims the audit table. Default "17 * * * *".
	AuditPruneSpec string `json:"audit_prune_spec,omitempty"`
	// SummarySpec logs a queue depth summary. Default "0 * * * *".
	SummarySpec string `json:"summary_spec,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
}

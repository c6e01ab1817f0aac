package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	// KeepEntries caps the audit table; PruneAudit trims beyond it.
	// 0 means the default of 10000.
	KeepEntries int
}

// AuditEntry records one job lifecycle event.
// Keep it compact and schema-stable.
type AuditEntry struct {
	At      time.Time
	Kind    string // "dispatch", "cancel", "runaway"
	PID     int
	Actor   int
	Cause   int
	Command string
	Error   string
	TookMS  int64
}

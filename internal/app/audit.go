package app

import (
	"context"
	"fmt"
	"time"

	"mudq/internal/queue"
	"mudq/internal/storage"
	logx "mudq/pkg/logx"
)

// auditLoop turns scheduler lifecycle events into audit rows. Persistence is
// best-effort: a slow disk drops events rather than stalling the queue.
func (a *App) auditLoop(ctx context.Context) {
	events, unsub := a.bus.Subscribe(256)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			var entry storage.AuditEntry
			switch data := ev.Data.(type) {
			case queue.Dispatch:
				entry = storage.AuditEntry{
					At:      ev.Time,
					Kind:    "dispatch",
					PID:     data.PID,
					Actor:   int(data.Actor),
					Cause:   int(data.Cause),
					Command: data.Command,
					Error:   data.Err,
					TookMS:  data.Took.Milliseconds(),
				}
			case queue.Cancelled:
				entry = storage.AuditEntry{
					At:    ev.Time,
					Kind:  "cancel",
					PID:   data.PID,
					Actor: int(data.Actor),
					Cause: int(data.By),
				}
			case queue.Runaway:
				entry = storage.AuditEntry{
					At:      ev.Time,
					Kind:    "runaway",
					Actor:   int(data.Actor),
					Cause:   int(data.Owner),
					Command: fmt.Sprintf("%d jobs halted", data.Halted),
				}
			default:
				continue
			}

			wctx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
			if err := a.audit.AppendAudit(wctx, entry); err != nil {
				a.log.Debug("audit append failed", logx.Err(err))
			}
			cancel()
		}
	}
}

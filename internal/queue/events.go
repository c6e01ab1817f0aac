package queue

import (
	"time"

	"mudq/internal/world"
)

// Event types published on the attached bus. Payloads are small value
// structs so subscribers can persist them without touching the scheduler.
const (
	EventDispatched = "queue.dispatched"
	EventCancelled  = "queue.cancelled"
	EventRunaway    = "queue.runaway"
)

// Dispatch describes one completed hand-off to the command evaluator.
type Dispatch struct {
	PID     int
	Actor   world.Ref
	Cause   world.Ref
	Command string
	Took    time.Duration
	Err     string
}

// Cancelled describes one entry removed before execution.
type Cancelled struct {
	PID   int
	Actor world.Ref
	By    world.Ref
}

// Runaway describes a tripped queue-ceiling breaker.
type Runaway struct {
	Owner  world.Ref
	Actor  world.Ref
	Halted int
}

package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	EnqueueCounter    = prometheus.NewCounter(prometheus.CounterOpts{Name: "mudq_enqueued_total", Help: "Jobs admitted to the queue"})
	AdmissionRejects  = prometheus.NewCounter(prometheus.CounterOpts{Name: "mudq_admission_rejects_total", Help: "Enqueues denied by admission control"})
	Dispatched        = prometheus.NewCounter(prometheus.CounterOpts{Name: "mudq_dispatched_total", Help: "Jobs handed to the command evaluator"})
	EvaluatorFailures = prometheus.NewCounter(prometheus.CounterOpts{Name: "mudq_evaluator_failures_total", Help: "Dispatches where the evaluator returned an error or panicked"})
	Cancelled         = prometheus.NewCounter(prometheus.CounterOpts{Name: "mudq_cancelled_total", Help: "Jobs removed by cancellation"})
	SemaphoreSignals  = prometheus.NewCounter(prometheus.CounterOpts{Name: "mudq_semaphore_signals_total", Help: "Semaphore waiters released by notify"})
	RunawayBreaker    = prometheus.NewCounter(prometheus.CounterOpts{Name: "mudq_runaway_halts_total", Help: "Owners halted by the runaway circuit breaker"})

	PlayerDepth    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "mudq_player_queue_depth", Help: "Entries in the player immediate queue"})
	ObjectDepth    = prometheus.NewGauge(prometheus.GaugeOpts{Name: "mudq_object_queue_depth", Help: "Entries in the object immediate queue"})
	DeferredDepth  = prometheus.NewGauge(prometheus.GaugeOpts{Name: "mudq_deferred_queue_depth", Help: "Entries in the time-ordered deferred queue"})
	SemaphoreDepth = prometheus.NewGauge(prometheus.GaugeOpts{Name: "mudq_semaphore_queue_depth", Help: "Entries waiting on semaphores"})
)

// SetDepths updates the four queue depth gauges in one call.
func SetDepths(player, object, deferred, semaphore int) {
	PlayerDepth.Set(float64(player))
	ObjectDepth.Set(float64(object))
	DeferredDepth.Set(float64(deferred))
	SemaphoreDepth.Set(float64(semaphore))
}

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			EnqueueCounter,
			AdmissionRejects,
			Dispatched,
			EvaluatorFailures,
			Cancelled,
			SemaphoreSignals,
			RunawayBreaker,
			PlayerDepth,
			ObjectDepth,
			DeferredDepth,
			SemaphoreDepth,
		)
	})
	return promhttp.Handler()
}

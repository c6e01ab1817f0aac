package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"mudq/internal/config"
	"mudq/internal/diag"
	"mudq/internal/eventbus"
	"mudq/internal/notify"
	"mudq/internal/queue"
	"mudq/internal/storage"
	"mudq/internal/world"
	logx "mudq/pkg/logx"
)

// App wires the scheduler daemon together: config, logging, the queue core,
// the notification fanout, the audit trail and the diag server.
type App struct {
	cfgPath string
	cfgm    *config.ConfigManager

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	store world.Store
	sched *queue.Scheduler
	notes *notify.Service
	audit storage.Store
	diag  *diag.Server
	crons *cron.Cron

	heartbeat heartbeatSettings

	mu      sync.Mutex
	stop    context.CancelFunc
	stopped chan struct{}
}

type heartbeatSettings struct {
	tick   time.Duration
	budget int
}

// NewApp loads the config and constructs every component. Nothing runs until
// Start.
//
// eval is the command evaluator the drained entries are handed to; the
// server's command parser provides the real one, and nil installs a logging
// stub so the daemon can run standalone.
func NewApp(cfgPath string, store world.Store, eval world.Evaluator) (*App, error) {
	cfgm := config.NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))
	cfgm.SetLogger(log.With(logx.String("comp", "config")))
	cfgm.SetValidator(func(_ context.Context, c *config.Config) error {
		return config.Validate(c)
	})

	bus := eventbus.New()

	if store == nil {
		store = world.NewMemStore(cfg.Scheduler.PlayerQuota)
	}

	notes := notify.New(notify.Config{}, log)

	if eval == nil {
		evLog := log.With(logx.String("comp", "eval"))
		eval = world.EvaluatorFunc(func(actor, cause world.Ref, command string, args []string, _ *world.Registers) error {
			evLog.Info("dispatch",
				logx.Int("actor", int(actor)),
				logx.Int("cause", int(cause)),
				logx.String("command", command),
				logx.Int("args", len(args)))
			return nil
		})
	}

	sched := queue.New(queue.Config{
		WaitCost:           cfg.Scheduler.EffectiveWaitCost(),
		SurchargeFrequency: cfg.Scheduler.EffectiveSurchargeFrequency(),
		MaxPID:             cfg.Scheduler.MaxPID,
	}, store, eval, notes, log)
	sched.SetBus(bus)
	if cfg.Heartbeat.Dequeue != nil {
		sched.SetDequeue(*cfg.Heartbeat.Dequeue)
	}

	var audit storage.Store
	if cfg.Storage != nil && strings.TrimSpace(cfg.Storage.Driver) != "" {
		busy, _ := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		audit, err = storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
			KeepEntries: cfg.Storage.KeepEntries,
		}, log.With(logx.String("comp", "storage")))
		if err != nil {
			_ = logSvc.Close()
			return nil, err
		}
		log.Info("audit storage enabled", logx.String("driver", cfg.Storage.Driver))
	}

	a := &App{
		cfgPath: cfgPath,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		store:   store,
		sched:   sched,
		notes:   notes,
		audit:   audit,
	}

	tick, _ := config.ParseDurationOrDefault("heartbeat.tick", cfg.Heartbeat.Tick, time.Second)
	budget := cfg.Heartbeat.DrainBudget
	if budget <= 0 {
		budget = 10
	}
	a.heartbeat = heartbeatSettings{tick: tick, budget: budget}

	if cfg.Diag.Enabled {
		rt, _ := config.ParseDurationField("diag.read_timeout", cfg.Diag.ReadTimeout)
		wt, _ := config.ParseDurationField("diag.write_timeout", cfg.Diag.WriteTimeout)
		it, _ := config.ParseDurationField("diag.idle_timeout", cfg.Diag.IdleTimeout)
		a.diag = diag.New(diag.Config{
			Addr:         cfg.Diag.Addr,
			ReadTimeout:  rt,
			WriteTimeout: wt,
			IdleTimeout:  it,
		}, sched, store, notes, audit, log)
	}

	if cfg.Housekeeping.Enabled {
		a.crons = a.buildHousekeeping(cfg.Housekeeping)
	}

	return a, nil
}

// Scheduler exposes the queue core so the embedding server can enqueue.
func (a *App) Scheduler() *queue.Scheduler { return a.sched }

// Notify exposes the session fanout so the network layer can attach sinks.
func (a *App) Notify() *notify.Service { return a.notes }

// Start launches the heartbeat, the audit writer, the config watcher, the
// housekeeping crons and the diag server, then reports readiness to systemd.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	stopped := make(chan struct{})

	a.mu.Lock()
	a.stop = cancel
	a.stopped = stopped
	a.mu.Unlock()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		a.heartbeatLoop(runCtx)
	}()

	if a.audit != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.auditLoop(runCtx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = a.cfgm.Watch(runCtx)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		a.reloadLoop(runCtx)
	}()

	if a.diag != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.diag.Start(runCtx); err != nil {
				a.log.Error("diag server failed", logx.Err(err))
			}
		}()
	}

	if a.crons != nil {
		a.crons.Start()
	}

	go func() {
		wg.Wait()
		close(stopped)
	}()

	_, _ = daemon.SdNotify(false, daemon.SdNotifyReady)
	a.log.Info("mudqd started")
	return nil
}

// Stop cancels the run context and waits for the loops to drain, bounded by
// ctx.
func (a *App) Stop(ctx context.Context) error {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	a.mu.Lock()
	cancel := a.stop
	stopped := a.stopped
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if a.crons != nil {
		cronCtx := a.crons.Stop()
		select {
		case <-cronCtx.Done():
		case <-ctx.Done():
		}
	}

	if stopped != nil {
		select {
		case <-stopped:
		case <-ctx.Done():
		}
	}

	if a.audit != nil {
		_ = a.audit.Close()
	}
	a.log.Info("mudqd stopped")
	return a.logs.Close()
}

// reloadLoop applies config changes published by the watcher. Only the hot
// knobs move at runtime; structural settings (storage driver, diag address,
// PID ceiling) need a restart.
func (a *App) reloadLoop(ctx context.Context) {
	sub := a.cfgm.Subscribe(1)
	defer a.cfgm.Unsubscribe(sub)

	prev := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok || cfg == nil {
				return
			}
			changed, attrs := config.SummarizeConfigChange(prev, cfg)
			if len(changed) == 0 {
				prev = cfg
				continue
			}
			a.log.Info("config reloaded", append([]logx.Field{
				logx.String("sections", strings.Join(changed, ",")),
			}, attrs...)...)

			a.logs.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			a.sched.Apply(queue.Config{
				WaitCost:           cfg.Scheduler.EffectiveWaitCost(),
				SurchargeFrequency: cfg.Scheduler.EffectiveSurchargeFrequency(),
			})
			if cfg.Heartbeat.Dequeue != nil {
				a.sched.SetDequeue(*cfg.Heartbeat.Dequeue)
			}
			prev = cfg
		}
	}
}

func (a *App) buildHousekeeping(hc config.HousekeepingConfig) *cron.Cron {
	opts := []cron.Option{}
	if tz := strings.TrimSpace(hc.Timezone); tz != "" {
		if loc, err := time.LoadLocation(tz); err == nil {
			opts = append(opts, cron.WithLocation(loc))
		} else {
			a.log.Warn("invalid housekeeping timezone; using local", logx.String("tz", tz))
		}
	}
	c := cron.New(opts...)

	pruneSpec := strings.TrimSpace(hc.AuditPruneSpec)
	if pruneSpec == "" {
		pruneSpec = "17 * * * *"
	}
	if a.audit != nil {
		if _, err := c.AddFunc(pruneSpec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			n, err := a.audit.PruneAudit(ctx)
			if err != nil {
				a.log.Warn("audit prune failed", logx.Err(err))
				return
			}
			if n > 0 {
				a.log.Info("audit pruned", logx.Int64("removed", n))
			}
		}); err != nil {
			a.log.Warn("bad audit_prune_spec", logx.String("spec", pruneSpec), logx.Err(err))
		}
	}

	summarySpec := strings.TrimSpace(hc.SummarySpec)
	if summarySpec == "" {
		summarySpec = "0 * * * *"
	}
	if _, err := c.AddFunc(summarySpec, func() {
		player, object, deferred, semaphore := a.sched.Depths()
		a.log.Info("queue summary",
			logx.Int("player", player),
			logx.Int("object", object),
			logx.Int("deferred", deferred),
			logx.Int("semaphore", semaphore))
	}); err != nil {
		a.log.Warn("bad summary_spec", logx.String("spec", summarySpec), logx.Err(err))
	}

	return c
}

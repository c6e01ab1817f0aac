package diag

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"mudq/internal/notify"
	"mudq/internal/queue"
	"mudq/internal/storage"
	"mudq/internal/telemetry"
	"mudq/internal/world"
	logx "mudq/pkg/logx"
)

// Config holds the diag server's listen settings.
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Server exposes the scheduler over HTTP for operators: health, metrics,
// queue inspection and the halt/kick/warp controls. It is an operator
// surface, not the player protocol; bind it to localhost.
type Server struct {
	cfg   Config
	sched *queue.Scheduler
	store world.Store
	notes *notify.Service
	audit storage.Store
	log   logx.Logger

	srv *http.Server
}

// New constructs the diag server. notes and audit may be nil; their
// endpoints then report 404.
func New(cfg Config, sched *queue.Scheduler, store world.Store, notes *notify.Service, audit storage.Store, log logx.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:7683"
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Server{
		cfg:   cfg,
		sched: sched,
		store: store,
		notes: notes,
		audit: audit,
		log:   log.With(logx.String("component", "diag")),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/metrics", telemetry.Handler())

	r.Get("/queues", s.handleListQueues)
	r.Post("/queues/halt", s.handleHaltMatching)
	r.Post("/pids/{pid}/halt", s.handleHaltPID)
	r.Post("/pids/{pid}/reschedule", s.handleReschedule)
	r.Post("/kick", s.handleKick)
	r.Post("/warp", s.handleWarp)
	r.Post("/dequeue", s.handleDequeue)
	r.Get("/notices", s.handleNotices)
	r.Get("/audit", s.handleAudit)
	return r
}

// Start runs the server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("diag server listening", logx.String("addr", s.cfg.Addr))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(sctx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// refQuery parses an optional object reference query parameter; absent or
// empty means world.Nothing.
func refQuery(r *http.Request, key string) (world.Ref, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return world.Nothing, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return world.Nothing, errors.New("invalid " + key)
	}
	return world.Ref(n), nil
}

// asRef resolves the acting object for permissioned operations from the
// ?as= query parameter. PID-addressed operations go through the same
// permission model as the in-world commands, so they need an acting object.
func (s *Server) asRef(r *http.Request) (world.Ref, error) {
	return refQuery(r, "as")
}

func requireAs(as world.Ref, err error) (world.Ref, error) {
	if err != nil {
		return as, err
	}
	if as == world.Nothing {
		return as, errors.New("as is required")
	}
	return as, nil
}

func (s *Server) handleListQueues(w http.ResponseWriter, r *http.Request) {
	owner, err := refQuery(r, "owner")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	actor, err := refQuery(r, "actor")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	v := queue.Brief
	switch r.URL.Query().Get("verbosity") {
	case "", "brief":
	case "summary":
		v = queue.Summary
	case "long":
		v = queue.Long
	default:
		http.Error(w, "verbosity must be summary, brief or long", http.StatusBadRequest)
		return
	}

	// The in-world command layer gates who may list whose queues; the diag
	// surface applies the same rule when ?as= names a viewer.
	if as, err := s.asRef(r); err == nil && as != world.Nothing && !s.store.CanSeeQueue(as) {
		if owner == world.Nothing && actor == world.Nothing {
			owner = s.store.Owner(as)
		} else if (owner != world.Nothing && owner != s.store.Owner(as)) ||
			(actor != world.Nothing && s.store.Owner(actor) != s.store.Owner(as)) {
			http.Error(w, "permission denied", http.StatusForbidden)
			return
		}
	}

	listing, err := s.sched.ListQueues(owner, actor, v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"listing": listing,
		"totals":  listing.Totals(true),
	})
}

func (s *Server) handleHaltMatching(w http.ResponseWriter, r *http.Request) {
	owner, err := refQuery(r, "owner")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	actor, err := refQuery(r, "actor")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	n, err := s.sched.CancelMatching(owner, actor)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.log.Info("queues halted via diag",
		logx.Int("owner", int(owner)),
		logx.Int("actor", int(actor)),
		logx.Int("halted", n))
	writeJSON(w, http.StatusOK, map[string]int{"halted": n})
}

func (s *Server) handleHaltPID(w http.ResponseWriter, r *http.Request) {
	pid, err := strconv.Atoi(chi.URLParam(r, "pid"))
	if err != nil {
		http.Error(w, "invalid pid", http.StatusBadRequest)
		return
	}
	as, err := requireAs(s.asRef(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = s.sched.CancelByPID(as, pid)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "halted"})
	case errors.Is(err, queue.ErrNoSuchPID):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, queue.ErrAlreadyHalted):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, queue.ErrPermission):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

type rescheduleRequest struct {
	// Mode is "absolute" (unix seconds) or "relative" (delta seconds).
	Mode  string `json:"mode"`
	Value int64  `json:"value"`
}

func (s *Server) handleReschedule(w http.ResponseWriter, r *http.Request) {
	pid, err := strconv.Atoi(chi.URLParam(r, "pid"))
	if err != nil {
		http.Error(w, "invalid pid", http.StatusBadRequest)
		return
	}
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	var mode queue.RescheduleMode
	switch req.Mode {
	case "absolute":
		mode = queue.RescheduleAbsolute
	case "relative":
		mode = queue.RescheduleRelative
	default:
		http.Error(w, "mode must be absolute or relative", http.StatusBadRequest)
		return
	}
	as, err := requireAs(s.asRef(r))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = s.sched.Reschedule(as, pid, mode, req.Value)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "rescheduled"})
	case errors.Is(err, queue.ErrNoSuchPID):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, queue.ErrNoTimeout), errors.Is(err, queue.ErrAlreadyHalted):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, queue.ErrPermission):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleKick(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.URL.Query().Get("n"))
	if err != nil || n <= 0 {
		http.Error(w, "n must be a positive integer", http.StatusBadRequest)
		return
	}
	ran := s.sched.QueueKick(n)
	s.log.Info("queue kicked via diag", logx.Int("requested", n), logx.Int("ran", ran))
	writeJSON(w, http.StatusOK, map[string]int{"ran": ran})
}

func (s *Server) handleWarp(w http.ResponseWriter, r *http.Request) {
	secs, err := strconv.ParseInt(r.URL.Query().Get("seconds"), 10, 64)
	if err != nil || secs == 0 {
		http.Error(w, "seconds must be a nonzero integer", http.StatusBadRequest)
		return
	}
	s.sched.QueueWarp(secs)
	s.log.Info("queue warped via diag", logx.Int64("seconds", secs))
	writeJSON(w, http.StatusOK, map[string]string{"status": "warped"})
}

func (s *Server) handleDequeue(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query().Get("enabled")
	enabled, err := strconv.ParseBool(v)
	if err != nil {
		http.Error(w, "enabled must be true or false", http.StatusBadRequest)
		return
	}
	s.sched.SetDequeue(enabled)
	s.log.Info("dequeue gate set via diag", logx.Bool("enabled", enabled))
	writeJSON(w, http.StatusOK, map[string]bool{"dequeue": enabled})
}

func (s *Server) handleNotices(w http.ResponseWriter, r *http.Request) {
	if s.notes == nil {
		http.NotFound(w, r)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, map[string]any{"notices": s.notes.Snapshot(limit)})
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	if s.audit == nil {
		http.NotFound(w, r)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	entries, err := s.audit.RecentAudit(r.Context(), limit)
	if err != nil {
		http.Error(w, "failed to read audit", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

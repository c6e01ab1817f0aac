package notify

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"mudq/internal/world"
	logx "mudq/pkg/logx"
)

// Service fans scheduler messages (admission refusals, halt reports, queue
// listings) out to connected sessions. The network layer attaches a Sink per
// connection; messages for targets without a sink still land in the history
// so operators can inspect them through the diag server.
//
// It is safe for concurrent use and implements world.Notifier.
type Service struct {
	mu       sync.Mutex
	cfg      Config
	log      logx.Logger
	sinks    map[world.Ref]Sink
	limiters map[world.Ref]*rate.Limiter

	hmu     sync.Mutex
	history []Message
}

// Sink delivers one line of text to a session. Sinks must not block; slow
// connections buffer or drop on their own side.
type Sink func(message string)

type Config struct {
	// RatePerSec caps deliveries per target; a runaway automaton spamming
	// its owner gets dropped here, not in the scheduler. Default 10.
	RatePerSec int
	// Burst is the token-bucket burst. Default RatePerSec.
	Burst int
	// HistorySize is the retained message count. Default 300.
	HistorySize int
}

// Message is one retained delivery.
type Message struct {
	At      time.Time
	Target  world.Ref
	Text    string
	Dropped bool // rate limit hit; the sink never saw it
}

func New(cfg Config, log logx.Logger) *Service {
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RatePerSec
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 300
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:      cfg,
		log:      log.With(logx.String("component", "notify")),
		sinks:    map[world.Ref]Sink{},
		limiters: map[world.Ref]*rate.Limiter{},
	}
}

// Attach registers the delivery sink for a target, replacing any previous one.
func (s *Service) Attach(target world.Ref, sink Sink) {
	s.mu.Lock()
	s.sinks[target] = sink
	s.mu.Unlock()
}

// Detach removes the target's sink and its limiter state.
func (s *Service) Detach(target world.Ref) {
	s.mu.Lock()
	delete(s.sinks, target)
	delete(s.limiters, target)
	s.mu.Unlock()
}

// Notify implements world.Notifier. Delivery is best-effort and never blocks
// the scheduler.
func (s *Service) Notify(target world.Ref, message string) {
	if !target.Valid() || message == "" {
		return
	}

	s.mu.Lock()
	lim := s.limiters[target]
	if lim == nil {
		lim = rate.NewLimiter(rate.Limit(s.cfg.RatePerSec), s.cfg.Burst)
		s.limiters[target] = lim
	}
	sink := s.sinks[target]
	s.mu.Unlock()

	dropped := !lim.Allow()
	s.append(Message{At: time.Now(), Target: target, Text: message, Dropped: dropped})
	if dropped {
		s.log.Debug("notify rate limited", logx.Int("target", int(target)))
		return
	}
	if sink != nil {
		sink(message)
	}
}

// Snapshot returns up to limit retained messages, newest last.
func (s *Service) Snapshot(limit int) []Message {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]Message, limit)
	copy(out, s.history[len(s.history)-limit:])
	return out
}

func (s *Service) append(m Message) {
	s.hmu.Lock()
	s.history = append(s.history, m)
	if max := s.cfg.HistorySize; len(s.history) > max {
		s.history = s.history[len(s.history)-max:]
	}
	s.hmu.Unlock()
}

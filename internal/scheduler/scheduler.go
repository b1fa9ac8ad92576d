package scheduler

import (
	"errors"
	"sync"
	"time"

	"signal-bot/internal/domain"

	"github.com/google/uuid"
)

const (
	DefaultShortDelay    = 3 * time.Second
	DefaultCountdownLead = time.Minute
)

var (
	// ErrStaleSchedule marks a fire whose request was superseded. Internal only.
	ErrStaleSchedule = errors.New("scheduled request superseded")
	ErrStopped       = errors.New("scheduler stopped")
)

type Timer interface {
	Stop() bool
}

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// RealClock is backed by the runtime timers.
func RealClock() Clock { return realClock{} }

type Stage int

const (
	StageCountdown Stage = iota
	StageSignal
)

func (s Stage) String() string {
	if s == StageCountdown {
		return "countdown"
	}
	return "signal"
}

// FireFunc runs when a stage of a request comes due. It must re-check that the
// request is still the session's pending one before acting.
type FireFunc func(req domain.ScheduledRequest, stage Stage)

type Config struct {
	ShortDelay    time.Duration
	CountdownLead time.Duration
}

// Plan holds the delays, relative to scheduling time, of each stage.
type Plan struct {
	Countdown    time.Duration
	HasCountdown bool
	Signal       time.Duration
}

// PlanFor applies the delay policy: long expiries announce the signal a lead
// before it is due, short ones fire once after a small fixed delay.
func PlanFor(expiry domain.Expiry, cfg Config) Plan {
	if !expiry.IsLong() {
		return Plan{Signal: cfg.ShortDelay}
	}
	due := expiry.Duration()
	countdown := due - cfg.CountdownLead
	if countdown < 0 {
		countdown = 0
	}
	return Plan{Countdown: countdown, HasCountdown: true, Signal: due}
}

type armed struct {
	countdown Timer
	signal    Timer
}

// Scheduler owns scheduled requests until they fire or are released.
type Scheduler struct {
	clock Clock
	cfg   Config
	newID func() domain.RequestID

	mu      sync.Mutex
	timers  map[domain.RequestID]*armed
	stopped bool
}

func New(clock Clock, cfg Config) *Scheduler {
	if clock == nil {
		clock = RealClock()
	}
	if cfg.ShortDelay <= 0 {
		cfg.ShortDelay = DefaultShortDelay
	}
	if cfg.CountdownLead <= 0 {
		cfg.CountdownLead = DefaultCountdownLead
	}
	return &Scheduler{
		clock:  clock,
		cfg:    cfg,
		newID:  func() domain.RequestID { return domain.RequestID(uuid.NewString()) },
		timers: make(map[domain.RequestID]*armed),
	}
}

// Schedule allocates a fresh request and arms its timers.
func (s *Scheduler) Schedule(user domain.UserID, pair domain.Pair, expiry domain.Expiry, fire FireFunc) (domain.ScheduledRequest, error) {
	plan := PlanFor(expiry, s.cfg)
	req := domain.ScheduledRequest{
		ID:     s.newID(),
		User:   user,
		Pair:   pair,
		Expiry: expiry,
		FireAt: s.clock.Now().Add(plan.Signal),
	}

	// Timer callbacks take s.mu first, so they cannot observe the registry
	// before this request is recorded.
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return domain.ScheduledRequest{}, ErrStopped
	}

	a := &armed{}
	if plan.HasCountdown {
		a.countdown = s.clock.AfterFunc(plan.Countdown, func() {
			s.mu.Lock()
			if cur, ok := s.timers[req.ID]; ok {
				cur.countdown = nil
			}
			s.mu.Unlock()
			fire(req, StageCountdown)
		})
	}
	a.signal = s.clock.AfterFunc(plan.Signal, func() {
		s.mu.Lock()
		delete(s.timers, req.ID)
		s.mu.Unlock()
		fire(req, StageSignal)
	})
	s.timers[req.ID] = a
	return req, nil
}

// Release stops the timers of a superseded request. Fires already in flight
// are still dropped by the pending-id check.
func (s *Scheduler) Release(id domain.RequestID) {
	if id == "" {
		return
	}
	s.mu.Lock()
	a, ok := s.timers[id]
	delete(s.timers, id)
	s.mu.Unlock()
	if ok {
		a.stop()
	}
}

// Pending returns the number of requests whose signal stage has not fired.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop disarms every timer and rejects further scheduling.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	all := s.timers
	s.timers = make(map[domain.RequestID]*armed)
	s.stopped = true
	s.mu.Unlock()

	for _, a := range all {
		a.stop()
	}
}

func (a *armed) stop() {
	if a.countdown != nil {
		a.countdown.Stop()
	}
	if a.signal != nil {
		a.signal.Stop()
	}
}

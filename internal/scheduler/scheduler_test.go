package scheduler_test

import (
	"sync"
	"testing"
	"time"

	"signal-bot/internal/domain"
	"signal-bot/internal/scheduler"
	"signal-bot/internal/scheduler/schedulertest"
)

func TestPlanForShortExpiry(t *testing.T) {
	cfg := scheduler.Config{ShortDelay: 3 * time.Second, CountdownLead: time.Minute}
	plan := scheduler.PlanFor(domain.Expiry5s, cfg)
	if plan.HasCountdown {
		t.Fatal("short expiry must not schedule a countdown")
	}
	if plan.Signal != 3*time.Second {
		t.Fatalf("expected short delay, got %s", plan.Signal)
	}
}

func TestPlanForLongExpiry(t *testing.T) {
	cfg := scheduler.Config{ShortDelay: 3 * time.Second, CountdownLead: time.Minute}

	plan := scheduler.PlanFor(domain.Expiry2m, cfg)
	if !plan.HasCountdown || plan.Countdown != time.Minute || plan.Signal != 2*time.Minute {
		t.Fatalf("unexpected 2m plan: %+v", plan)
	}

	plan = scheduler.PlanFor(domain.Expiry1m, cfg)
	if !plan.HasCountdown || plan.Countdown != 0 || plan.Signal != time.Minute {
		t.Fatalf("unexpected 1m plan: %+v", plan)
	}
}

func TestPlanForClampsCountdown(t *testing.T) {
	cfg := scheduler.Config{ShortDelay: time.Second, CountdownLead: 5 * time.Minute}
	plan := scheduler.PlanFor(domain.Expiry2m, cfg)
	if plan.Countdown != 0 {
		t.Fatalf("expected countdown clamped to zero, got %s", plan.Countdown)
	}
}

func TestScheduleLongExpiryFiresCountdownThenSignal(t *testing.T) {
	start := time.Unix(1000, 0).UTC()
	clock := schedulertest.NewFakeClock(start)
	s := scheduler.New(clock, scheduler.Config{ShortDelay: 3 * time.Second, CountdownLead: time.Minute})

	rec := &recorder{clock: clock}
	req, err := s.Schedule(7, domain.PairEURUSD, domain.Expiry2m, rec.fire)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.ID == "" || req.User != 7 || !req.FireAt.Equal(start.Add(2*time.Minute)) {
		t.Fatalf("unexpected request: %+v", req)
	}

	clock.Advance(59 * time.Second)
	if len(rec.events()) != 0 {
		t.Fatalf("nothing should fire before the countdown, got %+v", rec.events())
	}

	clock.Advance(2 * time.Minute)
	got := rec.events()
	if len(got) != 2 {
		t.Fatalf("expected countdown and signal, got %+v", got)
	}
	if got[0].stage != scheduler.StageCountdown || !got[0].at.Equal(req.FireAt.Add(-time.Minute)) {
		t.Fatalf("expected countdown at fireAt-60s, got %+v", got[0])
	}
	if got[1].stage != scheduler.StageSignal || !got[1].at.Equal(req.FireAt) {
		t.Fatalf("expected signal at fireAt, got %+v", got[1])
	}
	if s.Pending() != 0 {
		t.Fatalf("expected registry to be empty, got %d", s.Pending())
	}
}

func TestScheduleShortExpiryFiresOnce(t *testing.T) {
	clock := schedulertest.NewFakeClock(time.Unix(0, 0))
	s := scheduler.New(clock, scheduler.Config{ShortDelay: 3 * time.Second})

	rec := &recorder{clock: clock}
	if _, err := s.Schedule(1, domain.PairAUDUSD, domain.Expiry15s, rec.fire); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock.Advance(10 * time.Second)

	got := rec.events()
	if len(got) != 1 || got[0].stage != scheduler.StageSignal {
		t.Fatalf("expected a single signal stage, got %+v", got)
	}
}

func TestScheduleAllocatesUniqueIDs(t *testing.T) {
	s := scheduler.New(schedulertest.NewFakeClock(time.Unix(0, 0)), scheduler.Config{})
	seen := make(map[domain.RequestID]bool)
	for i := 0; i < 100; i++ {
		req, err := s.Schedule(1, domain.PairEURUSD, domain.Expiry5s, func(domain.ScheduledRequest, scheduler.Stage) {})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[req.ID] {
			t.Fatalf("duplicate request id %s", req.ID)
		}
		seen[req.ID] = true
	}
	if s.Pending() != 100 {
		t.Fatalf("expected 100 pending requests, got %d", s.Pending())
	}
}

func TestReleaseStopsTimers(t *testing.T) {
	clock := schedulertest.NewFakeClock(time.Unix(0, 0))
	s := scheduler.New(clock, scheduler.Config{})

	rec := &recorder{clock: clock}
	req, _ := s.Schedule(1, domain.PairEURUSD, domain.Expiry3m, rec.fire)
	s.Release(req.ID)
	s.Release("")

	if clock.Pending() != 0 || s.Pending() != 0 {
		t.Fatalf("expected all timers released, clock=%d scheduler=%d", clock.Pending(), s.Pending())
	}
	clock.Advance(10 * time.Minute)
	if len(rec.events()) != 0 {
		t.Fatalf("released request must not fire, got %+v", rec.events())
	}
}

func TestStopRejectsNewRequests(t *testing.T) {
	clock := schedulertest.NewFakeClock(time.Unix(0, 0))
	s := scheduler.New(clock, scheduler.Config{})

	rec := &recorder{clock: clock}
	_, _ = s.Schedule(1, domain.PairEURUSD, domain.Expiry5m, rec.fire)
	s.Stop()

	if _, err := s.Schedule(2, domain.PairEURUSD, domain.Expiry5s, rec.fire); err != scheduler.ErrStopped {
		t.Fatalf("expected ErrStopped, got %v", err)
	}
	clock.Advance(time.Hour)
	if len(rec.events()) != 0 {
		t.Fatalf("stopped scheduler must not fire, got %+v", rec.events())
	}
}

func TestRealClockFires(t *testing.T) {
	s := scheduler.New(scheduler.RealClock(), scheduler.Config{ShortDelay: 5 * time.Millisecond})
	defer s.Stop()

	done := make(chan scheduler.Stage, 1)
	if _, err := s.Schedule(1, domain.PairEURUSD, domain.Expiry5s, func(_ domain.ScheduledRequest, stage scheduler.Stage) {
		done <- stage
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case stage := <-done:
		if stage != scheduler.StageSignal {
			t.Fatalf("expected signal stage, got %s", stage)
		}
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

type fired struct {
	id    domain.RequestID
	stage scheduler.Stage
	at    time.Time
}

type recorder struct {
	clock *schedulertest.FakeClock
	mu    sync.Mutex
	got   []fired
}

func (r *recorder) fire(req domain.ScheduledRequest, stage scheduler.Stage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, fired{id: req.ID, stage: stage, at: r.clock.Now()})
}

func (r *recorder) events() []fired {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]fired(nil), r.got...)
}

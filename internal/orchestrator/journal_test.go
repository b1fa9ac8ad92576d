package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"signal-bot/internal/domain"
)

type stubRecorder struct {
	got []domain.Delivery
	err error
}

func (s *stubRecorder) Record(_ context.Context, d domain.Delivery) error {
	s.got = append(s.got, d)
	return s.err
}

type stubEmitter struct {
	got []domain.Outbound
	err error
}

func (s *stubEmitter) Emit(_ context.Context, ev domain.Outbound) error {
	s.got = append(s.got, ev)
	return s.err
}

func TestJournalRecordsDeliveredSignals(t *testing.T) {
	next := &stubEmitter{}
	rec := &stubRecorder{}
	j := NewJournal(next, rec, nil)
	at := time.Unix(1_700_000_000, 0)
	j.now = func() time.Time { return at }

	ctx := context.Background()
	if err := j.Emit(ctx, domain.PairMenu{User: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	err := j.Emit(ctx, domain.SignalDelivered{
		User:       1,
		RequestID:  "r1",
		Direction:  domain.DirectionSell,
		Confidence: 85,
		Pair:       domain.PairUSDCAD,
		Expiry:     domain.Expiry3m,
		Volatility: domain.VolatilityHigh,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(next.got) != 2 {
		t.Fatalf("expected both events forwarded, got %d", len(next.got))
	}
	if len(rec.got) != 1 {
		t.Fatalf("expected one journal entry, got %+v", rec.got)
	}
	d := rec.got[0]
	if d.User != 1 || d.RequestID != "r1" || d.Direction != domain.DirectionSell || !d.Sent || !d.DeliveredAt.Equal(at) {
		t.Fatalf("unexpected journal entry: %+v", d)
	}
}

func TestJournalMarksUnsentAndKeepsTransportError(t *testing.T) {
	sendErr := errors.New("chat not found")
	next := &stubEmitter{err: sendErr}
	rec := &stubRecorder{}
	j := NewJournal(next, rec, nil)

	err := j.Emit(context.Background(), domain.SignalDelivered{User: 2, Direction: domain.DirectionWait, Confidence: 50})
	if !errors.Is(err, sendErr) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if len(rec.got) != 1 || rec.got[0].Sent {
		t.Fatalf("expected unsent journal entry, got %+v", rec.got)
	}
}

func TestJournalIgnoresRecorderFailure(t *testing.T) {
	j := NewJournal(&stubEmitter{}, &stubRecorder{err: errors.New("db down")}, nil)
	if err := j.Emit(context.Background(), domain.SignalDelivered{User: 3}); err != nil {
		t.Fatalf("recorder failure must not surface, got %v", err)
	}
}

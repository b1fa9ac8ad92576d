package orchestrator

import (
	"context"
	"time"

	"signal-bot/internal/domain"

	"go.uber.org/zap"
)

type DeliveryRecorder interface {
	Record(ctx context.Context, d domain.Delivery) error
}

// Journal forwards every event to the next emitter and records delivered
// signals. Recording failures are logged and never block delivery.
type Journal struct {
	next     Emitter
	recorder DeliveryRecorder
	log      *zap.Logger
	now      func() time.Time
}

func NewJournal(next Emitter, recorder DeliveryRecorder, log *zap.Logger) *Journal {
	if log == nil {
		log = zap.NewNop()
	}
	return &Journal{next: next, recorder: recorder, log: log, now: time.Now}
}

func (j *Journal) Emit(ctx context.Context, ev domain.Outbound) error {
	var err error
	if j.next != nil {
		err = j.next.Emit(ctx, ev)
	}

	d, ok := ev.(domain.SignalDelivered)
	if !ok || j.recorder == nil {
		return err
	}
	rec := domain.Delivery{
		User:        d.User,
		RequestID:   d.RequestID,
		Pair:        d.Pair,
		Expiry:      d.Expiry,
		Direction:   d.Direction,
		Confidence:  d.Confidence,
		Volatility:  d.Volatility,
		Sent:        err == nil,
		DeliveredAt: j.now(),
	}
	if recErr := j.recorder.Record(ctx, rec); recErr != nil {
		j.log.Warn("journal write failed", zap.Int64("user", int64(d.User)), zap.Error(recErr))
	}
	return err
}

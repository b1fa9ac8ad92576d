package job

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const defaultPruneTick = time.Hour

type DeliveryPruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// JournalRetention periodically removes delivery journal rows older than the
// retention window.
type JournalRetention struct {
	tracer    trace.Tracer
	pruner    DeliveryPruner
	retention time.Duration
	tick      time.Duration
	log       *zap.Logger
	now       func() time.Time
}

func NewJournalRetention(tracer trace.Tracer, pruner DeliveryPruner, retention time.Duration, log *zap.Logger) *JournalRetention {
	if log == nil {
		log = zap.NewNop()
	}
	return &JournalRetention{
		tracer:    tracer,
		pruner:    pruner,
		retention: retention,
		tick:      defaultPruneTick,
		log:       log,
		now:       time.Now,
	}
}

// Start prunes once immediately, then on every tick until ctx is done.
func (j *JournalRetention) Start(ctx context.Context) {
	if j == nil || j.pruner == nil || j.retention <= 0 {
		<-ctx.Done()
		return
	}

	j.log.Info("journal retention starting", zap.Duration("retention", j.retention))
	ticker := time.NewTicker(j.tick)
	defer ticker.Stop()

	j.prune(ctx)
	for {
		select {
		case <-ctx.Done():
			j.log.Info("journal retention stopped")
			return
		case <-ticker.C:
			j.prune(ctx)
		}
	}
}

func (j *JournalRetention) prune(ctx context.Context) {
	if j.tracer != nil {
		var span trace.Span
		ctx, span = j.tracer.Start(ctx, "journal-retention.prune")
		defer span.End()
		span.SetAttributes(attribute.String("retention", j.retention.String()))
	}
	cutoff := j.now().Add(-j.retention)
	deleted, err := j.pruner.DeleteBefore(ctx, cutoff)
	if err != nil {
		j.log.Warn("journal prune failed", zap.Error(err))
		return
	}
	if deleted > 0 {
		j.log.Info("journal pruned", zap.Int64("rows", deleted), zap.Time("cutoff", cutoff))
	}
}

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"signal-bot/internal/domain"
	"signal-bot/internal/metrics"
	"signal-bot/internal/scheduler"
	"signal-bot/internal/session"
	"signal-bot/internal/signal"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const defaultAnalysisTimeout = 15 * time.Second

// Emitter delivers outbound events to the transport.
type Emitter interface {
	Emit(ctx context.Context, ev domain.Outbound) error
}

type AccessChecker interface {
	IsValidAccessCode(ctx context.Context, code string) bool
}

type Scheduler interface {
	Schedule(user domain.UserID, pair domain.Pair, expiry domain.Expiry, fire scheduler.FireFunc) (domain.ScheduledRequest, error)
	Release(id domain.RequestID)
}

// Orchestrator drives each user's session through the state machine, arms the
// scheduler and turns fired requests into delivered signals.
type Orchestrator struct {
	tracer  trace.Tracer
	log     *zap.Logger
	metrics *metrics.Metrics

	store   *session.Store
	sched   Scheduler
	source  signal.Source
	access  AccessChecker
	emitter Emitter

	analysisTimeout time.Duration
}

func New(
	tracer trace.Tracer,
	log *zap.Logger,
	m *metrics.Metrics,
	store *session.Store,
	sched Scheduler,
	source signal.Source,
	access AccessChecker,
	emitter Emitter,
) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	if m == nil {
		m = metrics.New(nil)
	}
	return &Orchestrator{
		tracer:          tracer,
		log:             log,
		metrics:         m,
		store:           store,
		sched:           sched,
		source:          source,
		access:          access,
		emitter:         emitter,
		analysisTimeout: defaultAnalysisTimeout,
	}
}

// SetAnalysisTimeout bounds price retrieval plus computation for one signal.
func (o *Orchestrator) SetAnalysisTimeout(d time.Duration) {
	if d > 0 {
		o.analysisTimeout = d
	}
}

// Handle applies one inbound event. Rejected transitions are reported to the
// user and are not errors; a returned error is unexpected.
func (o *Orchestrator) Handle(ctx context.Context, ev domain.Inbound) error {
	o.metrics.InboundEvents.WithLabelValues(ev.EventName()).Inc()

	var err error
	switch e := ev.(type) {
	case domain.StartRequested:
		err = o.start(ctx, e.User)
	case domain.AccessCodeSubmitted:
		err = o.submitAccessCode(ctx, e.User, e.Code)
	case domain.PairChosen:
		err = o.selectPair(ctx, e.User, e.Pair)
	case domain.ExpiryChosen:
		err = o.selectExpiry(ctx, e.User, e.Expiry)
	case domain.RepeatRequested:
		err = o.regenerate(ctx, e.User, false)
	case domain.ManualSignalRequested:
		err = o.regenerate(ctx, e.User, true)
	case domain.BackRequested:
		err = o.back(ctx, e.User)
	default:
		return fmt.Errorf("unsupported inbound event %T", ev)
	}
	return o.rejectOrFail(ctx, ev.Recipient(), err)
}

func (o *Orchestrator) rejectOrFail(ctx context.Context, user domain.UserID, err error) error {
	if err == nil {
		return nil
	}
	if reason, ok := session.ReasonOf(err); ok {
		o.metrics.InvalidTransitions.WithLabelValues(string(reason)).Inc()
		o.emit(ctx, domain.InvalidTransition{User: user, Reason: reason})
		return nil
	}
	return err
}

func (o *Orchestrator) start(ctx context.Context, user domain.UserID) error {
	return o.store.With(user, func(s *session.Session) error {
		if s.State() == session.Unauthenticated {
			o.emit(ctx, domain.PromptAccessCode{User: user})
			return nil
		}
		o.emit(ctx, pairMenu(user))
		return nil
	})
}

func (o *Orchestrator) submitAccessCode(ctx context.Context, user domain.UserID, code string) error {
	if current, ok := o.store.Get(user); ok && current.Authenticated {
		o.emit(ctx, domain.AccessGranted{User: user, AlreadyAuthorized: true})
		return nil
	}

	// The check may hit Redis, so it runs before taking the session lock.
	valid := o.access != nil && o.access.IsValidAccessCode(ctx, code)

	return o.store.With(user, func(s *session.Session) error {
		already, err := s.SubmitAccessCode(valid)
		switch {
		case errors.Is(err, session.ErrUnauthorizedCode):
			o.log.Info("access code rejected", zap.Int64("user", int64(user)))
			o.emit(ctx, domain.AccessDenied{User: user})
			return nil
		case err != nil:
			return err
		case already:
			o.emit(ctx, domain.AccessGranted{User: user, AlreadyAuthorized: true})
			return nil
		}
		o.log.Info("access granted", zap.Int64("user", int64(user)))
		o.emit(ctx, domain.AccessGranted{User: user})
		o.emit(ctx, pairMenu(user))
		return nil
	})
}

func (o *Orchestrator) selectPair(ctx context.Context, user domain.UserID, pair domain.Pair) error {
	return o.store.With(user, func(s *session.Session) error {
		pending := s.PendingRequestID
		if err := s.SelectPair(pair); err != nil {
			return err
		}
		o.sched.Release(pending)
		o.emit(ctx, domain.ExpiryMenu{
			User:     user,
			Pair:     pair,
			Expiries: append([]domain.Expiry(nil), domain.SupportedExpiries...),
		})
		return nil
	})
}

func (o *Orchestrator) selectExpiry(ctx context.Context, user domain.UserID, expiry domain.Expiry) error {
	return o.store.With(user, func(s *session.Session) error {
		next := *s
		if err := next.SelectExpiry(expiry); err != nil {
			return err
		}

		req, err := o.sched.Schedule(user, next.Pair, expiry, o.fire)
		if err != nil {
			return fmt.Errorf("schedule signal for user %d: %w", user, err)
		}
		if prev := next.Supersede(req.ID); prev != "" {
			o.sched.Release(prev)
		}
		*s = next

		o.log.Debug("signal scheduled",
			zap.Int64("user", int64(user)),
			zap.String("request_id", string(req.ID)),
			zap.String("pair", string(req.Pair)),
			zap.String("expiry", string(req.Expiry)),
			zap.Time("fire_at", req.FireAt),
		)
		o.emit(ctx, domain.SignalPending{User: user, Pair: req.Pair, Expiry: req.Expiry})
		return nil
	})
}

// regenerate serves Repeat and the manual command: same pair and expiry,
// computed immediately, session state unchanged.
func (o *Orchestrator) regenerate(ctx context.Context, user domain.UserID, manual bool) error {
	var pair domain.Pair
	var expiry domain.Expiry
	err := o.store.With(user, func(s *session.Session) error {
		var err error
		if manual {
			pair, expiry, err = s.Manual()
		} else {
			pair, expiry, err = s.Repeat()
		}
		if err != nil {
			return err
		}
		o.emit(ctx, domain.SignalPending{User: user, Pair: pair, Expiry: expiry, Repeat: !manual, Manual: manual})
		return nil
	})
	if err != nil {
		return err
	}

	o.deliver(ctx, user, "", pair, expiry)
	return nil
}

func (o *Orchestrator) back(ctx context.Context, user domain.UserID) error {
	return o.store.With(user, func(s *session.Session) error {
		pending := s.PendingRequestID
		if err := s.Back(); err != nil {
			return err
		}
		o.sched.Release(pending)
		o.emit(ctx, pairMenu(user))
		return nil
	})
}

// fire is the scheduler callback. The pending-id check happens after taking
// the session lock so a superseding Schedule and a stale fire never both deliver.
func (o *Orchestrator) fire(req domain.ScheduledRequest, stage scheduler.Stage) {
	defer func() {
		if r := recover(); r != nil {
			o.metrics.ComputeFailures.Inc()
			o.log.Error("scheduled fire panicked",
				zap.Int64("user", int64(req.User)),
				zap.String("request_id", string(req.ID)),
				zap.Any("panic", r),
			)
		}
	}()

	ctx := context.Background()
	err := o.store.With(req.User, func(s *session.Session) error {
		if stage == scheduler.StageCountdown {
			if !s.IsPending(req.ID) {
				return scheduler.ErrStaleSchedule
			}
			o.metrics.CountdownsSent.Inc()
			o.emit(ctx, domain.CountdownNotice{User: req.User, RequestID: req.ID})
			return nil
		}
		if !s.Claim(req.ID) {
			return scheduler.ErrStaleSchedule
		}
		return nil
	})
	if errors.Is(err, scheduler.ErrStaleSchedule) {
		o.metrics.StaleFires.Inc()
		o.log.Debug("dropping stale fire",
			zap.String("request_id", string(req.ID)),
			zap.String("stage", stage.String()),
		)
		return
	}
	if err != nil || stage == scheduler.StageCountdown {
		return
	}

	o.deliver(ctx, req.User, req.ID, req.Pair, req.Expiry)
}

// deliver computes a fresh signal and emits it. Analysis failures degrade to
// WAIT 50; only unexpected ones are logged as errors.
func (o *Orchestrator) deliver(ctx context.Context, user domain.UserID, id domain.RequestID, pair domain.Pair, expiry domain.Expiry) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.deliver")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("user", int64(user)),
		attribute.String("pair", string(pair)),
		attribute.String("expiry", string(expiry)),
	)

	analysis := o.analyze(ctx, user, pair)
	span.SetAttributes(attribute.String("direction", string(analysis.Result.Direction)))

	o.metrics.SignalsDelivered.WithLabelValues(string(analysis.Result.Direction)).Inc()
	o.emit(ctx, domain.SignalDelivered{
		User:       user,
		RequestID:  id,
		Direction:  analysis.Result.Direction,
		Confidence: analysis.Result.Confidence,
		Pair:       pair,
		Expiry:     expiry,
		Volatility: analysis.Volatility,
		Asset:      domain.AssetFor(analysis.Result.Direction),
		Actions:    append([]domain.Action(nil), domain.FollowUpActions...),
	})
}

func (o *Orchestrator) analyze(ctx context.Context, user domain.UserID, pair domain.Pair) signal.Analysis {
	if o.source == nil {
		o.metrics.DataUnavailable.Inc()
		return signal.Analysis{Result: domain.Inconclusive, Volatility: domain.VolatilityModerate}
	}

	ctx, cancel := context.WithTimeout(ctx, o.analysisTimeout)
	defer cancel()

	started := time.Now()
	analysis, err := o.source.Produce(ctx, pair)
	o.metrics.AnalysisDuration.Observe(time.Since(started).Seconds())

	switch {
	case err == nil:
	case errors.Is(err, signal.ErrDataUnavailable), errors.Is(err, signal.ErrInsufficientData):
		o.metrics.DataUnavailable.Inc()
		o.log.Debug("analysis inconclusive", zap.String("pair", string(pair)), zap.Error(err))
	default:
		o.metrics.ComputeFailures.Inc()
		o.log.Error("analysis failed",
			zap.Int64("user", int64(user)),
			zap.String("pair", string(pair)),
			zap.Error(err),
		)
	}

	if analysis.Result.Direction == "" {
		analysis.Result = domain.Inconclusive
	}
	if analysis.Volatility == "" {
		analysis.Volatility = domain.VolatilityModerate
	}
	return analysis
}

func (o *Orchestrator) emit(ctx context.Context, ev domain.Outbound) {
	if o.emitter == nil {
		return
	}
	if err := o.emitter.Emit(ctx, ev); err != nil {
		o.metrics.EmitFailures.Inc()
		o.log.Warn("emit failed",
			zap.Int64("user", int64(ev.Recipient())),
			zap.String("event", fmt.Sprintf("%T", ev)),
			zap.Error(err),
		)
	}
}

func pairMenu(user domain.UserID) domain.PairMenu {
	return domain.PairMenu{User: user, Pairs: append([]domain.Pair(nil), domain.SupportedPairs...)}
}

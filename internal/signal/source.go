package signal

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"signal-bot/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrDataUnavailable wraps market-data failures. Expected, recovered with WAIT 50.
var ErrDataUnavailable = errors.New("price data unavailable")

type PriceFetcher interface {
	FetchRecentPrices(ctx context.Context, pair domain.Pair) ([]float64, error)
}

// Source produces a signal for a pair. The returned Analysis is always usable;
// a non-nil error only classifies why it fell back to the inconclusive result.
type Source interface {
	Produce(ctx context.Context, pair domain.Pair) (Analysis, error)
}

// IndicatorSource fetches recent closes and runs the engine over them.
type IndicatorSource struct {
	tracer  trace.Tracer
	fetcher PriceFetcher
	engine  *Engine
}

func NewIndicatorSource(tracer trace.Tracer, fetcher PriceFetcher, engine *Engine) *IndicatorSource {
	if engine == nil {
		engine = NewEngine()
	}
	return &IndicatorSource{tracer: tracer, fetcher: fetcher, engine: engine}
}

func (s *IndicatorSource) Produce(ctx context.Context, pair domain.Pair) (Analysis, error) {
	ctx, span := s.tracer.Start(ctx, "signal-source.produce")
	defer span.End()
	span.SetAttributes(attribute.String("pair", string(pair)))

	if s.fetcher == nil {
		return inconclusive(0), fmt.Errorf("%w: no market data provider", ErrDataUnavailable)
	}

	closes, err := s.fetcher.FetchRecentPrices(ctx, pair)
	if err != nil {
		return inconclusive(0), fmt.Errorf("%w: %s: %v", ErrDataUnavailable, pair, err)
	}
	if len(closes) == 0 {
		return inconclusive(0), fmt.Errorf("%w: %s: empty series", ErrDataUnavailable, pair)
	}

	analysis, err := s.engine.Analyze(closes)
	span.SetAttributes(
		attribute.Int("samples", analysis.Samples),
		attribute.String("direction", string(analysis.Result.Direction)),
	)
	return analysis, err
}

// RandomSource is the placeholder generator used when no market data is wired:
// a coin flip between BUY and SELL with a confidence between 70 and 95.
type RandomSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

const (
	minRandomConfidence = 70
	maxRandomConfidence = 95
)

func NewRandomSource(seed uint64) *RandomSource {
	return &RandomSource{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *RandomSource) Produce(_ context.Context, _ domain.Pair) (Analysis, error) {
	s.mu.Lock()
	buy := s.rng.IntN(2) == 0
	confidence := minRandomConfidence + s.rng.IntN(maxRandomConfidence-minRandomConfidence+1)
	s.mu.Unlock()

	direction := domain.DirectionSell
	if buy {
		direction = domain.DirectionBuy
	}
	return Analysis{
		Result:     domain.SignalResult{Direction: direction, Confidence: confidence},
		Volatility: domain.VolatilityModerate,
	}, nil
}

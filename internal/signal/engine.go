package signal

import (
	"errors"
	"fmt"
	"math"

	"signal-bot/internal/domain"
)

const (
	rsiPeriod        = 14
	smaPeriod        = 14
	macdFastPeriod   = 12
	macdSlowPeriod   = 26
	macdSignalPeriod = 9

	oversold   = 30.0
	overbought = 70.0

	decisiveConfidence = 85

	lowVolatility      = 0.0005
	moderateVolatility = 0.0015
)

var (
	// ErrInsufficientData means the series is too short to analyse. Expected, recovered.
	ErrInsufficientData = errors.New("insufficient price data")
	// ErrComputation means the indicators produced non-finite values. Surfaced to operators.
	ErrComputation = errors.New("indicator computation failed")
)

// Analysis is the outcome of one engine run. Result is always usable: it falls
// back to domain.Inconclusive when the indicators cannot be computed.
type Analysis struct {
	RSI        float64             `json:"rsi"`
	MACDDiff   float64             `json:"macd_diff"`
	SMA        float64             `json:"sma"`
	Samples    int                 `json:"samples"`
	Result     domain.SignalResult `json:"result"`
	Volatility domain.Volatility   `json:"volatility"`
}

func inconclusive(samples int) Analysis {
	return Analysis{
		Samples:    samples,
		Result:     domain.Inconclusive,
		Volatility: domain.VolatilityModerate,
	}
}

type Engine struct{}

func NewEngine() *Engine {
	return &Engine{}
}

// Analyze computes RSI(14), the MACD(12,26,9) histogram and SMA(14) over the
// closing prices (oldest first) and derives the signal from RSI and MACD.
func (e *Engine) Analyze(closes []float64) (Analysis, error) {
	if len(closes) <= rsiPeriod {
		return inconclusive(len(closes)), fmt.Errorf("%w: have %d closes, need %d", ErrInsufficientData, len(closes), rsiPeriod+1)
	}

	rsi := last(rsiSeries(closes, rsiPeriod))
	macdLine, signalLine := macdSeries(closes, macdFastPeriod, macdSlowPeriod, macdSignalPeriod)
	macdDiff := last(macdLine) - last(signalLine)
	sma := last(smaSeries(closes, smaPeriod))

	if !finite(rsi) || !finite(macdDiff) || !finite(sma) {
		return inconclusive(len(closes)), fmt.Errorf("%w: rsi=%v macd=%v sma=%v", ErrComputation, rsi, macdDiff, sma)
	}

	return Analysis{
		RSI:        rsi,
		MACDDiff:   macdDiff,
		SMA:        sma,
		Samples:    len(closes),
		Result:     Decide(rsi, macdDiff),
		Volatility: volatilityFor(closes[len(closes)-smaPeriod:], sma),
	}, nil
}

// Decide is the threshold classifier. The constants are fixed for compatibility
// with the signals users already know.
func Decide(rsi, macdDiff float64) domain.SignalResult {
	switch {
	case rsi < oversold && macdDiff > 0:
		return domain.SignalResult{Direction: domain.DirectionBuy, Confidence: decisiveConfidence}
	case rsi > overbought && macdDiff < 0:
		return domain.SignalResult{Direction: domain.DirectionSell, Confidence: decisiveConfidence}
	default:
		return domain.Inconclusive
	}
}

func volatilityFor(window []float64, mean float64) domain.Volatility {
	if mean == 0 || len(window) == 0 {
		return domain.VolatilityModerate
	}
	var variance float64
	for _, v := range window {
		d := v - mean
		variance += d * d
	}
	spread := math.Sqrt(variance/float64(len(window))) / math.Abs(mean)
	switch {
	case spread < lowVolatility:
		return domain.VolatilityLow
	case spread < moderateVolatility:
		return domain.VolatilityModerate
	default:
		return domain.VolatilityHigh
	}
}

func rsiSeries(closes []float64, period int) []float64 {
	if len(closes) <= period {
		return nil
	}
	series := make([]float64, len(closes))
	for i := range series {
		series[i] = math.NaN()
	}

	var gainSum float64
	var lossSum float64
	for i := 1; i <= period; i++ {
		delta := closes[i] - closes[i-1]
		if delta > 0 {
			gainSum += delta
		} else {
			lossSum -= delta
		}
	}
	avgGain := gainSum / float64(period)
	avgLoss := lossSum / float64(period)
	series[period] = rsiFromAvg(avgGain, avgLoss)

	for i := period + 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gain := math.Max(delta, 0)
		loss := math.Max(-delta, 0)
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		series[i] = rsiFromAvg(avgGain, avgLoss)
	}

	return series
}

func rsiFromAvg(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs))
}

func macdSeries(values []float64, fast, slow, signal int) ([]float64, []float64) {
	fastEMA := emaSeries(values, fast)
	slowEMA := emaSeries(values, slow)
	macdLine := make([]float64, len(values))
	for i := range values {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}
	signalLine := emaSeries(macdLine, signal)
	return macdLine, signalLine
}

func emaSeries(values []float64, period int) []float64 {
	if len(values) == 0 {
		return nil
	}
	alpha := 2.0 / (float64(period) + 1.0)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

func smaSeries(values []float64, period int) []float64 {
	if len(values) < period {
		return nil
	}
	out := make([]float64, len(values)-period+1)
	var sum float64
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i-period+1] = sum / float64(period)
		}
	}
	return out
}

func last(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return values[len(values)-1]
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

package signal

import (
	"errors"
	"math"
	"testing"

	"signal-bot/internal/domain"
)

func TestDecideTable(t *testing.T) {
	cases := []struct {
		name     string
		rsi      float64
		macd     float64
		expected domain.SignalResult
	}{
		{"oversold with rising momentum", 20, 0.1, domain.SignalResult{Direction: domain.DirectionBuy, Confidence: 85}},
		{"overbought with falling momentum", 80, -0.1, domain.SignalResult{Direction: domain.DirectionSell, Confidence: 85}},
		{"neutral", 50, 0, domain.SignalResult{Direction: domain.DirectionWait, Confidence: 50}},
		{"oversold without momentum", 20, -0.1, domain.Inconclusive},
		{"overbought without reversal", 80, 0.1, domain.Inconclusive},
		{"buy threshold is strict", 30, 0.1, domain.Inconclusive},
		{"sell threshold is strict", 70, -0.1, domain.Inconclusive},
	}
	for _, tc := range cases {
		if got := Decide(tc.rsi, tc.macd); got != tc.expected {
			t.Fatalf("%s: expected %+v, got %+v", tc.name, tc.expected, got)
		}
	}
}

func TestAnalyzeEmptySeries(t *testing.T) {
	analysis, err := NewEngine().Analyze(nil)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected insufficient data error, got %v", err)
	}
	if analysis.Result != domain.Inconclusive {
		t.Fatalf("expected WAIT 50, got %+v", analysis.Result)
	}
}

func TestAnalyzeShortSeries(t *testing.T) {
	closes := make([]float64, rsiPeriod)
	for i := range closes {
		closes[i] = 1.1 + float64(i)*0.001
	}
	analysis, err := NewEngine().Analyze(closes)
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("expected insufficient data error, got %v", err)
	}
	if analysis.Result != domain.Inconclusive || analysis.Samples != rsiPeriod {
		t.Fatalf("unexpected fallback analysis: %+v", analysis)
	}
}

func TestAnalyzeOversoldReversalBuys(t *testing.T) {
	closes := reversal(100, -1, 40, 3)

	analysis, err := NewEngine().Analyze(closes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if analysis.RSI >= 30 || analysis.MACDDiff <= 0 {
		t.Fatalf("expected oversold RSI with positive MACD diff, got rsi=%.2f macd=%.4f", analysis.RSI, analysis.MACDDiff)
	}
	if analysis.Result.Direction != domain.DirectionBuy || analysis.Result.Confidence != 85 {
		t.Fatalf("expected BUY 85, got %+v", analysis.Result)
	}
}

func TestAnalyzeOverboughtReversalSells(t *testing.T) {
	closes := reversal(100, 1, 40, 3)

	analysis, err := NewEngine().Analyze(closes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if analysis.Result.Direction != domain.DirectionSell || analysis.Result.Confidence != 85 {
		t.Fatalf("expected SELL 85, got %+v (rsi=%.2f macd=%.4f)", analysis.Result, analysis.RSI, analysis.MACDDiff)
	}
}

func TestAnalyzeSteadyTrendWaits(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}

	analysis, err := NewEngine().Analyze(closes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if analysis.RSI != 100 {
		t.Fatalf("expected RSI 100 for a monotonic rise, got %.2f", analysis.RSI)
	}
	if analysis.Result != domain.Inconclusive {
		t.Fatalf("expected WAIT for a trend without reversal, got %+v", analysis.Result)
	}
}

func TestAnalyzeFlatSeries(t *testing.T) {
	closes := make([]float64, 30)
	for i := range closes {
		closes[i] = 1.2345
	}

	analysis, err := NewEngine().Analyze(closes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if analysis.RSI != 50 || analysis.MACDDiff != 0 {
		t.Fatalf("expected neutral indicators, got rsi=%.2f macd=%.4f", analysis.RSI, analysis.MACDDiff)
	}
	if math.Abs(analysis.SMA-1.2345) > 1e-9 {
		t.Fatalf("expected SMA equal to the flat price, got %v", analysis.SMA)
	}
	if analysis.Volatility != domain.VolatilityLow {
		t.Fatalf("expected low volatility, got %s", analysis.Volatility)
	}
}

func TestAnalyzeNonFiniteInput(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 1
	}
	closes[19] = math.Inf(1)

	analysis, err := NewEngine().Analyze(closes)
	if !errors.Is(err, ErrComputation) {
		t.Fatalf("expected computation error, got %v", err)
	}
	if analysis.Result != domain.Inconclusive {
		t.Fatalf("expected WAIT 50, got %+v", analysis.Result)
	}
}

func TestAnalyzeIsDeterministic(t *testing.T) {
	closes := reversal(50, -0.5, 60, 4)
	engine := NewEngine()

	first, err1 := engine.Analyze(closes)
	second, err2 := engine.Analyze(closes)
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v %v", err1, err2)
	}
	if first != second {
		t.Fatalf("expected identical analyses, got %+v and %+v", first, second)
	}
}

func TestSMASeries(t *testing.T) {
	got := smaSeries([]float64{1, 2, 3, 4, 5}, 2)
	want := []float64{1.5, 2.5, 3.5, 4.5}
	if len(got) != len(want) {
		t.Fatalf("expected %d values, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sma[%d]: expected %v, got %v", i, want[i], got[i])
		}
	}
	if smaSeries([]float64{1}, 2) != nil {
		t.Fatal("expected nil for short input")
	}
}

// reversal builds a trend of n steps followed by k steps back the other way.
func reversal(start, step float64, n, k int) []float64 {
	out := make([]float64, 0, n+k)
	for i := 0; i < n; i++ {
		out = append(out, start+step*float64(i))
	}
	end := out[len(out)-1]
	for j := 1; j <= k; j++ {
		out = append(out, end-step*float64(j))
	}
	return out
}

package domain

import (
	"fmt"
	"strings"
	"time"
)

// UserID identifies a chat participant. The transport supplies it (Telegram chat id).
type UserID int64

// RequestID identifies one scheduled signal request.
type RequestID string

type Pair string

const (
	PairEURUSD Pair = "EURUSD"
	PairGBPUSD Pair = "GBPUSD"
	PairUSDJPY Pair = "USDJPY"
	PairAUDUSD Pair = "AUDUSD"
	PairUSDCAD Pair = "USDCAD"
	PairEURGBP Pair = "EURGBP"
	PairEURJPY Pair = "EURJPY"
)

// SupportedPairs is the pair menu, in display order.
var SupportedPairs = []Pair{
	PairEURUSD,
	PairGBPUSD,
	PairUSDJPY,
	PairAUDUSD,
	PairUSDCAD,
	PairEURGBP,
	PairEURJPY,
}

// Ticker returns the market-data symbol for the pair.
func (p Pair) Ticker() string {
	return string(p) + "=X"
}

func (p Pair) IsValid() bool {
	for _, candidate := range SupportedPairs {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePair accepts a pair with or without the ticker suffix, case-insensitive.
func ParsePair(raw string) (Pair, error) {
	p := Pair(strings.TrimSuffix(strings.ToUpper(strings.TrimSpace(raw)), "=X"))
	if !p.IsValid() {
		return "", fmt.Errorf("unsupported pair: %q", raw)
	}
	return p, nil
}

type Expiry string

const (
	Expiry5s  Expiry = "5s"
	Expiry15s Expiry = "15s"
	Expiry1m  Expiry = "1m"
	Expiry2m  Expiry = "2m"
	Expiry3m  Expiry = "3m"
	Expiry5m  Expiry = "5m"
	Expiry10m Expiry = "10m"
)

// SupportedExpiries is the expiry menu, in display order.
var SupportedExpiries = []Expiry{
	Expiry5s,
	Expiry15s,
	Expiry1m,
	Expiry2m,
	Expiry3m,
	Expiry5m,
	Expiry10m,
}

var expiryDurations = map[Expiry]time.Duration{
	Expiry5s:  5 * time.Second,
	Expiry15s: 15 * time.Second,
	Expiry1m:  time.Minute,
	Expiry2m:  2 * time.Minute,
	Expiry3m:  3 * time.Minute,
	Expiry5m:  5 * time.Minute,
	Expiry10m: 10 * time.Minute,
}

func (e Expiry) IsValid() bool {
	_, ok := expiryDurations[e]
	return ok
}

func (e Expiry) Duration() time.Duration {
	return expiryDurations[e]
}

// IsLong reports whether the expiry gets a countdown notice (>= 1 minute).
func (e Expiry) IsLong() bool {
	return e.Duration() >= time.Minute
}

func ParseExpiry(raw string) (Expiry, error) {
	e := Expiry(strings.ToLower(strings.TrimSpace(raw)))
	if !e.IsValid() {
		return "", fmt.Errorf("unsupported expiry: %q", raw)
	}
	return e, nil
}

type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
	DirectionWait Direction = "WAIT"
)

// SignalResult is produced fresh for every request.
type SignalResult struct {
	Direction  Direction `json:"direction"`
	Confidence int       `json:"confidence"`
}

// Inconclusive is the fail-safe result used whenever analysis cannot decide.
var Inconclusive = SignalResult{Direction: DirectionWait, Confidence: 50}

type Volatility string

const (
	VolatilityLow      Volatility = "Low"
	VolatilityModerate Volatility = "Moderate"
	VolatilityHigh     Volatility = "High"
)

// Asset selects the image shown next to a delivered signal.
type Asset string

const (
	AssetBuy  Asset = "buy"
	AssetSell Asset = "sell"
)

// AssetFor maps BUY to the buy image and everything else, WAIT included, to sell.
func AssetFor(d Direction) Asset {
	if d == DirectionBuy {
		return AssetBuy
	}
	return AssetSell
}

type ScheduledRequest struct {
	ID     RequestID
	User   UserID
	Pair   Pair
	Expiry Expiry
	FireAt time.Time
}

type Action string

const (
	ActionRepeat Action = "repeat"
	ActionBack   Action = "back"
)

// FollowUpActions is offered with every delivered signal.
var FollowUpActions = []Action{ActionRepeat, ActionBack}

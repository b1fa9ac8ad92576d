package marketdata

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"signal-bot/internal/domain"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultBaseURL = "https://query1.finance.yahoo.com"
	defaultTimeout = 10 * time.Second
	maxBodyBytes   = 4 << 20
	userAgent      = "Mozilla/5.0 (compatible; signal-bot/1.0)"
)

// YahooProvider fetches one day of one-minute closes from the Yahoo Finance
// chart endpoint.
type YahooProvider struct {
	tracer  trace.Tracer
	baseURL string
	client  *http.Client
}

func NewYahooProvider(tracer trace.Tracer, baseURL string, timeout time.Duration) *YahooProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &YahooProvider{
		tracer:  tracer,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (p *YahooProvider) FetchRecentPrices(ctx context.Context, pair domain.Pair) ([]float64, error) {
	ctx, span := p.tracer.Start(ctx, "yahoo.fetch-recent-prices")
	defer span.End()
	span.SetAttributes(attribute.String("ticker", pair.Ticker()))

	closes, err := p.fetch(ctx, pair)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("samples", len(closes)))
	return closes, nil
}

func (p *YahooProvider) fetch(ctx context.Context, pair domain.Pair) ([]float64, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", p.baseURL, url.PathEscape(pair.Ticker()), url.Values{
		"range":    {"1d"},
		"interval": {"1m"},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("yahoo: create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo: request %s: %w", pair, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("yahoo: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: unexpected status %d for %s", resp.StatusCode, pair)
	}

	return ParseChartCloses(body)
}

// ParseChartCloses extracts the close series of a chart response, skipping
// the null entries Yahoo emits for minutes without trades.
func ParseChartCloses(body []byte) ([]float64, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("yahoo: invalid JSON")
	}
	if desc := gjson.GetBytes(body, "chart.error.description"); desc.Exists() && desc.String() != "" {
		return nil, fmt.Errorf("yahoo: %s", desc.String())
	}

	series := gjson.GetBytes(body, "chart.result.0.indicators.quote.0.close")
	if !series.IsArray() {
		return nil, fmt.Errorf("yahoo: no close series in response")
	}

	raw := series.Array()
	closes := make([]float64, 0, len(raw))
	for _, v := range raw {
		if v.Type != gjson.Number {
			continue
		}
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		closes = append(closes, f)
	}
	return closes, nil
}

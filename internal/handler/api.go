package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"signal-bot/internal/domain"
	"signal-bot/internal/session"
	"signal-bot/internal/signal"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

const (
	maxDeliveriesLimit = 500
	maxSummaryHours    = 24 * 90
)

// Health godoc
// @Summary      Liveness check
// @Description  Reports status and process uptime
// @Tags         health
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}

// GetPairs godoc
// @Summary      List pair and expiry menus
// @Description  Returns the supported currency pairs and expiries in menu order
// @Tags         signals
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/pairs [get]
func (h *Handler) GetPairs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"pairs":    domain.SupportedPairs,
		"expiries": domain.SupportedExpiries,
	})
}

// GetAnalysis runs the signal source on demand for one pair. It does not touch
// any session.
// @Summary      On-demand indicator snapshot
// @Description  Computes RSI, MACD histogram, SMA and the resulting signal for a pair
// @Tags         signals
// @Produce      json
// @Param        pair  path  string  true  "Currency pair (e.g., EURUSD)"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]interface{}
// @Failure      502  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Router       /api/analysis/{pair} [get]
func (h *Handler) GetAnalysis(c *gin.Context) {
	if h.source == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "signal source unavailable"})
		return
	}

	pair, err := domain.ParsePair(c.Param("pair"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":           err.Error(),
			"supported_pairs": domain.SupportedPairs,
		})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-analysis")
	defer span.End()
	span.SetAttributes(attribute.String("pair", string(pair)))

	analysis, err := h.source.Produce(ctx, pair)
	resp := gin.H{
		"pair":     pair,
		"ticker":   pair.Ticker(),
		"analysis": analysis,
	}
	switch {
	case err == nil:
		c.JSON(http.StatusOK, resp)
	case errors.Is(err, signal.ErrDataUnavailable):
		resp["error"] = err.Error()
		c.JSON(http.StatusBadGateway, resp)
	default:
		resp["error"] = err.Error()
		c.JSON(http.StatusOK, resp)
	}
}

// GetSessions godoc
// @Summary      Session counts
// @Description  Returns in-memory sessions by state and the number of pending scheduled requests
// @Tags         sessions
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Router       /api/sessions [get]
func (h *Handler) GetSessions(c *gin.Context) {
	if h.sessions == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
		return
	}

	counts := h.sessions.CountByState()
	byState := make(map[string]int, len(counts))
	for _, st := range []session.State{session.Unauthenticated, session.Authenticated, session.PairSelected, session.ExpirySelected} {
		byState[st.String()] = counts[st]
	}

	resp := gin.H{
		"total":    h.sessions.Len(),
		"by_state": byState,
	}
	if h.scheduler != nil {
		resp["pending_requests"] = h.scheduler.Pending()
	}
	c.JSON(http.StatusOK, resp)
}

// GetDeliveries godoc
// @Summary      Delivered signals
// @Description  Returns journaled signal deliveries, newest first
// @Tags         deliveries
// @Produce      json
// @Param        pair   query  string  false  "Currency pair"
// @Param        user   query  int     false  "Telegram chat id"
// @Param        limit  query  int     false  "Number of rows (default 50, max 500)"  default(50)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/deliveries [get]
func (h *Handler) GetDeliveries(c *gin.Context) {
	if h.deliveries == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "delivery journal disabled"})
		return
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-deliveries")
	defer span.End()

	filter := domain.DeliveryFilter{Limit: 50}

	if raw := strings.TrimSpace(c.Query("pair")); raw != "" {
		pair, err := domain.ParsePair(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		filter.Pair = pair
	}
	if raw := strings.TrimSpace(c.Query("user")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user must be an integer chat id"})
			return
		}
		filter.User = domain.UserID(id)
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxDeliveriesLimit {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 500"})
			return
		}
		filter.Limit = n
	}
	span.SetAttributes(attribute.Int("limit", filter.Limit))

	deliveries, err := h.deliveries.ListRecent(ctx, filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deliveries": deliveries})
}

// GetDeliverySummary counts journaled signals per direction over the last
// `hours` hours (default 24).
// @Summary      Delivery summary
// @Description  Counts journaled deliveries per direction over a recent window
// @Tags         deliveries
// @Produce      json
// @Param        hours  query  int  false  "Window in hours (default 24, max 2160)"  default(24)
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/deliveries/summary [get]
func (h *Handler) GetDeliverySummary(c *gin.Context) {
	if h.deliveries == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "delivery journal disabled"})
		return
	}

	hours := 24
	if raw := strings.TrimSpace(c.Query("hours")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxSummaryHours {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be between 1 and 2160"})
			return
		}
		hours = n
	}

	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-delivery-summary")
	defer span.End()
	span.SetAttributes(attribute.Int("hours", hours))

	since := time.Now().Add(-time.Duration(hours) * time.Hour)
	counts, err := h.deliveries.CountByDirection(ctx, since)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	byDirection := make(map[string]int64, 3)
	var total int64
	for _, d := range []domain.Direction{domain.DirectionBuy, domain.DirectionSell, domain.DirectionWait} {
		byDirection[string(d)] = counts[d]
		total += counts[d]
	}
	c.JSON(http.StatusOK, gin.H{
		"hours":        hours,
		"since":        since.UTC(),
		"total":        total,
		"by_direction": byDirection,
	})
}

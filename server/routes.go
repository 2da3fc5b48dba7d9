package server

import (
	"context"
	"math/big"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	perrors "github.com/jmgilman/go/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/krisalay/coordcache/httperr"
	"github.com/krisalay/coordcache/idempotency"
	"github.com/krisalay/coordcache/types"
)

// Router wires the HTTP surface.
func (a *App) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), a.requestLog())

	r.GET("/healthz", a.health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	v1 := r.Group("/v1")
	v1.POST("/payments", idempotency.Middleware(a.coordinator), a.createPayment)
	v1.GET("/prices/:symbol", a.getPrice)

	c := v1.Group("/cache")
	c.GET("/metrics", a.cacheMetrics)
	c.POST("/metrics/reset", a.resetCacheMetrics)
	c.DELETE("", a.invalidate)

	return r
}

func (a *App) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"replay", c.Writer.Header().Get(idempotency.HeaderReplay) == "true",
		)
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

func (a *App) health(c *gin.Context) {
	if p, ok := a.store.(pinger); ok {
		if err := p.Ping(c.Request.Context()); err != nil {
			httperr.Abort(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type paymentRequest struct {
	Subject  string `json:"subject" binding:"required"`
	Amount   string `json:"amount" binding:"required"`
	Currency string `json:"currency" binding:"required,len=3"`
}

type paymentResponse struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	DailyCount int64     `json:"daily_count"`
	CreatedAt  time.Time `json:"created_at"`
}

// createPayment admits a payment against the subject's daily velocity limits.
// Persisting the payment belongs to the payments service, not this layer.
func (a *App) createPayment(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httperr.Abort(c, perrors.Wrap(err, perrors.CodeInvalidInput, "invalid payment request"))
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		httperr.Abort(c, perrors.WithContext(
			perrors.New(perrors.CodeInvalidInput, "amount must be a positive integer in minor units"),
			"amount", req.Amount))
		return
	}

	res, err := a.counter.CheckAndIncrementNow(c.Request.Context(), req.Subject, amount, a.limits)
	if err != nil {
		httperr.Abort(c, err)
		return
	}
	if !res.Allowed {
		httperr.Abort(c, perrors.WithContextMap(
			perrors.New(perrors.CodeRateLimit, "daily velocity limit reached"),
			map[string]interface{}{"count": res.CurrentCount, "value": res.CurrentValue.String()}))
		return
	}

	c.JSON(http.StatusCreated, paymentResponse{
		ID:         uuid.NewString(),
		Subject:    req.Subject,
		Amount:     amount.String(),
		Currency:   req.Currency,
		DailyCount: res.CurrentCount,
		CreatedAt:  time.Now().UTC(),
	})
}

func (a *App) getPrice(c *gin.Context) {
	symbol := c.Param("symbol")
	p, err := a.prices.GetOrSetWithLock(c.Request.Context(), priceKey(symbol), func(ctx context.Context) (Price, error) {
		return a.source.Quote(ctx, symbol)
	}, types.Policy{})
	if err != nil {
		httperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (a *App) cacheMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, a.prices.Metrics())
}

func (a *App) resetCacheMetrics(c *gin.Context) {
	a.prices.ResetMetrics()
	c.Status(http.StatusNoContent)
}

// invalidate drops local price entries matching ?pattern=. The shared tier keeps them.
func (a *App) invalidate(c *gin.Context) {
	pattern := c.Query("pattern")
	if pattern == "" {
		httperr.Abort(c, perrors.New(perrors.CodeInvalidInput, "pattern query parameter is required"))
		return
	}
	n, err := a.prices.InvalidatePattern(pattern)
	if err != nil {
		httperr.Abort(c, perrors.Wrap(err, perrors.CodeInvalidInput, "invalid pattern"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": n, "scope": "local"})
}

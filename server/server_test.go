package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	perrors "github.com/jmgilman/go/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krisalay/coordcache/config"
	"github.com/krisalay/coordcache/idempotency"
	"github.com/krisalay/coordcache/logging"
	"github.com/krisalay/coordcache/types"
)

type countingSource struct {
	inner *StaticPrices
	calls atomic.Int32
}

func (s *countingSource) Quote(ctx context.Context, symbol string) (Price, error) {
	s.calls.Add(1)
	return s.inner.Quote(ctx, symbol)
}

func newTestApp(t *testing.T, mutate func(*config.Config)) (*App, http.Handler, *countingSource) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())

	src := &countingSource{inner: DefaultPrices()}
	app, err := NewApp(cfg, logging.Nop(), WithPriceSource(src))
	require.NoError(t, err)
	t.Cleanup(app.Close)

	return app, app.Router(), src
}

func do(h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body perrors.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Code
}

const payment = `{"subject":"merchant-7","amount":"2500","currency":"USD"}`

func TestPaymentIsReplayedByIdempotencyKey(t *testing.T) {
	_, h, _ := newTestApp(t, nil)
	key := map[string]string{idempotency.HeaderKey: "order-42"}

	first := do(h, http.MethodPost, "/v1/payments", payment, key)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	assert.Empty(t, first.Header().Get(idempotency.HeaderReplay))

	second := do(h, http.MethodPost, "/v1/payments", payment, key)
	require.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get(idempotency.HeaderReplay))
	assert.Equal(t, first.Body.String(), second.Body.String())

	var p paymentResponse
	require.NoError(t, json.Unmarshal(second.Body.Bytes(), &p))
	assert.Equal(t, int64(1), p.DailyCount, "the replay did not touch the velocity counter")
}

func TestPaymentVelocityLimit(t *testing.T) {
	_, h, _ := newTestApp(t, func(c *config.Config) { c.Velocity.MaxCount = 2 })

	for i, want := range []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests} {
		w := do(h, http.MethodPost, "/v1/payments", payment, nil)
		require.Equal(t, want, w.Code, "payment %d", i+1)
		if want == http.StatusTooManyRequests {
			assert.Equal(t, string(perrors.CodeRateLimit), errorCode(t, w))
		}
	}
}

func TestRejectedPaymentIsNotReplayed(t *testing.T) {
	_, h, _ := newTestApp(t, func(c *config.Config) { c.Velocity.MaxValue = "1000" })
	key := map[string]string{idempotency.HeaderKey: "order-big"}

	w := do(h, http.MethodPost, "/v1/payments", payment, key)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	w = do(h, http.MethodPost, "/v1/payments", payment, key)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Empty(t, w.Header().Get(idempotency.HeaderReplay))
}

func TestPaymentValidation(t *testing.T) {
	_, h, _ := newTestApp(t, nil)

	w := do(h, http.MethodPost, "/v1/payments", `{"subject":"m","amount":"-5","currency":"USD"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, http.MethodPost, "/v1/payments", `{"subject":"m"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(h, http.MethodPost, "/v1/payments", payment, map[string]string{idempotency.HeaderKey: "bad key!"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, string(perrors.CodeInvalidInput), errorCode(t, w))
}

func TestPricesAreCached(t *testing.T) {
	_, h, src := newTestApp(t, nil)

	for i := 0; i < 3; i++ {
		w := do(h, http.MethodGet, "/v1/prices/btc", "", nil)
		require.Equal(t, http.StatusOK, w.Code)

		var p Price
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
		assert.Equal(t, "BTC", p.Symbol)
		assert.Equal(t, int64(6_512_300), p.Cents)
	}
	assert.Equal(t, int32(1), src.calls.Load())

	w := do(h, http.MethodGet, "/v1/prices/doge", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(h, http.MethodGet, "/v1/cache/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var m types.MetricsSnapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, uint64(2), m.Hits)
	assert.Equal(t, uint64(2), m.Misses)

	w = do(h, http.MethodPost, "/v1/cache/metrics/reset", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = do(h, http.MethodGet, "/v1/cache/metrics", "", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Zero(t, m.Hits)
}

func TestInvalidateEndpoint(t *testing.T) {
	app, h, _ := newTestApp(t, nil)

	report := app.WarmPrices(context.Background(), []string{"BTC", "ETH", "NOPE"})
	assert.Equal(t, 2, report.Warmed)
	assert.Contains(t, report.Failed, "price:NOPE")

	w := do(h, http.MethodDelete, "/v1/cache?pattern=price:*", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"removed":2,"scope":"local"}`, w.Body.String())

	w = do(h, http.MethodDelete, "/v1/cache", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsAndHealth(t *testing.T) {
	_, h, _ := newTestApp(t, nil)

	do(h, http.MethodGet, "/v1/prices/eth", "", nil)

	w := do(h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `coordcache_cache_events_total{cache="prices",event="miss"} 1`)

	w = do(h, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

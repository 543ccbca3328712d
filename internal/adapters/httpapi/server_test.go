package httpapi_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"impulsebot/config"
	"impulsebot/internal/adapters/httpapi"
	"impulsebot/internal/adapters/storage"
	"impulsebot/internal/application/engine"
	"impulsebot/internal/domain"
)

type fakeMarket struct {
	price float64
	err   error
}

func (m *fakeMarket) Price(context.Context, string) (float64, error) {
	return m.price, m.err
}

func (m *fakeMarket) Indicator(context.Context, string, string, int) (float64, error) {
	return 0, errors.New("not implemented")
}

func testConfig() config.EngineConfig {
	return config.EngineConfig{
		StartBalance: 1000, PointValue: 1, MinLot: 0.01,
		BaseTPPoints: 20, BaseSLPoints: 10,
		TrailStart: 10, TrailDistance: 6, PartialFraction: 0.5,
		MinRisk: 0.005, MaxRisk: 0.02, RiskStep: 0.0025,
		MaxDailyLoss: 0.05, MaxDrawdown: 0.10,
		AdaptiveWindow: 30, AdaptiveMinSample: 10, LossStreakCut: 3,
		BlockCooldownHours: 6, BlockLossStreak: 3,
		DisableDDThreshold: 0.20, StrategyCooldownHours: 24,
		MinTradesForOpt: 10, MinWinrate: 0.5,
	}
}

func newTestServer(t *testing.T, market *fakeMarket, token string) (http.Handler, *storage.SQLiteStorage) {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	eng := engine.New(testConfig(), db, nil, nil)
	require.NoError(t, eng.Init(context.Background()))

	srv := httpapi.NewServer(eng, market, db, token, nil)
	return srv.Handler(), db
}

func postWebhook(h http.Handler, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	if token != "" {
		req.Header.Set("X-Auth-Token", token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func TestWebhook_RejectsBadToken(t *testing.T) {
	h, _ := newTestServer(t, &fakeMarket{price: 100}, "secret")

	rec := postWebhook(h, "wrong", `{"symbol":"EURUSD","side":"buy"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postWebhook(h, "", `{"symbol":"EURUSD","side":"buy"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhook_EmptyTokenDisablesEndpoint(t *testing.T) {
	h, _ := newTestServer(t, &fakeMarket{price: 100}, "")

	rec := postWebhook(h, "", `{"symbol":"EURUSD","side":"buy"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhook_OpensTrade(t *testing.T) {
	h, db := newTestServer(t, &fakeMarket{price: 100}, "secret")

	rec := postWebhook(h, "secret", `{"symbol":"EURUSD","strategy":"ALPHA","side":"buy"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Outcome      string        `json:"outcome"`
		Balance      float64       `json:"balance"`
		EngineStatus string        `json:"engine_status"`
		Trade        *domain.Trade `json:"trade"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, domain.OutcomeOpened, resp.Outcome)
	assert.Equal(t, 1000.0, resp.Balance)
	assert.Equal(t, "PAPER", resp.EngineStatus)
	require.NotNil(t, resp.Trade)
	assert.Equal(t, 0.5, resp.Trade.Lot)

	open, err := db.GetOpenTrades(context.Background(), "EURUSD")
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestWebhook_TokenViaQueryParam(t *testing.T) {
	h, _ := newTestServer(t, &fakeMarket{price: 100}, "secret")

	req := httptest.NewRequest(http.MethodPost, "/webhook?token=secret",
		strings.NewReader(`{"symbol":"EURUSD","side":"buy"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWebhook_IgnoresUnparseableBody(t *testing.T) {
	h, db := newTestServer(t, &fakeMarket{price: 100}, "secret")

	rec := postWebhook(h, "secret", "just some chatter")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Outcome string `json:"outcome"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, domain.OutcomeIgnored, resp.Outcome)

	open, err := db.GetOpenTrades(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestWebhook_NoPriceAbortsCycle(t *testing.T) {
	h, db := newTestServer(t, &fakeMarket{err: errors.New("quote service down")}, "secret")

	rec := postWebhook(h, "secret", `{"symbol":"EURUSD","side":"buy"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Outcome string `json:"outcome"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, domain.OutcomeNoPrice, resp.Outcome)

	open, err := db.GetOpenTrades(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestStats_ReportsEngineState(t *testing.T) {
	h, _ := newTestServer(t, &fakeMarket{price: 100}, "secret")

	postWebhook(h, "secret", `{"symbol":"EURUSD","strategy":"ALPHA","side":"buy"}`)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status     string  `json:"status"`
		Balance    float64 `json:"balance"`
		OpenTrades int     `json:"open_trades"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, "PAPER", resp.Status)
	assert.Equal(t, 1000.0, resp.Balance)
	assert.Equal(t, 1, resp.OpenTrades)
}

func TestTrades_FiltersByStatus(t *testing.T) {
	h, _ := newTestServer(t, &fakeMarket{price: 100}, "secret")

	postWebhook(h, "secret", `{"symbol":"EURUSD","strategy":"ALPHA","side":"buy"}`)

	req := httptest.NewRequest(http.MethodGet, "/trades?status=OPEN", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var trades []domain.Trade
	decode(t, rec, &trades)
	require.Len(t, trades, 1)
	assert.Equal(t, "EURUSD", trades[0].Symbol)

	req = httptest.NewRequest(http.MethodGet, "/trades?status=CLOSED", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	decode(t, rec, &trades)
	assert.Empty(t, trades)
}

func TestHealthz(t *testing.T) {
	h, _ := newTestServer(t, &fakeMarket{price: 100}, "secret")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

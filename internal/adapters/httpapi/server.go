package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"impulsebot/internal/application/engine"
	"impulsebot/internal/application/parser"
	"impulsebot/internal/domain"
	"impulsebot/internal/ports"
)

const maxBodyBytes = 16 << 10

// Server is the HTTP boundary: the signal webhook plus read-only query
// endpoints over the engine's entities. All trading logic lives in the
// engine; the server only parses, fetches the price snapshot and relays.
type Server struct {
	engine  *engine.Engine
	market  ports.MarketData
	store   ports.Storage
	token   string
	log     *slog.Logger
	limiter *rate.Limiter
}

// NewServer wires the boundary layer.
func NewServer(eng *engine.Engine, market ports.MarketData, store ports.Storage, token string, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		engine:  eng,
		market:  market,
		store:   store,
		token:   token,
		log:     log.With("component", "http"),
		limiter: rate.NewLimiter(20, 40),
	}
}

// Handler returns the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /trades", s.handleTrades)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return mux
}

// Run serves until the context is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("http server listening", "addr", addr)

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type webhookResponse struct {
	Outcome      string        `json:"outcome"`
	Detail       string        `json:"detail,omitempty"`
	Balance      float64       `json:"balance"`
	EngineStatus string        `json:"engine_status"`
	Trade        *domain.Trade `json:"trade,omitempty"`
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		s.writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if !s.limiter.Allow() {
		s.writeError(w, http.StatusTooManyRequests, "rate limited")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read body")
		return
	}

	state, balance := s.engine.Snapshot()

	sig, ok := parser.Parse(string(body))
	if !ok {
		s.writeJSON(w, http.StatusOK, webhookResponse{
			Outcome:      domain.OutcomeIgnored,
			Balance:      balance,
			EngineStatus: string(state.Status),
		})
		return
	}

	// Price snapshot is fetched before the engine takes any lock; a
	// failed fetch aborts this cycle for the symbol — open trades are not
	// managed against a stale price.
	price, err := s.market.Price(r.Context(), sig.Symbol)
	if err != nil {
		s.log.Warn("price fetch failed", "symbol", sig.Symbol, "err", err)
		s.writeJSON(w, http.StatusOK, webhookResponse{
			Outcome:      domain.OutcomeNoPrice,
			Balance:      balance,
			EngineStatus: string(state.Status),
		})
		return
	}

	res, err := s.engine.ProcessSignal(r.Context(), sig, price)
	if err != nil {
		s.log.Error("process signal failed", "symbol", sig.Symbol, "err", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, webhookResponse{
		Outcome:      res.Outcome,
		Detail:       res.Detail,
		Balance:      res.Balance,
		EngineStatus: string(res.EngineStatus),
		Trade:        res.Trade,
	})
}

type statsResponse struct {
	Status       string                 `json:"status"`
	Balance      float64                `json:"balance"`
	PeakBalance  float64                `json:"peak_balance"`
	Drawdown     float64                `json:"drawdown"`
	DailyDate    string                 `json:"daily_date"`
	DailyPnL     float64                `json:"daily_pnl"`
	AdaptiveRisk float64                `json:"adaptive_risk"`
	OpenTrades   int                    `json:"open_trades"`
	Strategies   []domain.StrategyState `json:"strategies"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	state, balance := s.engine.Snapshot()

	strategies, err := s.store.ListStrategyStates(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	open, err := s.store.GetOpenTrades(r.Context(), "")
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "storage error")
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		Status:       string(state.Status),
		Balance:      balance,
		PeakBalance:  state.PeakBalance,
		Drawdown:     domain.Drawdown(state.PeakBalance, balance),
		DailyDate:    state.DailyDate,
		DailyPnL:     state.DailyPnL,
		AdaptiveRisk: state.AdaptiveRisk,
		OpenTrades:   len(open),
		Strategies:   strategies,
	})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	trades, err := s.store.ListTrades(r.Context(),
		r.URL.Query().Get("status"), r.URL.Query().Get("symbol"), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "storage error")
		return
	}
	s.writeJSON(w, http.StatusOK, trades)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authorized checks the shared secret in constant time. An empty
// configured token disables the webhook rather than opening it up.
func (s *Server) authorized(r *http.Request) bool {
	if s.token == "" {
		return false
	}
	got := r.Header.Get("X-Auth-Token")
	if got == "" {
		got = r.URL.Query().Get("token")
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) == 1
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("write response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, code int, msg string) {
	s.writeJSON(w, code, map[string]string{"error": msg})
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"crypto-trading-bot/internal/interfaces"
	"crypto-trading-bot/internal/ledger"
	"crypto-trading-bot/internal/limiter"
	"crypto-trading-bot/internal/logger"
	"crypto-trading-bot/internal/store"
	"crypto-trading-bot/internal/types"
)

// Server exposes the bot's state over read-only JSON endpoints. It is
// optional and the trading loop runs the same with it disabled; anything
// the report file shows is available here machine-readably.
type Server struct {
	cfg       *store.Config
	eng       interfaces.Engine
	ledger    *ledger.Ledger
	lim       *limiter.Limiter
	srv       *http.Server
	startedAt time.Time
}

// New wires the endpoint set onto a mux. Call Start to begin serving.
func New(cfg *store.Config, eng interfaces.Engine, led *ledger.Ledger, lim *limiter.Limiter) *Server {
	s := &Server{
		cfg:       cfg,
		eng:       eng,
		ledger:    led,
		lim:       lim,
		startedAt: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /portfolio", s.handlePortfolio)

	s.srv = &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Start serves in the background. Listen failures are logged, not fatal:
// losing the status endpoint must not take the trading loop down.
func (s *Server) Start() {
	go func() {
		logger.Info(context.Background(), "Status API listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "Status API server failed", "error", err.Error())
		}
	}()
}

// Stop shuts the server down, letting in-flight requests finish.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]any{
		"status":         "ok",
		"symbol":         s.cfg.Symbol,
		"exchange":       s.cfg.Exchange,
		"mode":           s.cfg.Mode,
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	})
}

type tradeBudget struct {
	Date     string `json:"date"`
	Used     int    `json:"used"`
	Max      int    `json:"max"`
	CanTrade bool   `json:"can_trade"`
}

type statusResponse struct {
	Symbol      string            `json:"symbol"`
	State       string            `json:"state"`
	TradeBudget tradeBudget       `json:"trade_budget"`
	LastCycle   *types.StepResult `json:"last_cycle,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		Symbol: s.cfg.Symbol,
		State:  "STARTING",
	}

	if last := s.eng.LastResult(); last != nil {
		resp.State = last.State
		resp.LastCycle = last
	}

	// CanTrade may roll the limiter onto a new UTC day; that is the
	// same idempotent roll the next cycle would perform.
	can, err := s.lim.CanTrade(time.Now().UTC())
	if err != nil {
		can = false
	}
	st := s.lim.State()
	resp.TradeBudget = tradeBudget{
		Date:     st.Date,
		Used:     st.Count,
		Max:      s.lim.Max(),
		CanTrade: can,
	}

	writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, s.ledger.Snapshot())
}

func writeJSON(ctx context.Context, w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error(ctx, "Failed to encode API response", "error", err.Error())
	}
}

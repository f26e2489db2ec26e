// Package api exposes the fund platform core over HTTP.
package api

import (
	"net/http"
	"time"

	"github.com/solfund/fundd/internal/export"
	"github.com/solfund/fundd/internal/fund"
	"github.com/solfund/fundd/internal/holding"
	"github.com/solfund/fundd/internal/ledger"
	"github.com/solfund/fundd/internal/metrics"
	"github.com/solfund/fundd/internal/perf"
	"github.com/solfund/fundd/internal/trade"
	"github.com/solfund/fundd/internal/valuation"
)

// NewServer creates an HTTP server with all routes configured.
func NewServer(port string, funds *fund.Service, ledgers *ledger.Service, trades *trade.Service,
	valuer *valuation.Service, engine *perf.Engine, reports *export.Service, holdings *holding.Tracker) *http.Server {

	handler := NewHandler(funds, ledgers, trades, valuer, engine, reports, holdings)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/funds", handler.CreateFund)
	mux.HandleFunc("GET /api/v1/funds/{id}", handler.GetFund)
	mux.HandleFunc("POST /api/v1/funds/{id}/buy", handler.Buy)
	mux.HandleFunc("POST /api/v1/funds/{id}/sell", handler.Sell)
	mux.HandleFunc("POST /api/v1/funds/{id}/trades", handler.Trade)
	mux.HandleFunc("POST /api/v1/funds/{id}/assets", handler.AdjustAsset)
	mux.HandleFunc("GET /api/v1/funds/{id}/trades", handler.GetTrades)
	mux.HandleFunc("GET /api/v1/funds/{id}/ledger", handler.GetLedger)
	mux.HandleFunc("GET /api/v1/funds/{id}/price", handler.GetPrice)
	mux.HandleFunc("GET /api/v1/funds/{id}/aum", handler.GetAUM)
	mux.HandleFunc("GET /api/v1/funds/{id}/supply", handler.CheckSupply)
	mux.HandleFunc("GET /api/v1/funds/{id}/holdings/{user}", handler.GetHolding)
	mux.HandleFunc("GET /api/v1/funds/{id}/performance", handler.GetPerformance)
	mux.HandleFunc("GET /api/v1/funds/{id}/assets/{token}/performance", handler.GetAssetPerformance)
	mux.HandleFunc("GET /api/v1/leaderboard", handler.GetLeaderboard)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return &http.Server{
		Addr:         ":" + port,
		Handler:      metrics.Middleware(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

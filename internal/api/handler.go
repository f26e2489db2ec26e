package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/solfund/fundd/internal/domain"
	"github.com/solfund/fundd/internal/export"
	"github.com/solfund/fundd/internal/fund"
	"github.com/solfund/fundd/internal/holding"
	"github.com/solfund/fundd/internal/ledger"
	"github.com/solfund/fundd/internal/perf"
	"github.com/solfund/fundd/internal/trade"
	"github.com/solfund/fundd/internal/valuation"
)

// Handler provides the HTTP endpoints of the fund platform core.
type Handler struct {
	funds    *fund.Service
	ledgers  *ledger.Service
	trades   *trade.Service
	valuer   *valuation.Service
	engine   *perf.Engine
	reports  *export.Service
	holdings *holding.Tracker
}

// NewHandler creates a new API handler.
func NewHandler(funds *fund.Service, ledgers *ledger.Service, trades *trade.Service,
	valuer *valuation.Service, engine *perf.Engine, reports *export.Service, holdings *holding.Tracker) *Handler {
	return &Handler{funds: funds, ledgers: ledgers, trades: trades, valuer: valuer,
		engine: engine, reports: reports, holdings: holdings}
}

type createFundRequest struct {
	Ticker              string `json:"ticker"`
	Name                string `json:"name"`
	ManagerID           string `json:"managerId"`
	TargetRaiseAmount   string `json:"targetRaiseAmount"`
	EntryFeePercent     string `json:"entryFeePercent"`
	AnnualManagementFee string `json:"annualManagementFee"`
	ThresholdDeadline   string `json:"thresholdDeadline"`
	ExpirationDate      string `json:"expirationDate"`
}

// CreateFund handles POST /api/v1/funds.
func (h *Handler) CreateFund(w http.ResponseWriter, r *http.Request) {
	var req createFundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, domain.KindValidation, "invalid JSON body")
		return
	}

	deadline, err := time.Parse(time.RFC3339, req.ThresholdDeadline)
	if err != nil {
		writeError(w, http.StatusBadRequest, domain.KindValidation, "thresholdDeadline must be RFC 3339")
		return
	}
	expiration, err := time.Parse(time.RFC3339, req.ExpirationDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, domain.KindValidation, "expirationDate must be RFC 3339")
		return
	}

	f, err := h.funds.Create(r.Context(), fund.CreateParams{
		Ticker:              req.Ticker,
		Name:                req.Name,
		ManagerID:           req.ManagerID,
		TargetRaiseAmount:   req.TargetRaiseAmount,
		EntryFeePercent:     req.EntryFeePercent,
		AnnualManagementFee: req.AnnualManagementFee,
		ThresholdDeadline:   deadline,
		ExpirationDate:      expiration,
	})
	if err != nil {
		writeDomainError(w, "creating fund", err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// GetFund handles GET /api/v1/funds/{id}.
func (h *Handler) GetFund(w http.ResponseWriter, r *http.Request) {
	f, err := h.funds.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, "getting fund", err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

type buySellRequest struct {
	UserID string `json:"userId"`
	Amount string `json:"amount"`
}

// Buy handles POST /api/v1/funds/{id}/buy.
func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	var req buySellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, domain.KindValidation, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, domain.KindValidation, "userId is required")
		return
	}

	res, err := h.ledgers.Buy(r.Context(), r.PathValue("id"), req.UserID, req.Amount)
	if err != nil {
		writeDomainError(w, "executing buy", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Sell handles POST /api/v1/funds/{id}/sell.
func (h *Handler) Sell(w http.ResponseWriter, r *http.Request) {
	var req buySellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, domain.KindValidation, "invalid JSON body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, domain.KindValidation, "userId is required")
		return
	}

	res, err := h.ledgers.Sell(r.Context(), r.PathValue("id"), req.UserID, req.Amount)
	if err != nil {
		writeDomainError(w, "executing sell", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type tradeRequest struct {
	ManagerID      string `json:"managerId"`
	FromToken      string `json:"fromToken"`
	ToToken        string `json:"toToken"`
	ToTokenSymbol  string `json:"toTokenSymbol"`
	ToTokenDecimal int    `json:"toTokenDecimals"`
	FromAmount     string `json:"fromAmount"`
	SlippageBps    int    `json:"slippageBps"`
}

// Trade handles POST /api/v1/funds/{id}/trades.
func (h *Handler) Trade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, domain.KindValidation, "invalid JSON body")
		return
	}
	if req.ManagerID == "" || req.FromToken == "" || req.ToToken == "" {
		writeError(w, http.StatusBadRequest, domain.KindValidation, "managerId, fromToken and toToken are required")
		return
	}

	entry, err := h.trades.Execute(r.Context(), trade.Params{
		FundID:         r.PathValue("id"),
		ManagerID:      req.ManagerID,
		FromToken:      req.FromToken,
		ToToken:        req.ToToken,
		ToTokenSymbol:  req.ToTokenSymbol,
		ToTokenDecimal: req.ToTokenDecimal,
		FromAmount:     req.FromAmount,
		SlippageBps:    req.SlippageBps,
	})
	if err != nil {
		writeDomainError(w, "executing trade", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type adjustAssetRequest struct {
	ManagerID    string `json:"managerId"`
	TokenAddress string `json:"tokenAddress"`
	TokenSymbol  string `json:"tokenSymbol"`
	Amount       string `json:"amount"`
	Operation    string `json:"operation"`
}

// AdjustAsset handles POST /api/v1/funds/{id}/assets: a manual basket
// correction recorded outside the buy/sell/trade flows, for quantities that
// changed off-platform (airdrops, direct transfers).
func (h *Handler) AdjustAsset(w http.ResponseWriter, r *http.Request) {
	var req adjustAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, domain.KindValidation, "invalid JSON body")
		return
	}
	if req.ManagerID == "" || req.TokenAddress == "" {
		writeError(w, http.StatusBadRequest, domain.KindValidation, "managerId and tokenAddress are required")
		return
	}

	f, err := h.funds.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, "getting fund", err)
		return
	}
	if f.ManagerID != req.ManagerID {
		writeError(w, http.StatusConflict, domain.KindInvalidFundState, "managerId does not match the fund manager")
		return
	}

	entry, err := h.funds.UpdateAsset(r.Context(), f.ID, fund.AssetUpdate{
		TokenAddress:  req.TokenAddress,
		TokenSymbol:   req.TokenSymbol,
		Amount:        req.Amount,
		Operation:     fund.AssetOperation(req.Operation),
		OperationType: domain.OperationOther,
	})
	if err != nil {
		writeDomainError(w, "adjusting asset", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// GetPrice handles GET /api/v1/funds/{id}/price.
func (h *Handler) GetPrice(w http.ResponseWriter, r *http.Request) {
	f, err := h.funds.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, "getting fund", err)
		return
	}
	price := h.valuer.FundTokenPrice(r.Context(), f.Assets, f.FundTokens)
	writeJSON(w, http.StatusOK, map[string]string{"fundId": f.ID, "tokenPrice": price})
}

// GetAUM handles GET /api/v1/funds/{id}/aum.
func (h *Handler) GetAUM(w http.ResponseWriter, r *http.Request) {
	f, err := h.funds.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, "getting fund", err)
		return
	}
	aum, err := h.valuer.TotalValueInReference(r.Context(), f.Assets)
	if err != nil {
		writeDomainError(w, "valuing fund", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"fundId": f.ID, "aum": aum})
}

// GetPerformance handles GET /api/v1/funds/{id}/performance.
func (h *Handler) GetPerformance(w http.ResponseWriter, r *http.Request) {
	timeframe := perf.Timeframe1M
	if t := r.URL.Query().Get("timeframe"); t != "" {
		timeframe = perf.Timeframe(t)
	}
	points := 0
	if p := r.URL.Query().Get("points"); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, domain.KindValidation, "points must be a non-negative integer")
			return
		}
		points = n
	}

	series, err := h.engine.Series(r.Context(), r.PathValue("id"), timeframe, points)
	if err != nil {
		writeDomainError(w, "building performance series", err)
		return
	}
	writeJSON(w, http.StatusOK, series)
}

// GetAssetPerformance handles GET /api/v1/funds/{id}/assets/{token}/performance.
func (h *Handler) GetAssetPerformance(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	start := now.Add(-30 * 24 * time.Hour)
	end := now
	if s := r.URL.Query().Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			writeError(w, http.StatusBadRequest, domain.KindValidation, "start must be RFC 3339")
			return
		}
		start = t
	}
	if e := r.URL.Query().Get("end"); e != "" {
		t, err := time.Parse(time.RFC3339, e)
		if err != nil {
			writeError(w, http.StatusBadRequest, domain.KindValidation, "end must be RFC 3339")
			return
		}
		end = t
	}

	change, err := h.engine.AssetPerformance(r.Context(), r.PathValue("id"), r.PathValue("token"), start, end)
	if err != nil {
		writeDomainError(w, "computing asset performance", err)
		return
	}
	writeJSON(w, http.StatusOK, change)
}

// GetLedger handles GET /api/v1/funds/{id}/ledger.
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ledgers.History(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, "listing ledger", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetTrades handles GET /api/v1/funds/{id}/trades.
func (h *Handler) GetTrades(w http.ResponseWriter, r *http.Request) {
	entries, err := h.trades.History(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, "listing trades", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// GetHolding handles GET /api/v1/funds/{id}/holdings/{user}.
func (h *Handler) GetHolding(w http.ResponseWriter, r *http.Request) {
	rec, err := h.holdings.Get(r.Context(), r.PathValue("user"), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, "getting holding", err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// CheckSupply handles GET /api/v1/funds/{id}/supply. It compares the
// fund's outstanding token supply against the sum of all investor
// balances; the two drift apart only if a write was lost mid-flight.
func (h *Handler) CheckSupply(w http.ResponseWriter, r *http.Request) {
	f, err := h.funds.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, "getting fund", err)
		return
	}
	total, err := h.holdings.FundBalanceTotal(r.Context(), f.ID)
	if err != nil {
		writeDomainError(w, "summing holdings", err)
		return
	}
	consistent := domain.Equal(f.FundTokens, total)
	if !consistent {
		slog.Warn("fund token supply diverges from holdings",
			"fund_id", f.ID, "fund_tokens", f.FundTokens, "holdings_total", total)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"fundId":        f.ID,
		"fundTokens":    f.FundTokens,
		"holdingsTotal": total,
		"consistent":    consistent,
	})
}

// GetLeaderboard handles GET /api/v1/leaderboard.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	rows, err := h.reports.Leaderboard(r.Context())
	if err != nil {
		writeDomainError(w, "building leaderboard", err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// statusFor maps the error taxonomy onto HTTP statuses.
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInsufficientBalance, domain.KindInvalidFundState, domain.KindConflict:
		return http.StatusConflict
	case domain.KindPricingDegraded:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeDomainError(w http.ResponseWriter, action string, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		slog.Error(action, "error", err)
		writeError(w, status, kind, "internal error")
		return
	}
	writeError(w, status, kind, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, kind domain.ErrorKind, msg string) {
	writeJSON(w, status, map[string]string{"kind": string(kind), "error": msg})
}

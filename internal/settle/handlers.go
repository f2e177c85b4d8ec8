package settle

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/prizepool/settlement-engine/internal/model"
)

// HTTP handlers over the engine's operation surface. The engine methods stay
// transport-free; this file only decodes requests, maps the error taxonomy
// to status codes, and encodes responses.

// CreateMarketRequest is the JSON body for POST /api/v1/markets.
type CreateMarketRequest struct {
	Creator        string          `json:"creator"`
	Question       string          `json:"question"`
	Options        []string        `json:"options"`
	EntryFee       decimal.Decimal `json:"entry_fee"`
	InitialPool    decimal.Decimal `json:"initial_pool"`
	OpenUntil      time.Time       `json:"open_until"`
	ResolvableFrom time.Time       `json:"resolvable_from"`
}

// PlaceBetRequest is the JSON body for POST /api/v1/markets/{marketID}/bets.
type PlaceBetRequest struct {
	Account string          `json:"account"`
	Option  int             `json:"option"`
	Amount  decimal.Decimal `json:"amount"`
}

// ResolveRequest is the JSON body for POST /api/v1/markets/{marketID}/resolve.
type ResolveRequest struct {
	Caller        string `json:"caller"`
	WinningOption int    `json:"winning_option"`
}

// DisputeRequest is the JSON body for POST /api/v1/markets/{marketID}/disputes.
type DisputeRequest struct {
	Challenger     string          `json:"challenger"`
	ProposedOption int             `json:"proposed_option"`
	Stake          decimal.Decimal `json:"stake"`
}

// HandleCreateMarket handles POST /api/v1/markets.
func (s *Service) HandleCreateMarket(w http.ResponseWriter, r *http.Request) {
	var req CreateMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Creator == "" {
		writeError(w, "creator is required", http.StatusBadRequest)
		return
	}

	m, err := s.CreateMarket(r.Context(), req.Creator, req.Question, req.Options,
		req.EntryFee, req.InitialPool, req.OpenUntil, req.ResolvableFrom)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// HandleListMarkets handles GET /api/v1/markets.
func (s *Service) HandleListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.ListMarkets(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	if markets == nil {
		markets = []model.Market{}
	}
	writeJSON(w, http.StatusOK, markets)
}

// HandleGetMarket handles GET /api/v1/markets/{marketID}.
func (s *Service) HandleGetMarket(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	m, err := s.GetMarket(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandlePlaceBet handles POST /api/v1/markets/{marketID}/bets.
func (s *Service) HandlePlaceBet(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	var req PlaceBetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Account == "" {
		writeError(w, "account is required", http.StatusBadRequest)
		return
	}

	bet, err := s.PlaceBet(r.Context(), req.Account, id, req.Option, req.Amount)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, bet)
}

// HandleGetBet handles GET /api/v1/markets/{marketID}/bets/{account}.
func (s *Service) HandleGetBet(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	account := chi.URLParam(r, "account")

	bet, err := s.GetBet(r.Context(), id, account)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}

// HandleResolve handles POST /api/v1/markets/{marketID}/resolve.
func (s *Service) HandleResolve(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.Resolve(r.Context(), req.Caller, id, req.WinningOption); err != nil {
		writeEngineError(w, err)
		return
	}
	m, err := s.GetMarket(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandleCreateDispute handles POST /api/v1/markets/{marketID}/disputes.
func (s *Service) HandleCreateDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	var req DisputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Challenger == "" {
		writeError(w, "challenger is required", http.StatusBadRequest)
		return
	}

	d, err := s.CreateDispute(r.Context(), req.Challenger, id, req.ProposedOption, req.Stake)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

// HandleGetDispute handles GET /api/v1/markets/{marketID}/dispute.
func (s *Service) HandleGetDispute(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	info, err := s.GetDisputeInfo(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// HandleFinalize handles POST /api/v1/markets/{marketID}/finalize.
// Callable by anyone; idempotent.
func (s *Service) HandleFinalize(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	if err := s.Finalize(r.Context(), id); err != nil {
		writeEngineError(w, err)
		return
	}
	settled, err := s.ArePrizesDistributed(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"market_id": id, "settled": settled})
}

// HandleOptionStats handles GET /api/v1/markets/{marketID}/options.
func (s *Service) HandleOptionStats(w http.ResponseWriter, r *http.Request) {
	id, ok := marketID(w, r)
	if !ok {
		return
	}
	stats, err := s.GetOptionStats(r.Context(), id)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleUserStats handles GET /api/v1/accounts/{account}/stats.
func (s *Service) HandleUserStats(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	stats, err := s.GetUserStats(r.Context(), account)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// --- Helpers ---

func marketID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "marketID"), 10, 64)
	if err != nil {
		writeError(w, "invalid market id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// writeEngineError maps the engine's error taxonomy to HTTP status codes.
func writeEngineError(w http.ResponseWriter, err error) {
	writeError(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidSchedule),
		errors.Is(err, ErrInvalidOptions),
		errors.Is(err, ErrInvalidFee),
		errors.Is(err, ErrInvalidOption),
		errors.Is(err, ErrWrongAmount),
		errors.Is(err, ErrNoChange),
		errors.Is(err, ErrInsufficientStake):
		return http.StatusBadRequest
	case errors.Is(err, ErrMarketClosed),
		errors.Is(err, ErrDuplicateBet),
		errors.Is(err, ErrAlreadyResolved),
		errors.Is(err, ErrDisputeWindowClosed),
		errors.Is(err, ErrDisputeExists),
		errors.Is(err, ErrLedger):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

package api

import (
	"net/http"
	"strconv"

	"circlechain-wallet-go/internal/auth"
	"circlechain-wallet-go/internal/marketplace"
	"circlechain-wallet-go/internal/store"
	"circlechain-wallet-go/internal/wallet"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Handler serves the wallet, auth and marketplace endpoints.
type Handler struct {
	wallet wallet.Service
	market *marketplace.Service
	auth   auth.Service
}

func NewHandler(w wallet.Service, market *marketplace.Service, authSvc auth.Service) *Handler {
	return &Handler{wallet: w, market: market, auth: authSvc}
}

// actor returns the authenticated caller. Routes using it sit behind RequireAuth.
func actor(r *http.Request) marketplace.Actor {
	id, _ := auth.IdentityFromCtx(r.Context())
	return marketplace.Actor{UserId: id.UserId, Role: id.Role}
}

func pathId(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, store.NotFound("resource", raw)
	}
	return id, nil
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.wallet.HealthCheck(r.Context()); err != nil {
		zap.L().Error("Health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *Handler) WalletHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "wallet"})
}

// =============================================================================
// AUTH
// =============================================================================

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req auth.SignupRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := h.auth.Signup(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, user.Profile())
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tok, err := h.auth.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tok)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.CurrentUser(r.Context(), actor(r).UserId)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Profile())
}

// =============================================================================
// WALLET
// =============================================================================

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	view, err := h.wallet.GetBalance(r.Context(), actor(r).UserId)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) ProcessPayment(w http.ResponseWriter, r *http.Request) {
	var body PaymentBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	receipt, err := h.wallet.ProcessPayment(r.Context(), wallet.PaymentRequest{
		UserId:      actor(r).UserId,
		Amount:      body.Amount,
		ProductName: body.ProductName,
		ProductId:   body.ProductId,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *Handler) ProcessReward(w http.ResponseWriter, r *http.Request) {
	var body RewardBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	receipt, err := h.wallet.ProcessReward(r.Context(), wallet.RewardRequest{
		UserId: actor(r).UserId,
		Amount: body.Amount,
		Reason: body.Reason,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *Handler) ProcessRecyclingReward(w http.ResponseWriter, r *http.Request) {
	var body RecyclingRewardBody
	if err := decodeBody(r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	receipt, err := h.wallet.ProcessRecyclingReward(r.Context(), wallet.RecyclingRewardRequest{
		UserId:       actor(r).UserId,
		MaterialType: body.MaterialType,
		Quantity:     body.Quantity,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, receipt)
}

func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}
	history, err := h.wallet.GetTransactionHistory(r.Context(), actor(r).UserId, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.wallet.GetWalletSummary(r.Context(), actor(r).UserId)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

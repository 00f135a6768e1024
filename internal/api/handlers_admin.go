/**
 * @description
 * HTTP handlers for the admin and server-to-server endpoints of the
 * ledger-service: settling deposit and withdrawal requests, triggering the
 * earnings and maturity sweeps, resetting daily mining stats, crediting
 * referral rewards, and reading platform-wide stats. All routes in this file
 * are guarded by the internal API key middleware.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/zerthyx/ledger-service/internal/store"
)

type adminReviewPayload struct {
	Notes *string `json:"notes,omitempty"`
}

type referralRewardPayload struct {
	ReferrerID string  `json:"referrer_id"`
	ReferredID string  `json:"referred_id"`
	Amount     float64 `json:"amount,omitempty"`
}

// requestIDParam parses the {id} URL parameter as a UUID.
func (h *LedgerHandlers) requestIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request ID format")
		return uuid.Nil, false
	}
	return id, true
}

// reviewNotes decodes the optional admin notes body. An empty body is fine.
func reviewNotes(r *http.Request) *string {
	var payload adminReviewPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil
	}
	return payload.Notes
}

// ApproveDepositHandler settles a pending deposit request into a deposit batch.
func (h *LedgerHandlers) ApproveDepositHandler(w http.ResponseWriter, r *http.Request) {
	depositID, ok := h.requestIDParam(w, r)
	if !ok {
		return
	}

	batch, err := h.service.ApproveDeposit(r.Context(), depositID)
	if err != nil {
		log.Printf("level=warn component=api endpoint=approve_deposit outcome=failed deposit_id=%s err=%v", depositID, err)
		switch {
		case errors.Is(err, store.ErrDepositNotFound):
			h.writeError(w, http.StatusNotFound, "Deposit request not found")
		case errors.Is(err, store.ErrRequestNotPending):
			h.writeError(w, http.StatusConflict, "Deposit request is not pending.")
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, batch)
}

// RejectDepositHandler marks a pending deposit request as rejected.
func (h *LedgerHandlers) RejectDepositHandler(w http.ResponseWriter, r *http.Request) {
	depositID, ok := h.requestIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.RejectDeposit(r.Context(), depositID, reviewNotes(r)); err != nil {
		log.Printf("level=warn component=api endpoint=reject_deposit outcome=failed deposit_id=%s err=%v", depositID, err)
		switch {
		case errors.Is(err, store.ErrDepositNotFound):
			h.writeError(w, http.StatusNotFound, "Deposit request not found")
		case errors.Is(err, store.ErrRequestNotPending):
			h.writeError(w, http.StatusConflict, "Deposit request is not pending.")
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

// ApproveWithdrawalHandler settles a pending withdrawal request, debiting the
// user's profit balance.
func (h *LedgerHandlers) ApproveWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	withdrawalID, ok := h.requestIDParam(w, r)
	if !ok {
		return
	}

	withdrawal, err := h.service.ApproveWithdrawal(r.Context(), withdrawalID)
	if err != nil {
		log.Printf("level=warn component=api endpoint=approve_withdrawal outcome=failed withdrawal_id=%s err=%v", withdrawalID, err)
		switch {
		case errors.Is(err, store.ErrWithdrawalNotFound):
			h.writeError(w, http.StatusNotFound, "Withdrawal request not found")
		case errors.Is(err, store.ErrRequestNotPending):
			h.writeError(w, http.StatusConflict, "Withdrawal request is not pending.")
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, withdrawal)
}

// RejectWithdrawalHandler marks a pending withdrawal request as rejected
// without touching balances.
func (h *LedgerHandlers) RejectWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	withdrawalID, ok := h.requestIDParam(w, r)
	if !ok {
		return
	}

	if err := h.service.RejectWithdrawal(r.Context(), withdrawalID, reviewNotes(r)); err != nil {
		log.Printf("level=warn component=api endpoint=reject_withdrawal outcome=failed withdrawal_id=%s err=%v", withdrawalID, err)
		switch {
		case errors.Is(err, store.ErrWithdrawalNotFound):
			h.writeError(w, http.StatusNotFound, "Withdrawal request not found")
		case errors.Is(err, store.ErrRequestNotPending):
			h.writeError(w, http.StatusConflict, "Withdrawal request is not pending.")
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "rejected"})
}

// RunEarningsSweepHandler flushes accrued earnings into profit balances for
// all active wallets.
func (h *LedgerHandlers) RunEarningsSweepHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.TransferDailyEarnings(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=earnings_sweep err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// RunMaturitySweepHandler marks deposit batches past their maturity date.
func (h *LedgerHandlers) RunMaturitySweepHandler(w http.ResponseWriter, r *http.Request) {
	matured, err := h.service.RunMaturitySweep(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=maturity_sweep err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int64{"batches_matured": matured})
}

// ResetDailyMiningHandler rolls daily mining counters for all stale wallets.
func (h *LedgerHandlers) ResetDailyMiningHandler(w http.ResponseWriter, r *http.Request) {
	reset, err := h.service.ResetDailyMiningStats(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=mining_reset err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]int64{"wallets_reset": reset})
}

// AddReferralRewardHandler credits a referral reward to the referrer once the
// referred user qualifies.
func (h *LedgerHandlers) AddReferralRewardHandler(w http.ResponseWriter, r *http.Request) {
	var payload referralRewardPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	referrerID, err := uuid.Parse(payload.ReferrerID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid referrer ID format")
		return
	}
	referredID, err := uuid.Parse(payload.ReferredID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid referred ID format")
		return
	}

	if err := h.service.AddReferralReward(r.Context(), referrerID, referredID, payload.Amount); err != nil {
		log.Printf("level=warn component=api endpoint=referral_reward outcome=failed referrer_id=%s referred_id=%s err=%v", referrerID, referredID, err)
		switch {
		case errors.Is(err, store.ErrReferralNotFound):
			h.writeError(w, http.StatusNotFound, "Referral not found")
		case errors.Is(err, store.ErrReferralAlreadyRewarded):
			h.writeError(w, http.StatusConflict, "Referral reward already paid.")
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "rewarded"})
}

// GetAdminStatsHandler returns platform-wide totals for the admin dashboard.
func (h *LedgerHandlers) GetAdminStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetAdminStats(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=admin_stats err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, stats)
}

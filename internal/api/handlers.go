/**
 * @description
 * This file contains the HTTP handlers for the ledger-service's user-facing API
 * endpoints. Handlers are responsible for parsing incoming requests, calling the
 * appropriate methods on the application service, and writing the HTTP response.
 * They act as the bridge between the web layer and the business logic layer.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/zerthyx/ledger-service/internal/app"
	"github.com/zerthyx/ledger-service/internal/domain"
	"github.com/zerthyx/ledger-service/internal/store"
)

// LedgerHandlers holds the application service that handlers will use.
type LedgerHandlers struct {
	service *app.Service
}

// NewLedgerHandlers creates a new instance of LedgerHandlers.
func NewLedgerHandlers(service *app.Service) *LedgerHandlers {
	return &LedgerHandlers{service: service}
}

// authenticatedUserID extracts the caller's user ID from the request context
// and parses it as a UUID. It writes the error response itself on failure.
func (h *LedgerHandlers) authenticatedUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userIDStr, ok := GetAuthUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		log.Printf("level=warn component=api outcome=reject reason=invalid_user_id user_id=%s", userIDStr)
		h.writeError(w, http.StatusBadRequest, "Invalid user ID format")
		return uuid.Nil, false
	}
	return userID, true
}

// GetWalletHandler returns the caller's wallet with earnings accrued to now.
func (h *LedgerHandlers) GetWalletHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	wallet, err := h.service.GetWalletState(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=get_wallet user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, wallet)
}

// GetNftSummaryHandler returns the caller's deposit batches and maturity summary.
func (h *LedgerHandlers) GetNftSummaryHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	summary, err := h.service.GetNftSummary(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=nft_summary user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// CreateDepositHandler records a new deposit request pending admin approval.
func (h *LedgerHandlers) CreateDepositHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	var payload domain.CreateDepositPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Printf("level=warn component=api endpoint=create_deposit outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	deposit, err := h.service.RequestDeposit(r.Context(), userID, payload)
	if err != nil {
		log.Printf("level=warn component=api endpoint=create_deposit outcome=failed user_id=%s err=%v", userID, err)
		if errors.Is(err, app.ErrInvalidAmount) || errors.Is(err, app.ErrMissingAddress) {
			h.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	log.Printf("level=info component=api endpoint=create_deposit outcome=accepted user_id=%s amount=%.2f", userID, deposit.Amount)
	h.writeJSON(w, http.StatusCreated, deposit)
}

// ListDepositsHandler returns the caller's deposit requests, newest first.
func (h *LedgerHandlers) ListDepositsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	deposits, err := h.service.ListDeposits(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_deposits user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"deposits": deposits})
}

// CreateWithdrawalHandler places a withdrawal request against the caller's
// available balance.
func (h *LedgerHandlers) CreateWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	var payload domain.CreateWithdrawalPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		log.Printf("level=warn component=api endpoint=create_withdrawal outcome=reject reason=invalid_json err=%v", err)
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid request body: %v", err))
		return
	}

	withdrawal, err := h.service.RequestWithdrawal(r.Context(), userID, payload)
	if err != nil {
		log.Printf("level=warn component=api endpoint=create_withdrawal outcome=failed user_id=%s err=%v", userID, err)

		var rateLimited *app.RateLimitedError
		switch {
		case errors.As(err, &rateLimited):
			w.Header().Set("Retry-After", strconv.Itoa(rateLimited.RetryAfterSeconds))
			h.writeError(w, http.StatusTooManyRequests, "Too many withdrawal requests. Please try again later.")
		case errors.Is(err, app.ErrInvalidAmount), errors.Is(err, app.ErrMissingAddress):
			h.writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrInsufficientBalance):
			h.writeError(w, http.StatusPaymentRequired, err.Error())
		case errors.Is(err, store.ErrDailyWithdrawalLimit):
			h.writeError(w, http.StatusConflict, "Only one withdrawal request is allowed per day.")
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	log.Printf("level=info component=api endpoint=create_withdrawal outcome=accepted user_id=%s amount=%.2f", userID, withdrawal.Amount)
	h.writeJSON(w, http.StatusCreated, withdrawal)
}

// ListWithdrawalsHandler returns the caller's withdrawal requests, newest first.
func (h *LedgerHandlers) ListWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	withdrawals, err := h.service.ListWithdrawals(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_withdrawals user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"withdrawals": withdrawals})
}

// GetMiningStatusHandler returns the caller's mining wallet and latest session.
func (h *LedgerHandlers) GetMiningStatusHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	status, err := h.service.GetMiningStatus(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=mining_status user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, status)
}

// ClaimMiningHandler performs a mining claim for the caller.
func (h *LedgerHandlers) ClaimMiningHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	result, err := h.service.ClaimMining(r.Context(), userID)
	if err != nil {
		log.Printf("level=warn component=api endpoint=mining_claim outcome=failed user_id=%s err=%v", userID, err)

		var rateLimited *app.RateLimitedError
		switch {
		case errors.As(err, &rateLimited):
			w.Header().Set("Retry-After", strconv.Itoa(rateLimited.RetryAfterSeconds))
			h.writeError(w, http.StatusTooManyRequests, "Too many claim attempts. Please try again later.")
		case errors.Is(err, store.ErrClaimNotReady):
			h.writeError(w, http.StatusConflict, "Mining claim is not available yet.")
		case errors.Is(err, store.ErrDailyClaimLimit):
			h.writeError(w, http.StatusConflict, "Daily mining claim limit reached.")
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// ListTasksHandler returns active tasks with the caller's completion state.
func (h *LedgerHandlers) ListTasksHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	tasks, err := h.service.ListTasks(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_tasks user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

// CompleteTaskHandler records a task completion for the caller.
func (h *LedgerHandlers) CompleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	taskIDStr := chi.URLParam(r, "taskID")
	taskID, err := uuid.Parse(taskIDStr)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid task ID format")
		return
	}

	completion, err := h.service.CompleteTask(r.Context(), userID, taskID)
	if err != nil {
		log.Printf("level=warn component=api endpoint=complete_task outcome=failed user_id=%s task_id=%s err=%v", userID, taskID, err)
		switch {
		case errors.Is(err, store.ErrTaskNotFound):
			h.writeError(w, http.StatusNotFound, "Task not found")
		case errors.Is(err, store.ErrTaskNotActive):
			h.writeError(w, http.StatusConflict, "Task is no longer active.")
		case errors.Is(err, store.ErrTaskAlreadyCompleted):
			h.writeError(w, http.StatusConflict, "Task already completed.")
		default:
			h.writeError(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	h.writeJSON(w, http.StatusCreated, completion)
}

// GetReferralsHandler returns the caller's referral code and stats.
func (h *LedgerHandlers) GetReferralsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authenticatedUserID(w, r)
	if !ok {
		return
	}

	overview, err := h.service.GetReferralOverview(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=referrals user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, overview)
}

// writeJSON is a helper for writing JSON responses.
func (h *LedgerHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *LedgerHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

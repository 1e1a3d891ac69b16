/**
 * @description
 * This file contains the HTTP handlers for the investment-service's API endpoints.
 * Handlers are responsible for parsing incoming requests, calling the appropriate
 * methods on the application service, and writing the HTTP response. They act as the
 * bridge between the web layer and the business logic layer.
 *
 * Error translation happens here: the store and app sentinel errors are mapped
 * onto HTTP status codes so the business layer never knows about HTTP.
 *
 * @dependencies
 * - encoding/json, log, net/http: Standard Go libraries.
 * - internal/app, internal/domain, internal/store: For service logic, models, and custom errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/coinharbor/investment-service/internal/app"
	"github.com/coinharbor/investment-service/internal/domain"
	"github.com/coinharbor/investment-service/internal/store"
)

// InvestmentHandlers holds the application service that handlers will use.
type InvestmentHandlers struct {
	service *app.Service
}

// NewInvestmentHandlers creates a new instance of InvestmentHandlers.
func NewInvestmentHandlers(service *app.Service) *InvestmentHandlers {
	return &InvestmentHandlers{service: service}
}

// authedUserID pulls the authenticated user's UUID out of the request context.
func (h *InvestmentHandlers) authedUserID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userIDStr, ok := GetUserID(r.Context())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "Could not get user ID from context")
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDStr)
	if err != nil {
		log.Printf("level=warn component=api outcome=reject reason=invalid_user_id user_id=%s err=%v", userIDStr, err)
		h.writeError(w, http.StatusBadRequest, "Invalid user ID format")
		return uuid.Nil, false
	}
	return userID, true
}

// pathID parses a UUID path parameter.
func (h *InvestmentHandlers) pathID(w http.ResponseWriter, r *http.Request, param string) (uuid.UUID, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, param))
	id, err := uuid.Parse(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid "+param+" format")
		return uuid.Nil, false
	}
	return id, true
}

// ListInvestmentsHandler returns the authenticated user's investments.
func (h *InvestmentHandlers) ListInvestmentsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	investments, err := h.service.ListInvestments(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_investments outcome=failed user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, investments)
}

// RequestWithdrawalHandler handles a user's request to withdraw from an investment.
func (h *InvestmentHandlers) RequestWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	var payload domain.RequestWithdrawalPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if payload.InvestmentID == uuid.Nil {
		h.writeError(w, http.StatusBadRequest, "investment_id is required")
		return
	}

	wd, err := h.service.RequestWithdrawal(r.Context(), payload.InvestmentID, userID, payload.Amount)
	if err != nil {
		h.writeServiceError(w, "request_withdrawal", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, wd)
}

// ListWithdrawalsHandler returns the authenticated user's withdrawals.
func (h *InvestmentHandlers) ListWithdrawalsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}

	withdrawals, err := h.service.ListWithdrawals(r.Context(), userID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_withdrawals outcome=failed user_id=%s err=%v", userID, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, withdrawals)
}

// ListDepositsHandler returns deposits filtered by status for the admin queue.
func (h *InvestmentHandlers) ListDepositsHandler(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.DepositStatusPending
	}
	limit, offset := paginationParams(r)

	deposits, err := h.service.ListDepositsByStatus(r.Context(), status, limit, offset)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_deposits outcome=failed err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, deposits)
}

// ApproveDepositHandler promotes a pending deposit into an active investment.
func (h *InvestmentHandlers) ApproveDepositHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}
	depositID, ok := h.pathID(w, r, "depositID")
	if !ok {
		return
	}

	var payload domain.ApproveDepositPayload
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	inv, err := h.service.ApproveDeposit(r.Context(), depositID, adminID, payload.Note)
	if err != nil {
		h.writeServiceError(w, "approve_deposit", err)
		return
	}

	h.writeJSON(w, http.StatusCreated, inv)
}

// RejectDepositHandler rejects a pending deposit with a mandatory note.
func (h *InvestmentHandlers) RejectDepositHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}
	depositID, ok := h.pathID(w, r, "depositID")
	if !ok {
		return
	}

	var payload domain.RejectPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.RejectDeposit(r.Context(), depositID, adminID, payload.Note); err != nil {
		h.writeServiceError(w, "reject_deposit", err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": domain.DepositStatusRejected})
}

// ListWithdrawalsByStatusHandler returns withdrawals filtered by status for the admin queue.
func (h *InvestmentHandlers) ListWithdrawalsByStatusHandler(w http.ResponseWriter, r *http.Request) {
	status := strings.TrimSpace(r.URL.Query().Get("status"))
	if status == "" {
		status = domain.WithdrawalStatusRequested
	}
	limit, offset := paginationParams(r)

	withdrawals, err := h.service.ListWithdrawalsByStatus(r.Context(), status, limit, offset)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_withdrawals_admin outcome=failed err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, withdrawals)
}

// ApproveWithdrawalHandler settles a requested withdrawal.
func (h *InvestmentHandlers) ApproveWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}
	withdrawalID, ok := h.pathID(w, r, "withdrawalID")
	if !ok {
		return
	}

	var payload domain.ApproveWithdrawalPayload
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			h.writeError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	wd, err := h.service.ApproveWithdrawal(r.Context(), withdrawalID, adminID, payload.NetworkFee, payload.Note)
	if err != nil {
		h.writeServiceError(w, "approve_withdrawal", err)
		return
	}

	h.writeJSON(w, http.StatusOK, wd)
}

// RejectWithdrawalHandler rejects a requested withdrawal and releases the reservation.
func (h *InvestmentHandlers) RejectWithdrawalHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}
	withdrawalID, ok := h.pathID(w, r, "withdrawalID")
	if !ok {
		return
	}

	var payload domain.RejectPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	wd, err := h.service.RejectWithdrawal(r.Context(), withdrawalID, adminID, payload.Note)
	if err != nil {
		h.writeServiceError(w, "reject_withdrawal", err)
		return
	}

	h.writeJSON(w, http.StatusOK, wd)
}

// MarkWithdrawalSentHandler records that an approved withdrawal was paid out.
func (h *InvestmentHandlers) MarkWithdrawalSentHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}
	withdrawalID, ok := h.pathID(w, r, "withdrawalID")
	if !ok {
		return
	}

	wd, err := h.service.MarkWithdrawalSent(r.Context(), withdrawalID, adminID)
	if err != nil {
		h.writeServiceError(w, "mark_withdrawal_sent", err)
		return
	}

	h.writeJSON(w, http.StatusOK, wd)
}

// AdjustInvestmentHandler applies an admin's partial edit to an investment.
func (h *InvestmentHandlers) AdjustInvestmentHandler(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.authedUserID(w, r)
	if !ok {
		return
	}
	investmentID, ok := h.pathID(w, r, "investmentID")
	if !ok {
		return
	}

	var payload domain.AdjustInvestmentRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if payload.RateMonthly == nil && payload.Status == nil && payload.LockedAmount == nil {
		h.writeError(w, http.StatusBadRequest, "At least one field must be provided")
		return
	}

	inv, err := h.service.AdjustInvestment(r.Context(), investmentID, adminID, payload)
	if err != nil {
		h.writeServiceError(w, "adjust_investment", err)
		return
	}

	h.writeJSON(w, http.StatusOK, inv)
}

// RunAccrualHandler triggers one accrual tick. It backs the internal endpoint
// used by operators and by tests; the cron scheduler calls the service directly.
func (h *InvestmentHandlers) RunAccrualHandler(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RunAccrualTick(r.Context(), time.Now().UTC())
	if err != nil {
		log.Printf("level=error component=api endpoint=run_accrual outcome=failed err=%v", err)
		h.writeError(w, http.StatusInternalServerError, "Accrual run failed")
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// writeServiceError maps app and store sentinel errors onto HTTP statuses.
func (h *InvestmentHandlers) writeServiceError(w http.ResponseWriter, endpoint string, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidAmount),
		errors.Is(err, app.ErrInvalidRate),
		errors.Is(err, app.ErrInvalidStatus),
		errors.Is(err, app.ErrInvalidLockedValue),
		errors.Is(err, app.ErrMissingNote):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrRateLimited):
		h.writeError(w, http.StatusTooManyRequests, "Too many withdrawal requests. Please wait and try again.")
	case errors.Is(err, store.ErrDepositNotFound),
		errors.Is(err, store.ErrInvestmentNotFound),
		errors.Is(err, store.ErrWithdrawalNotFound):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrAlreadyProcessed),
		errors.Is(err, store.ErrInvestmentExists),
		errors.Is(err, store.ErrInvestmentNotActive),
		errors.Is(err, store.ErrSettlementConflict):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrInsufficientAvailable),
		errors.Is(err, store.ErrLockExceedsBalance):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		log.Printf("level=error component=api endpoint=%s outcome=failed err=%v", endpoint, err)
		h.writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// paginationParams reads limit/offset query params with sane bounds.
func paginationParams(r *http.Request) (limit, offset int) {
	limit = 50
	offset = 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			limit = parsed
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}

// writeJSON is a helper for writing JSON responses.
func (h *InvestmentHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError is a helper for writing JSON error responses.
func (h *InvestmentHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

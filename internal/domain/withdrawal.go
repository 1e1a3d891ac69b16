/**
 * @description
 * Withdrawal domain model and its API payloads. A withdrawal moves through a
 * strict state machine: requested -> approved -> sent, or requested ->
 * rejected. Funds are reserved on the target investment for the lifetime of a
 * requested withdrawal.
 */

package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/coinharbor/investment-service/internal/money"
)

// Withdrawal status values.
const (
	WithdrawalStatusRequested = "requested"
	WithdrawalStatusApproved  = "approved"
	WithdrawalStatusSent      = "sent"
	WithdrawalStatusRejected  = "rejected"
)

// Withdrawal maps directly to the `withdrawals` table.
type Withdrawal struct {
	ID           uuid.UUID    `json:"id"`
	InvestmentID uuid.UUID    `json:"investment_id"`
	UserID       uuid.UUID    `json:"user_id"`
	Amount       money.Amount `json:"amount"`
	NetworkFee   money.Amount `json:"network_fee"`
	Status       string       `json:"status"`
	AdminNote    *string      `json:"admin_note,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// RequestWithdrawalPayload is the DTO for a user's withdrawal request.
type RequestWithdrawalPayload struct {
	InvestmentID uuid.UUID    `json:"investment_id"`
	Amount       money.Amount `json:"amount"`
}

// ApproveWithdrawalPayload is the DTO for an admin approving a withdrawal.
// The network fee does not affect the investment debit, only the externally
// sent amount.
type ApproveWithdrawalPayload struct {
	NetworkFee *money.Amount `json:"network_fee,omitempty"`
	Note       *string       `json:"note,omitempty"`
}

// RejectPayload is the DTO for an admin rejecting a deposit or withdrawal.
// The note is mandatory on rejection.
type RejectPayload struct {
	Note string `json:"note"`
}

// ApproveDepositPayload is the DTO for an admin approving a deposit.
type ApproveDepositPayload struct {
	Note *string `json:"note,omitempty"`
}

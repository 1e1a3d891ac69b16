/**
 * @description
 * Deposit domain model. A deposit is a user's inbound funding request; an
 * admin confirms or rejects it. A confirmed deposit is promoted into exactly
 * one active investment.
 */

package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/coinharbor/investment-service/internal/money"
)

// Deposit status values.
const (
	DepositStatusPending   = "pending"
	DepositStatusConfirmed = "confirmed"
	DepositStatusRejected  = "rejected"
)

// Deposit maps directly to the `deposits` table.
type Deposit struct {
	ID        uuid.UUID    `json:"id"`
	UserID    uuid.UUID    `json:"user_id"`
	Amount    money.Amount `json:"amount"`
	Status    string       `json:"status"`
	AdminNote *string      `json:"admin_note,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Profile is the slice of the `profiles` table this service reads: the
// per-user monthly rate an admin may have set. A nil MonthlyRate means the
// platform default applies at promotion time.
type Profile struct {
	UserID      uuid.UUID     `json:"user_id"`
	MonthlyRate *money.Amount `json:"monthly_rate,omitempty"`
}

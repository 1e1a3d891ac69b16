/**
 * @description
 * Ledger entry domain model. Every mutation of an investment's value writes
 * an append-only row to `ledger_entries` inside the same database
 * transaction, giving an auditable trail of principal and interest movement.
 */

package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/coinharbor/investment-service/internal/money"
)

// Ledger entry kinds.
const (
	LedgerEntryDeposit    = "deposit"    // principal credited at promotion
	LedgerEntryAccrual    = "accrual"    // interest credited by the engine
	LedgerEntryWithdrawal = "withdrawal" // value debited on approval
)

// LedgerEntry maps directly to the `ledger_entries` table.
type LedgerEntry struct {
	ID           uuid.UUID    `json:"id"`
	InvestmentID uuid.UUID    `json:"investment_id"`
	Kind         string       `json:"kind"`
	Amount       money.Amount `json:"amount"` // positive = credit, negative = debit
	CreatedAt    time.Time    `json:"created_at"`
}

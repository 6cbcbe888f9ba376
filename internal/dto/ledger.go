package dto

import (
	"time"

	"github.com/commonward/coop_ledger_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// EntryRequest is one line of a transaction to post.
type EntryRequest struct {
	AccountID string          `json:"accountID" binding:"required"`
	Direction string          `json:"direction" binding:"required,oneof=DEBIT CREDIT"`
	Amount    decimal.Decimal `json:"amount" binding:"required,dpositive"`
	Memo      string          `json:"memo"`
}

// PostTransactionRequest creates a balanced ledger transaction.
type PostTransactionRequest struct {
	Date        time.Time      `json:"date" binding:"required"`
	PeriodID    string         `json:"periodID" binding:"required"`
	Description string         `json:"description" binding:"required"`
	Entries     []EntryRequest `json:"entries" binding:"required,min=2,dive"`
}

// VoidTransactionRequest voids a posted transaction.
type VoidTransactionRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// OpenAccountRequest creates a ledger account.
type OpenAccountRequest struct {
	Number          string          `json:"number" binding:"required"`
	Name            string          `json:"name" binding:"required"`
	AccountType     string          `json:"accountType" binding:"required,oneof=ASSET LIABILITY EQUITY REVENUE EXPENSE"`
	Ledger          string          `json:"ledger" binding:"required,oneof=BOOK TAX"`
	IsMemberCapital bool            `json:"isMemberCapital"`
	MemberID        *string         `json:"memberID"`
	ParentAccountID *string         `json:"parentAccountID"`
	OpeningBalance  decimal.Decimal `json:"openingBalance"`
}

// OpenPeriodRequest opens a new accounting period.
type OpenPeriodRequest struct {
	Name  string    `json:"name" binding:"required"`
	Start time.Time `json:"start" binding:"required"`
	End   time.Time `json:"end" binding:"required,gtfield=Start"`
}

// TransactionResponse is the API shape of a ledger transaction.
type TransactionResponse struct {
	TransactionID string          `json:"transactionID"`
	Date          time.Time       `json:"date"`
	PeriodID      string          `json:"periodID"`
	Description   string          `json:"description"`
	Status        string          `json:"status"`
	VoidReason    string          `json:"voidReason,omitempty"`
	Entries       []EntryResponse `json:"entries,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	CreatedBy     string          `json:"createdBy"`
}

// EntryResponse is the API shape of one transaction entry.
type EntryResponse struct {
	EntryID   string          `json:"entryID"`
	AccountID string          `json:"accountID"`
	Direction string          `json:"direction"`
	Amount    decimal.Decimal `json:"amount"`
	Memo      string          `json:"memo,omitempty"`
}

// ToTransactionResponse converts a domain.Transaction to its API shape.
func ToTransactionResponse(t *domain.Transaction) TransactionResponse {
	entries := make([]EntryResponse, len(t.Entries))
	for i, e := range t.Entries {
		entries[i] = EntryResponse{
			EntryID:   e.EntryID,
			AccountID: e.AccountID,
			Direction: string(e.Direction),
			Amount:    e.Amount,
			Memo:      e.Memo,
		}
	}
	return TransactionResponse{
		TransactionID: t.TransactionID,
		Date:          t.Date,
		PeriodID:      t.PeriodID,
		Description:   t.Description,
		Status:        string(t.Status),
		VoidReason:    t.VoidReason,
		Entries:       entries,
		CreatedAt:     t.CreatedAt,
		CreatedBy:     t.CreatedBy,
	}
}

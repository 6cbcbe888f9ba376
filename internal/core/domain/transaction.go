package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryDirection indicates whether an entry is a Debit or a Credit.
type EntryDirection string

const (
	Debit  EntryDirection = "DEBIT"
	Credit EntryDirection = "CREDIT"
)

// TransactionStatus is the lifecycle state of a ledger transaction.
type TransactionStatus string

const (
	TxnDraft  TransactionStatus = "DRAFT"
	TxnPosted TransactionStatus = "POSTED"
	TxnVoid   TransactionStatus = "VOID"
)

// Entry is a single line of a transaction, affecting one account.
// Amount is always positive; direction carries the sign.
type Entry struct {
	EntryID       string          `json:"entryID"`
	TransactionID string          `json:"transactionID"`
	AccountID     string          `json:"accountID"`
	Direction     EntryDirection  `json:"direction"`
	Amount        decimal.Decimal `json:"amount"`
	Memo          string          `json:"memo,omitempty"`
}

// Transaction is a balanced set of entries posted into a period.
// Invariant: sum of debit amounts equals sum of credit amounts.
// A voided transaction keeps its entries for audit but is excluded
// from balances.
type Transaction struct {
	TransactionID string            `json:"transactionID"`
	Date          time.Time         `json:"date"`
	PeriodID      string            `json:"periodID"`
	Description   string            `json:"description"`
	Status        TransactionStatus `json:"status"`
	VoidReason    string            `json:"voidReason,omitempty"`
	Entries       []Entry           `json:"entries,omitempty"`
	AuditFields
}

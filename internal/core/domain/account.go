package domain

import (
	"github.com/shopspring/decimal"
)

// AccountType defines the fundamental accounting type of an account.
type AccountType string

const (
	Asset     AccountType = "ASSET"
	Liability AccountType = "LIABILITY"
	Equity    AccountType = "EQUITY"
	Revenue   AccountType = "REVENUE"
	Expense   AccountType = "EXPENSE"
)

// LedgerKind separates the book ledger from the tax ledger.
type LedgerKind string

const (
	BookLedger LedgerKind = "BOOK"
	TaxLedger  LedgerKind = "TAX"
)

// NormalBalance is the direction in which an account's balance grows.
type NormalBalance string

const (
	DebitNormal  NormalBalance = "DEBIT"
	CreditNormal NormalBalance = "CREDIT"
)

// NormalBalanceFor returns the conventional normal balance for an account type.
func NormalBalanceFor(t AccountType) NormalBalance {
	switch t {
	case Asset, Expense:
		return DebitNormal
	default:
		return CreditNormal
	}
}

// Account is a ledger account projection. Its running balance direction
// follows NormalBalance.
type Account struct {
	AccountID       string          `json:"accountID"` // Primary Key (UUID)
	Number          string          `json:"number"`    // Chart-of-accounts number
	Name            string          `json:"name"`
	AccountType     AccountType     `json:"accountType"`
	Ledger          LedgerKind      `json:"ledger"`
	NormalBalance   NormalBalance   `json:"normalBalance"`
	IsMemberCapital bool            `json:"isMemberCapital"`
	MemberID        *string         `json:"memberID,omitempty"`        // Set when IsMemberCapital
	ParentAccountID *string         `json:"parentAccountID,omitempty"` // Self-referencing, nullable
	IsActive        bool            `json:"isActive"`
	Balance         decimal.Decimal `json:"balance"` // Persisted projection balance
	AuditFields
}

package services

import (
	"context"
	"time"

	"github.com/commonward/coop_ledger_app/internal/core/domain"
	"github.com/commonward/coop_ledger_app/internal/dto"
	"github.com/shopspring/decimal"
)

// LedgerSvcFacade is the double-entry ledger engine. Posting is atomic; a
// transaction either lands with all entries or not at all.
type LedgerSvcFacade interface {
	// PostTransaction validates balance and period state, then appends the
	// posting event. closeInternal marks close-workflow postings, which are
	// additionally allowed into CLOSING periods.
	PostTransaction(ctx context.Context, req dto.PostTransactionRequest, actorID string, closeInternal bool) (*domain.Transaction, error)
	// VoidTransaction voids a posted transaction with a mandatory reason.
	// Entries are kept for audit; balances exclude the voided amounts.
	VoidTransaction(ctx context.Context, transactionID string, reason string, actorID string) (*domain.Transaction, error)
	GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error)
	ListTransactionsByPeriod(ctx context.Context, periodID string, status *domain.TransactionStatus) ([]domain.Transaction, error)
	// GetAccountBalance folds all posted, non-voided entries for the account
	// up to asOf (nil means now), signed per the account's normal balance.
	GetAccountBalance(ctx context.Context, accountID string, asOf *time.Time) (decimal.Decimal, error)
	OpenAccount(ctx context.Context, req dto.OpenAccountRequest, actorID string) (*domain.Account, error)
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
	ListAccounts(ctx context.Context, limit, offset int) ([]domain.Account, error)
}

// PeriodSvcFacade manages period lifecycle.
type PeriodSvcFacade interface {
	OpenPeriod(ctx context.Context, req dto.OpenPeriodRequest, actorID string) (*domain.Period, error)
	GetPeriod(ctx context.Context, periodID string) (*domain.Period, error)
	ListPeriods(ctx context.Context, limit, offset int) ([]domain.Period, error)
	// ClosePeriod moves OPEN → CLOSED. Fails with ErrOpenTransactionsRemain
	// while draft transactions reference the period.
	ClosePeriod(ctx context.Context, periodID string, actorID string) (*domain.Period, error)
	// MarkPeriodClosing and LockPeriod are used by the close workflow.
	MarkPeriodClosing(ctx context.Context, periodID string, actorID string) error
	ReopenPeriod(ctx context.Context, periodID string, actorID string) error
	LockPeriod(ctx context.Context, periodID string, actorID string) (*domain.Period, error)
}

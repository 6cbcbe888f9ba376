package repositories

import (
	"context"
	"time"

	"github.com/commonward/coop_ledger_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// AccountRepositoryFacade maintains the accounts projection.
type AccountRepositoryFacade interface {
	SaveAccount(ctx context.Context, account domain.Account) error
	FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error)
	FindAccountsByIDs(ctx context.Context, accountIDs []string) (map[string]domain.Account, error)
	FindMemberCapitalAccount(ctx context.Context, memberID string, ledger domain.LedgerKind) (*domain.Account, error)
	ListAccounts(ctx context.Context, limit int, offset int) ([]domain.Account, error)
	// AdjustBalances applies signed balance deltas to the given accounts.
	AdjustBalances(ctx context.Context, deltas map[string]decimal.Decimal, updatedBy string, updatedAt time.Time) error
	SetAccountActive(ctx context.Context, accountID string, active bool, updatedBy string, updatedAt time.Time) error
}

// TransactionRepositoryFacade maintains the transactions/entries projection.
type TransactionRepositoryFacade interface {
	// SaveTransaction persists the header and all entries atomically.
	SaveTransaction(ctx context.Context, txn domain.Transaction) error
	FindTransactionByID(ctx context.Context, transactionID string) (*domain.Transaction, error)
	MarkTransactionVoid(ctx context.Context, transactionID string, reason string, updatedBy string, updatedAt time.Time) error
	ListTransactionsByPeriod(ctx context.Context, periodID string, status *domain.TransactionStatus) ([]domain.Transaction, error)
	CountDraftTransactionsInPeriod(ctx context.Context, periodID string) (int, error)
	// ListEntriesByAccount returns entries of posted, non-voided transactions
	// for one account, optionally bounded by an as-of date.
	ListEntriesByAccount(ctx context.Context, accountID string, asOf *time.Time) ([]domain.Entry, error)
	ListAllEntries(ctx context.Context) ([]domain.Entry, error)
}

// PeriodRepositoryFacade maintains the periods projection.
type PeriodRepositoryFacade interface {
	SavePeriod(ctx context.Context, period domain.Period) error
	FindPeriodByID(ctx context.Context, periodID string) (*domain.Period, error)
	UpdatePeriodStatus(ctx context.Context, periodID string, status domain.PeriodStatus, updatedBy string, updatedAt time.Time) error
	ListPeriods(ctx context.Context, limit int, offset int) ([]domain.Period, error)
}

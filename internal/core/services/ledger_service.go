package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/commonward/coop_ledger_app/internal/apperrors"
	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
	"github.com/commonward/coop_ledger_app/internal/dto"
	"github.com/commonward/coop_ledger_app/internal/eventbus"
	"github.com/commonward/coop_ledger_app/internal/metrics"
	"github.com/commonward/coop_ledger_app/internal/utils/accounting"
)

// LedgerService is the double-entry posting engine.
type LedgerService struct {
	BaseService
}

func NewLedgerService(repos portsrepo.RepositoryProvider, bus *eventbus.Bus) *LedgerService {
	return &LedgerService{BaseService: BaseService{Repos: repos, Bus: bus}}
}

// PostTransaction validates the double-entry invariant and the period gate,
// then appends TRANSACTION_POSTED. The projector folds the transaction and
// account balances synchronously, so the posted transaction is read back
// from the projection.
func (s *LedgerService) PostTransaction(ctx context.Context, req dto.PostTransactionRequest, actorID string, closeInternal bool) (*domain.Transaction, error) {
	logger := s.GetLogger(ctx)

	transactionID := uuid.NewString()
	entries := make([]domain.Entry, len(req.Entries))
	for i, e := range req.Entries {
		entries[i] = domain.Entry{
			EntryID:       uuid.NewString(),
			TransactionID: transactionID,
			AccountID:     e.AccountID,
			Direction:     domain.EntryDirection(e.Direction),
			Amount:        e.Amount,
			Memo:          e.Memo,
		}
	}

	if err := accounting.ValidateBalanced(entries); err != nil {
		metrics.LedgerPostings.WithLabelValues("unbalanced").Inc()
		return nil, apperrors.NewAppError(400, err.Error(), apperrors.ErrUnbalancedTransaction)
	}

	if err := s.validateAccounts(ctx, entries); err != nil {
		metrics.LedgerPostings.WithLabelValues("invalid_account").Inc()
		return nil, err
	}

	period, err := s.Repos.PeriodRepo.FindPeriodByID(ctx, req.PeriodID)
	if err != nil {
		return nil, err
	}
	if !period.AcceptsPosting(closeInternal) {
		metrics.LedgerPostings.WithLabelValues("period_closed").Inc()
		return nil, apperrors.NewAppError(409, "period "+req.PeriodID+" has status "+string(period.Status), apperrors.ErrPeriodNotOpen)
	}

	payload := domain.TransactionPostedPayload{
		TransactionID: transactionID,
		Date:          req.Date,
		PeriodID:      req.PeriodID,
		Description:   req.Description,
		Entries:       entries,
	}
	if _, err := s.AppendAndPublish(ctx, domain.AggregateTransaction, transactionID, domain.EventTransactionPosted, payload, actorMeta(actorID)); err != nil {
		metrics.LedgerPostings.WithLabelValues("append_failed").Inc()
		return nil, err
	}

	metrics.LedgerPostings.WithLabelValues("posted").Inc()
	logger.Info("Transaction posted",
		slog.String("transaction_id", transactionID),
		slog.String("period_id", req.PeriodID),
		slog.Int("entry_count", len(entries)),
	)
	return s.Repos.TransactionRepo.FindTransactionByID(ctx, transactionID)
}

func (s *LedgerService) validateAccounts(ctx context.Context, entries []domain.Entry) error {
	accountIDs := make([]string, 0, len(entries))
	for _, e := range entries {
		accountIDs = append(accountIDs, e.AccountID)
	}
	accounts, err := s.Repos.AccountRepo.FindAccountsByIDs(ctx, accountIDs)
	if err != nil {
		return err
	}
	for _, e := range entries {
		account, ok := accounts[e.AccountID]
		if !ok {
			return apperrors.NewNotFoundError("account " + e.AccountID + " not found")
		}
		if !account.IsActive {
			return apperrors.NewAppError(409, "account "+e.AccountID+" is inactive", apperrors.ErrConflict)
		}
	}
	return nil
}

// VoidTransaction appends TRANSACTION_VOIDED with a mandatory reason. The
// entries stay on record; the projector reverses their balance effect.
func (s *LedgerService) VoidTransaction(ctx context.Context, transactionID string, reason string, actorID string) (*domain.Transaction, error) {
	if reason == "" {
		return nil, apperrors.NewAppError(400, "void reason is required", apperrors.ErrValidation)
	}

	txn, err := s.Repos.TransactionRepo.FindTransactionByID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.Status != domain.TxnPosted {
		return nil, apperrors.NewAppError(409, "transaction "+transactionID+" has status "+string(txn.Status), apperrors.ErrConflict)
	}

	period, err := s.Repos.PeriodRepo.FindPeriodByID(ctx, txn.PeriodID)
	if err != nil {
		return nil, err
	}
	if period.Status == domain.PeriodClosed || period.Status == domain.PeriodLocked {
		return nil, apperrors.NewAppError(409, "period "+txn.PeriodID+" no longer accepts voids", apperrors.ErrPeriodNotOpen)
	}

	payload := domain.TransactionVoidedPayload{TransactionID: transactionID, Reason: reason}
	if _, err := s.AppendAndPublish(ctx, domain.AggregateTransaction, transactionID, domain.EventTransactionVoided, payload, actorMeta(actorID)); err != nil {
		return nil, err
	}
	return s.Repos.TransactionRepo.FindTransactionByID(ctx, transactionID)
}

func (s *LedgerService) GetTransaction(ctx context.Context, transactionID string) (*domain.Transaction, error) {
	return s.Repos.TransactionRepo.FindTransactionByID(ctx, transactionID)
}

func (s *LedgerService) ListTransactionsByPeriod(ctx context.Context, periodID string, status *domain.TransactionStatus) ([]domain.Transaction, error) {
	return s.Repos.TransactionRepo.ListTransactionsByPeriod(ctx, periodID, status)
}

// GetAccountBalance folds posted, non-voided entries up to asOf per the
// account's normal-balance convention.
func (s *LedgerService) GetAccountBalance(ctx context.Context, accountID string, asOf *time.Time) (decimal.Decimal, error) {
	account, err := s.Repos.AccountRepo.FindAccountByID(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	entries, err := s.Repos.TransactionRepo.ListEntriesByAccount(ctx, accountID, asOf)
	if err != nil {
		return decimal.Zero, err
	}
	balance, err := accounting.FoldBalance(entries, account.NormalBalance)
	if err != nil {
		return decimal.Zero, apperrors.NewAppError(500, "failed to fold balance for account "+accountID, err)
	}
	return balance, nil
}

// OpenAccount appends ACCOUNT_OPENED after validating member-capital rules:
// a capital account needs an existing member and at most one capital account
// per member per ledger.
func (s *LedgerService) OpenAccount(ctx context.Context, req dto.OpenAccountRequest, actorID string) (*domain.Account, error) {
	accountType := domain.AccountType(req.AccountType)
	ledger := domain.LedgerKind(req.Ledger)

	if req.IsMemberCapital {
		if req.MemberID == nil || *req.MemberID == "" {
			return nil, apperrors.NewAppError(400, "member capital account requires memberID", apperrors.ErrValidation)
		}
		if _, err := s.Repos.MemberRepo.FindMemberByID(ctx, *req.MemberID); err != nil {
			return nil, err
		}
		existing, err := s.Repos.AccountRepo.FindMemberCapitalAccount(ctx, *req.MemberID, ledger)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		if existing != nil {
			return nil, apperrors.NewAppError(409, "member "+*req.MemberID+" already has a "+string(ledger)+" capital account", apperrors.ErrDuplicate)
		}
	}
	if req.ParentAccountID != nil && *req.ParentAccountID != "" {
		if _, err := s.Repos.AccountRepo.FindAccountByID(ctx, *req.ParentAccountID); err != nil {
			return nil, err
		}
	}

	accountID := uuid.NewString()
	payload := domain.AccountOpenedPayload{
		AccountID:       accountID,
		Number:          req.Number,
		Name:            req.Name,
		AccountType:     accountType,
		Ledger:          ledger,
		NormalBalance:   domain.NormalBalanceFor(accountType),
		IsMemberCapital: req.IsMemberCapital,
		MemberID:        req.MemberID,
		ParentAccountID: req.ParentAccountID,
		OpeningBalance:  req.OpeningBalance,
	}
	if _, err := s.AppendAndPublish(ctx, domain.AggregateAccount, accountID, domain.EventAccountOpened, payload, actorMeta(actorID)); err != nil {
		return nil, err
	}
	return s.Repos.AccountRepo.FindAccountByID(ctx, accountID)
}

func (s *LedgerService) GetAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.Repos.AccountRepo.FindAccountByID(ctx, accountID)
}

func (s *LedgerService) ListAccounts(ctx context.Context, limit, offset int) ([]domain.Account, error) {
	return s.Repos.AccountRepo.ListAccounts(ctx, limit, offset)
}

package services

import (
	"context"
	"errors"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/commonward/coop_ledger_app/internal/apperrors"
	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
	"github.com/commonward/coop_ledger_app/internal/eventbus"
	"github.com/commonward/coop_ledger_app/internal/utils/accounting"
)

// ValidatorService runs batch invariant checks across projections. Checks
// collect every violation they find instead of failing fast, so one report
// shows the whole damage.
type ValidatorService struct {
	BaseService
	formula *FormulaEngine
}

func NewValidatorService(repos portsrepo.RepositoryProvider, bus *eventbus.Bus, formula *FormulaEngine) *ValidatorService {
	return &ValidatorService{
		BaseService: BaseService{Repos: repos, Bus: bus},
		formula:     formula,
	}
}

// CheckLedgerIntegrity verifies the double-entry invariant over every posted
// transaction: per-transaction balance, positive amounts, the global
// debit/credit equality, that every entry posts to an existing active
// account, that each account's projected balance equals the fold of its
// posted entries, and that no balance runs against its normal direction.
func (s *ValidatorService) CheckLedgerIntegrity(ctx context.Context) (*domain.ValidationReport, error) {
	report := &domain.ValidationReport{Validator: "ledger_integrity"}

	entries, err := s.Repos.TransactionRepo.ListAllEntries(ctx)
	if err != nil {
		return nil, err
	}

	perTxnDebit := map[string]decimal.Decimal{}
	perTxnCredit := map[string]decimal.Decimal{}
	perAccount := map[string][]domain.Entry{}
	globalDebit := decimal.Zero
	globalCredit := decimal.Zero
	for _, e := range entries {
		if e.Amount.LessThanOrEqual(decimal.Zero) {
			report.Add("LEDGER_NONPOSITIVE_AMOUNT", domain.SeverityError, "entry", e.EntryID,
				"entry amount "+e.Amount.String()+" is not positive")
		}
		if e.Direction == domain.Debit {
			perTxnDebit[e.TransactionID] = perTxnDebit[e.TransactionID].Add(e.Amount)
			globalDebit = globalDebit.Add(e.Amount)
		} else {
			perTxnCredit[e.TransactionID] = perTxnCredit[e.TransactionID].Add(e.Amount)
			globalCredit = globalCredit.Add(e.Amount)
		}
		perAccount[e.AccountID] = append(perAccount[e.AccountID], e)
	}

	for txnID, debit := range perTxnDebit {
		if !debit.Equal(perTxnCredit[txnID]) {
			report.Add("LEDGER_UNBALANCED_TRANSACTION", domain.SeverityError, "transaction", txnID,
				"debits "+debit.String()+" do not equal credits "+perTxnCredit[txnID].String())
		}
	}
	for txnID, credit := range perTxnCredit {
		if _, seen := perTxnDebit[txnID]; !seen {
			report.Add("LEDGER_UNBALANCED_TRANSACTION", domain.SeverityError, "transaction", txnID,
				"credits "+credit.String()+" with no debits")
		}
	}
	if !globalDebit.Equal(globalCredit) {
		report.Add("LEDGER_GLOBAL_IMBALANCE", domain.SeverityError, "ledger", "",
			"total debits "+globalDebit.String()+" do not equal total credits "+globalCredit.String())
	}

	if err := s.checkAccountConsistency(ctx, perAccount, report); err != nil {
		return nil, err
	}
	return report, nil
}

// checkAccountConsistency cross-checks the entries of each referenced
// account against the account projection itself.
func (s *ValidatorService) checkAccountConsistency(ctx context.Context, perAccount map[string][]domain.Entry, report *domain.ValidationReport) error {
	if len(perAccount) == 0 {
		return nil
	}
	accountIDs := make([]string, 0, len(perAccount))
	for id := range perAccount {
		accountIDs = append(accountIDs, id)
	}
	sort.Strings(accountIDs)

	accounts, err := s.Repos.AccountRepo.FindAccountsByIDs(ctx, accountIDs)
	if err != nil {
		return err
	}

	for _, accountID := range accountIDs {
		account, found := accounts[accountID]
		if !found {
			report.Add("LEDGER_UNKNOWN_ACCOUNT", domain.SeverityError, "account", accountID,
				"posted entries reference an account that does not exist")
			continue
		}
		if !account.IsActive {
			report.Add("LEDGER_INACTIVE_ACCOUNT", domain.SeverityError, "account", accountID,
				"account "+account.Number+" is inactive but carries posted entries")
		}
		folded, err := accounting.FoldBalance(perAccount[accountID], account.NormalBalance)
		if err != nil {
			return apperrors.NewAppError(500, "failed to fold balance for account "+accountID, err)
		}
		if !folded.Equal(account.Balance) {
			report.Add("LEDGER_BALANCE_DRIFT", domain.SeverityError, "account", accountID,
				"projected balance "+account.Balance.String()+" does not equal the entry fold "+folded.String())
		}
		if account.Balance.IsNegative() {
			report.Add("LEDGER_ABNORMAL_BALANCE", domain.SeverityWarning, "account", accountID,
				"balance "+account.Balance.String()+" runs against the account's "+string(account.NormalBalance)+" normal direction")
		}
	}
	return nil
}

// CheckCapitalAccountReconciliation verifies that each capital account's book
// balance equals contributed + retained - distributed. Empty memberID checks
// every account.
func (s *ValidatorService) CheckCapitalAccountReconciliation(ctx context.Context, memberID string) (*domain.ValidationReport, error) {
	report := &domain.ValidationReport{Validator: "capital_reconciliation"}

	var accounts []domain.CapitalAccount
	if memberID != "" {
		account, err := s.Repos.CapitalAccountRepo.FindCapitalAccount(ctx, memberID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				report.Add("CAPITAL_ACCOUNT_MISSING", domain.SeverityError, "capital_account", memberID,
					"member "+memberID+" has no capital account")
				return report, nil
			}
			return nil, err
		}
		accounts = []domain.CapitalAccount{*account}
	} else {
		all, err := s.Repos.CapitalAccountRepo.ListCapitalAccounts(ctx)
		if err != nil {
			return nil, err
		}
		accounts = all
	}

	for _, account := range accounts {
		if !account.Reconciles() {
			expected := account.ContributedCapital.Add(account.RetainedPatronage).Sub(account.DistributedPatronage)
			report.Add("CAPITAL_RECONCILIATION_MISMATCH", domain.SeverityError, "capital_account", account.MemberID,
				"book balance "+account.BookBalance.String()+" does not equal component sum "+expected.String())
		}
	}
	return report, nil
}

// CheckAllocationCompliance re-verifies a period's allocations against the
// formula invariants. The surplus comes from the period's close workflow,
// where it was pinned at initiation, so the check cannot be skewed by a
// caller-supplied figure.
func (s *ValidatorService) CheckAllocationCompliance(ctx context.Context, periodID string) (*domain.ValidationReport, error) {
	wf, err := s.Repos.WorkflowRepo.FindWorkflowByPeriodID(ctx, periodID)
	if err != nil {
		return nil, err
	}
	surplus, err := pinnedSurplus(wf)
	if err != nil {
		return nil, err
	}
	allocations, err := s.Repos.AllocationRepo.ListAllocationsByPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	return s.formula.Verify(periodID, surplus, allocations), nil
}

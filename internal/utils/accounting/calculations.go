package accounting

import (
	"fmt"

	"github.com/commonward/coop_ledger_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// SignedAmount applies the account's normal-balance convention to an entry.
// An entry in the account's normal direction increases the balance; the
// opposite direction decreases it.
func SignedAmount(entry domain.Entry, normal domain.NormalBalance) (decimal.Decimal, error) {
	isDebit := entry.Direction == domain.Debit
	switch normal {
	case domain.DebitNormal:
		if isDebit {
			return entry.Amount, nil
		}
		return entry.Amount.Neg(), nil
	case domain.CreditNormal:
		if isDebit {
			return entry.Amount.Neg(), nil
		}
		return entry.Amount, nil
	default:
		return decimal.Zero, fmt.Errorf("unknown normal balance '%s' for account ID %s", normal, entry.AccountID)
	}
}

// ValidateBalanced checks the double-entry invariant over a set of entries:
// at least two entries, all amounts positive, debit sum equals credit sum.
func ValidateBalanced(entries []domain.Entry) error {
	if len(entries) < 2 {
		return fmt.Errorf("transaction must have at least two entries")
	}

	debitsSum := decimal.Zero
	creditsSum := decimal.Zero
	for _, e := range entries {
		if e.Amount.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("entry amount must be positive for account %s", e.AccountID)
		}
		if e.Direction == domain.Debit {
			debitsSum = debitsSum.Add(e.Amount)
		} else {
			creditsSum = creditsSum.Add(e.Amount)
		}
	}

	if !debitsSum.Equal(creditsSum) {
		return fmt.Errorf("%s: debits sum is %s and credits sum is %s",
			"entries do not balance", debitsSum.String(), creditsSum.String())
	}
	return nil
}

// FoldBalance folds entries into a signed balance per the normal-balance
// convention.
func FoldBalance(entries []domain.Entry, normal domain.NormalBalance) (decimal.Decimal, error) {
	balance := decimal.Zero
	for _, e := range entries {
		signed, err := SignedAmount(e, normal)
		if err != nil {
			return decimal.Zero, err
		}
		balance = balance.Add(signed)
	}
	return balance, nil
}

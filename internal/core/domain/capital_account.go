package domain

import (
	"github.com/shopspring/decimal"
)

// CapitalBucket names which component of a capital account a movement touches.
type CapitalBucket string

const (
	BucketContributed CapitalBucket = "CONTRIBUTED"
	BucketRetained    CapitalBucket = "RETAINED"
	BucketDistributed CapitalBucket = "DISTRIBUTED"
)

// CapitalAccount is the running record of a member's equity stake.
// Invariant: BookBalance == ContributedCapital + RetainedPatronage - DistributedPatronage.
type CapitalAccount struct {
	MemberID             string          `json:"memberID"`
	BookBalance          decimal.Decimal `json:"bookBalance"`
	TaxBalance           decimal.Decimal `json:"taxBalance"`
	ContributedCapital   decimal.Decimal `json:"contributedCapital"`
	RetainedPatronage    decimal.Decimal `json:"retainedPatronage"`
	DistributedPatronage decimal.Decimal `json:"distributedPatronage"`
	AuditFields
}

// Reconciles reports whether the book balance equals the component sum.
func (ca CapitalAccount) Reconciles() bool {
	expected := ca.ContributedCapital.Add(ca.RetainedPatronage).Sub(ca.DistributedPatronage)
	return ca.BookBalance.Equal(expected)
}

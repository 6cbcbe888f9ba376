package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCapitalAccountReconciles(t *testing.T) {
	account := CapitalAccount{
		BookBalance:          decimal.NewFromInt(130),
		ContributedCapital:   decimal.NewFromInt(100),
		RetainedPatronage:    decimal.NewFromInt(50),
		DistributedPatronage: decimal.NewFromInt(20),
	}
	assert.True(t, account.Reconciles())

	account.BookBalance = decimal.NewFromInt(131)
	assert.False(t, account.Reconciles())
}

func TestCapitalAccountReconciles_ZeroValue(t *testing.T) {
	assert.True(t, CapitalAccount{}.Reconciles())
}

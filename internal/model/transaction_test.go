package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{TxStatusPending, TxStatusPlaced, true},
		{TxStatusPending, TxStatusCancelled, true},
		{TxStatusPlaced, TxStatusCompleted, true},
		{TxStatusPlaced, TxStatusCancelled, true},

		{TxStatusPending, TxStatusCompleted, false}, // no skipping PLACED
		{TxStatusPlaced, TxStatusPending, false},    // no going back
		{TxStatusCompleted, TxStatusCancelled, false},
		{TxStatusCompleted, TxStatusPending, false},
		{TxStatusCancelled, TxStatusPending, false},
		{TxStatusCancelled, TxStatusPlaced, false},
		{TxStatusPending, TxStatusPending, false}, // no self-loops
		{"UNKNOWN", TxStatusPlaced, false},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestValidTxStatus(t *testing.T) {
	for _, s := range []string{TxStatusPending, TxStatusPlaced, TxStatusCancelled, TxStatusCompleted} {
		assert.True(t, ValidTxStatus(s))
	}
	assert.False(t, ValidTxStatus("pending"))
	assert.False(t, ValidTxStatus(""))
	assert.False(t, ValidTxStatus("SHIPPED"))
}

func TestTransactionTotal(t *testing.T) {
	tx := Transaction{
		Items: []TransactionItem{
			{Quantity: 2, UnitPrice: decimal.RequireFromString("9.99")},
			{Quantity: 1, UnitPrice: decimal.RequireFromString("100.00")},
			{Quantity: 3, UnitPrice: decimal.RequireFromString("0.33")},
		},
	}
	assert.Equal(t, "120.97", tx.Total().StringFixed(2))

	empty := Transaction{}
	assert.True(t, empty.Total().IsZero())
}

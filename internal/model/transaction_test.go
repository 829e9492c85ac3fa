package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransactionTransitions(t *testing.T) {
	assert.True(t, CanTransactionTransitionTo(TransactionStatusPending, TransactionStatusSent))
	assert.True(t, CanTransactionTransitionTo(TransactionStatusPending, TransactionStatusFailed))

	// 终态之后没有任何合法迁移
	assert.False(t, CanTransactionTransitionTo(TransactionStatusSent, TransactionStatusFailed))
	assert.False(t, CanTransactionTransitionTo(TransactionStatusSent, TransactionStatusPending))
	assert.False(t, CanTransactionTransitionTo(TransactionStatusFailed, TransactionStatusSent))
}

func TestApplicationTransitions(t *testing.T) {
	assert.True(t, CanApplicationTransitionTo(ApplicationStatusPending, ApplicationStatusApproved))
	assert.True(t, CanApplicationTransitionTo(ApplicationStatusPending, ApplicationStatusDeclined))

	assert.False(t, CanApplicationTransitionTo(ApplicationStatusApproved, ApplicationStatusDeclined))
	assert.False(t, CanApplicationTransitionTo(ApplicationStatusDeclined, ApplicationStatusApproved))
	assert.False(t, CanApplicationTransitionTo(ApplicationStatusDeclined, ApplicationStatusPending))
}

func TestAnnotateFor(t *testing.T) {
	trans := Transaction{FromMerchantID: "m-a", ToMerchantID: "m-b", Amount: 100}

	assert.Equal(t, DirectionSent, trans.AnnotateFor("m-a").Direction)
	assert.Equal(t, DirectionReceived, trans.AnnotateFor("m-b").Direction)
}

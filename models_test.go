package main

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestTransactionStatus_IsTerminal(t *testing.T) {
	terminal := []TransactionStatus{StatusCompleted, StatusFailed, StatusCancelled, StatusReturned, StatusChargeback, StatusExpired}
	for _, s := range terminal {
		require.True(t, s.IsTerminal(), "%s should be terminal", s)
	}

	nonTerminal := []TransactionStatus{StatusPending, StatusProcessing, StatusRequiresAction, StatusAuthorized, StatusSubmitted, StatusSettled}
	for _, s := range nonTerminal {
		require.False(t, s.IsTerminal(), "%s should not be terminal", s)
	}
}

func TestTransactionStatus_RequiresReversal(t *testing.T) {
	reversal := []TransactionStatus{StatusFailed, StatusCancelled, StatusReturned, StatusChargeback, StatusExpired}
	for _, s := range reversal {
		require.True(t, s.RequiresReversal(), "%s should require reversal", s)
	}

	require.False(t, StatusCompleted.RequiresReversal())
	require.False(t, StatusPending.RequiresReversal())
}

func TestTransaction_HasWalletLeg(t *testing.T) {
	walletID := uuid.New()

	require.False(t, (&Transaction{}).HasWalletLeg())
	require.True(t, (&Transaction{DebitWalletID: &walletID}).HasWalletLeg())
	require.True(t, (&Transaction{CreditWalletID: &walletID}).HasWalletLeg())
}

func TestWallet_IsDebitEligible(t *testing.T) {
	require.True(t, (&Wallet{Status: WalletActive}).IsDebitEligible())
	require.False(t, (&Wallet{Status: WalletSuspended}).IsDebitEligible())
	require.False(t, (&Wallet{Status: WalletClosed}).IsDebitEligible())
	require.False(t, (&Wallet{Status: WalletInactive}).IsDebitEligible())
}

func TestWalletType_ExpectedCurrencyCode(t *testing.T) {
	require.Equal(t, "USD", WalletFiatUSD.ExpectedCurrencyCode())
	require.Equal(t, "EUR", WalletFiatEUR.ExpectedCurrencyCode())
	require.Equal(t, "BTC", WalletCryptoBTC.ExpectedCurrencyCode())
	require.Equal(t, "XMR", WalletCryptoXMR.ExpectedCurrencyCode())
	require.Equal(t, "", WalletType("unknown").ExpectedCurrencyCode())
}

func TestAllTransactionTypes_HasNoDuplicates(t *testing.T) {
	seen := make(map[TransactionType]bool)
	for _, tt := range allTransactionTypes {
		require.False(t, seen[tt], "%s listed twice in allTransactionTypes", tt)
		seen[tt] = true
	}
}

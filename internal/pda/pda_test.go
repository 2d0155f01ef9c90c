package pda

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivationsAreDeterministicAndDistinct(t *testing.T) {
	programID := solana.NewWallet().PublicKey()

	treasury1, bump1, err := DeriveTreasuryPDA(programID)
	require.NoError(t, err)
	treasury2, bump2, err := DeriveTreasuryPDA(programID)
	require.NoError(t, err)
	assert.Equal(t, treasury1, treasury2)
	assert.Equal(t, bump1, bump2)

	offerVault, _, err := DeriveOfferVaultPDA(programID)
	require.NoError(t, err)
	redemptionVault, _, err := DeriveRedemptionVaultPDA(programID)
	require.NoError(t, err)
	state, _, err := DeriveStatePDA(programID)
	require.NoError(t, err)

	seen := map[solana.PublicKey]bool{treasury1: true}
	for _, key := range []solana.PublicKey{offerVault, redemptionVault, state} {
		assert.False(t, seen[key], "PDA collision for %s", key)
		seen[key] = true
	}
}

func TestOfferPDADependsOnMintOrder(t *testing.T) {
	programID := solana.NewWallet().PublicKey()
	mintA := solana.NewWallet().PublicKey()
	mintB := solana.NewWallet().PublicKey()

	forward := MustDeriveOfferPDA(programID, mintA, mintB)
	reverse := MustDeriveOfferPDA(programID, mintB, mintA)
	assert.NotEqual(t, forward, reverse)
}

func TestRedemptionRequestPDAVariesByID(t *testing.T) {
	programID := solana.NewWallet().PublicKey()
	mintA := solana.NewWallet().PublicKey()
	mintB := solana.NewWallet().PublicKey()

	first, _, err := DeriveRedemptionRequestPDA(programID, mintA, mintB, 1)
	require.NoError(t, err)
	second, _, err := DeriveRedemptionRequestPDA(programID, mintA, mintB, 2)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

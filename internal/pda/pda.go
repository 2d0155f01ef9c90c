// Package pda derives the program-derived addresses the exchange program owns
// on chain. Deployments normally configure these accounts explicitly; the
// derivations here are the canonical fallback and let off-chain tooling
// address protocol accounts without a lookup.
package pda

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

func DeriveStatePDA(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("state")}, programID)
}

func DeriveTreasuryPDA(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("treasury")}, programID)
}

func DeriveOfferVaultPDA(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("offer-vault")}, programID)
}

func DeriveRedemptionVaultPDA(programID solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte("redemption-vault")}, programID)
}

func DeriveOfferPDA(programID, tokenInMint, tokenOutMint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte("offer"), tokenInMint.Bytes(), tokenOutMint.Bytes()},
		programID,
	)
}

func DeriveRedemptionRequestPDA(programID, tokenInMint, tokenOutMint solana.PublicKey, requestID uint64) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress(
		[][]byte{[]byte("redemption-request"), tokenInMint.Bytes(), tokenOutMint.Bytes(), u64LE(requestID)},
		programID,
	)
}

func MustDeriveOfferPDA(programID, tokenInMint, tokenOutMint solana.PublicKey) solana.PublicKey {
	pk, _, err := DeriveOfferPDA(programID, tokenInMint, tokenOutMint)
	if err != nil {
		panic(fmt.Errorf("derive offer PDA: %w", err))
	}
	return pk
}

func u64LE(value uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, value)
	return buf
}

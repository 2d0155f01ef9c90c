package exchange

import (
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// VaultKind names the two pooled balances the protocol controls.
type VaultKind string

const (
	VaultOffer      VaultKind = "offer"
	VaultRedemption VaultKind = "redemption"
)

func (k VaultKind) valid() bool {
	return k == VaultOffer || k == VaultRedemption
}

// Vaults tracks the per-mint balances of both vault kinds. It mirrors what
// the asset ledger holds on the vault accounts; the engine keeps the two in
// lockstep by moving ledger funds and book balances inside one critical
// section.
type Vaults struct {
	mu       sync.Mutex
	balances map[VaultKind]map[solana.PublicKey]uint64
}

func NewVaults() *Vaults {
	return &Vaults{
		balances: map[VaultKind]map[solana.PublicKey]uint64{
			VaultOffer:      {},
			VaultRedemption: {},
		},
	}
}

// Balance returns the booked balance for (kind, mint).
func (v *Vaults) Balance(kind VaultKind, mint solana.PublicKey) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balances[kind][mint]
}

func (v *Vaults) credit(kind VaultKind, mint solana.PublicKey, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	current := v.balances[kind][mint]
	if current+amount < current {
		return fmt.Errorf("%w: vault %s balance", ErrOverflow, kind)
	}
	v.balances[kind][mint] = current + amount
	return nil
}

func (v *Vaults) debit(kind VaultKind, mint solana.PublicKey, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	current := v.balances[kind][mint]
	if current < amount {
		return fmt.Errorf("%w: vault %s has %d, needs %d", ErrInsufficientFunds, kind, current, amount)
	}
	v.balances[kind][mint] = current - amount
	return nil
}

// canDebit pre-validates a debit without mutating, used to keep multi-move
// operations all-or-nothing.
func (v *Vaults) canDebit(kind VaultKind, mint solana.PublicKey, amount uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	current := v.balances[kind][mint]
	if current < amount {
		return fmt.Errorf("%w: vault %s has %d, needs %d", ErrInsufficientFunds, kind, current, amount)
	}
	return nil
}

// Package assetledger abstracts the token ledger the exchange moves balances
// on. The engine only needs transfer/mint/burn plus supply metadata; whether
// that is an SPL token program or the in-process ledger is the caller's
// choice.
package assetledger

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

var (
	ErrUnknownMint       = errors.New("unknown mint")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNoMintAuthority   = errors.New("mint authority not held")
	ErrSupplyOverflow    = errors.New("total supply overflow")
)

// Ledger is the asset-movement capability consumed by the engine.
type Ledger interface {
	Transfer(from, to solana.PublicKey, mint solana.PublicKey, amount uint64) error
	MintTo(mint solana.PublicKey, to solana.PublicKey, amount uint64) error
	Burn(mint solana.PublicKey, from solana.PublicKey, amount uint64) error
	BalanceOf(account solana.PublicKey, mint solana.PublicKey) (uint64, error)
	TotalSupply(mint solana.PublicKey) (uint64, error)
	DecimalsOf(mint solana.PublicKey) (uint8, error)
	// HasMintAuthority reports whether the ledger can mint the given token on
	// the protocol's behalf; when false the engine falls back to vault
	// transfers.
	HasMintAuthority(mint solana.PublicKey) bool
}

type mintState struct {
	decimals      uint8
	totalSupply   uint64
	mintAuthority bool
}

// Memory is an in-process Ledger used by tests, local runs, and the embedded
// API-server mode.
type Memory struct {
	mu       sync.Mutex
	mints    map[solana.PublicKey]*mintState
	balances map[solana.PublicKey]map[solana.PublicKey]uint64
}

// NewMemory returns an empty ledger; register mints before moving balances.
func NewMemory() *Memory {
	return &Memory{
		mints:    make(map[solana.PublicKey]*mintState),
		balances: make(map[solana.PublicKey]map[solana.PublicKey]uint64),
	}
}

// RegisterMint declares a mint with its decimal precision. withAuthority
// marks the protocol as the delegated mint authority.
func (m *Memory) RegisterMint(mint solana.PublicKey, decimals uint8, withAuthority bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mints[mint] = &mintState{decimals: decimals, mintAuthority: withAuthority}
}

// Fund credits an account out of thin air, growing total supply. Test and
// bootstrap helper.
func (m *Memory) Fund(account solana.PublicKey, mint solana.PublicKey, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.mints[mint]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMint, mint)
	}
	if state.totalSupply+amount < state.totalSupply {
		return ErrSupplyOverflow
	}
	state.totalSupply += amount
	m.credit(account, mint, amount)
	return nil
}

func (m *Memory) Transfer(from, to solana.PublicKey, mint solana.PublicKey, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.mints[mint]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMint, mint)
	}
	if err := m.debit(from, mint, amount); err != nil {
		return err
	}
	m.credit(to, mint, amount)
	return nil
}

func (m *Memory) MintTo(mint solana.PublicKey, to solana.PublicKey, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.mints[mint]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMint, mint)
	}
	if !state.mintAuthority {
		return fmt.Errorf("%w: %s", ErrNoMintAuthority, mint)
	}
	if state.totalSupply+amount < state.totalSupply {
		return ErrSupplyOverflow
	}
	state.totalSupply += amount
	m.credit(to, mint, amount)
	return nil
}

func (m *Memory) Burn(mint solana.PublicKey, from solana.PublicKey, amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.mints[mint]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMint, mint)
	}
	if err := m.debit(from, mint, amount); err != nil {
		return err
	}
	state.totalSupply -= amount
	return nil
}

func (m *Memory) BalanceOf(account solana.PublicKey, mint solana.PublicKey) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.mints[mint]; !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownMint, mint)
	}
	return m.balances[account][mint], nil
}

func (m *Memory) TotalSupply(mint solana.PublicKey) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.mints[mint]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownMint, mint)
	}
	return state.totalSupply, nil
}

func (m *Memory) DecimalsOf(mint solana.PublicKey) (uint8, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.mints[mint]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownMint, mint)
	}
	return state.decimals, nil
}

func (m *Memory) HasMintAuthority(mint solana.PublicKey) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.mints[mint]
	return ok && state.mintAuthority
}

func (m *Memory) credit(account solana.PublicKey, mint solana.PublicKey, amount uint64) {
	accountBalances, ok := m.balances[account]
	if !ok {
		accountBalances = make(map[solana.PublicKey]uint64)
		m.balances[account] = accountBalances
	}
	accountBalances[mint] += amount
}

func (m *Memory) debit(account solana.PublicKey, mint solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	balance := m.balances[account][mint]
	if balance < amount {
		return fmt.Errorf("%w: account %s has %d, needs %d", ErrInsufficientFunds, account, balance, amount)
	}
	m.balances[account][mint] = balance - amount
	return nil
}

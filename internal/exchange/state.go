package exchange

import (
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// ProtocolState is the shared mutable protocol configuration: the program
// identity, role assignments, the treasury and vault accounts, and the global
// kill switch. It is created once at startup and mutated only through its
// setters.
type ProtocolState struct {
	mu sync.RWMutex

	programID       solana.PublicKey
	boss            solana.PublicKey
	admins          map[solana.PublicKey]struct{}
	approvers       [2]solana.PublicKey
	redemptionAdmin solana.PublicKey
	treasury        solana.PublicKey

	offerVault      solana.PublicKey
	redemptionVault solana.PublicKey

	killSwitch bool
}

// StateParams configures a ProtocolState.
type StateParams struct {
	ProgramID       solana.PublicKey
	Boss            solana.PublicKey
	Admins          []solana.PublicKey
	Approvers       [2]solana.PublicKey
	RedemptionAdmin solana.PublicKey
	Treasury        solana.PublicKey
	OfferVault      solana.PublicKey
	RedemptionVault solana.PublicKey
}

func NewProtocolState(params StateParams) (*ProtocolState, error) {
	for name, key := range map[string]solana.PublicKey{
		"program id":       params.ProgramID,
		"boss":             params.Boss,
		"redemption admin": params.RedemptionAdmin,
		"treasury":         params.Treasury,
		"offer vault":      params.OfferVault,
		"redemption vault": params.RedemptionVault,
	} {
		if key.IsZero() {
			return nil, fmt.Errorf("%w: %s is required", ErrMalformedInput, name)
		}
	}

	admins := make(map[solana.PublicKey]struct{}, len(params.Admins))
	for _, admin := range params.Admins {
		admins[admin] = struct{}{}
	}

	return &ProtocolState{
		programID:       params.ProgramID,
		boss:            params.Boss,
		admins:          admins,
		approvers:       params.Approvers,
		redemptionAdmin: params.RedemptionAdmin,
		treasury:        params.Treasury,
		offerVault:      params.OfferVault,
		redemptionVault: params.RedemptionVault,
	}, nil
}

func (p *ProtocolState) ProgramID() solana.PublicKey { return p.programID }
func (p *ProtocolState) Treasury() solana.PublicKey  { return p.treasury }

func (p *ProtocolState) Approvers() [2]solana.PublicKey { return p.approvers }

// VaultAccount returns the ledger account identity backing a vault kind.
func (p *ProtocolState) VaultAccount(kind VaultKind) solana.PublicKey {
	if kind == VaultRedemption {
		return p.redemptionVault
	}
	return p.offerVault
}

func (p *ProtocolState) IsBoss(identity solana.PublicKey) bool {
	return identity.Equals(p.boss)
}

func (p *ProtocolState) IsAdmin(identity solana.PublicKey) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.admins[identity]
	return ok
}

func (p *ProtocolState) IsApprover(identity solana.PublicKey) bool {
	return identity.Equals(p.approvers[0]) || identity.Equals(p.approvers[1])
}

func (p *ProtocolState) IsRedemptionAdmin(identity solana.PublicKey) bool {
	return identity.Equals(p.redemptionAdmin)
}

// VaultOperator reports whether identity may deposit/withdraw on the vault
// kind: the boss operates the offer vault, the redemption admin the
// redemption vault.
func (p *ProtocolState) VaultOperator(kind VaultKind, identity solana.PublicKey) bool {
	if kind == VaultRedemption {
		return p.IsRedemptionAdmin(identity) || p.IsBoss(identity)
	}
	return p.IsBoss(identity)
}

// SetAdmin grants or revokes the admin role; boss only.
func (p *ProtocolState) SetAdmin(authority, identity solana.PublicKey, grant bool) error {
	if !p.IsBoss(authority) {
		return fmt.Errorf("%w: only boss manages admins", ErrUnauthorized)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if grant {
		p.admins[identity] = struct{}{}
	} else {
		delete(p.admins, identity)
	}
	return nil
}

// Paused reads the kill switch. Engine operations call this inside their
// critical section.
func (p *ProtocolState) Paused() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.killSwitch
}

// SetKillSwitch toggles the global emergency stop; boss only.
func (p *ProtocolState) SetKillSwitch(authority solana.PublicKey, enabled bool) error {
	if !p.IsBoss(authority) {
		return fmt.Errorf("%w: only boss toggles the kill switch", ErrUnauthorized)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.killSwitch = enabled
	return nil
}

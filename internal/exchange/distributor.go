package exchange

import (
	"github.com/gagliardetto/solana-go"

	"github.com/meridian-fi/exchange/backend/internal/assetledger"
)

// Distributor delivers output tokens to a taker. The engine picks the
// implementation per call: minting when the protocol holds delegated mint
// authority, draining the offer vault otherwise.
type Distributor interface {
	// Reserve pre-validates the distribution so the take stays
	// all-or-nothing; Distribute performs it.
	Reserve(mint solana.PublicKey, amount uint64) error
	Distribute(mint solana.PublicKey, to solana.PublicKey, amount uint64) error
	// Minted reports whether output is created rather than moved.
	Minted() bool
}

type mintDistributor struct {
	ledger assetledger.Ledger
}

func (d mintDistributor) Reserve(solana.PublicKey, uint64) error { return nil }

func (d mintDistributor) Distribute(mint solana.PublicKey, to solana.PublicKey, amount uint64) error {
	return d.ledger.MintTo(mint, to, amount)
}

func (d mintDistributor) Minted() bool { return true }

type vaultDistributor struct {
	ledger assetledger.Ledger
	vaults *Vaults
	vault  solana.PublicKey
}

func (d vaultDistributor) Reserve(mint solana.PublicKey, amount uint64) error {
	return d.vaults.canDebit(VaultOffer, mint, amount)
}

func (d vaultDistributor) Distribute(mint solana.PublicKey, to solana.PublicKey, amount uint64) error {
	if err := d.vaults.debit(VaultOffer, mint, amount); err != nil {
		return err
	}
	return d.ledger.Transfer(d.vault, to, mint, amount)
}

func (d vaultDistributor) Minted() bool { return false }

// distributorFor selects the strategy from the runtime-queried mint
// authority.
func (e *Engine) distributorFor(mint solana.PublicKey) Distributor {
	if e.ledger.HasMintAuthority(mint) {
		return mintDistributor{ledger: e.ledger}
	}
	return vaultDistributor{
		ledger: e.ledger,
		vaults: e.vaults,
		vault:  e.state.VaultAccount(VaultOffer),
	}
}

package exchange

import (
	"github.com/gagliardetto/solana-go"

	"github.com/meridian-fi/exchange/backend/internal/pricing"
)

// Pair identifies an offer by its token mints.
type Pair struct {
	TokenInMint  solana.PublicKey `json:"token_in_mint"`
	TokenOutMint solana.PublicKey `json:"token_out_mint"`
}

// Reverse flips the pair; a redemption offer lives on the reverse of its
// underlying offer.
func (p Pair) Reverse() Pair {
	return Pair{TokenInMint: p.TokenOutMint, TokenOutMint: p.TokenInMint}
}

func (p Pair) String() string {
	return p.TokenInMint.String() + "/" + p.TokenOutMint.String()
}

// Offer is one configured token-exchange pair and its pricing history.
type Offer struct {
	Pair                Pair
	FeeBps              uint16
	NeedsApproval       bool
	AllowPermissionless bool

	vectors pricing.Set
}

// Vectors returns the live pricing vectors ordered by activation time.
func (o *Offer) Vectors() []pricing.Vector {
	return o.vectors.Vectors()
}

// OfferParams configures MakeOffer.
type OfferParams struct {
	Pair                Pair
	FeeBps              uint16
	NeedsApproval       bool
	AllowPermissionless bool
}

// TakeResult is the breakdown of an executed take.
type TakeResult struct {
	GrossIn   uint64 `json:"gross_in"`
	NetIn     uint64 `json:"net_in"`
	Fee       uint64 `json:"fee"`
	AmountOut uint64 `json:"amount_out"`
	Price     uint64 `json:"price"`
	Minted    bool   `json:"minted"`
}

package exchange

import (
	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
)

// RequestStatus is the redemption request state machine. Pending transitions
// once, to Executed or Cancelled; both are terminal and the record is kept.
type RequestStatus string

const (
	StatusPending   RequestStatus = "Pending"
	StatusExecuted  RequestStatus = "Executed"
	StatusCancelled RequestStatus = "Cancelled"
)

// RedemptionOffer aggregates the redemption side of an offer, keyed by the
// reversed pair. The request counter is monotonic for the lifetime of the
// protocol, surviving offer close and re-create.
type RedemptionOffer struct {
	Pair Pair

	// RequestCounter is the id of the most recently created request.
	RequestCounter uint64
	// RequestedRedemptions equals the sum of Pending request amounts.
	RequestedRedemptions uint64
	// ExecutedRedemptions accumulates every payout ever made; wide so it
	// cannot overflow across the token's lifetime supply.
	ExecutedRedemptions uint256.Int

	requests map[uint64]*RedemptionRequest
}

func newRedemptionOffer(pair Pair) *RedemptionOffer {
	return &RedemptionOffer{
		Pair:     pair,
		requests: make(map[uint64]*RedemptionRequest),
	}
}

// RedemptionRequest is one holder's pending conversion back to the base
// asset. Amount is denominated in the yield token (the redemption pair's
// token-in mint).
type RedemptionRequest struct {
	ID        uint64           `json:"id"`
	Pair      Pair             `json:"pair"`
	Redeemer  solana.PublicKey `json:"redeemer"`
	Amount    uint64           `json:"amount"`
	ExpiresAt int64            `json:"expires_at"`
	Status    RequestStatus    `json:"status"`
	CreatedAt int64            `json:"created_at"`
}

// Package events carries the structured notifications the exchange emits for
// every state-changing operation. Consumers are off-process observers; the
// engine publishes fire-and-forget and never blocks on a slow subscriber.
package events

import (
	"sync"

	"github.com/gagliardetto/solana-go"
)

type Kind string

const (
	KindOfferMade           Kind = "offer_made"
	KindOfferTaken          Kind = "offer_taken"
	KindOfferClosed         Kind = "offer_closed"
	KindFeeUpdated          Kind = "fee_updated"
	KindVectorAdded         Kind = "vector_added"
	KindVectorDeleted       Kind = "vector_deleted"
	KindVectorEvicted       Kind = "vector_evicted"
	KindVaultDeposit        Kind = "vault_deposit"
	KindVaultWithdraw       Kind = "vault_withdraw"
	KindRedemptionRequested Kind = "redemption_requested"
	KindRedemptionFulfilled Kind = "redemption_fulfilled"
	KindRedemptionCancelled Kind = "redemption_cancelled"
	KindKillSwitchToggled   Kind = "kill_switch_toggled"
)

// Event is one notification. Exactly one payload field is set, matching Kind.
type Event struct {
	Kind     Kind  `json:"kind"`
	UnixTime int64 `json:"unix_time"`

	OfferMade           *OfferMade           `json:"offer_made,omitempty"`
	OfferTaken          *OfferTaken          `json:"offer_taken,omitempty"`
	OfferClosed         *OfferClosed         `json:"offer_closed,omitempty"`
	FeeUpdated          *FeeUpdated          `json:"fee_updated,omitempty"`
	VectorAdded         *VectorChange        `json:"vector_added,omitempty"`
	VectorDeleted       *VectorChange        `json:"vector_deleted,omitempty"`
	VectorEvicted       *VectorChange        `json:"vector_evicted,omitempty"`
	VaultDeposit        *VaultMovement       `json:"vault_deposit,omitempty"`
	VaultWithdraw       *VaultMovement       `json:"vault_withdraw,omitempty"`
	RedemptionRequested *RedemptionRequested `json:"redemption_requested,omitempty"`
	RedemptionFulfilled *RedemptionFulfilled `json:"redemption_fulfilled,omitempty"`
	RedemptionCancelled *RedemptionCancelled `json:"redemption_cancelled,omitempty"`
	KillSwitchToggled   *KillSwitchToggled   `json:"kill_switch_toggled,omitempty"`
}

type OfferMade struct {
	TokenInMint         solana.PublicKey `json:"token_in_mint"`
	TokenOutMint        solana.PublicKey `json:"token_out_mint"`
	FeeBps              uint16           `json:"fee_bps"`
	NeedsApproval       bool             `json:"needs_approval"`
	AllowPermissionless bool             `json:"allow_permissionless"`
	Authority           solana.PublicKey `json:"authority"`
}

type OfferTaken struct {
	TokenInMint  solana.PublicKey `json:"token_in_mint"`
	TokenOutMint solana.PublicKey `json:"token_out_mint"`
	Taker        solana.PublicKey `json:"taker"`
	GrossIn      uint64           `json:"gross_in"`
	NetIn        uint64           `json:"net_in"`
	Fee          uint64           `json:"fee"`
	AmountOut    uint64           `json:"amount_out"`
	Price        uint64           `json:"price"`
	Minted       bool             `json:"minted"`
}

type OfferClosed struct {
	TokenInMint  solana.PublicKey `json:"token_in_mint"`
	TokenOutMint solana.PublicKey `json:"token_out_mint"`
	Authority    solana.PublicKey `json:"authority"`
}

type FeeUpdated struct {
	TokenInMint  solana.PublicKey `json:"token_in_mint"`
	TokenOutMint solana.PublicKey `json:"token_out_mint"`
	OldFeeBps    uint16           `json:"old_fee_bps"`
	NewFeeBps    uint16           `json:"new_fee_bps"`
	Authority    solana.PublicKey `json:"authority"`
}

type VectorChange struct {
	TokenInMint  solana.PublicKey `json:"token_in_mint"`
	TokenOutMint solana.PublicKey `json:"token_out_mint"`
	StartTime    int64            `json:"start_time"`
	BaseTime     int64            `json:"base_time"`
	BasePrice    uint64           `json:"base_price"`
	APR          uint64           `json:"apr"`
	StepSeconds  uint64           `json:"step_seconds"`
}

type VaultMovement struct {
	Vault    string           `json:"vault"`
	Mint     solana.PublicKey `json:"mint"`
	Amount   uint64           `json:"amount"`
	Balance  uint64           `json:"balance"`
	Operator solana.PublicKey `json:"operator"`
}

type RedemptionRequested struct {
	TokenInMint  solana.PublicKey `json:"token_in_mint"`
	TokenOutMint solana.PublicKey `json:"token_out_mint"`
	RequestID    uint64           `json:"request_id"`
	Redeemer     solana.PublicKey `json:"redeemer"`
	Amount       uint64           `json:"amount"`
	ExpiresAt    int64            `json:"expires_at"`
	Nonce        uint64           `json:"nonce"`
}

type RedemptionFulfilled struct {
	TokenInMint  solana.PublicKey `json:"token_in_mint"`
	TokenOutMint solana.PublicKey `json:"token_out_mint"`
	RequestID    uint64           `json:"request_id"`
	Redeemer     solana.PublicKey `json:"redeemer"`
	Amount       uint64           `json:"amount"`
	Payout       uint64           `json:"payout"`
	Price        uint64           `json:"price"`
	Caller       solana.PublicKey `json:"caller"`
}

type RedemptionCancelled struct {
	TokenInMint  solana.PublicKey `json:"token_in_mint"`
	TokenOutMint solana.PublicKey `json:"token_out_mint"`
	RequestID    uint64           `json:"request_id"`
	Redeemer     solana.PublicKey `json:"redeemer"`
	Amount       uint64           `json:"amount"`
	Caller       solana.PublicKey `json:"caller"`
}

type KillSwitchToggled struct {
	Enabled   bool             `json:"enabled"`
	Authority solana.PublicKey `json:"authority"`
}

// Sink consumes events.
type Sink interface {
	Publish(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }

// Discard drops everything.
var Discard Sink = SinkFunc(func(Event) {})

// Broadcaster fans events out to buffered subscriber channels. Publishing
// never blocks; a full subscriber buffer drops the event for that subscriber
// only.
type Broadcaster struct {
	mu    sync.Mutex
	sinks []Sink
	subs  map[int]chan Event
	next  int
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan Event)}
}

// Attach adds a synchronous sink, called inline on Publish.
func (b *Broadcaster) Attach(sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sinks = append(b.sinks, sink)
}

// Subscribe returns a buffered event channel and a cancel function.
func (b *Broadcaster) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

func (b *Broadcaster) Publish(e Event) {
	b.mu.Lock()
	sinks := make([]Sink, len(b.sinks))
	copy(sinks, b.sinks)
	channels := make([]chan Event, 0, len(b.subs))
	for _, ch := range b.subs {
		channels = append(channels, ch)
	}
	b.mu.Unlock()

	for _, sink := range sinks {
		sink.Publish(e)
	}
	for _, ch := range channels {
		select {
		case ch <- e:
		default:
		}
	}
}

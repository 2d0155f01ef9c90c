// Package exchange implements the token-exchange core: offers with
// time-anchored pricing, vault accounting, and the redemption-request
// lifecycle. Every public operation is atomic: it reads the clock once,
// serializes against other operations on the same pair, and either completes
// fully or leaves no trace.
package exchange

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/meridian-fi/exchange/backend/internal/approval"
	"github.com/meridian-fi/exchange/backend/internal/assetledger"
	"github.com/meridian-fi/exchange/backend/internal/events"
	"github.com/meridian-fi/exchange/backend/internal/fixedmath"
	"github.com/meridian-fi/exchange/backend/internal/pricing"
)

// Engine owns the protocol state and exposes the exchange operations.
type Engine struct {
	state    *ProtocolState
	ledger   assetledger.Ledger
	clock    Clock
	sink     events.Sink
	verifier *approval.Verifier
	vaults   *Vaults

	mu          sync.Mutex
	offers      map[Pair]*Offer
	redemptions map[Pair]*RedemptionOffer
	nonces      map[solana.PublicKey]uint64
	pairLocks   map[Pair]*sync.Mutex
}

// New wires an engine. A nil sink discards events; a nil clock uses the
// system clock.
func New(state *ProtocolState, ledger assetledger.Ledger, clock Clock, sink events.Sink) *Engine {
	if clock == nil {
		clock = SystemClock
	}
	if sink == nil {
		sink = events.Discard
	}
	approvers := state.Approvers()
	return &Engine{
		state:       state,
		ledger:      ledger,
		clock:       clock,
		sink:        sink,
		verifier:    approval.NewVerifier(approvers[0], approvers[1]),
		vaults:      NewVaults(),
		offers:      make(map[Pair]*Offer),
		redemptions: make(map[Pair]*RedemptionOffer),
		nonces:      make(map[solana.PublicKey]uint64),
		pairLocks:   make(map[Pair]*sync.Mutex),
	}
}

// State exposes the protocol state for role management and the kill switch.
func (e *Engine) State() *ProtocolState { return e.state }

// Vaults exposes the vault book for read-side queries.
func (e *Engine) Vaults() *Vaults { return e.vaults }

// pairLock serializes operations per pair; an offer and its redemption offer
// share one lock so takes and fulfillments cannot interleave.
func (e *Engine) pairLock(pair Pair) *sync.Mutex {
	canonical := pair
	if pair.Reverse().String() < canonical.String() {
		canonical = pair.Reverse()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.pairLocks[canonical]
	if !ok {
		lock = &sync.Mutex{}
		e.pairLocks[canonical] = lock
	}
	return lock
}

func (e *Engine) offer(pair Pair) (*Offer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	offer, ok := e.offers[pair]
	if !ok {
		return nil, fmt.Errorf("%w: offer %s", ErrNotFound, pair)
	}
	return offer, nil
}

func (e *Engine) redemptionOffer(pair Pair) (*RedemptionOffer, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	offer, ok := e.redemptions[pair]
	if !ok {
		return nil, fmt.Errorf("%w: redemption offer %s", ErrNotFound, pair)
	}
	return offer, nil
}

func (e *Engine) emit(kind events.Kind, now int64, fill func(*events.Event)) {
	event := events.Event{Kind: kind, UnixTime: now}
	fill(&event)
	e.sink.Publish(event)
}

// MakeOffer registers a pair; boss only. The reversed redemption offer is
// created alongside (or re-attached, so its request counter survives an
// offer close/re-create cycle).
func (e *Engine) MakeOffer(authority solana.PublicKey, params OfferParams) error {
	if !e.state.IsBoss(authority) {
		return fmt.Errorf("%w: only boss makes offers", ErrUnauthorized)
	}
	if params.Pair.TokenInMint.IsZero() || params.Pair.TokenOutMint.IsZero() {
		return fmt.Errorf("%w: both mints are required", ErrMalformedInput)
	}
	if uint64(params.FeeBps) > fixedmath.BpsDenom {
		return fmt.Errorf("%w: fee %d bps", ErrMalformedInput, params.FeeBps)
	}
	for _, mint := range []solana.PublicKey{params.Pair.TokenInMint, params.Pair.TokenOutMint} {
		if _, err := e.ledger.DecimalsOf(mint); err != nil {
			return fmt.Errorf("%w: mint %s", ErrNotFound, mint)
		}
	}

	lock := e.pairLock(params.Pair)
	lock.Lock()
	defer lock.Unlock()
	now := e.clock.Now()

	e.mu.Lock()
	if _, exists := e.offers[params.Pair]; exists {
		e.mu.Unlock()
		return fmt.Errorf("%w: offer %s already exists", ErrInvalidState, params.Pair)
	}
	e.offers[params.Pair] = &Offer{
		Pair:                params.Pair,
		FeeBps:              params.FeeBps,
		NeedsApproval:       params.NeedsApproval,
		AllowPermissionless: params.AllowPermissionless,
	}
	reversed := params.Pair.Reverse()
	if _, exists := e.redemptions[reversed]; !exists {
		e.redemptions[reversed] = newRedemptionOffer(reversed)
	}
	e.mu.Unlock()

	e.emit(events.KindOfferMade, now, func(ev *events.Event) {
		ev.OfferMade = &events.OfferMade{
			TokenInMint:         params.Pair.TokenInMint,
			TokenOutMint:        params.Pair.TokenOutMint,
			FeeBps:              params.FeeBps,
			NeedsApproval:       params.NeedsApproval,
			AllowPermissionless: params.AllowPermissionless,
			Authority:           authority,
		}
	})
	return nil
}

// CloseOffer removes the ledger entry; boss only. Pending redemption
// requests block the close.
func (e *Engine) CloseOffer(authority solana.PublicKey, pair Pair) error {
	if !e.state.IsBoss(authority) {
		return fmt.Errorf("%w: only boss closes offers", ErrUnauthorized)
	}

	lock := e.pairLock(pair)
	lock.Lock()
	defer lock.Unlock()
	now := e.clock.Now()

	e.mu.Lock()
	if _, ok := e.offers[pair]; !ok {
		e.mu.Unlock()
		return fmt.Errorf("%w: offer %s", ErrNotFound, pair)
	}
	if redemption, ok := e.redemptions[pair.Reverse()]; ok && redemption.RequestedRedemptions > 0 {
		e.mu.Unlock()
		return fmt.Errorf("%w: offer %s has pending redemptions", ErrInvalidState, pair)
	}
	delete(e.offers, pair)
	e.mu.Unlock()

	e.emit(events.KindOfferClosed, now, func(ev *events.Event) {
		ev.OfferClosed = &events.OfferClosed{
			TokenInMint:  pair.TokenInMint,
			TokenOutMint: pair.TokenOutMint,
			Authority:    authority,
		}
	})
	return nil
}

// UpdateFee changes the taker fee; boss only.
func (e *Engine) UpdateFee(authority solana.PublicKey, pair Pair, feeBps uint16) error {
	if !e.state.IsBoss(authority) {
		return fmt.Errorf("%w: only boss updates fees", ErrUnauthorized)
	}
	if uint64(feeBps) > fixedmath.BpsDenom {
		return fmt.Errorf("%w: fee %d bps", ErrMalformedInput, feeBps)
	}

	lock := e.pairLock(pair)
	lock.Lock()
	defer lock.Unlock()
	now := e.clock.Now()

	offer, err := e.offer(pair)
	if err != nil {
		return err
	}
	old := offer.FeeBps
	offer.FeeBps = feeBps

	e.emit(events.KindFeeUpdated, now, func(ev *events.Event) {
		ev.FeeUpdated = &events.FeeUpdated{
			TokenInMint:  pair.TokenInMint,
			TokenOutMint: pair.TokenOutMint,
			OldFeeBps:    old,
			NewFeeBps:    feeBps,
			Authority:    authority,
		}
	})
	return nil
}

// AddVector schedules a pricing regime; admin or boss.
func (e *Engine) AddVector(authority solana.PublicKey, pair Pair, vector pricing.Vector) error {
	if !e.state.IsAdmin(authority) && !e.state.IsBoss(authority) {
		return fmt.Errorf("%w: admin role required", ErrUnauthorized)
	}

	lock := e.pairLock(pair)
	lock.Lock()
	defer lock.Unlock()
	now := e.clock.Now()

	offer, err := e.offer(pair)
	if err != nil {
		return err
	}
	evicted, didEvict, err := offer.vectors.Insert(vector, now)
	if err != nil {
		return translatePricingErr(err)
	}

	if didEvict {
		e.emit(events.KindVectorEvicted, now, func(ev *events.Event) {
			ev.VectorEvicted = vectorChange(pair, evicted)
		})
	}
	added := vector
	added.StartTime = max(vector.BaseTime, now)
	e.emit(events.KindVectorAdded, now, func(ev *events.Event) {
		ev.VectorAdded = vectorChange(pair, added)
	})
	return nil
}

// DeleteVector removes a strictly-future pricing regime; admin or boss.
func (e *Engine) DeleteVector(authority solana.PublicKey, pair Pair, startTime int64) error {
	if !e.state.IsAdmin(authority) && !e.state.IsBoss(authority) {
		return fmt.Errorf("%w: admin role required", ErrUnauthorized)
	}

	lock := e.pairLock(pair)
	lock.Lock()
	defer lock.Unlock()
	now := e.clock.Now()

	offer, err := e.offer(pair)
	if err != nil {
		return err
	}
	removed, err := offer.vectors.Delete(startTime, now)
	if err != nil {
		return translatePricingErr(err)
	}

	e.emit(events.KindVectorDeleted, now, func(ev *events.Event) {
		ev.VectorDeleted = vectorChange(pair, removed)
	})
	return nil
}

// QuotePrice returns the 1e9-scale price of the pair at the operation clock.
func (e *Engine) QuotePrice(pair Pair) (uint64, error) {
	lock := e.pairLock(pair)
	lock.Lock()
	defer lock.Unlock()
	return e.quotePriceLocked(pair, e.clock.Now())
}

func (e *Engine) quotePriceLocked(pair Pair, now int64) (uint64, error) {
	offer, err := e.offer(pair)
	if err != nil {
		return 0, err
	}
	price, err := offer.vectors.PriceAt(now)
	if err != nil {
		return 0, translatePricingErr(err)
	}
	return price, nil
}

// QuoteAPY converts the active vector's APR to a daily-compounded APY at 1e6
// scale.
func (e *Engine) QuoteAPY(pair Pair) (uint64, error) {
	lock := e.pairLock(pair)
	lock.Lock()
	defer lock.Unlock()
	now := e.clock.Now()

	offer, err := e.offer(pair)
	if err != nil {
		return 0, err
	}
	active, err := offer.vectors.ActiveAt(now)
	if err != nil {
		return 0, translatePricingErr(err)
	}
	return fixedmath.CompoundAPY(active.APR)
}

// NAVAdjustment returns the signed price delta between the active vector and
// its predecessor evaluated at the same instant.
func (e *Engine) NAVAdjustment(pair Pair) (int64, error) {
	lock := e.pairLock(pair)
	lock.Lock()
	defer lock.Unlock()
	now := e.clock.Now()

	offer, err := e.offer(pair)
	if err != nil {
		return 0, err
	}
	delta, err := offer.vectors.AdjustmentAt(now)
	if err != nil {
		return 0, translatePricingErr(err)
	}
	return delta, nil
}

// CirculatingSupply is total supply minus the offer-vault holding.
func (e *Engine) CirculatingSupply(mint solana.PublicKey) (uint64, error) {
	total, err := e.ledger.TotalSupply(mint)
	if err != nil {
		return 0, fmt.Errorf("%w: mint %s", ErrNotFound, mint)
	}
	vaulted := e.vaults.Balance(VaultOffer, mint)
	if vaulted > total {
		return 0, nil
	}
	return total - vaulted, nil
}

// TVL values the circulating output supply at the current price.
func (e *Engine) TVL(pair Pair) (uint64, error) {
	lock := e.pairLock(pair)
	lock.Lock()
	defer lock.Unlock()
	now := e.clock.Now()

	price, err := e.quotePriceLocked(pair, now)
	if err != nil {
		return 0, err
	}
	supply, err := e.CirculatingSupply(pair.TokenOutMint)
	if err != nil {
		return 0, err
	}
	return fixedmath.MulDiv(supply, price, fixedmath.PriceScale)
}

// Take converts grossIn of the pair's input token into output tokens at the
// current price, net of fee. The treasury receives the gross input; the
// output is minted or paid from the offer vault.
func (e *Engine) Take(pair Pair, taker solana.PublicKey, grossIn uint64, env *approval.Envelope) (TakeResult, error) {
	if grossIn == 0 {
		return TakeResult{}, fmt.Errorf("%w: zero input amount", ErrMalformedInput)
	}

	lock := e.pairLock(pair)
	lock.Lock()
	defer lock.Unlock()
	now := e.clock.Now()

	if e.state.Paused() {
		return TakeResult{}, ErrPaused
	}
	offer, err := e.offer(pair)
	if err != nil {
		return TakeResult{}, err
	}

	switch {
	case offer.NeedsApproval:
		if env == nil {
			return TakeResult{}, fmt.Errorf("%w: approval required", ErrUnauthorized)
		}
		if err := e.verifier.Verify(*env, taker, e.state.ProgramID(), now); err != nil {
			return TakeResult{}, translateApprovalErr(err)
		}
	case !offer.AllowPermissionless:
		if !e.state.IsAdmin(taker) && !e.state.IsBoss(taker) {
			return TakeResult{}, fmt.Errorf("%w: offer is not permissionless", ErrUnauthorized)
		}
	}

	price, err := e.quotePriceLocked(pair, now)
	if err != nil {
		return TakeResult{}, err
	}

	net, fee, err := fixedmath.ApplyBps(grossIn, offer.FeeBps)
	if err != nil {
		return TakeResult{}, err
	}

	inDecimals, err := e.ledger.DecimalsOf(pair.TokenInMint)
	if err != nil {
		return TakeResult{}, fmt.Errorf("%w: mint %s", ErrNotFound, pair.TokenInMint)
	}
	outDecimals, err := e.ledger.DecimalsOf(pair.TokenOutMint)
	if err != nil {
		return TakeResult{}, fmt.Errorf("%w: mint %s", ErrNotFound, pair.TokenOutMint)
	}
	scaledNet, err := fixedmath.ScaleAmount(net, inDecimals, outDecimals)
	if err != nil {
		return TakeResult{}, err
	}
	amountOut, err := fixedmath.MulDiv(scaledNet, fixedmath.PriceScale, price)
	if err != nil {
		return TakeResult{}, err
	}

	// Pre-validate both legs so a failure cannot leave a half-executed take.
	takerBalance, err := e.ledger.BalanceOf(taker, pair.TokenInMint)
	if err != nil {
		return TakeResult{}, err
	}
	if takerBalance < grossIn {
		return TakeResult{}, fmt.Errorf("%w: taker has %d, needs %d", ErrInsufficientFunds, takerBalance, grossIn)
	}
	distributor := e.distributorFor(pair.TokenOutMint)
	if err := distributor.Reserve(pair.TokenOutMint, amountOut); err != nil {
		return TakeResult{}, err
	}

	if err := e.ledger.Transfer(taker, e.state.Treasury(), pair.TokenInMint, grossIn); err != nil {
		return TakeResult{}, err
	}
	if err := distributor.Distribute(pair.TokenOutMint, taker, amountOut); err != nil {
		return TakeResult{}, err
	}

	result := TakeResult{
		GrossIn:   grossIn,
		NetIn:     net,
		Fee:       fee,
		AmountOut: amountOut,
		Price:     price,
		Minted:    distributor.Minted(),
	}
	e.emit(events.KindOfferTaken, now, func(ev *events.Event) {
		ev.OfferTaken = &events.OfferTaken{
			TokenInMint:  pair.TokenInMint,
			TokenOutMint: pair.TokenOutMint,
			Taker:        taker,
			GrossIn:      result.GrossIn,
			NetIn:        result.NetIn,
			Fee:          result.Fee,
			AmountOut:    result.AmountOut,
			Price:        result.Price,
			Minted:       result.Minted,
		}
	})
	return result, nil
}

// Deposit credits a vault; restricted to the vault's operator.
func (e *Engine) Deposit(kind VaultKind, mint solana.PublicKey, amount uint64, operator solana.PublicKey) error {
	if !kind.valid() {
		return fmt.Errorf("%w: vault kind %q", ErrMalformedInput, kind)
	}
	if !e.state.VaultOperator(kind, operator) {
		return fmt.Errorf("%w: %s is not the %s vault operator", ErrUnauthorized, operator, kind)
	}
	now := e.clock.Now()

	if err := e.ledger.Transfer(operator, e.state.VaultAccount(kind), mint, amount); err != nil {
		return err
	}
	if err := e.vaults.credit(kind, mint, amount); err != nil {
		return err
	}

	e.emit(events.KindVaultDeposit, now, func(ev *events.Event) {
		ev.VaultDeposit = &events.VaultMovement{
			Vault:    string(kind),
			Mint:     mint,
			Amount:   amount,
			Balance:  e.vaults.Balance(kind, mint),
			Operator: operator,
		}
	})
	return nil
}

// Withdraw debits a vault; restricted to the vault's operator.
func (e *Engine) Withdraw(kind VaultKind, mint solana.PublicKey, amount uint64, operator solana.PublicKey) error {
	if !kind.valid() {
		return fmt.Errorf("%w: vault kind %q", ErrMalformedInput, kind)
	}
	if !e.state.VaultOperator(kind, operator) {
		return fmt.Errorf("%w: %s is not the %s vault operator", ErrUnauthorized, operator, kind)
	}
	now := e.clock.Now()

	if err := e.vaults.debit(kind, mint, amount); err != nil {
		return err
	}
	if err := e.ledger.Transfer(e.state.VaultAccount(kind), operator, mint, amount); err != nil {
		// Restore the book; the ledger refused the movement.
		_ = e.vaults.credit(kind, mint, amount)
		return err
	}

	e.emit(events.KindVaultWithdraw, now, func(ev *events.Event) {
		ev.VaultWithdraw = &events.VaultMovement{
			Vault:    string(kind),
			Mint:     mint,
			Amount:   amount,
			Balance:  e.vaults.Balance(kind, mint),
			Operator: operator,
		}
	})
	return nil
}

// NonceOf returns the next expected redemption nonce for a redeemer.
func (e *Engine) NonceOf(redeemer solana.PublicKey) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.nonces[redeemer]
}

// CreateRedemption locks amount of the yield token and registers a pending
// request. The nonce must equal the redeemer's current counter exactly.
func (e *Engine) CreateRedemption(pair Pair, redeemer solana.PublicKey, amount uint64, expiresAt int64, nonce uint64) (*RedemptionRequest, error) {
	if amount == 0 {
		return nil, fmt.Errorf("%w: zero redemption amount", ErrMalformedInput)
	}

	lock := e.pairLock(pair)
	lock.Lock()
	defer lock.Unlock()
	now := e.clock.Now()

	if e.state.Paused() {
		return nil, ErrPaused
	}
	redemption, err := e.redemptionOffer(pair)
	if err != nil {
		return nil, err
	}
	if expiresAt <= now {
		return nil, fmt.Errorf("%w: expiry %d is not in the future", ErrMalformedInput, expiresAt)
	}

	e.mu.Lock()
	current := e.nonces[redeemer]
	e.mu.Unlock()
	if nonce != current {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrReplayRejected, current, nonce)
	}

	if err := e.ledger.Transfer(redeemer, e.state.VaultAccount(VaultRedemption), pair.TokenInMint, amount); err != nil {
		return nil, err
	}
	if err := e.vaults.credit(VaultRedemption, pair.TokenInMint, amount); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.nonces[redeemer] = current + 1
	e.mu.Unlock()

	redemption.RequestCounter++
	redemption.RequestedRedemptions += amount
	request := &RedemptionRequest{
		ID:        redemption.RequestCounter,
		Pair:      pair,
		Redeemer:  redeemer,
		Amount:    amount,
		ExpiresAt: expiresAt,
		Status:    StatusPending,
		CreatedAt: now,
	}
	redemption.requests[request.ID] = request

	e.emit(events.KindRedemptionRequested, now, func(ev *events.Event) {
		ev.RedemptionRequested = &events.RedemptionRequested{
			TokenInMint:  pair.TokenInMint,
			TokenOutMint: pair.TokenOutMint,
			RequestID:    request.ID,
			Redeemer:     redeemer,
			Amount:       amount,
			ExpiresAt:    expiresAt,
			Nonce:        nonce,
		}
	})
	return request, nil
}

// FulfillRedemption executes a pending request at the current NAV of the
// underlying offer; redemption admin only. The locked yield tokens are
// burned and the payout is drawn from the redemption vault's base balance.
func (e *Engine) FulfillRedemption(pair Pair, requestID uint64, caller solana.PublicKey) (uint64, error) {
	if !e.state.IsRedemptionAdmin(caller) {
		return 0, fmt.Errorf("%w: redemption admin role required", ErrUnauthorized)
	}

	lock := e.pairLock(pair)
	lock.Lock()
	defer lock.Unlock()
	now := e.clock.Now()

	redemption, err := e.redemptionOffer(pair)
	if err != nil {
		return 0, err
	}
	request, ok := redemption.requests[requestID]
	if !ok {
		return 0, fmt.Errorf("%w: request %d", ErrNotFound, requestID)
	}
	if request.Status != StatusPending {
		return 0, fmt.Errorf("%w: request %d is %s", ErrInvalidState, requestID, request.Status)
	}
	if now > request.ExpiresAt {
		return 0, fmt.Errorf("%w: request %d expired at %d", ErrExpired, requestID, request.ExpiresAt)
	}

	// NAV comes from the underlying offer, priced at this operation's clock.
	underlying := pair.Reverse()
	price, err := e.quotePriceLocked(underlying, now)
	if err != nil {
		return 0, err
	}

	yieldDecimals, err := e.ledger.DecimalsOf(pair.TokenInMint)
	if err != nil {
		return 0, fmt.Errorf("%w: mint %s", ErrNotFound, pair.TokenInMint)
	}
	baseDecimals, err := e.ledger.DecimalsOf(pair.TokenOutMint)
	if err != nil {
		return 0, fmt.Errorf("%w: mint %s", ErrNotFound, pair.TokenOutMint)
	}
	valued, err := fixedmath.MulDiv(request.Amount, price, fixedmath.PriceScale)
	if err != nil {
		return 0, err
	}
	payout, err := fixedmath.ScaleAmount(valued, yieldDecimals, baseDecimals)
	if err != nil {
		return 0, err
	}

	// Pre-validate so the request cannot end half-fulfilled.
	if err := e.vaults.canDebit(VaultRedemption, pair.TokenOutMint, payout); err != nil {
		return 0, err
	}
	if err := e.vaults.canDebit(VaultRedemption, pair.TokenInMint, request.Amount); err != nil {
		return 0, err
	}

	vaultAccount := e.state.VaultAccount(VaultRedemption)
	if err := e.ledger.Burn(pair.TokenInMint, vaultAccount, request.Amount); err != nil {
		return 0, err
	}
	_ = e.vaults.debit(VaultRedemption, pair.TokenInMint, request.Amount)
	if err := e.ledger.Transfer(vaultAccount, request.Redeemer, pair.TokenOutMint, payout); err != nil {
		return 0, err
	}
	_ = e.vaults.debit(VaultRedemption, pair.TokenOutMint, payout)

	redemption.RequestedRedemptions -= request.Amount
	redemption.ExecutedRedemptions.AddUint64(&redemption.ExecutedRedemptions, payout)
	request.Status = StatusExecuted

	e.emit(events.KindRedemptionFulfilled, now, func(ev *events.Event) {
		ev.RedemptionFulfilled = &events.RedemptionFulfilled{
			TokenInMint:  pair.TokenInMint,
			TokenOutMint: pair.TokenOutMint,
			RequestID:    requestID,
			Redeemer:     request.Redeemer,
			Amount:       request.Amount,
			Payout:       payout,
			Price:        price,
			Caller:       caller,
		}
	})
	return payout, nil
}

// CancelRedemption returns the locked tokens; permitted for the redeemer,
// the redemption admin, or the boss.
func (e *Engine) CancelRedemption(pair Pair, requestID uint64, caller solana.PublicKey) error {
	lock := e.pairLock(pair)
	lock.Lock()
	defer lock.Unlock()
	now := e.clock.Now()

	redemption, err := e.redemptionOffer(pair)
	if err != nil {
		return err
	}
	request, ok := redemption.requests[requestID]
	if !ok {
		return fmt.Errorf("%w: request %d", ErrNotFound, requestID)
	}
	if !caller.Equals(request.Redeemer) && !e.state.IsRedemptionAdmin(caller) && !e.state.IsBoss(caller) {
		return fmt.Errorf("%w: caller %s may not cancel request %d", ErrUnauthorized, caller, requestID)
	}
	if request.Status != StatusPending {
		return fmt.Errorf("%w: request %d is %s", ErrInvalidState, requestID, request.Status)
	}

	if err := e.vaults.debit(VaultRedemption, pair.TokenInMint, request.Amount); err != nil {
		return err
	}
	if err := e.ledger.Transfer(e.state.VaultAccount(VaultRedemption), request.Redeemer, pair.TokenInMint, request.Amount); err != nil {
		_ = e.vaults.credit(VaultRedemption, pair.TokenInMint, request.Amount)
		return err
	}

	redemption.RequestedRedemptions -= request.Amount
	request.Status = StatusCancelled

	e.emit(events.KindRedemptionCancelled, now, func(ev *events.Event) {
		ev.RedemptionCancelled = &events.RedemptionCancelled{
			TokenInMint:  pair.TokenInMint,
			TokenOutMint: pair.TokenOutMint,
			RequestID:    requestID,
			Redeemer:     request.Redeemer,
			Amount:       request.Amount,
			Caller:       caller,
		}
	})
	return nil
}

// SetKillSwitch toggles the emergency stop; boss only.
func (e *Engine) SetKillSwitch(authority solana.PublicKey, enabled bool) error {
	now := e.clock.Now()
	if err := e.state.SetKillSwitch(authority, enabled); err != nil {
		return err
	}
	e.emit(events.KindKillSwitchToggled, now, func(ev *events.Event) {
		ev.KillSwitchToggled = &events.KillSwitchToggled{Enabled: enabled, Authority: authority}
	})
	return nil
}

// Offers snapshots the configured offers.
func (e *Engine) Offers() []*Offer {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Offer, 0, len(e.offers))
	for _, offer := range e.offers {
		out = append(out, offer)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pair.String() < out[j].Pair.String() })
	return out
}

// GetOffer returns one offer.
func (e *Engine) GetOffer(pair Pair) (*Offer, error) {
	return e.offer(pair)
}

// GetRedemptionOffer returns the redemption aggregate for a pair.
func (e *Engine) GetRedemptionOffer(pair Pair) (*RedemptionOffer, error) {
	return e.redemptionOffer(pair)
}

// GetRequest returns one redemption request.
func (e *Engine) GetRequest(pair Pair, requestID uint64) (*RedemptionRequest, error) {
	lock := e.pairLock(pair)
	lock.Lock()
	defer lock.Unlock()

	redemption, err := e.redemptionOffer(pair)
	if err != nil {
		return nil, err
	}
	request, ok := redemption.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: request %d", ErrNotFound, requestID)
	}
	copied := *request
	return &copied, nil
}

// PendingRequests lists pending requests across all redemption offers,
// oldest first. The keeper drives fulfillment from this view.
func (e *Engine) PendingRequests() []RedemptionRequest {
	e.mu.Lock()
	redemptionOffers := make([]*RedemptionOffer, 0, len(e.redemptions))
	for _, redemption := range e.redemptions {
		redemptionOffers = append(redemptionOffers, redemption)
	}
	e.mu.Unlock()

	var out []RedemptionRequest
	for _, redemption := range redemptionOffers {
		lock := e.pairLock(redemption.Pair)
		lock.Lock()
		for _, request := range redemption.requests {
			if request.Status == StatusPending {
				out = append(out, *request)
			}
		}
		lock.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt < out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func vectorChange(pair Pair, v pricing.Vector) *events.VectorChange {
	return &events.VectorChange{
		TokenInMint:  pair.TokenInMint,
		TokenOutMint: pair.TokenOutMint,
		StartTime:    v.StartTime,
		BaseTime:     v.BaseTime,
		BasePrice:    v.BasePrice,
		APR:          v.APR,
		StepSeconds:  v.StepSeconds,
	}
}

func translatePricingErr(err error) error {
	switch {
	case err == nil:
		return nil
	case isPricingNotFound(err):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
}

func isPricingNotFound(err error) bool {
	return errors.Is(err, pricing.ErrVectorNotFound) || errors.Is(err, pricing.ErrNoActiveVector) ||
		errors.Is(err, pricing.ErrNoPreviousVector)
}

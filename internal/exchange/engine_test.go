package exchange

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-fi/exchange/backend/internal/approval"
	"github.com/meridian-fi/exchange/backend/internal/assetledger"
	"github.com/meridian-fi/exchange/backend/internal/events"
	"github.com/meridian-fi/exchange/backend/internal/pricing"
)

const (
	day = int64(86_400)

	baseDecimals  = uint8(6)
	yieldDecimals = uint8(9)
)

type harness struct {
	engine *Engine
	ledger *assetledger.Memory

	boss            solana.PublicKey
	admin           solana.PublicKey
	redemptionAdmin solana.PublicKey
	treasury        solana.PublicKey
	taker           solana.PublicKey
	approver        solana.PrivateKey
	program         solana.PublicKey

	baseMint  solana.PublicKey
	yieldMint solana.PublicKey
	pair      Pair

	now    int64
	events []events.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	approver, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	h := &harness{
		boss:            solana.NewWallet().PublicKey(),
		admin:           solana.NewWallet().PublicKey(),
		redemptionAdmin: solana.NewWallet().PublicKey(),
		treasury:        solana.NewWallet().PublicKey(),
		taker:           solana.NewWallet().PublicKey(),
		approver:        approver,
		program:         solana.NewWallet().PublicKey(),
		baseMint:        solana.NewWallet().PublicKey(),
		yieldMint:       solana.NewWallet().PublicKey(),
		now:             1_700_000_000,
	}
	h.pair = Pair{TokenInMint: h.baseMint, TokenOutMint: h.yieldMint}

	state, err := NewProtocolState(StateParams{
		ProgramID:       h.program,
		Boss:            h.boss,
		Admins:          []solana.PublicKey{h.admin},
		Approvers:       [2]solana.PublicKey{approver.PublicKey(), solana.NewWallet().PublicKey()},
		RedemptionAdmin: h.redemptionAdmin,
		Treasury:        h.treasury,
		OfferVault:      solana.NewWallet().PublicKey(),
		RedemptionVault: solana.NewWallet().PublicKey(),
	})
	require.NoError(t, err)

	h.ledger = assetledger.NewMemory()
	h.ledger.RegisterMint(h.baseMint, baseDecimals, false)
	h.ledger.RegisterMint(h.yieldMint, yieldDecimals, true)

	clock := ClockFunc(func() int64 { return h.now })
	sink := events.SinkFunc(func(e events.Event) { h.events = append(h.events, e) })
	h.engine = New(state, h.ledger, clock, sink)
	return h
}

// makeCalibratedOffer installs the pair with a daily 3.65% APR vector anchored
// at the current clock, so the first step prices at exactly 1.0001.
func (h *harness) makeCalibratedOffer(t *testing.T, feeBps uint16) {
	t.Helper()
	require.NoError(t, h.engine.MakeOffer(h.boss, OfferParams{
		Pair:                h.pair,
		FeeBps:              feeBps,
		AllowPermissionless: true,
	}))
	require.NoError(t, h.engine.AddVector(h.admin, h.pair, pricing.Vector{
		BaseTime:    h.now,
		BasePrice:   1_000_000_000,
		APR:         36_500,
		StepSeconds: uint64(day),
	}))
}

func (h *harness) lastEvent(t *testing.T, kind events.Kind) events.Event {
	t.Helper()
	for i := len(h.events) - 1; i >= 0; i-- {
		if h.events[i].Kind == kind {
			return h.events[i]
		}
	}
	t.Fatalf("no %s event recorded", kind)
	return events.Event{}
}

func TestMakeOfferAuthorization(t *testing.T) {
	h := newHarness(t)

	err := h.engine.MakeOffer(h.admin, OfferParams{Pair: h.pair})
	assert.ErrorIs(t, err, ErrUnauthorized)

	require.NoError(t, h.engine.MakeOffer(h.boss, OfferParams{Pair: h.pair, FeeBps: 25}))
	err = h.engine.MakeOffer(h.boss, OfferParams{Pair: h.pair})
	assert.ErrorIs(t, err, ErrInvalidState)

	offer, err := h.engine.GetOffer(h.pair)
	require.NoError(t, err)
	assert.EqualValues(t, 25, offer.FeeBps)

	// The redemption side is created on the reversed pair.
	_, err = h.engine.GetRedemptionOffer(h.pair.Reverse())
	require.NoError(t, err)
}

func TestQuotePriceAtCalibration(t *testing.T) {
	h := newHarness(t)
	h.makeCalibratedOffer(t, 0)

	price, err := h.engine.QuotePrice(h.pair)
	require.NoError(t, err)
	assert.EqualValues(t, 1_000_100_000, price)

	// Price is constant within a step and bumps at the boundary.
	h.now += day - 1
	price, err = h.engine.QuotePrice(h.pair)
	require.NoError(t, err)
	assert.EqualValues(t, 1_000_100_000, price)

	h.now++
	price, err = h.engine.QuotePrice(h.pair)
	require.NoError(t, err)
	assert.EqualValues(t, 1_000_200_000, price)
}

func TestTakeMintsAtCalibratedPrice(t *testing.T) {
	h := newHarness(t)
	h.makeCalibratedOffer(t, 0)
	require.NoError(t, h.ledger.Fund(h.taker, h.baseMint, 2_000_000))

	result, err := h.engine.Take(h.pair, h.taker, 1_000_100, nil)
	require.NoError(t, err)

	assert.EqualValues(t, 1_000_100, result.GrossIn)
	assert.EqualValues(t, 1_000_100, result.NetIn)
	assert.Zero(t, result.Fee)
	assert.EqualValues(t, 1_000_000_000, result.AmountOut)
	assert.EqualValues(t, 1_000_100_000, result.Price)
	assert.True(t, result.Minted)

	treasuryBalance, err := h.ledger.BalanceOf(h.treasury, h.baseMint)
	require.NoError(t, err)
	assert.EqualValues(t, 1_000_100, treasuryBalance)

	takerOut, err := h.ledger.BalanceOf(h.taker, h.yieldMint)
	require.NoError(t, err)
	assert.EqualValues(t, 1_000_000_000, takerOut)

	taken := h.lastEvent(t, events.KindOfferTaken).OfferTaken
	require.NotNil(t, taken)
	assert.EqualValues(t, result.AmountOut, taken.AmountOut)
}

func TestTakeAppliesFeeBeforeConversion(t *testing.T) {
	h := newHarness(t)
	h.makeCalibratedOffer(t, 100)
	require.NoError(t, h.ledger.Fund(h.taker, h.baseMint, 2_000_000))

	result, err := h.engine.Take(h.pair, h.taker, 1_000_100, nil)
	require.NoError(t, err)

	assert.EqualValues(t, 990_099, result.NetIn)
	assert.EqualValues(t, 10_001, result.Fee)
	assert.EqualValues(t, result.GrossIn, result.NetIn+result.Fee)
	assert.EqualValues(t, 990_000_000, result.AmountOut)

	// The treasury still receives the gross amount; the fee stays inside it.
	treasuryBalance, err := h.ledger.BalanceOf(h.treasury, h.baseMint)
	require.NoError(t, err)
	assert.EqualValues(t, 1_000_100, treasuryBalance)
}

func TestTakeInsufficientFundsLeavesNoTrace(t *testing.T) {
	h := newHarness(t)
	h.makeCalibratedOffer(t, 0)
	require.NoError(t, h.ledger.Fund(h.taker, h.baseMint, 100))

	_, err := h.engine.Take(h.pair, h.taker, 1_000_100, nil)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	takerBalance, err := h.ledger.BalanceOf(h.taker, h.baseMint)
	require.NoError(t, err)
	assert.EqualValues(t, 100, takerBalance)

	supply, err := h.ledger.TotalSupply(h.yieldMint)
	require.NoError(t, err)
	assert.Zero(t, supply)
}

func TestTakeFromVaultWhenMintAuthorityMissing(t *testing.T) {
	h := newHarness(t)
	// Re-register the output mint without authority, forcing vault payouts.
	h.ledger.RegisterMint(h.yieldMint, yieldDecimals, false)
	h.makeCalibratedOffer(t, 0)

	require.NoError(t, h.ledger.Fund(h.taker, h.baseMint, 10_000_000))
	require.NoError(t, h.ledger.Fund(h.boss, h.yieldMint, 5_000_000_000))
	require.NoError(t, h.engine.Deposit(VaultOffer, h.yieldMint, 5_000_000_000, h.boss))

	result, err := h.engine.Take(h.pair, h.taker, 1_000_100, nil)
	require.NoError(t, err)
	assert.False(t, result.Minted)
	assert.EqualValues(t, 1_000_000_000, result.AmountOut)
	assert.EqualValues(t, 4_000_000_000, h.engine.Vaults().Balance(VaultOffer, h.yieldMint))

	// A take exceeding the vault balance fails before any leg moves.
	_, err = h.engine.Take(h.pair, h.taker, 5_000_000, nil)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.EqualValues(t, 4_000_000_000, h.engine.Vaults().Balance(VaultOffer, h.yieldMint))
	treasuryBalance, err := h.ledger.BalanceOf(h.treasury, h.baseMint)
	require.NoError(t, err)
	assert.EqualValues(t, 1_000_100, treasuryBalance)
}

func TestTakeApprovalGating(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.MakeOffer(h.boss, OfferParams{Pair: h.pair, NeedsApproval: true}))
	require.NoError(t, h.engine.AddVector(h.admin, h.pair, pricing.Vector{
		BaseTime:    h.now,
		BasePrice:   1_000_000_000,
		APR:         36_500,
		StepSeconds: uint64(day),
	}))
	require.NoError(t, h.ledger.Fund(h.taker, h.baseMint, 2_000_000))

	_, err := h.engine.Take(h.pair, h.taker, 1_000_100, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)

	message := approval.Message{Program: h.program, User: h.taker, ExpiryUnix: h.now + 60}
	payload, err := message.Bytes()
	require.NoError(t, err)
	signature, err := h.approver.Sign(payload)
	require.NoError(t, err)
	env := &approval.Envelope{
		Message:    message,
		Signatures: []solana.Signature{signature},
		Signer:     h.approver.PublicKey(),
	}

	result, err := h.engine.Take(h.pair, h.taker, 1_000_100, env)
	require.NoError(t, err)
	assert.EqualValues(t, 1_000_000_000, result.AmountOut)

	// The same envelope past its expiry is rejected.
	h.now = message.ExpiryUnix + 1
	_, err = h.engine.Take(h.pair, h.taker, 1_000_100, env)
	assert.ErrorIs(t, err, ErrExpired)
}

func TestTakeRestrictedOfferAllowsAdmins(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.engine.MakeOffer(h.boss, OfferParams{Pair: h.pair}))
	require.NoError(t, h.engine.AddVector(h.admin, h.pair, pricing.Vector{
		BaseTime:    h.now,
		BasePrice:   1_000_000_000,
		APR:         36_500,
		StepSeconds: uint64(day),
	}))
	require.NoError(t, h.ledger.Fund(h.taker, h.baseMint, 2_000_000))
	require.NoError(t, h.ledger.Fund(h.admin, h.baseMint, 2_000_000))

	_, err := h.engine.Take(h.pair, h.taker, 1_000_100, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = h.engine.Take(h.pair, h.admin, 1_000_100, nil)
	require.NoError(t, err)
}

func TestKillSwitchHaltsTrading(t *testing.T) {
	h := newHarness(t)
	h.makeCalibratedOffer(t, 0)
	require.NoError(t, h.ledger.Fund(h.taker, h.baseMint, 2_000_000))

	err := h.engine.SetKillSwitch(h.admin, true)
	assert.ErrorIs(t, err, ErrUnauthorized)
	require.NoError(t, h.engine.SetKillSwitch(h.boss, true))

	_, err = h.engine.Take(h.pair, h.taker, 1_000_100, nil)
	assert.ErrorIs(t, err, ErrPaused)
	_, err = h.engine.CreateRedemption(h.pair.Reverse(), h.taker, 1, h.now+day, 0)
	assert.ErrorIs(t, err, ErrPaused)

	// Admin maintenance stays available while paused.
	require.NoError(t, h.engine.AddVector(h.admin, h.pair, pricing.Vector{
		BaseTime:    h.now + 10*day,
		BasePrice:   1_000_000_000,
		APR:         40_000,
		StepSeconds: uint64(day),
	}))
	price, err := h.engine.QuotePrice(h.pair)
	require.NoError(t, err)
	assert.EqualValues(t, 1_000_100_000, price)

	require.NoError(t, h.engine.SetKillSwitch(h.boss, false))
	_, err = h.engine.Take(h.pair, h.taker, 1_000_100, nil)
	require.NoError(t, err)
}

func TestRedemptionNonceReplay(t *testing.T) {
	h := newHarness(t)
	h.makeCalibratedOffer(t, 0)
	require.NoError(t, h.ledger.Fund(h.taker, h.yieldMint, 3_000_000_000))
	redemptionPair := h.pair.Reverse()

	assert.Zero(t, h.engine.NonceOf(h.taker))

	first, err := h.engine.CreateRedemption(redemptionPair, h.taker, 1_000_000_000, h.now+day, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, first.ID)
	assert.EqualValues(t, 1, h.engine.NonceOf(h.taker))

	// Replaying the consumed nonce is rejected without touching balances.
	_, err = h.engine.CreateRedemption(redemptionPair, h.taker, 1_000_000_000, h.now+day, 0)
	assert.ErrorIs(t, err, ErrReplayRejected)
	balance, err := h.ledger.BalanceOf(h.taker, h.yieldMint)
	require.NoError(t, err)
	assert.EqualValues(t, 2_000_000_000, balance)

	// Skipping ahead is rejected too; the counter is strict.
	_, err = h.engine.CreateRedemption(redemptionPair, h.taker, 1_000_000_000, h.now+day, 5)
	assert.ErrorIs(t, err, ErrReplayRejected)

	second, err := h.engine.CreateRedemption(redemptionPair, h.taker, 1_000_000_000, h.now+day, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, second.ID)
}

func TestRedemptionLifecycle(t *testing.T) {
	h := newHarness(t)
	h.makeCalibratedOffer(t, 0)
	redemptionPair := h.pair.Reverse()

	require.NoError(t, h.ledger.Fund(h.taker, h.yieldMint, 1_000_000_000))
	require.NoError(t, h.ledger.Fund(h.redemptionAdmin, h.baseMint, 5_000_000))
	require.NoError(t, h.engine.Deposit(VaultRedemption, h.baseMint, 5_000_000, h.redemptionAdmin))

	request, err := h.engine.CreateRedemption(redemptionPair, h.taker, 1_000_000_000, h.now+day, 0)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, request.Status)
	assert.EqualValues(t, 1_000_000_000, h.engine.Vaults().Balance(VaultRedemption, h.yieldMint))

	aggregate, err := h.engine.GetRedemptionOffer(redemptionPair)
	require.NoError(t, err)
	assert.EqualValues(t, 1_000_000_000, aggregate.RequestedRedemptions)

	_, err = h.engine.FulfillRedemption(redemptionPair, request.ID, h.taker)
	assert.ErrorIs(t, err, ErrUnauthorized)

	payout, err := h.engine.FulfillRedemption(redemptionPair, request.ID, h.redemptionAdmin)
	require.NoError(t, err)
	// 1e9 yield units at price 1.0001, rescaled from 9 to 6 decimals.
	assert.EqualValues(t, 1_000_100, payout)

	stored, err := h.engine.GetRequest(redemptionPair, request.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExecuted, stored.Status)

	aggregate, err = h.engine.GetRedemptionOffer(redemptionPair)
	require.NoError(t, err)
	assert.Zero(t, aggregate.RequestedRedemptions)
	assert.EqualValues(t, payout, aggregate.ExecutedRedemptions.Uint64())

	// Locked yield tokens were burned, not recycled.
	supply, err := h.ledger.TotalSupply(h.yieldMint)
	require.NoError(t, err)
	assert.Zero(t, supply)
	assert.Zero(t, h.engine.Vaults().Balance(VaultRedemption, h.yieldMint))

	redeemed, err := h.ledger.BalanceOf(h.taker, h.baseMint)
	require.NoError(t, err)
	assert.EqualValues(t, payout, redeemed)
	assert.EqualValues(t, 5_000_000-payout, h.engine.Vaults().Balance(VaultRedemption, h.baseMint))

	// Terminal states reject further transitions.
	_, err = h.engine.FulfillRedemption(redemptionPair, request.ID, h.redemptionAdmin)
	assert.ErrorIs(t, err, ErrInvalidState)
	err = h.engine.CancelRedemption(redemptionPair, request.ID, h.taker)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestRedemptionExpiryAndCancel(t *testing.T) {
	h := newHarness(t)
	h.makeCalibratedOffer(t, 0)
	redemptionPair := h.pair.Reverse()
	require.NoError(t, h.ledger.Fund(h.taker, h.yieldMint, 1_000_000_000))

	request, err := h.engine.CreateRedemption(redemptionPair, h.taker, 1_000_000_000, h.now+day, 0)
	require.NoError(t, err)

	h.now += day + 1

	_, err = h.engine.FulfillRedemption(redemptionPair, request.ID, h.redemptionAdmin)
	assert.ErrorIs(t, err, ErrExpired)

	// A stranger cannot cancel; the redeemer can, even after expiry.
	err = h.engine.CancelRedemption(redemptionPair, request.ID, solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, ErrUnauthorized)
	require.NoError(t, h.engine.CancelRedemption(redemptionPair, request.ID, h.taker))

	balance, err := h.ledger.BalanceOf(h.taker, h.yieldMint)
	require.NoError(t, err)
	assert.EqualValues(t, 1_000_000_000, balance)
	assert.Zero(t, h.engine.Vaults().Balance(VaultRedemption, h.yieldMint))
}

func TestCloseOfferBlockedByPendingRedemptions(t *testing.T) {
	h := newHarness(t)
	h.makeCalibratedOffer(t, 0)
	require.NoError(t, h.ledger.Fund(h.taker, h.yieldMint, 1_000_000_000))

	request, err := h.engine.CreateRedemption(h.pair.Reverse(), h.taker, 1_000_000_000, h.now+day, 0)
	require.NoError(t, err)

	err = h.engine.CloseOffer(h.boss, h.pair)
	assert.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, h.engine.CancelRedemption(h.pair.Reverse(), request.ID, h.taker))
	require.NoError(t, h.engine.CloseOffer(h.boss, h.pair))

	_, err = h.engine.QuotePrice(h.pair)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRequestCounterSurvivesOfferRecreate(t *testing.T) {
	h := newHarness(t)
	h.makeCalibratedOffer(t, 0)
	require.NoError(t, h.ledger.Fund(h.taker, h.yieldMint, 2_000_000_000))

	request, err := h.engine.CreateRedemption(h.pair.Reverse(), h.taker, 1_000_000_000, h.now+day, 0)
	require.NoError(t, err)
	require.NoError(t, h.engine.CancelRedemption(h.pair.Reverse(), request.ID, h.taker))
	require.NoError(t, h.engine.CloseOffer(h.boss, h.pair))

	h.makeCalibratedOffer(t, 0)
	next, err := h.engine.CreateRedemption(h.pair.Reverse(), h.taker, 1_000_000_000, h.now+day, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, next.ID)
}

func TestVaultOperatorRules(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.ledger.Fund(h.boss, h.baseMint, 1_000))
	require.NoError(t, h.ledger.Fund(h.redemptionAdmin, h.baseMint, 1_000))

	err := h.engine.Deposit(VaultOffer, h.baseMint, 100, h.redemptionAdmin)
	assert.ErrorIs(t, err, ErrUnauthorized)
	require.NoError(t, h.engine.Deposit(VaultOffer, h.baseMint, 100, h.boss))

	require.NoError(t, h.engine.Deposit(VaultRedemption, h.baseMint, 100, h.redemptionAdmin))
	require.NoError(t, h.engine.Withdraw(VaultRedemption, h.baseMint, 40, h.redemptionAdmin))
	assert.EqualValues(t, 60, h.engine.Vaults().Balance(VaultRedemption, h.baseMint))

	err = h.engine.Withdraw(VaultRedemption, h.baseMint, 1_000, h.redemptionAdmin)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestVectorManagement(t *testing.T) {
	h := newHarness(t)
	h.makeCalibratedOffer(t, 0)

	err := h.engine.AddVector(h.taker, h.pair, pricing.Vector{
		BaseTime: h.now, BasePrice: 1, StepSeconds: 1,
	})
	assert.ErrorIs(t, err, ErrUnauthorized)

	future := pricing.Vector{
		BaseTime:    h.now + 30*day,
		BasePrice:   1_100_000_000,
		APR:         40_000,
		StepSeconds: uint64(day),
	}
	require.NoError(t, h.engine.AddVector(h.admin, h.pair, future))

	// The active vector cannot be deleted, only strictly future ones.
	err = h.engine.DeleteVector(h.admin, h.pair, h.now)
	assert.ErrorIs(t, err, ErrInvalidState)
	require.NoError(t, h.engine.DeleteVector(h.admin, h.pair, future.BaseTime))

	err = h.engine.DeleteVector(h.admin, h.pair, future.BaseTime)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNAVAdjustmentAcrossRegimeChange(t *testing.T) {
	h := newHarness(t)
	h.makeCalibratedOffer(t, 0)

	_, err := h.engine.NAVAdjustment(h.pair)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, h.engine.AddVector(h.admin, h.pair, pricing.Vector{
		BaseTime:    h.now + 10*day,
		BasePrice:   1_050_000_000,
		APR:         36_500,
		StepSeconds: uint64(day),
	}))
	h.now += 10 * day

	delta, err := h.engine.NAVAdjustment(h.pair)
	require.NoError(t, err)
	// New regime reprices to 1.05 * 1.0001 while the old one would have
	// accrued 11 steps on 1.0.
	assert.EqualValues(t, 1_050_105_000-1_001_100_000, delta)
}

func TestCirculatingSupplyAndTVL(t *testing.T) {
	h := newHarness(t)
	h.makeCalibratedOffer(t, 0)
	require.NoError(t, h.ledger.Fund(h.taker, h.baseMint, 2_000_000))

	_, err := h.engine.Take(h.pair, h.taker, 1_000_100, nil)
	require.NoError(t, err)

	supply, err := h.engine.CirculatingSupply(h.yieldMint)
	require.NoError(t, err)
	assert.EqualValues(t, 1_000_000_000, supply)

	tvl, err := h.engine.TVL(h.pair)
	require.NoError(t, err)
	assert.EqualValues(t, 1_000_100_000, tvl)
}

func TestPendingRequestsOrdering(t *testing.T) {
	h := newHarness(t)
	h.makeCalibratedOffer(t, 0)
	redemptionPair := h.pair.Reverse()
	require.NoError(t, h.ledger.Fund(h.taker, h.yieldMint, 3_000_000_000))

	first, err := h.engine.CreateRedemption(redemptionPair, h.taker, 1_000_000_000, h.now+day, 0)
	require.NoError(t, err)
	h.now += 10
	second, err := h.engine.CreateRedemption(redemptionPair, h.taker, 1_000_000_000, h.now+day, 1)
	require.NoError(t, err)

	pending := h.engine.PendingRequests()
	require.Len(t, pending, 2)
	assert.EqualValues(t, first.ID, pending[0].ID)
	assert.EqualValues(t, second.ID, pending[1].ID)

	require.NoError(t, h.engine.CancelRedemption(redemptionPair, first.ID, h.taker))
	pending = h.engine.PendingRequests()
	require.Len(t, pending, 1)
	assert.EqualValues(t, second.ID, pending[0].ID)
}

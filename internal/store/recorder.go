package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/meridian-fi/exchange/backend/internal/events"
)

// Recorder consumes the engine event stream and persists each event plus its
// projection in one transaction. It attaches to the Broadcaster as a
// synchronous sink so the projection is written in operation order.
type Recorder struct {
	store   *Store
	logger  *slog.Logger
	timeout time.Duration
}

func NewRecorder(store *Store, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:   store,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

// Publish implements events.Sink. Persistence failures are logged, not
// propagated; the engine state already moved on and the projection catches up
// on the next related event.
func (r *Recorder) Publish(e events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.record(ctx, e); err != nil {
		r.logger.Error("record event", "kind", e.Kind, "error", err)
	}
}

func (r *Recorder) record(ctx context.Context, e events.Event) error {
	now := time.Now().Unix()
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}

	return r.store.WithTx(ctx, func(tx *Tx) error {
		if err := r.store.InsertEventTx(ctx, tx, string(e.Kind), e.UnixTime, string(payload), now); err != nil {
			return err
		}

		switch e.Kind {
		case events.KindOfferMade:
			return r.store.UpsertOfferTx(ctx, tx, e.OfferMade, "open", now)
		case events.KindOfferClosed:
			return r.store.SetOfferStatusTx(ctx, tx, e.OfferClosed.TokenInMint, e.OfferClosed.TokenOutMint, "closed", now)
		case events.KindFeeUpdated:
			return r.store.SetOfferFeeTx(ctx, tx, e.FeeUpdated, now)
		case events.KindOfferTaken:
			return r.store.InsertTradeTx(ctx, tx, e.OfferTaken, e.UnixTime)
		case events.KindVectorAdded:
			return r.store.UpsertVectorTx(ctx, tx, e.VectorAdded, "active", now)
		case events.KindVectorDeleted:
			return r.store.UpsertVectorTx(ctx, tx, e.VectorDeleted, "deleted", now)
		case events.KindVectorEvicted:
			return r.store.UpsertVectorTx(ctx, tx, e.VectorEvicted, "evicted", now)
		case events.KindVaultDeposit:
			return r.store.UpsertVaultBalanceTx(ctx, tx, e.VaultDeposit, now)
		case events.KindVaultWithdraw:
			return r.store.UpsertVaultBalanceTx(ctx, tx, e.VaultWithdraw, now)
		case events.KindRedemptionRequested:
			return r.store.UpsertRedemptionRequestTx(ctx, tx, e.RedemptionRequested, now)
		case events.KindRedemptionFulfilled:
			return r.store.SetRequestFulfilledTx(ctx, tx, e.RedemptionFulfilled, now)
		case events.KindRedemptionCancelled:
			return r.store.SetRequestCancelledTx(ctx, tx, e.RedemptionCancelled, now)
		case events.KindKillSwitchToggled:
			// Audit row only; the switch itself lives in process state.
			return nil
		default:
			r.logger.Warn("unknown event kind", "kind", e.Kind)
			return nil
		}
	})
}

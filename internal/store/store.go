// Package store projects exchange state into postgres. The engine stays the
// source of truth; the store is a write-behind projection fed by the event
// stream, serving history queries and the API's list endpoints.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/meridian-fi/exchange/backend/internal/events"
	"github.com/meridian-fi/exchange/backend/internal/exchange"
	"github.com/meridian-fi/exchange/backend/internal/pricing"
)

type Store struct {
	db *DB
}

type DB struct {
	raw *sql.DB
}

type Tx struct {
	raw *sql.Tx
}

func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.raw.ExecContext(ctx, rebindPostgresPlaceholders(query), args...)
}

func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.raw.QueryContext(ctx, rebindPostgresPlaceholders(query), args...)
}

func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.raw.QueryRowContext(ctx, rebindPostgresPlaceholders(query), args...)
}

func (db *DB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	tx, err := db.raw.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Tx{raw: tx}, nil
}

func (db *DB) Close() error {
	return db.raw.Close()
}

func (tx *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return tx.raw.ExecContext(ctx, rebindPostgresPlaceholders(query), args...)
}

func (tx *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return tx.raw.QueryContext(ctx, rebindPostgresPlaceholders(query), args...)
}

func (tx *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return tx.raw.QueryRowContext(ctx, rebindPostgresPlaceholders(query), args...)
}

func (tx *Tx) Commit() error {
	return tx.raw.Commit()
}

func (tx *Tx) Rollback() error {
	return tx.raw.Rollback()
}

// rebindPostgresPlaceholders rewrites `?` placeholders to `$n`, skipping
// string literals.
func rebindPostgresPlaceholders(query string) string {
	var out strings.Builder
	out.Grow(len(query) + 16)

	arg := 1
	inSingleQuote := false
	for i := 0; i < len(query); i++ {
		ch := query[i]
		if ch == '\'' {
			out.WriteByte(ch)
			if inSingleQuote {
				// SQL escape: two single quotes inside a string literal.
				if i+1 < len(query) && query[i+1] == '\'' {
					out.WriteByte(query[i+1])
					i++
					continue
				}
				inSingleQuote = false
			} else {
				inSingleQuote = true
			}
			continue
		}

		if ch == '?' && !inSingleQuote {
			out.WriteByte('$')
			out.WriteString(strconv.Itoa(arg))
			arg++
			continue
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func NewStore(dbDSN string) (*Store, error) {
	db, err := sql.Open("pgx", dbDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetConnMaxIdleTime(30 * time.Second)
	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(16)

	pingCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &Store{db: &DB{raw: db}}
	if err := store.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) WithTx(ctx context.Context, fn func(*Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS offers (
			token_in_mint TEXT NOT NULL,
			token_out_mint TEXT NOT NULL,
			fee_bps INTEGER NOT NULL,
			needs_approval INTEGER NOT NULL,
			allow_permissionless INTEGER NOT NULL,
			status TEXT NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (token_in_mint, token_out_mint)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_offers_status ON offers(status);`,
		`CREATE TABLE IF NOT EXISTS pricing_vectors (
			token_in_mint TEXT NOT NULL,
			token_out_mint TEXT NOT NULL,
			start_time BIGINT NOT NULL,
			base_time BIGINT NOT NULL,
			base_price TEXT NOT NULL,
			apr TEXT NOT NULL,
			step_seconds TEXT NOT NULL,
			status TEXT NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (token_in_mint, token_out_mint, start_time)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_pricing_vectors_pair_status ON pricing_vectors(token_in_mint, token_out_mint, status, start_time DESC);`,
		`CREATE TABLE IF NOT EXISTS trades (
			id BIGSERIAL PRIMARY KEY,
			token_in_mint TEXT NOT NULL,
			token_out_mint TEXT NOT NULL,
			taker TEXT NOT NULL,
			gross_in TEXT NOT NULL,
			net_in TEXT NOT NULL,
			fee TEXT NOT NULL,
			amount_out TEXT NOT NULL,
			price TEXT NOT NULL,
			minted INTEGER NOT NULL,
			executed_at BIGINT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_pair_time ON trades(token_in_mint, token_out_mint, executed_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_taker_time ON trades(taker, executed_at DESC);`,
		`CREATE TABLE IF NOT EXISTS redemption_requests (
			token_in_mint TEXT NOT NULL,
			token_out_mint TEXT NOT NULL,
			request_id BIGINT NOT NULL,
			redeemer TEXT NOT NULL,
			amount TEXT NOT NULL,
			payout TEXT NOT NULL DEFAULT '0',
			expires_at BIGINT NOT NULL,
			status TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (token_in_mint, token_out_mint, request_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_redemption_requests_status_expiry ON redemption_requests(status, expires_at);`,
		`CREATE INDEX IF NOT EXISTS idx_redemption_requests_redeemer ON redemption_requests(redeemer, created_at DESC);`,
		`CREATE TABLE IF NOT EXISTS vault_balances (
			vault TEXT NOT NULL,
			mint TEXT NOT NULL,
			balance TEXT NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (vault, mint)
		);`,
		`CREATE TABLE IF NOT EXISTS user_nonces (
			redeemer TEXT PRIMARY KEY,
			nonce BIGINT NOT NULL,
			updated_at BIGINT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS protocol_events (
			id BIGSERIAL PRIMARY KEY,
			kind TEXT NOT NULL,
			unix_time BIGINT NOT NULL,
			payload_json TEXT NOT NULL,
			recorded_at BIGINT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_protocol_events_kind_time ON protocol_events(kind, unix_time DESC);`,
	}

	for _, query := range ddl {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

func (s *Store) UpsertOfferTx(ctx context.Context, tx *Tx, made *events.OfferMade, status string, now int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO offers (
			token_in_mint, token_out_mint, fee_bps, needs_approval,
			allow_permissionless, status, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(token_in_mint, token_out_mint) DO UPDATE SET
			fee_bps = excluded.fee_bps,
			needs_approval = excluded.needs_approval,
			allow_permissionless = excluded.allow_permissionless,
			status = excluded.status,
			updated_at = excluded.updated_at
	`,
		made.TokenInMint.String(),
		made.TokenOutMint.String(),
		int64(made.FeeBps),
		boolToInt(made.NeedsApproval),
		boolToInt(made.AllowPermissionless),
		status,
		now,
	)
	return err
}

func (s *Store) SetOfferStatusTx(ctx context.Context, tx *Tx, tokenIn, tokenOut solana.PublicKey, status string, now int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE offers SET status = ?, updated_at = ?
		WHERE token_in_mint = ? AND token_out_mint = ?
	`, status, now, tokenIn.String(), tokenOut.String())
	return err
}

func (s *Store) SetOfferFeeTx(ctx context.Context, tx *Tx, updated *events.FeeUpdated, now int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE offers SET fee_bps = ?, updated_at = ?
		WHERE token_in_mint = ? AND token_out_mint = ?
	`, int64(updated.NewFeeBps), now, updated.TokenInMint.String(), updated.TokenOutMint.String())
	return err
}

func (s *Store) UpsertVectorTx(ctx context.Context, tx *Tx, change *events.VectorChange, status string, now int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO pricing_vectors (
			token_in_mint, token_out_mint, start_time, base_time,
			base_price, apr, step_seconds, status, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(token_in_mint, token_out_mint, start_time) DO UPDATE SET
			base_time = excluded.base_time,
			base_price = excluded.base_price,
			apr = excluded.apr,
			step_seconds = excluded.step_seconds,
			status = excluded.status,
			updated_at = excluded.updated_at
	`,
		change.TokenInMint.String(),
		change.TokenOutMint.String(),
		change.StartTime,
		change.BaseTime,
		strconv.FormatUint(change.BasePrice, 10),
		strconv.FormatUint(change.APR, 10),
		strconv.FormatUint(change.StepSeconds, 10),
		status,
		now,
	)
	return err
}

func (s *Store) InsertTradeTx(ctx context.Context, tx *Tx, taken *events.OfferTaken, executedAt int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO trades (
			token_in_mint, token_out_mint, taker, gross_in, net_in,
			fee, amount_out, price, minted, executed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		taken.TokenInMint.String(),
		taken.TokenOutMint.String(),
		taken.Taker.String(),
		strconv.FormatUint(taken.GrossIn, 10),
		strconv.FormatUint(taken.NetIn, 10),
		strconv.FormatUint(taken.Fee, 10),
		strconv.FormatUint(taken.AmountOut, 10),
		strconv.FormatUint(taken.Price, 10),
		boolToInt(taken.Minted),
		executedAt,
	)
	return err
}

func (s *Store) UpsertRedemptionRequestTx(ctx context.Context, tx *Tx, requested *events.RedemptionRequested, now int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO redemption_requests (
			token_in_mint, token_out_mint, request_id, redeemer, amount,
			expires_at, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(token_in_mint, token_out_mint, request_id) DO UPDATE SET
			redeemer = excluded.redeemer,
			amount = excluded.amount,
			expires_at = excluded.expires_at,
			status = excluded.status,
			updated_at = excluded.updated_at
	`,
		requested.TokenInMint.String(),
		requested.TokenOutMint.String(),
		int64(requested.RequestID),
		requested.Redeemer.String(),
		strconv.FormatUint(requested.Amount, 10),
		requested.ExpiresAt,
		string(exchange.StatusPending),
		now,
		now,
	)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_nonces (redeemer, nonce, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(redeemer) DO UPDATE SET
			nonce = excluded.nonce,
			updated_at = excluded.updated_at
	`, requested.Redeemer.String(), int64(requested.Nonce)+1, now)
	return err
}

func (s *Store) SetRequestFulfilledTx(ctx context.Context, tx *Tx, fulfilled *events.RedemptionFulfilled, now int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE redemption_requests SET status = ?, payout = ?, updated_at = ?
		WHERE token_in_mint = ? AND token_out_mint = ? AND request_id = ?
	`,
		string(exchange.StatusExecuted),
		strconv.FormatUint(fulfilled.Payout, 10),
		now,
		fulfilled.TokenInMint.String(),
		fulfilled.TokenOutMint.String(),
		int64(fulfilled.RequestID),
	)
	return err
}

func (s *Store) SetRequestCancelledTx(ctx context.Context, tx *Tx, cancelled *events.RedemptionCancelled, now int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE redemption_requests SET status = ?, updated_at = ?
		WHERE token_in_mint = ? AND token_out_mint = ? AND request_id = ?
	`,
		string(exchange.StatusCancelled),
		now,
		cancelled.TokenInMint.String(),
		cancelled.TokenOutMint.String(),
		int64(cancelled.RequestID),
	)
	return err
}

func (s *Store) UpsertVaultBalanceTx(ctx context.Context, tx *Tx, movement *events.VaultMovement, now int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO vault_balances (vault, mint, balance, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(vault, mint) DO UPDATE SET
			balance = excluded.balance,
			updated_at = excluded.updated_at
	`,
		movement.Vault,
		movement.Mint.String(),
		strconv.FormatUint(movement.Balance, 10),
		now,
	)
	return err
}

func (s *Store) InsertEventTx(ctx context.Context, tx *Tx, kind string, unixTime int64, payloadJSON string, now int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO protocol_events (kind, unix_time, payload_json, recorded_at)
		VALUES (?, ?, ?, ?)
	`, kind, unixTime, payloadJSON, now)
	return err
}

// RestoreVectors rehydrates an offer's live vector set from the projection,
// used when the API server starts against an existing database.
func (s *Store) RestoreVectors(ctx context.Context, tokenIn, tokenOut solana.PublicKey) ([]pricing.Vector, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT start_time, base_time, base_price, apr, step_seconds
		FROM pricing_vectors
		WHERE token_in_mint = ? AND token_out_mint = ? AND status = 'active'
		ORDER BY start_time ASC
	`, tokenIn.String(), tokenOut.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []pricing.Vector
	for rows.Next() {
		var v pricing.Vector
		var basePrice, apr, stepSeconds string
		if err := rows.Scan(&v.StartTime, &v.BaseTime, &basePrice, &apr, &stepSeconds); err != nil {
			return nil, err
		}
		if v.BasePrice, err = strconv.ParseUint(basePrice, 10, 64); err != nil {
			return nil, fmt.Errorf("corrupt base_price %q: %w", basePrice, err)
		}
		if v.APR, err = strconv.ParseUint(apr, 10, 64); err != nil {
			return nil, fmt.Errorf("corrupt apr %q: %w", apr, err)
		}
		if v.StepSeconds, err = strconv.ParseUint(stepSeconds, 10, 64); err != nil {
			return nil, fmt.Errorf("corrupt step_seconds %q: %w", stepSeconds, err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// NonceOf reads the projected nonce; missing rows mean zero.
func (s *Store) NonceOf(ctx context.Context, redeemer solana.PublicKey) (uint64, error) {
	row := s.db.QueryRowContext(ctx, `SELECT nonce FROM user_nonces WHERE redeemer = ?`, redeemer.String())
	var nonce int64
	err := row.Scan(&nonce)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(nonce), nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

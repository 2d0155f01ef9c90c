package store

import (
	"context"
	"fmt"
	"strings"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

type TradeFilter struct {
	TokenInMint  string
	TokenOutMint string
	Taker        string
	Limit        int
	Offset       int
}

type TradeRecord struct {
	ID           int64  `json:"id"`
	TokenInMint  string `json:"token_in_mint"`
	TokenOutMint string `json:"token_out_mint"`
	Taker        string `json:"taker"`
	GrossIn      string `json:"gross_in"`
	NetIn        string `json:"net_in"`
	Fee          string `json:"fee"`
	AmountOut    string `json:"amount_out"`
	Price        string `json:"price"`
	Minted       bool   `json:"minted"`
	ExecutedAt   int64  `json:"executed_at"`
}

type RequestFilter struct {
	TokenInMint  string
	TokenOutMint string
	Redeemer     string
	Status       string
	Limit        int
	Offset       int
}

type RequestRecord struct {
	TokenInMint  string `json:"token_in_mint"`
	TokenOutMint string `json:"token_out_mint"`
	RequestID    uint64 `json:"request_id"`
	Redeemer     string `json:"redeemer"`
	Amount       string `json:"amount"`
	Payout       string `json:"payout"`
	ExpiresAt    int64  `json:"expires_at"`
	Status       string `json:"status"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
}

type EventFilter struct {
	Kind   string
	Since  int64
	Limit  int
	Offset int
}

type EventRecord struct {
	ID          int64  `json:"id"`
	Kind        string `json:"kind"`
	UnixTime    int64  `json:"unix_time"`
	PayloadJSON string `json:"payload_json"`
	RecordedAt  int64  `json:"recorded_at"`
}

type VaultBalanceRecord struct {
	Vault     string `json:"vault"`
	Mint      string `json:"mint"`
	Balance   string `json:"balance"`
	UpdatedAt int64  `json:"updated_at"`
}

func (s *Store) ListTrades(ctx context.Context, filter TradeFilter) ([]TradeRecord, int, int, error) {
	limit, offset := normalizePagination(filter.Limit, filter.Offset)
	clauses := []string{"1 = 1"}
	args := make([]any, 0, 5)

	if filter.TokenInMint != "" {
		clauses = append(clauses, "token_in_mint = ?")
		args = append(args, filter.TokenInMint)
	}
	if filter.TokenOutMint != "" {
		clauses = append(clauses, "token_out_mint = ?")
		args = append(args, filter.TokenOutMint)
	}
	if filter.Taker != "" {
		clauses = append(clauses, "taker = ?")
		args = append(args, filter.Taker)
	}

	query := fmt.Sprintf(`
		SELECT
			id,
			token_in_mint,
			token_out_mint,
			taker,
			gross_in,
			net_in,
			fee,
			amount_out,
			price,
			minted,
			executed_at
		FROM trades
		WHERE %s
		ORDER BY executed_at DESC, id DESC
		LIMIT ? OFFSET ?
	`, strings.Join(clauses, " AND "))
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, 0, err
	}
	defer rows.Close()

	items := make([]TradeRecord, 0, limit)
	for rows.Next() {
		var item TradeRecord
		var minted int
		if err := rows.Scan(
			&item.ID,
			&item.TokenInMint,
			&item.TokenOutMint,
			&item.Taker,
			&item.GrossIn,
			&item.NetIn,
			&item.Fee,
			&item.AmountOut,
			&item.Price,
			&minted,
			&item.ExecutedAt,
		); err != nil {
			return nil, 0, 0, err
		}
		item.Minted = minted == 1
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, 0, err
	}

	return items, limit, offset, nil
}

func (s *Store) ListRedemptionRequests(ctx context.Context, filter RequestFilter) ([]RequestRecord, int, int, error) {
	limit, offset := normalizePagination(filter.Limit, filter.Offset)
	clauses := []string{"1 = 1"}
	args := make([]any, 0, 6)

	if filter.TokenInMint != "" {
		clauses = append(clauses, "token_in_mint = ?")
		args = append(args, filter.TokenInMint)
	}
	if filter.TokenOutMint != "" {
		clauses = append(clauses, "token_out_mint = ?")
		args = append(args, filter.TokenOutMint)
	}
	if filter.Redeemer != "" {
		clauses = append(clauses, "redeemer = ?")
		args = append(args, filter.Redeemer)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, filter.Status)
	}

	query := fmt.Sprintf(`
		SELECT
			token_in_mint,
			token_out_mint,
			request_id,
			redeemer,
			amount,
			payout,
			expires_at,
			status,
			created_at,
			updated_at
		FROM redemption_requests
		WHERE %s
		ORDER BY created_at DESC, request_id DESC
		LIMIT ? OFFSET ?
	`, strings.Join(clauses, " AND "))
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, 0, err
	}
	defer rows.Close()

	items := make([]RequestRecord, 0, limit)
	for rows.Next() {
		var item RequestRecord
		var requestID int64
		if err := rows.Scan(
			&item.TokenInMint,
			&item.TokenOutMint,
			&requestID,
			&item.Redeemer,
			&item.Amount,
			&item.Payout,
			&item.ExpiresAt,
			&item.Status,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, 0, 0, err
		}
		item.RequestID = uint64(requestID)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, 0, err
	}

	return items, limit, offset, nil
}

func (s *Store) ListEvents(ctx context.Context, filter EventFilter) ([]EventRecord, int, int, error) {
	limit, offset := normalizePagination(filter.Limit, filter.Offset)
	clauses := []string{"1 = 1"}
	args := make([]any, 0, 4)

	if filter.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.Since > 0 {
		clauses = append(clauses, "unix_time >= ?")
		args = append(args, filter.Since)
	}

	query := fmt.Sprintf(`
		SELECT id, kind, unix_time, payload_json, recorded_at
		FROM protocol_events
		WHERE %s
		ORDER BY unix_time DESC, id DESC
		LIMIT ? OFFSET ?
	`, strings.Join(clauses, " AND "))
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, 0, err
	}
	defer rows.Close()

	items := make([]EventRecord, 0, limit)
	for rows.Next() {
		var item EventRecord
		if err := rows.Scan(&item.ID, &item.Kind, &item.UnixTime, &item.PayloadJSON, &item.RecordedAt); err != nil {
			return nil, 0, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, 0, err
	}

	return items, limit, offset, nil
}

func (s *Store) ListVaultBalances(ctx context.Context, vault string) ([]VaultBalanceRecord, error) {
	clauses := []string{"1 = 1"}
	args := make([]any, 0, 1)
	if vault != "" {
		clauses = append(clauses, "vault = ?")
		args = append(args, vault)
	}

	query := fmt.Sprintf(`
		SELECT vault, mint, balance, updated_at
		FROM vault_balances
		WHERE %s
		ORDER BY vault ASC, mint ASC
	`, strings.Join(clauses, " AND "))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]VaultBalanceRecord, 0, 8)
	for rows.Next() {
		var item VaultBalanceRecord
		if err := rows.Scan(&item.Vault, &item.Mint, &item.Balance, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func normalizePagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

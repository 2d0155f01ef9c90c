// Package keeper runs the redemption settlement loop. It polls the api-server
// for pending redemption requests, cancels the ones that expired, and fulfills
// the rest under the redemption-admin identity loaded from a Solana keypair
// file.
package keeper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/meridian-fi/exchange/backend/internal/config"
)

var errSkipRequest = errors.New("skip request")

type Service struct {
	cfg    config.KeeperConfig
	client *http.Client
	signer solana.PrivateKey
	logger *slog.Logger
}

// pendingRequest mirrors the api-server's pending redemption payload.
type pendingRequest struct {
	ID   uint64 `json:"id"`
	Pair struct {
		TokenInMint  solana.PublicKey `json:"token_in_mint"`
		TokenOutMint solana.PublicKey `json:"token_out_mint"`
	} `json:"pair"`
	Redeemer  solana.PublicKey `json:"redeemer"`
	Amount    uint64           `json:"amount"`
	ExpiresAt int64            `json:"expires_at"`
	Status    string           `json:"status"`
	CreatedAt int64            `json:"created_at"`
}

type pendingListResponse struct {
	Items []pendingRequest `json:"items"`
}

type requestActionPayload struct {
	Caller       string `json:"caller"`
	TokenInMint  string `json:"token_in_mint"`
	TokenOutMint string `json:"token_out_mint"`
	RequestID    uint64 `json:"request_id"`
}

type fulfillResponse struct {
	Payout string `json:"payout"`
}

type apiErrorResponse struct {
	Error string `json:"error"`
}

func New(cfg config.KeeperConfig, logger *slog.Logger) (*Service, error) {
	signer, err := solana.PrivateKeyFromSolanaKeygenFile(cfg.KeypairPath)
	if err != nil {
		return nil, fmt.Errorf("load keypair %q: %w", cfg.KeypairPath, err)
	}

	return &Service{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.RequestTimeout},
		signer: signer,
		logger: logger,
	}, nil
}

func (s *Service) Run(ctx context.Context) error {
	s.logger.Info("keeper started",
		"api_base_url", s.cfg.APIBaseURL,
		"caller", s.signer.PublicKey(),
		"poll_interval", s.cfg.PollInterval,
	)

	if err := s.tick(ctx); err != nil {
		s.logger.Error("keeper tick failed", "err", err)
	}

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("keeper stopped")
			return nil
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				s.logger.Error("keeper tick failed", "err", err)
			}
		}
	}
}

func (s *Service) tick(ctx context.Context) error {
	pending, err := s.fetchPendingRequests(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	now := time.Now().Unix()
	sort.Slice(pending, func(i, j int) bool {
		iExpired := pending[i].ExpiresAt <= now
		jExpired := pending[j].ExpiresAt <= now
		if iExpired != jExpired {
			return !iExpired
		}
		if pending[i].CreatedAt != pending[j].CreatedAt {
			return pending[i].CreatedAt < pending[j].CreatedAt
		}
		return pending[i].ID < pending[j].ID
	})

	limit := s.cfg.MaxRequestsPerTick
	if limit > len(pending) {
		limit = len(pending)
	}

	fulfilled := 0
	cancelled := 0
	skipped := 0
	for idx := 0; idx < limit; idx++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		candidate := pending[idx]
		if candidate.ExpiresAt <= now {
			if cancelErr := s.cancelRequest(ctx, candidate); cancelErr != nil {
				skipped++
				s.logger.Warn("expired request cancel failed",
					"request_id", candidate.ID,
					"redeemer", candidate.Redeemer,
					"err", cancelErr,
				)
				continue
			}
			cancelled++
			continue
		}

		err := s.fulfillRequest(ctx, candidate)
		if err == nil {
			fulfilled++
			continue
		}
		skipped++
		if errors.Is(err, errSkipRequest) {
			s.logger.Warn("request skipped", "request_id", candidate.ID, "reason", err)
		} else {
			s.logger.Warn("request fulfillment failed", "request_id", candidate.ID, "err", err)
		}
	}

	s.logger.Info("keeper tick complete",
		"pending", len(pending),
		"attempted", limit,
		"fulfilled", fulfilled,
		"cancelled", cancelled,
		"skipped", skipped,
	)
	return nil
}

func (s *Service) fetchPendingRequests(ctx context.Context) ([]pendingRequest, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.APIBaseURL+"/api/v1/redemptions/pending", nil)
	if err != nil {
		return nil, fmt.Errorf("build pending request: %w", err)
	}

	response, err := s.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("fetch pending redemptions: %w", err)
	}
	defer drainAndClose(response.Body)

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch pending redemptions: %s", describeAPIError(response))
	}

	var payload pendingListResponse
	if err := json.NewDecoder(response.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode pending redemptions: %w", err)
	}
	return payload.Items, nil
}

func (s *Service) fulfillRequest(ctx context.Context, candidate pendingRequest) error {
	status, body, err := s.postAction(ctx, "/api/v1/redemptions/fulfill", candidate)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		// Conflicts and gone requests mean another actor settled it first.
		if status == http.StatusConflict || status == http.StatusGone {
			return fmt.Errorf("%w: %s", errSkipRequest, bodyError(body))
		}
		return fmt.Errorf("fulfill rejected: %s", bodyError(body))
	}

	var result fulfillResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("decode fulfill response: %w", err)
	}

	s.logger.Info("redemption fulfilled",
		"request_id", candidate.ID,
		"redeemer", candidate.Redeemer,
		"amount", candidate.Amount,
		"payout", result.Payout,
	)
	return nil
}

func (s *Service) cancelRequest(ctx context.Context, candidate pendingRequest) error {
	status, body, err := s.postAction(ctx, "/api/v1/redemptions/cancel", candidate)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		if status == http.StatusConflict {
			// Already settled elsewhere.
			return nil
		}
		return fmt.Errorf("cancel rejected: %s", bodyError(body))
	}

	s.logger.Info("expired redemption cancelled",
		"request_id", candidate.ID,
		"redeemer", candidate.Redeemer,
		"expired_at", candidate.ExpiresAt,
	)
	return nil
}

func (s *Service) postAction(ctx context.Context, path string, candidate pendingRequest) (int, []byte, error) {
	payload, err := json.Marshal(requestActionPayload{
		Caller:       s.signer.PublicKey().String(),
		TokenInMint:  candidate.Pair.TokenInMint.String(),
		TokenOutMint: candidate.Pair.TokenOutMint.String(),
		RequestID:    candidate.ID,
	})
	if err != nil {
		return 0, nil, fmt.Errorf("marshal action payload: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIBaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("build action request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := s.client.Do(request)
	if err != nil {
		return 0, nil, fmt.Errorf("post %s: %w", path, err)
	}
	defer drainAndClose(response.Body)

	body, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		return 0, nil, fmt.Errorf("read %s response: %w", path, err)
	}
	return response.StatusCode, body, nil
}

func describeAPIError(response *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		return response.Status
	}
	if message := bodyError(body); message != "" {
		return fmt.Sprintf("%s: %s", response.Status, message)
	}
	return response.Status
}

func bodyError(body []byte) string {
	var payload apiErrorResponse
	if err := json.Unmarshal(body, &payload); err != nil || payload.Error == "" {
		return string(bytes.TrimSpace(body))
	}
	return payload.Error
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

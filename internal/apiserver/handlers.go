package apiserver

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/meridian-fi/exchange/backend/internal/approval"
	"github.com/meridian-fi/exchange/backend/internal/exchange"
	"github.com/meridian-fi/exchange/backend/internal/pricing"
	"github.com/meridian-fi/exchange/backend/internal/store"
)

type offerView struct {
	TokenInMint         string           `json:"token_in_mint"`
	TokenOutMint        string           `json:"token_out_mint"`
	FeeBps              uint16           `json:"fee_bps"`
	NeedsApproval       bool             `json:"needs_approval"`
	AllowPermissionless bool             `json:"allow_permissionless"`
	Vectors             []pricing.Vector `json:"vectors"`
}

type makeOfferRequest struct {
	Authority           string `json:"authority"`
	TokenInMint         string `json:"token_in_mint"`
	TokenOutMint        string `json:"token_out_mint"`
	FeeBps              uint16 `json:"fee_bps"`
	NeedsApproval       bool   `json:"needs_approval"`
	AllowPermissionless bool   `json:"allow_permissionless"`
}

func (s *Service) handleOffers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		offers := s.engine.Offers()
		items := make([]offerView, 0, len(offers))
		for _, offer := range offers {
			items = append(items, offerView{
				TokenInMint:         offer.Pair.TokenInMint.String(),
				TokenOutMint:        offer.Pair.TokenOutMint.String(),
				FeeBps:              offer.FeeBps,
				NeedsApproval:       offer.NeedsApproval,
				AllowPermissionless: offer.AllowPermissionless,
				Vectors:             offer.Vectors(),
			})
		}
		s.respondJSON(w, http.StatusOK, listResponse[offerView]{Items: items, Limit: len(items)})
	case http.MethodPost:
		var request makeOfferRequest
		if err := decodeJSONBody(r, &request); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		authority, err := parsePubkeyField(request.Authority, "authority")
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		pair, err := parsePairFields(request.TokenInMint, request.TokenOutMint)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.engine.MakeOffer(authority, exchange.OfferParams{
			Pair:                pair,
			FeeBps:              request.FeeBps,
			NeedsApproval:       request.NeedsApproval,
			AllowPermissionless: request.AllowPermissionless,
		}); err != nil {
			s.respondEngineError(w, err)
			return
		}
		s.respondJSON(w, http.StatusCreated, healthResponse{OK: true})
	default:
		s.respondMethodNotAllowed(w)
	}
}

type pairAuthorityRequest struct {
	Authority    string `json:"authority"`
	TokenInMint  string `json:"token_in_mint"`
	TokenOutMint string `json:"token_out_mint"`
}

func (s *Service) handleCloseOffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondMethodNotAllowed(w)
		return
	}
	var request pairAuthorityRequest
	if err := decodeJSONBody(r, &request); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	authority, pair, err := parseAuthorityAndPair(request.Authority, request.TokenInMint, request.TokenOutMint)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.CloseOffer(authority, pair); err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, healthResponse{OK: true})
}

type updateFeeRequest struct {
	Authority    string `json:"authority"`
	TokenInMint  string `json:"token_in_mint"`
	TokenOutMint string `json:"token_out_mint"`
	FeeBps       uint16 `json:"fee_bps"`
}

func (s *Service) handleUpdateFee(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondMethodNotAllowed(w)
		return
	}
	var request updateFeeRequest
	if err := decodeJSONBody(r, &request); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	authority, pair, err := parseAuthorityAndPair(request.Authority, request.TokenInMint, request.TokenOutMint)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.UpdateFee(authority, pair, request.FeeBps); err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, healthResponse{OK: true})
}

func (s *Service) handlePrice(w http.ResponseWriter, r *http.Request) {
	s.handlePairQuery(w, r, func(pair exchange.Pair) (any, error) {
		price, err := s.engine.QuotePrice(pair)
		if err != nil {
			return nil, err
		}
		return map[string]string{"price": strconv.FormatUint(price, 10)}, nil
	})
}

func (s *Service) handleAPY(w http.ResponseWriter, r *http.Request) {
	s.handlePairQuery(w, r, func(pair exchange.Pair) (any, error) {
		apy, err := s.engine.QuoteAPY(pair)
		if err != nil {
			return nil, err
		}
		return map[string]string{"apy": strconv.FormatUint(apy, 10)}, nil
	})
}

func (s *Service) handleTVL(w http.ResponseWriter, r *http.Request) {
	s.handlePairQuery(w, r, func(pair exchange.Pair) (any, error) {
		tvl, err := s.engine.TVL(pair)
		if err != nil {
			return nil, err
		}
		return map[string]string{"tvl": strconv.FormatUint(tvl, 10)}, nil
	})
}

func (s *Service) handleNAVAdjustment(w http.ResponseWriter, r *http.Request) {
	s.handlePairQuery(w, r, func(pair exchange.Pair) (any, error) {
		delta, err := s.engine.NAVAdjustment(pair)
		if err != nil {
			return nil, err
		}
		return map[string]string{"adjustment": strconv.FormatInt(delta, 10)}, nil
	})
}

func (s *Service) handlePairQuery(w http.ResponseWriter, r *http.Request, fn func(exchange.Pair) (any, error)) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	pair, err := parsePairFields(r.URL.Query().Get("token_in_mint"), r.URL.Query().Get("token_out_mint"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	payload, err := fn(pair)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, payload)
}

type approvalPayload struct {
	Program    string `json:"program"`
	User       string `json:"user"`
	ExpiryUnix int64  `json:"expiry_unix"`
	Signer     string `json:"signer"`
	Signature  string `json:"signature"`
}

type takeRequest struct {
	Taker        string           `json:"taker"`
	TokenInMint  string           `json:"token_in_mint"`
	TokenOutMint string           `json:"token_out_mint"`
	GrossIn      string           `json:"gross_in"`
	Approval     *approvalPayload `json:"approval,omitempty"`
}

func (s *Service) handleTake(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondMethodNotAllowed(w)
		return
	}
	var request takeRequest
	if err := decodeJSONBody(r, &request); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	taker, err := parsePubkeyField(request.Taker, "taker")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	pair, err := parsePairFields(request.TokenInMint, request.TokenOutMint)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	grossIn, err := parseAmountField(request.GrossIn, "gross_in")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	var env *approval.Envelope
	if request.Approval != nil {
		env, err = buildApprovalEnvelope(request.Approval)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	result, err := s.engine.Take(pair, taker, grossIn, env)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

type addVectorRequest struct {
	Authority    string `json:"authority"`
	TokenInMint  string `json:"token_in_mint"`
	TokenOutMint string `json:"token_out_mint"`
	BaseTime     int64  `json:"base_time"`
	BasePrice    string `json:"base_price"`
	APR          string `json:"apr"`
	StepSeconds  string `json:"step_seconds"`
}

func (s *Service) handleVectors(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		pair, err := parsePairFields(r.URL.Query().Get("token_in_mint"), r.URL.Query().Get("token_out_mint"))
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		offer, err := s.engine.GetOffer(pair)
		if err != nil {
			s.respondEngineError(w, err)
			return
		}
		vectors := offer.Vectors()
		s.respondJSON(w, http.StatusOK, listResponse[pricing.Vector]{Items: vectors, Limit: len(vectors)})
	case http.MethodPost:
		var request addVectorRequest
		if err := decodeJSONBody(r, &request); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		authority, pair, err := parseAuthorityAndPair(request.Authority, request.TokenInMint, request.TokenOutMint)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		basePrice, err := parseAmountField(request.BasePrice, "base_price")
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		apr, err := parseAmountField(request.APR, "apr")
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		stepSeconds, err := parseAmountField(request.StepSeconds, "step_seconds")
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.engine.AddVector(authority, pair, pricing.Vector{
			BaseTime:    request.BaseTime,
			BasePrice:   basePrice,
			APR:         apr,
			StepSeconds: stepSeconds,
		}); err != nil {
			s.respondEngineError(w, err)
			return
		}
		s.respondJSON(w, http.StatusCreated, healthResponse{OK: true})
	default:
		s.respondMethodNotAllowed(w)
	}
}

type deleteVectorRequest struct {
	Authority    string `json:"authority"`
	TokenInMint  string `json:"token_in_mint"`
	TokenOutMint string `json:"token_out_mint"`
	StartTime    int64  `json:"start_time"`
}

func (s *Service) handleDeleteVector(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondMethodNotAllowed(w)
		return
	}
	var request deleteVectorRequest
	if err := decodeJSONBody(r, &request); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	authority, pair, err := parseAuthorityAndPair(request.Authority, request.TokenInMint, request.TokenOutMint)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.DeleteVector(authority, pair, request.StartTime); err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, healthResponse{OK: true})
}

func (s *Service) handleVaultBalances(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	items, err := s.store.ListVaultBalances(r.Context(), strings.TrimSpace(r.URL.Query().Get("vault")))
	if err != nil {
		s.logger.Error("list vault balances failed", "err", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list vault balances")
		return
	}
	s.respondJSON(w, http.StatusOK, listResponse[store.VaultBalanceRecord]{Items: items, Limit: len(items)})
}

type vaultMovementRequest struct {
	Operator string `json:"operator"`
	Vault    string `json:"vault"`
	Mint     string `json:"mint"`
	Amount   string `json:"amount"`
}

func (s *Service) handleVaultDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleVaultMovement(w, r, s.engine.Deposit)
}

func (s *Service) handleVaultWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleVaultMovement(w, r, s.engine.Withdraw)
}

func (s *Service) handleVaultMovement(
	w http.ResponseWriter,
	r *http.Request,
	move func(exchange.VaultKind, solana.PublicKey, uint64, solana.PublicKey) error,
) {
	if r.Method != http.MethodPost {
		s.respondMethodNotAllowed(w)
		return
	}
	var request vaultMovementRequest
	if err := decodeJSONBody(r, &request); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	operator, err := parsePubkeyField(request.Operator, "operator")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	mint, err := parsePubkeyField(request.Mint, "mint")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	amount, err := parseAmountField(request.Amount, "amount")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := move(exchange.VaultKind(strings.TrimSpace(request.Vault)), mint, amount, operator); err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, healthResponse{OK: true})
}

type createRedemptionRequest struct {
	Redeemer     string `json:"redeemer"`
	TokenInMint  string `json:"token_in_mint"`
	TokenOutMint string `json:"token_out_mint"`
	Amount       string `json:"amount"`
	ExpiresAt    int64  `json:"expires_at"`
	Nonce        uint64 `json:"nonce"`
}

func (s *Service) handleRedemptions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit, err := parseOptionalInt(r, "limit", 0)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		offset, err := parseOptionalInt(r, "offset", 0)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		items, normalizedLimit, normalizedOffset, err := s.store.ListRedemptionRequests(r.Context(), store.RequestFilter{
			TokenInMint:  strings.TrimSpace(r.URL.Query().Get("token_in_mint")),
			TokenOutMint: strings.TrimSpace(r.URL.Query().Get("token_out_mint")),
			Redeemer:     strings.TrimSpace(r.URL.Query().Get("redeemer")),
			Status:       strings.TrimSpace(r.URL.Query().Get("status")),
			Limit:        limit,
			Offset:       offset,
		})
		if err != nil {
			s.logger.Error("list redemption requests failed", "err", err)
			s.respondError(w, http.StatusInternalServerError, "failed to list redemption requests")
			return
		}
		s.respondJSON(w, http.StatusOK, listResponse[store.RequestRecord]{
			Items:  items,
			Limit:  normalizedLimit,
			Offset: normalizedOffset,
		})
	case http.MethodPost:
		var request createRedemptionRequest
		if err := decodeJSONBody(r, &request); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		redeemer, err := parsePubkeyField(request.Redeemer, "redeemer")
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		pair, err := parsePairFields(request.TokenInMint, request.TokenOutMint)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		amount, err := parseAmountField(request.Amount, "amount")
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		created, err := s.engine.CreateRedemption(pair, redeemer, amount, request.ExpiresAt, request.Nonce)
		if err != nil {
			s.respondEngineError(w, err)
			return
		}
		s.respondJSON(w, http.StatusCreated, created)
	default:
		s.respondMethodNotAllowed(w)
	}
}

func (s *Service) handlePendingRedemptions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	pending := s.engine.PendingRequests()
	s.respondJSON(w, http.StatusOK, listResponse[exchange.RedemptionRequest]{Items: pending, Limit: len(pending)})
}

type requestActionRequest struct {
	Caller       string `json:"caller"`
	TokenInMint  string `json:"token_in_mint"`
	TokenOutMint string `json:"token_out_mint"`
	RequestID    uint64 `json:"request_id"`
}

func (s *Service) handleFulfillRedemption(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondMethodNotAllowed(w)
		return
	}
	var request requestActionRequest
	if err := decodeJSONBody(r, &request); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, pair, err := parseAuthorityAndPair(request.Caller, request.TokenInMint, request.TokenOutMint)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	payout, err := s.engine.FulfillRedemption(pair, request.RequestID, caller)
	if err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"payout": strconv.FormatUint(payout, 10)})
}

func (s *Service) handleCancelRedemption(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.respondMethodNotAllowed(w)
		return
	}
	var request requestActionRequest
	if err := decodeJSONBody(r, &request); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	caller, pair, err := parseAuthorityAndPair(request.Caller, request.TokenInMint, request.TokenOutMint)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.engine.CancelRedemption(pair, request.RequestID, caller); err != nil {
		s.respondEngineError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, healthResponse{OK: true})
}

func (s *Service) handleNonce(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	redeemer, err := parsePubkeyField(r.URL.Query().Get("redeemer"), "redeemer")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]uint64{"nonce": s.engine.NonceOf(redeemer)})
}

func (s *Service) handleTrades(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	limit, err := parseOptionalInt(r, "limit", 0)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := parseOptionalInt(r, "offset", 0)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, normalizedLimit, normalizedOffset, err := s.store.ListTrades(r.Context(), store.TradeFilter{
		TokenInMint:  strings.TrimSpace(r.URL.Query().Get("token_in_mint")),
		TokenOutMint: strings.TrimSpace(r.URL.Query().Get("token_out_mint")),
		Taker:        strings.TrimSpace(r.URL.Query().Get("taker")),
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		s.logger.Error("list trades failed", "err", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}
	s.respondJSON(w, http.StatusOK, listResponse[store.TradeRecord]{
		Items:  items,
		Limit:  normalizedLimit,
		Offset: normalizedOffset,
	})
}

func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	limit, err := parseOptionalInt(r, "limit", 0)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := parseOptionalInt(r, "offset", 0)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	since, err := parseOptionalInt64(r, "since", 0)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, normalizedLimit, normalizedOffset, err := s.store.ListEvents(r.Context(), store.EventFilter{
		Kind:   strings.TrimSpace(r.URL.Query().Get("kind")),
		Since:  since,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		s.logger.Error("list events failed", "err", err)
		s.respondError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	s.respondJSON(w, http.StatusOK, listResponse[store.EventRecord]{
		Items:  items,
		Limit:  normalizedLimit,
		Offset: normalizedOffset,
	})
}

type killSwitchRequest struct {
	Authority string `json:"authority"`
	Enabled   bool   `json:"enabled"`
}

func (s *Service) handleKillSwitch(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.respondJSON(w, http.StatusOK, map[string]bool{"enabled": s.engine.State().Paused()})
	case http.MethodPost:
		var request killSwitchRequest
		if err := decodeJSONBody(r, &request); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		authority, err := parsePubkeyField(request.Authority, "authority")
		if err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := s.engine.SetKillSwitch(authority, request.Enabled); err != nil {
			s.respondEngineError(w, err)
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]bool{"enabled": request.Enabled})
	default:
		s.respondMethodNotAllowed(w)
	}
}

func buildApprovalEnvelope(payload *approvalPayload) (*approval.Envelope, error) {
	program, err := parsePubkeyField(payload.Program, "approval.program")
	if err != nil {
		return nil, err
	}
	user, err := parsePubkeyField(payload.User, "approval.user")
	if err != nil {
		return nil, err
	}
	signer, err := parsePubkeyField(payload.Signer, "approval.signer")
	if err != nil {
		return nil, err
	}
	signature, err := solana.SignatureFromBase58(strings.TrimSpace(payload.Signature))
	if err != nil {
		return nil, fmt.Errorf("invalid approval.signature: %w", err)
	}
	return &approval.Envelope{
		Message: approval.Message{
			Program:    program,
			User:       user,
			ExpiryUnix: payload.ExpiryUnix,
		},
		Signatures: []solana.Signature{signature},
		Signer:     signer,
	}, nil
}

func parseAuthorityAndPair(authority, tokenIn, tokenOut string) (solana.PublicKey, exchange.Pair, error) {
	key, err := parsePubkeyField(authority, "authority")
	if err != nil {
		return solana.PublicKey{}, exchange.Pair{}, err
	}
	pair, err := parsePairFields(tokenIn, tokenOut)
	if err != nil {
		return solana.PublicKey{}, exchange.Pair{}, err
	}
	return key, pair, nil
}

func parsePairFields(tokenIn, tokenOut string) (exchange.Pair, error) {
	in, err := parsePubkeyField(tokenIn, "token_in_mint")
	if err != nil {
		return exchange.Pair{}, err
	}
	out, err := parsePubkeyField(tokenOut, "token_out_mint")
	if err != nil {
		return exchange.Pair{}, err
	}
	return exchange.Pair{TokenInMint: in, TokenOutMint: out}, nil
}

func parsePubkeyField(raw, name string) (solana.PublicKey, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return solana.PublicKey{}, fmt.Errorf("%s is required", name)
	}
	key, err := solana.PublicKeyFromBase58(trimmed)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return key, nil
}

func parseAmountField(raw, name string) (uint64, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, fmt.Errorf("%s is required", name)
	}
	value, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return value, nil
}

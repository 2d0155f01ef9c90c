// Package apiserver exposes the exchange engine over HTTP: read endpoints for
// offers, pricing, trades and redemptions, command endpoints for the protocol
// operations, and a websocket event stream.
package apiserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/meridian-fi/exchange/backend/internal/config"
	"github.com/meridian-fi/exchange/backend/internal/events"
	"github.com/meridian-fi/exchange/backend/internal/exchange"
	"github.com/meridian-fi/exchange/backend/internal/store"
)

type Service struct {
	cfg              config.APIServerConfig
	logger           *slog.Logger
	engine           *exchange.Engine
	store            *store.Store
	broadcaster      *events.Broadcaster
	allowAllOrigins  bool
	allowedOriginSet map[string]struct{}
}

func New(
	cfg config.APIServerConfig,
	logger *slog.Logger,
	engine *exchange.Engine,
	st *store.Store,
	broadcaster *events.Broadcaster,
) *Service {
	allowAllOrigins := false
	allowedOriginSet := make(map[string]struct{}, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			allowAllOrigins = true
			continue
		}
		allowedOriginSet[trimmed] = struct{}{}
	}
	if len(allowedOriginSet) == 0 && !allowAllOrigins {
		allowAllOrigins = true
	}

	return &Service{
		cfg:              cfg,
		logger:           logger,
		engine:           engine,
		store:            st,
		broadcaster:      broadcaster,
		allowAllOrigins:  allowAllOrigins,
		allowedOriginSet: allowedOriginSet,
	}
}

func (s *Service) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		err := server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
			return
		}
		errCh <- err
	}()

	s.logger.Info("api-server started",
		"listen_addr", s.cfg.ListenAddr,
		"allowed_origins", strings.Join(s.cfg.AllowedOrigins, ","),
	)

	select {
	case <-ctx.Done():
		s.logger.Info("api-server stopping")
		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("shutdown api-server: %w", err)
		}
		return <-errCh
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen and serve: %w", err)
		}
		return nil
	}
}

// Handler builds the routed handler; split from Run for tests.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)

	mux.HandleFunc("/api/v1/offers", s.handleOffers)
	mux.HandleFunc("/api/v1/offers/close", s.handleCloseOffer)
	mux.HandleFunc("/api/v1/offers/fee", s.handleUpdateFee)
	mux.HandleFunc("/api/v1/offers/price", s.handlePrice)
	mux.HandleFunc("/api/v1/offers/apy", s.handleAPY)
	mux.HandleFunc("/api/v1/offers/tvl", s.handleTVL)
	mux.HandleFunc("/api/v1/offers/nav-adjustment", s.handleNAVAdjustment)
	mux.HandleFunc("/api/v1/offers/take", s.handleTake)
	mux.HandleFunc("/api/v1/vectors", s.handleVectors)
	mux.HandleFunc("/api/v1/vectors/delete", s.handleDeleteVector)
	mux.HandleFunc("/api/v1/vaults", s.handleVaultBalances)
	mux.HandleFunc("/api/v1/vaults/deposit", s.handleVaultDeposit)
	mux.HandleFunc("/api/v1/vaults/withdraw", s.handleVaultWithdraw)
	mux.HandleFunc("/api/v1/redemptions", s.handleRedemptions)
	mux.HandleFunc("/api/v1/redemptions/pending", s.handlePendingRedemptions)
	mux.HandleFunc("/api/v1/redemptions/fulfill", s.handleFulfillRedemption)
	mux.HandleFunc("/api/v1/redemptions/cancel", s.handleCancelRedemption)
	mux.HandleFunc("/api/v1/nonce", s.handleNonce)
	mux.HandleFunc("/api/v1/trades", s.handleTrades)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/kill-switch", s.handleKillSwitch)
	mux.HandleFunc("/ws", s.handleWebsocket)

	return s.withCORS(mux)
}

type listResponse[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type healthResponse struct {
	OK bool `json:"ok"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.respondMethodNotAllowed(w)
		return
	}
	s.respondJSON(w, http.StatusOK, healthResponse{OK: true})
}

func (s *Service) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin != "" && s.isOriginAllowed(origin) {
			if s.allowAllOrigins {
				w.Header().Set("Access-Control-Allow-Origin", "*")
			} else {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "300")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Service) isOriginAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	if s.allowAllOrigins {
		return true
	}
	_, ok := s.allowedOriginSet[origin]
	return ok
}

// respondEngineError maps the engine's sentinel taxonomy onto HTTP statuses.
func (s *Service) respondEngineError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, exchange.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, exchange.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, exchange.ErrMalformedInput):
		status = http.StatusBadRequest
	case errors.Is(err, exchange.ErrReplayRejected), errors.Is(err, exchange.ErrInvalidState):
		status = http.StatusConflict
	case errors.Is(err, exchange.ErrExpired):
		status = http.StatusGone
	case errors.Is(err, exchange.ErrPaused):
		status = http.StatusServiceUnavailable
	case errors.Is(err, exchange.ErrInsufficientFunds), errors.Is(err, exchange.ErrOverflow):
		status = http.StatusUnprocessableEntity
	}
	s.respondError(w, status, err.Error())
}

func decodeJSONBody(r *http.Request, out any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()
	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func parseOptionalInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func parseOptionalInt64(r *http.Request, key string, fallback int64) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return value, nil
}

func (s *Service) respondMethodNotAllowed(w http.ResponseWriter) {
	s.respondError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func (s *Service) respondError(w http.ResponseWriter, code int, message string) {
	s.respondJSON(w, code, errorResponse{Error: message})
}

func (s *Service) respondJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to write JSON response", "err", err)
	}
}

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"

	"github.com/meridian-fi/exchange/backend/internal/apiserver"
	"github.com/meridian-fi/exchange/backend/internal/assetledger"
	"github.com/meridian-fi/exchange/backend/internal/config"
	"github.com/meridian-fi/exchange/backend/internal/events"
	"github.com/meridian-fi/exchange/backend/internal/exchange"
	"github.com/meridian-fi/exchange/backend/internal/logging"
	"github.com/meridian-fi/exchange/backend/internal/store"
)

func main() {
	bootstrapLogger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.LoadAPIServerConfig()
	if err != nil {
		bootstrapLogger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger, closeLogger, err := logging.New("api-server", cfg.Log)
	if err != nil {
		bootstrapLogger.Error("failed to initialize logger", "err", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := closeLogger(); closeErr != nil {
			bootstrapLogger.Error("failed to close logger", "err", closeErr)
		}
	}()

	if source, sourceErr := config.CurrentConfigSource(); sourceErr == nil {
		logger.Info("configuration loaded", "phase", source.Phase, "path", source.Path, "loaded", source.Loaded)
	}

	state, err := exchange.NewProtocolState(exchange.StateParams{
		ProgramID:       cfg.Protocol.ProgramID,
		Boss:            cfg.Protocol.Boss,
		Admins:          cfg.Protocol.Admins,
		Approvers:       cfg.Protocol.Approvers,
		RedemptionAdmin: cfg.Protocol.RedemptionAdmin,
		Treasury:        cfg.Protocol.Treasury,
		OfferVault:      cfg.Protocol.OfferVault,
		RedemptionVault: cfg.Protocol.RedemptionVault,
	})
	if err != nil {
		logger.Error("failed to initialize protocol state", "err", err)
		os.Exit(1)
	}

	ledger := assetledger.NewMemory()
	for mint, mintCfg := range cfg.Protocol.Mints {
		ledger.RegisterMint(mint, mintCfg.Decimals, mintCfg.MintAuthority)
	}

	st, err := store.NewStore(cfg.DBDSN)
	if err != nil {
		logger.Error("failed to initialize store", "err", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			logger.Error("failed to close store", "err", closeErr)
		}
	}()

	broadcaster := events.NewBroadcaster()
	broadcaster.Attach(store.NewRecorder(st, logger))

	engine := exchange.New(state, ledger, nil, broadcaster)

	svc := apiserver.New(cfg, logger, engine, st, broadcaster)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := svc.Run(ctx); err != nil {
		logger.Error("api-server exited with error", "err", err)
		os.Exit(1)
	}
}

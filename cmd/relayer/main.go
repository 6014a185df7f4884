package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/securevote/relayer/internal/chain"
	"github.com/securevote/relayer/internal/config"
	"github.com/securevote/relayer/internal/relay"
	"github.com/securevote/relayer/internal/revert"
)

func main() {
	log, _ := zap.NewProduction()
	defer log.Sync() //nolint:errcheck

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Redis (settlement audit + idempotency) ────────────────────────────────
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("redis ping failed", zap.Error(err))
	}

	// ── Chain client (relay key + contract bindings) ──────────────────────────
	onchain, err := chain.NewClient(cfg)
	if err != nil {
		log.Fatal("chain client init failed", zap.Error(err))
	}

	startupCtx, startupCancel := context.WithTimeout(ctx, 30*time.Second)
	defer startupCancel()
	if err := onchain.CheckNetwork(startupCtx); err != nil {
		log.Fatal("network check failed", zap.Error(err))
	}
	domain, err := onchain.Domain(startupCtx)
	if err != nil {
		log.Fatal("read forwarder EIP-712 domain failed", zap.Error(err))
	}
	log.Info("forwarder domain",
		zap.String("name", domain.Name),
		zap.String("version", domain.Version),
		zap.String("chainId", domain.ChainID.String()),
		zap.String("verifyingContract", domain.VerifyingContract.Hex()),
	)

	selectors, err := cfg.Relay.Selectors()
	if err != nil {
		log.Fatal("selector allowlist invalid", zap.Error(err))
	}

	// ── Pipeline ──────────────────────────────────────────────────────────────
	readTimeout := time.Duration(cfg.Relay.ReadTimeoutSec) * time.Second
	confirmTimeout := time.Duration(cfg.Relay.ConfirmTimeoutSec) * time.Second

	decoder := revert.NewDecoder(chain.VotingRoomABI(), chain.SponsorVaultABI())
	records := relay.NewRecordStore(rdb)

	pipeline := relay.NewPipeline(
		relay.NewValidator(onchain.ChainID(), domain, selectors),
		onchain,
		relay.NewPrechecker(onchain, log),
		relay.NewSubmitter(onchain, decoder, cfg.Relay.OuterGasBuffer, readTimeout, confirmTimeout, log),
		relay.NewEngine(onchain, onchain, records, decoder, readTimeout, confirmTimeout, log),
		readTimeout,
		log,
	)

	// ── HTTP server ───────────────────────────────────────────────────────────
	r := gin.New()
	r.Use(gin.Recovery())

	relay.NewHandler(pipeline, relay.HealthInfo{
		ChainID:   cfg.Chain.ChainID,
		Relayer:   onchain.RelayerAddress().Hex(),
		Forwarder: onchain.ForwarderAddress().Hex(),
	}, log).Register(r)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Info("relayer listening",
			zap.Int("port", cfg.Server.Port),
			zap.String("relayer", onchain.RelayerAddress().Hex()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	}
	log.Info("shutdown complete")
}

// Command relayer runs the burn-and-mint relay: the intake API, the
// attestation poller, and the submitter, all coordinated through the
// durable job store (internal/store). Shutdown follows the
// context+cancel+WaitGroup idiom (see
// github.com/joeycumines/go-utilpkg/eventloop's shutdown examples):
// os.Signal cancels a root context, every loop observes it and returns,
// and main waits for all three before closing the store.
package main

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/SeungheonOh/xreserve-relay/internal/api"
	"github.com/SeungheonOh/xreserve-relay/internal/attestation"
	"github.com/SeungheonOh/xreserve-relay/internal/chainio"
	"github.com/SeungheonOh/xreserve-relay/internal/config"
	"github.com/SeungheonOh/xreserve-relay/internal/logging"
	"github.com/SeungheonOh/xreserve-relay/internal/poller"
	"github.com/SeungheonOh/xreserve-relay/internal/ratelimit"
	"github.com/SeungheonOh/xreserve-relay/internal/store"
	"github.com/SeungheonOh/xreserve-relay/internal/submitter"
	"github.com/SeungheonOh/xreserve-relay/internal/validator"

	"github.com/ethereum/go-ethereum/common"
)

func main() {
	log := logging.Default()

	if err := run(log); err != nil {
		log.Err().Str("error", err.Error()).Log("relayer: fatal startup error")
		os.Exit(1)
	}
}

func run(log *logging.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log.Info().
		Bool("is_testnet", cfg.IsTestnet).
		Int("api_port", cfg.APIPort).
		Str("db_path", cfg.DBPath).
		Log("relayer: starting")

	db, err := store.OpenSQLite(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	routerAddr := common.HexToAddress(cfg.RouterAddress)
	transmitterAddr := common.HexToAddress(cfg.TransmitterAddress)

	chainClient, err := chainio.Dial(ctx, cfg.EthereumRPCURL, cfg.RelayerPrivateKey, transmitterAddr)
	if err != nil {
		return fmt.Errorf("dial chain: %w", err)
	}
	defer chainClient.Close()

	attestationClient := attestation.NewClient(
		cfg.AttestationBaseURL(attestation.MainnetBaseURL, attestation.TestnetBaseURL),
		30*time.Second,
	)

	attestationLimiter := ratelimit.NewBucket(cfg.AttestationRateLimitBurst, cfg.AttestationRateLimitRPS)

	p := poller.New(db, attestationClient, attestationLimiter, validator.Policy{RouterAddress: routerAddr}, log, poller.Config{
		BatchSize:          20,
		CycleInterval:      cfg.PollCycleInterval(),
		AttestationTimeout: cfg.AttestationTimeout(),
		ThrottleBackoff:    60 * time.Second,
	})

	sub := submitter.New(db, chainClient, log, submitter.Config{
		PollInterval:             cfg.SubmitterPollInterval(),
		MaxRetries:               cfg.MaxRetries,
		RelayFee:                 big.NewInt(cfg.RelayFee),
		ConfirmationPollInterval: 2 * time.Second,
		ConfirmationTimeout:      2 * time.Minute,
	})

	apiServer := api.New(db, log, api.Config{
		AllowedSourceDomains: cfg.AllowedSourceDomains,
		RateLimitCapacity:    cfg.APIRateLimitBurst,
		RateLimitRate:        cfg.APIRateLimitRPS,
	})
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.APIPort),
		Handler: apiServer.Routes(),
	}

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		if err := p.Run(ctx); err != nil {
			log.Err().Str("error", err.Error()).Log("relayer: poller exited with error")
		}
	}()

	go func() {
		defer wg.Done()
		if err := sub.Run(ctx); err != nil {
			log.Err().Str("error", err.Error()).Log("relayer: submitter exited with error")
		}
	}()

	go func() {
		defer wg.Done()
		log.Info().Int("port", cfg.APIPort).Log("relayer: api server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Err().Str("error", err.Error()).Log("relayer: api server exited with error")
		}
	}()

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	log.Info().Log("relayer: shutdown signal received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warning().Str("error", err.Error()).Log("relayer: http server shutdown error")
	}

	wg.Wait()
	log.Info().Log("relayer: shutdown complete")
	return nil
}

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"execution-core/internal/api"
	"execution-core/internal/execution"
	"execution-core/pkg/config"
	"execution-core/pkg/logging"
	"execution-core/pkg/venues/common"
	"execution-core/pkg/venues/kalshi"
	"execution-core/pkg/venues/polymarket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sessions := common.NewSessionManager(cfg.RefreshMargin, logger)

	var gateways []common.Gateway

	if cfg.EnableKalshi {
		if cfg.KalshiEmail == "" || cfg.KalshiPassword == "" {
			logger.Fatal("kalshi enabled but KALSHI_EMAIL/KALSHI_PASSWORD are not set")
		}
		gateways = append(gateways, kalshi.New(kalshi.Config{
			Email:    cfg.KalshiEmail,
			Password: cfg.KalshiPassword,
			BaseURL:  cfg.KalshiBaseURL,
			TokenTTL: cfg.KalshiTokenTTL,
		}, sessions, logger))
		logger.Info("kalshi gateway enabled")
	}

	if cfg.EnablePolymarket {
		if cfg.PolyPrivateKey == "" {
			logger.Fatal("polymarket enabled but POLY_PRIVATE_KEY is not set")
		}
		poly, err := polymarket.New(polymarket.Config{
			PrivateKey:    cfg.PolyPrivateKey,
			Funder:        cfg.PolyFunderAddress,
			APIKey:        cfg.PolyAPIKey,
			APISecret:     cfg.PolyAPISecret,
			Passphrase:    cfg.PolyPassphrase,
			BaseURL:       cfg.PolyBaseURL,
			RPCURL:        cfg.PolyRPCURL,
			SignatureType: cfg.PolySignatureType,
		}, sessions, logger)
		if err != nil {
			logger.Fatal("polymarket gateway init failed", zap.Error(err))
		}
		poly.StartClock(ctx)
		gateways = append(gateways, poly)
		logger.Info("polymarket gateway enabled")

		// Optional live book feed for the configured tokens; snapshot reads
		// prefer it over REST while it is fresh.
		if cfg.EnablePolyMarketFeed && len(cfg.PolyStreamTokens) > 0 {
			stream := polymarket.NewStream("", logger)
			if err := stream.Connect(ctx, cfg.PolyStreamTokens); err != nil {
				logger.Warn("market feed unavailable", zap.Error(err))
			} else {
				defer stream.Close()
				poly.UseStream(stream)
				logger.Info("polymarket market feed connected",
					zap.Int("tokens", len(cfg.PolyStreamTokens)))
			}
		}
	}

	if len(gateways) == 0 {
		logger.Fatal("no venue gateways enabled")
	}

	coord := execution.NewCoordinator(logger, gateways...)
	server := api.NewServer(coord, logger)

	go func() {
		if err := server.Start(":" + cfg.Port); err != nil {
			logger.Fatal("api server failed", zap.Error(err))
		}
	}()
	logger.Info("execution core up", zap.String("port", cfg.Port))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutting down")
}

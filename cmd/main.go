// Package main runs the pool trade streamer: it serves the HTTP and stream
// endpoints for one liquidity pool and keeps an in-memory trade history.
//
// Startup is two-phase:
// 1. Backfill: pages the pool's signature history and rebuilds the trade buffer
// 2. Live: tails new pool transactions and publishes each trade to subscribers
//
// The HTTP listener is bound before backfill starts, so clients can connect
// while the history is still loading.
//
// Usage:
//
//	go run cmd/main.go
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang-pool-streamer/internal/backfill"
	"golang-pool-streamer/internal/chain"
	"golang-pool-streamer/internal/config"
	"golang-pool-streamer/internal/holders"
	"golang-pool-streamer/internal/hub"
	"golang-pool-streamer/internal/logger"
	"golang-pool-streamer/internal/metrics"
	"golang-pool-streamer/internal/monitor"
	"golang-pool-streamer/internal/parser"
	"golang-pool-streamer/internal/poolinfo"
	"golang-pool-streamer/internal/retry"
	"golang-pool-streamer/internal/server"
	"golang-pool-streamer/internal/utils"

	"github.com/sirupsen/logrus"
)

// liveListener is satisfied by both live sources.
type liveListener interface {
	Run(ctx context.Context, sink monitor.Publisher) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger.Setup(cfg.LogLevel, cfg.LogFile)
	logger.LogStartup(cfg.PoolAddress)
	cfg.LogConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	m := metrics.New()
	rpcClient := chain.NewClient(cfg.RPCEndpoint, cfg.CommitmentType())
	inferrer := parser.NewInferrer(cfg.TokenMint, cfg.BaseMint)
	policy := retryPolicy(cfg, m)

	tradeHub := hub.New(hub.Options{
		Capacity:    cfg.HistoryCapacity,
		ReplayLimit: cfg.ReplayLimit,
		KeepAlive:   cfg.KeepAlive,
		Metrics:     m,
	})
	defer tradeHub.Close()

	srv := server.New(server.Options{
		Hub:          tradeHub,
		Holders:      holders.NewService(rpcClient, cfg.HolderCacheTTL),
		PoolInfo:     poolinfo.NewClient(cfg.PoolInfoEndpoint(), poolinfo.DefaultTimeout),
		Metrics:      m,
		Pool:         cfg.PoolAddress,
		TokenMint:    cfg.TokenMint,
		AccessLog:    cfg.AccessLog,
		StreamBuffer: cfg.StreamBuffer,
	})

	ln, err := net.Listen("tcp", cfg.ListenAddr())
	if err != nil {
		logrus.Fatalf("Failed to listen on %s: %v", cfg.ListenAddr(), err)
	}
	go func() {
		if err := srv.Serve(ln); err != nil {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	logger.LogConnection("Solana RPC", rpcClient.Health(ctx), cfg.RPCEndpoint)

	pipeline := backfill.New(backfill.Options{
		Source:   rpcClient,
		Inferrer: inferrer,
		Sink:     tradeHub,
		Pool:     cfg.PoolAddress,
		Policy:   policy,
		Pause:    cfg.BackfillPause,
		Metrics:  m,
	})

	listener, closeListener, err := newLiveListener(cfg, rpcClient, inferrer, policy, m)
	if err != nil {
		logrus.Fatalf("Failed to create live listener: %v", err)
	}
	defer closeListener()

	go func() {
		pipeline.Run(ctx, cfg.HistoryCount)
		if ctx.Err() != nil {
			return
		}

		logrus.WithField("source", cfg.LiveSource).Info("🚀 Backfill done, starting live tail")
		if err := listener.Run(ctx, tradeHub); err != nil {
			logrus.WithField("error", utils.SanitizeError(err, cfg.RPCEndpoint, cfg.WSEndpoint, cfg.GRPCEndpoint)).
				Error("❌ Live listener stopped")
		}
	}()

	<-sigChan
	logrus.Info("🛑 Shutdown signal received, stopping...")
	cancel()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP server forced to shutdown")
	}
	logrus.Info("✅ Shut down complete")
}

func retryPolicy(cfg *config.Config, m *metrics.Metrics) retry.Policy {
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.RetryMaxAttempts
	policy.BaseDelay = cfg.RetryBaseDelay
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		m.RPCRetries.Inc()
		logrus.WithFields(logrus.Fields{
			"attempt": attempt + 1,
			"delay":   delay,
			"error":   utils.SanitizeError(err, cfg.RPCEndpoint),
		}).Warn("⏳ Rate limited, backing off")
	}
	return policy
}

// newLiveListener builds the configured live source. The returned func
// releases any connection it holds.
func newLiveListener(cfg *config.Config, rpcClient *chain.Client, inferrer *parser.Inferrer, policy retry.Policy, m *metrics.Metrics) (liveListener, func(), error) {
	if cfg.LiveSource == config.LiveSourceYellowstone {
		conn, err := chain.DialGeyser(cfg.GRPCEndpoint, cfg.GRPCToken)
		if err != nil {
			return nil, nil, err
		}
		logger.LogConnection("Yellowstone gRPC", nil)

		listener := monitor.NewYellowstoneListener(monitor.YellowstoneListenerOptions{
			Subscribe: func(ctx context.Context) (monitor.UpdateStream, error) {
				return conn.SubscribeTransactions(ctx, cfg.PoolAddress, cfg.CommitmentType())
			},
			Inferrer: inferrer,
			Metrics:  m,
		})
		return listener, func() { conn.Close() }, nil
	}

	listener := monitor.NewLogListener(monitor.LogListenerOptions{
		Dial: func(ctx context.Context) (monitor.LogStream, error) {
			sub, err := chain.SubscribeLogs(ctx, cfg.WSEndpoint, cfg.PoolAddress, cfg.CommitmentType())
			if err != nil {
				return nil, err
			}
			logger.LogConnection("Solana WebSocket", nil)
			return sub, nil
		},
		Fetcher:  rpcClient,
		Inferrer: inferrer,
		Policy:   policy,
		Metrics:  m,
	})
	return listener, func() {}, nil
}

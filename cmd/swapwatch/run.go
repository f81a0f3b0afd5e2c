package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapwatch/internal/chain"
	"swapwatch/internal/config"
	"swapwatch/internal/monitor"
	"swapwatch/internal/report"
	"swapwatch/internal/storage"
	"swapwatch/internal/storage/postgres"
	"swapwatch/internal/watcher"
)

func runWatcher(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}

	decoder, contract, err := buildDecoder(ctx, cfg.DecoderSettings, chainClient, logger)
	if err != nil {
		return err
	}
	decoderCfg := decoder.Config()

	reporters := report.Multi{report.NewConsoleReporter(logger)}
	if cfg.Out != "" {
		sink := storage.NewJsonlStorage(cfg.Out, true)
		defer sink.Close()
		reporters = append(reporters, report.NewSinkReporter(sink))
	}

	var metrics *monitor.Metrics
	if cfg.MetricsAddr != "" {
		metrics = monitor.NewMetrics()
		reporters = append(reporters, report.NewMetricsReporter(metrics))
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}

	opts := []watcher.Option{watcher.WithLogger(logger), watcher.WithMetrics(metrics)}
	if cfg.CheckpointEnabled {
		store, closeStore, err := openCheckpointStore(ctx, cfg, decoder.Topic0().Hex())
		if err != nil {
			return err
		}
		defer closeStore()
		opts = append(opts, watcher.WithCheckpointStore(store))
	}

	pipelineCfg := watcher.Config{
		Contract: contract,
		Depth:    cfg.Confirmations,
	}
	if cfg.PrefetchLogs {
		pipelineCfg.PrefetchTTL = cfg.PrefetchTTL
	}

	fetcher := watcher.NewRetryingFetcher(chainClient, cfg.MaxRetries, cfg.RetryBackoff, logger)
	pipeline, err := watcher.NewPipeline(pipelineCfg, fetcher, decoder, reporters, opts...)
	if err != nil {
		return err
	}

	sub, err := chainClient.SubscribeHeads(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()

	logger.Info("watcher start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("chain_id", chainID.String()),
		zap.String("contract", contract.Hex()),
		zap.String("event", cfg.Event),
		zap.String("token0", decoderCfg.Symbol0),
		zap.Uint8("decimals0", decoderCfg.Decimals0),
		zap.String("token1", decoderCfg.Symbol1),
		zap.Uint8("decimals1", decoderCfg.Decimals1),
		zap.String("zero_direction", decoderCfg.ZeroDirection),
		zap.Int("confirmations", cfg.Confirmations),
		zap.Bool("prefetch_logs", cfg.PrefetchLogs),
		zap.Bool("checkpoint_enabled", cfg.CheckpointEnabled),
		zap.String("out", cfg.Out),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	err = pipeline.Run(ctx, sub)
	if err != nil && errors.Is(err, context.Canceled) && ctx.Err() != nil {
		logger.Info("watcher stopped")
		return nil
	}
	return err
}

func openCheckpointStore(ctx context.Context, cfg config.Config, topic0 string) (watcher.CheckpointStore, func(), error) {
	if cfg.PGDSN == "" {
		return watcher.NewFileCheckpointStore(cfg.Checkpoint), func() {}, nil
	}

	store, err := postgres.NewStore(ctx, cfg.PGDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	name := strings.ToLower(cfg.Contract) + ":" + topic0
	cpStore, err := postgres.NewCheckpointStore(store, name)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return cpStore, store.Close, nil
}

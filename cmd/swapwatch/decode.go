package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"swapwatch/internal/chain"
	"swapwatch/internal/config"
	"swapwatch/internal/model"
	"swapwatch/internal/report"
	"swapwatch/internal/storage"
)

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, "")
	if err != nil {
		return err
	}
	defer logger.Sync()

	blockHash, err := config.ParseHash(cfg.BlockHash)
	if err != nil {
		return err
	}

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

	header, err := chainClient.HeaderByHash(ctx, blockHash)
	if err != nil {
		return fmt.Errorf("header %s: %w", blockHash.Hex(), err)
	}

	logs, err := chainClient.FetchLogs(ctx, blockHash, contract, decoder.Topic0())
	if err != nil {
		return fmt.Errorf("fetch logs: %w", err)
	}

	logger.Info("decode start",
		zap.String("chain_id", chainID.String()),
		zap.Uint64("block_number", header.Number),
		zap.String("block_hash", blockHash.Hex()),
		zap.String("contract", contract.Hex()),
		zap.Int("logs", len(logs)),
	)

	console := report.NewConsoleReporter(logger)
	events := make([]model.SwapEvent, 0, len(logs))
	var failed int
	for _, log := range logs {
		event, err := decoder.Decode(log)
		if err != nil {
			failed++
			logger.Warn("decode log failed",
				zap.String("tx_hash", log.TxHash.Hex()),
				zap.Uint("log_index", log.Index),
				zap.Error(err),
			)
			continue
		}
		if err := console.Report(ctx, event); err != nil {
			return err
		}
		events = append(events, event)
	}

	if cfg.Out != "" {
		sink := storage.NewJsonlStorage(cfg.Out, false)
		if err := sink.PutEvents(events); err != nil {
			_ = sink.Close()
			return err
		}
		if err := sink.Close(); err != nil {
			return err
		}
	}

	logger.Info("decode complete",
		zap.Int("total", len(logs)),
		zap.Int("decoded", len(events)),
		zap.Int("failed", failed),
	)

	return nil
}

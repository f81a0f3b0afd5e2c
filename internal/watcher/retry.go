package watcher

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}

// RetryingFetcher retries a LogFetcher with exponential backoff.
type RetryingFetcher struct {
	next       LogFetcher
	maxRetries int
	baseDelay  time.Duration
	logger     *zap.Logger
}

func NewRetryingFetcher(next LogFetcher, maxRetries int, baseDelay time.Duration, logger *zap.Logger) *RetryingFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingFetcher{
		next:       next,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger,
	}
}

func (f *RetryingFetcher) FetchLogs(ctx context.Context, blockHash common.Hash, contract common.Address, topic0 common.Hash) ([]types.Log, error) {
	var logs []types.Log
	err := withRetry(ctx, f.maxRetries, f.baseDelay, func(ctx context.Context) error {
		var err error
		logs, err = f.next.FetchLogs(ctx, blockHash, contract, topic0)
		if err != nil {
			f.logger.Warn("fetch logs failed", zap.Error(err), zap.String("block_hash", blockHash.Hex()))
		}
		return err
	})
	return logs, err
}

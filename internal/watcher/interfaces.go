package watcher

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"swapwatch/internal/model"
)

// HeaderSource yields block headers in arrival order. Next returns io.EOF when
// the source is exhausted.
type HeaderSource interface {
	Next(ctx context.Context) (model.BlockHeader, error)
}

// LogFetcher returns the logs of one block for a contract and event signature.
type LogFetcher interface {
	FetchLogs(ctx context.Context, blockHash common.Hash, contract common.Address, topic0 common.Hash) ([]types.Log, error)
}

// Decoder turns raw logs into swap events.
type Decoder interface {
	Topic0() common.Hash
	Decode(log types.Log) (model.SwapEvent, error)
}

// Reporter receives decoded events in block order.
type Reporter interface {
	Report(ctx context.Context, event model.SwapEvent) error
}

// CheckpointStore persists the last fully processed confirmed block.
type CheckpointStore interface {
	Load(ctx context.Context) (Checkpoint, bool, error)
	Save(ctx context.Context, cp Checkpoint) error
}

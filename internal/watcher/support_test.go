package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRetryingFetcherRetriesUntilSuccess(t *testing.T) {
	inner := &MockLogFetcher{}
	hash := blockHash(7)
	topic := common.HexToHash("0x01")
	inner.On("FetchLogs", mock.Anything, hash, testContract, topic).Return(nil, errors.New("503")).Twice()
	inner.On("FetchLogs", mock.Anything, hash, testContract, topic).Return([]types.Log{{Index: 4}}, nil).Once()

	fetcher := NewRetryingFetcher(inner, 3, time.Millisecond, nil)
	logs, err := fetcher.FetchLogs(context.Background(), hash, testContract, topic)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	inner.AssertNumberOfCalls(t, "FetchLogs", 3)
}

func TestRetryingFetcherGivesUp(t *testing.T) {
	inner := &MockLogFetcher{}
	fetchErr := errors.New("rate limited")
	inner.On("FetchLogs", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, fetchErr)

	fetcher := NewRetryingFetcher(inner, 2, time.Millisecond, nil)
	_, err := fetcher.FetchLogs(context.Background(), blockHash(1), testContract, common.Hash{})
	require.ErrorIs(t, err, fetchErr)
	inner.AssertNumberOfCalls(t, "FetchLogs", 3)
}

func TestWithRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := withRetry(ctx, 5, time.Hour, func(context.Context) error {
		calls++
		cancel()
		return errors.New("boom")
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestFileCheckpointStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "checkpoint.json")
	store := NewFileCheckpointStore(path)
	ctx := context.Background()

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	want := Checkpoint{BlockNumber: 18000000, BlockHash: blockHash(18000000).Hex()}
	require.NoError(t, store.Save(ctx, want))

	got, ok, err := store.Load(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want.BlockNumber, got.BlockNumber)
	require.Equal(t, want.BlockHash, got.BlockHash)
	require.False(t, got.UpdatedAt.IsZero())

	_, err = os.Stat(path + ".tmp")
	require.True(t, os.IsNotExist(err))
}

func TestFileCheckpointStoreRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, _, err := NewFileCheckpointStore(path).Load(context.Background())
	require.Error(t, err)
}

func TestLogCacheTakeEvicts(t *testing.T) {
	cache := NewLogCache(time.Minute, time.Minute)
	hash := blockHash(3)
	cache.Put(hash, []types.Log{{Index: 1}, {Index: 2}})
	require.Equal(t, 1, cache.Len())

	logs, ok := cache.Take(hash)
	require.True(t, ok)
	require.Len(t, logs, 2)

	_, ok = cache.Take(hash)
	require.False(t, ok)
}

func TestLogCacheExpires(t *testing.T) {
	cache := NewLogCache(10*time.Millisecond, time.Minute)
	cache.Put(blockHash(3), nil)
	time.Sleep(30 * time.Millisecond)

	_, ok := cache.Take(blockHash(3))
	require.False(t, ok)
}

package watcher

import (
	"context"
	"errors"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"swapwatch/internal/dex"
	"swapwatch/internal/model"
	"swapwatch/internal/window"
)

var testContract = common.HexToAddress("0x5777d92f208679db4b9778590fa3cab3ac9e2168")

type MockLogFetcher struct {
	mock.Mock
}

func (m *MockLogFetcher) FetchLogs(ctx context.Context, blockHash common.Hash, contract common.Address, topic0 common.Hash) ([]types.Log, error) {
	args := m.Called(ctx, blockHash, contract, topic0)
	logs, _ := args.Get(0).([]types.Log)
	return logs, args.Error(1)
}

type MockCheckpointStore struct {
	mock.Mock
}

func (m *MockCheckpointStore) Load(ctx context.Context) (Checkpoint, bool, error) {
	args := m.Called(ctx)
	return args.Get(0).(Checkpoint), args.Bool(1), args.Error(2)
}

func (m *MockCheckpointStore) Save(ctx context.Context, cp Checkpoint) error {
	args := m.Called(ctx, cp)
	return args.Error(0)
}

type recordingReporter struct {
	events []model.SwapEvent
	err    error
}

func (r *recordingReporter) Report(_ context.Context, event model.SwapEvent) error {
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

type sliceSource struct {
	headers []model.BlockHeader
}

func (s *sliceSource) Next(_ context.Context) (model.BlockHeader, error) {
	if len(s.headers) == 0 {
		return model.BlockHeader{}, io.EOF
	}
	h := s.headers[0]
	s.headers = s.headers[1:]
	return h, nil
}

func blockHash(number uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(number))
}

func header(number uint64) model.BlockHeader {
	return model.BlockHeader{
		Number:     number,
		Hash:       blockHash(number),
		ParentHash: blockHash(number - 1),
	}
}

func newDecoder(t *testing.T) *dex.SwapDecoder {
	t.Helper()
	desc, err := dex.SwapDescriptor()
	require.NoError(t, err)
	decoder, err := dex.NewSwapDecoder(desc, dex.DecoderConfig{
		Decimals0: 18,
		Decimals1: 6,
		Symbol0:   "DAI",
		Symbol1:   "USDC",
	})
	require.NoError(t, err)
	return decoder
}

func swapLog(t *testing.T, decoder *dex.SwapDecoder, block uint64, index uint, amount0 int64) types.Log {
	t.Helper()
	poolABI, err := dex.V3PoolABI()
	require.NoError(t, err)
	data, err := poolABI.Events["Swap"].Inputs.NonIndexed().Pack(
		big.NewInt(amount0),
		big.NewInt(-amount0),
		big.NewInt(1),
		big.NewInt(1),
		big.NewInt(0),
	)
	require.NoError(t, err)
	return types.Log{
		Address: testContract,
		Topics: []common.Hash{
			decoder.Topic0(),
			common.BytesToHash(common.HexToAddress("0x01").Bytes()),
			common.BytesToHash(common.HexToAddress("0x02").Bytes()),
		},
		Data:        data,
		BlockNumber: block,
		BlockHash:   blockHash(block),
		Index:       index,
	}
}

func newPipeline(t *testing.T, cfg Config, fetcher LogFetcher, decoder Decoder, reporter Reporter, opts ...Option) *Pipeline {
	t.Helper()
	if cfg.Contract == (common.Address{}) {
		cfg.Contract = testContract
	}
	p, err := NewPipeline(cfg, fetcher, decoder, reporter, opts...)
	require.NoError(t, err)
	return p
}

func TestPipelineReportsConfirmedBlocksInOrder(t *testing.T) {
	decoder := newDecoder(t)
	fetcher := &MockLogFetcher{}
	for n := uint64(1); n <= 4; n++ {
		fetcher.On("FetchLogs", mock.Anything, blockHash(n), testContract, decoder.Topic0()).
			Return([]types.Log{swapLog(t, decoder, n, 0, 10), swapLog(t, decoder, n, 1, -10)}, nil).Once()
	}
	reporter := &recordingReporter{}
	p := newPipeline(t, Config{Depth: 2}, fetcher, decoder, reporter)

	source := &sliceSource{}
	for n := uint64(1); n <= 5; n++ {
		source.headers = append(source.headers, header(n))
	}
	require.NoError(t, p.Run(context.Background(), source))

	require.Len(t, reporter.events, 8)
	for i, event := range reporter.events {
		require.Equal(t, uint64(i/2+1), event.BlockNumber)
		require.Equal(t, uint(i%2), event.LogIndex)
	}
	require.Equal(t, model.DirectionToken0ToToken1, reporter.events[0].Direction)
	require.Equal(t, model.DirectionToken1ToToken0, reporter.events[1].Direction)
	require.Equal(t, 1, p.Window().Len())
	fetcher.AssertExpectations(t)
}

func TestPipelineDeepReorgIsFatal(t *testing.T) {
	fetcher := &MockLogFetcher{}
	reporter := &recordingReporter{}
	p := newPipeline(t, Config{Depth: 6}, fetcher, newDecoder(t), reporter)

	ctx := context.Background()
	for n := uint64(1); n <= 5; n++ {
		require.NoError(t, p.Step(ctx, header(n)))
	}

	err := p.Step(ctx, header(106))
	require.ErrorIs(t, err, window.ErrReorgDetected)
	var reorg *window.ReorgError
	require.True(t, errors.As(err, &reorg))
	require.Equal(t, uint64(1), reorg.HeadNumber)
	require.Equal(t, uint64(106), reorg.TailNumber)

	fetcher.AssertNotCalled(t, "FetchLogs", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	require.Empty(t, reporter.events)
}

func TestPipelineRunPropagatesReorg(t *testing.T) {
	p := newPipeline(t, Config{Depth: 3}, &MockLogFetcher{}, newDecoder(t), &recordingReporter{})
	source := &sliceSource{headers: []model.BlockHeader{header(1), header(50)}}

	require.ErrorIs(t, p.Run(context.Background(), source), window.ErrReorgDetected)
}

func TestPipelineSkipsUndecodableLogs(t *testing.T) {
	decoder := newDecoder(t)
	bad := swapLog(t, decoder, 1, 1, 5)
	bad.Topics[0] = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
	truncated := swapLog(t, decoder, 1, 2, 5)
	truncated.Data = truncated.Data[:10]

	fetcher := &MockLogFetcher{}
	fetcher.On("FetchLogs", mock.Anything, blockHash(1), testContract, decoder.Topic0()).
		Return([]types.Log{swapLog(t, decoder, 1, 0, 5), bad, truncated, swapLog(t, decoder, 1, 3, -5)}, nil).Once()

	reporter := &recordingReporter{}
	p := newPipeline(t, Config{Depth: 1}, fetcher, decoder, reporter)
	require.NoError(t, p.Step(context.Background(), header(1)))

	require.Len(t, reporter.events, 2)
	require.Equal(t, uint(0), reporter.events[0].LogIndex)
	require.Equal(t, uint(3), reporter.events[1].LogIndex)
}

func TestPipelineDiscontinuityIsRecoverable(t *testing.T) {
	p := newPipeline(t, Config{Depth: 3}, &MockLogFetcher{}, newDecoder(t), &recordingReporter{})
	ctx := context.Background()

	require.NoError(t, p.Step(ctx, header(10)))
	require.NoError(t, p.Step(ctx, header(11)))
	require.NoError(t, p.Step(ctx, header(11)))
	require.NoError(t, p.Step(ctx, header(4)))
	require.Equal(t, 2, p.Window().Len())
}

func TestPipelineUsesPrefetchedLogs(t *testing.T) {
	decoder := newDecoder(t)
	fetcher := &MockLogFetcher{}
	fetcher.On("FetchLogs", mock.Anything, blockHash(1), testContract, decoder.Topic0()).
		Return([]types.Log{swapLog(t, decoder, 1, 0, 7)}, nil).Once()
	fetcher.On("FetchLogs", mock.Anything, blockHash(2), testContract, decoder.Topic0()).
		Return([]types.Log{}, nil).Once()

	reporter := &recordingReporter{}
	p := newPipeline(t, Config{Depth: 2, PrefetchTTL: time.Minute}, fetcher, decoder, reporter)
	ctx := context.Background()

	require.NoError(t, p.Step(ctx, header(1)))
	require.NoError(t, p.Step(ctx, header(2)))

	require.Len(t, reporter.events, 1)
	require.Equal(t, uint64(1), reporter.events[0].BlockNumber)
	fetcher.AssertExpectations(t)
	fetcher.AssertNumberOfCalls(t, "FetchLogs", 2)
}

func TestPipelineDiscontinuityInvalidatesPrefetch(t *testing.T) {
	decoder := newDecoder(t)
	fetcher := &MockLogFetcher{}
	for _, n := range []uint64{10, 12, 13} {
		fetcher.On("FetchLogs", mock.Anything, blockHash(n), testContract, decoder.Topic0()).
			Return([]types.Log{}, nil).Once()
	}
	fetcher.On("FetchLogs", mock.Anything, blockHash(11), testContract, decoder.Topic0()).
		Return([]types.Log{}, nil).Twice()

	p := newPipeline(t, Config{Depth: 3, PrefetchTTL: time.Minute}, fetcher, decoder, &recordingReporter{})
	ctx := context.Background()

	require.NoError(t, p.Step(ctx, header(10)))
	require.NoError(t, p.Step(ctx, header(11)))

	replaced := header(11)
	replaced.Hash = common.HexToHash("0xbeef")
	require.NoError(t, p.Step(ctx, replaced))

	require.NoError(t, p.Step(ctx, header(12)))
	require.NoError(t, p.Step(ctx, header(13)))

	fetcher.AssertExpectations(t)
}

func TestPipelinePrefetchFailureFallsBackToFetch(t *testing.T) {
	decoder := newDecoder(t)
	fetcher := &MockLogFetcher{}
	fetcher.On("FetchLogs", mock.Anything, blockHash(1), testContract, decoder.Topic0()).
		Return(nil, errors.New("timeout")).Once()
	fetcher.On("FetchLogs", mock.Anything, blockHash(1), testContract, decoder.Topic0()).
		Return([]types.Log{swapLog(t, decoder, 1, 0, 3)}, nil).Once()

	reporter := &recordingReporter{}
	p := newPipeline(t, Config{Depth: 1, PrefetchTTL: time.Minute}, fetcher, decoder, reporter)
	require.NoError(t, p.Step(context.Background(), header(1)))

	require.Len(t, reporter.events, 1)
	fetcher.AssertExpectations(t)
}

func TestPipelineFetchErrorPropagates(t *testing.T) {
	decoder := newDecoder(t)
	fetcher := &MockLogFetcher{}
	fetchErr := errors.New("connection refused")
	fetcher.On("FetchLogs", mock.Anything, blockHash(1), testContract, decoder.Topic0()).
		Return(nil, fetchErr).Once()

	p := newPipeline(t, Config{Depth: 1}, fetcher, decoder, &recordingReporter{})
	require.ErrorIs(t, p.Step(context.Background(), header(1)), fetchErr)
}

func TestPipelineReportErrorPropagates(t *testing.T) {
	decoder := newDecoder(t)
	fetcher := &MockLogFetcher{}
	fetcher.On("FetchLogs", mock.Anything, blockHash(1), testContract, decoder.Topic0()).
		Return([]types.Log{swapLog(t, decoder, 1, 0, 3)}, nil).Once()

	reportErr := errors.New("disk full")
	p := newPipeline(t, Config{Depth: 1}, fetcher, decoder, &recordingReporter{err: reportErr})
	require.ErrorIs(t, p.Step(context.Background(), header(1)), reportErr)
}

func TestPipelineSkipsCheckpointedBlocks(t *testing.T) {
	decoder := newDecoder(t)
	fetcher := &MockLogFetcher{}
	fetcher.On("FetchLogs", mock.Anything, blockHash(3), testContract, decoder.Topic0()).
		Return([]types.Log{swapLog(t, decoder, 3, 0, 1)}, nil).Once()

	store := &MockCheckpointStore{}
	store.On("Load", mock.Anything).Return(Checkpoint{BlockNumber: 2}, true, nil).Once()
	store.On("Save", mock.Anything, mock.MatchedBy(func(cp Checkpoint) bool {
		return cp.BlockNumber == 3 && cp.BlockHash == blockHash(3).Hex()
	})).Return(nil).Once()

	reporter := &recordingReporter{}
	p := newPipeline(t, Config{Depth: 1}, fetcher, decoder, reporter, WithCheckpointStore(store))
	ctx := context.Background()
	for n := uint64(1); n <= 3; n++ {
		require.NoError(t, p.Step(ctx, header(n)))
	}

	require.Len(t, reporter.events, 1)
	require.Equal(t, uint64(3), reporter.events[0].BlockNumber)
	store.AssertExpectations(t)
	fetcher.AssertExpectations(t)
}

func TestPipelineCheckpointLoadError(t *testing.T) {
	store := &MockCheckpointStore{}
	store.On("Load", mock.Anything).Return(Checkpoint{}, false, errors.New("bad json")).Once()

	p := newPipeline(t, Config{Depth: 1}, &MockLogFetcher{}, newDecoder(t), &recordingReporter{}, WithCheckpointStore(store))
	require.Error(t, p.Step(context.Background(), header(1)))
}

func TestNewPipelineValidates(t *testing.T) {
	decoder := newDecoder(t)
	_, err := NewPipeline(Config{Depth: 0}, &MockLogFetcher{}, decoder, &recordingReporter{})
	require.Error(t, err)
	_, err = NewPipeline(Config{Depth: 6}, nil, decoder, &recordingReporter{})
	require.Error(t, err)
	_, err = NewPipeline(Config{Depth: 6}, &MockLogFetcher{}, decoder, nil)
	require.Error(t, err)
}

func TestPipelineRunLogsStart(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	p := newPipeline(t, Config{Depth: 4, PrefetchTTL: time.Minute}, &MockLogFetcher{}, newDecoder(t), &recordingReporter{},
		WithLogger(zap.New(core)))

	require.NoError(t, p.Run(context.Background(), &sliceSource{}))

	started := logs.FilterMessage("pipeline start").All()
	require.Len(t, started, 1)
	fields := started[0].ContextMap()
	require.Equal(t, int64(4), fields["depth"])
	require.Equal(t, true, fields["prefetch"])
	require.Equal(t, testContract.Hex(), fields["contract"])
}

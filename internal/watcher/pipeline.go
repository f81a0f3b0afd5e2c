package watcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"swapwatch/internal/dex"
	"swapwatch/internal/model"
	"swapwatch/internal/monitor"
	"swapwatch/internal/window"
)

// Config holds runtime settings for the pipeline.
type Config struct {
	Contract common.Address
	Depth    int
	// PrefetchTTL bounds how long logs fetched at arrival stay usable. Zero
	// disables prefetching.
	PrefetchTTL time.Duration
}

// Pipeline feeds headers through a confirmation window and reports the swaps
// of each block once it is confirmed. It is driven by a single goroutine.
type Pipeline struct {
	cfg        Config
	window     *window.Window
	fetcher    LogFetcher
	decoder    Decoder
	reporter   Reporter
	checkpoint CheckpointStore
	cache      *LogCache
	metrics    *monitor.Metrics
	logger     *zap.Logger

	restored bool
	last     Checkpoint
	hasLast  bool
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

func WithCheckpointStore(store CheckpointStore) Option {
	return func(p *Pipeline) { p.checkpoint = store }
}

func WithMetrics(m *monitor.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline builds a Pipeline with its collaborators.
func NewPipeline(cfg Config, fetcher LogFetcher, decoder Decoder, reporter Reporter, opts ...Option) (*Pipeline, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("log fetcher is nil")
	}
	if decoder == nil {
		return nil, fmt.Errorf("decoder is nil")
	}
	if reporter == nil {
		return nil, fmt.Errorf("reporter is nil")
	}

	w, err := window.New(cfg.Depth)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:      cfg,
		window:   w,
		fetcher:  fetcher,
		decoder:  decoder,
		reporter: reporter,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if cfg.PrefetchTTL > 0 {
		p.cache = NewLogCache(cfg.PrefetchTTL, 2*cfg.PrefetchTTL)
	}
	return p, nil
}

// Window exposes the confirmation window for inspection.
func (p *Pipeline) Window() *window.Window {
	return p.window
}

// Run consumes headers until the source ends, ctx is cancelled, or a step fails.
func (p *Pipeline) Run(ctx context.Context, source HeaderSource) error {
	if source == nil {
		return fmt.Errorf("header source is nil")
	}
	p.logger.Info("pipeline start",
		zap.String("contract", p.cfg.Contract.Hex()),
		zap.String("topic0", p.decoder.Topic0().Hex()),
		zap.Int("depth", p.window.Depth()),
		zap.Bool("prefetch", p.cache != nil),
	)
	for {
		header, err := source.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				p.logger.Info("header source closed")
				return nil
			}
			return fmt.Errorf("next header: %w", err)
		}
		if err := p.Step(ctx, header); err != nil {
			return err
		}
	}
}

// Step pushes one header and processes every block that becomes confirmed.
// A deep reorganization is returned as a *window.ReorgError.
func (p *Pipeline) Step(ctx context.Context, header model.BlockHeader) error {
	if err := p.restore(ctx); err != nil {
		return err
	}
	p.metrics.HeaderReceived()

	if p.window.ParentMismatch(header) {
		p.metrics.ParentMismatch()
		p.logger.Warn("parent hash mismatch",
			zap.Uint64("block_number", header.Number),
			zap.String("block_hash", header.Hash.Hex()),
			zap.String("parent_hash", header.ParentHash.Hex()),
		)
	}

	if err := p.window.Push(header); err != nil {
		if errors.Is(err, window.ErrDiscontinuity) {
			p.onDiscontinuity(header, err)
			return nil
		}
		return fmt.Errorf("push header %d: %w", header.Number, err)
	}
	p.metrics.SetWindowLength(p.window.Len())

	if err := p.window.DetectReorg(); err != nil {
		p.metrics.DeepReorg()
		p.logger.Error("deep reorganization detected", zap.Error(err))
		return err
	}

	p.prefetch(ctx, header)

	for p.window.IsReady() {
		confirmed, err := p.window.PopConfirmed()
		if err != nil {
			return err
		}
		p.metrics.SetWindowLength(p.window.Len())
		if err := p.processConfirmed(ctx, confirmed); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pipeline) restore(ctx context.Context) error {
	if p.restored {
		return nil
	}
	p.restored = true
	if p.checkpoint == nil {
		return nil
	}
	cp, ok, err := p.checkpoint.Load(ctx)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	if ok {
		p.last, p.hasLast = cp, true
		p.logger.Info("resume from checkpoint", zap.Uint64("last_processed", cp.BlockNumber), zap.String("block_hash", cp.BlockHash))
	}
	return nil
}

func (p *Pipeline) onDiscontinuity(header model.BlockHeader, err error) {
	p.metrics.Discontinuity()
	p.logger.Warn("header discontinuity, dropping header",
		zap.Uint64("block_number", header.Number),
		zap.String("block_hash", header.Hash.Hex()),
		zap.Error(err),
	)
	if p.cache == nil {
		return
	}
	for _, buffered := range p.window.Headers() {
		if buffered.Number >= header.Number {
			p.cache.Invalidate(buffered.Hash)
		}
	}
}

func (p *Pipeline) prefetch(ctx context.Context, header model.BlockHeader) {
	if p.cache == nil {
		return
	}
	logs, err := p.fetch(ctx, header.Hash)
	if err != nil {
		p.logger.Warn("prefetch logs failed", zap.Uint64("block_number", header.Number), zap.Error(err))
		return
	}
	p.cache.Put(header.Hash, logs)
}

func (p *Pipeline) fetch(ctx context.Context, blockHash common.Hash) ([]types.Log, error) {
	start := time.Now()
	logs, err := p.fetcher.FetchLogs(ctx, blockHash, p.cfg.Contract, p.decoder.Topic0())
	p.metrics.ObserveLogFetch(time.Since(start))
	return logs, err
}

func (p *Pipeline) processConfirmed(ctx context.Context, header model.BlockHeader) error {
	if p.hasLast && header.Number <= p.last.BlockNumber {
		p.metrics.BlockSkipped()
		p.logger.Debug("block already processed", zap.Uint64("block_number", header.Number))
		if p.cache != nil {
			p.cache.Invalidate(header.Hash)
		}
		return nil
	}

	logs, err := p.confirmedLogs(ctx, header)
	if err != nil {
		return fmt.Errorf("fetch logs for block %d: %w", header.Number, err)
	}

	reported := 0
	for _, log := range logs {
		event, err := p.decoder.Decode(log)
		if err != nil {
			p.metrics.DecodeError(decodeErrorReason(err))
			p.logger.Warn("decode log failed",
				zap.Uint64("block_number", header.Number),
				zap.String("tx_hash", log.TxHash.Hex()),
				zap.Uint("log_index", log.Index),
				zap.Error(err),
			)
			continue
		}
		if err := p.reporter.Report(ctx, event); err != nil {
			return fmt.Errorf("report event %s:%d: %w", log.TxHash.Hex(), log.Index, err)
		}
		reported++
	}

	p.metrics.BlockConfirmed(header.Number, len(logs))
	p.logger.Info("block confirmed",
		zap.Uint64("block_number", header.Number),
		zap.String("block_hash", header.Hash.Hex()),
		zap.Int("logs", len(logs)),
		zap.Int("swaps", reported),
	)

	cp := Checkpoint{
		BlockNumber: header.Number,
		BlockHash:   header.Hash.Hex(),
		UpdatedAt:   time.Now().UTC(),
	}
	if p.checkpoint != nil {
		if err := p.checkpoint.Save(ctx, cp); err != nil {
			return fmt.Errorf("save checkpoint: %w", err)
		}
	}
	p.last, p.hasLast = cp, true
	return nil
}

func (p *Pipeline) confirmedLogs(ctx context.Context, header model.BlockHeader) ([]types.Log, error) {
	if p.cache != nil {
		logs, ok := p.cache.Take(header.Hash)
		p.metrics.PrefetchLookup(ok)
		if ok {
			return logs, nil
		}
	}
	return p.fetch(ctx, header.Hash)
}

func decodeErrorReason(err error) string {
	switch {
	case errors.Is(err, dex.ErrSignatureMismatch):
		return "signature_mismatch"
	case errors.Is(err, dex.ErrFieldTypeMismatch):
		return "field_type_mismatch"
	case errors.Is(err, dex.ErrAmountOverflow):
		return "amount_overflow"
	default:
		return "other"
	}
}

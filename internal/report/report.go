// Package report delivers decoded swaps to their outputs.
package report

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"swapwatch/internal/model"
	"swapwatch/internal/monitor"
	"swapwatch/internal/storage"
)

// ConsoleReporter logs every swap with its details.
type ConsoleReporter struct {
	logger *zap.Logger
}

func NewConsoleReporter(logger *zap.Logger) *ConsoleReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleReporter{logger: logger}
}

func (r *ConsoleReporter) Report(_ context.Context, event model.SwapEvent) error {
	r.logger.Info("swap",
		zap.Uint64("block_number", event.BlockNumber),
		zap.String("tx_hash", event.TxHash.Hex()),
		zap.Uint("log_index", event.LogIndex),
		zap.String("sender", event.Sender.Hex()),
		zap.String("recipient", event.Recipient.Hex()),
		zap.String("amount0", event.Amount0.String()),
		zap.String("amount1", event.Amount1.String()),
		zap.String(event.Symbol0, event.Decimal0.String()),
		zap.String(event.Symbol1, event.Decimal1.String()),
		zap.String("direction", event.DirectionLabel),
	)
	return nil
}

// SinkReporter writes each swap to a storage sink.
type SinkReporter struct {
	sink storage.Storage
}

func NewSinkReporter(sink storage.Storage) *SinkReporter {
	return &SinkReporter{sink: sink}
}

func (r *SinkReporter) Report(_ context.Context, event model.SwapEvent) error {
	return r.sink.PutEvents([]model.SwapEvent{event})
}

// MetricsReporter counts swaps by direction and accumulates per-token volume.
type MetricsReporter struct {
	metrics *monitor.Metrics
}

func NewMetricsReporter(metrics *monitor.Metrics) *MetricsReporter {
	return &MetricsReporter{metrics: metrics}
}

func (r *MetricsReporter) Report(_ context.Context, event model.SwapEvent) error {
	r.metrics.SwapDecoded(event.Direction.String())
	amount0, _ := event.Decimal0.Float64()
	amount1, _ := event.Decimal1.Float64()
	r.metrics.AddVolume(event.Symbol0, amount0)
	r.metrics.AddVolume(event.Symbol1, amount1)
	return nil
}

// Reporter is the single-method contract every output satisfies.
type Reporter interface {
	Report(ctx context.Context, event model.SwapEvent) error
}

// Multi fans a swap out to every reporter. All reporters see the event even
// if an earlier one fails; the failures are joined.
type Multi []Reporter

func (m Multi) Report(ctx context.Context, event model.SwapEvent) error {
	var errs []error
	for _, r := range m {
		if err := r.Report(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

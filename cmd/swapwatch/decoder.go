package main

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapwatch/internal/config"
	"swapwatch/internal/dex"
)

// buildDecoder resolves the event descriptor and token settings into a decoder.
func buildDecoder(ctx context.Context, settings config.DecoderSettings, caller dex.ContractCaller, logger *zap.Logger) (*dex.SwapDecoder, common.Address, error) {
	contract, err := config.ParseAddress(settings.Contract)
	if err != nil {
		return nil, common.Address{}, err
	}

	parsed, err := dex.LoadABI(settings.ABIPath)
	if err != nil {
		return nil, common.Address{}, err
	}
	desc, err := dex.NewEventDescriptor(parsed, settings.Event)
	if err != nil {
		return nil, common.Address{}, err
	}

	decoderCfg := dex.DecoderConfig{
		Decimals0:     settings.Decimals0,
		Decimals1:     settings.Decimals1,
		Symbol0:       settings.Token0Symbol,
		Symbol1:       settings.Token1Symbol,
		ZeroDirection: settings.ZeroDirection,
	}

	if settings.TokenMetaFromChain {
		meta, err := dex.FetchPoolMeta(ctx, caller, contract, logger)
		if err != nil {
			return nil, common.Address{}, fmt.Errorf("fetch pool metadata: %w", err)
		}
		decoderCfg.Decimals0 = meta.Token0.Decimals
		decoderCfg.Decimals1 = meta.Token1.Decimals
		decoderCfg.Symbol0 = meta.Token0.SymbolOr(decoderCfg.Symbol0)
		decoderCfg.Symbol1 = meta.Token1.SymbolOr(decoderCfg.Symbol1)
		logger.Info("token metadata loaded",
			zap.String("token0", meta.Token0.Address.Hex()),
			zap.String("symbol0", decoderCfg.Symbol0),
			zap.Uint8("decimals0", decoderCfg.Decimals0),
			zap.String("token1", meta.Token1.Address.Hex()),
			zap.String("symbol1", decoderCfg.Symbol1),
			zap.Uint8("decimals1", decoderCfg.Decimals1),
		)
	}

	decoder, err := dex.NewSwapDecoder(desc, decoderCfg)
	if err != nil {
		return nil, common.Address{}, err
	}
	return decoder, contract, nil
}

package dex

import (
	"bytes"
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"swapwatch/internal/model"
)

// ContractCaller performs read-only contract calls.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// FetchPoolMeta loads the token pair of a pool together with each token's ERC20 metadata.
func FetchPoolMeta(ctx context.Context, caller ContractCaller, pool common.Address, logger *zap.Logger) (model.PoolMeta, error) {
	if caller == nil {
		return model.PoolMeta{}, fmt.Errorf("contract caller is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	poolABI, err := V3PoolABI()
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("parse pool abi: %w", err)
	}

	token0, err := callAddress(ctx, caller, pool, poolABI, "token0")
	if err != nil {
		return model.PoolMeta{}, err
	}
	token1, err := callAddress(ctx, caller, pool, poolABI, "token1")
	if err != nil {
		return model.PoolMeta{}, err
	}

	meta0, err := FetchTokenMeta(ctx, caller, token0, logger)
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("token0 %s: %w", token0.Hex(), err)
	}
	meta1, err := FetchTokenMeta(ctx, caller, token1, logger)
	if err != nil {
		return model.PoolMeta{}, fmt.Errorf("token1 %s: %w", token1.Hex(), err)
	}

	return model.PoolMeta{
		Address: pool,
		Token0:  meta0,
		Token1:  meta1,
	}, nil
}

// FetchTokenMeta loads token metadata via ERC20 calls. Only decimals is required.
func FetchTokenMeta(ctx context.Context, caller ContractCaller, token common.Address, logger *zap.Logger) (model.TokenMeta, error) {
	meta := model.TokenMeta{Address: token}
	if logger == nil {
		logger = zap.NewNop()
	}

	stringABI, err := erc20ABI.get()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 abi: %w", err)
	}
	bytes32ABI, err := erc20Bytes32ABI.get()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	values, err := callMethod(ctx, caller, token, stringABI, "decimals")
	if err != nil {
		return meta, err
	}
	decimals, ok := values[0].(uint8)
	if !ok {
		return meta, fmt.Errorf("unsupported decimals type %T", values[0])
	}
	meta.Decimals = decimals

	meta.Symbol = readText(ctx, caller, token, stringABI, bytes32ABI, "symbol", logger)
	meta.Name = readText(ctx, caller, token, stringABI, bytes32ABI, "name", logger)

	return meta, nil
}

func readText(ctx context.Context, caller ContractCaller, token common.Address, stringABI, bytes32ABI abi.ABI, method string, logger *zap.Logger) string {
	if values, err := callMethod(ctx, caller, token, stringABI, method); err == nil {
		if text, ok := values[0].(string); ok {
			return text
		}
	}
	values, err := callMethod(ctx, caller, token, bytes32ABI, method)
	if err != nil {
		logger.Debug("token text call failed", zap.String("token", token.Hex()), zap.String("method", method), zap.Error(err))
		return ""
	}
	if raw, ok := values[0].([32]byte); ok {
		return string(bytes.TrimRight(raw[:], "\x00"))
	}
	return ""
}

func callAddress(ctx context.Context, caller ContractCaller, contract common.Address, parsed abi.ABI, method string) (common.Address, error) {
	values, err := callMethod(ctx, caller, contract, parsed, method)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := values[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("%s: unsupported address type %T", method, values[0])
	}
	return addr, nil
}

func callMethod(ctx context.Context, caller ContractCaller, contract common.Address, parsed abi.ABI, method string) ([]interface{}, error) {
	data, err := parsed.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := caller.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s: empty result", method)
	}
	return values, nil
}

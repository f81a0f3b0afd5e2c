package dex

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

type fakeCaller struct {
	responses map[common.Address]map[string][]byte
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, errors.New("bad call")
	}
	byMethod, ok := f.responses[*msg.To]
	if !ok {
		return nil, errors.New("no contract")
	}
	resp, ok := byMethod[string(msg.Data[:4])]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return resp, nil
}

func (f *fakeCaller) set(t *testing.T, contract common.Address, method string, out ...interface{}) {
	t.Helper()
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("pool abi: %v", err)
	}
	tokenABI, err := erc20ABI.get()
	if err != nil {
		t.Fatalf("erc20 abi: %v", err)
	}
	m, ok := poolABI.Methods[method]
	if !ok {
		m, ok = tokenABI.Methods[method]
	}
	if !ok {
		t.Fatalf("unknown method %s", method)
	}
	packed, err := m.Outputs.Pack(out...)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	if f.responses == nil {
		f.responses = map[common.Address]map[string][]byte{}
	}
	if f.responses[contract] == nil {
		f.responses[contract] = map[string][]byte{}
	}
	f.responses[contract][string(m.ID)] = packed
}

func TestFetchPoolMeta(t *testing.T) {
	dai := common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f")
	usdc := common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")

	caller := &fakeCaller{}
	caller.set(t, testPool, "token0", dai)
	caller.set(t, testPool, "token1", usdc)
	caller.set(t, dai, "decimals", uint8(18))
	caller.set(t, dai, "symbol", "DAI")
	caller.set(t, dai, "name", "Dai Stablecoin")
	caller.set(t, usdc, "decimals", uint8(6))
	caller.set(t, usdc, "symbol", "USDC")

	meta, err := FetchPoolMeta(context.Background(), caller, testPool, nil)
	if err != nil {
		t.Fatalf("fetch pool meta: %v", err)
	}
	if meta.Token0.Decimals != 18 || meta.Token0.Symbol != "DAI" || meta.Token0.Name != "Dai Stablecoin" {
		t.Fatalf("token0 mismatch: %+v", meta.Token0)
	}
	if meta.Token1.Decimals != 6 || meta.Token1.Symbol != "USDC" {
		t.Fatalf("token1 mismatch: %+v", meta.Token1)
	}
	if meta.Token1.Name != "" {
		t.Fatalf("missing name should be empty, got %q", meta.Token1.Name)
	}
	if meta.Address != testPool {
		t.Fatalf("pool address mismatch: %s", meta.Address.Hex())
	}
}

func TestFetchTokenMetaRequiresDecimals(t *testing.T) {
	token := common.HexToAddress("0x01")
	caller := &fakeCaller{}
	caller.set(t, token, "symbol", "XYZ")

	if _, err := FetchTokenMeta(context.Background(), caller, token, nil); err == nil {
		t.Fatalf("expected error when decimals call fails")
	}
}

func TestFetchPoolMetaNilCaller(t *testing.T) {
	if _, err := FetchPoolMeta(context.Background(), nil, testPool, nil); err == nil {
		t.Fatalf("expected error for nil caller")
	}
}

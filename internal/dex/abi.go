package dex

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const v3PoolABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "sender", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "recipient", "type": "address"},
      {"indexed": false, "internalType": "int256", "name": "amount0", "type": "int256"},
      {"indexed": false, "internalType": "int256", "name": "amount1", "type": "int256"},
      {"indexed": false, "internalType": "uint160", "name": "sqrtPriceX96", "type": "uint160"},
      {"indexed": false, "internalType": "uint128", "name": "liquidity", "type": "uint128"},
      {"indexed": false, "internalType": "int24", "name": "tick", "type": "int24"}
    ],
    "name": "Swap",
    "type": "event"
  },
  {
    "inputs": [],
    "name": "token0",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  },
  {
    "inputs": [],
    "name": "token1",
    "outputs": [{"internalType": "address", "name": "", "type": "address"}],
    "stateMutability": "view",
    "type": "function"
  }
]`

const erc20ABIJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`

// Some older tokens (MKR, SAI) return bytes32 for symbol and name.
const erc20Bytes32ABIJSON = `[
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "name", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

type lazyABI struct {
	json   string
	once   sync.Once
	parsed abi.ABI
	err    error
}

func (l *lazyABI) get() (abi.ABI, error) {
	l.once.Do(func() {
		l.parsed, l.err = abi.JSON(strings.NewReader(l.json))
	})
	return l.parsed, l.err
}

var (
	v3PoolABI       = &lazyABI{json: v3PoolABIJSON}
	erc20ABI        = &lazyABI{json: erc20ABIJSON}
	erc20Bytes32ABI = &lazyABI{json: erc20Bytes32ABIJSON}
)

// V3PoolABI returns the parsed V3 pool ABI.
func V3PoolABI() (abi.ABI, error) {
	return v3PoolABI.get()
}

// LoadABI parses a contract ABI file, falling back to the embedded V3 pool ABI
// when path is empty.
func LoadABI(path string) (abi.ABI, error) {
	if path == "" {
		return V3PoolABI()
	}
	file, err := os.Open(path)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("open abi: %w", err)
	}
	defer file.Close()

	parsed, err := abi.JSON(file)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse abi %s: %w", path, err)
	}
	return parsed, nil
}

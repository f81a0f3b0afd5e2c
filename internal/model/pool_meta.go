package model

import "github.com/ethereum/go-ethereum/common"

// TokenMeta is the ERC20 metadata the decoder needs for one side of a pool.
type TokenMeta struct {
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
	Symbol   string         `json:"symbol"`
	Name     string         `json:"name,omitempty"`
}

// SymbolOr returns the token symbol, or fallback when the token reported none.
func (t TokenMeta) SymbolOr(fallback string) string {
	if t.Symbol == "" {
		return fallback
	}
	return t.Symbol
}

// PoolMeta is the ordered token pair of a pool.
type PoolMeta struct {
	Address common.Address `json:"address"`
	Token0  TokenMeta      `json:"token0"`
	Token1  TokenMeta      `json:"token1"`
}

package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// Direction is the trade direction of a swap relative to the pool's token pair.
type Direction int

const (
	// DirectionToken1ToToken0 means token1 was sold for token0.
	DirectionToken1ToToken0 Direction = iota
	// DirectionToken0ToToken1 means token0 was sold for token1.
	DirectionToken0ToToken1
	// DirectionNeutral is only produced for a zero amount0 under the neutral policy.
	DirectionNeutral
)

func (d Direction) String() string {
	switch d {
	case DirectionToken0ToToken1:
		return "token0_to_token1"
	case DirectionToken1ToToken0:
		return "token1_to_token0"
	default:
		return "neutral"
	}
}

// MarshalText encodes the direction name.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Label renders the direction with token symbols, e.g. "DAI to USDC".
func (d Direction) Label(symbol0, symbol1 string) string {
	switch d {
	case DirectionToken0ToToken1:
		return symbol0 + " to " + symbol1
	case DirectionToken1ToToken0:
		return symbol1 + " to " + symbol0
	default:
		return "neutral"
	}
}

// SwapEvent is a decoded, sign-corrected pool Swap.
type SwapEvent struct {
	BlockNumber    uint64          `json:"block_number"`
	BlockHash      common.Hash     `json:"block_hash"`
	TxHash         common.Hash     `json:"tx_hash"`
	LogIndex       uint            `json:"log_index"`
	Sender         common.Address  `json:"sender"`
	Recipient      common.Address  `json:"recipient"`
	Amount0        Int128          `json:"amount0"`
	Amount1        Int128          `json:"amount1"`
	Decimal0       decimal.Decimal `json:"decimal0"`
	Decimal1       decimal.Decimal `json:"decimal1"`
	Symbol0        string          `json:"symbol0"`
	Symbol1        string          `json:"symbol1"`
	Direction      Direction       `json:"direction"`
	DirectionLabel string          `json:"direction_label"`
}

package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// BlockHeader is the subset of a chain header the watcher tracks.
type BlockHeader struct {
	Number     uint64      `json:"number"`
	Hash       common.Hash `json:"hash"`
	ParentHash common.Hash `json:"parent_hash"`
	Time       uint64      `json:"time"`
}

// HeaderFromEth converts a go-ethereum header.
func HeaderFromEth(h *types.Header) BlockHeader {
	var number uint64
	if h.Number != nil {
		number = h.Number.Uint64()
	}
	return BlockHeader{
		Number:     number,
		Hash:       h.Hash(),
		ParentHash: h.ParentHash,
		Time:       h.Time,
	}
}

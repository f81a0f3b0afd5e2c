package dex

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Param is one event parameter. Word holds the raw 256-bit slot for
// single-word static types and is nil otherwise. Decoded is false when the
// value could not be read from the log.
type Param struct {
	Name    string
	Type    abi.Type
	Indexed bool
	Decoded bool
	Value   interface{}
	Word    *uint256.Int
}

// decodeParams decodes an event's parameters. The result has one entry per
// input, in ABI order; the returned error explains why the non-indexed payload
// could not be unpacked, if it could not.
func decodeParams(inputs abi.Arguments, topics []common.Hash, data []byte) ([]Param, error) {
	params := make([]Param, len(inputs))

	nonIndexed, unpackErr := inputs.NonIndexed().UnpackValues(data)

	topicIdx := 1
	nonIndexedIdx := 0
	headSlot := 0
	for i, arg := range inputs {
		params[i] = Param{Name: arg.Name, Type: arg.Type, Indexed: arg.Indexed}

		if arg.Indexed {
			idx := topicIdx
			topicIdx++
			if idx >= len(topics) {
				continue
			}
			out := make(map[string]interface{}, 1)
			if err := abi.ParseTopicsIntoMap(out, abi.Arguments{arg}, []common.Hash{topics[idx]}); err != nil {
				continue
			}
			params[i].Decoded = true
			params[i].Value = out[arg.Name]
			params[i].Word = new(uint256.Int).SetBytes32(topics[idx][:])
			continue
		}

		slot := headSlot
		headSlot += headWords(arg.Type)
		idx := nonIndexedIdx
		nonIndexedIdx++
		if unpackErr != nil || idx >= len(nonIndexed) {
			continue
		}

		params[i].Decoded = true
		params[i].Value = nonIndexed[idx]
		if isSingleWord(arg.Type) && len(data) >= (slot+1)*32 {
			params[i].Word = new(uint256.Int).SetBytes32(data[slot*32 : (slot+1)*32])
		}
	}

	return params, unpackErr
}

// paramAt returns the decoded parameter at position i.
func paramAt(params []Param, i int) (Param, bool) {
	if i >= len(params) || !params[i].Decoded {
		return Param{}, false
	}
	return params[i], true
}

func isSingleWord(t abi.Type) bool {
	switch t.T {
	case abi.IntTy, abi.UintTy, abi.AddressTy, abi.BoolTy, abi.FixedBytesTy:
		return true
	default:
		return false
	}
}

// headWords is the number of 32-byte head slots an argument occupies.
func headWords(t abi.Type) int {
	if isDynamic(t) {
		return 1
	}
	switch t.T {
	case abi.ArrayTy:
		return t.Size * headWords(*t.Elem)
	case abi.TupleTy:
		n := 0
		for _, elem := range t.TupleElems {
			n += headWords(*elem)
		}
		return n
	default:
		return 1
	}
}

func isDynamic(t abi.Type) bool {
	switch t.T {
	case abi.StringTy, abi.BytesTy, abi.SliceTy:
		return true
	case abi.ArrayTy:
		return isDynamic(*t.Elem)
	case abi.TupleTy:
		for _, elem := range t.TupleElems {
			if isDynamic(*elem) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

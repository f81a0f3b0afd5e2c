package dex

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"

	"swapwatch/internal/model"
)

// Zero-amount0 direction policies.
const (
	ZeroDirectionToken1ToToken0 = "token1-to-token0"
	ZeroDirectionNeutral        = "neutral"
)

// Swap fields are taken by position from the event inputs; the names only
// label errors.
const (
	posSender = iota
	posRecipient
	posAmount0
	posAmount1
)

var fieldNames = [...]string{"sender", "recipient", "amount0", "amount1"}

// DecoderConfig configures token scaling and labelling.
type DecoderConfig struct {
	Decimals0     uint8
	Decimals1     uint8
	Symbol0       string
	Symbol1       string
	ZeroDirection string
}

// SwapDecoder decodes pool Swap logs into sign-corrected, scaled events.
type SwapDecoder struct {
	desc EventDescriptor
	cfg  DecoderConfig
}

// NewSwapDecoder builds a decoder bound to one event descriptor.
func NewSwapDecoder(desc EventDescriptor, cfg DecoderConfig) (*SwapDecoder, error) {
	switch cfg.ZeroDirection {
	case "":
		cfg.ZeroDirection = ZeroDirectionToken1ToToken0
	case ZeroDirectionToken1ToToken0, ZeroDirectionNeutral:
	default:
		return nil, fmt.Errorf("unsupported zero direction policy: %s", cfg.ZeroDirection)
	}
	if cfg.Symbol0 == "" {
		cfg.Symbol0 = "token0"
	}
	if cfg.Symbol1 == "" {
		cfg.Symbol1 = "token1"
	}
	return &SwapDecoder{desc: desc, cfg: cfg}, nil
}

// Topic0 returns the event signature hash the decoder accepts.
func (d *SwapDecoder) Topic0() common.Hash {
	return d.desc.ID
}

// Config returns the effective decoder configuration.
func (d *SwapDecoder) Config() DecoderConfig {
	return d.cfg
}

// Decode converts one raw log into a SwapEvent.
func (d *SwapDecoder) Decode(log types.Log) (model.SwapEvent, error) {
	if len(log.Topics) == 0 {
		return model.SwapEvent{}, &SignatureMismatchError{Want: d.desc.ID}
	}
	if log.Topics[0] != d.desc.ID {
		got := log.Topics[0]
		return model.SwapEvent{}, &SignatureMismatchError{Want: d.desc.ID, Got: &got}
	}

	params, unpackErr := decodeParams(d.desc.Inputs, log.Topics, log.Data)

	sender, err := addressField(params, posSender, unpackErr)
	if err != nil {
		return model.SwapEvent{}, err
	}
	recipient, err := addressField(params, posRecipient, unpackErr)
	if err != nil {
		return model.SwapEvent{}, err
	}
	amount0, err := signedAmountField(params, posAmount0, unpackErr)
	if err != nil {
		return model.SwapEvent{}, err
	}
	amount1, err := signedAmountField(params, posAmount1, unpackErr)
	if err != nil {
		return model.SwapEvent{}, err
	}

	direction := d.direction(amount0)

	return model.SwapEvent{
		BlockNumber:    log.BlockNumber,
		BlockHash:      log.BlockHash,
		TxHash:         log.TxHash,
		LogIndex:       log.Index,
		Sender:         sender,
		Recipient:      recipient,
		Amount0:        amount0,
		Amount1:        amount1,
		Decimal0:       ScaleAmount(amount0, d.cfg.Decimals0),
		Decimal1:       ScaleAmount(amount1, d.cfg.Decimals1),
		Symbol0:        d.cfg.Symbol0,
		Symbol1:        d.cfg.Symbol1,
		Direction:      direction,
		DirectionLabel: direction.Label(d.cfg.Symbol0, d.cfg.Symbol1),
	}, nil
}

func (d *SwapDecoder) direction(amount0 model.Int128) model.Direction {
	switch amount0.Sign() {
	case 1:
		return model.DirectionToken0ToToken1
	case -1:
		return model.DirectionToken1ToToken0
	}
	if d.cfg.ZeroDirection == ZeroDirectionNeutral {
		return model.DirectionNeutral
	}
	return model.DirectionToken1ToToken0
}

// ScaleAmount converts an integer token amount into decimal units.
func ScaleAmount(amount model.Int128, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(amount.Big(), -int32(decimals))
}

func addressField(params []Param, pos int, unpackErr error) (common.Address, error) {
	name := fieldNames[pos]
	param, ok := paramAt(params, pos)
	if !ok {
		return common.Address{}, missingField(name, unpackErr)
	}
	if param.Type.T != abi.AddressTy {
		return common.Address{}, &FieldTypeMismatchError{Field: name, Reason: "expected address, got " + param.Type.String()}
	}
	addr, ok := param.Value.(common.Address)
	if !ok {
		return common.Address{}, &FieldTypeMismatchError{Field: name, Reason: fmt.Sprintf("unexpected address value %T", param.Value)}
	}
	return addr, nil
}

func signedAmountField(params []Param, pos int, unpackErr error) (model.Int128, error) {
	name := fieldNames[pos]
	param, ok := paramAt(params, pos)
	if !ok {
		return model.Int128{}, missingField(name, unpackErr)
	}
	if param.Type.T != abi.IntTy || param.Type.Size != 256 {
		return model.Int128{}, &FieldTypeMismatchError{Field: name, Reason: "expected int256, got " + param.Type.String()}
	}
	if param.Word == nil {
		return model.Int128{}, &FieldTypeMismatchError{Field: name, Reason: "raw word unavailable"}
	}
	amount, ok := model.Int128FromWord(param.Word)
	if !ok {
		return model.Int128{}, &AmountOverflowError{Field: name, Raw: param.Word.Hex()}
	}
	return amount, nil
}

func missingField(name string, unpackErr error) error {
	reason := "missing"
	if unpackErr != nil {
		reason = "missing: " + strings.TrimPrefix(unpackErr.Error(), "abi: ")
	}
	return &FieldTypeMismatchError{Field: name, Reason: reason}
}

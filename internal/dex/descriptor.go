package dex

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// EventDescriptor identifies one contract event and its ordered parameters.
type EventDescriptor struct {
	Name      string
	Signature string
	ID        common.Hash
	Inputs    abi.Arguments
}

// NewEventDescriptor looks up an event by name in a parsed ABI.
func NewEventDescriptor(parsed abi.ABI, name string) (EventDescriptor, error) {
	event, ok := parsed.Events[name]
	if !ok {
		return EventDescriptor{}, fmt.Errorf("event %q not found in abi", name)
	}
	if event.Anonymous {
		return EventDescriptor{}, fmt.Errorf("event %q is anonymous", name)
	}
	return EventDescriptor{
		Name:      event.Name,
		Signature: event.Sig,
		ID:        event.ID,
		Inputs:    event.Inputs,
	}, nil
}

// SwapDescriptor returns the descriptor of the embedded V3 pool Swap event.
func SwapDescriptor() (EventDescriptor, error) {
	parsed, err := V3PoolABI()
	if err != nil {
		return EventDescriptor{}, err
	}
	return NewEventDescriptor(parsed, "Swap")
}

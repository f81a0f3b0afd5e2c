package storage

import "swapwatch/internal/model"

// Storage defines a sink for decoded swap events.
type Storage interface {
	PutEvents(events []model.SwapEvent) error
	Close() error
}

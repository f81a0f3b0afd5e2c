package window

import (
	"errors"
	"fmt"

	"swapwatch/internal/model"
)

var (
	// ErrDiscontinuity marks a header that does not advance past the tail.
	ErrDiscontinuity = errors.New("header discontinuity")
	// ErrReorgDetected marks a reorganization deeper than the window depth.
	ErrReorgDetected = errors.New("deep reorganization detected")
	// ErrNotReady is returned by PopConfirmed before the window holds depth headers.
	ErrNotReady = errors.New("window not ready")
	// ErrWindowFull is returned when a push would exceed depth+1 headers.
	ErrWindowFull = errors.New("window full")
)

// DiscontinuityError describes a header whose number is not above the tail's.
type DiscontinuityError struct {
	TailNumber uint64
	Number     uint64
	Hash       string
}

func (e *DiscontinuityError) Error() string {
	return fmt.Sprintf("header discontinuity: block %d (%s) does not follow tail %d", e.Number, e.Hash, e.TailNumber)
}

func (e *DiscontinuityError) Is(target error) bool {
	return target == ErrDiscontinuity
}

// ReorgError describes a window whose tail has advanced depth or more blocks past its head.
type ReorgError struct {
	HeadNumber uint64
	TailNumber uint64
	Depth      int
}

func (e *ReorgError) Error() string {
	return fmt.Sprintf("deep reorganization detected: head %d + depth %d <= tail %d", e.HeadNumber, e.Depth, e.TailNumber)
}

func (e *ReorgError) Is(target error) bool {
	return target == ErrReorgDetected
}

// Window is a FIFO of block headers that lags processing by depth blocks.
// It is not safe for concurrent use.
type Window struct {
	depth   int
	headers []model.BlockHeader
}

// New builds a window of the given confirmation depth.
func New(depth int) (*Window, error) {
	if depth < 1 {
		return nil, fmt.Errorf("confirmation depth must be at least 1, got %d", depth)
	}
	return &Window{
		depth:   depth,
		headers: make([]model.BlockHeader, 0, depth+1),
	}, nil
}

// Depth returns the confirmation depth.
func (w *Window) Depth() int {
	return w.depth
}

// Len returns the number of buffered headers.
func (w *Window) Len() int {
	return len(w.headers)
}

// Push appends a header to the tail.
func (w *Window) Push(header model.BlockHeader) error {
	if tail, ok := w.Tail(); ok && header.Number <= tail.Number {
		return &DiscontinuityError{
			TailNumber: tail.Number,
			Number:     header.Number,
			Hash:       header.Hash.Hex(),
		}
	}
	if len(w.headers) >= w.depth+1 {
		return ErrWindowFull
	}
	w.headers = append(w.headers, header)
	return nil
}

// IsReady reports whether the head is confirmed.
func (w *Window) IsReady() bool {
	return len(w.headers) >= w.depth
}

// PopConfirmed removes and returns the head.
func (w *Window) PopConfirmed() (model.BlockHeader, error) {
	if !w.IsReady() {
		return model.BlockHeader{}, ErrNotReady
	}
	head := w.headers[0]
	copy(w.headers, w.headers[1:])
	w.headers = w.headers[:len(w.headers)-1]
	return head, nil
}

// DetectReorg checks the buffered headers against the depth.
func (w *Window) DetectReorg() error {
	head, ok := w.Head()
	if !ok {
		return nil
	}
	tail, _ := w.Tail()
	if head.Number+uint64(w.depth) <= tail.Number {
		return &ReorgError{
			HeadNumber: head.Number,
			TailNumber: tail.Number,
			Depth:      w.depth,
		}
	}
	return nil
}

// ParentMismatch reports whether header directly follows the tail by number
// but names a different parent.
func (w *Window) ParentMismatch(header model.BlockHeader) bool {
	tail, ok := w.Tail()
	if !ok {
		return false
	}
	return header.Number == tail.Number+1 && header.ParentHash != tail.Hash
}

// Head returns the oldest header.
func (w *Window) Head() (model.BlockHeader, bool) {
	if len(w.headers) == 0 {
		return model.BlockHeader{}, false
	}
	return w.headers[0], true
}

// Tail returns the newest header.
func (w *Window) Tail() (model.BlockHeader, bool) {
	if len(w.headers) == 0 {
		return model.BlockHeader{}, false
	}
	return w.headers[len(w.headers)-1], true
}

// Headers returns a copy of the buffered headers, oldest first.
func (w *Window) Headers() []model.BlockHeader {
	out := make([]model.BlockHeader, len(w.headers))
	copy(out, w.headers)
	return out
}

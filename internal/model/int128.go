package model

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Int128 is a signed 128-bit integer stored in two's complement form.
type Int128 struct {
	hi uint64
	lo uint64
}

var (
	// maxPositiveWord is 2^127-1, the largest raw word that decodes as positive.
	maxPositiveWord = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 127), 1)
	// maxNegativeMagnitude is 2^127, the magnitude of MinInt128.
	maxNegativeMagnitude = new(uint256.Int).Lsh(uint256.NewInt(1), 127)
)

// NewInt128 returns v as an Int128.
func NewInt128(v int64) Int128 {
	var hi uint64
	if v < 0 {
		hi = ^uint64(0)
	}
	return Int128{hi: hi, lo: uint64(v)}
}

// MaxInt128 returns 2^127-1.
func MaxInt128() Int128 {
	return Int128{hi: 1<<63 - 1, lo: ^uint64(0)}
}

// MinInt128 returns -2^127.
func MinInt128() Int128 {
	return Int128{hi: 1 << 63}
}

// Int128FromWord recovers a signed value from a 256-bit two's-complement word.
// ok is false when the value lies outside the Int128 range.
func Int128FromWord(word *uint256.Int) (Int128, bool) {
	if word.Cmp(maxPositiveWord) <= 0 {
		return Int128{hi: word[1], lo: word[0]}, true
	}

	// ~(word - 1)
	magnitude := new(uint256.Int).SubUint64(word, 1)
	magnitude.Not(magnitude)
	if magnitude.Cmp(maxNegativeMagnitude) > 0 {
		return Int128{}, false
	}
	return Int128{hi: magnitude[1], lo: magnitude[0]}.Neg(), true
}

// Int128FromBig converts b, failing when it does not fit in 128 signed bits.
func Int128FromBig(b *big.Int) (Int128, error) {
	if b == nil {
		return Int128{}, nil
	}
	if b.Cmp(MinInt128().Big()) < 0 || b.Cmp(MaxInt128().Big()) > 0 {
		return Int128{}, fmt.Errorf("int128 overflow: %s", b.String())
	}
	word, _ := uint256.FromBig(b)
	v, _ := Int128FromWord(word)
	return v, nil
}

// Word sign-extends x into a 256-bit two's-complement word.
func (x Int128) Word() *uint256.Int {
	var ext uint64
	if x.Sign() < 0 {
		ext = ^uint64(0)
	}
	return &uint256.Int{x.lo, x.hi, ext, ext}
}

// Sign returns -1, 0 or +1.
func (x Int128) Sign() int {
	switch {
	case x.hi&(1<<63) != 0:
		return -1
	case x.hi == 0 && x.lo == 0:
		return 0
	default:
		return 1
	}
}

// IsZero reports whether x is zero.
func (x Int128) IsZero() bool {
	return x.hi == 0 && x.lo == 0
}

// Neg returns -x. Negating MinInt128 yields MinInt128.
func (x Int128) Neg() Int128 {
	lo := ^x.lo + 1
	hi := ^x.hi
	if lo == 0 {
		hi++
	}
	return Int128{hi: hi, lo: lo}
}

// Cmp compares x and y as signed values.
func (x Int128) Cmp(y Int128) int {
	xs, ys := int64(x.hi), int64(y.hi)
	switch {
	case xs < ys:
		return -1
	case xs > ys:
		return 1
	case x.lo < y.lo:
		return -1
	case x.lo > y.lo:
		return 1
	default:
		return 0
	}
}

// Big returns x as a new big.Int.
func (x Int128) Big() *big.Int {
	if x.Sign() >= 0 {
		return unsignedBig(x.hi, x.lo)
	}
	m := x.Neg()
	b := unsignedBig(m.hi, m.lo)
	return b.Neg(b)
}

func (x Int128) String() string {
	return x.Big().String()
}

// MarshalText encodes x as a base-10 string.
func (x Int128) MarshalText() ([]byte, error) {
	return []byte(x.String()), nil
}

// UnmarshalText decodes a base-10 string.
func (x *Int128) UnmarshalText(text []byte) error {
	b, ok := new(big.Int).SetString(string(text), 10)
	if !ok {
		return fmt.Errorf("invalid int128: %q", string(text))
	}
	v, err := Int128FromBig(b)
	if err != nil {
		return err
	}
	*x = v
	return nil
}

func unsignedBig(hi, lo uint64) *big.Int {
	b := new(big.Int).SetUint64(hi)
	b.Lsh(b, 64)
	return b.Or(b, new(big.Int).SetUint64(lo))
}

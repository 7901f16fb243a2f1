package entities

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/exp/constraints"
)

// Address is satisfied by the guest address types.
type Address interface {
	~uint64
}

// AddrAs converts a guest address to any integer type, reporting whether
// the value fits without truncation.
func AddrAs[T constraints.Integer, A Address](a A) (T, bool) {
	v := T(a)
	if uint64(v) != uint64(a) || (v < 0) {
		return v, false
	}
	return v, true
}

// AddrFrom builds a guest address from any integer, rejecting negatives.
func AddrFrom[A Address, T constraints.Integer](v T) (A, error) {
	if v < 0 {
		return 0, fmt.Errorf("negative address %d", v)
	}
	return A(v), nil
}

// RegisterValue holds the raw bytes of a register as returned by the host,
// in the guest's byte order.
type RegisterValue []byte

// Uint64 interprets up to the first eight bytes of the value in the given
// byte order. Shorter values are zero-extended.
func (v RegisterValue) Uint64(order binary.ByteOrder) uint64 {
	var buf [8]byte
	n := copy(buf[:], v)
	if order == binary.BigEndian && n < 8 {
		var shifted [8]byte
		copy(shifted[8-n:], v[:n])
		return binary.BigEndian.Uint64(shifted[:])
	}
	return order.Uint64(buf[:])
}

// RegisterAs converts a register value to an unsigned integer type,
// failing when the register is wider than T.
func RegisterAs[T constraints.Unsigned](v RegisterValue, order binary.ByteOrder) (T, error) {
	var zero T
	width := sizeOf(zero)
	if len(v) > width {
		return zero, fmt.Errorf("register of %d bytes does not fit in %d", len(v), width)
	}
	return T(v.Uint64(order)), nil
}

func sizeOf[T constraints.Unsigned](T) int {
	ones := ^T(0)
	n := 0
	for ones != 0 {
		ones >>= 8
		n++
	}
	return n
}

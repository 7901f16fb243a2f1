package entities

import (
	"fmt"
)

// VCPUIndex identifies one emulated CPU. The host passes it on every
// runtime callback; it is stable for the life of the vCPU.
type VCPUIndex uint32

// Vaddr is a guest virtual address.
type Vaddr uint64

// Paddr is a guest physical address.
type Paddr uint64

// Add returns the address offset by n bytes.
func (a Vaddr) Add(n uint64) Vaddr {
	return a + Vaddr(n)
}

// Sub returns the distance in bytes from b to a.
func (a Vaddr) Sub(b Vaddr) uint64 {
	return uint64(a - b)
}

func (a Vaddr) String() string {
	return fmt.Sprintf("%#x", uint64(a))
}

func (a Paddr) String() string {
	return fmt.Sprintf("%#x", uint64(a))
}

// AddrRange is a half-open range of guest virtual addresses [Start, End).
type AddrRange struct {
	Start Vaddr
	End   Vaddr
}

// Contains reports whether addr lies inside the range.
func (r AddrRange) Contains(addr Vaddr) bool {
	return addr >= r.Start && addr < r.End
}

// Len returns the number of bytes in the range.
func (r AddrRange) Len() uint64 {
	if r.End <= r.Start {
		return 0
	}
	return uint64(r.End - r.Start)
}

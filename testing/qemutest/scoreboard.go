package qemutest

import (
	"github.com/qplug-dev/qemu-plugin-sdk/abi"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/ports"
)

type scoreboard struct {
	elemSize int
	values   map[slot]uint64
}

type slot struct {
	vcpu   uint32
	offset uint64
}

// Scoreboards returns the number of scoreboards not yet freed.
func (h *Host) Scoreboards() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.scoreboards)
}

// ScoreboardNew implements ports.ScoreboardAPI.
func (h *Host) ScoreboardNew(elemSize int) ports.ScoreboardRef {
	if !h.require(abi.FuncScoreboardNew) {
		return 0
	}
	ref := ports.ScoreboardRef(h.newRef())
	h.mu.Lock()
	h.scoreboards[ref] = &scoreboard{elemSize: elemSize, values: make(map[slot]uint64)}
	h.mu.Unlock()
	return ref
}

// ScoreboardFree implements ports.ScoreboardAPI.
func (h *Host) ScoreboardFree(ref ports.ScoreboardRef) {
	if !h.require(abi.FuncScoreboardFree) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.scoreboards[ref]; !ok {
		h.violation(abi.FuncScoreboardFree, "unknown scoreboard %#x", uintptr(ref))
		return
	}
	delete(h.scoreboards, ref)
}

// checkEntry validates an entry passed to a registration.
func (h *Host) checkEntry(f abi.Func, e ports.U64Ref) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	sb, ok := h.scoreboards[e.Scoreboard]
	if !ok {
		h.violation(f, "unknown scoreboard %#x", uintptr(e.Scoreboard))
		return false
	}
	if e.Offset+8 > uint64(sb.elemSize) {
		h.violation(f, "offset %d outside element of %d bytes", e.Offset, sb.elemSize)
		return false
	}
	return true
}

// board returns the scoreboard of e. h.mu must be held.
func (h *Host) board(f abi.Func, e ports.U64Ref) *scoreboard {
	sb, ok := h.scoreboards[e.Scoreboard]
	if !ok {
		h.violation(f, "unknown scoreboard %#x", uintptr(e.Scoreboard))
	}
	return sb
}

func (h *Host) u64Get(e ports.U64Ref, vcpu uint32) uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sb, ok := h.scoreboards[e.Scoreboard]; ok {
		return sb.values[slot{vcpu, e.Offset}]
	}
	return 0
}

// u64Update applies fn to an entry. Inline operations on a freed
// scoreboard are silently dropped.
func (h *Host) u64Update(e ports.U64Ref, vcpu uint32, fn func(uint64) uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sb, ok := h.scoreboards[e.Scoreboard]; ok {
		k := slot{vcpu, e.Offset}
		sb.values[k] = fn(sb.values[k])
	}
}

// U64Add implements ports.ScoreboardAPI.
func (h *Host) U64Add(e ports.U64Ref, vcpu uint32, added uint64) {
	if !h.require(abi.FuncU64Add) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if sb := h.board(abi.FuncU64Add, e); sb != nil {
		sb.values[slot{vcpu, e.Offset}] += added
	}
}

// U64Get implements ports.ScoreboardAPI.
func (h *Host) U64Get(e ports.U64Ref, vcpu uint32) uint64 {
	if !h.require(abi.FuncU64Get) {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if sb := h.board(abi.FuncU64Get, e); sb != nil {
		return sb.values[slot{vcpu, e.Offset}]
	}
	return 0
}

// U64Set implements ports.ScoreboardAPI.
func (h *Host) U64Set(e ports.U64Ref, vcpu uint32, v uint64) {
	if !h.require(abi.FuncU64Set) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if sb := h.board(abi.FuncU64Set, e); sb != nil {
		sb.values[slot{vcpu, e.Offset}] = v
	}
}

// U64Sum implements ports.ScoreboardAPI.
func (h *Host) U64Sum(e ports.U64Ref) uint64 {
	if !h.require(abi.FuncU64Sum) {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	sb := h.board(abi.FuncU64Sum, e)
	if sb == nil {
		return 0
	}
	var sum uint64
	for k, v := range sb.values {
		if k.offset == e.Offset {
			sum += v
		}
	}
	return sum
}

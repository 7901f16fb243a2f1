package qemutest

import (
	"slices"

	"github.com/qplug-dev/qemu-plugin-sdk/abi"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/entities"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/ports"
)

// Access is one memory access an instruction performs when executed.
type Access struct {
	Vaddr        uint64
	Store        bool
	SizeShift    uint32
	SignExtended bool
	BigEndian    bool
	// Value and ValueHi are the bytes moved; ValueHi only for 128-bit.
	Value   uint64
	ValueHi uint64
	// IO marks a device access; Device names the region. Paddr defaults
	// to Vaddr.
	IO     bool
	Device string
	Paddr  uint64
}

// Memory info layout: bits 0-3 size shift, 4 sign extension, 5 big endian,
// 6 store. The simulated host keeps the id of the live access above bit 8.
const (
	infoShiftMask = 0xf
	infoSignExt   = 1 << 4
	infoBigEndian = 1 << 5
	infoStore     = 1 << 6
	infoIDShift   = 8
)

// Load returns a load of 1<<shift bytes.
func Load(vaddr uint64, shift uint32, value uint64) Access {
	return Access{Vaddr: vaddr, SizeShift: shift, Value: value}
}

// Store returns a store of 1<<shift bytes.
func Store(vaddr uint64, shift uint32, value uint64) Access {
	return Access{Vaddr: vaddr, Store: true, SizeShift: shift, Value: value}
}

func (a Access) kind() entities.MemRW {
	if a.Store {
		return entities.MemWrite
	}
	return entities.MemRead
}

type liveAccess struct {
	Access
	vcpu uint32
}

func (h *Host) access(vcpu uint32, acc Access, actions []action) {
	var info ports.MemInfo
	registered := false
	for _, a := range actions {
		if (a.kind != actMem && a.kind != actMemInline) || !a.rw.Matches(acc.kind()) {
			continue
		}
		if a.kind == actMemInline {
			h.inline(a, vcpu)
			continue
		}
		if !registered {
			info = h.openAccess(vcpu, acc)
			registered = true
		}
		h.d.MemAccess(vcpu, info, acc.Vaddr, a.ud)
	}
	if registered {
		h.mu.Lock()
		delete(h.accesses, uint32(info)>>infoIDShift)
		h.mu.Unlock()
	}
}

func (h *Host) openAccess(vcpu uint32, acc Access) ports.MemInfo {
	h.mu.Lock()
	h.nextAccess++
	id := h.nextAccess
	h.accesses[id] = &liveAccess{Access: acc, vcpu: vcpu}
	h.mu.Unlock()

	info := uint32(acc.SizeShift & infoShiftMask)
	if acc.SignExtended {
		info |= infoSignExt
	}
	if acc.BigEndian {
		info |= infoBigEndian
	}
	if acc.Store {
		info |= infoStore
	}
	return ports.MemInfo(info | id<<infoIDShift)
}

func (h *Host) lookupAccess(f abi.Func, id uint32) (*liveAccess, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	acc, ok := h.accesses[id]
	if !ok {
		h.violation(f, "memory access %d is not in progress", id)
	}
	return acc, ok
}

// MemSizeShift implements ports.MemoryAPI.
func (h *Host) MemSizeShift(info ports.MemInfo) uint32 {
	h.require(abi.FuncMemSizeShift)
	return uint32(info) & infoShiftMask
}

// MemIsSignExtended implements ports.MemoryAPI.
func (h *Host) MemIsSignExtended(info ports.MemInfo) bool {
	h.require(abi.FuncMemIsSignExtended)
	return info&infoSignExt != 0
}

// MemIsBigEndian implements ports.MemoryAPI.
func (h *Host) MemIsBigEndian(info ports.MemInfo) bool {
	h.require(abi.FuncMemIsBigEndian)
	return info&infoBigEndian != 0
}

// MemIsStore implements ports.MemoryAPI.
func (h *Host) MemIsStore(info ports.MemInfo) bool {
	h.require(abi.FuncMemIsStore)
	return info&infoStore != 0
}

// MemValue implements ports.MemoryAPI. The type tag is the size shift.
func (h *Host) MemValue(info ports.MemInfo) (uint32, uint64, uint64) {
	if !h.require(abi.FuncMemGetValue) {
		return 0, 0, 0
	}
	acc, ok := h.lookupAccess(abi.FuncMemGetValue, uint32(info)>>infoIDShift)
	if !ok {
		return 0, 0, 0
	}
	return acc.SizeShift, acc.Value, acc.ValueHi
}

// GetHwaddr implements ports.MemoryAPI. User-mode emulation has no
// physical addresses.
func (h *Host) GetHwaddr(info ports.MemInfo, vaddr uint64) ports.HwaddrRef {
	if !h.require(abi.FuncGetHwaddr) || !h.cfg.info.SystemEmulation {
		return 0
	}
	id := uint32(info) >> infoIDShift
	acc, ok := h.lookupAccess(abi.FuncGetHwaddr, id)
	if !ok || acc.Vaddr != vaddr {
		return 0
	}
	return ports.HwaddrRef(id)
}

func (h *Host) hwaddr(f abi.Func, ref ports.HwaddrRef) (*liveAccess, bool) {
	if !h.require(f) {
		return nil, false
	}
	return h.lookupAccess(f, uint32(ref))
}

// HwaddrIsIO implements ports.MemoryAPI.
func (h *Host) HwaddrIsIO(ref ports.HwaddrRef) bool {
	acc, ok := h.hwaddr(abi.FuncHwaddrIsIO, ref)
	return ok && acc.IO
}

// HwaddrPhysAddr implements ports.MemoryAPI.
func (h *Host) HwaddrPhysAddr(ref ports.HwaddrRef) uint64 {
	acc, ok := h.hwaddr(abi.FuncHwaddrPhysAddr, ref)
	if !ok {
		return 0
	}
	if acc.Paddr != 0 {
		return acc.Paddr
	}
	return acc.Vaddr
}

// HwaddrDeviceName implements ports.MemoryAPI.
func (h *Host) HwaddrDeviceName(ref ports.HwaddrRef) (string, bool) {
	acc, ok := h.hwaddr(abi.FuncHwaddrDeviceName, ref)
	if !ok {
		return "", false
	}
	if !acc.IO {
		return "RAM", true
	}
	return acc.Device, acc.Device != ""
}

// WriteMemory stores data in guest virtual memory.
func (h *Host) WriteMemory(addr uint64, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, b := range data {
		h.memory[addr+uint64(i)] = b
	}
}

// ReadMemoryVaddr implements ports.MemoryAPI. It fails when any byte is
// unmapped or no vCPU callback is running.
func (h *Host) ReadMemoryVaddr(addr uint64, n int) ([]byte, bool) {
	if !h.require(abi.FuncReadMemoryVaddr) {
		return nil, false
	}
	if h.active.Load() == 0 {
		h.mu.Lock()
		h.violation(abi.FuncReadMemoryVaddr, "called outside a vCPU callback")
		h.mu.Unlock()
		return nil, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]byte, n)
	for i := range out {
		b, ok := h.memory[addr+uint64(i)]
		if !ok {
			return nil, false
		}
		out[i] = b
	}
	return out, true
}

// GetRegisters implements ports.RegisterAPI.
func (h *Host) GetRegisters() []ports.RegisterDesc {
	if !h.require(abi.FuncGetRegisters) {
		return nil
	}
	out := make([]ports.RegisterDesc, len(h.cfg.registers))
	for i, r := range h.cfg.registers {
		out[i] = ports.RegisterDesc{Handle: ports.RegisterRef(i + 1), Name: r.Name, Feature: r.Feature}
	}
	return out
}

// SetRegister sets the content of a register of one vCPU.
func (h *Host) SetRegister(vcpu uint32, name string, value []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.regValues[regKey{vcpu: vcpu, name: name}] = slices.Clone(value)
}

// FailRegister makes reads of name return status, which must be negative.
func (h *Host) FailRegister(name string, status int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.regFailures[name] = status
}

// ReadRegister implements ports.RegisterAPI. Reads go to the vCPU whose
// callback entered last, so concurrent callbacks on different vCPUs may
// see each other's registers.
func (h *Host) ReadRegister(reg ports.RegisterRef) ([]byte, int) {
	if !h.require(abi.FuncReadRegister) {
		return nil, -1
	}
	vcpu := h.current.Load()
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active.Load() == 0 {
		h.violation(abi.FuncReadRegister, "called outside a vCPU callback")
		return nil, -1
	}
	i := int(reg) - 1
	if i < 0 || i >= len(h.cfg.registers) {
		h.violation(abi.FuncReadRegister, "unknown register handle %d", reg)
		return nil, -1
	}
	spec := h.cfg.registers[i]
	if status, ok := h.regFailures[spec.Name]; ok {
		return nil, status
	}
	val, ok := h.regValues[regKey{vcpu: vcpu, name: spec.Name}]
	if !ok {
		size := spec.Size
		if size == 0 {
			size = 8
		}
		val = make([]byte, size)
	}
	return slices.Clone(val), len(val)
}

package plugin

import (
	"github.com/qplug-dev/qemu-plugin-sdk/abi"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/entities"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/ports"
	"github.com/qplug-dev/qemu-plugin-sdk/internal/scope"
)

// MemoryAccess describes one guest load or store. The descriptor fields
// decode the packed access info and stay readable after the callback;
// Value and Hwaddr read host state and expire with it.
type MemoryAccess struct {
	p     *Plugin
	info  ports.MemInfo
	vaddr entities.Vaddr
	tok   scope.Token
}

func (p *Plugin) newMemoryAccess(info ports.MemInfo, vaddr uint64, tok scope.Token) *MemoryAccess {
	return &MemoryAccess{p: p, info: info, vaddr: entities.Vaddr(vaddr), tok: tok}
}

// Vaddr returns the guest virtual address accessed.
func (m *MemoryAccess) Vaddr() entities.Vaddr {
	return m.vaddr
}

// IsStore reports whether the access is a store.
func (m *MemoryAccess) IsStore() bool {
	return m.p.host.MemIsStore(m.info)
}

// Kind returns MemWrite for stores and MemRead for loads.
func (m *MemoryAccess) Kind() entities.MemRW {
	if m.IsStore() {
		return entities.MemWrite
	}
	return entities.MemRead
}

// SizeShift returns log2 of the access size.
func (m *MemoryAccess) SizeShift() uint32 {
	return m.p.host.MemSizeShift(m.info)
}

// Size returns the access size in bytes.
func (m *MemoryAccess) Size() int {
	return 1 << m.SizeShift()
}

// SignExtended reports whether a load was sign-extended.
func (m *MemoryAccess) SignExtended() bool {
	return m.p.host.MemIsSignExtended(m.info)
}

// BigEndian reports whether the access was big-endian.
func (m *MemoryAccess) BigEndian() bool {
	return m.p.host.MemIsBigEndian(m.info)
}

// Value returns the value loaded or stored.
func (m *MemoryAccess) Value() (entities.MemValue, error) {
	if err := m.p.contract.Require(abi.FuncMemGetValue); err != nil {
		return entities.MemValue{}, err
	}
	if err := m.tok.Check("memory access", "value"); err != nil {
		return entities.MemValue{}, err
	}
	raw, lo, hi := m.p.host.MemValue(m.info)
	typ, err := m.p.contract.DecodeMemValueType(raw)
	if err != nil {
		return entities.MemValue{}, err
	}
	return entities.MemValue{Type: typ, Lo: lo, Hi: hi}, nil
}

// Hwaddr returns the physical side of the access. It returns nil, nil when
// the host has none, as in user-mode emulation.
func (m *MemoryAccess) Hwaddr() (*HardwareAddress, error) {
	if err := m.tok.Check("memory access", "hwaddr"); err != nil {
		return nil, err
	}
	host := m.p.host
	h := host.GetHwaddr(m.info, uint64(m.vaddr))
	if h == 0 {
		return nil, nil
	}
	hw := &HardwareAddress{
		isIO: host.HwaddrIsIO(h),
		phys: entities.Paddr(host.HwaddrPhysAddr(h)),
	}
	hw.device, hw.hasDevice = host.HwaddrDeviceName(h)
	return hw, nil
}

// HardwareAddress is a snapshot of the physical side of a memory access,
// taken while the callback ran.
type HardwareAddress struct {
	isIO      bool
	phys      entities.Paddr
	device    string
	hasDevice bool
}

// IsIO reports whether the access hit an I/O region rather than RAM.
func (h *HardwareAddress) IsIO() bool {
	return h.isIO
}

// PhysAddr returns the guest physical address, or the offset into the
// device for I/O accesses.
func (h *HardwareAddress) PhysAddr() entities.Paddr {
	return h.phys
}

// DeviceName returns the name of the memory region, when it has one.
func (h *HardwareAddress) DeviceName() (string, bool) {
	return h.device, h.hasDevice
}

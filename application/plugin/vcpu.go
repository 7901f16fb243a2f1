package plugin

import (
	stdErrors "errors"
	"fmt"
	"slices"

	"github.com/qplug-dev/qemu-plugin-sdk/abi"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/entities"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/errors"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/ports"
	"github.com/qplug-dev/qemu-plugin-sdk/internal/scope"
)

// ErrRegisterNotFound is returned by VCPU.Register for unknown names.
var ErrRegisterNotFound = stdErrors.New("register not found")

// RegisterValue is the raw content of a register in guest byte order.
type RegisterValue = entities.RegisterValue

// RegisterDescriptor names one guest register. Descriptors are fetched
// once per plugin instance and stay valid for its lifetime.
type RegisterDescriptor struct {
	Name    string
	Feature string
	handle  ports.RegisterRef
}

// VCPU is the vCPU a callback runs on. Index is always available; register
// access only works while the callback runs.
type VCPU struct {
	p     *Plugin
	index entities.VCPUIndex
	tok   scope.Token
}

func (p *Plugin) vcpu(index uint32, tok scope.Token) VCPU {
	return VCPU{p: p, index: entities.VCPUIndex(index), tok: tok}
}

// Index returns the vCPU index.
func (v VCPU) Index() entities.VCPUIndex {
	return v.index
}

// Registers lists the guest registers of this vCPU.
func (v VCPU) Registers() ([]RegisterDescriptor, error) {
	if err := v.p.contract.Require(abi.FuncGetRegisters); err != nil {
		return nil, err
	}
	if err := v.tok.Check("vcpu", "list registers"); err != nil {
		return nil, err
	}
	return slices.Clone(v.p.registers()), nil
}

// Register finds a register by name.
func (v VCPU) Register(name string) (RegisterDescriptor, error) {
	regs, err := v.Registers()
	if err != nil {
		return RegisterDescriptor{}, err
	}
	for _, r := range regs {
		if r.Name == name {
			return r, nil
		}
	}
	return RegisterDescriptor{}, fmt.Errorf("%w: %s", ErrRegisterNotFound, name)
}

// ReadRegister reads a register of this vCPU. The callback must have been
// registered with ReadRegs or ReadWriteRegs for top-level events other
// than vCPU init, which may always read.
func (v VCPU) ReadRegister(reg RegisterDescriptor) (RegisterValue, error) {
	if err := v.p.contract.Require(abi.FuncReadRegister); err != nil {
		return nil, err
	}
	if err := v.tok.Check("vcpu", "read register"); err != nil {
		return nil, err
	}
	data, status := v.p.host.ReadRegister(reg.handle)
	if status < 0 {
		return nil, &errors.HostCallError{Call: string(abi.FuncReadRegister), Status: status}
	}
	return RegisterValue(data), nil
}

// WriteRegister writes a register of this vCPU. No plugin API version up
// to v4 offers register writes, so it reports UnsupportedOnVersion.
func (v VCPU) WriteRegister(reg RegisterDescriptor, value []byte) error {
	if err := v.p.contract.Require(abi.FuncWriteRegister); err != nil {
		return err
	}
	return v.tok.Check("vcpu", "write register")
}

// ReadMemory reads guest virtual memory as seen by this vCPU.
func (v VCPU) ReadMemory(addr entities.Vaddr, n int) ([]byte, error) {
	if err := v.p.contract.Require(abi.FuncReadMemoryVaddr); err != nil {
		return nil, err
	}
	if err := v.tok.Check("vcpu", "read memory"); err != nil {
		return nil, err
	}
	return v.p.ReadMemory(addr, n)
}

func (p *Plugin) registers() []RegisterDescriptor {
	p.regsMu.Lock()
	defer p.regsMu.Unlock()
	if p.regs == nil {
		raw := p.host.GetRegisters()
		p.regs = make([]RegisterDescriptor, 0, len(raw))
		for _, r := range raw {
			p.regs = append(p.regs, RegisterDescriptor{Name: r.Name, Feature: r.Feature, handle: r.Handle})
		}
	}
	return p.regs
}

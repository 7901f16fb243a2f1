package plugin

import (
	"sync/atomic"

	"github.com/qplug-dev/qemu-plugin-sdk/abi"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/entities"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/errors"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/ports"
)

// ScoreboardU64 is a host-managed array of one uint64 per vCPU. It is the
// target of inline operations and the operand of conditional callbacks.
// After Free every accessor returns zero and registrations using it fail.
type ScoreboardU64 struct {
	p     *Plugin
	ref   ports.ScoreboardRef
	freed atomic.Bool
}

// NewScoreboardU64 allocates a per-vCPU counter.
func (p *Plugin) NewScoreboardU64() (*ScoreboardU64, error) {
	if err := p.contract.Require(abi.FuncScoreboardNew); err != nil {
		return nil, err
	}
	ref := p.host.ScoreboardNew(8)
	if ref == 0 {
		return nil, &errors.HostCallError{Call: string(abi.FuncScoreboardNew), Status: -1}
	}
	return &ScoreboardU64{p: p, ref: ref}, nil
}

func (s *ScoreboardU64) entry(op string) (ports.U64Ref, error) {
	if s == nil {
		return ports.U64Ref{}, &errors.RegistrationContextError{Operation: op, Reason: "nil scoreboard"}
	}
	if s.freed.Load() {
		return ports.U64Ref{}, &errors.RegistrationContextError{Operation: op, Reason: "scoreboard freed"}
	}
	return ports.U64Ref{Scoreboard: s.ref}, nil
}

func (s *ScoreboardU64) live() (ports.U64Ref, bool) {
	e, err := s.entry("")
	return e, err == nil
}

// Get returns the counter of one vCPU.
func (s *ScoreboardU64) Get(vcpu entities.VCPUIndex) uint64 {
	e, ok := s.live()
	if !ok {
		return 0
	}
	return s.p.host.U64Get(e, uint32(vcpu))
}

// Set overwrites the counter of one vCPU.
func (s *ScoreboardU64) Set(vcpu entities.VCPUIndex, v uint64) {
	if e, ok := s.live(); ok {
		s.p.host.U64Set(e, uint32(vcpu), v)
	}
}

// Add adds to the counter of one vCPU.
func (s *ScoreboardU64) Add(vcpu entities.VCPUIndex, v uint64) {
	if e, ok := s.live(); ok {
		s.p.host.U64Add(e, uint32(vcpu), v)
	}
}

// Sum returns the total over all vCPUs.
func (s *ScoreboardU64) Sum() uint64 {
	e, ok := s.live()
	if !ok {
		return 0
	}
	return s.p.host.U64Sum(e)
}

// Free releases the scoreboard. Calling it twice is a no-op.
func (s *ScoreboardU64) Free() {
	if s.freed.CompareAndSwap(false, true) {
		s.p.host.ScoreboardFree(s.ref)
	}
}

// TimeControl is the exclusive right to drive the guest clock.
type TimeControl struct {
	p   *Plugin
	ref ports.TimeControlRef
}

// RequestTimeControl takes control of guest time. Only one plugin can hold
// it; the host reports failure when another already does.
func (p *Plugin) RequestTimeControl() (*TimeControl, error) {
	if err := p.contract.Require(abi.FuncRequestTimeControl); err != nil {
		return nil, err
	}
	ref := p.host.RequestTimeControl()
	if ref == 0 {
		return nil, &errors.HostCallError{Call: string(abi.FuncRequestTimeControl), Status: -1}
	}
	return &TimeControl{p: p, ref: ref}, nil
}

// UpdateNS advances the guest clock to ns nanoseconds.
func (t *TimeControl) UpdateNS(ns int64) error {
	if err := t.p.contract.Require(abi.FuncUpdateNS); err != nil {
		return err
	}
	t.p.host.UpdateNS(t.ref, ns)
	return nil
}

package plugin

import (
	"iter"

	"github.com/qplug-dev/qemu-plugin-sdk/abi"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/entities"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/errors"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/ports"
	"github.com/qplug-dev/qemu-plugin-sdk/internal/scope"
)

// TranslationBlock is a view of a block of guest code being translated. It
// is only usable inside the translate closure that received it; afterwards
// host-backed accessors fail with HandleExpired and registrations with
// InvalidRegistrationContext. Vaddr and NumInstructions stay readable.
// A TranslationBlock is not safe for concurrent use.
type TranslationBlock struct {
	reg   registration
	ref   ports.TBRef
	vaddr entities.Vaddr
	n     int
	insns []*Instruction
}

func (p *Plugin) newBlock(ref ports.TBRef, tok scope.Token) *TranslationBlock {
	vaddr := p.host.TBVaddr(ref)
	n := p.host.TBNumInsns(ref)
	return &TranslationBlock{
		reg: registration{
			p:      p,
			tok:    tok,
			key:    blockKey{serial: p.serial.Add(1), vaddr: vaddr},
			handle: "translation block",
		},
		ref:   ref,
		vaddr: entities.Vaddr(vaddr),
		n:     n,
		insns: make([]*Instruction, n),
	}
}

// Vaddr returns the guest virtual address of the first instruction.
func (tb *TranslationBlock) Vaddr() entities.Vaddr {
	return tb.vaddr
}

// NumInstructions returns the number of instructions in the block.
func (tb *TranslationBlock) NumInstructions() int {
	return tb.n
}

// Valid reports whether the translate callback is still running.
func (tb *TranslationBlock) Valid() bool {
	return tb.reg.tok.Valid()
}

// Instruction returns the i-th instruction of the block.
func (tb *TranslationBlock) Instruction(i int) (*Instruction, error) {
	if err := tb.reg.tok.Check(tb.reg.handle, "instruction"); err != nil {
		return nil, err
	}
	if i < 0 || i >= tb.n {
		return nil, &errors.IndexError{Index: i, Len: tb.n}
	}
	if insn := tb.insns[i]; insn != nil {
		return insn, nil
	}

	host := tb.reg.p.host
	ref := host.TBInsn(tb.ref, i)
	insn := &Instruction{
		reg:   tb.reg,
		ref:   ref,
		index: i,
		vaddr: entities.Vaddr(host.InsnVaddr(ref)),
		size:  host.InsnSize(ref),
	}
	insn.reg.handle = "instruction"
	tb.insns[i] = insn
	return insn, nil
}

// Instructions iterates over the block's instructions in order. It yields
// nothing once the block has expired.
func (tb *TranslationBlock) Instructions() iter.Seq2[int, *Instruction] {
	return func(yield func(int, *Instruction) bool) {
		for i := 0; i < tb.n; i++ {
			insn, err := tb.Instruction(i)
			if err != nil {
				return
			}
			if !yield(i, insn) {
				return
			}
		}
	}
}

// RegisterExec runs fn every time the block executes.
func (tb *TranslationBlock) RegisterExec(flags entities.CallbackFlags, fn func(VCPU)) error {
	const op = "register tb_exec"
	if err := tb.reg.check(op, abi.FuncRegisterTBExec); err != nil {
		return err
	}
	if fn == nil {
		return nilCallback(op)
	}
	enc, err := tb.reg.flags(flags)
	if err != nil {
		return err
	}
	ud := tb.reg.pin(entities.EventTBExec, fn, nil)
	tb.reg.p.host.RegisterTBExec(tb.ref, enc, ud)
	return nil
}

// RegisterExecCond runs fn when the block executes and the scoreboard
// entry of the executing vCPU compared with imm satisfies cond.
func (tb *TranslationBlock) RegisterExecCond(flags entities.CallbackFlags, cond entities.Cond, sb *ScoreboardU64, imm uint64, fn func(VCPU)) error {
	const op = "register tb_exec_cond"
	if err := tb.reg.check(op, abi.FuncRegisterTBExecCond); err != nil {
		return err
	}
	if fn == nil {
		return nilCallback(op)
	}
	enc, err := tb.reg.flags(flags)
	if err != nil {
		return err
	}
	c, entry, err := tb.reg.cond(op, cond, sb)
	if err != nil {
		return err
	}
	ud := tb.reg.pin(entities.EventTBExecCond, fn, nil)
	tb.reg.p.host.RegisterTBExecCond(tb.ref, enc, c, entry, imm, ud)
	return nil
}

// InlineU64 makes the host apply op with imm to the executing vCPU's
// scoreboard entry each time the block executes, without a callback.
func (tb *TranslationBlock) InlineU64(op entities.InlineOp, sb *ScoreboardU64, imm uint64) error {
	const name = "register tb inline op"
	if err := tb.reg.check(name, abi.FuncRegisterTBInlinePerVCPU); err != nil {
		return err
	}
	o, entry, err := tb.reg.inline(name, op, sb)
	if err != nil {
		return err
	}
	tb.reg.p.host.RegisterTBInline(tb.ref, o, entry, imm)
	return nil
}

// Instruction is a view of one guest instruction inside a translation
// block, with the same lifetime rules as the block. Index, Vaddr and Size
// stay readable after expiry.
type Instruction struct {
	reg   registration
	ref   ports.InsnRef
	index int
	vaddr entities.Vaddr
	size  int
}

// Index returns the position of the instruction in its block.
func (i *Instruction) Index() int {
	return i.index
}

// Vaddr returns the guest virtual address of the instruction.
func (i *Instruction) Vaddr() entities.Vaddr {
	return i.vaddr
}

// Size returns the instruction length in bytes.
func (i *Instruction) Size() int {
	return i.size
}

// Data returns a copy of the instruction's opcode bytes.
func (i *Instruction) Data() ([]byte, error) {
	if err := i.reg.tok.Check(i.reg.handle, "data"); err != nil {
		return nil, err
	}
	return i.reg.p.host.InsnData(i.ref), nil
}

// Disassembly returns the host's disassembly of the instruction.
func (i *Instruction) Disassembly() (string, error) {
	if err := i.reg.tok.Check(i.reg.handle, "disassemble"); err != nil {
		return "", err
	}
	return i.reg.p.host.InsnDisas(i.ref), nil
}

// Symbol returns the symbol the instruction belongs to, if the host knows one.
func (i *Instruction) Symbol() (string, bool, error) {
	if err := i.reg.tok.Check(i.reg.handle, "symbol"); err != nil {
		return "", false, err
	}
	name, ok := i.reg.p.host.InsnSymbol(i.ref)
	return name, ok, nil
}

// HostAddr returns the host address the instruction was loaded from; in
// system emulation this is only meaningful for RAM-backed code.
func (i *Instruction) HostAddr() (uintptr, error) {
	if err := i.reg.tok.Check(i.reg.handle, "host address"); err != nil {
		return 0, err
	}
	return i.reg.p.host.InsnHaddr(i.ref), nil
}

// RegisterExec runs fn every time the instruction executes.
func (i *Instruction) RegisterExec(flags entities.CallbackFlags, fn func(VCPU)) error {
	const op = "register insn_exec"
	if err := i.reg.check(op, abi.FuncRegisterInsnExec); err != nil {
		return err
	}
	if fn == nil {
		return nilCallback(op)
	}
	enc, err := i.reg.flags(flags)
	if err != nil {
		return err
	}
	ud := i.reg.pin(entities.EventInsnExec, fn, nil)
	i.reg.p.host.RegisterInsnExec(i.ref, enc, ud)
	return nil
}

// RegisterExecCond runs fn when the instruction executes and the condition
// on the executing vCPU's scoreboard entry holds.
func (i *Instruction) RegisterExecCond(flags entities.CallbackFlags, cond entities.Cond, sb *ScoreboardU64, imm uint64, fn func(VCPU)) error {
	const op = "register insn_exec_cond"
	if err := i.reg.check(op, abi.FuncRegisterInsnExecCond); err != nil {
		return err
	}
	if fn == nil {
		return nilCallback(op)
	}
	enc, err := i.reg.flags(flags)
	if err != nil {
		return err
	}
	c, entry, err := i.reg.cond(op, cond, sb)
	if err != nil {
		return err
	}
	ud := i.reg.pin(entities.EventInsnExecCond, fn, nil)
	i.reg.p.host.RegisterInsnExecCond(i.ref, enc, c, entry, imm, ud)
	return nil
}

// InlineU64 applies op with imm to the executing vCPU's scoreboard entry
// each time the instruction executes.
func (i *Instruction) InlineU64(op entities.InlineOp, sb *ScoreboardU64, imm uint64) error {
	const name = "register insn inline op"
	if err := i.reg.check(name, abi.FuncRegisterInsnInlinePerVCPU); err != nil {
		return err
	}
	o, entry, err := i.reg.inline(name, op, sb)
	if err != nil {
		return err
	}
	i.reg.p.host.RegisterInsnInline(i.ref, o, entry, imm)
	return nil
}

// RegisterMemory runs fn for every memory access of the instruction that
// rw selects.
func (i *Instruction) RegisterMemory(flags entities.CallbackFlags, rw entities.MemRW, fn func(VCPU, *MemoryAccess)) error {
	const op = "register mem"
	if err := i.reg.check(op, abi.FuncRegisterMem); err != nil {
		return err
	}
	if fn == nil {
		return nilCallback(op)
	}
	enc, err := i.reg.flags(flags)
	if err != nil {
		return err
	}
	mode, err := i.reg.p.contract.EncodeMemRW(rw)
	if err != nil {
		return err
	}
	ud := i.reg.pin(entities.EventMemAccess, nil, fn)
	i.reg.p.host.RegisterMemAccess(i.ref, enc, mode, ud)
	return nil
}

// InlineMemoryU64 applies op with imm to the executing vCPU's scoreboard
// entry on every memory access of the instruction that rw selects.
func (i *Instruction) InlineMemoryU64(rw entities.MemRW, op entities.InlineOp, sb *ScoreboardU64, imm uint64) error {
	const name = "register mem inline op"
	if err := i.reg.check(name, abi.FuncRegisterMemInlinePerVCPU); err != nil {
		return err
	}
	mode, err := i.reg.p.contract.EncodeMemRW(rw)
	if err != nil {
		return err
	}
	o, entry, err := i.reg.inline(name, op, sb)
	if err != nil {
		return err
	}
	i.reg.p.host.RegisterMemInline(i.ref, mode, o, entry, imm)
	return nil
}

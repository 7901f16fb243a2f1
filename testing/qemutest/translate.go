package qemutest

import (
	"slices"

	"github.com/qplug-dev/qemu-plugin-sdk/abi"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/entities"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/ports"
)

// Block is guest code the host translates as one unit.
type Block struct {
	Vaddr uint64
	Insns []Insn
}

// Insn is one guest instruction. Its address follows from the block
// address and the sizes of the instructions before it.
type Insn struct {
	Data   []byte
	Disas  string
	Symbol string
	Mem    []Access
}

// NewBlock returns a block of n four-byte instructions at vaddr.
func NewBlock(vaddr uint64, n int) Block {
	b := Block{Vaddr: vaddr, Insns: make([]Insn, n)}
	for i := range b.Insns {
		b.Insns[i] = Insn{Data: []byte{0x1f, 0x20, 0x03, 0xd5}, Disas: "nop"}
	}
	return b
}

// Blocks lays out consecutive blocks with the given instruction counts,
// starting at base.
func Blocks(base uint64, sizes ...int) []Block {
	out := make([]Block, 0, len(sizes))
	addr := base
	for _, n := range sizes {
		b := NewBlock(addr, n)
		out = append(out, b)
		addr += uint64(b.Size())
	}
	return out
}

// Size returns the block length in bytes.
func (b Block) Size() int {
	n := 0
	for _, insn := range b.Insns {
		n += len(insn.Data)
	}
	return n
}

type actionKind int

const (
	actExec actionKind = iota
	actCond
	actInline
	actMem
	actMemInline
)

// action is one registration made against a block or instruction, kept in
// registration order.
type action struct {
	kind  actionKind
	flags uint32
	ud    ports.Userdata
	cond  entities.Cond
	op    entities.InlineOp
	rw    entities.MemRW
	entry ports.U64Ref
	imm   uint64
}

// Translation is a translated block and the callbacks registered on it.
type Translation struct {
	block   Block
	ref     ports.TBRef
	insns   []*insnRecord
	actions []action
	flushed bool
}

// Vaddr returns the block address.
func (tr *Translation) Vaddr() uint64 {
	return tr.block.Vaddr
}

type insnRecord struct {
	insn    Insn
	vaddr   uint64
	ref     ports.InsnRef
	actions []action
}

// Translated returns how many blocks the host has translated.
func (h *Host) Translated() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.translated
}

// Translate translates b and fires the translate event. Registrations are
// only accepted while that event runs.
func (h *Host) Translate(b Block) *Translation {
	tr := &Translation{block: b, ref: ports.TBRef(h.newRef())}
	addr := b.Vaddr
	for _, insn := range b.Insns {
		tr.insns = append(tr.insns, &insnRecord{insn: insn, vaddr: addr, ref: ports.InsnRef(h.newRef())})
		addr += uint64(len(insn.Data))
	}

	h.mu.Lock()
	h.translated++
	h.liveTBs[tr.ref] = tr
	for _, rec := range tr.insns {
		h.liveInsns[rec.ref] = rec
	}
	fire := !h.unloaded && h.hooked[entities.EventTranslate]
	h.mu.Unlock()

	if fire {
		h.d.TBTrans(h.cfg.id, tr.ref)
	}

	h.mu.Lock()
	delete(h.liveTBs, tr.ref)
	for _, rec := range tr.insns {
		delete(h.liveInsns, rec.ref)
	}
	if !h.unloaded {
		h.cache[b.Vaddr] = tr
	} else {
		tr.flushed = true
	}
	h.mu.Unlock()
	return tr
}

// Lookup returns the cached translation at vaddr, if any.
func (h *Host) Lookup(vaddr uint64) (*Translation, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	tr, ok := h.cache[vaddr]
	return tr, ok
}

// Run executes blocks on vcpu, translating each on first use the way
// the host's translation cache does.
func (h *Host) Run(vcpu uint32, blocks ...Block) {
	for _, b := range blocks {
		tr, ok := h.Lookup(b.Vaddr)
		if !ok {
			tr = h.Translate(b)
		}
		h.Execute(vcpu, tr)
	}
}

// Execute runs a translation on vcpu: block registrations in order, then
// for each instruction its registrations followed by those of its memory
// accesses. It returns false when the translation was flushed.
func (h *Host) Execute(vcpu uint32, tr *Translation) bool {
	h.mu.Lock()
	if tr.flushed || h.unloaded {
		h.mu.Unlock()
		return false
	}
	if int(vcpu) >= h.vcpus {
		h.vcpus = int(vcpu) + 1
	}
	tbActions := slices.Clone(tr.actions)
	insnActions := make([][]action, len(tr.insns))
	for i, rec := range tr.insns {
		insnActions[i] = slices.Clone(rec.actions)
	}
	h.mu.Unlock()

	h.withVCPU(vcpu, func() {
		h.runActions(vcpu, tbActions, h.d.TBExec)
		for i, rec := range tr.insns {
			h.runActions(vcpu, insnActions[i], h.d.InsnExec)
			for _, acc := range rec.insn.Mem {
				h.access(vcpu, acc, insnActions[i])
			}
		}
	})
	return true
}

func (h *Host) runActions(vcpu uint32, actions []action, dispatch func(uint32, ports.Userdata)) {
	for _, a := range actions {
		switch a.kind {
		case actExec:
			dispatch(vcpu, a.ud)
		case actCond:
			if a.cond.Eval(h.u64Get(a.entry, vcpu), a.imm) {
				dispatch(vcpu, a.ud)
			}
		case actInline:
			h.inline(a, vcpu)
		}
	}
}

func (h *Host) inline(a action, vcpu uint32) {
	switch a.op {
	case entities.InlineAddU64:
		h.u64Update(a.entry, vcpu, func(v uint64) uint64 { return v + a.imm })
	case entities.InlineStoreU64:
		h.u64Update(a.entry, vcpu, func(uint64) uint64 { return a.imm })
	}
}

func (h *Host) liveTB(f abi.Func, ref ports.TBRef) (*Translation, bool) {
	if !h.require(f) {
		return nil, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	tr, ok := h.liveTBs[ref]
	if !ok {
		h.violation(f, "stale translation block %#x", uintptr(ref))
	}
	return tr, ok
}

func (h *Host) liveInsn(f abi.Func, ref ports.InsnRef) (*insnRecord, bool) {
	if !h.require(f) {
		return nil, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	rec, ok := h.liveInsns[ref]
	if !ok {
		h.violation(f, "stale instruction %#x", uintptr(ref))
	}
	return rec, ok
}

// addTB appends a registration to a live block.
func (h *Host) addTB(f abi.Func, ref ports.TBRef, a action) {
	if _, ok := h.liveTB(f, ref); !ok {
		return
	}
	h.mu.Lock()
	if tr, ok := h.liveTBs[ref]; ok {
		tr.actions = append(tr.actions, a)
	}
	h.mu.Unlock()
}

func (h *Host) addInsn(f abi.Func, ref ports.InsnRef, a action) {
	if _, ok := h.liveInsn(f, ref); !ok {
		return
	}
	h.mu.Lock()
	if rec, ok := h.liveInsns[ref]; ok {
		rec.actions = append(rec.actions, a)
	}
	h.mu.Unlock()
}

// TBNumInsns implements ports.TranslationAPI.
func (h *Host) TBNumInsns(tb ports.TBRef) int {
	tr, ok := h.liveTB(abi.FuncTBNumInsns, tb)
	if !ok {
		return 0
	}
	return len(tr.insns)
}

// TBVaddr implements ports.TranslationAPI.
func (h *Host) TBVaddr(tb ports.TBRef) uint64 {
	tr, ok := h.liveTB(abi.FuncTBVaddr, tb)
	if !ok {
		return 0
	}
	return tr.block.Vaddr
}

// TBInsn implements ports.TranslationAPI.
func (h *Host) TBInsn(tb ports.TBRef, idx int) ports.InsnRef {
	tr, ok := h.liveTB(abi.FuncTBGetInsn, tb)
	if !ok {
		return 0
	}
	if idx < 0 || idx >= len(tr.insns) {
		h.mu.Lock()
		h.violation(abi.FuncTBGetInsn, "index %d out of range", idx)
		h.mu.Unlock()
		return 0
	}
	return tr.insns[idx].ref
}

// InsnData implements ports.TranslationAPI.
func (h *Host) InsnData(insn ports.InsnRef) []byte {
	rec, ok := h.liveInsn(abi.FuncInsnData, insn)
	if !ok {
		return nil
	}
	return slices.Clone(rec.insn.Data)
}

// InsnSize implements ports.TranslationAPI.
func (h *Host) InsnSize(insn ports.InsnRef) int {
	rec, ok := h.liveInsn(abi.FuncInsnSize, insn)
	if !ok {
		return 0
	}
	return len(rec.insn.Data)
}

// InsnVaddr implements ports.TranslationAPI.
func (h *Host) InsnVaddr(insn ports.InsnRef) uint64 {
	rec, ok := h.liveInsn(abi.FuncInsnVaddr, insn)
	if !ok {
		return 0
	}
	return rec.vaddr
}

// hostBase is where the simulated host pretends guest code is mapped.
const hostBase = 0x7f0000000000

// InsnHaddr implements ports.TranslationAPI.
func (h *Host) InsnHaddr(insn ports.InsnRef) uintptr {
	rec, ok := h.liveInsn(abi.FuncInsnHaddr, insn)
	if !ok {
		return 0
	}
	return uintptr(hostBase + rec.vaddr)
}

// InsnDisas implements ports.TranslationAPI.
func (h *Host) InsnDisas(insn ports.InsnRef) string {
	rec, ok := h.liveInsn(abi.FuncInsnDisas, insn)
	if !ok {
		return ""
	}
	return rec.insn.Disas
}

// InsnSymbol implements ports.TranslationAPI.
func (h *Host) InsnSymbol(insn ports.InsnRef) (string, bool) {
	rec, ok := h.liveInsn(abi.FuncInsnSymbol, insn)
	if !ok || rec.insn.Symbol == "" {
		return "", false
	}
	return rec.insn.Symbol, true
}

// RegisterTBExec implements ports.RegistrationAPI.
func (h *Host) RegisterTBExec(tb ports.TBRef, flags uint32, ud ports.Userdata) {
	h.addTB(abi.FuncRegisterTBExec, tb, action{kind: actExec, flags: flags, ud: ud})
}

// RegisterTBExecCond implements ports.RegistrationAPI.
func (h *Host) RegisterTBExecCond(tb ports.TBRef, flags, cond uint32, entry ports.U64Ref, imm uint64, ud ports.Userdata) {
	c, ok := h.decodeCond(abi.FuncRegisterTBExecCond, cond)
	if !ok || !h.checkEntry(abi.FuncRegisterTBExecCond, entry) {
		return
	}
	h.addTB(abi.FuncRegisterTBExecCond, tb, action{kind: actCond, flags: flags, ud: ud, cond: c, entry: entry, imm: imm})
}

// RegisterTBInline implements ports.RegistrationAPI.
func (h *Host) RegisterTBInline(tb ports.TBRef, op uint32, entry ports.U64Ref, imm uint64) {
	o, ok := h.decodeOp(abi.FuncRegisterTBInlinePerVCPU, op)
	if !ok || !h.checkEntry(abi.FuncRegisterTBInlinePerVCPU, entry) {
		return
	}
	h.addTB(abi.FuncRegisterTBInlinePerVCPU, tb, action{kind: actInline, op: o, entry: entry, imm: imm})
}

// RegisterInsnExec implements ports.RegistrationAPI.
func (h *Host) RegisterInsnExec(insn ports.InsnRef, flags uint32, ud ports.Userdata) {
	h.addInsn(abi.FuncRegisterInsnExec, insn, action{kind: actExec, flags: flags, ud: ud})
}

// RegisterInsnExecCond implements ports.RegistrationAPI.
func (h *Host) RegisterInsnExecCond(insn ports.InsnRef, flags, cond uint32, entry ports.U64Ref, imm uint64, ud ports.Userdata) {
	c, ok := h.decodeCond(abi.FuncRegisterInsnExecCond, cond)
	if !ok || !h.checkEntry(abi.FuncRegisterInsnExecCond, entry) {
		return
	}
	h.addInsn(abi.FuncRegisterInsnExecCond, insn, action{kind: actCond, flags: flags, ud: ud, cond: c, entry: entry, imm: imm})
}

// RegisterInsnInline implements ports.RegistrationAPI.
func (h *Host) RegisterInsnInline(insn ports.InsnRef, op uint32, entry ports.U64Ref, imm uint64) {
	o, ok := h.decodeOp(abi.FuncRegisterInsnInlinePerVCPU, op)
	if !ok || !h.checkEntry(abi.FuncRegisterInsnInlinePerVCPU, entry) {
		return
	}
	h.addInsn(abi.FuncRegisterInsnInlinePerVCPU, insn, action{kind: actInline, op: o, entry: entry, imm: imm})
}

// RegisterMemAccess implements ports.RegistrationAPI.
func (h *Host) RegisterMemAccess(insn ports.InsnRef, flags, rw uint32, ud ports.Userdata) {
	mode, ok := h.decodeRW(abi.FuncRegisterMem, rw)
	if !ok {
		return
	}
	h.addInsn(abi.FuncRegisterMem, insn, action{kind: actMem, flags: flags, rw: mode, ud: ud})
}

// RegisterMemInline implements ports.RegistrationAPI.
func (h *Host) RegisterMemInline(insn ports.InsnRef, rw, op uint32, entry ports.U64Ref, imm uint64) {
	mode, ok := h.decodeRW(abi.FuncRegisterMemInlinePerVCPU, rw)
	if !ok {
		return
	}
	o, ok := h.decodeOp(abi.FuncRegisterMemInlinePerVCPU, op)
	if !ok || !h.checkEntry(abi.FuncRegisterMemInlinePerVCPU, entry) {
		return
	}
	h.addInsn(abi.FuncRegisterMemInlinePerVCPU, insn, action{kind: actMemInline, rw: mode, op: o, entry: entry, imm: imm})
}

func (h *Host) decodeCond(f abi.Func, raw uint32) (entities.Cond, bool) {
	for c := entities.CondNever; c <= entities.CondGE; c++ {
		if enc, err := h.contract.EncodeCond(c); err == nil && enc == raw {
			return c, true
		}
	}
	h.mu.Lock()
	h.violation(f, "unknown condition %d", raw)
	h.mu.Unlock()
	return 0, false
}

func (h *Host) decodeOp(f abi.Func, raw uint32) (entities.InlineOp, bool) {
	for _, op := range []entities.InlineOp{entities.InlineAddU64, entities.InlineStoreU64} {
		if enc, err := h.contract.EncodeInlineOp(op); err == nil && enc == raw {
			return op, true
		}
	}
	h.mu.Lock()
	h.violation(f, "unknown inline op %d", raw)
	h.mu.Unlock()
	return 0, false
}

func (h *Host) decodeRW(f abi.Func, raw uint32) (entities.MemRW, bool) {
	for _, rw := range []entities.MemRW{entities.MemRead, entities.MemWrite, entities.MemReadWrite} {
		if enc, err := h.contract.EncodeMemRW(rw); err == nil && enc == raw {
			return rw, true
		}
	}
	h.mu.Lock()
	h.violation(f, "unknown memory selector %d", raw)
	h.mu.Unlock()
	return 0, false
}

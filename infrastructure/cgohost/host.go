//go:build qemu_plugin

package cgohost

// #include <stdlib.h>
// #include "qpg.h"
import "C"

import (
	"sync"
	"unsafe"

	"github.com/qplug-dev/qemu-plugin-sdk/abi"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/entities"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/ports"
)

// The C side and the Go side must agree on the selected version.
const (
	_ = uint(int(abi.Selected) - C.QPG_API_VERSION)
	_ = uint(C.QPG_API_VERSION - int(abi.Selected))
)

// registerCap bounds a single register read. The widest registers QEMU
// describes (SVE Z registers at 2048 bits) fit.
const registerCap = 256

var events = map[entities.Event]C.int{
	entities.EventVCPUInit:      C.QPG_EV_VCPU_INIT,
	entities.EventVCPUExit:      C.QPG_EV_VCPU_EXIT,
	entities.EventVCPUIdle:      C.QPG_EV_VCPU_IDLE,
	entities.EventVCPUResume:    C.QPG_EV_VCPU_RESUME,
	entities.EventTranslate:     C.QPG_EV_TB_TRANS,
	entities.EventSyscall:       C.QPG_EV_SYSCALL,
	entities.EventSyscallReturn: C.QPG_EV_SYSCALL_RET,
	entities.EventFlush:         C.QPG_EV_FLUSH,
	entities.EventAtExit:        C.QPG_EV_ATEXIT,
}

// Host is the ports.Host of a real QEMU process. It keeps no per-plugin
// state: handles are the host's pointers and every string is copied into
// Go memory before it is returned.
type Host struct {
	regsMu sync.Mutex
}

var _ ports.Host = (*Host)(nil)

var host = &Host{}

func u64(e ports.U64Ref) (C.uintptr_t, C.size_t) {
	return C.uintptr_t(e.Scoreboard), C.size_t(e.Offset)
}

func goStringOK(s *C.char) (string, bool) {
	if s == nil {
		return "", false
	}
	return C.GoString(s), true
}

// Uninstall implements ports.LifecycleAPI.
func (h *Host) Uninstall(id ports.PluginID) {
	C.qpg_uninstall(C.qemu_plugin_id_t(id))
}

// Reset implements ports.LifecycleAPI.
func (h *Host) Reset(id ports.PluginID) {
	C.qpg_reset(C.qemu_plugin_id_t(id))
}

// RegisterEvent implements ports.RegistrationAPI.
func (h *Host) RegisterEvent(id ports.PluginID, ev entities.Event) {
	code, ok := events[ev]
	if !ok {
		return
	}
	C.qpg_register_event(C.qemu_plugin_id_t(id), code)
}

func (h *Host) RegisterTBExec(tb ports.TBRef, flags uint32, ud ports.Userdata) {
	C.qpg_register_tb_exec(C.uintptr_t(tb), C.uint(flags), C.uintptr_t(ud))
}

func (h *Host) RegisterTBExecCond(tb ports.TBRef, flags, cond uint32, entry ports.U64Ref, imm uint64, ud ports.Userdata) {
	sb, off := u64(entry)
	C.qpg_register_tb_exec_cond(C.uintptr_t(tb), C.uint(flags), C.uint(cond), sb, off, C.uint64_t(imm), C.uintptr_t(ud))
}

func (h *Host) RegisterTBInline(tb ports.TBRef, op uint32, entry ports.U64Ref, imm uint64) {
	sb, off := u64(entry)
	C.qpg_register_tb_inline(C.uintptr_t(tb), C.uint(op), sb, off, C.uint64_t(imm))
}

func (h *Host) RegisterInsnExec(insn ports.InsnRef, flags uint32, ud ports.Userdata) {
	C.qpg_register_insn_exec(C.uintptr_t(insn), C.uint(flags), C.uintptr_t(ud))
}

func (h *Host) RegisterInsnExecCond(insn ports.InsnRef, flags, cond uint32, entry ports.U64Ref, imm uint64, ud ports.Userdata) {
	sb, off := u64(entry)
	C.qpg_register_insn_exec_cond(C.uintptr_t(insn), C.uint(flags), C.uint(cond), sb, off, C.uint64_t(imm), C.uintptr_t(ud))
}

func (h *Host) RegisterInsnInline(insn ports.InsnRef, op uint32, entry ports.U64Ref, imm uint64) {
	sb, off := u64(entry)
	C.qpg_register_insn_inline(C.uintptr_t(insn), C.uint(op), sb, off, C.uint64_t(imm))
}

func (h *Host) RegisterMemAccess(insn ports.InsnRef, flags, rw uint32, ud ports.Userdata) {
	C.qpg_register_mem(C.uintptr_t(insn), C.uint(flags), C.uint(rw), C.uintptr_t(ud))
}

func (h *Host) RegisterMemInline(insn ports.InsnRef, rw, op uint32, entry ports.U64Ref, imm uint64) {
	sb, off := u64(entry)
	C.qpg_register_mem_inline(C.uintptr_t(insn), C.uint(rw), C.uint(op), sb, off, C.uint64_t(imm))
}

func (h *Host) TBNumInsns(tb ports.TBRef) int {
	return int(C.qpg_tb_n_insns(C.uintptr_t(tb)))
}

func (h *Host) TBVaddr(tb ports.TBRef) uint64 {
	return uint64(C.qpg_tb_vaddr(C.uintptr_t(tb)))
}

func (h *Host) TBInsn(tb ports.TBRef, idx int) ports.InsnRef {
	return ports.InsnRef(C.qpg_tb_get_insn(C.uintptr_t(tb), C.size_t(idx)))
}

func (h *Host) InsnData(insn ports.InsnRef) []byte {
	n := h.InsnSize(insn)
	if n <= 0 {
		return nil
	}
	buf := make([]byte, n)
	got := C.qpg_insn_data(C.uintptr_t(insn), unsafe.Pointer(&buf[0]), C.size_t(n))
	return buf[:int(got)]
}

func (h *Host) InsnSize(insn ports.InsnRef) int {
	return int(C.qpg_insn_size(C.uintptr_t(insn)))
}

func (h *Host) InsnVaddr(insn ports.InsnRef) uint64 {
	return uint64(C.qpg_insn_vaddr(C.uintptr_t(insn)))
}

func (h *Host) InsnHaddr(insn ports.InsnRef) uintptr {
	return uintptr(C.qpg_insn_haddr(C.uintptr_t(insn)))
}

// InsnDisas copies the host's disassembly and frees the host string.
func (h *Host) InsnDisas(insn ports.InsnRef) string {
	s := C.qpg_insn_disas(C.uintptr_t(insn))
	if s == nil {
		return ""
	}
	defer C.qpg_g_free(unsafe.Pointer(s))
	return C.GoString(s)
}

func (h *Host) InsnSymbol(insn ports.InsnRef) (string, bool) {
	return goStringOK(C.qpg_insn_symbol(C.uintptr_t(insn)))
}

func (h *Host) MemSizeShift(info ports.MemInfo) uint32 {
	return uint32(C.qpg_mem_size_shift(C.uint32_t(info)))
}

func (h *Host) MemIsSignExtended(info ports.MemInfo) bool {
	return C.qpg_mem_is_sign_extended(C.uint32_t(info)) != 0
}

func (h *Host) MemIsBigEndian(info ports.MemInfo) bool {
	return C.qpg_mem_is_big_endian(C.uint32_t(info)) != 0
}

func (h *Host) MemIsStore(info ports.MemInfo) bool {
	return C.qpg_mem_is_store(C.uint32_t(info)) != 0
}

func (h *Host) MemValue(info ports.MemInfo) (uint32, uint64, uint64) {
	var lo, hi C.uint64_t
	typ := C.qpg_mem_get_value(C.uint32_t(info), &lo, &hi)
	return uint32(typ), uint64(lo), uint64(hi)
}

func (h *Host) GetHwaddr(info ports.MemInfo, vaddr uint64) ports.HwaddrRef {
	return ports.HwaddrRef(C.qpg_get_hwaddr(C.uint32_t(info), C.uint64_t(vaddr)))
}

func (h *Host) HwaddrIsIO(ref ports.HwaddrRef) bool {
	return C.qpg_hwaddr_is_io(C.uintptr_t(ref)) != 0
}

func (h *Host) HwaddrPhysAddr(ref ports.HwaddrRef) uint64 {
	return uint64(C.qpg_hwaddr_phys_addr(C.uintptr_t(ref)))
}

func (h *Host) HwaddrDeviceName(ref ports.HwaddrRef) (string, bool) {
	return goStringOK(C.qpg_hwaddr_device_name(C.uintptr_t(ref)))
}

func (h *Host) ReadMemoryVaddr(addr uint64, n int) ([]byte, bool) {
	if n <= 0 {
		return nil, true
	}
	buf := make([]byte, n)
	if C.qpg_read_memory_vaddr(C.uint64_t(addr), unsafe.Pointer(&buf[0]), C.size_t(n)) == 0 {
		return nil, false
	}
	return buf, true
}

// GetRegisters copies the register list of the current vCPU. The host
// array is released right away; the handles stay valid for the vCPU.
func (h *Host) GetRegisters() []ports.RegisterDesc {
	h.regsMu.Lock()
	defer h.regsMu.Unlock()
	defer C.qpg_release_registers()

	n := int(C.qpg_num_registers())
	out := make([]ports.RegisterDesc, 0, n)
	for i := 0; i < n; i++ {
		var (
			handle        C.uintptr_t
			name, feature *C.char
		)
		if C.qpg_register_at(C.int(i), &handle, &name, &feature) == 0 {
			break
		}
		d := ports.RegisterDesc{Handle: ports.RegisterRef(handle)}
		d.Name, _ = goStringOK(name)
		d.Feature, _ = goStringOK(feature)
		out = append(out, d)
	}
	return out
}

func (h *Host) ReadRegister(reg ports.RegisterRef) ([]byte, int) {
	buf := make([]byte, registerCap)
	n := int(C.qpg_read_register(C.uintptr_t(reg), unsafe.Pointer(&buf[0]), registerCap))
	if n < 0 {
		return nil, n
	}
	return buf[:min(n, registerCap)], n
}

func (h *Host) ScoreboardNew(elementSize int) ports.ScoreboardRef {
	return ports.ScoreboardRef(C.qpg_scoreboard_new(C.size_t(elementSize)))
}

func (h *Host) ScoreboardFree(sb ports.ScoreboardRef) {
	C.qpg_scoreboard_free(C.uintptr_t(sb))
}

func (h *Host) U64Add(entry ports.U64Ref, vcpu uint32, added uint64) {
	sb, off := u64(entry)
	C.qpg_u64_add(sb, off, C.uint(vcpu), C.uint64_t(added))
}

func (h *Host) U64Get(entry ports.U64Ref, vcpu uint32) uint64 {
	sb, off := u64(entry)
	return uint64(C.qpg_u64_get(sb, off, C.uint(vcpu)))
}

func (h *Host) U64Set(entry ports.U64Ref, vcpu uint32, v uint64) {
	sb, off := u64(entry)
	C.qpg_u64_set(sb, off, C.uint(vcpu), C.uint64_t(v))
}

func (h *Host) U64Sum(entry ports.U64Ref) uint64 {
	sb, off := u64(entry)
	return uint64(C.qpg_u64_sum(sb, off))
}

func (h *Host) NumVCPUs() int { return int(C.qpg_num_vcpus()) }

func (h *Host) MaxVCPUs() int { return int(C.qpg_max_vcpus()) }

func (h *Host) Outs(s string) {
	cs := C.CString(s)
	defer C.free(unsafe.Pointer(cs))
	C.qpg_outs(cs)
}

func (h *Host) BoolParse(name, value string) (bool, bool) {
	cname, cval := C.CString(name), C.CString(value)
	defer C.free(unsafe.Pointer(cname))
	defer C.free(unsafe.Pointer(cval))
	var ret C.int
	ok := C.qpg_bool_parse(cname, cval, &ret) != 0
	return ret != 0, ok
}

// PathToBinary copies and frees the host's duplicated path.
func (h *Host) PathToBinary() (string, bool) {
	p := C.qpg_path_to_binary()
	if p == nil {
		return "", false
	}
	defer C.qpg_g_free(unsafe.Pointer(p))
	return C.GoString(p), true
}

func (h *Host) StartCode() uint64 { return uint64(C.qpg_start_code()) }
func (h *Host) EndCode() uint64   { return uint64(C.qpg_end_code()) }
func (h *Host) EntryCode() uint64 { return uint64(C.qpg_entry_code()) }

func (h *Host) RequestTimeControl() ports.TimeControlRef {
	return ports.TimeControlRef(C.qpg_request_time_control())
}

func (h *Host) UpdateNS(handle ports.TimeControlRef, ns int64) {
	C.qpg_update_ns(C.uintptr_t(handle), C.int64_t(ns))
}

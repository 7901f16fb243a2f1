package abi

import "github.com/qplug-dev/qemu-plugin-sdk/domain/entities"

// Func names a host function by its exported C symbol.
type Func string

const (
	FuncUninstall Func = "qemu_plugin_uninstall"
	FuncReset     Func = "qemu_plugin_reset"

	FuncRegisterVCPUInit          Func = "qemu_plugin_register_vcpu_init_cb"
	FuncRegisterVCPUExit          Func = "qemu_plugin_register_vcpu_exit_cb"
	FuncRegisterVCPUIdle          Func = "qemu_plugin_register_vcpu_idle_cb"
	FuncRegisterVCPUResume        Func = "qemu_plugin_register_vcpu_resume_cb"
	FuncRegisterTBTrans           Func = "qemu_plugin_register_vcpu_tb_trans_cb"
	FuncRegisterTBExec            Func = "qemu_plugin_register_vcpu_tb_exec_cb"
	FuncRegisterTBExecCond        Func = "qemu_plugin_register_vcpu_tb_exec_cond_cb"
	FuncRegisterTBInline          Func = "qemu_plugin_register_vcpu_tb_exec_inline"
	FuncRegisterTBInlinePerVCPU   Func = "qemu_plugin_register_vcpu_tb_exec_inline_per_vcpu"
	FuncRegisterInsnExec          Func = "qemu_plugin_register_vcpu_insn_exec_cb"
	FuncRegisterInsnExecCond      Func = "qemu_plugin_register_vcpu_insn_exec_cond_cb"
	FuncRegisterInsnInline        Func = "qemu_plugin_register_vcpu_insn_exec_inline"
	FuncRegisterInsnInlinePerVCPU Func = "qemu_plugin_register_vcpu_insn_exec_inline_per_vcpu"
	FuncRegisterMem               Func = "qemu_plugin_register_vcpu_mem_cb"
	FuncRegisterMemInline         Func = "qemu_plugin_register_vcpu_mem_inline"
	FuncRegisterMemInlinePerVCPU  Func = "qemu_plugin_register_vcpu_mem_inline_per_vcpu"
	FuncRegisterSyscall           Func = "qemu_plugin_register_vcpu_syscall_cb"
	FuncRegisterSyscallRet        Func = "qemu_plugin_register_vcpu_syscall_ret_cb"
	FuncRegisterFlush             Func = "qemu_plugin_register_flush_cb"
	FuncRegisterAtExit            Func = "qemu_plugin_register_atexit_cb"

	FuncTBNumInsns Func = "qemu_plugin_tb_n_insns"
	FuncTBVaddr    Func = "qemu_plugin_tb_vaddr"
	FuncTBGetInsn  Func = "qemu_plugin_tb_get_insn"
	FuncInsnData   Func = "qemu_plugin_insn_data"
	FuncInsnSize   Func = "qemu_plugin_insn_size"
	FuncInsnVaddr  Func = "qemu_plugin_insn_vaddr"
	FuncInsnHaddr  Func = "qemu_plugin_insn_haddr"
	FuncInsnDisas  Func = "qemu_plugin_insn_disas"
	FuncInsnSymbol Func = "qemu_plugin_insn_symbol"

	FuncMemSizeShift      Func = "qemu_plugin_mem_size_shift"
	FuncMemIsSignExtended Func = "qemu_plugin_mem_is_sign_extended"
	FuncMemIsBigEndian    Func = "qemu_plugin_mem_is_big_endian"
	FuncMemIsStore        Func = "qemu_plugin_mem_is_store"
	FuncMemGetValue       Func = "qemu_plugin_mem_get_value"
	FuncGetHwaddr         Func = "qemu_plugin_get_hwaddr"
	FuncHwaddrIsIO        Func = "qemu_plugin_hwaddr_is_io"
	FuncHwaddrPhysAddr    Func = "qemu_plugin_hwaddr_phys_addr"
	FuncHwaddrDeviceName  Func = "qemu_plugin_hwaddr_device_name"
	FuncReadMemoryVaddr   Func = "qemu_plugin_read_memory_vaddr"

	FuncGetRegisters  Func = "qemu_plugin_get_registers"
	FuncReadRegister  Func = "qemu_plugin_read_register"
	FuncWriteRegister Func = "qemu_plugin_write_register"

	FuncScoreboardNew  Func = "qemu_plugin_scoreboard_new"
	FuncScoreboardFree Func = "qemu_plugin_scoreboard_free"
	FuncScoreboardFind Func = "qemu_plugin_scoreboard_find"
	FuncU64Add         Func = "qemu_plugin_u64_add"
	FuncU64Get         Func = "qemu_plugin_u64_get"
	FuncU64Set         Func = "qemu_plugin_u64_set"
	FuncU64Sum         Func = "qemu_plugin_u64_sum"

	FuncNVCPUs             Func = "qemu_plugin_n_vcpus"
	FuncNMaxVCPUs          Func = "qemu_plugin_n_max_vcpus"
	FuncNumVCPUs           Func = "qemu_plugin_num_vcpus"
	FuncVCPUForEach        Func = "qemu_plugin_vcpu_for_each"
	FuncOuts               Func = "qemu_plugin_outs"
	FuncBoolParse          Func = "qemu_plugin_bool_parse"
	FuncPathToBinary       Func = "qemu_plugin_path_to_binary"
	FuncStartCode          Func = "qemu_plugin_start_code"
	FuncEndCode            Func = "qemu_plugin_end_code"
	FuncEntryCode          Func = "qemu_plugin_entry_code"
	FuncRequestTimeControl Func = "qemu_plugin_request_time_control"
	FuncUpdateNS           Func = "qemu_plugin_update_ns"
)

// eventFuncs maps each event to the host function that registers it or,
// for reset and uninstall completions, the function that requests it.
var eventFuncs = map[entities.Event]Func{
	entities.EventVCPUInit:      FuncRegisterVCPUInit,
	entities.EventVCPUExit:      FuncRegisterVCPUExit,
	entities.EventVCPUIdle:      FuncRegisterVCPUIdle,
	entities.EventVCPUResume:    FuncRegisterVCPUResume,
	entities.EventTranslate:     FuncRegisterTBTrans,
	entities.EventTBExec:        FuncRegisterTBExec,
	entities.EventTBExecCond:    FuncRegisterTBExecCond,
	entities.EventInsnExec:      FuncRegisterInsnExec,
	entities.EventInsnExecCond:  FuncRegisterInsnExecCond,
	entities.EventMemAccess:     FuncRegisterMem,
	entities.EventSyscall:       FuncRegisterSyscall,
	entities.EventSyscallReturn: FuncRegisterSyscallRet,
	entities.EventFlush:         FuncRegisterFlush,
	entities.EventAtExit:        FuncRegisterAtExit,
	entities.EventReset:         FuncReset,
	entities.EventUninstall:     FuncUninstall,
}

// EventFunc returns the host function behind an event.
func EventFunc(ev entities.Event) (Func, bool) {
	f, ok := eventFuncs[ev]
	return f, ok
}

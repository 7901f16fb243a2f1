//go:build qemu_plugin

package cgohost

// #include "qpg.h"
import "C"

import (
	"log/slog"
	"unsafe"

	"github.com/qplug-dev/qemu-plugin-sdk/abi"
	"github.com/qplug-dev/qemu-plugin-sdk/application/plugin"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/entities"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/ports"
)

// Every exported function forwards to the default router, which recovers
// panics from user callbacks. Nothing here may block on Go-side locks the
// router does not already order.

//export qemu_plugin_install
func qemu_plugin_install(id C.uint64_t, info *C.qemu_info_t, argc C.int, argv **C.char) C.int {
	if err := link(); err != nil {
		slog.Error("qemu plugin: cannot bind host API", "error", err)
		return C.int(abi.InstallFailed)
	}
	return C.int(plugin.DefaultRouter().Install(host, ports.PluginID(id), hostInfo(info), args(argc, argv)))
}

func hostInfo(info *C.qemu_info_t) entities.Info {
	if info == nil {
		return entities.Info{}
	}
	return entities.Info{
		TargetName:      C.GoString(C.qpg_info_target(info)),
		APIMin:          int(C.qpg_info_min(info)),
		APICur:          int(C.qpg_info_cur(info)),
		SystemEmulation: C.qpg_info_system(info) != 0,
		SMPVCPUs:        int(C.qpg_info_smp_vcpus(info)),
		MaxVCPUs:        int(C.qpg_info_max_vcpus(info)),
	}
}

func args(argc C.int, argv **C.char) []string {
	if argc <= 0 || argv == nil {
		return nil
	}
	out := make([]string, 0, int(argc))
	for _, a := range unsafe.Slice(argv, int(argc)) {
		out = append(out, C.GoString(a))
	}
	return out
}

//export qpgVCPUInit
func qpgVCPUInit(id C.uint64_t, vcpu C.uint) {
	plugin.DefaultRouter().VCPUInit(ports.PluginID(id), uint32(vcpu))
}

//export qpgVCPUExit
func qpgVCPUExit(id C.uint64_t, vcpu C.uint) {
	plugin.DefaultRouter().VCPUExit(ports.PluginID(id), uint32(vcpu))
}

//export qpgVCPUIdle
func qpgVCPUIdle(id C.uint64_t, vcpu C.uint) {
	plugin.DefaultRouter().VCPUIdle(ports.PluginID(id), uint32(vcpu))
}

//export qpgVCPUResume
func qpgVCPUResume(id C.uint64_t, vcpu C.uint) {
	plugin.DefaultRouter().VCPUResume(ports.PluginID(id), uint32(vcpu))
}

//export qpgTBTrans
func qpgTBTrans(id C.uint64_t, tb C.uintptr_t) {
	plugin.DefaultRouter().TBTrans(ports.PluginID(id), ports.TBRef(tb))
}

//export qpgTBExec
func qpgTBExec(vcpu C.uint, ud C.uintptr_t) {
	plugin.DefaultRouter().TBExec(uint32(vcpu), ports.Userdata(ud))
}

//export qpgInsnExec
func qpgInsnExec(vcpu C.uint, ud C.uintptr_t) {
	plugin.DefaultRouter().InsnExec(uint32(vcpu), ports.Userdata(ud))
}

//export qpgMemAccess
func qpgMemAccess(vcpu C.uint, info C.uint32_t, vaddr C.uint64_t, ud C.uintptr_t) {
	plugin.DefaultRouter().MemAccess(uint32(vcpu), ports.MemInfo(info), uint64(vaddr), ports.Userdata(ud))
}

//export qpgSyscall
func qpgSyscall(id C.uint64_t, vcpu C.uint, num C.int64_t, a1, a2, a3, a4, a5, a6, a7, a8 C.uint64_t) {
	plugin.DefaultRouter().Syscall(ports.PluginID(id), uint32(vcpu), int64(num), [8]uint64{
		uint64(a1), uint64(a2), uint64(a3), uint64(a4),
		uint64(a5), uint64(a6), uint64(a7), uint64(a8),
	})
}

//export qpgSyscallRet
func qpgSyscallRet(id C.uint64_t, vcpu C.uint, num C.int64_t, ret C.int64_t) {
	plugin.DefaultRouter().SyscallReturn(ports.PluginID(id), uint32(vcpu), int64(num), int64(ret))
}

//export qpgFlush
func qpgFlush(id C.uint64_t) {
	plugin.DefaultRouter().Flush(ports.PluginID(id))
}

//export qpgAtExit
func qpgAtExit(id C.uint64_t) {
	plugin.DefaultRouter().AtExit(ports.PluginID(id))
}

//export qpgUninstalled
func qpgUninstalled(id C.uint64_t) {
	plugin.DefaultRouter().Uninstalled(ports.PluginID(id))
}

//export qpgResetDone
func qpgResetDone(id C.uint64_t) {
	plugin.DefaultRouter().ResetDone(ports.PluginID(id))
}

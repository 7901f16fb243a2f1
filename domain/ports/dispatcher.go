package ports

import "github.com/qplug-dev/qemu-plugin-sdk/domain/entities"

// Dispatcher receives every callback the host delivers. The cgo trampolines
// and the simulated host both call into it. Implementations must be safe
// for concurrent use from multiple vCPU threads and must not panic.
type Dispatcher interface {
	// Install runs plugin setup and returns the status for the host.
	Install(host Host, id PluginID, info entities.Info, args []string) int

	VCPUInit(id PluginID, vcpu uint32)
	VCPUExit(id PluginID, vcpu uint32)
	VCPUIdle(id PluginID, vcpu uint32)
	VCPUResume(id PluginID, vcpu uint32)

	TBTrans(id PluginID, tb TBRef)
	TBExec(vcpu uint32, ud Userdata)
	InsnExec(vcpu uint32, ud Userdata)
	MemAccess(vcpu uint32, info MemInfo, vaddr uint64, ud Userdata)

	Syscall(id PluginID, vcpu uint32, num int64, args [8]uint64)
	SyscallReturn(id PluginID, vcpu uint32, num int64, ret int64)

	Flush(id PluginID)
	AtExit(id PluginID)
	Uninstalled(id PluginID)
	ResetDone(id PluginID)
}

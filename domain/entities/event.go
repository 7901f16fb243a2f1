package entities

// Event identifies a kind of host callback a plugin can register for.
type Event uint8

const (
	// EventVCPUInit fires when a vCPU is created and initialized.
	EventVCPUInit Event = iota + 1
	// EventVCPUExit fires when a vCPU is torn down.
	EventVCPUExit
	// EventVCPUIdle fires when a vCPU goes idle.
	EventVCPUIdle
	// EventVCPUResume fires when an idle vCPU resumes.
	EventVCPUResume
	// EventTranslate fires when the host translates a block of guest code.
	EventTranslate
	// EventTBExec fires each time a translated block executes.
	EventTBExec
	// EventTBExecCond fires when a translated block executes and its condition holds.
	EventTBExecCond
	// EventInsnExec fires each time an instrumented instruction executes.
	EventInsnExec
	// EventInsnExecCond fires when an instruction executes and its condition holds.
	EventInsnExecCond
	// EventMemAccess fires on each memory access of an instrumented instruction.
	EventMemAccess
	// EventSyscall fires on guest syscall entry (user-mode emulation).
	EventSyscall
	// EventSyscallReturn fires on guest syscall return (user-mode emulation).
	EventSyscallReturn
	// EventFlush fires after the host discarded all translated code.
	EventFlush
	// EventAtExit fires once when the host is about to unload the plugin.
	EventAtExit
	// EventReset fires when a requested reset (callback drop and flush) completed.
	EventReset
	// EventUninstall fires when a requested uninstall completed.
	EventUninstall
)

var eventNames = map[Event]string{
	EventVCPUInit:      "vcpu_init",
	EventVCPUExit:      "vcpu_exit",
	EventVCPUIdle:      "vcpu_idle",
	EventVCPUResume:    "vcpu_resume",
	EventTranslate:     "tb_trans",
	EventTBExec:        "tb_exec",
	EventTBExecCond:    "tb_exec_cond",
	EventInsnExec:      "insn_exec",
	EventInsnExecCond:  "insn_exec_cond",
	EventMemAccess:     "mem",
	EventSyscall:       "syscall",
	EventSyscallReturn: "syscall_ret",
	EventFlush:         "flush",
	EventAtExit:        "atexit",
	EventReset:         "reset",
	EventUninstall:     "uninstall",
}

func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	return "unknown"
}

// TopLevel reports whether the event is registered once per plugin with the
// plugin id, as opposed to per translation block or instruction.
func (e Event) TopLevel() bool {
	switch e {
	case EventTBExec, EventTBExecCond, EventInsnExec, EventInsnExecCond, EventMemAccess:
		return false
	case EventReset, EventUninstall:
		// completions of plugin requests, not registrations
		return false
	}
	_, ok := eventNames[e]
	return ok
}

// Events returns every known event kind in declaration order.
func Events() []Event {
	out := make([]Event, 0, len(eventNames))
	for e := EventVCPUInit; e <= EventUninstall; e++ {
		out = append(out, e)
	}
	return out
}

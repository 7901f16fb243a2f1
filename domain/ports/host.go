package ports

import "github.com/qplug-dev/qemu-plugin-sdk/domain/entities"

// PluginID is the identifier the host assigns at install time.
type PluginID uint64

// Userdata is the opaque value handed back to a nested callback.
type Userdata uintptr

// Opaque host references. They are only valid while the callback that
// produced them is running, except ScoreboardRef and TimeControlRef which
// live until freed or until the plugin unloads.
type (
	TBRef          uintptr
	InsnRef        uintptr
	HwaddrRef      uintptr
	RegisterRef    uintptr
	ScoreboardRef  uintptr
	TimeControlRef uintptr
)

// MemInfo is the packed memory access descriptor passed to memory callbacks.
type MemInfo uint32

// U64Ref addresses a uint64 at Offset inside every per-vCPU entry of a scoreboard.
type U64Ref struct {
	Scoreboard ScoreboardRef
	Offset     uint64
}

// RegisterDesc is one entry of the host register list.
type RegisterDesc struct {
	Handle  RegisterRef
	Name    string
	Feature string
}

// Host is the raw plugin API. Enum arguments are already encoded for the
// selected API version; calling a function the version lacks is a
// programming error the caller prevents by consulting abi.Contract.
type Host interface {
	LifecycleAPI
	RegistrationAPI
	TranslationAPI
	MemoryAPI
	RegisterAPI
	ScoreboardAPI
	SystemAPI
}

// LifecycleAPI requests asynchronous lifecycle changes. Completion arrives
// through Dispatcher.Uninstalled and Dispatcher.ResetDone.
type LifecycleAPI interface {
	Uninstall(id PluginID)
	Reset(id PluginID)
}

// RegistrationAPI registers host callbacks.
type RegistrationAPI interface {
	// RegisterEvent installs the host's trampoline for a top-level event.
	RegisterEvent(id PluginID, ev entities.Event)

	RegisterTBExec(tb TBRef, flags uint32, ud Userdata)
	RegisterTBExecCond(tb TBRef, flags, cond uint32, entry U64Ref, imm uint64, ud Userdata)
	RegisterTBInline(tb TBRef, op uint32, entry U64Ref, imm uint64)

	RegisterInsnExec(insn InsnRef, flags uint32, ud Userdata)
	RegisterInsnExecCond(insn InsnRef, flags, cond uint32, entry U64Ref, imm uint64, ud Userdata)
	RegisterInsnInline(insn InsnRef, op uint32, entry U64Ref, imm uint64)

	RegisterMemAccess(insn InsnRef, flags, rw uint32, ud Userdata)
	RegisterMemInline(insn InsnRef, rw, op uint32, entry U64Ref, imm uint64)
}

// TranslationAPI reads translation blocks and instructions during a
// translate callback.
type TranslationAPI interface {
	TBNumInsns(tb TBRef) int
	TBVaddr(tb TBRef) uint64
	TBInsn(tb TBRef, idx int) InsnRef

	// InsnData returns a copy of the instruction's opcode bytes.
	InsnData(insn InsnRef) []byte
	InsnSize(insn InsnRef) int
	InsnVaddr(insn InsnRef) uint64
	InsnHaddr(insn InsnRef) uintptr
	InsnDisas(insn InsnRef) string
	InsnSymbol(insn InsnRef) (string, bool)
}

// MemoryAPI decodes memory access descriptors and reads guest memory.
type MemoryAPI interface {
	MemSizeShift(info MemInfo) uint32
	MemIsSignExtended(info MemInfo) bool
	MemIsBigEndian(info MemInfo) bool
	MemIsStore(info MemInfo) bool
	// MemValue returns the raw type tag and the value halves.
	MemValue(info MemInfo) (typ uint32, lo, hi uint64)

	// GetHwaddr returns 0 when the access has no physical backing.
	GetHwaddr(info MemInfo, vaddr uint64) HwaddrRef
	HwaddrIsIO(h HwaddrRef) bool
	HwaddrPhysAddr(h HwaddrRef) uint64
	HwaddrDeviceName(h HwaddrRef) (string, bool)

	ReadMemoryVaddr(addr uint64, n int) ([]byte, bool)
}

// RegisterAPI reads guest registers of the vCPU the current callback runs on.
type RegisterAPI interface {
	GetRegisters() []RegisterDesc
	// ReadRegister returns the register bytes, or a negative status.
	ReadRegister(reg RegisterRef) ([]byte, int)
}

// ScoreboardAPI manages per-vCPU scoreboards.
type ScoreboardAPI interface {
	ScoreboardNew(elementSize int) ScoreboardRef
	ScoreboardFree(sb ScoreboardRef)
	U64Add(entry U64Ref, vcpu uint32, added uint64)
	U64Get(entry U64Ref, vcpu uint32) uint64
	U64Set(entry U64Ref, vcpu uint32, v uint64)
	U64Sum(entry U64Ref) uint64
}

// SystemAPI exposes host-wide queries and output.
type SystemAPI interface {
	// NumVCPUs is the number of vCPUs started so far.
	NumVCPUs() int
	// MaxVCPUs returns the host's maximum, or a negative value when the
	// version has no such call.
	MaxVCPUs() int
	Outs(s string)
	BoolParse(name, value string) (result, ok bool)
	PathToBinary() (string, bool)
	StartCode() uint64
	EndCode() uint64
	EntryCode() uint64
	// RequestTimeControl returns 0 when another plugin already owns time.
	RequestTimeControl() TimeControlRef
	UpdateNS(handle TimeControlRef, ns int64)
}

// SymbolLookup resolves an exported host symbol at runtime.
type SymbolLookup interface {
	Lookup(name string) (uintptr, bool)
}

// SymbolLookupFunc adapts a function to SymbolLookup.
type SymbolLookupFunc func(name string) (uintptr, bool)

// Lookup implements SymbolLookup.
func (f SymbolLookupFunc) Lookup(name string) (uintptr, bool) {
	return f(name)
}

// Output is where host-bound text goes.
type Output interface {
	Outs(s string)
}

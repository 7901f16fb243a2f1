package entities

// Info describes the host at install time.
type Info struct {
	// TargetName is the guest architecture, e.g. "x86_64" or "aarch64".
	TargetName string `json:"target_name"`

	// APIMin and APICur are the oldest and newest plugin API versions the host accepts.
	APIMin int `json:"api_min"`
	APICur int `json:"api_cur"`

	// SystemEmulation is true for full-system emulation, false for user mode.
	SystemEmulation bool `json:"system_emulation"`

	// SMPVCPUs and MaxVCPUs are only meaningful in system emulation.
	SMPVCPUs int `json:"smp_vcpus,omitempty"`
	MaxVCPUs int `json:"max_vcpus,omitempty"`
}

// Syscall is a guest system call observed on entry.
type Syscall struct {
	Num  int64
	Args [8]uint64
}

// SyscallReturn is a guest system call observed on return.
type SyscallReturn struct {
	Num int64
	Ret int64
}

// MemValueType is the width of a value carried by a memory access.
type MemValueType uint8

const (
	MemValueU8 MemValueType = iota
	MemValueU16
	MemValueU32
	MemValueU64
	MemValueU128
)

// MemValue is the value loaded or stored by a memory access. Hi is only
// set for 128-bit accesses.
type MemValue struct {
	Type MemValueType
	Lo   uint64
	Hi   uint64
}

// Size returns the width of the value in bytes.
func (v MemValue) Size() int {
	return 1 << v.Type
}

package entities

// CallbackFlags tells the host what register access a runtime callback needs.
type CallbackFlags uint8

const (
	// NoRegs callbacks may not read or write registers.
	NoRegs CallbackFlags = iota
	// ReadRegs callbacks may read registers.
	ReadRegs
	// ReadWriteRegs callbacks may read and write registers.
	ReadWriteRegs
)

func (f CallbackFlags) String() string {
	switch f {
	case NoRegs:
		return "no_regs"
	case ReadRegs:
		return "r_regs"
	case ReadWriteRegs:
		return "rw_regs"
	default:
		return "invalid"
	}
}

// MemRW selects which memory accesses a callback observes.
type MemRW uint8

const (
	MemRead MemRW = 1 << iota
	MemWrite

	MemReadWrite = MemRead | MemWrite
)

func (rw MemRW) String() string {
	switch rw {
	case MemRead:
		return "r"
	case MemWrite:
		return "w"
	case MemReadWrite:
		return "rw"
	default:
		return "invalid"
	}
}

// Matches reports whether an access of the given kind is selected by rw.
func (rw MemRW) Matches(kind MemRW) bool {
	return rw&kind != 0
}

// InlineOp is an operation the host applies to a scoreboard entry without
// calling back into the plugin.
type InlineOp uint8

const (
	InlineAddU64 InlineOp = iota
	InlineStoreU64
)

func (op InlineOp) String() string {
	switch op {
	case InlineAddU64:
		return "add_u64"
	case InlineStoreU64:
		return "store_u64"
	default:
		return "invalid"
	}
}

// Cond compares a scoreboard entry with an immediate to decide whether a
// conditional callback fires.
type Cond uint8

const (
	CondNever Cond = iota
	CondAlways
	CondEQ
	CondNE
	CondLT
	CondLE
	CondGT
	CondGE
)

func (c Cond) String() string {
	switch c {
	case CondNever:
		return "never"
	case CondAlways:
		return "always"
	case CondEQ:
		return "eq"
	case CondNE:
		return "ne"
	case CondLT:
		return "lt"
	case CondLE:
		return "le"
	case CondGT:
		return "gt"
	case CondGE:
		return "ge"
	default:
		return "invalid"
	}
}

// Eval applies the condition to a value and an immediate.
func (c Cond) Eval(v, imm uint64) bool {
	switch c {
	case CondAlways:
		return true
	case CondEQ:
		return v == imm
	case CondNE:
		return v != imm
	case CondLT:
		return v < imm
	case CondLE:
		return v <= imm
	case CondGT:
		return v > imm
	case CondGE:
		return v >= imm
	default:
		return false
	}
}

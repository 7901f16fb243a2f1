package abi

import (
	"fmt"
	"slices"

	"github.com/qplug-dev/qemu-plugin-sdk/domain/entities"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/errors"
)

// InstallOK is the status qemu_plugin_install returns on success. Any other
// value makes the host unload the plugin.
const InstallOK = 0

// InstallFailed is the status returned when setup fails.
const InstallFailed = -1

// Contract is the capability matrix and value encoding of one API version.
// Contracts are immutable and safe for concurrent use.
type Contract struct {
	version       Version
	funcs         map[Func]struct{}
	flags         map[entities.CallbackFlags]uint32
	memRW         map[entities.MemRW]uint32
	inlineOps     map[entities.InlineOp]uint32
	conds         map[entities.Cond]uint32
	memValueTypes map[uint32]entities.MemValueType
}

var contracts = func() map[Version]*Contract {
	out := make(map[Version]*Contract, len(releases))
	for _, v := range Versions() {
		out[v] = newContract(v)
	}
	return out
}()

func newContract(v Version) *Contract {
	c := &Contract{
		version: v,
		funcs:   make(map[Func]struct{}, len(symbols[v])),
		flags: map[entities.CallbackFlags]uint32{
			entities.NoRegs:        0,
			entities.ReadRegs:      1,
			entities.ReadWriteRegs: 2,
		},
		memRW: map[entities.MemRW]uint32{
			entities.MemRead:      1,
			entities.MemWrite:     2,
			entities.MemReadWrite: 3,
		},
		inlineOps:     map[entities.InlineOp]uint32{},
		conds:         map[entities.Cond]uint32{},
		memValueTypes: map[uint32]entities.MemValueType{},
	}
	for _, s := range symbols[v] {
		c.funcs[Func(s)] = struct{}{}
	}

	if v >= V2 {
		c.inlineOps[entities.InlineAddU64] = 0
		c.inlineOps[entities.InlineStoreU64] = 1
		for cond := entities.CondNever; cond <= entities.CondGE; cond++ {
			c.conds[cond] = uint32(cond)
		}
	}
	if v >= V3 {
		for t := entities.MemValueU8; t <= entities.MemValueU128; t++ {
			c.memValueTypes[uint32(t)] = t
		}
	}
	return c
}

// ForVersion returns the contract of a known version.
func ForVersion(v Version) (*Contract, error) {
	c, ok := contracts[v]
	if !ok {
		return nil, fmt.Errorf("unknown plugin API version %d", int(v))
	}
	return c, nil
}

// MustForVersion is ForVersion that panics on an unknown version.
func MustForVersion(v Version) *Contract {
	c, err := ForVersion(v)
	if err != nil {
		panic(err)
	}
	return c
}

// Current returns the contract of the version selected at build time.
func Current() *Contract {
	return contracts[Selected]
}

// Version returns the API version the contract describes.
func (c *Contract) Version() Version {
	return c.version
}

// Supports reports whether the host exports f in this version.
func (c *Contract) Supports(f Func) bool {
	_, ok := c.funcs[f]
	return ok
}

// SupportsEvent reports whether callbacks for ev can be registered.
func (c *Contract) SupportsEvent(ev entities.Event) bool {
	f, ok := eventFuncs[ev]
	return ok && c.Supports(f)
}

// Require returns UnsupportedOnVersion when f is missing.
func (c *Contract) Require(f Func) error {
	if c.Supports(f) {
		return nil
	}
	return c.unsupported(string(f), Since(f))
}

// RequireEvent returns UnsupportedOnVersion when ev cannot be registered.
func (c *Contract) RequireEvent(ev entities.Event) error {
	f, ok := eventFuncs[ev]
	if !ok {
		return c.unsupported(ev.String(), 0)
	}
	if c.Supports(f) {
		return nil
	}
	return c.unsupported(ev.String(), Since(f))
}

// EncodeFlags converts callback flags to the host enum value.
func (c *Contract) EncodeFlags(f entities.CallbackFlags) (uint32, error) {
	v, ok := c.flags[f]
	if !ok {
		return 0, c.unsupported("callback flags "+f.String(), 0)
	}
	return v, nil
}

// EncodeMemRW converts a memory access selector to the host enum value.
func (c *Contract) EncodeMemRW(rw entities.MemRW) (uint32, error) {
	v, ok := c.memRW[rw]
	if !ok {
		return 0, c.unsupported("memory access selector "+rw.String(), 0)
	}
	return v, nil
}

// EncodeInlineOp converts an inline operation to the host enum value.
func (c *Contract) EncodeInlineOp(op entities.InlineOp) (uint32, error) {
	v, ok := c.inlineOps[op]
	if !ok {
		return 0, c.unsupported("inline op "+op.String(), sinceEncoding(func(o *Contract) bool {
			_, ok := o.inlineOps[op]
			return ok
		}))
	}
	return v, nil
}

// EncodeCond converts a condition to the host enum value.
func (c *Contract) EncodeCond(cond entities.Cond) (uint32, error) {
	v, ok := c.conds[cond]
	if !ok {
		return 0, c.unsupported("condition "+cond.String(), sinceEncoding(func(o *Contract) bool {
			_, ok := o.conds[cond]
			return ok
		}))
	}
	return v, nil
}

// DecodeMemValueType converts the host memory value type tag.
func (c *Contract) DecodeMemValueType(raw uint32) (entities.MemValueType, error) {
	t, ok := c.memValueTypes[raw]
	if !ok {
		return 0, c.unsupported(fmt.Sprintf("memory value type %d", raw), 0)
	}
	return t, nil
}

// Symbols returns the host functions the version exports, sorted.
func (c *Contract) Symbols() []string {
	return Symbols(c.version)
}

// Events returns the events that can be registered in this version.
func (c *Contract) Events() []entities.Event {
	var out []entities.Event
	for _, ev := range entities.Events() {
		if c.SupportsEvent(ev) {
			out = append(out, ev)
		}
	}
	return out
}

func (c *Contract) String() string {
	return fmt.Sprintf("qemu plugin API %s (QEMU %s)", c.version, c.version.QEMURelease())
}

func (c *Contract) unsupported(feature string, since Version) error {
	return &errors.UnsupportedOnVersionError{Feature: feature, Version: int(c.version), Since: int(since)}
}

// Symbols returns the host functions version v exports, sorted.
func Symbols(v Version) []string {
	return slices.Clone(symbols[v])
}

// Since returns the first version exporting f, or 0 when none does.
func Since(f Func) Version {
	return sinceEncoding(func(c *Contract) bool { return c.Supports(f) })
}

func sinceEncoding(has func(*Contract) bool) Version {
	for _, v := range Versions() {
		if c, ok := contracts[v]; ok && has(c) {
			return v
		}
	}
	return 0
}

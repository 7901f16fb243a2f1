package qemutest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qplug-dev/qemu-plugin-sdk/abi"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/entities"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/ports"
)

// recorder is a dispatcher that hooks every event and records what the
// host delivers. onTrans runs inside the translate event.
type recorder struct {
	host    *Host
	events  []string
	infos   []ports.MemInfo
	onTrans func(tb ports.TBRef)
}

func (r *recorder) Install(h ports.Host, id ports.PluginID, _ entities.Info, _ []string) int {
	for _, ev := range []entities.Event{entities.EventVCPUInit, entities.EventTranslate, entities.EventFlush, entities.EventAtExit} {
		h.RegisterEvent(id, ev)
	}
	return abi.InstallOK
}

func (r *recorder) VCPUInit(_ ports.PluginID, vcpu uint32)   { r.events = append(r.events, "init") }
func (r *recorder) VCPUExit(ports.PluginID, uint32)          { r.events = append(r.events, "exit") }
func (r *recorder) VCPUIdle(ports.PluginID, uint32)          { r.events = append(r.events, "idle") }
func (r *recorder) VCPUResume(ports.PluginID, uint32)        { r.events = append(r.events, "resume") }
func (r *recorder) TBExec(uint32, ports.Userdata)            { r.events = append(r.events, "tb_exec") }
func (r *recorder) InsnExec(uint32, ports.Userdata)          { r.events = append(r.events, "insn_exec") }
func (r *recorder) Flush(ports.PluginID)                     { r.events = append(r.events, "flush") }
func (r *recorder) AtExit(ports.PluginID)                    { r.events = append(r.events, "atexit") }
func (r *recorder) Uninstalled(ports.PluginID)               { r.events = append(r.events, "uninstalled") }
func (r *recorder) ResetDone(ports.PluginID)                 { r.events = append(r.events, "reset") }
func (r *recorder) SyscallReturn(ports.PluginID, uint32, int64, int64) {}
func (r *recorder) Syscall(ports.PluginID, uint32, int64, [8]uint64)   {}

func (r *recorder) TBTrans(_ ports.PluginID, tb ports.TBRef) {
	r.events = append(r.events, "trans")
	if r.onTrans != nil {
		r.onTrans(tb)
	}
}

func (r *recorder) MemAccess(_ uint32, info ports.MemInfo, _ uint64, _ ports.Userdata) {
	r.events = append(r.events, "mem")
	r.infos = append(r.infos, info)
}

func newRecorded(t *testing.T, opts ...Option) (*Host, *recorder) {
	t.Helper()
	r := &recorder{}
	h := New(r, opts...)
	r.host = h
	require.Equal(t, abi.InstallOK, h.Install())
	return h, r
}

func TestHost_TranslateOnce(t *testing.T) {
	h, r := newRecorded(t)
	var sizes []int
	r.onTrans = func(tb ports.TBRef) {
		sizes = append(sizes, h.TBNumInsns(tb))
		h.RegisterTBExec(tb, 0, 1)
	}

	blocks := Blocks(0x1000, 3, 1, 7)
	h.Run(0, blocks...)
	h.Run(0, blocks...)

	assert.Equal(t, []int{3, 1, 7}, sizes)
	assert.Equal(t, 3, h.Translated())
	assert.Equal(t, []string{"trans", "tb_exec", "trans", "tb_exec", "trans", "tb_exec", "tb_exec", "tb_exec", "tb_exec"}, r.events)
	assert.Empty(t, h.Violations())
}

func TestHost_BlocksLayout(t *testing.T) {
	blocks := Blocks(0x1000, 2, 3)
	require.Len(t, blocks, 2)
	assert.Equal(t, uint64(0x1000), blocks[0].Vaddr)
	assert.Equal(t, uint64(0x1008), blocks[1].Vaddr)
	assert.Equal(t, 12, blocks[1].Size())
}

func TestHost_StaleReferences(t *testing.T) {
	h, r := newRecorded(t)
	var saved ports.TBRef
	var insn ports.InsnRef
	r.onTrans = func(tb ports.TBRef) {
		saved = tb
		insn = h.TBInsn(tb, 0)
	}
	h.Run(0, NewBlock(0x1000, 1))

	h.RegisterTBExec(saved, 0, 1)
	assert.Zero(t, h.InsnSize(insn))

	v := h.Violations()
	require.Len(t, v, 2)
	assert.Equal(t, string(abi.FuncRegisterTBExec), v[0].Call)
	assert.Contains(t, v[0].Reason, "stale translation block")
	assert.Contains(t, v[1].Reason, "stale instruction")
}

func TestHost_UnsupportedCalls(t *testing.T) {
	h, _ := newRecorded(t, WithContract(abi.MustForVersion(abi.V1)))

	assert.Zero(t, h.ScoreboardNew(8))
	_, ok := h.ReadMemoryVaddr(0, 1)
	assert.False(t, ok)
	assert.Equal(t, 8, h.MaxVCPUs())

	v := h.Violations()
	require.Len(t, v, 2)
	assert.Equal(t, string(abi.FuncScoreboardNew), v[0].Call)
	assert.Equal(t, string(abi.FuncReadMemoryVaddr), v[1].Call)
}

func TestHost_MemInfoEncoding(t *testing.T) {
	h, r := newRecorded(t, WithSystemEmulation(true))
	r.onTrans = func(tb ports.TBRef) {
		h.RegisterMemAccess(h.TBInsn(tb, 0), 0, 3, 9)
	}
	h.Run(0, Block{Vaddr: 0x1000, Insns: []Insn{{Data: []byte{0}, Mem: []Access{
		{Vaddr: 0x10, SizeShift: 2, SignExtended: true},
		{Vaddr: 0x20, Store: true, SizeShift: 4, BigEndian: true},
	}}}})

	require.Len(t, r.infos, 2)
	load, store := r.infos[0], r.infos[1]
	assert.Equal(t, uint32(2), h.MemSizeShift(load))
	assert.True(t, h.MemIsSignExtended(load))
	assert.False(t, h.MemIsStore(load))
	assert.Equal(t, uint32(4), h.MemSizeShift(store))
	assert.True(t, h.MemIsBigEndian(store))
	assert.True(t, h.MemIsStore(store))
	assert.Equal(t, ports.MemInfo(0x12), load&0xff)
	assert.Equal(t, ports.MemInfo(0x64), store&0xff)

	// the access is over, so its value is gone
	_, _, _ = h.MemValue(load)
	assert.Len(t, h.Violations(), 1)
}

func TestHost_InlineAndCondition(t *testing.T) {
	h, r := newRecorded(t, WithContract(abi.MustForVersion(abi.V2)))
	sb := h.ScoreboardNew(8)
	entry := ports.U64Ref{Scoreboard: sb}
	r.onTrans = func(tb ports.TBRef) {
		h.RegisterTBInline(tb, 0, entry, 5)
		h.RegisterTBExecCond(tb, 0, uint32(entities.CondGT), entry, 7, 1)
	}

	b := NewBlock(0x1000, 1)
	h.Run(2, b)
	h.Run(2, b)
	h.Run(3, b)

	assert.Equal(t, uint64(10), h.U64Get(entry, 2))
	assert.Equal(t, uint64(5), h.U64Get(entry, 3))
	assert.Equal(t, uint64(15), h.U64Sum(entry))
	assert.Equal(t, []string{"trans", "tb_exec"}, r.events)

	h.ScoreboardFree(sb)
	h.ScoreboardFree(sb)
	assert.Len(t, h.Violations(), 1)
}

func TestHost_Lifecycle(t *testing.T) {
	h, r := newRecorded(t)
	h.StartVCPU(0)
	h.Reset(h.ID())
	h.Uninstall(h.ID())

	reset, uninstall := h.Pending()
	assert.True(t, reset)
	assert.True(t, uninstall)

	h.Settle()
	assert.False(t, h.Loaded())
	h.Exit()
	h.Flush()

	assert.Equal(t, []string{"init", "reset", "uninstalled"}, r.events)
	assert.Empty(t, h.Violations())
}

func TestHost_Exit(t *testing.T) {
	h, r := newRecorded(t)
	h.Exit()
	h.Exit()
	assert.Equal(t, []string{"atexit"}, r.events)
	assert.False(t, h.Hooked(entities.EventAtExit))
}

func TestHost_System(t *testing.T) {
	h, _ := newRecorded(t, WithBinary("/bin/ls", 1, 2, 3))

	h.Outs("a")
	h.Outs("b")
	assert.Equal(t, "ab", h.Output())

	v, ok := h.BoolParse("x", "off")
	assert.True(t, ok)
	assert.False(t, v)
	_, ok = h.BoolParse("x", "perhaps")
	assert.False(t, ok)

	path, ok := h.PathToBinary()
	assert.True(t, ok)
	assert.Equal(t, "/bin/ls", path)

	ref := h.RequestTimeControl()
	require.NotZero(t, ref)
	assert.Zero(t, h.RequestTimeControl())
	h.UpdateNS(ref, 42)
	assert.Equal(t, int64(42), h.TimeNS())
	h.UpdateNS(ref+1, 43)
	assert.Len(t, h.Violations(), 1)
}

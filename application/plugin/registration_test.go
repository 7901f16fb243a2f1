package plugin_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qplug-dev/qemu-plugin-sdk/abi"
	"github.com/qplug-dev/qemu-plugin-sdk/application/plugin"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/entities"
	sdkErrors "github.com/qplug-dev/qemu-plugin-sdk/domain/errors"
	"github.com/qplug-dev/qemu-plugin-sdk/testing/qemutest"
)

func TestHandles_ExpireAfterCallback(t *testing.T) {
	var tb *plugin.TranslationBlock
	var insn *plugin.Instruction
	var vcpu plugin.VCPU

	h := start(t, abi.V4, plugin.PluginDef{
		Setup: func(p *plugin.Plugin) error {
			require.NoError(t, p.RegisterVCPUInit(func(v plugin.VCPU) { vcpu = v }))
			return p.RegisterTranslate(func(b *plugin.TranslationBlock) {
				tb = b
				var err error
				insn, err = b.Instruction(1)
				require.NoError(t, err)

				data, err := insn.Data()
				require.NoError(t, err)
				assert.Len(t, data, 4)
				assert.True(t, b.Valid())
			})
		},
	})

	h.host.StartVCPU(2)
	h.host.Run(0, qemutest.NewBlock(0x2000, 3))
	require.NotNil(t, tb)
	require.NotNil(t, insn)

	// copied facts survive
	assert.False(t, tb.Valid())
	assert.Equal(t, entities.Vaddr(0x2000), tb.Vaddr())
	assert.Equal(t, 3, tb.NumInstructions())
	assert.Equal(t, entities.Vaddr(0x2004), insn.Vaddr())
	assert.Equal(t, 1, insn.Index())
	assert.Equal(t, 4, insn.Size())
	assert.Equal(t, entities.VCPUIndex(2), vcpu.Index())

	// host-backed accessors fail
	_, err := tb.Instruction(0)
	assert.ErrorIs(t, err, sdkErrors.ErrHandleExpired)
	_, err = insn.Data()
	assert.ErrorIs(t, err, sdkErrors.ErrHandleExpired)
	_, err = insn.Disassembly()
	assert.ErrorIs(t, err, sdkErrors.ErrHandleExpired)
	_, _, err = insn.Symbol()
	assert.ErrorIs(t, err, sdkErrors.ErrHandleExpired)
	_, err = insn.HostAddr()
	assert.ErrorIs(t, err, sdkErrors.ErrHandleExpired)
	_, err = vcpu.Registers()
	assert.ErrorIs(t, err, sdkErrors.ErrHandleExpired)

	n := 0
	for range tb.Instructions() {
		n++
	}
	assert.Zero(t, n)

	// registrations fail
	assert.ErrorIs(t, tb.RegisterExec(entities.NoRegs, func(plugin.VCPU) {}), sdkErrors.ErrInvalidRegistrationContext)
	assert.ErrorIs(t, insn.RegisterExec(entities.NoRegs, func(plugin.VCPU) {}), sdkErrors.ErrInvalidRegistrationContext)
	assert.ErrorIs(t, insn.RegisterMemory(entities.NoRegs, entities.MemReadWrite, func(plugin.VCPU, *plugin.MemoryAccess) {}), sdkErrors.ErrInvalidRegistrationContext)

	assert.Zero(t, h.router.LiveHandles())
	assert.Empty(t, h.host.Violations())
}

func TestHandles_InstructionAccessors(t *testing.T) {
	block := qemutest.Block{Vaddr: 0x400000, Insns: []qemutest.Insn{
		{Data: []byte{0x48, 0x31, 0xc0}, Disas: "xor %rax,%rax", Symbol: "_start"},
		{Data: []byte{0x90}, Disas: "nop"},
	}}

	type seen struct {
		vaddr  entities.Vaddr
		size   int
		data   []byte
		disas  string
		symbol string
		hasSym bool
	}
	var got []seen

	h := start(t, abi.V4, plugin.PluginDef{
		Setup: func(p *plugin.Plugin) error {
			return p.RegisterTranslate(func(tb *plugin.TranslationBlock) {
				for _, insn := range tb.Instructions() {
					data, err := insn.Data()
					require.NoError(t, err)
					disas, err := insn.Disassembly()
					require.NoError(t, err)
					sym, ok, err := insn.Symbol()
					require.NoError(t, err)
					haddr, err := insn.HostAddr()
					require.NoError(t, err)
					assert.NotZero(t, haddr)
					got = append(got, seen{insn.Vaddr(), insn.Size(), data, disas, sym, ok})
				}
				_, err := tb.Instruction(2)
				assert.ErrorIs(t, err, sdkErrors.ErrIndexOutOfRange)
				_, err = tb.Instruction(-1)
				var idxErr *sdkErrors.IndexError
				require.ErrorAs(t, err, &idxErr)
				assert.Equal(t, 2, idxErr.Len)
			})
		},
	})

	h.host.Run(0, block)
	assert.Equal(t, []seen{
		{0x400000, 3, []byte{0x48, 0x31, 0xc0}, "xor %rax,%rax", "_start", true},
		{0x400003, 1, []byte{0x90}, "nop", "", false},
	}, got)
	assert.Empty(t, h.host.Violations())
}

func TestRegistration_VersionMatrix(t *testing.T) {
	probes := []struct {
		name  string
		since abi.Version
	}{
		{"tb_exec", abi.V1},
		{"insn_exec", abi.V1},
		{"mem", abi.V1},
		{"scoreboard", abi.V2},
		{"tb_exec_cond", abi.V2},
		{"insn_exec_cond", abi.V2},
		{"tb_inline", abi.V2},
		{"insn_inline", abi.V2},
		{"mem_inline", abi.V2},
		{"registers", abi.V2},
		{"mem_value", abi.V3},
		{"time_control", abi.V3},
		{"read_memory", abi.V4},
		{"write_register", 0},
	}

	for _, v := range abi.Versions() {
		t.Run(v.String(), func(t *testing.T) {
			errs := map[string]error{}
			var sb *plugin.ScoreboardU64

			block := qemutest.Block{Vaddr: 0x1000, Insns: []qemutest.Insn{
				{Data: []byte{1, 2, 3, 4}, Mem: []qemutest.Access{qemutest.Load(0x8000, 2, 7)}},
			}}

			h := start(t, v, plugin.PluginDef{
				Setup: func(p *plugin.Plugin) error {
					sb, errs["scoreboard"] = p.NewScoreboardU64()
					_, errs["time_control"] = p.RequestTimeControl()

					require.NoError(t, p.RegisterVCPUInit(func(vcpu plugin.VCPU) {
						_, errs["registers"] = vcpu.Registers()
						_, errs["read_memory"] = vcpu.ReadMemory(0x8000, 4)
						errs["write_register"] = vcpu.WriteRegister(plugin.RegisterDescriptor{}, []byte{0})
					}))

					return p.RegisterTranslate(func(tb *plugin.TranslationBlock) {
						insn, err := tb.Instruction(0)
						require.NoError(t, err)

						errs["tb_exec"] = tb.RegisterExec(entities.NoRegs, func(plugin.VCPU) {})
						errs["insn_exec"] = insn.RegisterExec(entities.NoRegs, func(plugin.VCPU) {})
						errs["mem"] = insn.RegisterMemory(entities.NoRegs, entities.MemRead, func(_ plugin.VCPU, m *plugin.MemoryAccess) {
							_, errs["mem_value"] = m.Value()
						})
						errs["tb_exec_cond"] = tb.RegisterExecCond(entities.NoRegs, entities.CondAlways, sb, 0, func(plugin.VCPU) {})
						errs["insn_exec_cond"] = insn.RegisterExecCond(entities.NoRegs, entities.CondAlways, sb, 0, func(plugin.VCPU) {})
						errs["tb_inline"] = tb.InlineU64(entities.InlineAddU64, sb, 1)
						errs["insn_inline"] = insn.InlineU64(entities.InlineAddU64, sb, 1)
						errs["mem_inline"] = insn.InlineMemoryU64(entities.MemRead, entities.InlineAddU64, sb, 1)
					})
				},
			})

			h.host.WriteMemory(0x8000, []byte{1, 2, 3, 4})
			h.host.StartVCPU(0)
			h.host.Run(0, block)

			for _, probe := range probes {
				err, ran := errs[probe.name]
				require.True(t, ran, probe.name)
				if probe.since == 0 || v < probe.since {
					var unsupported *sdkErrors.UnsupportedOnVersionError
					require.ErrorAs(t, err, &unsupported, probe.name)
					assert.Equal(t, int(v), unsupported.Version, probe.name)
					assert.Equal(t, int(probe.since), unsupported.Since, probe.name)
				} else {
					assert.NoError(t, err, probe.name)
				}
			}
			assert.Empty(t, h.host.Violations())
		})
	}
}

func TestRegistration_InlineAndConditional(t *testing.T) {
	var sb *plugin.ScoreboardU64
	fired := 0

	h := start(t, abi.V2, plugin.PluginDef{
		Setup: func(p *plugin.Plugin) error {
			var err error
			sb, err = p.NewScoreboardU64()
			if err != nil {
				return err
			}
			return p.RegisterTranslate(func(tb *plugin.TranslationBlock) {
				require.NoError(t, tb.InlineU64(entities.InlineAddU64, sb, uint64(tb.NumInstructions())))
				require.NoError(t, tb.RegisterExecCond(entities.NoRegs, entities.CondGE, sb, 10, func(plugin.VCPU) { fired++ }))
			})
		},
	})

	block := qemutest.NewBlock(0x1000, 4)
	for range 3 {
		h.host.Run(0, block)
	}
	h.host.Run(1, block)

	assert.Equal(t, uint64(12), sb.Get(0))
	assert.Equal(t, uint64(4), sb.Get(1))
	assert.Equal(t, uint64(16), sb.Sum())
	assert.Equal(t, 1, fired, "only the third run on vcpu 0 crossed the threshold")
	assert.Empty(t, h.host.Violations())
}

func TestRegistration_FreedScoreboard(t *testing.T) {
	var errs []error
	h := start(t, abi.V2, plugin.PluginDef{
		Setup: func(p *plugin.Plugin) error {
			sb, err := p.NewScoreboardU64()
			if err != nil {
				return err
			}
			sb.Free()
			return p.RegisterTranslate(func(tb *plugin.TranslationBlock) {
				errs = append(errs,
					tb.InlineU64(entities.InlineStoreU64, sb, 1),
					tb.RegisterExecCond(entities.NoRegs, entities.CondEQ, sb, 1, func(plugin.VCPU) {}),
					tb.InlineU64(entities.InlineAddU64, nil, 1),
					tb.RegisterExec(entities.NoRegs, nil),
				)
			})
		},
	})

	h.host.Run(0, qemutest.NewBlock(0x1000, 1))
	require.Len(t, errs, 4)
	for _, err := range errs {
		assert.ErrorIs(t, err, sdkErrors.ErrInvalidRegistrationContext)
	}
	assert.Empty(t, h.host.Violations())
}

func TestRegistration_MemoryAccess(t *testing.T) {
	type seen struct {
		kind   entities.MemRW
		vaddr  entities.Vaddr
		size   int
		signed bool
		big    bool
		value  entities.MemValue
		io     bool
		phys   entities.Paddr
		device string
	}
	var got []seen
	var late *plugin.MemoryAccess

	insn := qemutest.Insn{Data: []byte{0, 0, 0, 0}, Mem: []qemutest.Access{
		{Vaddr: 0x8000, SizeShift: 3, Value: 0xdeadbeef, SignExtended: true},
		{Vaddr: 0x9000, Store: true, SizeShift: 1, Value: 0x1234, BigEndian: true, IO: true, Device: "uart", Paddr: 0x10},
	}}

	h := start(t, abi.V3, plugin.PluginDef{
		Setup: func(p *plugin.Plugin) error {
			return p.RegisterTranslate(func(tb *plugin.TranslationBlock) {
				in, err := tb.Instruction(0)
				require.NoError(t, err)
				require.NoError(t, in.RegisterMemory(entities.NoRegs, entities.MemReadWrite, func(_ plugin.VCPU, m *plugin.MemoryAccess) {
					val, err := m.Value()
					require.NoError(t, err)
					hw, err := m.Hwaddr()
					require.NoError(t, err)
					require.NotNil(t, hw)
					dev, _ := hw.DeviceName()
					got = append(got, seen{m.Kind(), m.Vaddr(), m.Size(), m.SignExtended(), m.BigEndian(), val, hw.IsIO(), hw.PhysAddr(), dev})
					late = m
				}))
			})
		},
	})

	h.host.Run(0, qemutest.Block{Vaddr: 0x1000, Insns: []qemutest.Insn{insn}})

	assert.Equal(t, []seen{
		{entities.MemRead, 0x8000, 8, true, false, entities.MemValue{Type: entities.MemValueU64, Lo: 0xdeadbeef}, false, 0x8000, "RAM"},
		{entities.MemWrite, 0x9000, 2, false, true, entities.MemValue{Type: entities.MemValueU16, Lo: 0x1234}, true, 0x10, "uart"},
	}, got)

	require.NotNil(t, late)
	assert.True(t, late.IsStore())
	_, err := late.Value()
	assert.ErrorIs(t, err, sdkErrors.ErrHandleExpired)
	_, err = late.Hwaddr()
	assert.ErrorIs(t, err, sdkErrors.ErrHandleExpired)
	assert.Empty(t, h.host.Violations())
}

func TestRegistration_MemoryFilter(t *testing.T) {
	tests := []struct {
		rw   entities.MemRW
		want int
	}{
		{entities.MemRead, 2},
		{entities.MemWrite, 1},
		{entities.MemReadWrite, 3},
	}
	insn := qemutest.Insn{Data: []byte{0, 0}, Mem: []qemutest.Access{
		qemutest.Load(0x10, 0, 1),
		qemutest.Store(0x20, 0, 2),
		qemutest.Load(0x30, 0, 3),
	}}

	for _, tt := range tests {
		t.Run(tt.rw.String(), func(t *testing.T) {
			calls := 0
			h := start(t, abi.V1, plugin.PluginDef{
				Setup: func(p *plugin.Plugin) error {
					return p.RegisterTranslate(func(tb *plugin.TranslationBlock) {
						in, err := tb.Instruction(0)
						require.NoError(t, err)
						require.NoError(t, in.RegisterMemory(entities.NoRegs, tt.rw, func(plugin.VCPU, *plugin.MemoryAccess) { calls++ }))
					})
				},
			})
			h.host.Run(0, qemutest.Block{Vaddr: 0x1000, Insns: []qemutest.Insn{insn}})
			assert.Equal(t, tt.want, calls)
		})
	}
}

func TestRegistration_UserModeHasNoHwaddr(t *testing.T) {
	var hw *plugin.HardwareAddress
	var hwErr error
	def := plugin.DefinePlugin(plugin.PluginDef{
		Setup: func(p *plugin.Plugin) error {
			return p.RegisterTranslate(func(tb *plugin.TranslationBlock) {
				in, err := tb.Instruction(0)
				require.NoError(t, err)
				require.NoError(t, in.RegisterMemory(entities.NoRegs, entities.MemRead, func(_ plugin.VCPU, m *plugin.MemoryAccess) {
					hw, hwErr = m.Hwaddr()
				}))
			})
		},
	})
	host := qemutest.New(plugin.NewRouter(plugin.WithDefinition(def)))
	require.Equal(t, abi.InstallOK, host.Install())

	host.Run(0, qemutest.Block{Vaddr: 0x1000, Insns: []qemutest.Insn{
		{Data: []byte{0}, Mem: []qemutest.Access{qemutest.Load(0x10, 0, 0)}},
	}})
	assert.NoError(t, hwErr)
	assert.Nil(t, hw)
}

func TestRegisters(t *testing.T) {
	var values []uint64
	var readErr error
	var names []string

	h := start(t, abi.V2, plugin.PluginDef{
		Setup: func(p *plugin.Plugin) error {
			require.NoError(t, p.RegisterVCPUInit(func(vcpu plugin.VCPU) {
				regs, err := vcpu.Registers()
				require.NoError(t, err)
				for _, r := range regs {
					names = append(names, r.Name)
				}

				rip, err := vcpu.Register("rip")
				require.NoError(t, err)
				val, err := vcpu.ReadRegister(rip)
				require.NoError(t, err)
				values = append(values, val.Uint64(binary.LittleEndian))

				_, err = vcpu.Register("xmm31")
				assert.ErrorIs(t, err, plugin.ErrRegisterNotFound)

				rax, err := vcpu.Register("rax")
				require.NoError(t, err)
				_, readErr = vcpu.ReadRegister(rax)
			}))
			return nil
		},
	})

	h.host.SetRegister(0, "rip", []byte{0x10, 0x20, 0, 0, 0, 0, 0, 0})
	h.host.SetRegister(1, "rip", []byte{0x30, 0, 0, 0, 0, 0, 0, 0})
	h.host.FailRegister("rax", -22)
	h.host.StartVCPU(0)
	h.host.StartVCPU(1)

	assert.Equal(t, []string{"rax", "rip", "rax", "rip"}, names)
	assert.Equal(t, []uint64{0x2010, 0x30}, values)

	var hostErr *sdkErrors.HostCallError
	require.ErrorAs(t, readErr, &hostErr)
	assert.ErrorIs(t, readErr, sdkErrors.ErrHostCallFailed)
	assert.Equal(t, -22, hostErr.Status)
	assert.Equal(t, string(abi.FuncReadRegister), hostErr.Call)
	assert.Empty(t, h.host.Violations())
}

func TestSyscalls(t *testing.T) {
	var entries []plugin.Syscall
	var returns []plugin.SyscallReturn
	var vcpus []entities.VCPUIndex

	h := start(t, abi.V4, plugin.PluginDef{
		Setup: func(p *plugin.Plugin) error {
			require.NoError(t, p.RegisterSyscall(func(v plugin.VCPU, s plugin.Syscall) {
				vcpus = append(vcpus, v.Index())
				entries = append(entries, s)
			}))
			return p.RegisterSyscallReturn(func(_ plugin.VCPU, r plugin.SyscallReturn) {
				returns = append(returns, r)
			})
		},
	})

	h.host.Syscall(3, 64, 1, 0x1000, 12)
	h.host.SyscallReturn(3, 64, 12)

	require.Len(t, entries, 1)
	assert.Equal(t, int64(64), entries[0].Num)
	assert.Equal(t, [8]uint64{1, 0x1000, 12}, entries[0].Args)
	assert.Equal(t, []plugin.SyscallReturn{{Num: 64, Ret: 12}}, returns)
	assert.Equal(t, []entities.VCPUIndex{3}, vcpus)
}

func TestVCPUEvents(t *testing.T) {
	var events []string
	record := func(name string) func(plugin.VCPU) {
		return func(v plugin.VCPU) {
			events = append(events, name)
		}
	}
	h := start(t, abi.V1, plugin.PluginDef{
		Setup: func(p *plugin.Plugin) error {
			require.NoError(t, p.RegisterVCPUInit(record("init")))
			require.NoError(t, p.RegisterVCPUIdle(record("idle")))
			require.NoError(t, p.RegisterVCPUResume(record("resume")))
			return p.RegisterVCPUExit(record("exit"))
		},
	})

	h.host.StartVCPU(0)
	h.host.Idle(0)
	h.host.Resume(0)
	h.host.StopVCPU(0)
	assert.Equal(t, []string{"init", "idle", "resume", "exit"}, events)
}

func TestRegistration_NilTopLevelCallback(t *testing.T) {
	exits := 0
	h := start(t, abi.V4, plugin.PluginDef{
		Setup: func(p *plugin.Plugin) error {
			return p.RegisterExit(func() { exits++ })
		},
	})

	assert.ErrorIs(t, h.plugin.RegisterExit(nil), sdkErrors.ErrInvalidRegistrationContext)
	assert.ErrorIs(t, h.plugin.RegisterTranslate(nil), sdkErrors.ErrInvalidRegistrationContext)
	assert.ErrorIs(t, h.plugin.RegisterSyscall(nil), sdkErrors.ErrInvalidRegistrationContext)
	assert.False(t, h.host.Hooked(entities.EventTranslate))

	h.host.Exit()
	assert.Equal(t, 1, exits)
	assert.Empty(t, h.host.Violations())
}

package plugin_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qplug-dev/qemu-plugin-sdk/abi"
	"github.com/qplug-dev/qemu-plugin-sdk/application/plugin"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/entities"
	sdkErrors "github.com/qplug-dev/qemu-plugin-sdk/domain/errors"
	"github.com/qplug-dev/qemu-plugin-sdk/testing/qemutest"
)

func TestPanicRecoveryMiddleware(t *testing.T) {
	h := plugin.PanicRecoveryMiddleware()(func(plugin.Invocation) error {
		panic(errors.New("kaput"))
	})

	err := h(plugin.Invocation{Event: entities.EventTBExec})
	var panicErr *sdkErrors.PanicError
	require.ErrorAs(t, err, &panicErr)
	assert.Equal(t, "tb_exec", panicErr.Event)
	assert.NotEmpty(t, panicErr.Stack)
	assert.EqualError(t, errors.Unwrap(err), "kaput")
}

func TestRouter_CallbackPanicIsContained(t *testing.T) {
	after := 0
	h := start(t, abi.V4, plugin.PluginDef{
		Setup: func(p *plugin.Plugin) error {
			require.NoError(t, p.RegisterVCPUInit(func(v plugin.VCPU) {
				if v.Index() == 0 {
					panic("vcpu zero")
				}
				after++
			}))
			return p.RegisterTranslate(func(tb *plugin.TranslationBlock) {
				require.NoError(t, tb.RegisterExec(entities.NoRegs, func(plugin.VCPU) { panic("in exec") }))
			})
		},
	})

	assert.NotPanics(t, func() {
		h.host.StartVCPU(0)
		h.host.StartVCPU(1)
		h.host.Run(0, qemutest.NewBlock(0x1000, 1))
	})
	assert.Equal(t, 1, after)

	out := h.host.Output()
	assert.Contains(t, out, "callback failed")
	assert.Contains(t, out, "panic in vcpu_init callback: vcpu zero")
	assert.Contains(t, out, "panic in tb_exec callback: in exec")
	assert.Equal(t, entities.StateActive, h.plugin.State())
}

func TestRouter_Middleware(t *testing.T) {
	var order []string
	var events []entities.Event
	mw := func(name string) plugin.Middleware {
		return func(next plugin.Handler) plugin.Handler {
			return func(inv plugin.Invocation) error {
				order = append(order, name)
				events = append(events, inv.Event)
				return next(inv)
			}
		}
	}

	def := plugin.DefinePlugin(plugin.PluginDef{
		Setup: func(p *plugin.Plugin) error {
			return p.RegisterVCPUInit(func(plugin.VCPU) { order = append(order, "callback") })
		},
	})
	r := plugin.NewRouter(plugin.WithDefinition(def), plugin.WithMiddleware(mw("outer"), mw("inner")))
	host := qemutest.New(r)
	require.Equal(t, abi.InstallOK, host.Install())

	host.StartVCPU(0)
	assert.Equal(t, []string{"outer", "inner", "callback"}, order)
	assert.Equal(t, []entities.Event{entities.EventVCPUInit, entities.EventVCPUInit}, events)
}

func TestRouter_MiddlewareError(t *testing.T) {
	deny := func(next plugin.Handler) plugin.Handler {
		return func(inv plugin.Invocation) error {
			if inv.Event == entities.EventSyscall {
				return errors.New("syscalls are off")
			}
			return next(inv)
		}
	}
	calls := 0
	def := plugin.DefinePlugin(plugin.PluginDef{
		Setup: func(p *plugin.Plugin) error {
			return p.RegisterSyscall(func(plugin.VCPU, plugin.Syscall) { calls++ })
		},
	})
	host := qemutest.New(plugin.NewRouter(plugin.WithDefinition(def), plugin.WithMiddleware(deny)))
	require.Equal(t, abi.InstallOK, host.Install())

	host.Syscall(0, 1)
	assert.Zero(t, calls)
	assert.Contains(t, host.Output(), "syscalls are off")
}

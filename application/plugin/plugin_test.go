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

func TestEndToEnd_TranslateAndExit(t *testing.T) {
	var counts []int
	exits := 0

	h := start(t, abi.V4, plugin.PluginDef{
		Name: "tiny",
		Setup: func(p *plugin.Plugin) error {
			if err := p.RegisterTranslate(func(tb *plugin.TranslationBlock) {
				counts = append(counts, tb.NumInstructions())
			}); err != nil {
				return err
			}
			return p.RegisterExit(func() { exits++ })
		},
	})

	h.host.Run(0, qemutest.Blocks(0x1000, 3, 1, 7)...)
	h.host.Exit()
	h.host.Exit()

	assert.Equal(t, []int{3, 1, 7}, counts)
	assert.Equal(t, 1, exits)
	assert.Equal(t, entities.StateUnloaded, h.plugin.State())
	assert.Zero(t, h.router.LiveHandles())
	assert.Empty(t, h.host.Violations())

	_, loaded := h.router.Plugin(h.host.ID())
	assert.False(t, loaded)
}

func TestEndToEnd_EveryVersion(t *testing.T) {
	for _, v := range abi.Versions() {
		t.Run(v.String(), func(t *testing.T) {
			var counts []int
			var execs int
			h := start(t, v, plugin.PluginDef{
				Setup: func(p *plugin.Plugin) error {
					return p.RegisterTranslate(func(tb *plugin.TranslationBlock) {
						counts = append(counts, tb.NumInstructions())
						require.NoError(t, tb.RegisterExec(entities.NoRegs, func(plugin.VCPU) { execs++ }))
					})
				},
			})

			blocks := qemutest.Blocks(0x4000, 3, 1, 7)
			h.host.Run(0, blocks...)
			h.host.Run(0, blocks...)
			h.host.Exit()

			assert.Equal(t, []int{3, 1, 7}, counts)
			assert.Equal(t, 6, execs)
			assert.Empty(t, h.host.Violations())
		})
	}
}

func TestInstall_Args(t *testing.T) {
	type args struct {
		Count  bool   `arg:"count"`
		Limit  int    `arg:"limit" validate:"min=1"`
		Output string `arg:"out"`
	}

	tests := []struct {
		name    string
		args    []string
		wantErr bool
		want    args
	}{
		{name: "defaults", want: args{Limit: 10}},
		{name: "values", args: []string{"count=on", "limit=0x20", "out=log.txt"}, want: args{Count: true, Limit: 32, Output: "log.txt"}},
		{name: "bare flag", args: []string{"count"}, want: args{Count: true, Limit: 10}},
		{name: "unknown key", args: []string{"verbose=on"}, wantErr: true},
		{name: "validation", args: []string{"limit=0"}, wantErr: true},
		{name: "duplicate", args: []string{"limit=1", "limit=2"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got *args
			h, status := load(t, abi.V4, plugin.PluginDef{
				Args: args{Limit: 10},
				Setup: func(p *plugin.Plugin) error {
					got, _ = plugin.ArgsAs[args](p)
					return nil
				},
			}, tt.args...)

			if tt.wantErr {
				assert.Equal(t, abi.InstallFailed, status)
				assert.Nil(t, got)
				assert.Contains(t, h.host.Output(), "install failed")
				assert.False(t, h.host.Loaded())
				return
			}
			require.Equal(t, abi.InstallOK, status)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestInstall_SetupFailure(t *testing.T) {
	tests := []struct {
		name  string
		setup func(p *plugin.Plugin) error
		log   string
	}{
		{
			name:  "error",
			setup: func(*plugin.Plugin) error { return errors.New("no tracing today") },
			log:   "no tracing today",
		},
		{
			name:  "panic",
			setup: func(*plugin.Plugin) error { panic("boom") },
			log:   "panic",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exits := 0
			h, status := load(t, abi.V4, plugin.PluginDef{
				Setup: func(p *plugin.Plugin) error {
					require.NoError(t, p.RegisterExit(func() { exits++ }))
					return tt.setup(p)
				},
			})

			assert.Equal(t, abi.InstallFailed, status)
			assert.Contains(t, h.host.Output(), tt.log)
			assert.Zero(t, exits)
			assert.Nil(t, h.plugin)
			assert.Zero(t, h.router.LiveHandles())
		})
	}
}

func TestInstall_HostVersionMismatch(t *testing.T) {
	r := plugin.NewRouter(plugin.WithDefinition(plugin.DefinePlugin(plugin.PluginDef{
		Options: []plugin.Option{plugin.WithContract(abi.MustForVersion(abi.V4))},
	})))
	host := qemutest.New(r, qemutest.WithContract(abi.MustForVersion(abi.V2)))

	assert.Equal(t, abi.InstallFailed, host.Install())
	assert.Contains(t, host.Output(), "not available in plugin API v4")
}

func TestInstall_NoDefinition(t *testing.T) {
	host := qemutest.New(plugin.NewRouter())
	assert.Equal(t, abi.InstallFailed, host.Install())
	assert.Contains(t, host.Output(), "no plugin registered")
}

func TestManifest(t *testing.T) {
	type args struct {
		Limit int `arg:"limit" json:"limit"`
	}
	def := plugin.DefinePlugin(plugin.PluginDef{
		Name:    "manifest",
		Version: "1.2.3",
		Args:    args{},
		Options: []plugin.Option{plugin.WithContract(abi.MustForVersion(abi.V3))},
		Setup: func(p *plugin.Plugin) error {
			return p.RegisterTranslate(func(*plugin.TranslationBlock) {})
		},
	})
	host := qemutest.New(plugin.NewRouter(plugin.WithDefinition(def)), qemutest.WithContract(abi.MustForVersion(abi.V3)))
	require.Equal(t, abi.InstallOK, host.Install())

	m := def.Manifest()
	assert.Equal(t, "manifest", m.Name)
	assert.Equal(t, "1.2.3", m.Version)
	assert.Equal(t, plugin.Version, m.SDKVersion)
	assert.Equal(t, 3, m.APIVersion)
	assert.Equal(t, "9.1", m.QEMURelease)
	assert.Contains(t, m.Events, "tb_trans")
	assert.Contains(t, string(m.ArgsSchema), "limit")
}

func TestFacade_HostCalls(t *testing.T) {
	var p *plugin.Plugin
	r := plugin.NewRouter(plugin.WithDefinition(plugin.DefinePlugin(plugin.PluginDef{
		Setup: func(pl *plugin.Plugin) error {
			p = pl
			return nil
		},
	})))
	host := qemutest.New(r, qemutest.WithBinary("/bin/true", 0x1000, 0x2000, 0x1010))
	require.Equal(t, abi.InstallOK, host.Install("mode=fast"))

	assert.Equal(t, host.ID(), p.ID())
	assert.Equal(t, entities.StateActive, p.State())
	assert.Equal(t, "x86_64", p.Info().TargetName)
	assert.Equal(t, "fast", p.Config()["mode"])
	assert.Nil(t, p.Args())

	path, ok := p.PathToBinary()
	assert.True(t, ok)
	assert.Equal(t, "/bin/true", path)
	assert.Equal(t, uint64(0x1000), p.StartCode())
	assert.Equal(t, uint64(0x2000), p.EndCode())
	assert.Equal(t, uint64(0x1010), p.EntryCode())
	assert.Equal(t, 8, p.MaxVCPUs())

	host.StartVCPU(0)
	host.StartVCPU(1)
	assert.Equal(t, 2, p.NumVCPUs())

	v, err := p.BoolParse("trace", "yes")
	require.NoError(t, err)
	assert.True(t, v)

	_, err = p.BoolParse("trace", "maybe")
	var hostErr *sdkErrors.HostCallError
	require.ErrorAs(t, err, &hostErr)
	assert.Equal(t, string(abi.FuncBoolParse), hostErr.Call)

	p.Outs("hello\n")
	assert.Contains(t, host.Output(), "hello\n")
	assert.Empty(t, host.Violations())
}

func TestFacade_MaxVCPUsV1(t *testing.T) {
	h := start(t, abi.V1, plugin.PluginDef{})
	assert.Equal(t, 8, h.plugin.MaxVCPUs())
	assert.Empty(t, h.host.Violations())
}

func TestFacade_TimeControl(t *testing.T) {
	h := start(t, abi.V3, plugin.PluginDef{})

	tc, err := h.plugin.RequestTimeControl()
	require.NoError(t, err)
	require.NoError(t, tc.UpdateNS(1_000_000))
	assert.Equal(t, int64(1_000_000), h.host.TimeNS())

	_, err = h.plugin.RequestTimeControl()
	assert.ErrorIs(t, err, sdkErrors.ErrHostCallFailed)
	assert.Empty(t, h.host.Violations())
}

func TestScoreboard(t *testing.T) {
	h := start(t, abi.V2, plugin.PluginDef{})

	sb, err := h.plugin.NewScoreboardU64()
	require.NoError(t, err)
	sb.Set(0, 5)
	sb.Add(0, 2)
	sb.Add(3, 10)
	assert.Equal(t, uint64(7), sb.Get(0))
	assert.Equal(t, uint64(17), sb.Sum())

	sb.Free()
	sb.Free()
	assert.Zero(t, sb.Sum())
	assert.Zero(t, h.host.Scoreboards())
	assert.Empty(t, h.host.Violations())
}

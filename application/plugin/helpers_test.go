package plugin_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qplug-dev/qemu-plugin-sdk/abi"
	"github.com/qplug-dev/qemu-plugin-sdk/application/plugin"
	"github.com/qplug-dev/qemu-plugin-sdk/testing/qemutest"
)

// harness is an installed plugin on a simulated host.
type harness struct {
	host   *qemutest.Host
	router *plugin.Router
	plugin *plugin.Plugin
}

// start installs def on a host speaking version v and fails the test if
// the install does.
func start(t *testing.T, v abi.Version, def plugin.PluginDef, args ...string) *harness {
	t.Helper()
	h, status := load(t, v, def, args...)
	require.Equal(t, abi.InstallOK, status, h.host.Output())
	return h
}

func load(t *testing.T, v abi.Version, def plugin.PluginDef, args ...string) (*harness, int) {
	t.Helper()
	c := abi.MustForVersion(v)
	def.Options = append([]plugin.Option{plugin.WithContract(c)}, def.Options...)

	r := plugin.NewRouter(plugin.WithDefinition(plugin.DefinePlugin(def)))
	host := qemutest.New(r, qemutest.WithContract(c), qemutest.WithSystemEmulation(true))
	status := host.Install(args...)

	h := &harness{host: host, router: r}
	h.plugin, _ = r.Plugin(host.ID())
	return h, status
}

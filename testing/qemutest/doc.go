// Package qemutest provides an in-process QEMU plugin host for tests.
//
// Host implements ports.Host for a chosen abi.Contract and drives a
// ports.Dispatcher the way QEMU drives the exported trampolines: it
// translates blocks, fires the callbacks registered against them,
// applies inline operations to scoreboards and walks the plugin through
// flush, reset, uninstall and exit. Host calls the contract does not
// export, or made with a reference whose callback has returned, are
// recorded as Violations instead of crashing.
//
//	h := qemutest.New(plugin.NewRouter(plugin.WithDefinition(def)))
//	require.Equal(t, abi.InstallOK, h.Install("count=on"))
//	h.Run(0, qemutest.Blocks(0x1000, 3, 1, 7)...)
//	h.Exit()
//	require.Empty(t, h.Violations())
package qemutest

// Package cgohost connects the SDK to a real QEMU process. It exports
// qemu_plugin_version and qemu_plugin_install, implements ports.Host on
// top of the host's plugin API and forwards every host callback to
// plugin.DefaultRouter.
//
// The package only has content when built with the qemu_plugin tag, as
// part of a c-shared library:
//
//	go build -tags qemu_plugin -buildmode=c-shared -o libtiny.so ./examples/tiny
//
// Add qemu_plugin_api_v1..qemu_plugin_api_v3 to target an older host and
// qemu_plugin_weaklink to resolve the host API with dlsym at install
// instead of leaving it to the dynamic linker.
//
// Plugin main packages import it for its side effects:
//
//	import _ "github.com/qplug-dev/qemu-plugin-sdk/infrastructure/cgohost"
package cgohost

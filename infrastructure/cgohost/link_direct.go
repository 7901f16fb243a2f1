//go:build qemu_plugin && !qemu_plugin_weaklink

package cgohost

// link is a no-op: the dynamic linker bound the host API when QEMU
// loaded the plugin.
func link() error { return nil }

//go:build qemu_plugin && darwin && !qemu_plugin_weaklink

package cgohost

// The plugin API is resolved against the QEMU executable at load time.
//
// #cgo LDFLAGS: -undefined dynamic_lookup
import "C"

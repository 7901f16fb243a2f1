//go:build qemu_plugin && qemu_plugin_api_v2

package cgohost

// #cgo CFLAGS: -DQPG_API_VERSION=2
import "C"

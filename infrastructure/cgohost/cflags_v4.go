//go:build qemu_plugin && (qemu_plugin_api_v4 || !(qemu_plugin_api_v1 || qemu_plugin_api_v2 || qemu_plugin_api_v3))

package cgohost

// #cgo CFLAGS: -DQPG_API_VERSION=4
import "C"

//go:build qemu_plugin && qemu_plugin_api_v3

package cgohost

// #cgo CFLAGS: -DQPG_API_VERSION=3
import "C"

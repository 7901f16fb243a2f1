//go:build qemu_plugin && qemu_plugin_api_v1

package cgohost

// #cgo CFLAGS: -DQPG_API_VERSION=1
import "C"

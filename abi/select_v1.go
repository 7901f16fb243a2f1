//go:build qemu_plugin_api_v1

package abi

// Selected is the plugin API version this binary is built for.
const Selected = V1

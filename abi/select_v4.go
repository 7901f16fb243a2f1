//go:build qemu_plugin_api_v4 || !(qemu_plugin_api_v1 || qemu_plugin_api_v2 || qemu_plugin_api_v3)

package abi

// Selected is the plugin API version this binary is built for.
const Selected = V4

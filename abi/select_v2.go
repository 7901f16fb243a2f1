//go:build qemu_plugin_api_v2

package abi

// Selected is the plugin API version this binary is built for.
const Selected = V2

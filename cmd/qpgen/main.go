// Command qpgen regenerates the plugin API tables in package abi from
// QEMU sources.
//
//	qpgen fetch                 download and unpack every version's source tree
//	qpgen symbols -o abi/symbols_gen.go
//	qpgen def --out-dir build/  write qemu_plugin_api_vN.def for Windows hosts
package main

import (
	"os"

	"github.com/qplug-dev/qemu-plugin-sdk/cmd/qpgen/cmds"
)

func main() {
	if err := cmds.New().Execute(); err != nil {
		os.Exit(1)
	}
}

//go:build qemu_plugin && qemu_plugin_weaklink

package cgohost

// #cgo CFLAGS: -DQPG_WEAKLINK
// #cgo linux LDFLAGS: -ldl
// #include <stdlib.h>
// #include "qpg.h"
import "C"

import (
	"log/slog"
	"sync"
	"unsafe"

	"github.com/qplug-dev/qemu-plugin-sdk/abi"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/ports"
	"github.com/qplug-dev/qemu-plugin-sdk/infrastructure/weaklink"
)

var (
	linkOnce sync.Once
	linkErr  error
)

func dlsym(name string) (uintptr, bool) {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	addr := uintptr(C.qpg_dlsym(cname))
	return addr, addr != 0
}

type cSlots struct{}

func (cSlots) Bind(name string, addr uintptr) bool {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return C.qpg_bind(cname, C.uintptr_t(addr)) != 0
}

func (cSlots) Unbound() []string {
	var names []string
	for i := C.size_t(0); ; i++ {
		var bound C.int
		name := C.qpg_slot(i, &bound)
		if name == nil {
			return names
		}
		if bound == 0 {
			names = append(names, C.GoString(name))
		}
	}
}

// link resolves the selected version's functions in the host process and
// fills the C call table. It fails before any host function is called.
func link() error {
	linkOnce.Do(func() {
		table, err := weaklink.ResolveVersion(ports.SymbolLookupFunc(dlsym), abi.Selected)
		if err != nil {
			linkErr = err
			return
		}
		extra, err := weaklink.Link(table, cSlots{})
		if len(extra) > 0 {
			slog.Debug("resolved symbols without a call slot", slog.Any("symbols", extra))
		}
		linkErr = err
	})
	return linkErr
}

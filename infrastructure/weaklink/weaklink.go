// Package weaklink binds host plugin functions at runtime instead of at
// link time. Plugins built with the qemu_plugin_weaklink tag use it so one
// shared object can load on hosts whose dynamic linker cannot leave the
// plugin API undefined (Windows, some macOS setups).
package weaklink

import (
	"slices"

	"github.com/qplug-dev/qemu-plugin-sdk/abi"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/errors"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/ports"
)

// GlibSymbols are the glib allocator functions the binding calls to free
// buffers the host hands out. They live in the host process as well.
var GlibSymbols = []string{
	"g_array_free",
	"g_byte_array_free",
	"g_byte_array_new",
	"g_free",
}

// Table maps resolved symbol names to their addresses.
type Table map[string]uintptr

// Addr returns the address of name, if it was resolved.
func (t Table) Addr(name string) (uintptr, bool) {
	a, ok := t[name]
	return a, ok
}

// Names returns the resolved names in sorted order.
func (t Table) Names() []string {
	names := make([]string, 0, len(t))
	for n := range t {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Resolve looks up every name and fails with one SymbolResolutionError
// listing all the names that were missing. Duplicate names are looked up
// once.
func Resolve(lookup ports.SymbolLookup, names []string) (Table, error) {
	table := make(Table, len(names))
	var missing []string
	for _, name := range names {
		if _, done := table[name]; done || slices.Contains(missing, name) {
			continue
		}
		addr, ok := lookup.Lookup(name)
		if !ok || addr == 0 {
			missing = append(missing, name)
			continue
		}
		table[name] = addr
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, &errors.SymbolResolutionError{Symbols: missing}
	}
	return table, nil
}

// ResolveVersion resolves the host functions of v plus GlibSymbols.
func ResolveVersion(lookup ports.SymbolLookup, v abi.Version) (Table, error) {
	names := append(abi.Symbols(v), GlibSymbols...)
	return Resolve(lookup, names)
}

// Bind hands every entry of t to bind, in name order, and returns the
// names bind did not accept.
func (t Table) Bind(bind func(name string, addr uintptr) bool) []string {
	var skipped []string
	for _, name := range t.Names() {
		if !bind(name, t[name]) {
			skipped = append(skipped, name)
		}
	}
	return skipped
}

// Slots is a call table resolved symbols are bound into.
type Slots interface {
	// Bind stores addr in the slot called name and reports whether such a
	// slot exists.
	Bind(name string, addr uintptr) bool
	// Unbound returns the slots still empty.
	Unbound() []string
}

// Link binds t into slots. Resolved names without a slot are returned;
// slots left empty fail the link with a SymbolResolutionError, since
// calling through one would crash.
func Link(t Table, slots Slots) ([]string, error) {
	extra := t.Bind(slots.Bind)
	if unbound := slots.Unbound(); len(unbound) > 0 {
		unbound = slices.Clone(unbound)
		slices.Sort(unbound)
		return extra, &errors.SymbolResolutionError{Symbols: unbound}
	}
	return extra, nil
}

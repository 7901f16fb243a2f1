// Package ports defines the boundary between the SDK and the QEMU host.
// Host is the raw plugin API as the binding layer sees it: opaque refs,
// encoded enums and status codes, no Go closures. The cgo adapter
// implements it against the real host and the qemutest package implements
// it in memory. Dispatcher is the other direction, the entry points the
// host's callbacks arrive at.
package ports

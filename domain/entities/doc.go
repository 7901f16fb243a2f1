// Package entities provides the value types shared by every layer of the SDK:
// event kinds, lifecycle states, guest addresses, callback flags and the
// structured error detail used in diagnostics.
// None of these types reference host memory; they are safe to keep after a
// callback returns.
package entities

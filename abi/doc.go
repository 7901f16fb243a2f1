// Package abi describes the QEMU TCG plugin C ABI versions the SDK can be
// built against and selects one of them at compile time.
//
// Exactly one of the build tags qemu_plugin_api_v1, qemu_plugin_api_v2,
// qemu_plugin_api_v3 or qemu_plugin_api_v4 may be set. Without a tag the
// newest version is selected. Setting two tags fails to compile because
// Selected is declared twice.
//
// A Contract is the data form of one version: which host functions exist,
// which events can be registered and how flags and enums are encoded.
// Code that needs a capability asks the contract first and reports
// UnsupportedOnVersion when it is missing.
package abi

package abi

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a QEMU plugin API version, the value of qemu_plugin_version
// the plugin exports.
type Version int

const (
	V1 Version = iota + 1
	V2
	V3
	V4
)

// Latest is the newest version the SDK knows.
const Latest = V4

type release struct {
	qemu   string
	commit string
}

var releases = map[Version]release{
	V1: {qemu: "8.2", commit: "1332b8dd434674480f0feb2cdf3bbaebb85b4240"},
	V2: {qemu: "9.0", commit: "c25df57ae8f9fe1c72eee2dab37d76d904ac382e"},
	V3: {qemu: "9.1", commit: "7de77d37880d7267a491cb32a1b2232017d1e545"},
	V4: {qemu: "9.2", commit: "595cd9ce2ec9330882c991a647d5bc2a5640f380"},
}

// Versions returns every known version, oldest first.
func Versions() []Version {
	return []Version{V1, V2, V3, V4}
}

// Valid reports whether v is a known version.
func (v Version) Valid() bool {
	_, ok := releases[v]
	return ok
}

func (v Version) String() string {
	return fmt.Sprintf("v%d", int(v))
}

// QEMURelease is the QEMU release that introduced the version. V1 covers
// every release up to 8.2.
func (v Version) QEMURelease() string {
	return releases[v].qemu
}

// Commit is the QEMU commit the version's header and symbol list were taken from.
func (v Version) Commit() string {
	return releases[v].commit
}

// ParseVersion accepts "1".."4" or "v1".."v4".
func ParseVersion(s string) (Version, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(s), "v"))
	if err != nil {
		return 0, fmt.Errorf("invalid plugin API version %q", s)
	}
	v := Version(n)
	if !v.Valid() {
		return 0, fmt.Errorf("unknown plugin API version %q", s)
	}
	return v, nil
}

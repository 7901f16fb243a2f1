// Package config parses and binds the key=value arguments QEMU passes to a
// plugin (-plugin file.so,key=value,...).
package config

import (
	"fmt"
	"strings"

	"github.com/qplug-dev/qemu-plugin-sdk/domain/errors"
)

// Config holds plugin arguments by key. Values parsed from the command
// line are strings; typed getters convert on access.
type Config = map[string]any

// ParseArgs splits each argument at the first '='. A bare key is read as
// "on", matching QEMU's boolean shorthand. Repeated keys are an error.
func ParseArgs(args []string) (Config, error) {
	cfg := make(Config, len(args))
	for _, arg := range args {
		if arg == "" {
			continue
		}
		key, value, found := strings.Cut(arg, "=")
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, &errors.ConfigError{Err: fmt.Errorf("argument %q has no key", arg)}
		}
		if !found {
			value = "on"
		}
		if _, dup := cfg[key]; dup {
			return nil, &errors.ConfigError{Field: key, Err: fmt.Errorf("given more than once")}
		}
		cfg[key] = value
	}
	return cfg, nil
}

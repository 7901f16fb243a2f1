package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/qplug-dev/qemu-plugin-sdk/domain/errors"
)

// GetString extracts a string, returning (value, found).
func GetString(config Config, key string) (string, bool) {
	v, ok := config[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt extracts an int. Strings are parsed with 0x, 0o and 0b prefixes.
func GetInt(config Config, key string) (int, bool) {
	v, ok := config[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		return int(n), true
	case float64:
		return int(n), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 0, 0)
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

// GetUint64 extracts a uint64, typically an address or a count.
func GetUint64(config Config, key string) (uint64, bool) {
	v, ok := config[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case uint64:
		return n, true
	case int:
		if n < 0 {
			return 0, false
		}
		return uint64(n), true
	case string:
		u, err := strconv.ParseUint(strings.TrimSpace(n), 0, 64)
		if err != nil {
			return 0, false
		}
		return u, true
	default:
		return 0, false
	}
}

// GetFloat extracts a float64.
func GetFloat(config Config, key string) (float64, bool) {
	v, ok := config[key]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// GetBool extracts a bool. Strings follow QEMU's rules: on/yes/true/y and
// off/no/false/n, case-insensitive.
func GetBool(config Config, key string) (bool, bool) {
	v, ok := config[key]
	if !ok {
		return false, false
	}
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		return ParseBool(b)
	default:
		return false, false
	}
}

// ParseBool parses a QEMU boolean word.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "yes", "true", "y":
		return true, true
	case "off", "no", "false", "n":
		return false, true
	default:
		return false, false
	}
}

// GetStringSlice extracts a list. A string is split on ':' the way QEMU
// plugins pass lists inside a comma-separated option string.
func GetStringSlice(config Config, key string) ([]string, bool) {
	v, ok := config[key]
	if !ok {
		return nil, false
	}
	switch arr := v.(type) {
	case []string:
		return arr, true
	case string:
		if arr == "" {
			return []string{}, true
		}
		return strings.Split(arr, ":"), true
	case []any:
		result := make([]string, 0, len(arr))
		for _, item := range arr {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			result = append(result, s)
		}
		return result, true
	default:
		return nil, false
	}
}

// MustGetString extracts a required string or returns a ConfigError.
func MustGetString(config Config, key string) (string, error) {
	s, ok := GetString(config, key)
	if !ok {
		return "", &errors.ConfigError{
			Field: key,
			Err:   fmt.Errorf("required string argument '%s' is missing", key),
		}
	}
	return s, nil
}

// MustGetInt extracts a required int or returns a ConfigError.
func MustGetInt(config Config, key string) (int, error) {
	i, ok := GetInt(config, key)
	if !ok {
		return 0, &errors.ConfigError{
			Field: key,
			Err:   fmt.Errorf("required int argument '%s' is missing or not a number", key),
		}
	}
	return i, nil
}

// MustGetBool extracts a required bool or returns a ConfigError.
func MustGetBool(config Config, key string) (bool, error) {
	b, ok := GetBool(config, key)
	if !ok {
		return false, &errors.ConfigError{
			Field: key,
			Err:   fmt.Errorf("required bool argument '%s' is missing or not on/off", key),
		}
	}
	return b, nil
}

// GetStringDefault extracts a string or returns defaultValue.
func GetStringDefault(config Config, key, defaultValue string) string {
	s, ok := GetString(config, key)
	if !ok {
		return defaultValue
	}
	return s
}

// GetIntDefault extracts an int or returns defaultValue.
func GetIntDefault(config Config, key string, defaultValue int) int {
	i, ok := GetInt(config, key)
	if !ok {
		return defaultValue
	}
	return i
}

// GetBoolDefault extracts a bool or returns defaultValue.
func GetBoolDefault(config Config, key string, defaultValue bool) bool {
	b, ok := GetBool(config, key)
	if !ok {
		return defaultValue
	}
	return b
}

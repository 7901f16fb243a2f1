// Package errors provides the typed errors returned by the SDK.
// Every type matches its sentinel through errors.Is and converts to a
// structured entities.ErrorDetail for diagnostics.
package errors

import (
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/qplug-dev/qemu-plugin-sdk/domain/entities"
)

// ErrorDetail is an alias to entities.ErrorDetail for convenience.
type ErrorDetail = entities.ErrorDetail

// Sentinels for errors.Is.
var (
	ErrUnsupportedOnVersion       = stdErrors.New("unsupported on this plugin API version")
	ErrInvalidRegistrationContext = stdErrors.New("invalid registration context")
	ErrHostCallFailed             = stdErrors.New("host call failed")
	ErrSymbolResolutionFailed     = stdErrors.New("symbol resolution failed")
	ErrHandleExpired              = stdErrors.New("handle expired")
	ErrIndexOutOfRange            = stdErrors.New("index out of range")
)

// DetailedError is implemented by errors that can describe themselves as
// an ErrorDetail.
type DetailedError interface {
	error
	ToErrorDetail() *entities.ErrorDetail
}

// ToErrorDetail converts a Go error to an ErrorDetail.
func ToErrorDetail(err error) *entities.ErrorDetail {
	if err == nil {
		return nil
	}

	var e *entities.ErrorDetail
	if stdErrors.As(err, &e) {
		return e
	}

	var de DetailedError
	if stdErrors.As(err, &de) {
		return de.ToErrorDetail()
	}

	return &entities.ErrorDetail{
		Message: err.Error(),
		Type:    "internal",
	}
}

// UnsupportedOnVersionError is returned when a function or event does not
// exist in the plugin API version the plugin was built for.
type UnsupportedOnVersionError struct {
	// Feature is the host function or event name.
	Feature string
	Version int
	// Since is the first version providing the feature, 0 if none does.
	Since int
}

func (e *UnsupportedOnVersionError) Error() string {
	if e.Since > 0 {
		return fmt.Sprintf("%s is not available in plugin API v%d (requires v%d)", e.Feature, e.Version, e.Since)
	}
	return fmt.Sprintf("%s is not available in plugin API v%d", e.Feature, e.Version)
}

func (e *UnsupportedOnVersionError) Is(target error) bool {
	return target == ErrUnsupportedOnVersion
}

// ToErrorDetail implements DetailedError.
func (e *UnsupportedOnVersionError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message: e.Error(),
		Type:    "unsupported",
		Code:    e.Feature,
		Details: map[string]any{"version": e.Version},
	}
}

// RegistrationContextError is returned when a callback is registered from a
// handle or lifecycle state that cannot accept it.
type RegistrationContextError struct {
	Operation string
	Reason    string
}

func (e *RegistrationContextError) Error() string {
	return fmt.Sprintf("cannot %s: %s", e.Operation, e.Reason)
}

func (e *RegistrationContextError) Is(target error) bool {
	return target == ErrInvalidRegistrationContext
}

// ToErrorDetail implements DetailedError.
func (e *RegistrationContextError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "registration", Code: e.Operation}
}

// HostCallError is returned when the host reported failure. Status keeps
// the raw value the host returned (negative status, or -1 for a NULL or
// false result).
type HostCallError struct {
	Call   string
	Status int
}

func (e *HostCallError) Error() string {
	return fmt.Sprintf("host call %s failed with status %d", e.Call, e.Status)
}

func (e *HostCallError) Is(target error) bool {
	return target == ErrHostCallFailed
}

// ToErrorDetail implements DetailedError.
func (e *HostCallError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message: e.Error(),
		Type:    "host_call",
		Code:    e.Call,
		Details: map[string]any{"status": e.Status},
	}
}

// SymbolResolutionError lists every host symbol that could not be found
// when binding at runtime.
type SymbolResolutionError struct {
	Symbols []string
}

func (e *SymbolResolutionError) Error() string {
	if len(e.Symbols) == 1 {
		return fmt.Sprintf("unresolved host symbol %s", e.Symbols[0])
	}
	return fmt.Sprintf("%d unresolved host symbols: %s", len(e.Symbols), strings.Join(e.Symbols, ", "))
}

func (e *SymbolResolutionError) Is(target error) bool {
	return target == ErrSymbolResolutionFailed
}

// ToErrorDetail implements DetailedError.
func (e *SymbolResolutionError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message: e.Error(),
		Type:    "symbol",
		Details: map[string]any{"symbols": e.Symbols},
	}
}

// HandleExpiredError is returned when a translation block, instruction,
// memory access or vCPU handle is used after its callback returned.
type HandleExpiredError struct {
	Handle string
	Op     string
}

func (e *HandleExpiredError) Error() string {
	return fmt.Sprintf("%s: %s handle used after its callback returned", e.Op, e.Handle)
}

func (e *HandleExpiredError) Is(target error) bool {
	return target == ErrHandleExpired
}

// ToErrorDetail implements DetailedError.
func (e *HandleExpiredError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "expired", Code: e.Handle}
}

// IndexError is returned when an instruction index lies outside its
// translation block.
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("instruction index %d out of range [0,%d)", e.Index, e.Len)
}

func (e *IndexError) Is(target error) bool {
	return target == ErrIndexOutOfRange
}

// ToErrorDetail implements DetailedError.
func (e *IndexError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{
		Message: e.Error(),
		Type:    "internal",
		Code:    "index",
		Details: map[string]any{"index": e.Index, "len": e.Len},
	}
}

// ConfigError represents an invalid plugin argument.
type ConfigError struct {
	Err   error
	Field string
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid plugin argument '%s': %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid plugin arguments: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *ConfigError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "config", Code: e.Field}
}

// PanicError wraps a panic recovered from a plugin callback.
type PanicError struct {
	Value any
	Event string
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s callback: %v", e.Event, e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// ToErrorDetail implements DetailedError.
func (e *PanicError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "panic", Code: e.Event, Stack: e.Stack}
}

// SchemaError represents a schema generation error.
type SchemaError struct {
	Err  error
	Type string
}

func (e *SchemaError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("schema error for type %s: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("schema error: %v", e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// ToErrorDetail implements DetailedError.
func (e *SchemaError) ToErrorDetail() *entities.ErrorDetail {
	return &entities.ErrorDetail{Message: e.Error(), Type: "config", Code: "schema"}
}

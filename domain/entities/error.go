package entities

import "fmt"

// ErrorDetail is the structured form of an SDK error, used as slog
// attributes when the dispatch router reports a failed callback.
// Types: "unsupported", "registration", "host_call", "symbol", "expired",
// "config", "panic", "internal".
type ErrorDetail struct {
	// Wrapped is the next error in the chain, if it carried detail of its own.
	Wrapped *ErrorDetail `json:"wrapped,omitempty"`

	Details map[string]any `json:"details,omitempty"`

	Message string `json:"message"`
	Type    string `json:"type"`

	// Code is a machine-readable discriminator within Type, e.g. the host
	// function name for "host_call".
	Code string `json:"code,omitempty"`

	// Stack is only set for recovered panics.
	Stack []byte `json:"stack,omitempty"`
}

func (e *ErrorDetail) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Message
	if e.Type != "" && e.Type != "internal" {
		msg = fmt.Sprintf("%s: %s", e.Type, msg)
	}
	if e.Code != "" {
		msg = fmt.Sprintf("%s [%s]", msg, e.Code)
	}
	if e.Wrapped != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Wrapped.Error())
	}
	return msg
}

// NewErrorDetail creates an ErrorDetail with the given type and message.
func NewErrorDetail(errorType, message string) *ErrorDetail {
	return &ErrorDetail{
		Type:    errorType,
		Message: message,
	}
}

// WithDetails attaches details and returns the receiver.
func (e *ErrorDetail) WithDetails(details map[string]any) *ErrorDetail {
	e.Details = details
	return e
}

// WithCode sets the code and returns the receiver.
func (e *ErrorDetail) WithCode(code string) *ErrorDetail {
	e.Code = code
	return e
}

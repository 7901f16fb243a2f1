package plugin

import (
	"runtime/debug"

	"github.com/qplug-dev/qemu-plugin-sdk/domain/entities"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/errors"
)

// Invocation describes one plugin closure about to run.
type Invocation struct {
	Plugin *Plugin
	Event  entities.Event
	run    func()
}

// Handler runs an invocation.
type Handler func(inv Invocation) error

// Middleware wraps a Handler to add cross-cutting behavior. Middleware
// executes in registration order (first registered is outermost).
//
// Example:
//
//	counting := func(next plugin.Handler) plugin.Handler {
//	    return func(inv plugin.Invocation) error {
//	        calls[inv.Event].Add(1)
//	        return next(inv)
//	    }
//	}
type Middleware func(next Handler) Handler

func runInvocation(inv Invocation) error {
	inv.run()
	return nil
}

// PanicRecoveryMiddleware converts a panic in a closure into a PanicError.
// The router always installs it outermost.
func PanicRecoveryMiddleware() Middleware {
	return func(next Handler) Handler {
		return func(inv Invocation) (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &errors.PanicError{Value: r, Event: inv.Event.String(), Stack: debug.Stack()}
				}
			}()
			return next(inv)
		}
	}
}

func chain(base Handler, mws []Middleware) Handler {
	h := base
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

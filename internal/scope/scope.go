// Package scope tracks callback activations so handles created during one
// can tell when it has ended.
//
// The router opens a Scope before running a plugin closure and closes it
// when the closure returns. Handles carry the Token of the activation that
// made them; once the scope is closed every such token reports invalid,
// even after the Scope is reused for a later activation.
package scope

import (
	"sync"
	"sync/atomic"

	"github.com/qplug-dev/qemu-plugin-sdk/domain/errors"
)

// Scope is one callback activation. Its generation is odd while open.
type Scope struct {
	gen atomic.Uint64
}

// Token identifies a single activation of a Scope. The zero Token is never valid.
type Token struct {
	s   *Scope
	gen uint64
}

var pool = sync.Pool{
	New: func() any { return new(Scope) },
}

// Open starts an activation.
func Open() (*Scope, Token) {
	s := pool.Get().(*Scope)
	gen := s.gen.Add(1)
	return s, Token{s: s, gen: gen}
}

// Close ends the activation. The scope must not be used afterwards.
func (s *Scope) Close() {
	s.gen.Add(1)
	pool.Put(s)
}

// Valid reports whether the activation is still running.
func (t Token) Valid() bool {
	return t.s != nil && t.s.gen.Load() == t.gen
}

// Check returns a HandleExpiredError naming the handle kind and operation
// when the activation has ended.
func (t Token) Check(handle, op string) error {
	if t.Valid() {
		return nil
	}
	return &errors.HandleExpiredError{Handle: handle, Op: op}
}

// Run opens a scope, calls fn with its token and closes the scope, also
// when fn panics.
func Run(fn func(Token)) {
	s, tok := Open()
	defer s.Close()
	fn(tok)
}

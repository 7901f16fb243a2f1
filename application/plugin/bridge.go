package plugin

import (
	"github.com/qplug-dev/qemu-plugin-sdk/abi"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/entities"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/errors"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/ports"
	"github.com/qplug-dev/qemu-plugin-sdk/internal/scope"
)

// registration carries what every nested registration checks before it
// reaches the host: the plugin, the handle's activation and its key.
type registration struct {
	p      *Plugin
	tok    scope.Token
	key    blockKey
	handle string
}

// check validates a nested registration in order: the version must offer
// the function, the plugin must accept registrations and the handle must
// still be live.
func (r registration) check(op string, f abi.Func) error {
	if err := r.p.contract.Require(f); err != nil {
		return err
	}
	if err := r.p.acceptsRegistrations(op); err != nil {
		return err
	}
	if !r.tok.Valid() {
		return &errors.RegistrationContextError{Operation: op, Reason: r.handle + " handle expired"}
	}
	return nil
}

func (r registration) flags(f entities.CallbackFlags) (uint32, error) {
	return r.p.contract.EncodeFlags(f)
}

// pin stores the closure for the lifetime of the translation and returns
// the userdata the host hands back on every call.
func (r registration) pin(ev entities.Event, exec func(VCPU), mem func(VCPU, *MemoryAccess)) ports.Userdata {
	h := r.p.blocks.Pin(r.key, &nestedCallback{plugin: r.p, event: ev, exec: exec, mem: mem})
	r.p.def.noteEvent(ev)
	return ports.Userdata(h)
}

func (r registration) cond(op string, c entities.Cond, sb *ScoreboardU64) (uint32, ports.U64Ref, error) {
	enc, err := r.p.contract.EncodeCond(c)
	if err != nil {
		return 0, ports.U64Ref{}, err
	}
	entry, err := sb.entry(op)
	if err != nil {
		return 0, ports.U64Ref{}, err
	}
	return enc, entry, nil
}

func (r registration) inline(op string, o entities.InlineOp, sb *ScoreboardU64) (uint32, ports.U64Ref, error) {
	enc, err := r.p.contract.EncodeInlineOp(o)
	if err != nil {
		return 0, ports.U64Ref{}, err
	}
	entry, err := sb.entry(op)
	if err != nil {
		return 0, ports.U64Ref{}, err
	}
	return enc, entry, nil
}

func nilCallback(op string) error {
	return &errors.RegistrationContextError{Operation: op, Reason: "nil callback"}
}

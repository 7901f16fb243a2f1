package plugin

import (
	"log/slog"
	"maps"

	"github.com/qplug-dev/qemu-plugin-sdk/abi"
	"github.com/qplug-dev/qemu-plugin-sdk/application/config"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/entities"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/errors"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/ports"
)

// ID returns the identifier the host assigned at install.
func (p *Plugin) ID() ports.PluginID {
	return p.id
}

// State returns the current lifecycle state.
func (p *Plugin) State() entities.State {
	return entities.State(p.state.Load())
}

// Info returns what the host reported at install.
func (p *Plugin) Info() entities.Info {
	return p.info
}

// Args returns the bound plugin arguments, a pointer to a copy of
// PluginDef.Args, or nil when the definition declares none.
func (p *Plugin) Args() any {
	return p.args
}

// ArgsAs returns the bound arguments as *T.
func ArgsAs[T any](p *Plugin) (*T, bool) {
	a, ok := p.args.(*T)
	return a, ok
}

// Config returns the raw key=value arguments.
func (p *Plugin) Config() config.Config {
	return maps.Clone(p.cfg)
}

// Contract returns the API contract the plugin was built against.
func (p *Plugin) Contract() *abi.Contract {
	return p.contract
}

// Logger returns the plugin logger.
func (p *Plugin) Logger() *slog.Logger {
	return p.logger
}

// NumVCPUs returns the number of vCPUs started so far.
func (p *Plugin) NumVCPUs() int {
	return p.host.NumVCPUs()
}

// MaxVCPUs returns the most vCPUs the guest can have. Hosts from v2 on
// only report it at install.
func (p *Plugin) MaxVCPUs() int {
	if p.contract.Supports(abi.FuncNMaxVCPUs) {
		if n := p.host.MaxVCPUs(); n >= 0 {
			return n
		}
	}
	return p.info.MaxVCPUs
}

// Outs writes s to the host's plugin output.
func (p *Plugin) Outs(s string) {
	p.host.Outs(s)
}

// BoolParse interprets value the way the host parses boolean plugin
// options.
func (p *Plugin) BoolParse(name, value string) (bool, error) {
	v, ok := p.host.BoolParse(name, value)
	if !ok {
		return false, &errors.HostCallError{Call: string(abi.FuncBoolParse), Status: -1}
	}
	return v, nil
}

// PathToBinary returns the guest binary path in user-mode emulation.
func (p *Plugin) PathToBinary() (string, bool) {
	return p.host.PathToBinary()
}

// StartCode returns the start of the guest text segment.
func (p *Plugin) StartCode() uint64 {
	return p.host.StartCode()
}

// EndCode returns the end of the guest text segment.
func (p *Plugin) EndCode() uint64 {
	return p.host.EndCode()
}

// EntryCode returns the guest entry point.
func (p *Plugin) EntryCode() uint64 {
	return p.host.EntryCode()
}

// ReadMemory reads n bytes of guest virtual memory of the current vCPU.
// The host only allows it from a vCPU callback.
func (p *Plugin) ReadMemory(addr entities.Vaddr, n int) ([]byte, error) {
	if err := p.contract.Require(abi.FuncReadMemoryVaddr); err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, nil
	}
	data, ok := p.host.ReadMemoryVaddr(uint64(addr), n)
	if !ok {
		return nil, &errors.HostCallError{Call: string(abi.FuncReadMemoryVaddr), Status: -1}
	}
	return data, nil
}

// RequestFlush asks the host to drop every callback of this plugin and
// flush translated code. When the host is done, the SDK re-registers its
// own events and runs done. Requests made before completion share it.
func (p *Plugin) RequestFlush(done func()) error {
	if err := p.contract.Require(abi.FuncReset); err != nil {
		return err
	}
	if err := p.acceptsRegistrations("request flush"); err != nil {
		return err
	}

	p.resetMu.Lock()
	p.resetDoneFns = append(p.resetDoneFns, done)
	first := !p.resetPending
	p.resetPending = true
	p.resetMu.Unlock()

	if first {
		p.host.Reset(p.id)
	}
	return nil
}

// Uninstall asks the host to unload the plugin. The exit closure runs
// when the host confirms. Only an active plugin can be uninstalled; a
// plugin that wants to stop during Setup returns an error instead.
func (p *Plugin) Uninstall() error {
	if err := p.contract.Require(abi.FuncUninstall); err != nil {
		return err
	}
	if !p.transition(entities.StateActive, entities.StateUninstalling) {
		return &errors.RegistrationContextError{Operation: "uninstall", Reason: "plugin is " + p.State().String()}
	}
	p.host.Uninstall(p.id)
	return nil
}

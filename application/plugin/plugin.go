package plugin

import (
	"fmt"
	"log/slog"
	"reflect"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/qplug-dev/qemu-plugin-sdk/abi"
	"github.com/qplug-dev/qemu-plugin-sdk/application/config"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/entities"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/errors"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/ports"
	"github.com/qplug-dev/qemu-plugin-sdk/internal/handles"
	"github.com/qplug-dev/qemu-plugin-sdk/internal/scope"
	sdklog "github.com/qplug-dev/qemu-plugin-sdk/log"
)

// Syscall is a guest system call observed on entry.
type Syscall = entities.Syscall

// SyscallReturn is a guest system call observed on return.
type SyscallReturn = entities.SyscallReturn

// blockKey identifies one translation. The same vaddr can be translated
// more than once before a flush.
type blockKey struct {
	serial uint64
	vaddr  uint64
}

// nestedCallback is what a userdata handle points at.
type nestedCallback struct {
	plugin *Plugin
	event  entities.Event
	exec   func(VCPU)
	mem    func(VCPU, *MemoryAccess)
}

// Plugin is one installed plugin instance: its lifecycle, its registered
// closures and the host call facade.
type Plugin struct {
	id       ports.PluginID
	host     ports.Host
	router   *Router
	def      *PluginDefinition
	contract *abi.Contract
	info     entities.Info
	rawArgs  []string
	cfg      config.Config
	args     any
	logger   *slog.Logger
	policy   ReregistrationPolicy

	state atomic.Int32

	mu        sync.RWMutex
	callbacks map[entities.Event]any
	hooked    map[entities.Event]bool

	blocks *handles.Ledger[blockKey]
	serial atomic.Uint64

	exitOnce sync.Once

	resetMu      sync.Mutex
	resetPending bool
	resetDoneFns []func()

	regsMu sync.Mutex
	regs   []RegisterDescriptor
}

func newPlugin(r *Router, def *PluginDefinition, host ports.Host, id ports.PluginID, info entities.Info, args []string) *Plugin {
	cfg := def.config()
	logger := cfg.logger
	if logger == nil {
		logger = sdklog.New(host, sdklog.WithoutTime(), sdklog.WithLevel(cfg.level))
	}
	if def.def.Name != "" {
		logger = logger.With(slog.String("plugin", def.def.Name))
	}

	p := &Plugin{
		id:        id,
		host:      host,
		router:    r,
		def:       def,
		contract:  cfg.contract,
		info:      info,
		rawArgs:   args,
		logger:    logger,
		policy:    cfg.policy,
		callbacks: make(map[entities.Event]any),
		hooked:    make(map[entities.Event]bool),
		blocks:    handles.NewLedger[blockKey](r.table),
	}
	p.state.Store(int32(entities.StateLoading))
	return p
}

func (p *Plugin) install() error {
	if p.info.APICur != 0 {
		v := int(p.contract.Version())
		if v < p.info.APIMin || v > p.info.APICur {
			return &errors.UnsupportedOnVersionError{
				Feature: fmt.Sprintf("host with plugin API v%d..v%d", p.info.APIMin, p.info.APICur),
				Version: v,
			}
		}
	}

	p.hookInternal()

	cfg, err := config.ParseArgs(p.rawArgs)
	if err != nil {
		return err
	}
	p.cfg = cfg

	if p.def.def.Args != nil {
		args, err := bindArgs(cfg, p.def.def.Args)
		if err != nil {
			return err
		}
		p.args = args
	}

	if setup := p.def.def.Setup; setup != nil {
		if err := runSetup(setup, p); err != nil {
			return err
		}
	}

	if !p.transition(entities.StateLoading, entities.StateActive) {
		return &errors.RegistrationContextError{Operation: "install", Reason: "plugin left loading state during setup"}
	}
	return nil
}

// bindArgs copies the template (so its field values act as defaults) and
// binds cfg onto the copy.
func bindArgs(cfg config.Config, template any) (any, error) {
	tv := reflect.ValueOf(template)
	if tv.Kind() == reflect.Pointer {
		if tv.IsNil() {
			return nil, &errors.ConfigError{Err: fmt.Errorf("nil argument template")}
		}
		tv = tv.Elem()
	}
	target := reflect.New(tv.Type())
	target.Elem().Set(tv)
	if err := config.Bind(cfg, target.Interface()); err != nil {
		return nil, err
	}
	return target.Interface(), nil
}

func runSetup(setup func(*Plugin) error, p *Plugin) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &errors.PanicError{Value: r, Event: "setup", Stack: debug.Stack()}
		}
	}()
	return setup(p)
}

// hookInternal registers the host events the SDK always needs.
func (p *Plugin) hookInternal() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hookLocked()
}

// hookLocked is hookInternal with p.mu held.
func (p *Plugin) hookLocked() {
	for _, ev := range []entities.Event{entities.EventFlush, entities.EventAtExit} {
		if !p.hooked[ev] {
			p.hooked[ev] = true
			p.host.RegisterEvent(p.id, ev)
		}
	}
}

// transition moves the plugin from one state to another. State changes
// happen under p.mu so that a top-level registration either completes
// before the change or sees the new state.
func (p *Plugin) transition(from, to entities.State) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.CompareAndSwap(int32(from), int32(to))
}

// beginUnload moves any live state to Uninstalling. It reports false when
// the plugin is already unloaded.
func (p *Plugin) beginUnload() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.State() == entities.StateUnloaded {
		return false
	}
	p.state.Store(int32(entities.StateUninstalling))
	return true
}

// abort unwinds a failed install without running the exit closure.
func (p *Plugin) abort() {
	if !p.beginUnload() {
		return
	}
	p.teardown()
	p.router.remove(p.id)
}

// finish runs the exit closure once and unloads the plugin.
func (p *Plugin) finish() {
	if !p.beginUnload() {
		return
	}

	p.exitOnce.Do(func() {
		if fn, _ := p.callback(entities.EventAtExit).(func()); fn != nil {
			p.router.invoke(p, entities.EventAtExit, func(scope.Token) { fn() })
		}
	})

	p.teardown()
	p.router.remove(p.id)
}

// teardown drops every closure the plugin owns and marks it unloaded.
func (p *Plugin) teardown() {
	p.mu.Lock()
	clear(p.callbacks)
	clear(p.hooked)
	p.state.Store(int32(entities.StateUnloaded))
	p.mu.Unlock()

	p.blocks.ReleaseAll()

	p.resetMu.Lock()
	p.resetPending = false
	p.resetDoneFns = nil
	p.resetMu.Unlock()
}

func (p *Plugin) releaseBlocks() {
	if n := p.blocks.ReleaseAll(); n > 0 {
		p.logger.Debug("released translation callbacks", slog.Int("count", n))
	}
}

// resetDone completes a reset: the host dropped every registration, so the
// SDK drops the closures, re-hooks its own events and runs the done closures.
func (p *Plugin) resetDone() {
	p.resetMu.Lock()
	done := p.resetDoneFns
	p.resetPending = false
	p.resetDoneFns = nil
	p.resetMu.Unlock()

	p.mu.Lock()
	clear(p.callbacks)
	clear(p.hooked)
	if p.State().AcceptsRegistrations() {
		p.hookLocked()
	}
	p.mu.Unlock()
	p.blocks.ReleaseAll()

	for _, fn := range done {
		if fn != nil {
			p.router.invoke(p, entities.EventReset, func(scope.Token) { fn() })
		}
	}
}

func (p *Plugin) callback(ev entities.Event) any {
	p.mu.RLock()
	fn := p.callbacks[ev]
	p.mu.RUnlock()
	return fn
}

func (p *Plugin) acceptsRegistrations(op string) error {
	if s := p.State(); !s.AcceptsRegistrations() {
		return &errors.RegistrationContextError{Operation: op, Reason: "plugin is " + s.String()}
	}
	return nil
}

func (p *Plugin) registerTop(ev entities.Event, fn any) error {
	op := "register " + ev.String()
	if err := p.contract.RequireEvent(ev); err != nil {
		return err
	}
	if isNil(fn) {
		return nilCallback(op)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.acceptsRegistrations(op); err != nil {
		return err
	}
	if _, exists := p.callbacks[ev]; exists && p.policy == RejectPolicy {
		return &errors.RegistrationContextError{Operation: op, Reason: "a callback is already registered"}
	}
	p.callbacks[ev] = fn
	if !p.hooked[ev] {
		p.hooked[ev] = true
		p.host.RegisterEvent(p.id, ev)
	}
	p.def.noteEvent(ev)
	return nil
}

// isNil reports whether fn is a nil func stored in an interface.
func isNil(fn any) bool {
	if fn == nil {
		return true
	}
	v := reflect.ValueOf(fn)
	return v.Kind() == reflect.Func && v.IsNil()
}

func (p *Plugin) logError(msg string, ev entities.Event, err error) {
	attrs := append([]any{slog.String("event", ev.String())}, errorAttrs(err)...)
	p.logger.Error(msg, attrs...)
}

// RegisterVCPUInit sets the closure run when a vCPU initializes.
func (p *Plugin) RegisterVCPUInit(fn func(VCPU)) error {
	return p.registerTop(entities.EventVCPUInit, fn)
}

// RegisterVCPUExit sets the closure run when a vCPU exits.
func (p *Plugin) RegisterVCPUExit(fn func(VCPU)) error {
	return p.registerTop(entities.EventVCPUExit, fn)
}

// RegisterVCPUIdle sets the closure run when a vCPU goes idle.
func (p *Plugin) RegisterVCPUIdle(fn func(VCPU)) error {
	return p.registerTop(entities.EventVCPUIdle, fn)
}

// RegisterVCPUResume sets the closure run when a vCPU resumes.
func (p *Plugin) RegisterVCPUResume(fn func(VCPU)) error {
	return p.registerTop(entities.EventVCPUResume, fn)
}

// RegisterTranslate sets the closure run for every translated block. The
// block, and everything reached through it, is only valid until fn returns.
func (p *Plugin) RegisterTranslate(fn func(*TranslationBlock)) error {
	return p.registerTop(entities.EventTranslate, fn)
}

// RegisterSyscall sets the closure run on guest syscall entry.
func (p *Plugin) RegisterSyscall(fn func(VCPU, Syscall)) error {
	return p.registerTop(entities.EventSyscall, fn)
}

// RegisterSyscallReturn sets the closure run on guest syscall return.
func (p *Plugin) RegisterSyscallReturn(fn func(VCPU, SyscallReturn)) error {
	return p.registerTop(entities.EventSyscallReturn, fn)
}

// RegisterFlush sets the closure run after the host flushed translated code.
func (p *Plugin) RegisterFlush(fn func()) error {
	return p.registerTop(entities.EventFlush, fn)
}

// RegisterExit sets the closure run once when the plugin is unloaded,
// either at host exit or when a requested uninstall completes.
func (p *Plugin) RegisterExit(fn func()) error {
	return p.registerTop(entities.EventAtExit, fn)
}

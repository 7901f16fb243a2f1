package plugin

import (
	"log/slog"
	"sync"

	"github.com/qplug-dev/qemu-plugin-sdk/abi"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/entities"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/errors"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/ports"
	"github.com/qplug-dev/qemu-plugin-sdk/internal/handles"
	"github.com/qplug-dev/qemu-plugin-sdk/internal/scope"
)

// Router receives host callbacks and runs the matching plugin closures.
// Top-level events find their plugin by id; nested callbacks find their
// closure, and through it the plugin, by userdata handle.
type Router struct {
	mu      sync.RWMutex
	def     *PluginDefinition
	plugins map[ports.PluginID]*Plugin

	table   *handles.Table
	handler Handler
	logger  *slog.Logger
}

var _ ports.Dispatcher = (*Router)(nil)

// RouterOption configures a Router.
type RouterOption func(*routerConfig)

type routerConfig struct {
	def         *PluginDefinition
	middlewares []Middleware
	logger      *slog.Logger
}

// WithDefinition sets the plugin the router installs.
func WithDefinition(def *PluginDefinition) RouterOption {
	return func(c *routerConfig) {
		c.def = def
	}
}

// WithMiddleware adds middleware around every closure invocation.
func WithMiddleware(mws ...Middleware) RouterOption {
	return func(c *routerConfig) {
		c.middlewares = append(c.middlewares, mws...)
	}
}

// WithRouterLogger sets the logger used before a plugin instance exists.
func WithRouterLogger(l *slog.Logger) RouterOption {
	return func(c *routerConfig) {
		c.logger = l
	}
}

// NewRouter creates a router.
func NewRouter(opts ...RouterOption) *Router {
	cfg := routerConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	mws := append([]Middleware{PanicRecoveryMiddleware()}, cfg.middlewares...)
	return &Router{
		def:     cfg.def,
		plugins: make(map[ports.PluginID]*Plugin),
		table:   handles.NewTable(),
		handler: chain(runInvocation, mws),
		logger:  cfg.logger,
	}
}

// SetDefinition replaces the plugin the router installs next.
func (r *Router) SetDefinition(def *PluginDefinition) {
	r.mu.Lock()
	r.def = def
	r.mu.Unlock()
}

// Plugin returns the loaded instance with the given id.
func (r *Router) Plugin(id ports.PluginID) (*Plugin, bool) {
	r.mu.RLock()
	p, ok := r.plugins[id]
	r.mu.RUnlock()
	return p, ok
}

// LiveHandles returns the number of closures currently pinned for the host.
func (r *Router) LiveHandles() int {
	return r.table.Len()
}

// Install creates and sets up a plugin instance. It returns the status
// qemu_plugin_install hands back to the host.
func (r *Router) Install(host ports.Host, id ports.PluginID, info entities.Info, args []string) int {
	r.mu.Lock()
	def := r.def
	if _, dup := r.plugins[id]; dup || def == nil {
		r.mu.Unlock()
		if def == nil {
			host.Outs("qemu-plugin-sdk: no plugin registered\n")
		} else {
			host.Outs("qemu-plugin-sdk: plugin id already installed\n")
		}
		return abi.InstallFailed
	}
	p := newPlugin(r, def, host, id, info, args)
	r.plugins[id] = p
	r.mu.Unlock()

	if err := p.install(); err != nil {
		p.logger.Error("install failed", errorAttrs(err)...)
		p.abort()
		return abi.InstallFailed
	}
	return abi.InstallOK
}

func (r *Router) remove(id ports.PluginID) {
	r.mu.Lock()
	delete(r.plugins, id)
	r.mu.Unlock()
}

func (r *Router) lookup(id ports.PluginID, ev entities.Event) *Plugin {
	p, ok := r.Plugin(id)
	if !ok {
		r.debug("callback for unknown plugin", slog.String("event", ev.String()), slog.Uint64("id", uint64(id)))
		return nil
	}
	return p
}

func (r *Router) nested(ud ports.Userdata, ev entities.Event) *nestedCallback {
	v, ok := r.table.Value(handles.Handle(ud))
	if !ok {
		r.debug("callback for released handle", slog.String("event", ev.String()), slog.Uint64("handle", uint64(ud)))
		return nil
	}
	cb, _ := v.(*nestedCallback)
	return cb
}

func (r *Router) debug(msg string, attrs ...any) {
	if r.logger != nil {
		r.logger.Debug(msg, attrs...)
	}
}

// invoke runs fn for p inside a fresh scope and the middleware chain.
// Nothing escapes: errors and panics become a logged diagnostic.
func (r *Router) invoke(p *Plugin, ev entities.Event, fn func(tok scope.Token)) {
	s, tok := scope.Open()
	defer s.Close()

	err := r.handler(Invocation{Plugin: p, Event: ev, run: func() { fn(tok) }})
	if err != nil {
		p.logError("callback failed", ev, err)
	}
}

// VCPUInit dispatches the vCPU init event.
func (r *Router) VCPUInit(id ports.PluginID, vcpu uint32) {
	r.vcpuEvent(id, entities.EventVCPUInit, vcpu)
}

// VCPUExit dispatches the vCPU exit event.
func (r *Router) VCPUExit(id ports.PluginID, vcpu uint32) {
	r.vcpuEvent(id, entities.EventVCPUExit, vcpu)
}

// VCPUIdle dispatches the vCPU idle event.
func (r *Router) VCPUIdle(id ports.PluginID, vcpu uint32) {
	r.vcpuEvent(id, entities.EventVCPUIdle, vcpu)
}

// VCPUResume dispatches the vCPU resume event.
func (r *Router) VCPUResume(id ports.PluginID, vcpu uint32) {
	r.vcpuEvent(id, entities.EventVCPUResume, vcpu)
}

func (r *Router) vcpuEvent(id ports.PluginID, ev entities.Event, vcpu uint32) {
	p := r.lookup(id, ev)
	if p == nil {
		return
	}
	fn, _ := p.callback(ev).(func(VCPU))
	if fn == nil {
		return
	}
	r.invoke(p, ev, func(tok scope.Token) {
		fn(p.vcpu(vcpu, tok))
	})
}

// TBTrans dispatches a translation. The block handle expires when the
// closure returns.
func (r *Router) TBTrans(id ports.PluginID, tb ports.TBRef) {
	p := r.lookup(id, entities.EventTranslate)
	if p == nil {
		return
	}
	fn, _ := p.callback(entities.EventTranslate).(func(*TranslationBlock))
	if fn == nil {
		return
	}
	r.invoke(p, entities.EventTranslate, func(tok scope.Token) {
		fn(p.newBlock(tb, tok))
	})
}

// TBExec dispatches a block execution callback.
func (r *Router) TBExec(vcpu uint32, ud ports.Userdata) {
	r.execEvent(vcpu, ud, entities.EventTBExec)
}

// InsnExec dispatches an instruction execution callback.
func (r *Router) InsnExec(vcpu uint32, ud ports.Userdata) {
	r.execEvent(vcpu, ud, entities.EventInsnExec)
}

func (r *Router) execEvent(vcpu uint32, ud ports.Userdata, ev entities.Event) {
	cb := r.nested(ud, ev)
	if cb == nil || cb.exec == nil {
		return
	}
	p := cb.plugin
	r.invoke(p, cb.event, func(tok scope.Token) {
		cb.exec(p.vcpu(vcpu, tok))
	})
}

// MemAccess dispatches a memory access callback.
func (r *Router) MemAccess(vcpu uint32, info ports.MemInfo, vaddr uint64, ud ports.Userdata) {
	cb := r.nested(ud, entities.EventMemAccess)
	if cb == nil || cb.mem == nil {
		return
	}
	p := cb.plugin
	r.invoke(p, entities.EventMemAccess, func(tok scope.Token) {
		cb.mem(p.vcpu(vcpu, tok), p.newMemoryAccess(info, vaddr, tok))
	})
}

// Syscall dispatches a syscall entry.
func (r *Router) Syscall(id ports.PluginID, vcpu uint32, num int64, args [8]uint64) {
	p := r.lookup(id, entities.EventSyscall)
	if p == nil {
		return
	}
	fn, _ := p.callback(entities.EventSyscall).(func(VCPU, Syscall))
	if fn == nil {
		return
	}
	r.invoke(p, entities.EventSyscall, func(tok scope.Token) {
		fn(p.vcpu(vcpu, tok), Syscall{Num: num, Args: args})
	})
}

// SyscallReturn dispatches a syscall return.
func (r *Router) SyscallReturn(id ports.PluginID, vcpu uint32, num int64, ret int64) {
	p := r.lookup(id, entities.EventSyscallReturn)
	if p == nil {
		return
	}
	fn, _ := p.callback(entities.EventSyscallReturn).(func(VCPU, SyscallReturn))
	if fn == nil {
		return
	}
	r.invoke(p, entities.EventSyscallReturn, func(tok scope.Token) {
		fn(p.vcpu(vcpu, tok), SyscallReturn{Num: num, Ret: ret})
	})
}

// Flush releases every closure registered against translated code, then
// runs the plugin's flush closure.
func (r *Router) Flush(id ports.PluginID) {
	p := r.lookup(id, entities.EventFlush)
	if p == nil {
		return
	}
	p.releaseBlocks()
	if fn, _ := p.callback(entities.EventFlush).(func()); fn != nil {
		r.invoke(p, entities.EventFlush, func(scope.Token) { fn() })
	}
}

// AtExit tears the plugin down; the exit closure runs once.
func (r *Router) AtExit(id ports.PluginID) {
	if p := r.lookup(id, entities.EventAtExit); p != nil {
		p.finish()
	}
}

// Uninstalled completes a requested uninstall the same way as AtExit.
func (r *Router) Uninstalled(id ports.PluginID) {
	if p := r.lookup(id, entities.EventUninstall); p != nil {
		p.finish()
	}
}

// ResetDone completes a requested reset.
func (r *Router) ResetDone(id ports.PluginID) {
	if p := r.lookup(id, entities.EventReset); p != nil {
		p.resetDone()
	}
}

// errorAttrs renders an error as slog attributes.
func errorAttrs(err error) []any {
	d := errors.ToErrorDetail(err)
	attrs := []any{slog.String("error", d.Message), slog.String("type", d.Type)}
	if d.Code != "" {
		attrs = append(attrs, slog.String("code", d.Code))
	}
	for k, v := range d.Details {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

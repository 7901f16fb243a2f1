package qemutest

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/qplug-dev/qemu-plugin-sdk/abi"
	"github.com/qplug-dev/qemu-plugin-sdk/application/config"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/entities"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/ports"
)

// Violation is a host call the real host would have rejected or crashed on.
type Violation struct {
	Call   string
	Reason string
}

func (v Violation) String() string {
	return v.Call + ": " + v.Reason
}

// RegisterSpec describes a guest register exposed by the simulated vCPUs.
type RegisterSpec struct {
	Name    string
	Feature string
	// Size in bytes; 8 when zero.
	Size int
}

// Option configures a Host.
type Option func(*hostConfig)

type hostConfig struct {
	contract  *abi.Contract
	id        ports.PluginID
	info      entities.Info
	registers []RegisterSpec
	binary    string
	start     uint64
	end       uint64
	entry     uint64
}

func defaultHostConfig() hostConfig {
	c := abi.Current()
	return hostConfig{
		contract: c,
		id:       1,
		info: entities.Info{
			TargetName: "x86_64",
			APIMin:     int(abi.V1),
			APICur:     int(c.Version()),
			SMPVCPUs:   1,
			MaxVCPUs:   8,
		},
		registers: []RegisterSpec{
			{Name: "rax", Feature: "org.gnu.gdb.i386.core"},
			{Name: "rip", Feature: "org.gnu.gdb.i386.core"},
		},
	}
}

// WithContract simulates the host side of a specific API version. The
// reported APICur follows it.
func WithContract(c *abi.Contract) Option {
	return func(cfg *hostConfig) {
		cfg.contract = c
		cfg.info.APICur = int(c.Version())
	}
}

// WithInfo sets what the host reports at install.
func WithInfo(info entities.Info) Option {
	return func(cfg *hostConfig) {
		cfg.info = info
	}
}

// WithSystemEmulation switches between system and user-mode emulation.
func WithSystemEmulation(enabled bool) Option {
	return func(cfg *hostConfig) {
		cfg.info.SystemEmulation = enabled
	}
}

// WithPluginID sets the id handed to the plugin.
func WithPluginID(id ports.PluginID) Option {
	return func(cfg *hostConfig) {
		cfg.id = id
	}
}

// WithRegisters replaces the default register set.
func WithRegisters(regs ...RegisterSpec) Option {
	return func(cfg *hostConfig) {
		cfg.registers = regs
	}
}

// WithBinary sets the user-mode binary path and code layout.
func WithBinary(path string, start, end, entry uint64) Option {
	return func(cfg *hostConfig) {
		cfg.binary = path
		cfg.start, cfg.end, cfg.entry = start, end, entry
	}
}

// Host is a simulated QEMU. It is safe for concurrent use; callbacks are
// dispatched without holding internal locks, so they may call back into
// the host.
type Host struct {
	cfg      hostConfig
	contract *abi.Contract
	d        ports.Dispatcher

	refs    atomic.Uintptr
	active  atomic.Int32
	current atomic.Uint32

	mu          sync.Mutex
	unloaded    bool
	exiting     bool
	hooked      map[entities.Event]bool
	liveTBs     map[ports.TBRef]*Translation
	liveInsns   map[ports.InsnRef]*insnRecord
	cache       map[uint64]*Translation
	translated  int
	accesses    map[uint32]*liveAccess
	nextAccess  uint32
	scoreboards map[ports.ScoreboardRef]*scoreboard
	vcpus       int
	regValues   map[regKey][]byte
	regFailures map[string]int
	memory      map[uint64]byte
	out         strings.Builder
	violations  []Violation

	pendingReset     bool
	pendingUninstall bool
	timeRef          ports.TimeControlRef
	timeTaken        bool
	timeNS           int64
}

var _ ports.Host = (*Host)(nil)

type regKey struct {
	vcpu uint32
	name string
}

// New creates a host that drives d.
func New(d ports.Dispatcher, opts ...Option) *Host {
	cfg := defaultHostConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	h := &Host{
		cfg:         cfg,
		contract:    cfg.contract,
		d:           d,
		hooked:      make(map[entities.Event]bool),
		liveTBs:     make(map[ports.TBRef]*Translation),
		liveInsns:   make(map[ports.InsnRef]*insnRecord),
		cache:       make(map[uint64]*Translation),
		accesses:    make(map[uint32]*liveAccess),
		scoreboards: make(map[ports.ScoreboardRef]*scoreboard),
		regValues:   make(map[regKey][]byte),
		regFailures: make(map[string]int),
		memory:      make(map[uint64]byte),
	}
	return h
}

// Contract returns the contract the host enforces.
func (h *Host) Contract() *abi.Contract {
	return h.contract
}

// ID returns the plugin id.
func (h *Host) ID() ports.PluginID {
	return h.cfg.id
}

// Install loads the plugin with the given key=value arguments and returns
// its install status. A non-zero status unloads it.
func (h *Host) Install(args ...string) int {
	status := h.d.Install(h, h.cfg.id, h.cfg.info, args)
	if status != abi.InstallOK {
		h.mu.Lock()
		h.unload()
		h.mu.Unlock()
	}
	return status
}

// Loaded reports whether the plugin is still installed.
func (h *Host) Loaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.unloaded
}

// Hooked reports whether the plugin registered a host callback for ev.
func (h *Host) Hooked(ev entities.Event) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hooked[ev]
}

// Output returns everything the plugin wrote through Outs.
func (h *Host) Output() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.out.String()
}

// Violations returns the recorded contract violations.
func (h *Host) Violations() []Violation {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.violations)
}

// violation records a bad call. h.mu must be held.
func (h *Host) violation(call abi.Func, format string, args ...any) {
	h.violations = append(h.violations, Violation{Call: string(call), Reason: fmt.Sprintf(format, args...)})
}

// require records a violation when the contract lacks f.
func (h *Host) require(f abi.Func) bool {
	if h.contract.Supports(f) {
		return true
	}
	h.mu.Lock()
	h.violation(f, "not exported by API %s", h.contract.Version())
	h.mu.Unlock()
	return false
}

func (h *Host) newRef() uintptr {
	return h.refs.Add(1)
}

func (h *Host) hooks(ev entities.Event) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return !h.unloaded && h.hooked[ev]
}

// unload drops every registration. h.mu must be held.
func (h *Host) unload() {
	h.unloaded = true
	clear(h.hooked)
	h.invalidate()
}

// invalidate forgets all translated code. h.mu must be held.
func (h *Host) invalidate() {
	for _, tr := range h.cache {
		tr.flushed = true
	}
	clear(h.cache)
}

// withVCPU marks a vCPU callback as running while fn dispatches. Register
// reads go to the vCPU that entered last.
func (h *Host) withVCPU(vcpu uint32, fn func()) {
	h.active.Add(1)
	defer h.active.Add(-1)
	h.current.Store(vcpu)
	fn()
}

// StartVCPU brings up a vCPU and fires vCPU init.
func (h *Host) StartVCPU(vcpu uint32) {
	h.mu.Lock()
	if int(vcpu) >= h.vcpus {
		h.vcpus = int(vcpu) + 1
	}
	h.mu.Unlock()
	if h.hooks(entities.EventVCPUInit) {
		h.withVCPU(vcpu, func() { h.d.VCPUInit(h.cfg.id, vcpu) })
	}
}

// StopVCPU fires vCPU exit.
func (h *Host) StopVCPU(vcpu uint32) {
	if h.hooks(entities.EventVCPUExit) {
		h.withVCPU(vcpu, func() { h.d.VCPUExit(h.cfg.id, vcpu) })
	}
}

// Idle fires vCPU idle.
func (h *Host) Idle(vcpu uint32) {
	if h.hooks(entities.EventVCPUIdle) {
		h.withVCPU(vcpu, func() { h.d.VCPUIdle(h.cfg.id, vcpu) })
	}
}

// Resume fires vCPU resume.
func (h *Host) Resume(vcpu uint32) {
	if h.hooks(entities.EventVCPUResume) {
		h.withVCPU(vcpu, func() { h.d.VCPUResume(h.cfg.id, vcpu) })
	}
}

// Syscall fires a syscall entry. Missing arguments are zero.
func (h *Host) Syscall(vcpu uint32, num int64, args ...uint64) {
	if !h.hooks(entities.EventSyscall) {
		return
	}
	var a [8]uint64
	copy(a[:], args)
	h.withVCPU(vcpu, func() { h.d.Syscall(h.cfg.id, vcpu, num, a) })
}

// SyscallReturn fires a syscall return.
func (h *Host) SyscallReturn(vcpu uint32, num, ret int64) {
	if h.hooks(entities.EventSyscallReturn) {
		h.withVCPU(vcpu, func() { h.d.SyscallReturn(h.cfg.id, vcpu, num, ret) })
	}
}

// Flush discards translated code and fires the flush event.
func (h *Host) Flush() {
	h.mu.Lock()
	h.invalidate()
	fire := !h.unloaded && h.hooked[entities.EventFlush]
	h.mu.Unlock()
	if fire {
		h.d.Flush(h.cfg.id)
	}
}

// Settle completes pending reset and uninstall requests, in that order,
// the way the host does once all vCPUs left the translated code.
func (h *Host) Settle() {
	h.mu.Lock()
	reset := h.pendingReset && !h.unloaded
	h.pendingReset = false
	if reset {
		clear(h.hooked)
		h.invalidate()
	}
	h.mu.Unlock()
	if reset {
		h.d.ResetDone(h.cfg.id)
	}

	h.mu.Lock()
	uninstall := h.pendingUninstall && !h.unloaded
	h.pendingUninstall = false
	if uninstall {
		h.unload()
	}
	h.mu.Unlock()
	if uninstall {
		h.d.Uninstalled(h.cfg.id)
	}
}

// Exit simulates emulator shutdown: the atexit event fires while the
// plugin is still registered, then the plugin is unloaded. Further calls
// do nothing.
func (h *Host) Exit() {
	h.mu.Lock()
	if h.unloaded || h.exiting {
		h.mu.Unlock()
		return
	}
	h.exiting = true
	fire := h.hooked[entities.EventAtExit]
	h.mu.Unlock()

	if fire {
		h.d.AtExit(h.cfg.id)
	}

	h.mu.Lock()
	h.unload()
	h.mu.Unlock()
}

// Uninstall implements ports.LifecycleAPI. Completion happens in Settle.
func (h *Host) Uninstall(id ports.PluginID) {
	if !h.require(abi.FuncUninstall) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if id != h.cfg.id {
		h.violation(abi.FuncUninstall, "unknown plugin id %d", id)
		return
	}
	h.pendingUninstall = true
}

// Reset implements ports.LifecycleAPI. Completion happens in Settle.
func (h *Host) Reset(id ports.PluginID) {
	if !h.require(abi.FuncReset) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if id != h.cfg.id {
		h.violation(abi.FuncReset, "unknown plugin id %d", id)
		return
	}
	h.pendingReset = true
}

// Pending reports outstanding reset and uninstall requests.
func (h *Host) Pending() (reset, uninstall bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pendingReset, h.pendingUninstall
}

// RegisterEvent implements ports.RegistrationAPI.
func (h *Host) RegisterEvent(id ports.PluginID, ev entities.Event) {
	if err := h.contract.RequireEvent(ev); err != nil {
		h.mu.Lock()
		h.violation(abi.Func(ev.String()), "%v", err)
		h.mu.Unlock()
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if id != h.cfg.id {
		h.violation(abi.Func(ev.String()), "unknown plugin id %d", id)
		return
	}
	if h.unloaded {
		h.violation(abi.Func(ev.String()), "plugin is unloaded")
		return
	}
	h.hooked[ev] = true
}

// NumVCPUs implements ports.SystemAPI.
func (h *Host) NumVCPUs() int {
	if !h.contract.Supports(abi.FuncNumVCPUs) && !h.require(abi.FuncNVCPUs) {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.vcpus
}

// MaxVCPUs implements ports.SystemAPI.
func (h *Host) MaxVCPUs() int {
	if !h.require(abi.FuncNMaxVCPUs) {
		return -1
	}
	return h.cfg.info.MaxVCPUs
}

// Outs implements ports.SystemAPI.
func (h *Host) Outs(s string) {
	if !h.require(abi.FuncOuts) {
		return
	}
	h.mu.Lock()
	h.out.WriteString(s)
	h.mu.Unlock()
}

// BoolParse implements ports.SystemAPI with the host's boolean option rules.
func (h *Host) BoolParse(_, value string) (bool, bool) {
	if !h.require(abi.FuncBoolParse) {
		return false, false
	}
	return config.ParseBool(value)
}

// PathToBinary implements ports.SystemAPI.
func (h *Host) PathToBinary() (string, bool) {
	if !h.require(abi.FuncPathToBinary) {
		return "", false
	}
	return h.cfg.binary, h.cfg.binary != ""
}

// StartCode implements ports.SystemAPI.
func (h *Host) StartCode() uint64 {
	h.require(abi.FuncStartCode)
	return h.cfg.start
}

// EndCode implements ports.SystemAPI.
func (h *Host) EndCode() uint64 {
	h.require(abi.FuncEndCode)
	return h.cfg.end
}

// EntryCode implements ports.SystemAPI.
func (h *Host) EntryCode() uint64 {
	h.require(abi.FuncEntryCode)
	return h.cfg.entry
}

// ClaimTimeControl simulates another plugin owning guest time.
func (h *Host) ClaimTimeControl() {
	h.mu.Lock()
	h.timeTaken = true
	h.mu.Unlock()
}

// RequestTimeControl implements ports.SystemAPI.
func (h *Host) RequestTimeControl() ports.TimeControlRef {
	if !h.require(abi.FuncRequestTimeControl) {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.timeTaken {
		return 0
	}
	h.timeTaken = true
	h.timeRef = ports.TimeControlRef(h.newRef())
	return h.timeRef
}

// UpdateNS implements ports.SystemAPI.
func (h *Host) UpdateNS(handle ports.TimeControlRef, ns int64) {
	if !h.require(abi.FuncUpdateNS) {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if handle == 0 || handle != h.timeRef {
		h.violation(abi.FuncUpdateNS, "caller does not own time control")
		return
	}
	h.timeNS = ns
}

// TimeNS returns the guest time last set through UpdateNS.
func (h *Host) TimeNS() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.timeNS
}

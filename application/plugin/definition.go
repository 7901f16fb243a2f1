package plugin

import (
	"encoding/json"
	"slices"
	"sync"

	"github.com/qplug-dev/qemu-plugin-sdk/application/schema"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/entities"
)

// PluginDef defines plugin identity and behavior.
type PluginDef struct {
	Name        string
	Version     string
	Description string

	// Args is a struct (or pointer to one) the plugin arguments are bound
	// to. Its field values act as defaults. Nil accepts any arguments.
	Args any

	// Setup runs inside qemu_plugin_install. It registers callbacks; a
	// returned error or panic fails the install.
	Setup func(p *Plugin) error

	Options []Option
}

// PluginDefinition holds a parsed plugin definition.
type PluginDefinition struct {
	def        PluginDef
	argsSchema json.RawMessage

	mu     sync.RWMutex
	events map[entities.Event]struct{}
}

// DefinePlugin creates a plugin definition. Call it once at package level
// and pass the result to Register.
func DefinePlugin(def PluginDef) *PluginDefinition {
	var argsSchema []byte
	var err error
	if def.Args != nil {
		argsSchema, err = schema.GenerateSchema(def.Args)
		if err != nil {
			panic("failed to generate argument schema: " + err.Error())
		}
	} else {
		argsSchema = []byte("{}")
	}

	return &PluginDefinition{
		def:        def,
		argsSchema: argsSchema,
		events:     make(map[entities.Event]struct{}),
	}
}

// Name returns the plugin name.
func (d *PluginDefinition) Name() string {
	return d.def.Name
}

// Manifest describes the plugin. Events lists every event an instance has
// registered so far.
func (d *PluginDefinition) Manifest() *entities.PluginManifest {
	d.mu.RLock()
	events := make([]string, 0, len(d.events))
	for ev := range d.events {
		events = append(events, ev.String())
	}
	d.mu.RUnlock()
	slices.Sort(events)

	c := d.config().contract
	return &entities.PluginManifest{
		Name:        d.def.Name,
		Version:     d.def.Version,
		Description: d.def.Description,
		SDKVersion:  Version,
		APIVersion:  int(c.Version()),
		QEMURelease: c.Version().QEMURelease(),
		ArgsSchema:  d.argsSchema,
		Events:      events,
	}
}

func (d *PluginDefinition) config() pluginConfig {
	cfg := defaultPluginConfig()
	for _, opt := range d.def.Options {
		opt(&cfg)
	}
	return cfg
}

func (d *PluginDefinition) noteEvent(ev entities.Event) {
	d.mu.Lock()
	d.events[ev] = struct{}{}
	d.mu.Unlock()
}

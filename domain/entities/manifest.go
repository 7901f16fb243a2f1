package entities

// PluginManifest describes a plugin binary: what it is, which plugin API it
// was built against, which arguments it accepts and which events it hooks.
type PluginManifest struct {
	// ArgsSchema is the JSON schema of the plugin arguments, if any.
	ArgsSchema  []byte   `json:"args_schema,omitempty" yaml:"args_schema,omitempty"`
	Events      []string `json:"events,omitempty" yaml:"events,omitempty"`
	Name        string   `json:"name" yaml:"name"`
	Version     string   `json:"version" yaml:"version"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	SDKVersion  string   `json:"sdk_version" yaml:"sdk_version"`
	APIVersion  int      `json:"api_version" yaml:"api_version"`
	QEMURelease string   `json:"qemu_release" yaml:"qemu_release"`
}

// VersionManifest lists the plugin API versions the binding generator
// knows and the QEMU sources each one is taken from.
type VersionManifest struct {
	// Source is the base URL of the QEMU repository archives.
	Source   string         `yaml:"source" validate:"required,url"`
	Versions []VersionEntry `yaml:"versions" validate:"required,min=1,dive"`
}

// VersionEntry pins one plugin API version to a QEMU commit.
type VersionEntry struct {
	API    int    `yaml:"api" validate:"min=1"`
	QEMU   string `yaml:"qemu" validate:"required"`
	Commit string `yaml:"commit" validate:"required,len=40,hexadecimal"`
}

// Entry returns the entry for an API version.
func (m *VersionManifest) Entry(api int) (VersionEntry, bool) {
	for _, e := range m.Versions {
		if e.API == api {
			return e, true
		}
	}
	return VersionEntry{}, false
}

// Package gen regenerates the per-version tables in package abi from QEMU
// sources: the exported symbol lists and the Windows .def export files.
package gen

import (
	_ "embed"
	"fmt"

	"github.com/qplug-dev/qemu-plugin-sdk/domain/entities"
	"github.com/qplug-dev/qemu-plugin-sdk/infrastructure/parser"
)

//go:embed versions.yaml
var versionsYAML []byte

// Versions returns the embedded version manifest.
func Versions() (*entities.VersionManifest, error) {
	return parser.NewYamlVersionParser().Parse(versionsYAML)
}

// ArchiveURL is the zip archive of a QEMU commit.
func ArchiveURL(source, commit string) string {
	return fmt.Sprintf("%s/archive/%s.zip", source, commit)
}

// Select returns the manifest entries for apis, or every entry when apis
// is empty.
func Select(m *entities.VersionManifest, apis []int) ([]entities.VersionEntry, error) {
	if len(apis) == 0 {
		return m.Versions, nil
	}
	out := make([]entities.VersionEntry, 0, len(apis))
	for _, api := range apis {
		e, ok := m.Entry(api)
		if !ok {
			return nil, fmt.Errorf("unknown plugin API version %d", api)
		}
		out = append(out, e)
	}
	return out, nil
}

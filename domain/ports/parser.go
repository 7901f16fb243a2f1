package ports

import "github.com/qplug-dev/qemu-plugin-sdk/domain/entities"

// VersionManifestParser parses the binding generator's version manifest.
type VersionManifestParser interface {
	Parse(data []byte) (*entities.VersionManifest, error)
}

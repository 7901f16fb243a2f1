package parser

import (
	"fmt"
	"slices"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/qplug-dev/qemu-plugin-sdk/domain/entities"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/ports"
)

// YamlVersionParser implements VersionManifestParser for YAML.
type YamlVersionParser struct {
	validate *validator.Validate
}

// NewYamlVersionParser creates a new YamlVersionParser.
func NewYamlVersionParser() ports.VersionManifestParser {
	return &YamlVersionParser{validate: validator.New()}
}

// Parse unmarshals and validates a version manifest. Versions must be
// numbered 1..n without gaps.
func (p *YamlVersionParser) Parse(data []byte) (*entities.VersionManifest, error) {
	var m entities.VersionManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse version manifest: %w", err)
	}
	if err := p.validate.Struct(&m); err != nil {
		return nil, fmt.Errorf("invalid version manifest: %w", err)
	}

	slices.SortFunc(m.Versions, func(a, b entities.VersionEntry) int { return a.API - b.API })
	for i, e := range m.Versions {
		if e.API != i+1 {
			return nil, fmt.Errorf("invalid version manifest: expected api %d, found %d", i+1, e.API)
		}
	}
	return &m, nil
}

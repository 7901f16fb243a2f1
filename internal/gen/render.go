package gen

import (
	"fmt"
	"go/format"
	"slices"

	"github.com/qplug-dev/qemu-plugin-sdk/application/template"
	"github.com/qplug-dev/qemu-plugin-sdk/domain/ports"
)

const symbolsTemplate = `// Code generated by qpgen symbols; DO NOT EDIT.

package abi

var symbols = map[Version][]string{
{{- range .versions}}
	V{{.API}}: {
	{{- range .Symbols}}
		{{printf "%q" .}},
	{{- end}}
	},
{{- end}}
}
`

const defTemplate = `EXPORTS
{{range .symbols}}{{.}}
{{end}}`

// VersionSymbols is the symbol list of one API version.
type VersionSymbols struct {
	API     int
	Symbols []string
}

// Renderer turns symbol lists into source files.
type Renderer struct {
	engine ports.TemplateEngine
}

// NewRenderer creates a Renderer on the strict template engine.
func NewRenderer() *Renderer {
	return &Renderer{engine: template.NewGoTemplateEngine()}
}

// Symbols renders the abi symbol table, ordered by API version and gofmt'ed.
func (r *Renderer) Symbols(sets []VersionSymbols) ([]byte, error) {
	sets = slices.Clone(sets)
	slices.SortFunc(sets, func(a, b VersionSymbols) int { return a.API - b.API })

	src, err := r.engine.Render("symbols", []byte(symbolsTemplate), map[string]any{"versions": sets})
	if err != nil {
		return nil, err
	}
	out, err := format.Source(src)
	if err != nil {
		return nil, fmt.Errorf("format generated symbols: %w", err)
	}
	return out, nil
}

// Def renders a module-definition file exporting symbols, used to build a
// delay-load import library for Windows hosts.
func (r *Renderer) Def(symbols []string) ([]byte, error) {
	return r.engine.Render("def", []byte(defTemplate), map[string]any{"symbols": symbols})
}

// DefFileName is the .def file name for an API version.
func DefFileName(api int) string {
	return fmt.Sprintf("qemu_plugin_api_v%d.def", api)
}

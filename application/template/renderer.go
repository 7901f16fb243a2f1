package template

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/qplug-dev/qemu-plugin-sdk/domain/ports"
)

// templateConfig holds configuration for the GoTemplateEngine.
type templateConfig struct {
	funcs  template.FuncMap
	strict bool // Fail on missing keys
}

func defaultTemplateConfig() templateConfig {
	return templateConfig{
		strict: true,
		funcs:  template.FuncMap{},
	}
}

// TemplateOption configures a GoTemplateEngine.
type TemplateOption func(*templateConfig)

// WithStrict enables/disables strict mode for missing keys.
// When enabled (default), rendering fails if a referenced map key is missing.
func WithStrict(enabled bool) TemplateOption {
	return func(c *templateConfig) {
		c.strict = enabled
	}
}

// WithFuncs adds template functions.
func WithFuncs(funcs template.FuncMap) TemplateOption {
	return func(c *templateConfig) {
		for k, v := range funcs {
			c.funcs[k] = v
		}
	}
}

// GoTemplateEngine implements TemplateEngine using standard text/template.
type GoTemplateEngine struct {
	config templateConfig
}

// NewGoTemplateEngine creates a new GoTemplateEngine.
func NewGoTemplateEngine(opts ...TemplateOption) ports.TemplateEngine {
	cfg := defaultTemplateConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return &GoTemplateEngine{config: cfg}
}

// Render parses raw as a template called name and executes it with data.
func (e *GoTemplateEngine) Render(name string, raw []byte, data any) ([]byte, error) {
	tmpl := template.New(name).Funcs(e.config.funcs)
	if e.config.strict {
		tmpl = tmpl.Option("missingkey=error")
	}

	tmpl, err := tmpl.Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

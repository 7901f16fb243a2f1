package ports

// TemplateEngine renders text templates, used to emit generated sources.
type TemplateEngine interface {
	// Render executes raw with data and returns the output.
	Render(name string, raw []byte, data any) ([]byte, error)
}

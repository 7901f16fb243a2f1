package domain_test

import (
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const modulePath = "github.com/qplug-dev/qemu-plugin-sdk/"

// TestDomainHasNoExternalDependencies verifies that the domain layer
// imports nothing but the standard library, golang.org/x and other domain
// packages. In particular it must not reach the cgo adapter.
func TestDomainHasNoExternalDependencies(t *testing.T) {
	fset := token.NewFileSet()

	for _, pkg := range []string{"entities", "errors", "ports"} {
		files, err := filepath.Glob(filepath.Join(pkg, "*.go"))
		require.NoError(t, err)
		require.NotEmpty(t, files, "domain/%s should contain Go files", pkg)

		for _, file := range files {
			if strings.HasSuffix(file, "_test.go") {
				continue
			}
			checkFileImports(t, fset, file, pkg)
		}
	}
}

func checkFileImports(t *testing.T, fset *token.FileSet, filename, pkg string) {
	t.Helper()

	f, err := parser.ParseFile(fset, filename, nil, parser.ImportsOnly)
	require.NoError(t, err, "failed to parse %s", filename)

	for _, imp := range f.Imports {
		path := strings.Trim(imp.Path.Value, `"`)
		if path == "C" {
			t.Errorf("domain/%s (%s) uses cgo", pkg, filepath.Base(filename))
			continue
		}
		if strings.HasPrefix(path, modulePath) {
			assert.True(t, strings.HasPrefix(path, modulePath+"domain/"),
				"domain/%s (%s) imports non-domain package %s", pkg, filepath.Base(filename), path)
			continue
		}
		if strings.HasPrefix(path, "golang.org/x/") {
			continue
		}
		first, _, _ := strings.Cut(path, "/")
		assert.NotContains(t, first, ".",
			"domain/%s (%s) imports third-party package %s", pkg, filepath.Base(filename), path)
	}
}

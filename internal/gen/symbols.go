package gen

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// SymbolsFile is the linker version script listing the exported plugin
// API inside a QEMU source tree.
func SymbolsFile(srcDir string) string {
	return filepath.Join(srcDir, "plugins", "qemu-plugins.symbols")
}

// ParseSymbols reads a version script of the form
//
//	{
//	  qemu_plugin_bool_parse;
//	  ...
//	};
//
// and returns the symbol names sorted and deduplicated.
func ParseSymbols(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.Map(func(c rune) rune {
			if strings.ContainsRune("{};", c) {
				return ' '
			}
			return c
		}, sc.Text())
		for _, name := range strings.Fields(line) {
			if !isSymbol(name) {
				return nil, fmt.Errorf("invalid symbol %q", name)
			}
			out = append(out, name)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no symbols found")
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// ReadSymbols parses the symbol list of a QEMU source tree.
func ReadSymbols(srcDir string) ([]string, error) {
	f, err := os.Open(SymbolsFile(srcDir))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	syms, err := ParseSymbols(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Name(), err)
	}
	return syms, nil
}

func isSymbol(s string) bool {
	for i, c := range s {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return s != ""
}

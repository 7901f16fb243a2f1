package cmds

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/qplug-dev/qemu-plugin-sdk/domain/entities"
	"github.com/qplug-dev/qemu-plugin-sdk/internal/gen"
)

const longDesc = `qpgen keeps the SDK's per-version plugin API tables in sync with QEMU.

Each plugin API version is pinned to a QEMU commit in an embedded manifest.
qpgen downloads those commits, reads plugins/qemu-plugins.symbols from each
tree and renders the abi symbol table or Windows .def export files.`

type options struct {
	cacheDir string
	source   string
	apis     []int
	verbose  bool
	timeout  time.Duration
}

func (o *options) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.cacheDir, "cache-dir", "", "Directory for downloaded archives and source trees (default: user cache dir).")
	fs.StringVar(&o.source, "source", "", "Override the repository URL archives are fetched from.")
	fs.IntSliceVar(&o.apis, "api", nil, "Plugin API versions to process (default: all).")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "Enable debug logging.")
	fs.DurationVar(&o.timeout, "timeout", 10*time.Minute, "Timeout for each download.")
}

// New returns the qpgen root command.
func New() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "qpgen",
		Short:         "Regenerate plugin API tables from QEMU sources.",
		Long:          longDesc,
		SilenceUsage:  true,
	}
	o.addFlags(root.PersistentFlags())

	root.AddCommand(&cobra.Command{
		Use:   "fetch",
		Short: "Download and unpack the QEMU source tree of each version.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := o.fetchAll(cmd)
			return err
		},
	})

	var out string
	symbolsCommand := &cobra.Command{
		Use:   "symbols",
		Short: "Render the abi symbol table.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			trees, err := o.fetchAll(cmd)
			if err != nil {
				return err
			}
			sets := make([]gen.VersionSymbols, 0, len(trees))
			for _, tr := range trees {
				syms, err := gen.ReadSymbols(tr.dir)
				if err != nil {
					return err
				}
				sets = append(sets, gen.VersionSymbols{API: tr.entry.API, Symbols: syms})
			}
			src, err := gen.NewRenderer().Symbols(sets)
			if err != nil {
				return err
			}
			return writeFile(out, src)
		},
	}
	symbolsCommand.Flags().StringVarP(&out, "out", "o", filepath.Join("abi", "symbols_gen.go"), "Output file.")
	root.AddCommand(symbolsCommand)

	var outDir string
	defCommand := &cobra.Command{
		Use:   "def",
		Short: "Write a Windows .def export file per version.",
		Long: `Writes qemu_plugin_api_vN.def listing the host's exported plugin API.
Link a delay-load import library from it to build plugins for Windows hosts
without the qemu_plugin_weaklink tag.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			trees, err := o.fetchAll(cmd)
			if err != nil {
				return err
			}
			r := gen.NewRenderer()
			for _, tr := range trees {
				syms, err := gen.ReadSymbols(tr.dir)
				if err != nil {
					return err
				}
				def, err := r.Def(syms)
				if err != nil {
					return err
				}
				if err := writeFile(filepath.Join(outDir, gen.DefFileName(tr.entry.API)), def); err != nil {
					return err
				}
			}
			return nil
		},
	}
	defCommand.Flags().StringVar(&outDir, "out-dir", ".", "Output directory.")
	root.AddCommand(defCommand)

	return root
}

type tree struct {
	entry entities.VersionEntry
	dir   string
}

func (o *options) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func (o *options) fetchAll(cmd *cobra.Command) ([]tree, error) {
	m, err := gen.Versions()
	if err != nil {
		return nil, err
	}
	entries, err := gen.Select(m, o.apis)
	if err != nil {
		return nil, err
	}

	cacheDir := o.cacheDir
	if cacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("no cache directory, pass --cache-dir: %w", err)
		}
		cacheDir = filepath.Join(base, "qpgen")
	}
	source := m.Source
	if o.source != "" {
		source = o.source
	}

	f := &gen.Fetcher{
		Client:   &http.Client{Timeout: o.timeout},
		CacheDir: cacheDir,
		Source:   source,
		Logger:   o.logger(cmd),
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	trees := make([]tree, 0, len(entries))
	for _, e := range entries {
		dir, err := f.Fetch(ctx, e)
		if err != nil {
			return nil, fmt.Errorf("plugin API v%d (QEMU %s): %w", e.API, e.QEMU, err)
		}
		f.Logger.Debug("source ready", "api", e.API, "dir", dir)
		trees = append(trees, tree{entry: e, dir: dir})
	}
	return trees, nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}

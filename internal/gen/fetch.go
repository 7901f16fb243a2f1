package gen

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/qplug-dev/qemu-plugin-sdk/domain/entities"
)

// Fetcher downloads and unpacks QEMU source trees into a cache directory.
// Archives and trees already in the cache are reused.
type Fetcher struct {
	Client   *http.Client
	CacheDir string
	Source   string
	Logger   *slog.Logger
}

// SourceDir is where the tree of e is unpacked.
func (f *Fetcher) SourceDir(e entities.VersionEntry) string {
	return filepath.Join(f.CacheDir, "qemu-"+e.Commit)
}

// Fetch makes the source tree of e available and returns its directory.
func (f *Fetcher) Fetch(ctx context.Context, e entities.VersionEntry) (string, error) {
	dir := f.SourceDir(e)
	if _, err := os.Stat(dir); err == nil {
		return dir, nil
	}

	archive := filepath.Join(f.CacheDir, "qemu-"+e.Commit+".zip")
	if _, err := os.Stat(archive); err != nil {
		url := ArchiveURL(f.Source, e.Commit)
		f.logger().Info("downloading", "api", e.API, "url", url)
		if err := f.download(ctx, url, archive); err != nil {
			return "", err
		}
	}

	f.logger().Info("extracting", "archive", archive, "dir", dir)
	if err := ExtractZip(archive, dir); err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}
	return dir, nil
}

func (f *Fetcher) logger() *slog.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return slog.Default()
}

func (f *Fetcher) download(ctx context.Context, url, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: %s", url, resp.Status)
	}

	tmp := dest + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("download %s: %w", url, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dest)
}

// ExtractZip unpacks archive into dest, dropping the archive's top-level
// directory. Entries escaping dest are rejected.
func ExtractZip(archive, dest string) error {
	r, err := zip.OpenReader(archive)
	if err != nil && !errors.Is(err, zip.ErrInsecurePath) {
		return fmt.Errorf("open %s: %w", archive, err)
	}
	defer r.Close()

	root := filepath.Clean(dest) + string(os.PathSeparator)
	for _, file := range r.File {
		name := filepath.ToSlash(file.Name)
		_, rest, ok := strings.Cut(name, "/")
		if !ok || rest == "" {
			continue
		}
		target := filepath.Join(dest, filepath.FromSlash(rest))
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("archive entry %q escapes %s", file.Name, dest)
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := extractFile(file, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(file *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	in, err := file.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

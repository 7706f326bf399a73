package apps

import (
	"errors"
	"fmt"
	"github.com/danmuck/mrctl/internal/fsutil"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

const (
	metadataEntry = "metadata.json"
	appPrefix     = "app/"
	extrasPrefix  = "extras/"
	scriptExt     = ".js"
)

var ErrUnsafePath = errors.New("apps: archive entry escapes target directory")

// extraction is what one bundle contributed.
type extraction struct {
	metadata   *Metadata
	appIDs     []string
	extraFiles int
}

// extract routes archive entries by prefix: metadata.json is parsed,
// app/ files are flattened into appsDir (each .js script names an app) and
// extras/ files keep their relative path under uiDir. Everything else is
// ignored.
func extract(archivePath string, appsDir string, uiDir string) (extraction, error) {
	var out extraction
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return out, fmt.Errorf("open archive %s: %w", archivePath, err)
	}
	defer r.Close()

	for _, f := range r.File {
		name := strings.ReplaceAll(f.Name, `\`, "/")
		isDir := f.FileInfo().IsDir() || strings.HasSuffix(name, "/")

		switch {
		case name == metadataEntry:
			data, err := readEntry(f)
			if err != nil {
				return out, err
			}
			m, err := ParseMetadata(data)
			if err != nil {
				return out, fmt.Errorf("%s: %w", metadataEntry, err)
			}
			out.metadata = &m

		case strings.HasPrefix(name, appPrefix):
			if isDir {
				continue
			}
			base := path.Base(name)
			if base == "." || base == ".." || base == "/" {
				continue
			}
			if err := writeEntry(f, filepath.Join(appsDir, base)); err != nil {
				return out, err
			}
			// Only scripts are apps; other files are assets they load.
			if strings.EqualFold(path.Ext(base), scriptExt) {
				out.appIDs = append(out.appIDs, strings.TrimSuffix(base, path.Ext(base)))
			}

		case strings.HasPrefix(name, extrasPrefix):
			rel := strings.TrimPrefix(name, extrasPrefix)
			if strings.Trim(rel, "/") == "" {
				continue
			}
			target := filepath.Join(uiDir, filepath.FromSlash(rel))
			if !fsutil.IsWithin(target, uiDir) {
				return out, fmt.Errorf("%w: %s", ErrUnsafePath, f.Name)
			}
			if isDir {
				if err := os.MkdirAll(target, 0o755); err != nil {
					return out, err
				}
				continue
			}
			if err := writeEntry(f, target); err != nil {
				return out, err
			}
			out.extraFiles++
		}
	}
	out.appIDs = dedupe(out.appIDs)
	return out, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read entry %s: %w", f.Name, err)
	}
	return data, nil
}

func writeEntry(f *zip.File, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("write entry %s: %w", f.Name, err)
	}
	return out.Close()
}

package archive

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/Arimodu/wipbot/internal/domain/beatmap"
)

// Result describes a successful extraction.
type Result struct {
	FolderPath string        // final library folder
	Info       *beatmap.Info // parsed manifest
	Skipped    int           // entries skipped by the extension whitelist
}

// Extractor stages archives into a temporary folder under the library root
// and atomically renames them into place.
type Extractor struct {
	libraryDir string
}

// NewExtractor creates an extractor rooted at the library directory.
func NewExtractor(libraryDir string) *Extractor {
	return &Extractor{libraryDir: libraryDir}
}

// Extract validates and unpacks the archive at zipPath. Whitelisted entries
// are staged into a timestamp-named temp folder, the manifest is parsed, and
// the folder is renamed to its metadata-derived name.
//
// On any failure before the rename the temp folder is removed. If the rename
// itself fails the staged folder is left in place for diagnosis and the
// error is reported upward. Cancellation is checked before each entry.
func (e *Extractor) Extract(ctx context.Context, zipPath string, limits Limits) (*Result, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, errors.Wrap(err, "open archive")
	}
	defer r.Close()

	skipped, err := Validate(r.File, limits)
	if err != nil {
		return nil, err
	}

	tempDir := filepath.Join(e.libraryDir, "wipbot_"+strconv.FormatInt(time.Now().Unix(), 16))
	if err := os.RemoveAll(tempDir); err != nil {
		return nil, errors.Wrap(err, "clear staging folder")
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create staging folder")
	}

	keepTemp := false
	defer func() {
		if !keepTemp {
			if rmErr := os.RemoveAll(tempDir); rmErr != nil {
				zlog.Warn().Msgf("failed to remove staging folder %s: %v", tempDir, rmErr)
			}
		}
	}()

	manifestName := ""
	for _, f := range r.File {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if !extensionAllowed(f.Name, limits.ExtensionWhitelist) {
			continue
		}
		if err := extractEntry(f, tempDir); err != nil {
			return nil, errors.Wrapf(err, "extract %s", f.Name)
		}
		if beatmap.IsManifest(f.Name) {
			manifestName = f.Name
		}
	}
	if manifestName == "" {
		// Manifest present per validation but filtered out by the whitelist.
		return nil, ErrMissingManifest
	}

	info, err := beatmap.ParseInfoFile(filepath.Join(tempDir, manifestName))
	if err != nil {
		return nil, err
	}

	finalPath := filepath.Join(e.libraryDir, beatmap.FolderName(info, time.Now()))
	zlog.Info().Msgf("renaming %s to %s", tempDir, finalPath)
	if err := os.Rename(tempDir, finalPath); err != nil {
		keepTemp = true
		return nil, errors.Wrap(err, "rename staged folder")
	}
	keepTemp = true

	return &Result{FolderPath: finalPath, Info: info, Skipped: skipped}, nil
}

// extractEntry writes one flat archive entry into dir. Entry names carrying
// path separators or traversal elements are refused; the declared
// uncompressed size is enforced against lying headers.
func extractEntry(f *zip.File, dir string) error {
	if strings.ContainsAny(f.Name, `/\`) || f.Name == "." || f.Name == ".." {
		return ErrInvalidEntryName
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(filepath.Join(dir, f.Name), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}

	written, err := io.Copy(out, io.LimitReader(rc, int64(f.UncompressedSize64)+1))
	closeErr := out.Close()
	if err != nil {
		return err
	}
	if closeErr != nil {
		return closeErr
	}
	if written > int64(f.UncompressedSize64) {
		return errors.Newf("entry %s larger than declared size", f.Name)
	}
	return nil
}

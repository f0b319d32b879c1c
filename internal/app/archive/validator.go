// Package archive validates and safely extracts WIP zip archives.
package archive

import (
	"archive/zip"
	"errors"
	"path"
	"strings"

	"github.com/Arimodu/wipbot/internal/domain/beatmap"
)

// Rejection errors, in check order.
var (
	ErrTooManyEntries     = errors.New("archive contains too many entries")
	ErrMissingManifest    = errors.New("archive is missing Info.dat")
	ErrContainsSubfolders = errors.New("archive contains subfolders")
	ErrTooLarge           = errors.New("archive uncompressed size exceeds limit")
	ErrInvalidEntryName   = errors.New("archive entry has invalid name")
)

// Limits are the validation bounds, latched once at the start of an
// extraction so a config change cannot affect an in-flight archive.
type Limits struct {
	MaxEntries           int
	MaxUncompressedBytes uint64
	ExtensionWhitelist   []string
}

// Validate inspects archive headers before any bytes are written to disk.
// The checks run in a fixed order and the first failure wins: entry count,
// manifest presence, directory entries, total uncompressed size.
//
// The extension whitelist is not a hard rejection: Validate returns the
// number of entries that will be skipped during extraction so the caller can
// surface a warning.
func Validate(entries []*zip.File, limits Limits) (skipped int, err error) {
	if len(entries) > limits.MaxEntries {
		return 0, ErrTooManyEntries
	}

	hasManifest := false
	for _, f := range entries {
		if beatmap.IsManifest(f.Name) {
			hasManifest = true
			break
		}
	}
	if !hasManifest {
		return 0, ErrMissingManifest
	}

	// Refuse any archive carrying folder entries outright rather than
	// flattening them.
	for _, f := range entries {
		if strings.HasSuffix(f.Name, "/") || strings.HasSuffix(f.Name, `\`) || f.FileInfo().IsDir() {
			return 0, ErrContainsSubfolders
		}
	}

	var total uint64
	for _, f := range entries {
		total += f.UncompressedSize64
	}
	if total > limits.MaxUncompressedBytes {
		return 0, ErrTooLarge
	}

	for _, f := range entries {
		if !extensionAllowed(f.Name, limits.ExtensionWhitelist) {
			skipped++
		}
	}
	return skipped, nil
}

func extensionAllowed(name string, whitelist []string) bool {
	ext := strings.TrimPrefix(path.Ext(name), ".")
	if ext == "" {
		return false
	}
	for _, allowed := range whitelist {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}

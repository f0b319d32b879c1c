// Package beatmap provides the WIP beatmap manifest entity.
package beatmap

import (
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// ManifestName is the required manifest file, matched case-insensitively.
const ManifestName = "Info.dat"

// Info is the subset of the beatmap manifest used to derive folder names.
// All fields are optional.
type Info struct {
	SongName        string
	SongSubName     string
	SongAuthorName  string
	LevelAuthorName string
}

// UnmarshalJSON accepts both the underscore-prefixed keys written by map
// editors (_songName) and the bare names (songName).
func (i *Info) UnmarshalJSON(data []byte) error {
	var raw struct {
		SongName         string `json:"songName"`
		SongSubName      string `json:"songSubName"`
		SongAuthorName   string `json:"songAuthorName"`
		LevelAuthorName  string `json:"levelAuthorName"`
		USongName        string `json:"_songName"`
		USongSubName     string `json:"_songSubName"`
		USongAuthorName  string `json:"_songAuthorName"`
		ULevelAuthorName string `json:"_levelAuthorName"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	i.SongName = firstNonEmpty(raw.SongName, raw.USongName)
	i.SongSubName = firstNonEmpty(raw.SongSubName, raw.USongSubName)
	i.SongAuthorName = firstNonEmpty(raw.SongAuthorName, raw.USongAuthorName)
	i.LevelAuthorName = firstNonEmpty(raw.LevelAuthorName, raw.ULevelAuthorName)
	return nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// IsManifest reports whether an archive entry name refers to the manifest.
func IsManifest(entryName string) bool {
	return strings.EqualFold(path.Base(entryName), ManifestName)
}

// ParseInfoFile reads and parses a manifest from disk.
func ParseInfoFile(filePath string) (*Info, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrap(err, "read manifest")
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, errors.Wrap(err, "parse manifest")
	}
	return &info, nil
}

// FindManifest locates the manifest file inside a folder, matching the name
// case-insensitively.
func FindManifest(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", errors.Wrap(err, "read folder")
	}
	for _, ent := range entries {
		if !ent.IsDir() && strings.EqualFold(ent.Name(), ManifestName) {
			return filepath.Join(dir, ent.Name()), nil
		}
	}
	return "", errors.Newf("no %s in %s", ManifestName, dir)
}

// FolderName derives the library folder name for an extracted WIP: the
// non-empty metadata fields joined by " - ", followed by a timestamp,
// sanitized into a portable path component.
func FolderName(info *Info, t time.Time) string {
	parts := make([]string, 0, 4)
	for _, s := range []string{info.SongName, info.SongSubName, info.SongAuthorName, info.LevelAuthorName} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	name := fmt.Sprintf("wipbot_(%s)_(%s)", strings.Join(parts, " - "), t.Format("Jan 02, 2006 - 15:04:05"))
	return SanitizeName(name)
}

var invalidNameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

// SanitizeName replaces characters that are invalid in file names on any of
// the target filesystems with underscores.
func SanitizeName(name string) string {
	name = invalidNameChars.ReplaceAllString(name, "_")
	return strings.TrimRight(name, " .")
}

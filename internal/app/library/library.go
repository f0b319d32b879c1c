// Package library manages the on-disk WIP content library.
package library

import (
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/Arimodu/wipbot/internal/domain/beatmap"
)

const legacyPrefix = "wipbot_"

// RenameLegacyFolders scans dir for folders still using the legacy naming
// scheme (wipbot_ followed by a hex unix timestamp, no metadata) and renames
// them to the current metadata-derived scheme by re-reading each folder's
// manifest. Returns the number of folders renamed; the caller triggers a
// catalog-wide reindex only when that count is positive.
func RenameLegacyFolders(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, errors.Wrap(err, "read library folder")
	}

	renamed := 0
	for _, ent := range entries {
		if !ent.IsDir() {
			continue
		}
		name := ent.Name()
		if !strings.HasPrefix(name, legacyPrefix) || strings.HasPrefix(name, legacyPrefix+"(") {
			continue
		}

		ts, err := strconv.ParseInt(strings.TrimPrefix(name, legacyPrefix), 16, 64)
		if err != nil {
			zlog.Warn().Msgf("skipping folder with unparsable timestamp: %s", name)
			continue
		}

		folder := filepath.Join(dir, name)
		manifestPath, err := beatmap.FindManifest(folder)
		if err != nil {
			zlog.Warn().Msgf("skipping legacy folder %s: %v", name, err)
			continue
		}
		info, err := beatmap.ParseInfoFile(manifestPath)
		if err != nil {
			zlog.Warn().Msgf("skipping legacy folder %s: %v", name, err)
			continue
		}

		newPath := filepath.Join(dir, beatmap.FolderName(info, time.Unix(ts, 0)))
		if err := os.Rename(folder, newPath); err != nil {
			zlog.Error().Msgf("failed to rename %s: %v", name, err)
			continue
		}
		renamed++
		zlog.Info().Msgf("renamed %s to %s", name, filepath.Base(newPath))
	}

	if renamed > 0 {
		zlog.Info().Msgf("renamed %d legacy wip folders to the current schema", renamed)
	}
	return renamed, nil
}

// HookRefresher notifies the catalog collaborator by running the configured
// shell commands with the extracted folder exported in the environment.
type HookRefresher struct {
	commands []string
}

// NewHookRefresher creates a refresher over the configured hook commands.
func NewHookRefresher(commands []string) *HookRefresher {
	return &HookRefresher{commands: commands}
}

// Refreshed runs the hooks for a freshly extracted folder.
func (h *HookRefresher) Refreshed(folderPath string, info *beatmap.Info) {
	zlog.Info().Msgf("catalog refresh: %s (%s)", folderPath, info.SongName)
	RunHooks(h.commands, "on_extracted", "WIPBOT_FOLDER="+folderPath)
}

// RunHooks executes a list of shell commands. Failures are logged, never
// fatal.
func RunHooks(hooks []string, stage string, extraEnv ...string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("executing %s hooks (%d commands)", stage, len(hooks))
	for _, hook := range hooks {
		// sh -c allows shell features like redirection or pipes.
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		cmd.Env = append(os.Environ(), extraEnv...)

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("failed to execute hook: %s", hook)
		}
	}
}

// Package rootpath resolves the project root: the shared filesystem
// directory containing all Claude Swarm state. Resolution order is
// explicit parameter, CLAUDESWARM_ROOT env var, nearest ancestor directory
// containing a known project marker, then the current working directory.
// A leading "~/" in the explicit parameter or env var is expanded against
// the user's home directory before resolution, via internal/util.
package rootpath

import (
	"os"
	"path/filepath"

	"github.com/claude-swarm/swarm/internal/util"
)

// EnvVar is the environment variable consumed for an explicit root override.
const EnvVar = "CLAUDESWARM_ROOT"

// Markers are the filenames/dirnames that identify a project root when
// walking upward from the current directory.
var Markers = []string{
	".git",
	".claudeswarm.yaml",
	"ACTIVE_AGENTS.json",
	".agent_locks",
	"pyproject.toml",
	"package.json",
}

// Resolve determines the project root following the priority order in
// spec §3: explicit parameter, env var, nearest ancestor marker, cwd.
func Resolve(explicit string) (string, error) {
	if explicit != "" {
		abs, err := filepath.Abs(util.ExpandHome(explicit))
		if err != nil {
			return "", err
		}
		return abs, nil
	}

	if env := os.Getenv(EnvVar); env != "" {
		abs, err := filepath.Abs(util.ExpandHome(env))
		if err != nil {
			return "", err
		}
		return abs, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	if found := findMarkedAncestor(cwd); found != "" {
		return found, nil
	}

	return cwd, nil
}

// findMarkedAncestor walks upward from start looking for any of Markers.
// Returns "" if none is found before reaching the filesystem root.
func findMarkedAncestor(start string) string {
	dir := start
	for {
		for _, marker := range Markers {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

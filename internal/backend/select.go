package backend

import "os"

// BackendEnvVar lets an operator force a specific backend variant,
// bypassing auto-detection. Values: "pane" or "file-drop".
const BackendEnvVar = "CLAUDESWARM_BACKEND"

// Select resolves which backend variant to use, per spec §4.D: explicit
// override env var, then configured provider, then auto-detection (pane if
// its environment is present, else file-drop).
func Select(configuredProvider string) Backend {
	if override := os.Getenv(BackendEnvVar); override != "" {
		return fromName(override)
	}
	if configuredProvider != "" {
		return fromName(configuredProvider)
	}
	if os.Getenv(PaneEnvVar) != "" {
		return NewPaneBackend()
	}
	return NewFileDropBackend()
}

func fromName(name string) Backend {
	switch name {
	case "pane":
		return NewPaneBackend()
	case "file-drop":
		return NewFileDropBackend()
	default:
		return NewFileDropBackend()
	}
}

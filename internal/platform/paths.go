package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// AppName names the per-user configuration and state directories
const AppName = "contentsync"

// ConfigDir returns the configuration directory: $XDG_CONFIG_HOME/contentsync
// on Unix, %AppData%\contentsync on Windows
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", &PathError{Path: "config dir", Message: err.Error()}
	}
	return filepath.Join(base, AppName), nil
}

// StateDir returns the directory for the status file, ledger and lock:
// $XDG_STATE_HOME/contentsync (default ~/.local/state) on Unix,
// %LocalAppData%\contentsync on Windows
func StateDir() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" && filepath.IsAbs(dir) {
		return filepath.Join(dir, AppName), nil
	}

	if runtime.GOOS == "windows" {
		if dir := os.Getenv("LocalAppData"); dir != "" {
			return filepath.Join(dir, AppName), nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", &PathError{Path: "state dir", Message: err.Error()}
	}
	return filepath.Join(home, ".local", "state", AppName), nil
}

// DefaultConfigPath returns the default configuration file path
func DefaultConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// ExpandHome replaces a leading ~ with the user's home directory
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Resolve returns path unchanged when absolute, joined to dir otherwise.
// An empty path stays empty.
func Resolve(dir, path string) string {
	if path == "" {
		return ""
	}
	path = ExpandHome(path)
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(ExpandHome(dir), path)
}

// PathError represents a path resolution error
type PathError struct {
	Path    string
	Message string
}

func (e *PathError) Error() string {
	return "invalid path '" + e.Path + "': " + e.Message
}

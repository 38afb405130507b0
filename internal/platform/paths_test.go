package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestStateDirHonoursXDG(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("XDG variables are not used on Windows")
	}
	dir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", dir)

	got, err := StateDir()
	if err != nil {
		t.Fatalf("StateDir() error = %v", err)
	}
	if want := filepath.Join(dir, AppName); got != want {
		t.Errorf("StateDir() = %q, want %q", got, want)
	}
}

func TestStateDirIgnoresRelativeXDG(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("XDG variables are not used on Windows")
	}
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_STATE_HOME", "relative/state")

	got, err := StateDir()
	if err != nil {
		t.Fatalf("StateDir() error = %v", err)
	}
	if want := filepath.Join(home, ".local", "state", AppName); got != want {
		t.Errorf("StateDir() = %q, want %q", got, want)
	}
}

func TestDefaultConfigPath(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("layout checked on Linux only")
	}
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := DefaultConfigPath()
	if err != nil {
		t.Fatalf("DefaultConfigPath() error = %v", err)
	}
	if want := filepath.Join(dir, AppName, "config.yaml"); got != want {
		t.Errorf("DefaultConfigPath() = %q, want %q", got, want)
	}
}

func TestResolve(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	abs := filepath.Join(t.TempDir(), "status.json")

	tests := []struct {
		name string
		dir  string
		path string
		want string
	}{
		{"empty stays empty", "/state", "", ""},
		{"relative joins dir", "/state", "status.json", filepath.Join("/state", "status.json")},
		{"absolute kept", "/state", abs, abs},
		{"home expanded", "/state", "~/ledger.db", filepath.Join(home, "ledger.db")},
		{"home dir expanded", "~/state", "lock", filepath.Join(home, "state", "lock")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Resolve(tt.dir, tt.path); got != tt.want {
				t.Errorf("Resolve(%q, %q) = %q, want %q", tt.dir, tt.path, got, tt.want)
			}
		})
	}
}

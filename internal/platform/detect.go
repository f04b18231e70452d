package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const appName = "voxnote"

// Dirs groups the per-user locations voxnote reads and writes.
type Dirs struct {
	Data   string
	Config string
}

func (d Dirs) Models() string {
	return filepath.Join(d.Data, "models")
}

func (d Dirs) Recordings() string {
	return filepath.Join(d.Data, "recordings")
}

func (d Dirs) LogFile() string {
	return filepath.Join(d.Data, appName+".log")
}

func (d Dirs) Preferences() string {
	return filepath.Join(d.Config, "preferences.yaml")
}

// DirsFor is the pure form of ResolveDirs used by tests.
func DirsFor(goos, homeDir, xdgDataHome, xdgConfigHome string) (Dirs, error) {
	if homeDir == "" {
		return Dirs{}, errors.New("home directory is empty")
	}

	switch goos {
	case "linux":
		data := filepath.Join(homeDir, ".local", "share", appName)
		if xdgDataHome != "" {
			data = filepath.Join(xdgDataHome, appName)
		}
		config := filepath.Join(homeDir, ".config", appName)
		if xdgConfigHome != "" {
			config = filepath.Join(xdgConfigHome, appName)
		}
		return Dirs{Data: data, Config: config}, nil
	case "darwin":
		support := filepath.Join(homeDir, "Library", "Application Support", appName)
		return Dirs{Data: support, Config: support}, nil
	default:
		return Dirs{}, fmt.Errorf("unsupported OS: %s", goos)
	}
}

func ResolveDirs() (Dirs, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return Dirs{}, fmt.Errorf("resolve user home: %w", err)
	}

	return DirsFor(runtime.GOOS, homeDir, os.Getenv("XDG_DATA_HOME"), os.Getenv("XDG_CONFIG_HOME"))
}

// ResolveModelDir honours an explicit --model-dir before falling back to the
// per-user data directory.
func ResolveModelDir(override string) (string, error) {
	if override != "" {
		return filepath.Clean(override), nil
	}

	dirs, err := ResolveDirs()
	if err != nil {
		return "", err
	}
	return dirs.Models(), nil
}

// EnsureDir creates dir and returns it unchanged.
func EnsureDir(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create directory %s: %w", dir, err)
	}
	return dir, nil
}

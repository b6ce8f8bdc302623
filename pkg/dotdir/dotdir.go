// Package dotdir resolves the .folio/ directory that holds config.toml and
// credentials.toml.
package dotdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const dirName = ".folio"

// Manager resolves the .folio/ directory for the current process.
type Manager struct {
	getwd   func() (string, error)
	homeDir func() (string, error)
}

// NewManager creates a Manager backed by the process working directory and
// the user's home directory.
func NewManager() *Manager {
	return &Manager{
		getwd:   os.Getwd,
		homeDir: os.UserHomeDir,
	}
}

// Target returns the directory to use. An override always wins and is created
// if missing. Otherwise ./.folio/ is preferred over ~/.folio/. An empty string
// means no directory exists yet.
func (m *Manager) Target(override string) (string, error) {
	if override != "" {
		if err := os.MkdirAll(override, 0o755); err != nil {
			return "", fmt.Errorf("creating config dir: %w", err)
		}
		return override, nil
	}

	if wd, err := m.getwd(); err == nil {
		local := filepath.Join(wd, dirName)
		if ok, err := isDir(local); err != nil {
			return "", err
		} else if ok {
			return local, nil
		}
	}

	home, err := m.homeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home dir: %w", err)
	}
	global := filepath.Join(home, dirName)
	ok, err := isDir(global)
	if err != nil {
		return "", err
	}
	if ok {
		return global, nil
	}

	return "", nil
}

// EnsureTarget behaves like Target but creates ~/.folio/ when nothing exists.
func (m *Manager) EnsureTarget(override string) (string, error) {
	target, err := m.Target(override)
	if err != nil {
		return "", err
	}
	if target != "" {
		return target, nil
	}

	home, err := m.homeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home dir: %w", err)
	}
	target = filepath.Join(home, dirName)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("creating folio dir: %w", err)
	}

	return target, nil
}

func isDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("checking %s: %w", path, err)
	}
	return info.IsDir(), nil
}

package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const (
	// FileName is the credentials file inside the .folio directory.
	FileName = "credentials.toml"

	currentVersion = 0
)

// fileDocument is the on-disk layout of credentials.toml.
type fileDocument struct {
	Version int   `toml:"version"`
	Session Slots `toml:"session"`
}

// FileBackend persists slots to credentials.toml in the .folio/ directory.
type FileBackend struct {
	targetPath string
}

// NewFileBackend creates a FileBackend rooted at dir.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		return nil, errors.New("credentials dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating credentials dir: %w", err)
	}
	return &FileBackend{targetPath: filepath.Join(dir, FileName)}, nil
}

// GetTarget returns the resolved path to the credentials file.
func (b *FileBackend) GetTarget() string {
	return b.targetPath
}

// Load reads credentials.toml. A missing file yields empty slots.
func (b *FileBackend) Load() (Slots, error) {
	data, err := os.ReadFile(b.targetPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Slots{}, nil
		}
		return Slots{}, fmt.Errorf("reading credentials: %w", err)
	}

	doc := fileDocument{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return Slots{}, fmt.Errorf("parsing credentials: %w", err)
	}

	return doc.Session, nil
}

// Store writes all slots with 0600 permissions. The file is replaced by
// rename so a failed write leaves the previous content intact.
func (b *FileBackend) Store(slots Slots) error {
	var buf bytes.Buffer
	encoder := toml.NewEncoder(&buf)
	if err := encoder.Encode(fileDocument{Version: currentVersion, Session: slots}); err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(b.targetPath), FileName+".*")
	if err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := os.Rename(tmpPath, b.targetPath); err != nil {
		return fmt.Errorf("writing credentials: %w", err)
	}

	return nil
}

// Clear removes credentials.toml.
func (b *FileBackend) Clear() error {
	if err := os.Remove(b.targetPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing credentials: %w", err)
	}
	return nil
}

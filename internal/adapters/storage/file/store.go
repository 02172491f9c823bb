// Package file persists key/value entries as one JSON document per key.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"
)

// Store writes entries below a base directory of an afero filesystem.
type Store struct {
	fs afero.Fs
}

// New roots a store at dir inside fs. dir is created on first write.
func New(fs afero.Fs, dir string) *Store {
	if strings.TrimSpace(dir) != "" {
		fs = afero.NewBasePathFs(fs, dir)
	}
	return &Store{fs: fs}
}

// NewOS roots a store at dir on the local disk.
func NewOS(dir string) *Store {
	return New(afero.NewOsFs(), dir)
}

// Get reads the document for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	name, err := fileName(key)
	if err != nil {
		return nil, false, err
	}
	data, err := afero.ReadFile(s.fs, name)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", name, err)
	}
	return data, true, nil
}

// UpdatedAt reports the modification time of the document for key.
func (s *Store) UpdatedAt(ctx context.Context, key string) (time.Time, bool, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, false, err
	}
	name, err := fileName(key)
	if err != nil {
		return time.Time{}, false, err
	}
	info, err := s.fs.Stat(name)
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("stat %s: %w", name, err)
	}
	return info.ModTime().UTC(), true, nil
}

// Set replaces the document for key through a temp file and rename.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	name, err := fileName(key)
	if err != nil {
		return err
	}
	if err := s.fs.MkdirAll("/", 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp := name + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, value, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, name); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}

// fileName maps a storage key to a flat, filesystem-safe name.
func fileName(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("file store key is required")
	}
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	clean := strings.Trim(b.String(), ".")
	if clean == "" {
		return "", fmt.Errorf("file store key %q has no usable characters", key)
	}
	return path.Join("/", clean+".json"), nil
}

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// File stores one JSON envelope per entry below a root directory:
// <root>/<type>/<xx>/<sha256(id)>.json.
type File struct {
	root string
	mu   sync.Mutex
}

var _ Driver = (*File)(nil)

func NewFile(root string) (*File, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("cache directory must not be empty")
	}
	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		return nil, fmt.Errorf("cache path %q is a file, expected directory", root)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory %q: %w", root, err)
	}
	return &File{root: root}, nil
}

func (f *File) path(key Key) string {
	sum := sha256.Sum256([]byte(key.ID))
	name := hex.EncodeToString(sum[:])
	return filepath.Join(f.root, key.Type, name[:2], name+".json")
}

func (f *File) Store(key Key, value []byte, hash string) error {
	data, err := encodeEnvelope(key, value, hash)
	if err != nil {
		return err
	}
	target := f.path(key)

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create cache directory for %s: %w", key, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".entry-*")
	if err != nil {
		return fmt.Errorf("create cache entry %s: %w", key, err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write cache entry %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close cache entry %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("commit cache entry %s: %w", key, err)
	}
	return nil
}

func (f *File) Restore(key Key, hash string) ([]byte, error) {
	f.mu.Lock()
	data, err := os.ReadFile(f.path(key))
	f.mu.Unlock()
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read cache entry %s: %w", key, err)
	}
	env, err := decodeEnvelope(data)
	if err != nil {
		return nil, err
	}
	if env.Hash != hash || env.Type != key.Type || env.ID != key.ID {
		return nil, ErrMiss
	}
	return env.Value, nil
}

func (f *File) Remove(pattern string) error {
	g, err := compilePattern(pattern)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return filepath.WalkDir(f.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read cache entry %q: %w", path, err)
		}
		env, err := decodeEnvelope(data)
		if err != nil || g.Match(Key{Type: env.Type, ID: env.ID}.String()) {
			return os.Remove(path)
		}
		return nil
	})
}

func (f *File) Close() error { return nil }

func (f *File) Root() string { return f.root }

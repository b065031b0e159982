package credstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned by [Medium.Read] when no record exists for a key.
var ErrNotFound = errors.New("record not found")

// Medium is a persistence backend for opaque records. Implementations must
// treat Erase of a missing key as a no-op.
type Medium interface {
	Write(ctx context.Context, key string, data []byte) error
	Read(ctx context.Context, key string) ([]byte, error)
	Erase(ctx context.Context, keys ...string) error
}

// MemoryMedium keeps records in a process-local map. It backs tests and
// deployments that explicitly opt out of persistence.
type MemoryMedium struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewMemoryMedium() *MemoryMedium {
	return &MemoryMedium{records: make(map[string][]byte)}
}

func (m *MemoryMedium) Write(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	m.records[key] = cp
	return nil
}

func (m *MemoryMedium) Read(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.records[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	return cp, nil
}

func (m *MemoryMedium) Erase(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.records, key)
	}
	return nil
}

// FileMedium stores one file per key under a directory, written atomically
// via rename. It is the default medium for embedded clients.
type FileMedium struct {
	dir string
}

func NewFileMedium(dir string) (*FileMedium, error) {
	if dir == "" {
		return nil, errors.New("file medium requires a directory")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create medium directory: %w", err)
	}
	return &FileMedium{dir: dir}, nil
}

func (m *FileMedium) path(key string) string {
	// Keys are fixed identifiers, but keep path traversal out anyway.
	return filepath.Join(m.dir, strings.ReplaceAll(key, string(os.PathSeparator), "_"))
}

func (m *FileMedium) Write(_ context.Context, key string, data []byte) error {
	target := m.path(key)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

func (m *FileMedium) Read(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(m.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (m *FileMedium) Erase(_ context.Context, keys ...string) error {
	for _, key := range keys {
		if err := os.Remove(m.path(key)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return nil
}

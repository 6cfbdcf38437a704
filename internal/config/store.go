package config

import (
	"context"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
)

// Store is the user preference key/value store.
type Store interface {
	// GetConfig returns the values of the keys that are set. Missing keys
	// are absent from the result.
	GetConfig(ctx context.Context, keys ...string) (map[string]any, error)
	SetConfig(ctx context.Context, values map[string]any) error
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewMemoryStore returns a store holding a copy of initial.
func NewMemoryStore(initial map[string]any) *MemoryStore {
	values := maps.Clone(initial)
	if values == nil {
		values = make(map[string]any)
	}
	return &MemoryStore{values: values}
}

func (s *MemoryStore) GetConfig(ctx context.Context, keys ...string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := s.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (s *MemoryStore) SetConfig(ctx context.Context, values map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.values, values)
	return nil
}

// ViperStore persists preferences to a file through viper. The format
// follows the file extension.
type ViperStore struct {
	mu   sync.Mutex
	v    *viper.Viper
	path string
}

// NewViperStore opens the preference file at path. A missing file is
// created on the first write.
func NewViperStore(path string) (*ViperStore, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && !isNotFound(err) {
		return nil, fmt.Errorf("read preferences %s: %w", path, err)
	}
	return &ViperStore{v: v, path: path}, nil
}

func (s *ViperStore) GetConfig(ctx context.Context, keys ...string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if s.v.IsSet(k) {
			out[k] = s.v.Get(k)
		}
	}
	return out, nil
}

func (s *ViperStore) SetConfig(ctx context.Context, values map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, v := range values {
		s.v.Set(k, v)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("write preferences %s: %w", s.path, err)
	}
	return nil
}

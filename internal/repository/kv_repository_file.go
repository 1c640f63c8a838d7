package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/sandeepkv93/alumni-portal-client/internal/observability"
)

// FileKeyValueRepository keeps all keys in a single JSON document. Every
// mutation rewrites the file through a temp file and rename.
type FileKeyValueRepository struct {
	mu   sync.Mutex
	path string
}

func NewFileKeyValueRepository(path string) (*FileKeyValueRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &FileKeyValueRepository{path: path}, nil
}

func (r *FileKeyValueRepository) Get(ctx context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, err := r.readLocked()
	if err != nil {
		observability.RecordStorageOperation(ctx, "file", "get", "error")
		return "", err
	}
	v, ok := data[key]
	if !ok {
		observability.RecordStorageOperation(ctx, "file", "get", "miss")
		return "", ErrKeyNotFound
	}
	observability.RecordStorageOperation(ctx, "file", "get", "hit")
	return v, nil
}

func (r *FileKeyValueRepository) Set(ctx context.Context, key, value string) error {
	return r.mutate(ctx, "set", func(data map[string]string) { data[key] = value })
}

func (r *FileKeyValueRepository) Delete(ctx context.Context, keys ...string) error {
	return r.mutate(ctx, "delete", func(data map[string]string) {
		for _, k := range keys {
			delete(data, k)
		}
	})
}

func (r *FileKeyValueRepository) Close() error { return nil }

func (r *FileKeyValueRepository) mutate(ctx context.Context, op string, fn func(map[string]string)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, err := r.readLocked()
	if err != nil {
		observability.RecordStorageOperation(ctx, "file", op, "error")
		return err
	}
	fn(data)
	if err := r.writeLocked(data); err != nil {
		observability.RecordStorageOperation(ctx, "file", op, "error")
		return err
	}
	observability.RecordStorageOperation(ctx, "file", op, "success")
	return nil
}

func (r *FileKeyValueRepository) readLocked() (map[string]string, error) {
	raw, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read storage file: %w", err)
	}
	data := map[string]string{}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("decode storage file: %w", err)
	}
	return data, nil
}

func (r *FileKeyValueRepository) writeLocked(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode storage file: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".storage-*.json")
	if err != nil {
		return fmt.Errorf("create temp storage file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write storage file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod storage file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close storage file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace storage file: %w", err)
	}
	return nil
}

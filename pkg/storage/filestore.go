package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
)

// FileStore is a key/value store keeping one JSON document per key on disk.
type FileStore struct {
	storage *LocalStorage
}

// NewFileStore creates the data directory when missing.
func NewFileStore(dir string) (*FileStore, error) {
	s, err := NewLocalStorage(dir)
	if err != nil {
		return nil, err
	}
	return &FileStore{storage: s}, nil
}

func (f *FileStore) name(key string) string {
	return key + ".json"
}

// Get returns the stored value, or nil without error when the key is absent.
func (f *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := f.storage.Open(f.name(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close() //nolint:errcheck
	raw, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return raw, nil
}

// Set replaces the stored value.
func (f *FileStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := f.storage.Save(f.name(key), value)
	return err
}

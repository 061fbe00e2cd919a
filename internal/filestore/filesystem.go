package filestore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/magdb/mag/internal/metrics"
)

// FSStore keeps attachments under a directory tree mirroring the key
// layout. A sidecar JSON file per object carries the content type.
type FSStore struct {
	root string
	mu   sync.RWMutex
}

type fsMeta struct {
	ContentType string `json:"content_type"`
}

func NewFSStore(root string) (*FSStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) objectPath(key string) string {
	return filepath.Join(s.root, "objects", filepath.FromSlash(key))
}

func (s *FSStore) metaPath(key string) string {
	return filepath.Join(s.root, "meta", filepath.FromSlash(key)+".json")
}

func (s *FSStore) Write(ctx context.Context, key string, data []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.write(key, data, contentType)
	metrics.ObserveAttachmentOp("write", err)
	return err
}

func (s *FSStore) write(key string, data []byte, contentType string) error {
	objPath := s.objectPath(key)
	if err := os.MkdirAll(filepath.Dir(objPath), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(objPath, data, 0644); err != nil {
		return err
	}

	metaPath := s.metaPath(key)
	if err := os.MkdirAll(filepath.Dir(metaPath), 0755); err != nil {
		return err
	}
	meta, err := json.Marshal(fsMeta{ContentType: contentType})
	if err != nil {
		return err
	}
	return os.WriteFile(metaPath, meta, 0644)
}

func (s *FSStore) Read(ctx context.Context, key string) ([]byte, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.objectPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}

	var meta fsMeta
	if raw, err := os.ReadFile(s.metaPath(key)); err == nil {
		_ = json.Unmarshal(raw, &meta)
	}
	return data, meta.ContentType, nil
}

func (s *FSStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.objectPath(key))
	if err != nil && !os.IsNotExist(err) {
		metrics.ObserveAttachmentOp("delete", err)
		return err
	}
	if err := os.Remove(s.metaPath(key)); err != nil && !os.IsNotExist(err) {
		metrics.ObserveAttachmentOp("delete", err)
		return err
	}
	metrics.ObserveAttachmentOp("delete", nil)
	return nil
}

func (s *FSStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, err := os.Stat(s.objectPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

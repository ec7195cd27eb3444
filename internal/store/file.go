package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"mcwatch/pkg/logx"
)

// fileStore is a dependency-free persistence backend: one pretty-printed JSON
// file per collection under a directory, replaced atomically via tmp+rename.
// Collection contents are kept in memory after first read; reads always
// reflect the last successful write.
type fileStore struct {
	log logx.Logger
	dir string

	mu     sync.Mutex
	cache  map[string]Document
	closed bool
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	dir := strings.TrimSpace(cfg.Path)
	if dir == "" {
		return nil, errors.New("storage.path is required for file driver")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &fileStore{log: log, dir: dir, cache: map[string]Document{}}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fileStore) path(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

// loadLocked returns the cached collection, reading it from disk on first use.
// A missing file yields an empty document.
func (s *fileStore) loadLocked(collection string) (Document, error) {
	if doc, ok := s.cache[collection]; ok {
		return doc, nil
	}
	doc := Document{}
	b, err := os.ReadFile(s.path(collection))
	switch {
	case errors.Is(err, os.ErrNotExist):
		// empty document, not an error
	case err != nil:
		return nil, err
	default:
		if err := json.Unmarshal(b, &doc); err != nil {
			return nil, err
		}
	}
	s.cache[collection] = doc
	return doc, nil
}

func (s *fileStore) flushLocked(collection string, doc Document) error {
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	path := s.path(collection)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	s.cache[collection] = doc
	return nil
}

func (s *fileStore) Read(ctx context.Context, collection string) (Document, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	doc, err := s.loadLocked(collection)
	if err != nil {
		return nil, err
	}
	return doc.Clone(), nil
}

func (s *fileStore) Write(ctx context.Context, collection string, doc Document) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if doc == nil {
		doc = Document{}
	}
	return s.flushLocked(collection, doc.Clone())
}

func (s *fileStore) GetScoped(ctx context.Context, collection, key string) (json.RawMessage, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	doc, err := s.loadLocked(collection)
	if err != nil {
		return nil, err
	}
	return doc[key], nil
}

func (s *fileStore) SaveScoped(ctx context.Context, collection, key string, sub json.RawMessage) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	doc, err := s.loadLocked(collection)
	if err != nil {
		return err
	}
	next := doc.Clone()
	if len(sub) == 0 {
		delete(next, key)
	} else {
		next[key] = sub
	}
	return s.flushLocked(collection, next)
}

func (s *fileStore) Transaction(ctx context.Context, collection string, fn func(doc Document) (Document, error)) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	doc, err := s.loadLocked(collection)
	if err != nil {
		return err
	}
	next, err := fn(doc.Clone())
	if err != nil {
		return err
	}
	if next == nil {
		next = Document{}
	}
	return s.flushLocked(collection, next)
}

package objectstore

import (
	"context"
	"sync"

	"bizreg/pkg/platform/sentinel"
)

// InMemory is a process-local store for tests and credential-free local runs.
type InMemory struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]Object
}

func NewInMemory(baseURL string) *InMemory {
	return &InMemory{baseURL: baseURL, objects: make(map[string]Object)}
}

func (s *InMemory) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if err := checkCtx(ctx); err != nil {
		return "", err
	}
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = Object{Key: key, ContentType: contentType, Data: append([]byte(nil), data...)}
	return locationFor(s.baseURL, key), nil
}

func (s *InMemory) Get(_ context.Context, key string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	obj.Data = append([]byte(nil), obj.Data...)
	return &obj, nil
}

func (s *InMemory) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.objects[key]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.objects, key)
	return nil
}

// Len reports how many objects are stored.
func (s *InMemory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// Package blob stores uploaded application documents. Applications keep
// only the returned references; contents live here.
package blob

import (
	"context"
	"fmt"
	"sync"

	"github.com/xraph/sentinel/errs"
)

// Object is a stored document blob.
type Object struct {
	Key         string
	ContentType string
	Data        []byte
}

// Store persists document blobs. Implementations must be safe for
// concurrent use.
type Store interface {
	// Put stores the object and returns a stable reference URL.
	Put(ctx context.Context, obj Object) (string, error)

	// Get retrieves an object by key.
	Get(ctx context.Context, key string) (*Object, error)

	// Delete removes an object by key. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, key string) error
}

// Memory is an in-memory blob store for tests and development.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]Object
}

// NewMemory creates an empty in-memory blob store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]Object)}
}

// Put implements Store.
func (m *Memory) Put(_ context.Context, obj Object) (string, error) {
	if obj.Key == "" {
		return "", fmt.Errorf("%w: blob key is required", errs.ErrValidation)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	data := make([]byte, len(obj.Data))
	copy(data, obj.Data)
	obj.Data = data
	m.objects[obj.Key] = obj
	return "blob://" + obj.Key, nil
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) (*Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: blob %q", errs.ErrNotFound, key)
	}
	out := obj
	out.Data = make([]byte, len(obj.Data))
	copy(out.Data, obj.Data)
	return &out, nil
}

// Delete implements Store.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

package blobsvc

import (
	"bytes"
	"context"
	"io"
	"io/ioutil"
	"sync"

	"github.com/pkg/errors"

	"github.com/umoorsehhat/sehhat/core/petition"
)

type memoryObject struct {
	data        []byte
	contentType string
}

// memoryStore keeps the objects in memory: used in tests and when no bucket is configured.
type memoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

var _ petition.AttachmentStore = (*memoryStore)(nil) // interface compliance check

func NewMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string]memoryObject)}
}

func (s *memoryStore) Put(_ context.Context, key string, r io.Reader, _ int64, contentType string) error {
	data, err := ioutil.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "reading content")
	}
	s.mu.Lock()
	s.objects[key] = memoryObject{data: data, contentType: contentType}
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, petition.ErrAttachmentNotFound
	}
	return ioutil.NopCloser(bytes.NewReader(obj.data)), nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored objects.
func (s *memoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

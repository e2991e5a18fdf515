// Package memstore is an in-process docstore backend, used for local development and tests.
package memstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gmbtravels/gmbservice/internal/docstore"
)

func init() {
	docstore.Register("memory", func(_ context.Context, _ docstore.OpenParams) (docstore.Backend, error) {
		return New(), nil
	})
}

type collection struct {
	order []string
	docs  map[string][]byte
}

type Store struct {
	mutex       sync.RWMutex
	collections map[string]*collection
}

var _ docstore.Backend = (*Store)(nil)

func New() *Store {
	return &Store{
		collections: map[string]*collection{},
	}
}

// coll must be called with the write lock held.
func (s *Store) coll(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{docs: map[string][]byte{}}
		s.collections[name] = c
	}
	return c
}

func (s *Store) List(_ context.Context, collectionName string, dst any) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	buf := bytes.NewBufferString("[")
	if c, ok := s.collections[collectionName]; ok {
		for i, id := range c.order {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.Write(c.docs[id])
		}
	}
	buf.WriteByte(']')

	return json.Unmarshal(buf.Bytes(), dst)
}

func (s *Store) Get(_ context.Context, collectionName, id string, dst any) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	c, ok := s.collections[collectionName]
	if !ok {
		return docstore.ErrNotFound
	}
	body, ok := c.docs[id]
	if !ok {
		return docstore.ErrNotFound
	}

	return json.Unmarshal(body, dst)
}

func (s *Store) Insert(_ context.Context, collectionName, id string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	c := s.coll(collectionName)
	if _, exists := c.docs[id]; exists {
		return docstore.ErrDuplicateID
	}
	c.docs[id] = body
	c.order = append(c.order, id)

	return nil
}

func (s *Store) Update(_ context.Context, collectionName, id string, fields map[string]any, dst any) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	c, ok := s.collections[collectionName]
	if !ok {
		return docstore.ErrNotFound
	}
	body, ok := c.docs[id]
	if !ok {
		return docstore.ErrNotFound
	}

	stored := map[string]any{}
	if err := json.Unmarshal(body, &stored); err != nil {
		return fmt.Errorf("unmarshal stored document: %w", err)
	}
	for k, v := range fields {
		stored[k] = v
	}

	merged, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal merged document: %w", err)
	}
	c.docs[id] = merged

	return json.Unmarshal(merged, dst)
}

func (s *Store) Delete(_ context.Context, collectionName, id string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	c, ok := s.collections[collectionName]
	if !ok {
		return docstore.ErrNotFound
	}
	if _, ok := c.docs[id]; !ok {
		return docstore.ErrNotFound
	}

	delete(c.docs, id)
	for i, docID := range c.order {
		if docID == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}

	return nil
}

func (s *Store) Count(_ context.Context, collectionName string) (int64, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	c, ok := s.collections[collectionName]
	if !ok {
		return 0, nil
	}
	return int64(len(c.docs)), nil
}

func (s *Store) Close(_ context.Context) error {
	return nil
}

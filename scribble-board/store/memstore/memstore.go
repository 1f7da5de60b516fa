// Package memstore is an in-memory store.Store used by tests and local runs.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/scribble-board/scribble/scribble-board/store"
)

// Store keeps items in nested maps guarded by a single mutex.
type Store struct {
	mu    sync.Mutex
	items map[string]map[int64]store.Item
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{items: map[string]map[int64]store.Item{}}
}

func (s *Store) Get(_ context.Context, pk string, sk int64) (store.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[pk][sk]
	if !ok {
		return store.Item{}, store.ErrNotFound
	}
	return clone(item), nil
}

func (s *Store) Query(_ context.Context, pk string, after int64) ([]store.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []store.Item
	for _, sk := range s.sortedKeys(pk) {
		if sk > after {
			items = append(items, clone(s.items[pk][sk]))
		}
	}
	return items, nil
}

func (s *Store) Last(_ context.Context, pk string) (store.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := s.sortedKeys(pk)
	if len(keys) == 0 {
		return store.Item{}, store.ErrNotFound
	}
	return clone(s.items[pk][keys[len(keys)-1]]), nil
}

func (s *Store) Scan(_ context.Context, prefix string) ([]store.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var items []store.Item
	for pk := range s.items {
		if !strings.HasPrefix(pk, prefix) {
			continue
		}
		for _, sk := range s.sortedKeys(pk) {
			items = append(items, clone(s.items[pk][sk]))
		}
	}
	return items, nil
}

func (s *Store) Create(_ context.Context, item store.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	partition, ok := s.items[item.PK]
	if !ok {
		partition = map[int64]store.Item{}
		s.items[item.PK] = partition
	}
	if _, exists := partition[item.SK]; exists {
		return store.ErrConflict
	}
	partition[item.SK] = clone(item)
	return nil
}

func (s *Store) AdvanceWatermark(_ context.Context, pk string, sk int64, watermark int64, image []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[pk][sk]
	if !ok || item.LastCompactedTS > watermark {
		return store.ErrConflict
	}
	item.LastCompactedTS = watermark
	item.Image = append([]byte(nil), image...)
	s.items[pk][sk] = item
	return nil
}

func (s *Store) Delete(_ context.Context, pk string, sk int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items[pk], sk)
	return nil
}

func (s *Store) DeleteUpTo(_ context.Context, pk string, upTo int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for sk := range s.items[pk] {
		if sk <= upTo {
			delete(s.items[pk], sk)
			n++
		}
	}
	return n, nil
}

func (s *Store) sortedKeys(pk string) []int64 {
	keys := make([]int64, 0, len(s.items[pk]))
	for sk := range s.items[pk] {
		keys = append(keys, sk)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func clone(item store.Item) store.Item {
	if item.Data != nil {
		item.Data = append([]byte(nil), item.Data...)
	}
	if item.Image != nil {
		item.Image = append([]byte(nil), item.Image...)
	}
	return item
}

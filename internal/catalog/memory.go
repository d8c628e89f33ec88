package catalog

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is the reference in-memory backend. Writes take an exclusive
// lock so readers never observe a partially applied collection.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*Collection
	items       map[string]Item // catalog-wide, keyed by item id
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]*Collection),
		items:       make(map[string]Item),
	}
}

func (s *MemoryStore) GetCollection(_ context.Context, id string) (Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[id]
	if !ok {
		return Collection{}, fmt.Errorf("collection %q: %w", id, ErrNotFound)
	}
	out := *c
	out.ItemIDs = append([]string(nil), c.ItemIDs...)
	return out, nil
}

func (s *MemoryStore) ListCollections(_ context.Context) ([]Collection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Collection, 0, len(s.collections))
	for _, c := range s.collections {
		cp := *c
		cp.ItemIDs = append([]string(nil), c.ItemIDs...)
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) ListItems(_ context.Context, collectionID string) ([]Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[collectionID]
	if !ok {
		return nil, fmt.Errorf("collection %q: %w", collectionID, ErrNotFound)
	}
	out := make([]Item, 0, len(c.ItemIDs))
	for _, id := range c.ItemIDs {
		out = append(out, s.items[id])
	}
	return out, nil
}

func (s *MemoryStore) GetItem(_ context.Context, collectionID, itemID string) (Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.collections[collectionID]; !ok {
		return Item{}, fmt.Errorf("collection %q: %w", collectionID, ErrNotFound)
	}
	it, ok := s.items[itemID]
	if !ok || it.CollectionID != collectionID {
		return Item{}, fmt.Errorf("item %q: %w", itemID, ErrNotFound)
	}
	return it, nil
}

func (s *MemoryStore) AddItem(_ context.Context, collectionID string, item Item) error {
	if err := item.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; ok {
		return fmt.Errorf("item %q: %w", item.ID, ErrDuplicateItem)
	}
	c, ok := s.collections[collectionID]
	if !ok {
		c = &Collection{ID: collectionID, Title: collectionID, Description: collectionID}
		s.collections[collectionID] = c
	}
	item.CollectionID = collectionID
	s.items[item.ID] = item
	c.ItemIDs = append(c.ItemIDs, item.ID)
	return nil
}

func (s *MemoryStore) ReplaceCollection(_ context.Context, collectionID string, items []Item) error {
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// ids owned by other collections must stay unique catalog-wide
	incoming := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, ok := incoming[it.ID]; ok {
			return fmt.Errorf("item %q: %w", it.ID, ErrDuplicateItem)
		}
		incoming[it.ID] = struct{}{}
		if prev, ok := s.items[it.ID]; ok && prev.CollectionID != collectionID {
			return fmt.Errorf("item %q: %w", it.ID, ErrDuplicateItem)
		}
	}

	if old, ok := s.collections[collectionID]; ok {
		for _, id := range old.ItemIDs {
			delete(s.items, id)
		}
	}
	if len(items) == 0 {
		delete(s.collections, collectionID)
		return nil
	}

	c := &Collection{ID: collectionID, Title: collectionID, Description: collectionID}
	for _, it := range items {
		it.CollectionID = collectionID
		s.items[it.ID] = it
		c.ItemIDs = append(c.ItemIDs, it.ID)
	}
	s.collections[collectionID] = c
	return nil
}

package catalog

import (
	"context"
	"time"

	"github.com/rastac/rastac/internal/observability"
)

// instrumentedStore records an operation duration histogram around every
// store call.
type instrumentedStore struct {
	next Store
}

// Instrument wraps a store with per-operation metrics.
func Instrument(next Store) Store {
	return &instrumentedStore{next: next}
}

func (s *instrumentedStore) GetCollection(ctx context.Context, id string) (Collection, error) {
	start := time.Now()
	c, err := s.next.GetCollection(ctx, id)
	observability.ObserveStoreOp("get_collection", err, time.Since(start).Seconds())
	return c, err
}

func (s *instrumentedStore) ListCollections(ctx context.Context) ([]Collection, error) {
	start := time.Now()
	cs, err := s.next.ListCollections(ctx)
	observability.ObserveStoreOp("list_collections", err, time.Since(start).Seconds())
	return cs, err
}

func (s *instrumentedStore) ListItems(ctx context.Context, collectionID string) ([]Item, error) {
	start := time.Now()
	items, err := s.next.ListItems(ctx, collectionID)
	observability.ObserveStoreOp("list_items", err, time.Since(start).Seconds())
	return items, err
}

func (s *instrumentedStore) GetItem(ctx context.Context, collectionID, itemID string) (Item, error) {
	start := time.Now()
	it, err := s.next.GetItem(ctx, collectionID, itemID)
	observability.ObserveStoreOp("get_item", err, time.Since(start).Seconds())
	return it, err
}

func (s *instrumentedStore) AddItem(ctx context.Context, collectionID string, item Item) error {
	start := time.Now()
	err := s.next.AddItem(ctx, collectionID, item)
	observability.ObserveStoreOp("add_item", err, time.Since(start).Seconds())
	return err
}

func (s *instrumentedStore) ReplaceCollection(ctx context.Context, collectionID string, items []Item) error {
	start := time.Now()
	err := s.next.ReplaceCollection(ctx, collectionID, items)
	observability.ObserveStoreOp("replace_collection", err, time.Since(start).Seconds())
	return err
}

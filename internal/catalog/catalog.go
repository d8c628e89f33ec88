// Package catalog defines the collection/item model and the backing store
// interface and implementations.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
)

var (
	// ErrNotFound is returned when a collection or item does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateItem is returned when an item id already exists anywhere
	// in the catalog. It fails that single add, not the ingestion run.
	ErrDuplicateItem = errors.New("duplicate item id")

	// ErrStoreUnavailable wraps backend failures (storage down, corrupt).
	ErrStoreUnavailable = errors.New("catalog store unavailable")
)

// Item is one catalogued raster dataset. Items are immutable once added.
type Item struct {
	ID            string
	CollectionID  string
	Footprint     orb.Geometry // Polygon or MultiPolygon, EPSG:4326
	BBox          orb.Bound
	Properties    map[string]any
	SourceLocator string
}

// Collection groups the items discovered under one directory or prefix.
// ItemIDs preserve discovery order.
type Collection struct {
	ID          string
	Title       string
	Description string
	ItemIDs     []string
}

// NewItem builds an item, deriving the bbox from the footprint.
func NewItem(id, collectionID string, footprint orb.Geometry, properties map[string]any, locator string) (Item, error) {
	it := Item{
		ID:            id,
		CollectionID:  collectionID,
		Footprint:     footprint,
		Properties:    properties,
		SourceLocator: locator,
	}
	if err := it.Validate(); err != nil {
		return Item{}, err
	}
	it.BBox = footprint.Bound()
	return it, nil
}

func (i Item) Validate() error {
	if i.ID == "" {
		return errors.New("item id is required")
	}
	if i.CollectionID == "" {
		return errors.New("item collection id is required")
	}
	switch fp := i.Footprint.(type) {
	case orb.Polygon:
		if len(fp) == 0 || len(fp[0]) < 3 {
			return fmt.Errorf("item %s: empty footprint polygon", i.ID)
		}
	case orb.MultiPolygon:
		if len(fp) == 0 {
			return fmt.Errorf("item %s: empty footprint multipolygon", i.ID)
		}
	default:
		return fmt.Errorf("item %s: footprint must be a polygon or multipolygon", i.ID)
	}
	return nil
}

// SpatialResolution returns the item's ground sample distance property, if
// it carries one.
func (i Item) SpatialResolution() (float64, bool) {
	v, ok := i.Properties["spatial_resolution"]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	}
	return 0, false
}

// Store is the storage-agnostic catalog contract. Reads are safe for
// concurrent use; writes happen during ingestion and re-scans only.
type Store interface {
	// GetCollection returns a collection by id, or ErrNotFound.
	GetCollection(ctx context.Context, id string) (Collection, error)

	// ListCollections returns every collection, ordered by id.
	ListCollections(ctx context.Context) ([]Collection, error)

	// ListItems returns a collection's items in insertion order, or
	// ErrNotFound for an unknown collection.
	ListItems(ctx context.Context, collectionID string) ([]Item, error)

	// GetItem returns a single item, or ErrNotFound.
	GetItem(ctx context.Context, collectionID, itemID string) (Item, error)

	// AddItem appends an item, creating the collection on first reference.
	// Fails with ErrDuplicateItem if the item id exists catalog-wide.
	AddItem(ctx context.Context, collectionID string, item Item) error

	// ReplaceCollection atomically swaps a collection's items. Readers see
	// either the old set or the new set, never a partial one. An empty
	// item list removes the collection.
	ReplaceCollection(ctx context.Context, collectionID string, items []Item) error
}

// Package query implements the resolve/filter/sort/limit pipeline over the
// catalog store.
package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/rastac/rastac/internal/catalog"
	"github.com/rastac/rastac/internal/geom"
	"github.com/rastac/rastac/internal/observability"
)

var (
	// ErrFilterRequired is returned when sortby or limit is given without a
	// spatial filter.
	ErrFilterRequired = errors.New("sortby/limit require a spatial filter")

	// ErrInvalidLimit is returned for limit values below one.
	ErrInvalidLimit = errors.New("limit must be a positive integer")

	// ErrUnsupportedSortKey is returned for sort keys other than
	// spatial_resolution.
	ErrUnsupportedSortKey = errors.New("unsupported sort key")

	// ErrConflictingPredicates is returned when both intersects and
	// contains are given.
	ErrConflictingPredicates = errors.New("intersects and contains are mutually exclusive")
)

// SortKeyResolution is the only supported sort key.
const SortKeyResolution = "spatial_resolution"

// Params are the spatial query parameters of one request. Raw WKT is kept
// as given; parsing happens inside the engine so bad input surfaces as
// geom.ErrInvalidWKT.
type Params struct {
	Intersects string
	Contains   string
	SortBy     string
	Limit      int
	LimitSet   bool
}

// Filtered reports whether a spatial predicate is present.
func (p Params) Filtered() bool {
	return p.Intersects != "" || p.Contains != ""
}

func (p Params) predicate() (geom.Predicate, string) {
	if p.Contains != "" {
		return geom.Contains, p.Contains
	}
	return geom.Intersects, p.Intersects
}

func (p Params) validate() error {
	if p.Intersects != "" && p.Contains != "" {
		return ErrConflictingPredicates
	}
	if !p.Filtered() && (p.SortBy != "" || p.LimitSet) {
		return ErrFilterRequired
	}
	if p.LimitSet && p.Limit < 1 {
		return ErrInvalidLimit
	}
	if p.SortBy != "" {
		key := strings.TrimLeft(p.SortBy, "+-")
		if key != SortKeyResolution {
			return fmt.Errorf("%w: %q", ErrUnsupportedSortKey, key)
		}
	}
	return nil
}

// Engine evaluates spatial queries against the store, caching filtered
// result sets. Cache entries carry a per-collection generation, so a
// re-scan invalidates by bumping the generation rather than scanning the
// cache.
type Engine struct {
	store catalog.Store
	cache *lru.Cache[string, []catalog.Item]

	mu   sync.Mutex
	gens map[string]uint64
}

func NewEngine(store catalog.Store, cacheSize int) (*Engine, error) {
	if cacheSize < 1 {
		cacheSize = 1
	}
	c, err := lru.New[string, []catalog.Item](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Engine{store: store, cache: c, gens: make(map[string]uint64)}, nil
}

// Collection runs the pipeline for one collection. Without a filter it
// returns the collection's items as-is (the browse path); with a filter it
// returns the matching items, optionally sorted and limited.
func (e *Engine) Collection(ctx context.Context, collectionID string, p Params) ([]catalog.Item, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	items, err := e.store.ListItems(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if !p.Filtered() {
		return items, nil
	}

	pred, rawWKT := p.predicate()
	start := time.Now()
	matched, err := e.filter(ctx, collectionID, items, pred, rawWKT)
	if err != nil {
		return nil, err
	}
	observability.ObserveQuery(string(pred), time.Since(start).Seconds())

	return finish(matched, p), nil
}

// Search runs the pipeline across every collection.
func (e *Engine) Search(ctx context.Context, p Params) ([]catalog.Item, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	colls, err := e.store.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	var all []catalog.Item
	if !p.Filtered() {
		for _, c := range colls {
			items, err := e.store.ListItems(ctx, c.ID)
			if err != nil && !errors.Is(err, catalog.ErrNotFound) {
				return nil, err
			}
			all = append(all, items...)
		}
		return finish(all, p), nil
	}

	pred, rawWKT := p.predicate()
	start := time.Now()
	for _, c := range colls {
		items, err := e.store.ListItems(ctx, c.ID)
		if err != nil {
			if errors.Is(err, catalog.ErrNotFound) {
				continue
			}
			return nil, err
		}
		matched, err := e.filter(ctx, c.ID, items, pred, rawWKT)
		if err != nil {
			return nil, err
		}
		all = append(all, matched...)
	}
	observability.ObserveQuery(string(pred), time.Since(start).Seconds())

	return finish(all, p), nil
}

// InvalidateCollection drops cached results for a collection. Called after
// a re-scan swaps the collection's items.
func (e *Engine) InvalidateCollection(collectionID string) {
	e.mu.Lock()
	e.gens[collectionID]++
	e.mu.Unlock()
}

func (e *Engine) generation(collectionID string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gens[collectionID]
}

func (e *Engine) filter(ctx context.Context, collectionID string, items []catalog.Item, pred geom.Predicate, rawWKT string) ([]catalog.Item, error) {
	query, err := geom.Parse(rawWKT)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("q:%s:%d:%s:%x",
		collectionID, e.generation(collectionID), pred, xxhash.Sum64String(rawWKT))
	if cached, ok := e.cache.Get(key); ok {
		observability.IncQueryCacheHit()
		return cached, nil
	}
	observability.IncQueryCacheMiss()

	matched := make([]catalog.Item, 0, len(items))
	for _, it := range items {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		ok, err := geom.Evaluate(pred, query, it.Footprint)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, it)
		}
	}
	e.cache.Add(key, matched)
	return matched, nil
}

// finish applies sort and limit. Cached slices are never mutated.
func finish(items []catalog.Item, p Params) []catalog.Item {
	out := items
	if p.SortBy != "" {
		out = append([]catalog.Item(nil), items...)
		descending := strings.HasPrefix(p.SortBy, "-")
		sort.SliceStable(out, func(i, j int) bool {
			ri, iok := out[i].SpatialResolution()
			rj, jok := out[j].SpatialResolution()
			// items without the property sort last either direction
			if iok != jok {
				return iok
			}
			if !iok {
				return false
			}
			if descending {
				return ri > rj
			}
			return ri < rj
		})
	}
	if p.LimitSet && p.Limit < len(out) {
		out = out[:p.Limit]
	}
	return out
}

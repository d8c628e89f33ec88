package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// Key layout:
//
//	cat:item:<id>          item document (JSON)
//	cat:coll:<collection>  list of item ids, insertion order
//	cat:collections        set of collection ids
const (
	itemKeyPrefix = "cat:item:"
	collKeyPrefix = "cat:coll:"
	collSetKey    = "cat:collections"
)

// RedisStore keeps the catalog in Redis. Writes come from the ingestion
// pipeline and the re-scan consumer, which serialize per collection;
// swaps run in a MULTI/EXEC transaction so readers never see a partial
// collection.
type RedisStore struct {
	rdb *redis.Client
}

type RedisOption func(*redis.Options)

func WithDialTimeout(d time.Duration) RedisOption {
	return func(o *redis.Options) { o.DialTimeout = d }
}

func NewRedisStore(ctx context.Context, addr string, opts ...RedisOption) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	ro := &redis.Options{
		Addr:         addr,
		PoolSize:     32,
		MinIdleConns: 2,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
	}
	for _, f := range opts {
		f(ro)
	}
	rdb := redis.NewClient(ro)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("%w: redis ping: %v", ErrStoreUnavailable, err)
	}
	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) GetCollection(ctx context.Context, id string) (Collection, error) {
	ids, err := s.rdb.LRange(ctx, collKeyPrefix+id, 0, -1).Result()
	if err != nil {
		return Collection{}, fmt.Errorf("%w: redis LRANGE: %v", ErrStoreUnavailable, err)
	}
	if len(ids) == 0 {
		return Collection{}, fmt.Errorf("collection %q: %w", id, ErrNotFound)
	}
	return Collection{ID: id, Title: id, Description: id, ItemIDs: ids}, nil
}

func (s *RedisStore) ListCollections(ctx context.Context) ([]Collection, error) {
	ids, err := s.rdb.SMembers(ctx, collSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis SMEMBERS: %v", ErrStoreUnavailable, err)
	}
	out := make([]Collection, 0, len(ids))
	for _, id := range ids {
		c, err := s.GetCollection(ctx, id)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *RedisStore) ListItems(ctx context.Context, collectionID string) ([]Item, error) {
	c, err := s.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(c.ItemIDs))
	for _, id := range c.ItemIDs {
		keys = append(keys, itemKeyPrefix+id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis MGET: %v", ErrStoreUnavailable, err)
	}
	out := make([]Item, 0, len(vals))
	for i, v := range vals {
		raw, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: item %q missing from store", ErrStoreUnavailable, c.ItemIDs[i])
		}
		it, err := decodeItem([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		out = append(out, it)
	}
	return out, nil
}

func (s *RedisStore) GetItem(ctx context.Context, collectionID, itemID string) (Item, error) {
	raw, err := s.rdb.Get(ctx, itemKeyPrefix+itemID).Result()
	if errors.Is(err, redis.Nil) {
		return Item{}, fmt.Errorf("item %q: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return Item{}, fmt.Errorf("%w: redis GET: %v", ErrStoreUnavailable, err)
	}
	it, err := decodeItem([]byte(raw))
	if err != nil {
		return Item{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if it.CollectionID != collectionID {
		return Item{}, fmt.Errorf("item %q: %w", itemID, ErrNotFound)
	}
	return it, nil
}

func (s *RedisStore) AddItem(ctx context.Context, collectionID string, item Item) error {
	if err := item.Validate(); err != nil {
		return err
	}
	item.CollectionID = collectionID
	doc, err := encodeItem(item)
	if err != nil {
		return err
	}

	// the id claim and the list append commit in one EXEC; a concurrent
	// claim of the same id aborts via the watched key
	key := itemKeyPrefix + item.ID
	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrDuplicateItem
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, doc, 0)
			p.RPush(ctx, collKeyPrefix+collectionID, item.ID)
			p.SAdd(ctx, collSetKey, collectionID)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, ErrDuplicateItem) {
		return fmt.Errorf("item %q: %w", item.ID, ErrDuplicateItem)
	}
	if err != nil {
		return fmt.Errorf("%w: redis tx: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *RedisStore) ReplaceCollection(ctx context.Context, collectionID string, items []Item) error {
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return err
		}
	}

	seen := make(map[string]struct{}, len(items))
	docs := make([][]byte, len(items))
	for i, it := range items {
		if _, ok := seen[it.ID]; ok {
			return fmt.Errorf("item %q: %w", it.ID, ErrDuplicateItem)
		}
		seen[it.ID] = struct{}{}

		raw, err := s.rdb.Get(ctx, itemKeyPrefix+it.ID).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: redis GET: %v", ErrStoreUnavailable, err)
		}
		if err == nil {
			prev, derr := decodeItem([]byte(raw))
			if derr == nil && prev.CollectionID != collectionID {
				return fmt.Errorf("item %q: %w", it.ID, ErrDuplicateItem)
			}
		}

		it.CollectionID = collectionID
		doc, err := encodeItem(it)
		if err != nil {
			return err
		}
		docs[i] = doc
	}

	oldIDs, err := s.rdb.LRange(ctx, collKeyPrefix+collectionID, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("%w: redis LRANGE: %v", ErrStoreUnavailable, err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, id := range oldIDs {
			p.Del(ctx, itemKeyPrefix+id)
		}
		p.Del(ctx, collKeyPrefix+collectionID)
		if len(items) == 0 {
			p.SRem(ctx, collSetKey, collectionID)
			return nil
		}
		for i, it := range items {
			p.Set(ctx, itemKeyPrefix+it.ID, docs[i], 0)
			p.RPush(ctx, collKeyPrefix+collectionID, it.ID)
		}
		p.SAdd(ctx, collSetKey, collectionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: redis pipeline: %v", ErrStoreUnavailable, err)
	}
	return nil
}

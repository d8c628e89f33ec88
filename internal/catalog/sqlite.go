package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// SqliteStore keeps the catalog in a single SQLite database.
//
// Table:
//
//	items(id, collection, seq, doc)  PRIMARY KEY (id)
//
// seq preserves insertion order within a collection.
type SqliteStore struct {
	db *sql.DB
}

func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		seq INTEGER NOT NULL,
		doc TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS items_collection ON items (collection, seq)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) GetCollection(ctx context.Context, id string) (Collection, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id FROM items WHERE collection = ? ORDER BY seq", id)
	if err != nil {
		return Collection{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()
	c := Collection{ID: id, Title: id, Description: id}
	for rows.Next() {
		var itemID string
		if err := rows.Scan(&itemID); err != nil {
			return Collection{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		c.ItemIDs = append(c.ItemIDs, itemID)
	}
	if err := rows.Err(); err != nil {
		return Collection{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(c.ItemIDs) == 0 {
		return Collection{}, fmt.Errorf("collection %q: %w", id, ErrNotFound)
	}
	return c, nil
}

func (s *SqliteStore) ListCollections(ctx context.Context) ([]Collection, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT collection FROM items ORDER BY collection")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	out := make([]Collection, 0, len(ids))
	for _, id := range ids {
		c, err := s.GetCollection(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *SqliteStore) ListItems(ctx context.Context, collectionID string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT doc FROM items WHERE collection = ? ORDER BY seq", collectionID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		it, err := decodeItem([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("collection %q: %w", collectionID, ErrNotFound)
	}
	return out, nil
}

func (s *SqliteStore) GetItem(ctx context.Context, collectionID, itemID string) (Item, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT doc FROM items WHERE collection = ? AND id = ?",
		collectionID, itemID,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, fmt.Errorf("item %q: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return Item{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	it, err := decodeItem([]byte(raw))
	if err != nil {
		return Item{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return it, nil
}

func (s *SqliteStore) AddItem(ctx context.Context, collectionID string, item Item) error {
	if err := item.Validate(); err != nil {
		return err
	}
	item.CollectionID = collectionID
	doc, err := encodeItem(item)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM items WHERE id = ?", item.ID).Scan(&exists); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if exists > 0 {
		return fmt.Errorf("item %q: %w", item.ID, ErrDuplicateItem)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO items (id, collection, seq, doc)
		 VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM items WHERE collection = ?), ?)`,
		item.ID, collectionID, collectionID, string(doc),
	); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *SqliteStore) ReplaceCollection(ctx context.Context, collectionID string, items []Item) error {
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it.ID]; ok {
			return fmt.Errorf("item %q: %w", it.ID, ErrDuplicateItem)
		}
		seen[it.ID] = struct{}{}
		var other int
		if err := tx.QueryRowContext(ctx,
			"SELECT COUNT(1) FROM items WHERE id = ? AND collection != ?",
			it.ID, collectionID).Scan(&other); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if other > 0 {
			return fmt.Errorf("item %q: %w", it.ID, ErrDuplicateItem)
		}
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM items WHERE collection = ?", collectionID); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	for i, it := range items {
		it.CollectionID = collectionID
		doc, err := encodeItem(it)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO items (id, collection, seq, doc) VALUES (?, ?, ?, ?)",
			it.ID, collectionID, i+1, string(doc),
		); err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

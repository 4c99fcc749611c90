package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const defaultQueryLimit = 10

const schema = `
CREATE TABLE IF NOT EXISTS items (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	repo       TEXT NOT NULL DEFAULT '',
	kind       TEXT NOT NULL DEFAULT '',
	content    TEXT NOT NULL,
	tags       TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_items_repo ON items(repo);
CREATE INDEX IF NOT EXISTS idx_items_kind ON items(kind);
`

// SQLiteStore is a file-backed Store. Matching is plain substring search
// over content plus tag filtering; good enough to seed prompts.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the store at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create knowledge dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Store(ctx context.Context, item Item) error {
	if strings.TrimSpace(item.Content) == "" {
		return fmt.Errorf("item content is required")
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO items (repo, kind, content, tags, created_at) VALUES (?, ?, ?, ?, ?)`,
		item.Repo, item.Kind, item.Content, strings.Join(item.Tags, ","), item.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to store knowledge item: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, text string, f Filters) ([]Item, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	var conds []string
	var args []any
	if text != "" {
		conds = append(conds, "content LIKE ?")
		args = append(args, "%"+text+"%")
	}
	if f.Repo != "" {
		conds = append(conds, "repo = ?")
		args = append(args, f.Repo)
	}
	if f.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, f.Kind)
	}
	for _, tag := range f.Tags {
		conds = append(conds, "(',' || tags || ',') LIKE ?")
		args = append(args, "%,"+tag+",%")
	}

	q := "SELECT id, repo, kind, content, tags, created_at FROM items"
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		var tags string
		if err := rows.Scan(&it.ID, &it.Repo, &it.Kind, &it.Content, &tags, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan knowledge item: %w", err)
		}
		if tags != "" {
			it.Tags = strings.Split(tags, ",")
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

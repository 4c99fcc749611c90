// Package knowledge persists prior learnings (build outcomes, fix
// strategies) and retrieves them to seed agent prompts.
package knowledge

import (
	"context"
	"time"
)

// Item is one stored learning.
type Item struct {
	ID        int64     `json:"id"`
	Repo      string    `json:"repo,omitempty"`
	Kind      string    `json:"kind"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Filters narrows a query. Zero values match everything.
type Filters struct {
	Repo string
	Kind string
	Tags []string
	// Limit bounds the result count; 0 means the store default.
	Limit int
}

// Store is the retrieval/persistence contract the orchestration core
// consumes. Implementations decide how "matching" works; callers treat
// results as best-effort relevance, not exact search.
type Store interface {
	Query(ctx context.Context, text string, f Filters) ([]Item, error)
	Store(ctx context.Context, item Item) error
	Close() error
}

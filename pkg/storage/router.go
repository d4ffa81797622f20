package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/Usman209/data-collection/pkg/common/logger"
)

// Collection is a resolved storage partition. Handles are shared between
// workers and safe for concurrent inserts.
type Collection struct {
	engine CollectionEngine
	key    string
}

func (c *Collection) Key() string {
	return c.key
}

func (c *Collection) Insert(ctx context.Context, doc *Document) error {
	return c.engine.Insert(ctx, c.key, doc)
}

// Router resolves (type, date) collection keys to storage handles, creating
// collections lazily on first use. Resolved handles are cached for the life of
// the process and never evicted; cardinality is bounded by the number of
// distinct (type, date) pairs observed.
type Router struct {
	engine CollectionEngine

	mu          sync.RWMutex
	collections map[string]*Collection
}

func NewRouter(engine CollectionEngine) *Router {
	return &Router{
		engine:      engine,
		collections: make(map[string]*Collection),
	}
}

// Resolve returns the handle for key, creating the backing collection if this
// is the first time the key is seen. Safe under concurrent resolution of the
// same key: creation of an already-existing collection is a no-op and the
// first cached handle wins.
func (r *Router) Resolve(ctx context.Context, key string) (*Collection, error) {
	r.mu.RLock()
	col, ok := r.collections[key]
	r.mu.RUnlock()
	if ok {
		return col, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if col, ok := r.collections[key]; ok {
		return col, nil
	}

	exists, err := r.engine.HasCollection(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("checking collection %s: %w", key, err)
	}
	if !exists {
		if err := r.engine.CreateCollection(ctx, key); err != nil {
			return nil, err
		}
		logger.Log.WithField("collection", key).Info("Created collection")
	}

	col = &Collection{engine: r.engine, key: key}
	r.collections[key] = col
	return col, nil
}

// Cached reports how many collection handles the registry currently holds.
func (r *Router) Cached() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.collections)
}

package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/leonardotrapani/factstream/internal/model"
)

// CachedSearcher memoizes search results per query and limit
type CachedSearcher struct {
	next  Searcher
	cache *gocache.Cache
}

func NewCachedSearcher(next Searcher, ttl time.Duration) *CachedSearcher {
	return &CachedSearcher{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *CachedSearcher) Search(ctx context.Context, query string, limit int) ([]model.EvidenceItem, error) {
	key := fmt.Sprintf("%d|%s", limit, strings.ToLower(strings.TrimSpace(query)))
	if v, ok := c.cache.Get(key); ok {
		return append([]model.EvidenceItem(nil), v.([]model.EvidenceItem)...), nil
	}

	items, err := c.next.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, append([]model.EvidenceItem(nil), items...))
	return items, nil
}

// Flush drops every cached result, used after the knowledge base changes
func (c *CachedSearcher) Flush() {
	c.cache.Flush()
}

package scout

import (
	"context"
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// ParsedFile is what the parse cache stores: the extraction results for one
// file at one content hash, cheap enough to round-trip through Redis as
// JSON without carrying the AST itself.
type ParsedFile struct {
	Language    string
	RawImports  []string
	Definitions []Symbol
	Calls       []CallRef
	ParseError  string
}

// ParseCache is the scout's parse cache: an in-memory LRU in front of an
// optional Redis tier, keyed by path+contentHash so a file is only
// reparsed when its content actually changes. Owned by the scout, but
// usable standalone since nothing here depends on Scout.
type ParseCache struct {
	l1  *lru.Cache[string, *ParsedFile]
	l2  *redis.Client
	ttl time.Duration
}

// NewParseCache creates a parse cache with an in-memory LRU of the given
// size. Pass a nil redis client to run L1-only.
func NewParseCache(size int, l2 *redis.Client) *ParseCache {
	if size <= 0 {
		size = 2000
	}
	l1, _ := lru.New[string, *ParsedFile](size)
	return &ParseCache{l1: l1, l2: l2, ttl: 24 * time.Hour}
}

func cacheKey(path, hash string) string {
	return "scout:parse:" + path + ":" + hash
}

// Get returns the cached extraction for path at the given content hash, if
// present in either tier. An L2 hit is promoted into L1.
func (c *ParseCache) Get(ctx context.Context, path, hash string) (*ParsedFile, bool) {
	key := cacheKey(path, hash)
	if pf, ok := c.l1.Get(key); ok {
		return pf, true
	}
	if c.l2 == nil {
		return nil, false
	}

	raw, err := c.l2.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	var pf ParsedFile
	if err := json.Unmarshal([]byte(raw), &pf); err != nil {
		return nil, false
	}
	c.l1.Add(key, &pf)
	return &pf, true
}

// Put stores an extraction in both tiers.
func (c *ParseCache) Put(ctx context.Context, path, hash string, pf *ParsedFile) {
	key := cacheKey(path, hash)
	c.l1.Add(key, pf)
	if c.l2 == nil {
		return
	}
	data, err := json.Marshal(pf)
	if err != nil {
		return
	}
	_ = c.l2.Set(ctx, key, data, c.ttl).Err()
}

// Clear empties the in-memory tier. The Redis tier, if any, expires
// naturally via ttl rather than being flushed, since it may be shared by
// other processes.
func (c *ParseCache) Clear() {
	c.l1.Purge()
}

package valorant

import (
	"sync"
	"time"

	"github.com/hitoshi/vavastore/internal/model"
)

// catalogCache はカテゴリごとのカタログをTTL付きで保持する。
// 明示的な無効化は行わず、鮮度は上流とTTLに委ねる。
// 同時にミスした複数リクエストがそれぞれ取得に行くことは許容する。
type catalogCache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[model.Category]cachedCatalog
}

type cachedCatalog struct {
	entries   []model.CatalogEntry
	expiresAt time.Time
}

// newCatalogCache はキャッシュを生成する。ttlが0以下の場合はキャッシュしない。
func newCatalogCache(ttl time.Duration) *catalogCache {
	return &catalogCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[model.Category]cachedCatalog),
	}
}

// enabled はキャッシュが有効かどうかを返す。
func (c *catalogCache) enabled() bool {
	return c != nil && c.ttl > 0
}

// get は有効期限内のカタログを返す。
// 返したスライスは共有されるため、呼び出し側は変更してはならない。
func (c *catalogCache) get(category model.Category) ([]model.CatalogEntry, bool) {
	if !c.enabled() {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, ok := c.entries[category]
	if !ok || !c.now().Before(cached.expiresAt) {
		return nil, false
	}
	return cached.entries, true
}

// set は取得に成功したカタログを保存する。
func (c *catalogCache) set(category model.Category, entries []model.CatalogEntry) {
	if !c.enabled() {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[category] = cachedCatalog{
		entries:   entries,
		expiresAt: c.now().Add(c.ttl),
	}
}

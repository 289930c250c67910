package geoip

import "sync"

// decodeCache 解码缓存：规范化地址字节 -> 查询结果
//
// 容量固定，无淘汰策略：写满后新地址直接走解码路径、不再入缓存。
// 容量检查与插入在同一把写锁内完成，并发下不会明显超出容量。
// 负结果（NotFound）同样缓存，避免重复的无效查询开销。
type decodeCache struct {
	mu       sync.RWMutex
	capacity int
	entries  map[string]Result
}

func newDecodeCache(capacity int) *decodeCache {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	return &decodeCache{
		capacity: capacity,
		entries:  make(map[string]Result, capacity),
	}
}

// get 查询缓存，key 为 16 字节规范化地址
func (c *decodeCache) get(key string) (Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.entries[key]
	return r, ok
}

// put 写入缓存，容量已满时拒绝写入并返回 false
func (c *decodeCache) put(key string, r Result) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		return true
	}
	if len(c.entries) >= c.capacity {
		return false
	}
	c.entries[key] = r
	return true
}

// len 当前条目数
func (c *decodeCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.entries)
}

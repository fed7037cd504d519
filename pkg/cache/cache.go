package cache

import (
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// PlanCache 进程内只读视图缓存（周计划、今日计划、统计）
// key 以 "<userID>:" 为前缀，写操作后按用户整体失效
type PlanCache struct {
	c *gocache.Cache
}

// New 创建缓存；ttl<=0 时使用 go-cache 的永不过期
func New(ttl time.Duration) *PlanCache {
	cleanup := 2 * ttl
	if ttl <= 0 {
		ttl = gocache.NoExpiration
		cleanup = 10 * time.Minute
	}
	return &PlanCache{c: gocache.New(ttl, cleanup)}
}

// Key 拼接用户维度的缓存 key
func Key(userID string, parts ...string) string {
	return userID + ":" + strings.Join(parts, ":")
}

// Get 读取缓存
func (p *PlanCache) Get(key string) (interface{}, bool) {
	return p.c.Get(key)
}

// Set 写入缓存，使用默认过期时间
func (p *PlanCache) Set(key string, value interface{}) {
	p.c.SetDefault(key, value)
}

// InvalidateUser 清除某个用户的全部缓存
func (p *PlanCache) InvalidateUser(userID string) {
	prefix := userID + ":"
	for k := range p.c.Items() {
		if strings.HasPrefix(k, prefix) {
			p.c.Delete(k)
		}
	}
}

// Flush 清空全部缓存
func (p *PlanCache) Flush() {
	p.c.Flush()
}

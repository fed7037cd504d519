package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	pkgerrors "j-planner/backend/pkg/errors"
)

// Locker 用户级排程互斥
// 同一用户的读-改-写（重排、移动、删除）必须串行
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// ── Redis 锁 ──

// redisLockClient pkg/redis.Client 中锁相关的方法
type redisLockClient interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	Unlock(ctx context.Context, key, token string) error
}

type redisLocker struct {
	client redisLockClient
	ttl    time.Duration
	wait   time.Duration
	logger *zap.Logger
}

// NewRedisLocker 基于 Redis SET NX PX 的锁；wait 内拿不到锁返回 ErrLockBusy
func NewRedisLocker(client redisLockClient, ttl, wait time.Duration, logger *zap.Logger) Locker {
	return &redisLocker{client: client, ttl: ttl, wait: wait, logger: logger}
}

const lockRetryInterval = 50 * time.Millisecond

func (l *redisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	deadline := time.Now().Add(l.wait)
	for {
		token, ok, err := l.client.TryLock(ctx, key, l.ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			return func() {
				// 请求已取消时仍需释放
				if err := l.client.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
					l.logger.Warn("释放排程锁失败", zap.String("key", key), zap.Error(err))
				}
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, pkgerrors.ErrLockBusy
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}
}

// ── 进程内锁 ──

type memLocker struct {
	mu    sync.Mutex
	slots map[string]*memSlot
	wait  time.Duration
}

type memSlot struct {
	ch   chan struct{}
	refs int
}

// NewMemLocker 进程内按 key 互斥，未配置 Redis 时使用
func NewMemLocker(wait time.Duration) Locker {
	return &memLocker{slots: make(map[string]*memSlot), wait: wait}
}

func (l *memLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &memSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case slot.ch <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-slot.ch
				l.unref(key, slot)
			})
		}, nil
	case <-ctx.Done():
		l.unref(key, slot)
		return nil, ctx.Err()
	case <-timer.C:
		l.unref(key, slot)
		return nil, pkgerrors.ErrLockBusy
	}
}

func (l *memLocker) unref(key string, slot *memSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
}

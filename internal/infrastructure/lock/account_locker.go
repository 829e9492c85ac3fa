package lock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// AccountLocker 账户级互斥
//
// 所有触碰余额的操作（转账、放款）都必须先拿到涉及账户的锁。
// 多账户加锁前先按商户ID字典序排序，两笔方向相反的转账
// 因此不可能互相持有对方等待的锁。
type AccountLocker interface {
	// LockAccounts 按固定顺序锁定所有账户，返回释放函数
	LockAccounts(ctx context.Context, merchantIDs ...string) (func(), error)
}

// RedisAccountLocker 基于 Redis 分布式锁的实现，多实例部署用
type RedisAccountLocker struct {
	client     *redis.Client
	owner      string        // 锁持有者标识（实例ID）
	expiration time.Duration // 单账户锁过期时间
}

// NewRedisAccountLocker 创建 Redis 账户锁
// owner 通常传实例唯一标识，便于追踪锁的持有者
func NewRedisAccountLocker(client *redis.Client, owner string) *RedisAccountLocker {
	return &RedisAccountLocker{
		client:     client,
		owner:      owner,
		expiration: 30 * time.Second,
	}
}

func (r *RedisAccountLocker) LockAccounts(ctx context.Context, merchantIDs ...string) (func(), error) {
	sorted := sortedUnique(merchantIDs)

	acquired := make([]*DistributedLock, 0, len(sorted))
	release := func() {
		// 逆序释放
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].Unlock(context.Background())
		}
	}

	for _, id := range sorted {
		l := NewDistributedLock(r.client, accountLockKey(id), r.owner, r.expiration)
		if err := l.Lock(ctx, 100*time.Millisecond, 30); err != nil {
			release()
			return nil, err
		}
		acquired = append(acquired, l)
	}

	return release, nil
}

// LocalAccountLocker 进程内账户锁，单实例部署和测试用
type LocalAccountLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalAccountLocker() *LocalAccountLocker {
	return &LocalAccountLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *LocalAccountLocker) mutexFor(merchantID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[merchantID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[merchantID] = m
	}
	return m
}

func (l *LocalAccountLocker) LockAccounts(ctx context.Context, merchantIDs ...string) (func(), error) {
	sorted := sortedUnique(merchantIDs)

	held := make([]*sync.Mutex, 0, len(sorted))
	for _, id := range sorted {
		m := l.mutexFor(id)
		m.Lock()
		held = append(held, m)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}, nil
}

// sortedUnique 去重并按字典序排序，保证全局一致的加锁顺序
func sortedUnique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

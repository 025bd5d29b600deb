package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ErrLockHeld 表示该窗口已有一轮对话正在进行。
var ErrLockHeld = errors.New("turn lock held")

// TurnLock 在同一聊天窗口内串行化对话轮次。
type TurnLock interface {
	// Acquire 获取窗口锁，返回释放函数；锁已被占用时返回 ErrLockHeld。
	Acquire(ctx context.Context, windowID string) (release func(), err error)
}

// 仅当值与持有者令牌一致时才删除，避免误删其他请求重新获取的锁。
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisTurnLock struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewTurnLock 创建基于 Redis SET NX 的窗口锁，ttl 为持锁上限。
func NewTurnLock(redisClient *redis.Client, ttl time.Duration) TurnLock {
	return &redisTurnLock{redisClient: redisClient, ttl: ttl}
}

func turnLockKey(windowID string) string {
	return fmt.Sprintf("chat:turn:%s", windowID)
}

func (l *redisTurnLock) Acquire(ctx context.Context, windowID string) (func(), error) {
	key := turnLockKey(windowID)
	holder := uuid.NewString()
	ok, err := l.redisClient.SetNX(ctx, key, holder, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire turn lock: %w", err)
	}
	if !ok {
		return nil, ErrLockHeld
	}
	release := func() {
		// 请求可能已被取消，释放锁使用独立的上下文
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(releaseCtx, l.redisClient, []string{key}, holder).Err()
	}
	return release, nil
}

// NoopTurnLock 不做任何串行化，用于关闭 chat.serialize_turns 时。
type NoopTurnLock struct{}

func (NoopTurnLock) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// TokenStore 保存本地身份提供方的 refresh token 会话与 access token 黑名单。
type TokenStore interface {
	SaveRefreshSession(ctx context.Context, tokenID, userID string, ttl time.Duration) error
	// ConsumeRefreshSession 原子地取出并删除会话，返回其所属用户；不存在时返回空字符串。
	ConsumeRefreshSession(ctx context.Context, tokenID string) (string, error)
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type redisTokenStore struct {
	redisClient *redis.Client
}

// NewTokenStore 创建一个新的 TokenStore 实例。
func NewTokenStore(redisClient *redis.Client) TokenStore {
	return &redisTokenStore{redisClient: redisClient}
}

func refreshKey(tokenID string) string   { return fmt.Sprintf("auth:refresh:%s", tokenID) }
func blacklistKey(tokenID string) string { return fmt.Sprintf("auth:blacklist:%s", tokenID) }

func (s *redisTokenStore) SaveRefreshSession(ctx context.Context, tokenID, userID string, ttl time.Duration) error {
	if err := s.redisClient.Set(ctx, refreshKey(tokenID), userID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save refresh session: %w", err)
	}
	return nil
}

func (s *redisTokenStore) ConsumeRefreshSession(ctx context.Context, tokenID string) (string, error) {
	userID, err := s.redisClient.GetDel(ctx, refreshKey(tokenID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to consume refresh session: %w", err)
	}
	return userID, nil
}

func (s *redisTokenStore) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if err := s.redisClient.Set(ctx, blacklistKey(tokenID), "true", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (s *redisTokenStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := s.redisClient.Exists(ctx, blacklistKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token blacklist: %w", err)
	}
	return n > 0, nil
}

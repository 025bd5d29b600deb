package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"smart-journal-go/internal/model"
	"smart-journal-go/internal/repository"
	"smart-journal-go/pkg/hash"
	"smart-journal-go/pkg/token"
	"strings"
	"time"

	"gorm.io/gorm"
)

const minPasswordLength = 6

// LocalProvider 使用本地用户表、bcrypt 与 JWT 实现身份提供方。
// refresh token 一次性使用，登出的 access token 记入 Redis 黑名单直到过期。
type LocalProvider struct {
	users      repository.UserRepository
	tokens     repository.TokenStore
	jwtManager *token.JWTManager
}

// NewLocalProvider 创建一个新的 LocalProvider。
func NewLocalProvider(users repository.UserRepository, tokens repository.TokenStore, jwtManager *token.JWTManager) *LocalProvider {
	return &LocalProvider{users: users, tokens: tokens, jwtManager: jwtManager}
}

func (p *LocalProvider) verifyAccess(ctx context.Context, accessToken string) (*token.CustomClaims, error) {
	claims, err := p.jwtManager.VerifyToken(accessToken, token.TypeAccess)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	revoked, err := p.tokens.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, fmt.Errorf("%w: token revoked", ErrInvalidToken)
	}
	return claims, nil
}

func (p *LocalProvider) GetUser(ctx context.Context, accessToken string) (*model.User, error) {
	claims, err := p.verifyAccess(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	user, err := p.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user no longer exists", ErrInvalidToken)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return user, nil
}

func (p *LocalProvider) SignUp(ctx context.Context, email, password, fullName string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", ErrInvalidInput)
	}
	if len(password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLength)
	}

	// 1. 检查邮箱是否已注册
	_, err := p.users.FindByEmail(ctx, email)
	if err == nil {
		return nil, ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	// 2. 对密码进行哈希处理并创建用户
	hashed, err := hash.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &model.User{Email: email, FullName: strings.TrimSpace(fullName), PasswordHash: hashed}
	if err := p.users.Create(ctx, user); err != nil {
		// 并发注册时唯一索引兜底
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	// 3. 签发会话
	return p.issueSession(ctx, user)
}

func (p *LocalProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := p.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !hash.CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return p.issueSession(ctx, user)
}

func (p *LocalProvider) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	claims, err := p.jwtManager.VerifyToken(refreshToken, token.TypeRefresh)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	// refresh token 只能使用一次
	owner, err := p.tokens.ConsumeRefreshSession(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if owner == "" || owner != claims.UserID {
		return nil, fmt.Errorf("%w: refresh session not found", ErrInvalidToken)
	}
	user, err := p.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: user no longer exists", ErrInvalidToken)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return p.issueSession(ctx, user)
}

func (p *LocalProvider) SignOut(ctx context.Context, accessToken string) error {
	claims, err := p.verifyAccess(ctx, accessToken)
	if err != nil {
		return err
	}
	// token 的剩余有效期作为黑名单的过期时间
	return p.tokens.Revoke(ctx, claims.ID, time.Until(claims.ExpiresAt.Time))
}

func (p *LocalProvider) UpdateProfile(ctx context.Context, accessToken, fullName string) (*model.User, error) {
	user, err := p.GetUser(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if err := p.users.UpdateFullName(ctx, user.ID, fullName); err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return p.users.FindByID(ctx, user.ID)
}

func (p *LocalProvider) issueSession(ctx context.Context, user *model.User) (*Session, error) {
	access, _, err := p.jwtManager.GenerateToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	refresh, refreshClaims, err := p.jwtManager.GenerateRefreshToken(user.ID, user.Email)
	if err != nil {
		return nil, err
	}
	ttl := time.Until(refreshClaims.ExpiresAt.Time)
	if err := p.tokens.SaveRefreshSession(ctx, refreshClaims.ID, user.ID, ttl); err != nil {
		return nil, err
	}
	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(p.jwtManager.AccessTokenDuration().Seconds()),
		User:         user,
	}, nil
}

// Package identity 封装了身份提供方：校验 access token、签发与刷新会话、更新用户资料。
package identity

import (
	"context"
	"errors"
	"fmt"
	"smart-journal-go/internal/config"
	"smart-journal-go/internal/model"
	"smart-journal-go/internal/repository"
	"smart-journal-go/pkg/token"
)

var (
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidInput       = errors.New("invalid input")
)

// Session 是登录、注册或刷新后返回的令牌对。
// 托管服务要求邮箱确认时，注册结果只有 User 没有令牌。
type Session struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int         `json:"expires_in"`
	User         *model.User `json:"user"`
}

// Provider 是认证网关与认证接口依赖的身份提供方。
type Provider interface {
	GetUser(ctx context.Context, accessToken string) (*model.User, error)
	SignUp(ctx context.Context, email, password, fullName string) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
	UpdateProfile(ctx context.Context, accessToken, fullName string) (*model.User, error)
}

// New 根据 auth.provider 配置创建身份提供方。
func New(cfg config.AuthConfig, users repository.UserRepository, tokens repository.TokenStore) (Provider, error) {
	switch cfg.Provider {
	case "gotrue":
		if cfg.GoTrue.URL == "" {
			return nil, fmt.Errorf("auth.gotrue.url is required for the gotrue provider")
		}
		return NewGoTrueProvider(cfg.GoTrue), nil
	case "local", "":
		if cfg.JWT.Secret == "" {
			return nil, fmt.Errorf("auth.jwt.secret is required for the local provider")
		}
		jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
		return NewLocalProvider(users, tokens, jwtManager), nil
	default:
		return nil, fmt.Errorf("unknown auth provider %q", cfg.Provider)
	}
}

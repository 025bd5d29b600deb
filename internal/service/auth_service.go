package service

import (
	"context"
	"errors"
	"smart-journal-go/internal/model"
	"smart-journal-go/pkg/identity"
	"smart-journal-go/pkg/log"
	"strings"
)

// AuthService 接口定义了注册、登录、刷新与登出操作，实际校验交给身份提供方。
type AuthService interface {
	SignUp(ctx context.Context, email, password, fullName string) (*identity.Session, error)
	Login(ctx context.Context, email, password string) (*identity.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*identity.Session, error)
	Logout(ctx context.Context, accessToken string) error
	CurrentUser(ctx context.Context, accessToken string) (*model.User, error)
}

type authService struct {
	provider identity.Provider
}

// NewAuthService 创建一个新的 AuthService 实例。
func NewAuthService(provider identity.Provider) AuthService {
	return &authService{provider: provider}
}

// SignUp 处理用户注册。
func (s *authService) SignUp(ctx context.Context, email, password, fullName string) (*identity.Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, NewValidationError("email and password are required")
	}
	sess, err := s.provider.SignUp(ctx, email, password, fullName)
	if err != nil {
		return nil, translateIdentityError("注册", err)
	}
	return sess, nil
}

// Login 处理用户登录。
func (s *authService) Login(ctx context.Context, email, password string) (*identity.Session, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, NewValidationError("email and password are required")
	}
	sess, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, translateIdentityError("登录", err)
	}
	return sess, nil
}

// Refresh 用 refresh token 换取新的 token 对。
func (s *authService) Refresh(ctx context.Context, refreshToken string) (*identity.Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, NewValidationError("refresh_token is required")
	}
	sess, err := s.provider.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, translateIdentityError("刷新 token", err)
	}
	return sess, nil
}

// Logout 使当前 access token 失效。
func (s *authService) Logout(ctx context.Context, accessToken string) error {
	if err := s.provider.SignOut(ctx, accessToken); err != nil {
		return translateIdentityError("登出", err)
	}
	return nil
}

func (s *authService) CurrentUser(ctx context.Context, accessToken string) (*model.User, error) {
	user, err := s.provider.GetUser(ctx, accessToken)
	if err != nil {
		return nil, translateIdentityError("校验 token", err)
	}
	return user, nil
}

// translateIdentityError 把身份提供方的错误映射为 AppError。
// 认证类失败统一返回通用的 401 信息，原因只写入日志。
func translateIdentityError(action string, err error) error {
	switch {
	case errors.Is(err, identity.ErrInvalidToken), errors.Is(err, identity.ErrInvalidCredentials):
		log.Warnf("%s失败: %v", action, err)
		return ErrUnauthorized
	case errors.Is(err, identity.ErrEmailTaken):
		return ErrEmailTaken
	case errors.Is(err, identity.ErrInvalidInput):
		msg := strings.TrimPrefix(err.Error(), identity.ErrInvalidInput.Error()+": ")
		return NewValidationError(msg)
	default:
		log.Errorf("%s时身份服务出错: %v", action, err)
		return err
	}
}

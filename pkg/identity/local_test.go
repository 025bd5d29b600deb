package identity

import (
	"context"
	"errors"
	"smart-journal-go/internal/model"
	"smart-journal-go/internal/repository"
	"smart-journal-go/pkg/token"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// memoryUsers 是 UserRepository 的内存实现。
type memoryUsers struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newMemoryUsers() *memoryUsers {
	return &memoryUsers{users: map[string]*model.User{}}
}

func (m *memoryUsers) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			// 与 users.email 唯一索引在 TranslateError 下的表现一致
			return gorm.ErrDuplicatedKey
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memoryUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memoryUsers) FindByID(_ context.Context, userID string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memoryUsers) UpdateFullName(_ context.Context, userID, fullName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	u.FullName = fullName
	return nil
}

func newLocalProvider(t *testing.T) *LocalProvider {
	t.Helper()
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLocalProvider(newMemoryUsers(), repository.NewTokenStore(client), token.NewJWTManager("test-secret", 1, 7))
}

func TestLocalSignUpAndGetUser(t *testing.T) {
	p := newLocalProvider(t)
	ctx := context.Background()

	sess, err := p.SignUp(ctx, " Ada@Example.com ", "secret1", "Ada")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if sess.AccessToken == "" || sess.RefreshToken == "" || sess.ExpiresIn != 3600 {
		t.Fatalf("unexpected session %+v", sess)
	}

	user, err := p.GetUser(ctx, sess.AccessToken)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if user.Email != "ada@example.com" || user.FullName != "Ada" {
		t.Errorf("unexpected user %+v", user)
	}

	if _, err := p.SignUp(ctx, "ada@example.com", "secret1", ""); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

// staleUsers 的 FindByEmail 总是查不到，模拟两个注册请求同时通过了邮箱检查。
type staleUsers struct {
	*memoryUsers
}

func (staleUsers) FindByEmail(context.Context, string) (*model.User, error) {
	return nil, gorm.ErrRecordNotFound
}

func TestLocalSignUpConcurrentDuplicateIsEmailTaken(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	p := NewLocalProvider(staleUsers{newMemoryUsers()}, repository.NewTokenStore(client), token.NewJWTManager("test-secret", 1, 7))
	ctx := context.Background()

	if _, err := p.SignUp(ctx, "ada@example.com", "secret1", ""); err != nil {
		t.Fatalf("first SignUp failed: %v", err)
	}
	if _, err := p.SignUp(ctx, "ada@example.com", "secret1", ""); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}
}

func TestLocalSignUpValidation(t *testing.T) {
	p := newLocalProvider(t)
	if _, err := p.SignUp(context.Background(), "not-an-email", "secret1", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for email, got %v", err)
	}
	if _, err := p.SignUp(context.Background(), "ada@example.com", "123", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for password, got %v", err)
	}
}

func TestLocalSignIn(t *testing.T) {
	p := newLocalProvider(t)
	ctx := context.Background()
	if _, err := p.SignUp(ctx, "ada@example.com", "secret1", ""); err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	if _, err := p.SignIn(ctx, "ada@example.com", "wrong-pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := p.SignIn(ctx, "nobody@example.com", "secret1"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials for unknown user, got %v", err)
	}
	if _, err := p.SignIn(ctx, "ada@example.com", "secret1"); err != nil {
		t.Errorf("SignIn failed: %v", err)
	}
}

func TestLocalRefreshRotates(t *testing.T) {
	p := newLocalProvider(t)
	ctx := context.Background()
	sess, err := p.SignUp(ctx, "ada@example.com", "secret1", "")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}

	next, err := p.Refresh(ctx, sess.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if next.RefreshToken == sess.RefreshToken {
		t.Error("expected a new refresh token")
	}
	if _, err := p.Refresh(ctx, sess.RefreshToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected reused refresh token to fail, got %v", err)
	}
	if _, err := p.Refresh(ctx, next.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expected access token to be rejected as refresh token, got %v", err)
	}
}

func TestLocalSignOutRevokesAccessToken(t *testing.T) {
	p := newLocalProvider(t)
	ctx := context.Background()
	sess, err := p.SignUp(ctx, "ada@example.com", "secret1", "")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	if err := p.SignOut(ctx, sess.AccessToken); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if _, err := p.GetUser(ctx, sess.AccessToken); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected revoked token to be rejected, got %v", err)
	}
}

func TestLocalUpdateProfile(t *testing.T) {
	p := newLocalProvider(t)
	ctx := context.Background()
	sess, err := p.SignUp(ctx, "ada@example.com", "secret1", "")
	if err != nil {
		t.Fatalf("SignUp failed: %v", err)
	}
	user, err := p.UpdateProfile(ctx, sess.AccessToken, "Ada Lovelace")
	if err != nil {
		t.Fatalf("UpdateProfile failed: %v", err)
	}
	if user.FullName != "Ada Lovelace" {
		t.Errorf("expected updated name, got %q", user.FullName)
	}
}

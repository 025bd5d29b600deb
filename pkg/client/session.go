package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"smart-journal-go/internal/model"
	"sync"

	"gopkg.in/yaml.v3"
)

// Tokens 是一对 access / refresh token。
type Tokens struct {
	AccessToken  string `yaml:"access_token"`
	RefreshToken string `yaml:"refresh_token"`
}

// SessionData 是会话的可持久化快照。
type SessionData struct {
	Tokens `yaml:",inline"`
	User   *model.User `yaml:"user,omitempty"`
}

// Store 持久化会话，FileStore 是其文件实现。
type Store interface {
	Load() (*SessionData, error)
	Save(data SessionData) error
	Clear() error
}

// Session 保存当前用户与 token 对，可被多个 goroutine 同时使用。
type Session struct {
	mu     sync.RWMutex
	tokens Tokens
	user   *model.User
	store  Store
}

// NewSession 创建会话。store 不为 nil 时从中恢复已保存的会话。
func NewSession(store Store) (*Session, error) {
	s := &Session{store: store}
	if store == nil {
		return s, nil
	}
	data, err := store.Load()
	if err != nil {
		return nil, err
	}
	if data != nil {
		s.tokens = data.Tokens
		s.user = data.User
	}
	return s, nil
}

func (s *Session) Tokens() Tokens {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens
}

// SetTokens 替换 token 对并写入 store。
func (s *Session) SetTokens(t Tokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = t
	return s.saveLocked()
}

func (s *Session) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *Session) SetUser(u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u != nil {
		cp := *u
		u = &cp
	}
	s.user = u
	return s.saveLocked()
}

// Clear 清除内存与 store 中的会话。
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = Tokens{}
	s.user = nil
	if s.store == nil {
		return nil
	}
	return s.store.Clear()
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens.AccessToken != ""
}

func (s *Session) saveLocked() error {
	if s.store == nil {
		return nil
	}
	return s.store.Save(SessionData{Tokens: s.tokens, User: s.user})
}

// FileStore 以 YAML 文件保存会话，文件权限为 0600。
type FileStore struct {
	Path string
}

// NewFileStore 创建一个新的 FileStore。
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// DefaultSessionPath 返回 $XDG_CONFIG_HOME/smart-journal/session.yaml 或 ~/.config 下的对应路径。
func DefaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "smart-journal", "session.yaml"), nil
}

func (f *FileStore) Load() (*SessionData, error) {
	b, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	var data SessionData
	if err := yaml.Unmarshal(b, &data); err != nil {
		return nil, fmt.Errorf("failed to parse session file %s: %w", f.Path, err)
	}
	return &data, nil
}

func (f *FileStore) Save(data SessionData) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	b, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.WriteFile(f.Path, b, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	// WriteFile 不会修改已存在文件的权限
	return os.Chmod(f.Path, 0o600)
}

func (f *FileStore) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

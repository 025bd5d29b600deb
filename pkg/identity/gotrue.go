package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"smart-journal-go/internal/config"
	"smart-journal-go/internal/model"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	gotrue "github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
)

// GoTrueProvider 通过 gotrue-go 客户端调用托管的 GoTrue 兼容认证服务。
type GoTrueProvider struct {
	client gotrue.Client
}

// NewGoTrueProvider 创建一个新的 GoTrueProvider。
func NewGoTrueProvider(cfg config.GoTrueConfig) *GoTrueProvider {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := gotrue.New("", cfg.APIKey).
		WithCustomGoTrueURL(strings.TrimRight(cfg.URL, "/") + "/auth/v1").
		WithClient(http.Client{Timeout: timeout})
	return &GoTrueProvider{client: client}
}

func toUser(u types.User) *model.User {
	user := &model.User{ID: u.ID.String(), Email: u.Email, CreatedAt: u.CreatedAt}
	if name, ok := u.UserMetadata["full_name"].(string); ok {
		user.FullName = name
	}
	return user
}

func toSession(s types.Session) *Session {
	out := &Session{AccessToken: s.AccessToken, RefreshToken: s.RefreshToken, ExpiresIn: int(s.ExpiresIn)}
	if s.User.ID != uuid.Nil {
		out.User = toUser(s.User)
	}
	return out
}

// gotrueError 对应认证服务返回的错误体，不同版本字段名不一致。
type gotrueError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e gotrueError) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return "unknown error"
}

// gotrue-go 把非 2xx 响应包装成 "response status code <code>: <body>"。
var statusPattern = regexp.MustCompile(`response status code (\d+)(?s:: ?(.*))?`)

// upstreamStatus 从 gotrue-go 的错误中取出状态码与错误描述。不是上游响应错误时 ok 为 false。
func upstreamStatus(err error) (status int, message string, ok bool) {
	m := statusPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, "", false
	}
	status, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return 0, "", false
	}
	body := strings.TrimSpace(m[2])
	var ge gotrueError
	if json.Unmarshal([]byte(body), &ge) == nil {
		return status, ge.text(), true
	}
	if body == "" {
		body = http.StatusText(status)
	}
	return status, body, true
}

// classify 把 4xx 响应映射为 sentinel 错误，其余错误包装后返回。
func classify(err error, clientErr error) error {
	if status, msg, ok := upstreamStatus(err); ok && status >= 400 && status < 500 {
		return fmt.Errorf("%w: %s", clientErr, msg)
	}
	return fmt.Errorf("auth service: %w", err)
}

func (p *GoTrueProvider) GetUser(ctx context.Context, accessToken string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := p.client.WithToken(accessToken).GetUser()
	if err != nil {
		return nil, classify(err, ErrInvalidToken)
	}
	if resp.ID == uuid.Nil {
		return nil, ErrInvalidToken
	}
	return toUser(resp.User), nil
}

func (p *GoTrueProvider) SignUp(ctx context.Context, email, password, fullName string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := p.client.Signup(types.SignupRequest{
		Email:    email,
		Password: password,
		Data:     map[string]interface{}{"full_name": fullName},
	})
	if err != nil {
		status, msg, ok := upstreamStatus(err)
		if ok && (status == http.StatusUnprocessableEntity || status == http.StatusBadRequest) &&
			strings.Contains(strings.ToLower(msg), "registered") {
			return nil, fmt.Errorf("%w: %s", ErrEmailTaken, msg)
		}
		return nil, classify(err, ErrInvalidInput)
	}
	// 开启邮箱确认时响应体只有用户对象，否则是完整会话
	if resp.Session.AccessToken != "" {
		return toSession(resp.Session), nil
	}
	return &Session{User: toUser(resp.User)}, nil
}

func (p *GoTrueProvider) SignIn(ctx context.Context, email, password string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	resp, err := p.client.Token(types.TokenRequest{GrantType: "password", Email: email, Password: password})
	if err != nil {
		return nil, classify(err, ErrInvalidCredentials)
	}
	return toSession(resp.Session), nil
}

func (p *GoTrueProvider) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if refreshToken == "" {
		return nil, ErrInvalidToken
	}
	resp, err := p.client.Token(types.TokenRequest{GrantType: "refresh_token", RefreshToken: refreshToken})
	if err != nil {
		return nil, classify(err, ErrInvalidToken)
	}
	if resp.AccessToken == "" {
		return nil, ErrInvalidToken
	}
	return toSession(resp.Session), nil
}

func (p *GoTrueProvider) SignOut(ctx context.Context, accessToken string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := p.client.WithToken(accessToken).Logout(); err != nil {
		return classify(err, ErrInvalidToken)
	}
	return nil
}

func (p *GoTrueProvider) UpdateProfile(ctx context.Context, accessToken, fullName string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	resp, err := p.client.WithToken(accessToken).UpdateUser(types.UpdateUserRequest{
		Data: map[string]interface{}{"full_name": fullName},
	})
	if err != nil {
		return nil, classify(err, ErrInvalidToken)
	}
	return toUser(resp.User), nil
}

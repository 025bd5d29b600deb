// Package client 是 Smart Journal API 的 Go 客户端，负责携带会话 token 并在过期时刷新一次。
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"smart-journal-go/internal/model"
	"smart-journal-go/pkg/log"
	"strings"
	"sync"
	"time"
)

const (
	headerRefreshToken = "X-Refresh-Token"
	maxErrorBody       = 4096
	maxStreamLine      = 1 << 20
)

// Refresher 用 refresh token 换取新的 token 对。
type Refresher interface {
	Refresh(ctx context.Context, refreshToken string) (Tokens, error)
}

// RefresherFunc 让普通函数实现 Refresher。
type RefresherFunc func(ctx context.Context, refreshToken string) (Tokens, error)

func (f RefresherFunc) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	return f(ctx, refreshToken)
}

// Client 是带认证的 API 客户端。
type Client struct {
	baseURL    string
	httpClient *http.Client
	session    *Session
	refresher  Refresher

	// refreshMu 保证并发的 401 只触发一次刷新
	refreshMu sync.Mutex
}

// Option 配置 Client。
type Option func(*Client)

// WithHTTPClient 替换底层 http.Client。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRefresher 替换默认的 POST /auth/refresh 刷新实现。
func WithRefresher(r Refresher) Option {
	return func(c *Client) { c.refresher = r }
}

// New 创建一个新的 Client。session 为 nil 时使用一个不落盘的空会话。
func New(baseURL string, session *Session, opts ...Option) *Client {
	if session == nil {
		session = &Session{}
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 2 * time.Minute},
		session:    session,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.refresher == nil {
		c.refresher = &httpRefresher{client: c}
	}
	return c
}

// Session 返回客户端使用的会话。
func (c *Client) Session() *Session {
	return c.session
}

// authSession 是认证接口返回的会话体。
type authSession struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    int         `json:"expires_in"`
	User         *model.User `json:"user"`
}

type httpRefresher struct {
	client *Client
}

func (r *httpRefresher) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	var sess authSession
	body := map[string]string{"refresh_token": refreshToken}
	if err := r.client.doPublic(ctx, http.MethodPost, "/auth/refresh", body, &sess); err != nil {
		return Tokens{}, err
	}
	if sess.AccessToken == "" {
		return Tokens{}, errors.New("refresh response carried no access token")
	}
	return Tokens{AccessToken: sess.AccessToken, RefreshToken: sess.RefreshToken}, nil
}

func encodeBody(body interface{}) ([]byte, error) {
	if body == nil {
		return nil, nil
	}
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return b, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload []byte, accept string) (*http.Request, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return req, nil
}

func (c *Client) attempt(ctx context.Context, method, path string, payload []byte, accept string, tokens Tokens) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, path, payload, accept)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+tokens.AccessToken)
	if tokens.RefreshToken != "" {
		req.Header.Set(headerRefreshToken, tokens.RefreshToken)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	return resp, nil
}

// send 是所有需要认证的请求的唯一入口：401 时刷新一次并重试一次。
// 返回的响应状态码可能是任意值，由调用方检查。
func (c *Client) send(ctx context.Context, method, path string, body interface{}, accept string) (*http.Response, error) {
	tokens := c.session.Tokens()
	if tokens.AccessToken == "" {
		return nil, ErrUnauthenticated
	}
	payload, err := encodeBody(body)
	if err != nil {
		return nil, err
	}

	resp, err := c.attempt(ctx, method, path, payload, accept, tokens)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	drain(resp)

	fresh, err := c.refresh(ctx, tokens)
	if err != nil {
		return nil, err
	}
	return c.attempt(ctx, method, path, payload, accept, fresh)
}

// refresh 用 stale 对应的 refresh token 换取新 token。
// 如果其他调用方已经完成了刷新，直接返回会话中的新 token。
func (c *Client) refresh(ctx context.Context, stale Tokens) (Tokens, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	current := c.session.Tokens()
	if current.AccessToken == "" {
		return Tokens{}, ErrSessionExpired
	}
	if current.AccessToken != stale.AccessToken {
		return current, nil
	}
	if current.RefreshToken == "" {
		c.expire()
		return Tokens{}, ErrSessionExpired
	}

	fresh, err := c.refresher.Refresh(ctx, current.RefreshToken)
	if err != nil {
		log.Warnf("刷新 token 失败: %v", err)
		c.expire()
		return Tokens{}, fmt.Errorf("%w: %v", ErrSessionExpired, err)
	}
	if err := c.session.SetTokens(fresh); err != nil {
		log.Warnf("保存刷新后的会话失败: %v", err)
	}
	return fresh, nil
}

func (c *Client) expire() {
	if err := c.session.Clear(); err != nil {
		log.Warnf("清除会话失败: %v", err)
	}
}

// Do 发送带认证的 JSON 请求，out 不为 nil 时解码响应体。
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) error {
	resp, err := c.send(ctx, method, path, body, "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

// Stream 发送带认证的 POST 请求并逐个回调 SSE 帧中的 token。
// onToken 返回错误时停止读取并返回该错误。
func (c *Client) Stream(ctx context.Context, path string, body interface{}, onToken func(string) error) error {
	resp, err := c.send(ctx, http.MethodPost, path, body, "text/event-stream")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return err
	}
	return readEvents(resp.Body, onToken)
}

type tokenEvent struct {
	Token string `json:"token"`
	Error string `json:"error"`
}

func readEvents(r io.Reader, onToken func(string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLine)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}
		var ev tokenEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return fmt.Errorf("malformed stream frame %q: %w", data, err)
		}
		if ev.Error != "" {
			return &APIError{Status: http.StatusOK, Message: ev.Error}
		}
		if err := onToken(ev.Token); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read stream: %w", err)
	}
	return nil
}

// doPublic 发送不需要认证的请求，例如登录与刷新。
func (c *Client) doPublic(ctx context.Context, method, path string, body, out interface{}) error {
	payload, err := encodeBody(body)
	if err != nil {
		return err
	}
	req, err := c.newRequest(ctx, method, path, payload, "application/json")
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	if err := checkStatus(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// checkStatus 把非 2xx 响应转换为 *APIError。
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	msg := strings.TrimSpace(string(raw))
	if json.Unmarshal(raw, &body) == nil {
		if body.Message != "" {
			msg = body.Message
		} else if body.Error != "" {
			msg = body.Error
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return &APIError{Status: resp.StatusCode, Message: msg}
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}

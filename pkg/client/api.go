package client

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"smart-journal-go/internal/model"
	"strings"
	"time"
)

// AuthResult 是注册或登录的结果。开启邮箱确认时注册结果没有 token。
type AuthResult struct {
	User          *model.User
	Authenticated bool
}

// Signup 注册新用户，服务端返回 token 时保存到会话中。
func (c *Client) Signup(ctx context.Context, email, password, fullName string) (*AuthResult, error) {
	var sess authSession
	body := map[string]string{"email": email, "password": password, "full_name": fullName}
	if err := c.doPublic(ctx, http.MethodPost, "/auth/signup", body, &sess); err != nil {
		return nil, err
	}
	return c.storeSession(&sess)
}

// Login 登录并保存返回的会话。
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var sess authSession
	body := map[string]string{"email": email, "password": password}
	if err := c.doPublic(ctx, http.MethodPost, "/auth/login", body, &sess); err != nil {
		return nil, err
	}
	return c.storeSession(&sess)
}

func (c *Client) storeSession(sess *authSession) (*AuthResult, error) {
	result := &AuthResult{User: sess.User}
	if sess.AccessToken == "" {
		return result, nil
	}
	if err := c.session.SetTokens(Tokens{AccessToken: sess.AccessToken, RefreshToken: sess.RefreshToken}); err != nil {
		return nil, err
	}
	if err := c.session.SetUser(sess.User); err != nil {
		return nil, err
	}
	result.Authenticated = true
	return result, nil
}

// Logout 通知服务端登出，无论结果如何都会清除本地会话。
func (c *Client) Logout(ctx context.Context) error {
	err := c.Do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	if clearErr := c.session.Clear(); clearErr != nil && err == nil {
		err = clearErr
	}
	return err
}

// AnalyzeEntry 只分析文本，不保存。
func (c *Client) AnalyzeEntry(ctx context.Context, content string) (*model.Analysis, error) {
	var resp struct {
		Status   string          `json:"status"`
		Analysis *model.Analysis `json:"analysis"`
	}
	if err := c.Do(ctx, http.MethodPost, "/analyze-entry", map[string]string{"content": content}, &resp); err != nil {
		return nil, err
	}
	return resp.Analysis, nil
}

// CreateEntryResponse 是保存日记的结果，Status 为 success 或 partial_success。
type CreateEntryResponse struct {
	Status string `json:"status"`
	Data   struct {
		Entry    *model.JournalEntry `json:"entry"`
		Analysis *model.Analysis     `json:"analysis"`
	} `json:"data"`
	Message string `json:"message"`
}

// CreateEntry 保存并分析一篇日记。
func (c *Client) CreateEntry(ctx context.Context, content string) (*CreateEntryResponse, error) {
	var resp CreateEntryResponse
	if err := c.Do(ctx, http.MethodPost, "/journal-entry", map[string]string{"content": content}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// EntryQuery 是日记列表与导出的筛选条件，日期格式为 YYYY-MM-DD。
type EntryQuery struct {
	Search    string
	StartDate string
	EndDate   string
}

func (q EntryQuery) values() url.Values {
	v := url.Values{}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.StartDate != "" {
		v.Set("start_date", q.StartDate)
	}
	if q.EndDate != "" {
		v.Set("end_date", q.EndDate)
	}
	return v
}

func withQuery(path string, v url.Values) string {
	if len(v) == 0 {
		return path
	}
	return path + "?" + v.Encode()
}

// ListEntries 按时间倒序列出日记。
func (c *Client) ListEntries(ctx context.Context, q EntryQuery) ([]model.JournalEntry, error) {
	var entries []model.JournalEntry
	if err := c.Do(ctx, http.MethodGet, withQuery("/entries", q.values()), nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// DeleteEntry 删除一篇日记。
func (c *Client) DeleteEntry(ctx context.Context, id string) error {
	return c.Do(ctx, http.MethodDelete, "/entries/"+url.PathEscape(id), nil, nil)
}

// Export 是导出结果：服务端配置了对象存储时只有 URL，否则 Body 为文件内容。
type Export struct {
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Entries     int       `json:"entries"`
	URL         string    `json:"url"`
	ExpiresAt   time.Time `json:"expires_at"`
	Body        []byte    `json:"-"`
}

// ExportEntries 以 json、markdown 或 yaml 格式导出日记。
func (c *Client) ExportEntries(ctx context.Context, format string, q EntryQuery) (*Export, error) {
	v := q.values()
	if format != "" {
		v.Set("format", format)
	}
	resp, err := c.send(ctx, http.MethodGet, withQuery("/entries/export", v), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	disposition := resp.Header.Get("Content-Disposition")
	if disposition == "" && strings.HasPrefix(contentType, "application/json") {
		var out Export
		if err := decodeResponse(resp, &out); err != nil {
			return nil, err
		}
		return &out, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read export: %w", err)
	}
	out := &Export{ContentType: contentType, Body: body}
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		out.FileName = params["filename"]
	}
	return out, nil
}

// Chat 发送一条聊天消息，回复以 token 为单位回调 onToken。
func (c *Client) Chat(ctx context.Context, windowID, message string, onToken func(string) error) error {
	body := map[string]string{"message": message, "window_id": windowID}
	return c.Stream(ctx, "/chat", body, onToken)
}

// CreateWindow 创建聊天窗口，title 为空时使用服务端默认标题。
func (c *Client) CreateWindow(ctx context.Context, title string) (*model.ChatWindow, error) {
	var body interface{}
	if title != "" {
		body = map[string]string{"title": title}
	}
	var window model.ChatWindow
	if err := c.Do(ctx, http.MethodPost, "/chat/window/create", body, &window); err != nil {
		return nil, err
	}
	return &window, nil
}

func (c *Client) ListWindows(ctx context.Context) ([]model.ChatWindow, error) {
	var windows []model.ChatWindow
	if err := c.Do(ctx, http.MethodGet, "/chat/windows", nil, &windows); err != nil {
		return nil, err
	}
	return windows, nil
}

// HistoryMessage 是聊天记录中的一条消息。
type HistoryMessage struct {
	Role      model.Role `json:"role"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
}

func (c *Client) History(ctx context.Context, windowID string) ([]HistoryMessage, error) {
	var msgs []HistoryMessage
	if err := c.Do(ctx, http.MethodGet, "/chat/history/"+url.PathEscape(windowID), nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (c *Client) DeleteWindow(ctx context.Context, windowID string) error {
	return c.Do(ctx, http.MethodDelete, "/chat/window/"+url.PathEscape(windowID), nil, nil)
}

func (c *Client) RenameWindow(ctx context.Context, windowID, title string) error {
	path := "/chat/window/" + url.PathEscape(windowID) + "/rename"
	return c.Do(ctx, http.MethodPut, path, map[string]string{"title": title}, nil)
}

// ProfileStats 是个人资料统计。没有日记时 MemberSince 为空。
type ProfileStats struct {
	FullName     string `json:"full_name"`
	TotalEntries int64  `json:"total_entries"`
	MemberSince  string `json:"member_since"`
}

func (c *Client) ProfileStats(ctx context.Context) (*ProfileStats, error) {
	var stats ProfileStats
	if err := c.Do(ctx, http.MethodGet, "/api/profile/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// UpdateProfile 修改显示名称，并同步到本地会话。
func (c *Client) UpdateProfile(ctx context.Context, fullName string) (*model.User, error) {
	var user model.User
	if err := c.Do(ctx, http.MethodPost, "/api/profile/update", map[string]string{"full_name": fullName}, &user); err != nil {
		return nil, err
	}
	if err := c.session.SetUser(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

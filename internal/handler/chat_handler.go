package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"smart-journal-go/internal/model"
	"smart-journal-go/internal/service"
	"smart-journal-go/pkg/log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// ChatHandler 负责聊天的 SSE 与 WebSocket 传输以及窗口管理。
type ChatHandler struct {
	chatService   service.ChatService
	windowService service.ChatWindowService
	upgrader      websocket.Upgrader
}

// NewChatHandler 创建一个新的 ChatHandler。allowedOrigins 限制 WebSocket 握手的来源。
func NewChatHandler(chatService service.ChatService, windowService service.ChatWindowService, allowedOrigins []string) *ChatHandler {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &ChatHandler{
		chatService:   chatService,
		windowService: windowService,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					// 非浏览器客户端
					return true
				}
				if origins[origin] {
					return true
				}
				u, err := url.Parse(origin)
				return err == nil && u.Host == r.Host
			},
		},
	}
}

// ChatRequest 是一轮对话的请求体，SSE 与 WebSocket 共用。
type ChatRequest struct {
	Message  string `json:"message"`
	WindowID string `json:"window_id"`
}

type tokenFrame struct {
	Token string `json:"token"`
}

// sseSink 以 "data: {json}\n\n" 帧写出分块。响应头在第一个分块时才写出，
// 之前发生的错误仍可以按普通 JSON 错误返回。
type sseSink struct {
	c       *gin.Context
	started bool
}

func (s *sseSink) WriteToken(token string) error {
	if !s.started {
		h := s.c.Writer.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		s.c.Status(http.StatusOK)
		s.started = true
	}
	b, err := json.Marshal(tokenFrame{Token: token})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.c.Writer, "data: %s\n\n", b); err != nil {
		return err
	}
	s.c.Writer.Flush()
	return s.c.Request.Context().Err()
}

// Chat 处理一轮对话并以 SSE 流式返回。
func (h *ChatHandler) Chat(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req ChatRequest
	if !bindJSON(c, &req) {
		return
	}
	sink := &sseSink{c: c}
	if err := h.chatService.Converse(c.Request.Context(), user, req.WindowID, req.Message, sink); err != nil {
		if sink.started {
			log.Errorf("SSE 流已开始后发生错误: %v", err)
			return
		}
		respondError(c, err)
	}
}

// wsSink 把分块写为 {"token": "..."} 文本帧。
type wsSink struct {
	conn *websocket.Conn
}

func (s *wsSink) WriteToken(token string) error {
	return s.conn.WriteJSON(tokenFrame{Token: token})
}

// completionFrame 在每轮对话结束后发送。
type completionFrame struct {
	Type      string `json:"type"`
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
}

// ChatWebSocket 在一个 WebSocket 连接上处理多轮对话。
func (h *ChatHandler) ChatWebSocket(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()
	log.Infof("WebSocket 连接已建立，用户: %s", user.ID)

	ctx := c.Request.Context()
	for {
		var req ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				_ = conn.WriteJSON(gin.H{"error": "invalid message"})
				continue
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warnf("从 WebSocket 读取消息失败: %v", err)
			}
			return
		}

		if err := h.chatService.Converse(ctx, user, req.WindowID, req.Message, &wsSink{conn: conn}); err != nil {
			_ = conn.WriteJSON(gin.H{"error": wsErrorMessage(err)})
			continue
		}
		if err := conn.WriteJSON(completionFrame{Type: "completion", Status: "finished", Timestamp: time.Now().UnixMilli()}); err != nil {
			log.Warnf("发送完成通知失败: %v", err)
			return
		}
	}
}

func wsErrorMessage(err error) string {
	var appErr *service.AppError
	if errors.As(err, &appErr) && appErr.Status < http.StatusInternalServerError {
		return appErr.Message
	}
	log.Errorf("处理 WebSocket 对话失败: %v", err)
	return "internal server error"
}

// CreateWindowRequest 是创建窗口的请求体，title 可省略。
type CreateWindowRequest struct {
	Title string `json:"title"`
}

// RenameWindowRequest 是重命名窗口的请求体。
type RenameWindowRequest struct {
	Title string `json:"title"`
}

// CreateWindow 创建一个聊天窗口。
func (h *ChatHandler) CreateWindow(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req CreateWindowRequest
	if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
		return
	}
	window, err := h.windowService.CreateWindow(c.Request.Context(), user.ID, req.Title)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, window)
}

// ListWindows 按最近更新时间倒序列出窗口。
func (h *ChatHandler) ListWindows(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	windows, err := h.windowService.ListWindows(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, windows)
}

type historyItem struct {
	Role      model.Role `json:"role"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
}

// History 返回窗口内的全部消息，按时间正序。
func (h *ChatHandler) History(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	msgs, err := h.windowService.History(c.Request.Context(), user.ID, c.Param("window_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	items := make([]historyItem, len(msgs))
	for i, m := range msgs {
		items[i] = historyItem{Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt}
	}
	c.JSON(http.StatusOK, items)
}

// DeleteWindow 删除窗口及其消息。
func (h *ChatHandler) DeleteWindow(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	if err := h.windowService.DeleteWindow(c.Request.Context(), user.ID, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Chat window deleted successfully"})
}

// RenameWindow 修改窗口标题。
func (h *ChatHandler) RenameWindow(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req RenameWindowRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.windowService.RenameWindow(c.Request.Context(), user.ID, c.Param("id"), req.Title); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Chat window renamed successfully"})
}

// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"context"
	"net/http"
	"smart-journal-go/internal/model"
	"smart-journal-go/pkg/log"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// 认证通过后写入 gin 上下文的键。
const (
	ContextKeyUser         = "user"
	ContextKeyAccessToken  = "access_token"
	ContextKeyRefreshToken = "refresh_token"
)

const unauthorizedMessage = "invalid or expired credentials"

// UserResolver 根据 access token 解析当前用户，identity.Provider 满足该接口。
type UserResolver interface {
	GetUser(ctx context.Context, accessToken string) (*model.User, error)
}

// AuthMiddleware 创建一个 Gin 中间件，对除公开路径外的所有请求做认证。
// 它从 Authorization 头提取 Bearer token，每个请求调用一次身份提供方校验，
// 并将 User 对象与 token 存入 Gin 的上下文中。
func AuthMiddleware(resolver UserResolver, publicPaths []string) gin.HandlerFunc {
	public := make(map[string]struct{}, len(publicPaths))
	for _, p := range publicPaths {
		public[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if _, ok := public[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		tokenString, ok := extractToken(c)
		if !ok {
			log.Warnf("请求缺少有效的授权头, path=%s", c.Request.URL.Path)
			abortUnauthorized(c)
			return
		}

		user, err := resolver.GetUser(c.Request.Context(), tokenString)
		if err != nil || user == nil {
			// 原因只记录日志，不返回给客户端
			log.Warnf("token 校验失败, path=%s: %v", c.Request.URL.Path, err)
			abortUnauthorized(c)
			return
		}

		c.Set(ContextKeyUser, user)
		c.Set(ContextKeyAccessToken, tokenString)
		c.Set(ContextKeyRefreshToken, c.GetHeader("X-Refresh-Token"))
		c.Next()
	}
}

// extractToken 从 "Bearer <token>" 形式的请求头中取出 token。
// 浏览器无法为 WebSocket 握手设置请求头，升级请求允许使用 access_token 查询参数。
func extractToken(c *gin.Context) (string, bool) {
	const bearerPrefix = "Bearer "
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" && websocket.IsWebSocketUpgrade(c.Request) {
		if t := strings.TrimSpace(c.Query("access_token")); t != "" {
			return t, true
		}
	}
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", false
	}
	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, bearerPrefix))
	return tokenString, tokenString != ""
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": unauthorizedMessage})
}

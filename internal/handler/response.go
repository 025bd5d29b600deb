// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"
	"smart-journal-go/internal/middleware"
	"smart-journal-go/internal/model"
	"smart-journal-go/internal/service"
	"smart-journal-go/pkg/log"

	"github.com/gin-gonic/gin"
)

// respondError 把 service 层的错误翻译为 {"code","message"} 响应。
// 非 AppError 与 5xx 错误只返回通用信息，细节写入日志。
func respondError(c *gin.Context, err error) {
	var appErr *service.AppError
	if errors.As(err, &appErr) {
		if appErr.Status >= http.StatusInternalServerError {
			log.Errorf("%s %s 处理失败: %v", c.Request.Method, c.Request.URL.Path, err)
		}
		c.JSON(appErr.Status, gin.H{"code": appErr.Status, "message": appErr.Message})
		return
	}
	log.Errorf("%s %s 处理失败: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "internal server error"})
}

// bindJSON 绑定请求体，失败时直接返回 400。
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		log.Warnf("%s: 无效的请求负载: %v", c.Request.URL.Path, err)
		c.JSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "message": "invalid request body"})
		return false
	}
	return true
}

// currentUser 取出认证中间件写入的用户。
func currentUser(c *gin.Context) (*model.User, bool) {
	v, exists := c.Get(middleware.ContextKeyUser)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "invalid or expired credentials"})
		return nil, false
	}
	user, ok := v.(*model.User)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "internal server error"})
		return nil, false
	}
	return user, true
}

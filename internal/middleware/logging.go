// Package middleware 存放 Gin 框架的中间件。
package middleware

import (
	"bytes"
	"io"
	"smart-journal-go/pkg/log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// 日志中请求体与响应体的最大长度。
const maxLoggedBody = 1024

// bodyLogWriter 用于捕获响应体
type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

// Write 实现了 io.Writer 接口，将响应写入 gin.ResponseWriter 和一个内部的 buffer
func (w bodyLogWriter) Write(b []byte) (int, error) {
	if room := maxLoggedBody + 1 - w.body.Len(); room > 0 {
		if len(b) < room {
			room = len(b)
		}
		w.body.Write(b[:room])
	}
	return w.ResponseWriter.Write(b)
}

// RequestLogger 是一个 Gin 中间件，用于记录请求和响应日志。
// 认证接口的请求体含有密码与 token，不会被记录；流式响应与 WebSocket 只记录元信息。
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 记录请求开始时间
		startTime := time.Now()
		path := c.Request.URL.Path
		sensitive := strings.HasPrefix(path, "/auth/")
		upgrade := strings.EqualFold(c.GetHeader("Upgrade"), "websocket")

		// 读取并重新缓存请求体，以便后续处理函数可以正常读取
		var requestBody []byte
		if c.Request.Body != nil && !upgrade {
			requestBody, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(requestBody))
		}

		// WebSocket 需要原始的 ResponseWriter 才能 Hijack
		var blw *bodyLogWriter
		if !upgrade {
			blw = &bodyLogWriter{body: bytes.NewBufferString(""), ResponseWriter: c.Writer}
			c.Writer = blw
		}

		// 处理请求
		c.Next()

		reqLog := truncateBody(requestBody)
		if sensitive {
			reqLog = "[redacted]"
		}
		respLog := ""
		if blw != nil {
			respLog = truncateBody(blw.body.Bytes())
			if sensitive {
				respLog = "[redacted]"
			}
		}
		if strings.HasPrefix(c.Writer.Header().Get("Content-Type"), "text/event-stream") {
			respLog = "[stream]"
		}

		log.Infow("HTTP Request Log",
			"statusCode", c.Writer.Status(),
			"latency", time.Since(startTime).String(),
			"clientIP", c.ClientIP(),
			"method", c.Request.Method,
			"path", path,
			"requestBody", reqLog,
			"responseBody", respLog,
		)
	}
}

func truncateBody(b []byte) string {
	if len(b) > maxLoggedBody {
		return string(b[:maxLoggedBody]) + "...(truncated)"
	}
	return string(b)
}

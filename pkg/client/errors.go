package client

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated 表示本地没有 access token，请求不会发出。
	ErrUnauthenticated = errors.New("not logged in")
	// ErrSessionExpired 表示刷新失败，本地会话已被清除，需要重新登录。
	ErrSessionExpired = errors.New("session expired, please log in again")
)

// APIError 是服务端返回的非 2xx 响应。
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

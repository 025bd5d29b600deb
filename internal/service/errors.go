// Package service 包含了应用的业务逻辑层。
package service

import (
	"net/http"

	"github.com/google/uuid"
)

// AppError 是带 HTTP 状态码的业务错误，handler 通过 errors.As 将其翻译为响应。
type AppError struct {
	Status  int
	Message string
}

func (e *AppError) Error() string {
	return e.Message
}

var (
	ErrUnauthorized   = &AppError{Status: http.StatusUnauthorized, Message: "invalid or expired credentials"}
	ErrEntryNotFound  = &AppError{Status: http.StatusNotFound, Message: "entry not found"}
	ErrWindowNotFound = &AppError{Status: http.StatusNotFound, Message: "chat window not found"}
	ErrTurnInProgress = &AppError{Status: http.StatusConflict, Message: "a reply is already being generated in this chat window"}
	ErrAnalysisFailed = &AppError{Status: http.StatusInternalServerError, Message: "analysis failed"}
	ErrEmailTaken     = &AppError{Status: http.StatusConflict, Message: "email already registered"}
)

// NewValidationError 返回一个 400 错误。
func NewValidationError(message string) *AppError {
	return &AppError{Status: http.StatusBadRequest, Message: message}
}

// validID 判断路径中的 id 能否作为 uuid 主键查询。不合法的 id 按不存在处理。
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

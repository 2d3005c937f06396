package xerr

import (
	"errors"
	"fmt"
)

// CodeError 自定义错误结构
type CodeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error 实现 error 接口
func (e *CodeError) Error() string {
	return fmt.Sprintf("Code: %d, Message: %s", e.Code, e.Message)
}

// New 创建新的 CodeError
func New(code int, msg string) *CodeError {
	return &CodeError{Code: code, Message: msg}
}

// From 从错误链中取出 CodeError，取不到时返回系统错误
func From(err error) *CodeError {
	var e *CodeError
	if errors.As(err, &e) {
		return e
	}
	return ErrServerError
}

// 常用通用错误码
const (
	OK                  = 200
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	InternalServerError = 500
	ServiceUnavailable  = 503
)

// 常用预定义错误
var (
	ErrSuccess      = New(OK, "Success")
	ErrServerError  = New(InternalServerError, "系统错误，请联系工作人员")
	ErrUnauthorized = New(Unauthorized, "未登录或令牌无效")
	ErrForbidden    = New(Forbidden, "没有管理权限")
	ErrNotRunning   = New(ServiceUnavailable, "处理器正在关闭")
)

package xerr

import (
	"errors"
	"fmt"
	"net/http"
)

// 常用错误码定义
const (
	OK                 = 200
	RequestParamsError = 400
	RecordNotFound     = 404
	ServerCommonError  = 500
	DbError            = 501
)

// CodeError 业务错误：Code 决定 HTTP 状态，Msg 可以直接给用户看
type CodeError struct {
	Code  int    `json:"code"`
	Msg   string `json:"msg"`
	cause error
}

func (e *CodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("ErrCode:%d, Msg:%s, Cause:%v", e.Code, e.Msg, e.cause)
	}
	return fmt.Sprintf("ErrCode:%d, Msg:%s", e.Code, e.Msg)
}

func (e *CodeError) Unwrap() error { return e.cause }

func New(code int, msg string) error {
	return &CodeError{Code: code, Msg: msg}
}

// Wrap 保留底层错误，errors.Is/As 仍然能穿透
func Wrap(err error, code int, msg string) error {
	if err == nil {
		return nil
	}
	return &CodeError{Code: code, Msg: msg, cause: err}
}

// Validation / NotFound / Store 对应三类对外错误
func Validation(msg string) error { return New(RequestParamsError, msg) }

func NotFound(msg string) error { return New(RecordNotFound, msg) }

func Store(err error, msg string) error { return Wrap(err, DbError, msg) }

// CodeOf 取错误码；不是 CodeError 的一律当 ServerCommonError
func CodeOf(err error) int {
	if err == nil {
		return OK
	}
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ServerCommonError
}

// MessageOf 返回可以直接回给客户端的文案
func MessageOf(err error) string {
	var ce *CodeError
	if errors.As(err, &ce) && ce.Msg != "" {
		return ce.Msg
	}
	return MapErrMsg(CodeOf(err))
}

func IsValidation(err error) bool { return CodeOf(err) == RequestParamsError }

func IsNotFound(err error) bool { return CodeOf(err) == RecordNotFound }

func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case OK:
		return http.StatusOK
	case RequestParamsError:
		return http.StatusBadRequest
	case RecordNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func MapErrMsg(code int) string {
	switch code {
	case ServerCommonError:
		return "Internal server error."
	case RequestParamsError:
		return "Invalid request."
	case DbError:
		return "Storage unavailable."
	case RecordNotFound:
		return "Record not found."
	default:
		return "Unknown error."
	}
}

package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"ticketboard.com/pkg/logger"
	"ticketboard.com/pkg/xerr"
)

// ErrorBody 错误统一返回 {"error": "..."}
type ErrorBody struct {
	Error string `json:"error"`
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

func Fail(c *gin.Context, httpStatus int, message string) {
	c.JSON(httpStatus, ErrorBody{Error: message})
}

// FailErr 按错误码映射 HTTP 状态。
// 4xx 是用户可修正的错误，不打日志；5xx 记录 request id 和底层错误，
// 对外只回 fallback 文案，不透出内部信息。
func FailErr(c *gin.Context, err error, fallback string) {
	if xerr.IsValidation(err) || xerr.IsNotFound(err) {
		Fail(c, xerr.HTTPStatus(err), xerr.MessageOf(err))
		return
	}
	status := http.StatusInternalServerError
	logger.Error(c, "http error",
		zap.String("request_id", RequestIDFromGin(c)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.Int("biz_code", xerr.CodeOf(err)),
		zap.Error(err),
	)
	if fallback == "" {
		fallback = xerr.MessageOf(err)
	}
	Fail(c, status, fallback)
}

package handler

import (
	"Lumen_Stream/internal/service"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorResponse 定义了标准的API错误响应结构，前端直接展示message字段
type ErrorResponse struct {
	Message string `json:"message"`
}

// sendErrorResponse 是一个辅助函数，用于发送标准格式的错误响应
func sendErrorResponse(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, ErrorResponse{Message: message})
}

// sendServiceError 把service层的哨兵错误统一翻译成HTTP状态码
// 没匹配上哨兵的都是意料之外的内部错误，对外只说“服务器内部错误”，细节留在日志里
func sendServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		sendErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrForbidden):
		sendErrorResponse(c, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrPasswordTooShort):
		sendErrorResponse(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrUpstream):
		sendErrorResponse(c, http.StatusInternalServerError, err.Error())
	default:
		sendErrorResponse(c, http.StatusInternalServerError, "服务器内部错误")
	}
}

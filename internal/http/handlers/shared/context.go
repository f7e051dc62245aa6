package shared

import (
	"strings"

	"github.com/pasaph/internal/http/response"

	"github.com/gin-gonic/gin"
)

// 鉴权中间件写入的上下文键
const (
	ContextUserID = "user_id"
	ContextRole   = "role"
)

// GetContextString 从上下文读取非空字符串并统一处理错误响应。
func GetContextString(c *gin.Context, key string) (string, bool) {
	value, exists := c.Get(key)
	if !exists {
		RespondError(c, response.CodeUnauthorized, "unauthorized", nil)
		return "", false
	}
	v, ok := value.(string)
	if !ok {
		RespondError(c, response.CodeInternal, key+" type invalid", nil)
		return "", false
	}
	v = strings.TrimSpace(v)
	if v == "" {
		RespondError(c, response.CodeUnauthorized, "unauthorized", nil)
		return "", false
	}
	return v, true
}

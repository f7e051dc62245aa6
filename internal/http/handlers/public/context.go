package public

import (
	handlershared "github.com/pasaph/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func getBuyerID(c *gin.Context) (string, bool) {
	return handlershared.GetContextString(c, handlershared.ContextUserID)
}

func requestLog(c *gin.Context) *zap.SugaredLogger {
	return handlershared.RequestLog(c)
}

func respondError(c *gin.Context, code int, msg string, err error) {
	handlershared.RespondError(c, code, msg, err)
}

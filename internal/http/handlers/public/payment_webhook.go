package public

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pasaph/internal/http/response"
	"github.com/pasaph/internal/service"

	"github.com/gin-gonic/gin"
)

const callbackLogValueLimit = 4096

// StripeWebhook Stripe webhook 回调。
// 签名错误返回 400，内部错误返回 500 以触发 Stripe 重试。
func (h *Handler) StripeWebhook(c *gin.Context) {
	log := requestLog(c)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Warnw("stripe_webhook_body_read_failed", "error", err)
		response.ErrorWithHTTPStatus(c, http.StatusBadRequest, response.CodeBadRequest, "bad request")
		return
	}
	log.Infow("stripe_webhook_received",
		"client_ip", c.ClientIP(),
		"body_size", len(body),
		"stripe_signature", truncateCallbackLogValue(strings.TrimSpace(c.GetHeader("Stripe-Signature"))),
		"raw_body", callbackRawBodyForLog(body),
	)
	headers := make(map[string]string)
	for key, values := range c.Request.Header {
		if len(values) == 0 {
			continue
		}
		headers[key] = values[0]
	}

	session, err := h.CheckoutService.HandleStripeWebhook(c.Request.Context(), headers, body, time.Now())
	if err != nil {
		log.Warnw("stripe_webhook_handle_failed", "error", err)
		switch {
		case errors.Is(err, service.ErrWebhookInvalid):
			response.ErrorWithHTTPStatus(c, http.StatusBadRequest, response.CodeBadRequest, "webhook signature invalid")
		case errors.Is(err, service.ErrCheckoutModeUnavailable):
			response.ErrorWithHTTPStatus(c, http.StatusNotFound, response.CodeNotFound, "stripe checkout disabled")
		case errors.Is(err, service.ErrCheckoutSessionNotFound):
			// 非本服务创建的会话，确认收到即可
			response.Success(c, gin.H{"accepted": true, "updated": false})
		default:
			response.ErrorWithHTTPStatus(c, http.StatusInternalServerError, response.CodeInternal, "webhook handle failed")
		}
		return
	}

	if session == nil {
		response.Success(c, gin.H{
			"accepted": true,
			"updated":  false,
		})
		return
	}
	response.Success(c, gin.H{
		"accepted":   true,
		"updated":    true,
		"session_id": session.SessionID,
		"status":     session.Status,
	})
}

func truncateCallbackLogValue(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if len(raw) <= callbackLogValueLimit {
		return raw
	}
	return raw[:callbackLogValueLimit] + "...(truncated)"
}

func callbackRawBodyForLog(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	return truncateCallbackLogValue(string(body))
}

package public

import (
	handlershared "github.com/pasaph/internal/http/handlers/shared"
	"github.com/pasaph/internal/http/response"
	"github.com/pasaph/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// CheckoutItemRequest 结账明细
type CheckoutItemRequest struct {
	Title      string          `json:"title" binding:"required,max=255"`
	Quantity   int             `json:"quantity" binding:"required,min=1"`
	UnitAmount decimal.Decimal `json:"unit_amount"`
}

// CreateCheckoutRequest 创建结账请求
type CreateCheckoutRequest struct {
	Mode     string                `json:"mode" binding:"required,checkout_mode"`
	Currency string                `json:"currency" binding:"omitempty,len=3"`
	Items    []CheckoutItemRequest `json:"items" binding:"required,min=1,dive"`
}

// CreateCheckout 创建结账会话
func (h *Handler) CreateCheckout(c *gin.Context) {
	buyerID, ok := getBuyerID(c)
	if !ok {
		return
	}
	var req CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid checkout request", err)
		return
	}
	items := make([]service.CheckoutItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, service.CheckoutItem{
			Title:      item.Title,
			Quantity:   item.Quantity,
			UnitAmount: item.UnitAmount,
		})
	}
	session, err := h.CheckoutService.CreateCheckout(c.Request.Context(), service.CheckoutInput{
		BuyerID:  buyerID,
		Mode:     req.Mode,
		Currency: req.Currency,
		Items:    items,
	})
	if err != nil {
		handlershared.RespondMappedError(c, err, checkoutCreateErrorRules, response.CodeInternal, "checkout create failed")
		return
	}
	response.Success(c, gin.H{
		"session_id":   session.SessionID,
		"redirect_url": session.RedirectURL,
		"mode":         session.Mode,
		"status":       session.Status,
		"currency":     session.Currency,
		"amount":       session.Amount,
	})
}

// GetCheckout 查询结账会话
func (h *Handler) GetCheckout(c *gin.Context) {
	buyerID, ok := getBuyerID(c)
	if !ok {
		return
	}
	session, err := h.CheckoutService.GetSession(c.Request.Context(), buyerID, c.Param("session_id"))
	if err != nil {
		handlershared.RespondMappedError(c, err, checkoutQueryErrorRules, response.CodeInternal, "checkout query failed")
		return
	}
	response.Success(c, session)
}

package seller

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/pasaph/internal/fulfillment"
	handlershared "github.com/pasaph/internal/http/handlers/shared"
	"github.com/pasaph/internal/http/response"
	"github.com/pasaph/internal/service"

	"github.com/gin-gonic/gin"
)

// FulfillmentListQuery 列表查询参数
type FulfillmentListQuery struct {
	Status         string `form:"status" binding:"omitempty,fulfillment_status"`
	GroupByBuyer   bool   `form:"group_by_buyer"`
	Search         string `form:"search" binding:"max=128"`
	DeliveryMethod string `form:"delivery_method" binding:"omitempty,delivery_method"`
}

func (q FulfillmentListQuery) toViewQuery() service.ViewQuery {
	return service.ViewQuery{
		Status:         q.Status,
		GroupByBuyer:   q.GroupByBuyer,
		Search:         q.Search,
		DeliveryMethod: q.DeliveryMethod,
	}
}

// FulfillmentExportQuery 导出参数
type FulfillmentExportQuery struct {
	FulfillmentListQuery
	Format string `form:"format"`
}

// RecordPageQuery 分页记录查询参数
type RecordPageQuery struct {
	Status   string `form:"status" binding:"omitempty,fulfillment_status"`
	BuyerID  string `form:"buyer_id" binding:"max=64"`
	Search   string `form:"search" binding:"max=128"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1"`
}

// UpdateStatusRequest 状态推进请求
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,fulfillment_status"`
}

// CancelRequest 取消请求
type CancelRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// MarkPurchasedRequest 批量标记已买请求
type MarkPurchasedRequest struct {
	BuyerID string `json:"buyer_id" binding:"required,max=64"`
}

// ListFulfillment 卖家代购列表（含汇总与免税评估）
func (h *Handler) ListFulfillment(c *gin.Context) {
	sellerID, ok := getSellerID(c)
	if !ok {
		return
	}
	var query FulfillmentListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, response.CodeBadRequest, "invalid query", err)
		return
	}
	view, err := h.FulfillmentService.View(c.Request.Context(), sellerID, query.toViewQuery())
	if err != nil {
		respondRecordReadError(c, err)
		return
	}
	response.Success(c, view)
}

// ListRecords 分页查询原始记录
func (h *Handler) ListRecords(c *gin.Context) {
	sellerID, ok := getSellerID(c)
	if !ok {
		return
	}
	var query RecordPageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, response.CodeBadRequest, "invalid query", err)
		return
	}
	page, pageSize := handlershared.NormalizePagination(query.Page, query.PageSize)
	result, err := h.FulfillmentService.ListRecords(c.Request.Context(), sellerID, service.RecordQuery{
		Status:   query.Status,
		BuyerID:  query.BuyerID,
		Search:   query.Search,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondRecordReadError(c, err)
		return
	}
	response.SuccessWithPage(c, result.Items, response.NewPagination(page, pageSize, result.Total))
}

// GetTotals 卖家汇总
func (h *Handler) GetTotals(c *gin.Context) {
	sellerID, ok := getSellerID(c)
	if !ok {
		return
	}
	totals, err := h.FulfillmentService.Totals(c.Request.Context(), sellerID)
	if err != nil {
		respondRecordReadError(c, err)
		return
	}
	response.Success(c, totals)
}

// GetCustoms 免税额度评估
func (h *Handler) GetCustoms(c *gin.Context) {
	sellerID, ok := getSellerID(c)
	if !ok {
		return
	}
	assessment, err := h.FulfillmentService.Customs(c.Request.Context(), sellerID)
	if err != nil {
		respondRecordReadError(c, err)
		return
	}
	response.Success(c, assessment)
}

// ExportFulfillment 导出采购清单为附件
func (h *Handler) ExportFulfillment(c *gin.Context) {
	sellerID, ok := getSellerID(c)
	if !ok {
		return
	}
	var query FulfillmentExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, response.CodeBadRequest, "invalid query", err)
		return
	}
	format, ok := fulfillment.ParseFormat(query.Format)
	if !ok {
		respondError(c, response.CodeBadRequest, "export format invalid", nil)
		return
	}
	result, err := h.FulfillmentService.Export(c.Request.Context(), sellerID, query.toViewQuery(), format, time.Now())
	if err != nil {
		respondRecordReadError(c, err)
		return
	}
	requestLog(c).Infow("fulfillment_exported",
		"seller_id", sellerID,
		"format", result.Format,
		"count", result.Count,
	)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Header("X-Item-Count", strconv.Itoa(result.Count))
	c.Data(http.StatusOK, result.ContentType, []byte(result.Content))
}

// StreamEvents 以 SSE 推送卖家记录变更
func (h *Handler) StreamEvents(c *gin.Context) {
	sellerID, ok := getSellerID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	events, err := h.FulfillmentService.Subscribe(ctx, sellerID)
	if err != nil {
		respondError(c, response.CodeInternal, "subscribe failed", err)
		return
	}
	if events == nil {
		respondError(c, response.CodeUnavailable, "event stream unavailable", nil)
		return
	}

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("ready", gin.H{"seller_id": sellerID})
	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("change", event)
			return true
		}
	})
}

// UpdateStatus 推进记录状态
func (h *Handler) UpdateStatus(c *gin.Context) {
	sellerID, ok := getSellerID(c)
	if !ok {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "status invalid", err)
		return
	}
	record, err := h.FulfillmentService.UpdateStatus(c.Request.Context(), sellerID, c.Param("id"), req.Status)
	if err != nil {
		respondRecordWriteError(c, err)
		return
	}
	response.Success(c, record)
}

// ToggleBought 切换已买标记
func (h *Handler) ToggleBought(c *gin.Context) {
	sellerID, ok := getSellerID(c)
	if !ok {
		return
	}
	record, err := h.FulfillmentService.ToggleBought(c.Request.Context(), sellerID, c.Param("id"))
	if err != nil {
		respondRecordWriteError(c, err)
		return
	}
	response.Success(c, record)
}

// Cancel 取消记录
func (h *Handler) Cancel(c *gin.Context) {
	sellerID, ok := getSellerID(c)
	if !ok {
		return
	}
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "cancel reason required", err)
		return
	}
	record, err := h.FulfillmentService.Cancel(c.Request.Context(), sellerID, c.Param("id"), req.Reason)
	if err != nil {
		respondRecordWriteError(c, err)
		return
	}
	response.Success(c, record)
}

// MarkAllPurchased 将买家所有待买记录标记为已买
func (h *Handler) MarkAllPurchased(c *gin.Context) {
	sellerID, ok := getSellerID(c)
	if !ok {
		return
	}
	var req MarkPurchasedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "buyer_id required", err)
		return
	}
	result, err := h.FulfillmentService.MarkAllPurchased(c.Request.Context(), sellerID, req.BuyerID)
	if err != nil {
		var bulkErr *service.BulkUpdateError
		if errors.As(err, &bulkErr) {
			requestLog(c).Errorw("fulfillment_bulk_update_failed",
				"seller_id", sellerID,
				"buyer_id", req.BuyerID,
				"record_id", bulkErr.RecordID,
				"error", bulkErr.Err,
			)
			response.ErrorWithData(c, response.CodeInternal, "bulk update failed, no records were changed", gin.H{
				"record_id": bulkErr.RecordID,
			})
			return
		}
		respondRecordWriteError(c, err)
		return
	}
	response.Success(c, result)
}

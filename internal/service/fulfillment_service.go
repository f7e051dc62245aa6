package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pasaph/internal/cache"
	"github.com/pasaph/internal/constants"
	"github.com/pasaph/internal/fulfillment"
	"github.com/pasaph/internal/logger"
	"github.com/pasaph/internal/metrics"
	"github.com/pasaph/internal/models"
	"github.com/pasaph/internal/queue"
	"github.com/pasaph/internal/repository"

	"gorm.io/gorm"
)

// 记录变更事件动作
const (
	ActionStatusUpdated  = "status_updated"
	ActionBoughtToggled  = "bought_toggled"
	ActionCancelled      = "cancelled"
	ActionBulkPurchased  = "bulk_purchased"
	exportFilenamePrefix = "pasabuy-list-"
)

// FulfillmentOptions 展示与缓存参数
type FulfillmentOptions struct {
	Currency       string
	CurrencySymbol string
	ExportTitle    string
	CacheTTL       time.Duration
}

// FulfillmentService 卖家代购记录服务
type FulfillmentService struct {
	repo         repository.FulfillmentRepository
	snapshotRepo repository.CustomsSnapshotRepository
	queueClient  *queue.Client
	policy       fulfillment.Policy
	options      FulfillmentOptions
	now          func() time.Time
}

// NewFulfillmentService 创建代购记录服务
func NewFulfillmentService(repo repository.FulfillmentRepository, snapshotRepo repository.CustomsSnapshotRepository, queueClient *queue.Client, policy fulfillment.Policy, options FulfillmentOptions) *FulfillmentService {
	if options.Currency == "" {
		options.Currency = constants.DefaultCurrency
	}
	if options.CurrencySymbol == "" {
		options.CurrencySymbol = constants.DefaultCurrencySymbol
	}
	return &FulfillmentService{
		repo:         repo,
		snapshotRepo: snapshotRepo,
		queueClient:  queueClient,
		policy:       policy,
		options:      options,
		now:          time.Now,
	}
}

// Policy 返回当前计算参数
func (s *FulfillmentService) Policy() fulfillment.Policy {
	return s.policy
}

// ViewQuery 列表查询参数
type ViewQuery struct {
	Status         string
	GroupByBuyer   bool
	Search         string
	DeliveryMethod string
}

// SellerView 卖家列表视图
type SellerView struct {
	Status   string                   `json:"status"`
	Groups   []fulfillment.BuyerGroup `json:"groups"`
	Count    int                      `json:"count"`
	Totals   fulfillment.Totals       `json:"totals"`
	Customs  fulfillment.Assessment   `json:"customs"`
	Currency string                   `json:"currency"`
}

// RecordQuery 分页查询参数
type RecordQuery struct {
	Status   string
	BuyerID  string
	Search   string
	Page     int
	PageSize int
}

// RecordPage 分页查询结果
type RecordPage struct {
	Items []fulfillment.Record
	Total int64
}

// ExportResult 导出结果
type ExportResult struct {
	Format      fulfillment.Format
	Filename    string
	ContentType string
	Content     string
	Count       int
}

// BulkResult 批量标记已买结果
type BulkResult struct {
	BuyerID    string   `json:"buyer_id"`
	UpdatedIDs []string `json:"updated_ids"`
	Count      int      `json:"count"`
}

// CustomsRefreshResult 免税额度重算结果
type CustomsRefreshResult struct {
	Assessment   fulfillment.Assessment `json:"assessment"`
	PreviousTier string                 `json:"previous_tier,omitempty"`
	Changed      bool                   `json:"changed"`
}

// View 返回筛选分组后的列表；汇总与免税评估基于完整记录
func (s *FulfillmentService) View(ctx context.Context, sellerID string, query ViewQuery) (*SellerView, error) {
	records, err := s.loadRecords(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	visible := records
	if search := strings.TrimSpace(query.Search); search != "" {
		rows, err := s.repo.ListBySeller(repository.FulfillmentListFilter{SellerID: strings.TrimSpace(sellerID), Search: search})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRecordFetchFailed, err)
		}
		visible = fulfillment.NormalizeAll(models.ToRawRecords(rows), s.policy)
	}
	visible = filterDelivery(fulfillment.Filter(visible, query.Status), query.DeliveryMethod)
	return &SellerView{
		Status:   filterStatus(query.Status),
		Groups:   fulfillment.Group(visible, query.GroupByBuyer),
		Count:    len(visible),
		Totals:   fulfillment.CalculateTotals(records),
		Customs:  fulfillment.AssessRecords(records, s.policy),
		Currency: s.options.Currency,
	}, nil
}

// Totals 汇总卖家全部记录
func (s *FulfillmentService) Totals(ctx context.Context, sellerID string) (*fulfillment.Totals, error) {
	records, err := s.loadRecords(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	totals := fulfillment.CalculateTotals(records)
	return &totals, nil
}

// Customs 实时评估免税额度
func (s *FulfillmentService) Customs(ctx context.Context, sellerID string) (*fulfillment.Assessment, error) {
	records, err := s.loadRecords(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	assessment := fulfillment.AssessRecords(records, s.policy)
	return &assessment, nil
}

// ListRecords 分页查询记录，过滤在数据库完成，不经过缓存
func (s *FulfillmentService) ListRecords(ctx context.Context, sellerID string, query RecordQuery) (*RecordPage, error) {
	sellerID = strings.TrimSpace(sellerID)
	if sellerID == "" {
		return nil, ErrSellerRequired
	}
	filter := repository.FulfillmentListFilter{
		SellerID: sellerID,
		BuyerID:  strings.TrimSpace(query.BuyerID),
		Search:   strings.TrimSpace(query.Search),
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if status := filterStatus(query.Status); status != constants.FulfillmentStatusAll {
		if fulfillment.NormalizeStatus(status) == "" {
			return nil, ErrStatusInvalid
		}
		filter.Statuses = storedStatuses(status)
	}

	total, err := s.repo.CountBySeller(filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordFetchFailed, err)
	}
	rows, err := s.repo.ListBySeller(filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordFetchFailed, err)
	}
	logger.Ctx(ctx).Debugw("fulfillment_records_listed",
		"seller_id", sellerID,
		"page", query.Page,
		"total", total,
	)
	return &RecordPage{
		Items: fulfillment.NormalizeAll(models.ToRawRecords(rows), s.policy),
		Total: total,
	}, nil
}

// Export 按当前筛选导出采购清单
func (s *FulfillmentService) Export(ctx context.Context, sellerID string, query ViewQuery, format fulfillment.Format, now time.Time) (*ExportResult, error) {
	if _, ok := fulfillment.ParseFormat(string(format)); !ok {
		return nil, ErrExportFormatInvalid
	}
	view, err := s.View(ctx, sellerID, query)
	if err != nil {
		return nil, err
	}
	content, err := fulfillment.Export(format, view.Groups, fulfillment.ExportOptions{
		Title:          s.options.ExportTitle,
		FilterLabel:    fulfillment.StatusLabel(query.Status),
		GeneratedAt:    now,
		CurrencySymbol: s.options.CurrencySymbol,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExportFormatInvalid, err)
	}
	metrics.Exports.WithLabelValues(string(format)).Inc()
	return &ExportResult{
		Format:      format,
		Filename:    exportFilenamePrefix + now.Format("20060102") + format.Extension(),
		ContentType: format.ContentType(),
		Content:     content,
		Count:       view.Count,
	}, nil
}

// UpdateStatus 推进记录状态，只允许 to_buy -> purchased -> delivered
func (s *FulfillmentService) UpdateStatus(ctx context.Context, sellerID, recordID, status string) (*fulfillment.Record, error) {
	target := fulfillment.NormalizeStatus(status)
	if target == "" || target == constants.FulfillmentStatusCancelled {
		return nil, ErrStatusInvalid
	}
	row, record, err := s.getRecord(sellerID, recordID)
	if err != nil {
		return nil, err
	}
	if record.Status == target {
		return &record, nil
	}
	if record.Closed() {
		return nil, ErrRecordClosed
	}
	if statusRank(target) < statusRank(record.Status) {
		return nil, ErrStatusTransitionInvalid
	}

	now := s.now()
	fields := map[string]interface{}{
		"status":     target,
		"updated_at": now,
	}
	if !record.Purchased {
		fields["purchased"] = true
		fields["purchased_at"] = now
		record.Purchased = true
		record.PurchasedAt = &now
	}
	if target == constants.FulfillmentStatusDelivered {
		fields["delivered_at"] = now
	}
	if err := s.repo.Update(row, fields); err != nil {
		return nil, mapRecordUpdateError(err)
	}
	record.Status = target

	metrics.StatusChanges.WithLabelValues(ActionStatusUpdated, target).Inc()
	logger.Ctx(ctx).Infow("fulfillment_status_updated",
		"seller_id", sellerID,
		"record_id", record.ID,
		"status", target,
	)
	s.afterWrite(ctx, sellerID, ActionStatusUpdated, []string{record.ID})
	return &record, nil
}

// ToggleBought 切换已买标记，不改变状态
func (s *FulfillmentService) ToggleBought(ctx context.Context, sellerID, recordID string) (*fulfillment.Record, error) {
	row, record, err := s.getRecord(sellerID, recordID)
	if err != nil {
		return nil, err
	}
	if record.Closed() {
		return nil, ErrRecordClosed
	}

	now := s.now()
	fields := map[string]interface{}{
		"purchased":  !record.Purchased,
		"updated_at": now,
	}
	if record.Purchased {
		fields["purchased_at"] = nil
		record.PurchasedAt = nil
	} else {
		fields["purchased_at"] = now
		record.PurchasedAt = &now
	}
	if err := s.repo.Update(row, fields); err != nil {
		return nil, mapRecordUpdateError(err)
	}
	record.Purchased = !record.Purchased

	metrics.StatusChanges.WithLabelValues(ActionBoughtToggled, record.Status).Inc()
	s.afterWrite(ctx, sellerID, ActionBoughtToggled, []string{record.ID})
	return &record, nil
}

// Cancel 取消记录，必须填写原因
func (s *FulfillmentService) Cancel(ctx context.Context, sellerID, recordID, reason string) (*fulfillment.Record, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrCancelReasonRequired
	}
	row, record, err := s.getRecord(sellerID, recordID)
	if err != nil {
		return nil, err
	}
	if record.Closed() {
		return nil, ErrRecordClosed
	}

	now := s.now()
	if err := s.repo.Update(row, map[string]interface{}{
		"status":        constants.FulfillmentStatusCancelled,
		"cancel_reason": reason,
		"cancelled_at":  now,
		"updated_at":    now,
	}); err != nil {
		return nil, mapRecordUpdateError(err)
	}
	record.Status = constants.FulfillmentStatusCancelled
	record.CancelReason = reason
	record.CancelledAt = &now

	metrics.StatusChanges.WithLabelValues(ActionCancelled, record.Status).Inc()
	logger.Ctx(ctx).Infow("fulfillment_cancelled",
		"seller_id", sellerID,
		"record_id", record.ID,
	)
	s.afterWrite(ctx, sellerID, ActionCancelled, []string{record.ID})
	return &record, nil
}

// MarkAllPurchased 在单个事务内将买家全部待买记录标记为已买，任一失败整体回滚
func (s *FulfillmentService) MarkAllPurchased(ctx context.Context, sellerID, buyerID string) (*BulkResult, error) {
	sellerID = strings.TrimSpace(sellerID)
	buyerID = strings.TrimSpace(buyerID)
	if sellerID == "" {
		return nil, ErrSellerRequired
	}
	if buyerID == "" {
		return nil, ErrBuyerRequired
	}

	now := s.now()
	updated := make([]string, 0)
	err := s.repo.Transaction(func(repo repository.FulfillmentRepository) error {
		rows, err := repo.ListBySeller(repository.FulfillmentListFilter{
			SellerID: sellerID,
			BuyerID:  buyerID,
			Statuses: storedStatuses(constants.FulfillmentStatusToBuy),
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRecordFetchFailed, err)
		}
		for i := range rows {
			record := fulfillment.Normalize(rows[i].ToRaw(), s.policy)
			if record.Status != constants.FulfillmentStatusToBuy {
				continue
			}
			fields := map[string]interface{}{
				"status":     constants.FulfillmentStatusPurchased,
				"updated_at": now,
			}
			if !record.Purchased {
				fields["purchased"] = true
				fields["purchased_at"] = now
			}
			if err := repo.Update(&rows[i], fields); err != nil {
				return &BulkUpdateError{RecordID: rows[i].ID, Err: err}
			}
			updated = append(updated, rows[i].ID)
		}
		return nil
	})
	if err != nil {
		metrics.BulkUpdates.WithLabelValues("failed").Inc()
		var bulkErr *BulkUpdateError
		if errors.As(err, &bulkErr) {
			logger.Ctx(ctx).Warnw("fulfillment_bulk_purchase_rolled_back",
				"seller_id", sellerID,
				"buyer_id", buyerID,
				"record_id", bulkErr.RecordID,
				"error", bulkErr.Err,
			)
		}
		return nil, err
	}

	metrics.BulkUpdates.WithLabelValues("ok").Inc()
	if len(updated) > 0 {
		metrics.StatusChanges.WithLabelValues(ActionBulkPurchased, constants.FulfillmentStatusPurchased).Add(float64(len(updated)))
		s.afterWrite(ctx, sellerID, ActionBulkPurchased, updated)
	}
	return &BulkResult{BuyerID: buyerID, UpdatedIDs: updated, Count: len(updated)}, nil
}

// RefreshCustomsSnapshot 重新评估并保存免税额度快照
func (s *FulfillmentService) RefreshCustomsSnapshot(ctx context.Context, sellerID string) (*CustomsRefreshResult, error) {
	records, err := s.loadRecords(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	assessment := fulfillment.AssessRecords(records, s.policy)

	previous, err := s.snapshotRepo.GetBySeller(sellerID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.snapshotRepo.Upsert(&models.CustomsSnapshot{
		SellerID:   sellerID,
		Tier:       assessment.Tier,
		Percentage: models.NewMoneyFromDecimal(assessment.Percentage),
		Total:      models.NewMoneyFromDecimal(assessment.Total),
		Threshold:  models.NewMoneyFromDecimal(assessment.Threshold),
		AssessedAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}); err != nil {
		return nil, err
	}
	metrics.CustomsTier.WithLabelValues(sellerID).Set(tierGaugeValue(assessment.Tier))

	result := &CustomsRefreshResult{Assessment: assessment}
	if previous != nil {
		result.PreviousTier = previous.Tier
		result.Changed = previous.Tier != assessment.Tier
	} else {
		result.Changed = assessment.Tier != constants.CustomsTierNormal
	}
	return result, nil
}

// Subscribe 订阅卖家记录变更；缓存未启用时返回 nil 通道
func (s *FulfillmentService) Subscribe(ctx context.Context, sellerID string) (<-chan cache.SellerEvent, error) {
	if strings.TrimSpace(sellerID) == "" {
		return nil, ErrSellerRequired
	}
	return cache.SubscribeSellerEvents(ctx, sellerID)
}

func (s *FulfillmentService) loadRecords(ctx context.Context, sellerID string) ([]fulfillment.Record, error) {
	sellerID = strings.TrimSpace(sellerID)
	if sellerID == "" {
		return nil, ErrSellerRequired
	}
	log := logger.Ctx(ctx)
	if cache.Enabled() {
		raws, hit, err := cache.GetSellerRecords(ctx, sellerID)
		switch {
		case err != nil:
			metrics.CacheLookups.WithLabelValues("error").Inc()
			log.Warnw("fulfillment_cache_get_failed", "seller_id", sellerID, "error", err)
		case hit:
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return fulfillment.NormalizeAll(raws, s.policy), nil
		default:
			metrics.CacheLookups.WithLabelValues("miss").Inc()
		}
	}

	rows, err := s.repo.ListBySeller(repository.FulfillmentListFilter{SellerID: sellerID})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRecordFetchFailed, err)
	}
	raws := models.ToRawRecords(rows)
	if err := cache.SetSellerRecords(ctx, sellerID, raws, s.options.CacheTTL); err != nil {
		log.Warnw("fulfillment_cache_set_failed", "seller_id", sellerID, "error", err)
	}
	return fulfillment.NormalizeAll(raws, s.policy), nil
}

func (s *FulfillmentService) getRecord(sellerID, recordID string) (*models.FulfillmentRecord, fulfillment.Record, error) {
	sellerID = strings.TrimSpace(sellerID)
	recordID = strings.TrimSpace(recordID)
	if sellerID == "" {
		return nil, fulfillment.Record{}, ErrSellerRequired
	}
	if recordID == "" {
		return nil, fulfillment.Record{}, ErrRecordNotFound
	}
	row, err := s.repo.GetByID(sellerID, recordID)
	if err != nil {
		return nil, fulfillment.Record{}, fmt.Errorf("%w: %v", ErrRecordFetchFailed, err)
	}
	if row == nil {
		return nil, fulfillment.Record{}, ErrRecordNotFound
	}
	return row, fulfillment.Normalize(row.ToRaw(), s.policy), nil
}

// afterWrite 写入成功后失效缓存、广播变更并触发免税额度重算，失败只记日志
func (s *FulfillmentService) afterWrite(ctx context.Context, sellerID, action string, recordIDs []string) {
	log := logger.Ctx(ctx)
	if err := cache.InvalidateSellerRecords(ctx, sellerID); err != nil {
		log.Warnw("fulfillment_cache_invalidate_failed", "seller_id", sellerID, "error", err)
	}
	if err := cache.PublishSellerEvent(ctx, cache.SellerEvent{
		SellerID:  sellerID,
		Action:    action,
		RecordIDs: recordIDs,
		At:        s.now().Unix(),
	}); err != nil {
		log.Warnw("fulfillment_event_publish_failed", "seller_id", sellerID, "action", action, "error", err)
	}

	if !s.queueClient.Enabled() {
		if _, err := s.RefreshCustomsSnapshot(ctx, sellerID); err != nil {
			log.Warnw("fulfillment_customs_refresh_failed", "seller_id", sellerID, "error", err)
		}
		return
	}
	if err := s.queueClient.EnqueueCustomsCheck(queue.CustomsCheckPayload{
		SellerID: sellerID,
		Reason:   action,
	}); err != nil {
		log.Warnw("fulfillment_enqueue_customs_check_failed", "seller_id", sellerID, "error", err)
	}
}

func mapRecordUpdateError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrRecordNotFound
	}
	return fmt.Errorf("%w: %v", ErrRecordUpdateFailed, err)
}

func statusRank(status string) int {
	switch status {
	case constants.FulfillmentStatusToBuy:
		return 0
	case constants.FulfillmentStatusPurchased:
		return 1
	case constants.FulfillmentStatusDelivered:
		return 2
	}
	return -1
}

func filterStatus(status string) string {
	trimmed := strings.TrimSpace(status)
	if trimmed == "" || strings.EqualFold(trimmed, constants.FulfillmentStatusAll) {
		return constants.FulfillmentStatusAll
	}
	if normalized := fulfillment.NormalizeStatus(trimmed); normalized != "" {
		return normalized
	}
	return trimmed
}

// storedStatuses 返回状态在库中可能出现的写法
func storedStatuses(status string) []string {
	if status == constants.FulfillmentStatusToBuy {
		return []string{constants.FulfillmentStatusToBuy, constants.FulfillmentStatusToBuyLegacy}
	}
	return []string{status}
}

func filterDelivery(records []fulfillment.Record, method string) []fulfillment.Record {
	method = fulfillment.NormalizeDeliveryMethod(method)
	if method == "" {
		return records
	}
	out := make([]fulfillment.Record, 0, len(records))
	for _, record := range records {
		if record.DeliveryMethod == method {
			out = append(out, record)
		}
	}
	return out
}

// tierGaugeValue 档位映射为指标值
func tierGaugeValue(tier string) float64 {
	switch tier {
	case constants.CustomsTierNear:
		return 1
	case constants.CustomsTierOver:
		return 2
	}
	return 0
}

package worker

import (
	"context"
	"errors"
	"strings"

	"github.com/pasaph/internal/constants"
	"github.com/pasaph/internal/logger"
	"github.com/pasaph/internal/provider"
	"github.com/pasaph/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskCustomsCheck, c.handleCustomsCheck)
}

func (c *Consumer) handleCustomsCheck(ctx context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_customs_check_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	payload, err := queue.ParseCustomsCheckPayload(task)
	if err != nil {
		logger.Warnw("worker_customs_check_unmarshal_failed", "error", err)
		// 载荷损坏重试无意义
		return errors.Join(err, asynq.SkipRetry)
	}
	sellerID := strings.TrimSpace(payload.SellerID)
	if sellerID == "" {
		logger.Debugw("worker_customs_check_skip_invalid_payload", "reason", payload.Reason)
		return nil
	}
	if c.FulfillmentService == nil {
		logger.Warnw("worker_customs_check_skip_service_nil", "seller_id", sellerID)
		return nil
	}

	result, err := c.FulfillmentService.RefreshCustomsSnapshot(ctx, sellerID)
	if err != nil {
		logger.Warnw("worker_customs_check_refresh_failed", "seller_id", sellerID, "error", err)
		return err
	}
	assessment := result.Assessment
	if result.Changed && assessment.Tier != constants.CustomsTierNormal {
		logger.Warnw("worker_customs_tier_changed",
			"seller_id", sellerID,
			"previous_tier", result.PreviousTier,
			"tier", assessment.Tier,
			"total", assessment.Total.StringFixed(2),
			"threshold", assessment.Threshold.StringFixed(2),
			"percentage", assessment.Percentage.StringFixed(2),
			"reason", payload.Reason,
		)
		return nil
	}
	logger.Debugw("worker_customs_check_done",
		"seller_id", sellerID,
		"tier", assessment.Tier,
		"changed", result.Changed,
	)
	return nil
}

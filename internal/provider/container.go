package provider

import (
	"time"

	"github.com/pasaph/internal/cache"
	"github.com/pasaph/internal/config"
	"github.com/pasaph/internal/logger"
	"github.com/pasaph/internal/models"
	"github.com/pasaph/internal/payment/stripe"
	"github.com/pasaph/internal/queue"
	"github.com/pasaph/internal/repository"
	"github.com/pasaph/internal/service"

	"gorm.io/gorm"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	FulfillmentRepo     repository.FulfillmentRepository
	CustomsSnapshotRepo repository.CustomsSnapshotRepository
	CheckoutSessionRepo repository.CheckoutSessionRepository

	// Services
	TokenService       *service.TokenService
	FulfillmentService *service.FulfillmentService
	CheckoutService    *service.CheckoutService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) (*Container, error) {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	// 1. 初始化 Repositories
	c.initRepositories(models.DB)

	// 2. 初始化 Services
	if err := c.initServices(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Container) initRepositories(db *gorm.DB) {
	c.FulfillmentRepo = repository.NewFulfillmentRepository(db)
	c.CustomsSnapshotRepo = repository.NewCustomsSnapshotRepository(db)
	c.CheckoutSessionRepo = repository.NewCheckoutSessionRepository(db)
}

func (c *Container) initServices() error {
	cfg := c.Config
	policy, err := cfg.Fulfillment.ToPolicy()
	if err != nil {
		logger.Errorw("provider_fulfillment_policy_invalid", "error", err)
		return err
	}

	c.TokenService = service.NewTokenService(cfg.Auth)
	c.FulfillmentService = service.NewFulfillmentService(c.FulfillmentRepo, c.CustomsSnapshotRepo, c.QueueClient, policy, service.FulfillmentOptions{
		Currency:       cfg.Fulfillment.Currency,
		CurrencySymbol: cfg.Fulfillment.CurrencySymbol,
		ExportTitle:    cfg.Fulfillment.ExportTitle,
		CacheTTL:       time.Duration(cfg.Fulfillment.CacheTTLSeconds) * time.Second,
	})
	c.CheckoutService = service.NewCheckoutService(c.CheckoutSessionRepo, buildStripeConfig(cfg.Payment.Stripe), service.CheckoutOptions{
		Currency:      cfg.Fulfillment.Currency,
		CODEnabled:    cfg.Payment.COD.Enabled,
		CODConfirmURL: cfg.Payment.COD.ConfirmURL,
		SessionTTL:    time.Duration(cfg.Payment.SessionExpireMinutes) * time.Minute,
	})
	return nil
}

// buildStripeConfig 未启用或配置无效时返回 nil，刷卡结账随之关闭
func buildStripeConfig(cfg config.StripeConfig) *stripe.Config {
	if !cfg.Enabled {
		return nil
	}
	stripeCfg := stripe.NewConfig(cfg.SecretKey, cfg.WebhookSecret, cfg.SuccessURL, cfg.CancelURL, cfg.APIBaseURL, cfg.WebhookToleranceSeconds)
	if err := stripe.ValidateConfig(stripeCfg); err != nil {
		logger.Warnw("provider_stripe_config_invalid", "error", err)
		return nil
	}
	return stripeCfg
}

// Close 释放队列与缓存连接
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.QueueClient != nil {
		if err := c.QueueClient.Close(); err != nil {
			logger.Warnw("provider_close_queue_client_failed", "error", err)
		}
	}
	if err := cache.Close(); err != nil {
		logger.Warnw("provider_close_redis_failed", "error", err)
	}
}

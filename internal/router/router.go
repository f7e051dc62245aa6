package router

import (
	"fmt"
	"strings"

	"github.com/pasaph/internal/cache"
	"github.com/pasaph/internal/config"
	"github.com/pasaph/internal/constants"
	publichandlers "github.com/pasaph/internal/http/handlers/public"
	sellerhandlers "github.com/pasaph/internal/http/handlers/seller"
	"github.com/pasaph/internal/logger"
	"github.com/pasaph/internal/metrics"
	"github.com/pasaph/internal/provider"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	if err := RegisterValidators(); err != nil {
		logger.Errorw("router_register_validators_failed", "error", err)
	}
	r := gin.New()

	// 初始化 Handler（按卖家/买家与公开分组）
	publicHandler := publichandlers.New(c)
	sellerHandler := sellerhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "pasaph"
	}
	checkoutRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:checkout", redisPrefix),
		WindowSeconds: cfg.Security.CheckoutRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.CheckoutRateLimit.MaxAttempts,
		BlockSeconds:  cfg.Security.CheckoutRateLimit.BlockSeconds,
		Message:       "too many checkout attempts, please retry later",
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(MetricsMiddleware())
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 卖家接口
		seller := apiV1.Group("/seller")
		seller.Use(JWTAuthMiddleware(c.TokenService, constants.RoleSeller))
		{
			records := seller.Group("/fulfillment")
			records.GET("", sellerHandler.ListFulfillment)
			records.GET("/totals", sellerHandler.GetTotals)
			records.GET("/customs", sellerHandler.GetCustoms)
			records.GET("/records", sellerHandler.ListRecords)
			records.GET("/export", gzip.Gzip(gzip.DefaultCompression), sellerHandler.ExportFulfillment)
			records.GET("/events", sellerHandler.StreamEvents)
			records.PUT("/:id/status", sellerHandler.UpdateStatus)
			records.POST("/:id/bought", sellerHandler.ToggleBought)
			records.POST("/:id/cancel", sellerHandler.Cancel)
			records.POST("/mark-purchased", sellerHandler.MarkAllPurchased)
		}

		// 买家结账接口
		checkout := apiV1.Group("/checkout")
		checkout.Use(JWTAuthMiddleware(c.TokenService, constants.RoleBuyer))
		{
			checkout.POST("/sessions", RateLimitMiddleware(cache.Client(), checkoutRule, KeyByUser), publicHandler.CreateCheckout)
			checkout.GET("/sessions/:session_id", publicHandler.GetCheckout)
		}

		// 支付回调
		payments := apiV1.Group("/payments")
		{
			payments.POST("/webhook/stripe", publicHandler.StripeWebhook)
		}
	}

	// 健康检查与指标
	r.GET("/healthz", publicHandler.Healthz)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	return r
}

package worker

import (
	"context"
	"errors"
	"time"

	"github.com/pasaph/internal/config"
	"github.com/pasaph/internal/logger"
	"github.com/pasaph/internal/queue"
	"github.com/pasaph/internal/service"

	"github.com/hibiken/asynq"
)

const (
	checkoutSweepInterval = time.Minute
)

// Service 异步队列服务
type Service struct {
	name     string
	server   *asynq.Server
	mux      *asynq.ServeMux
	consumer *Consumer
}

// NewService 创建异步队列服务
func NewService(cfg *config.QueueConfig, consumer *Consumer) (*Service, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("queue disabled")
	}
	if consumer == nil {
		return nil, errors.New("consumer is nil")
	}
	opt, serverCfg := queue.BuildServerConfig(cfg)
	server := asynq.NewServer(opt, serverCfg)
	mux := asynq.NewServeMux()
	consumer.Register(mux)
	return &Service{
		name:     "worker",
		server:   server,
		mux:      mux,
		consumer: consumer,
	}, nil
}

// Name 服务名称
func (s *Service) Name() string {
	if s == nil || s.name == "" {
		return "worker"
	}
	return s.name
}

// Start 启动服务
func (s *Service) Start(ctx context.Context) error {
	if s == nil || s.server == nil || s.mux == nil {
		return errors.New("worker not initialized")
	}
	return s.server.Run(s.mux)
}

// Stop 停止服务
func (s *Service) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	_ = ctx
	s.server.Shutdown()
	return nil
}

// Sweeper 定期将超时未支付的刷卡结账会话标记为过期，不依赖队列
type Sweeper struct {
	checkout *service.CheckoutService
	interval time.Duration
	now      func() time.Time
}

// NewSweeper 创建会话清理服务
func NewSweeper(checkout *service.CheckoutService) *Sweeper {
	return &Sweeper{
		checkout: checkout,
		interval: checkoutSweepInterval,
		now:      time.Now,
	}
}

// Name 服务名称
func (s *Sweeper) Name() string {
	return "checkout-sweeper"
}

// Start 立即执行一次，之后按间隔执行直到 ctx 结束
func (s *Sweeper) Start(ctx context.Context) error {
	if s == nil || s.checkout == nil {
		return errors.New("sweeper not initialized")
	}
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// Stop 由 Start 的 ctx 控制退出
func (s *Sweeper) Stop(ctx context.Context) error {
	return nil
}

// RunOnce 执行一次过期清理
func (s *Sweeper) RunOnce(ctx context.Context) int64 {
	expired, err := s.checkout.ExpireStaleSessions(ctx, s.now())
	if err != nil {
		logger.Warnw("worker_checkout_sweep_failed", "error", err)
		return 0
	}
	return expired
}

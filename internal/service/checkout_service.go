package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/pasaph/internal/constants"
	"github.com/pasaph/internal/logger"
	"github.com/pasaph/internal/metrics"
	"github.com/pasaph/internal/models"
	"github.com/pasaph/internal/payment/stripe"
	"github.com/pasaph/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	checkoutReferencePrefix = "chk_"
	codSessionPrefix        = "cod_"
)

// CheckoutOptions 结账参数
type CheckoutOptions struct {
	Currency      string
	CODEnabled    bool
	CODConfirmURL string
	SessionTTL    time.Duration
}

// CheckoutService 托管结账服务
type CheckoutService struct {
	repo      repository.CheckoutSessionRepository
	stripeCfg *stripe.Config
	options   CheckoutOptions
	now       func() time.Time
}

// NewCheckoutService 创建结账服务，stripeCfg 为 nil 时不支持刷卡
func NewCheckoutService(repo repository.CheckoutSessionRepository, stripeCfg *stripe.Config, options CheckoutOptions) *CheckoutService {
	if options.Currency == "" {
		options.Currency = constants.DefaultCurrency
	}
	return &CheckoutService{
		repo:      repo,
		stripeCfg: stripeCfg,
		options:   options,
		now:       time.Now,
	}
}

// CheckoutItem 结账明细
type CheckoutItem struct {
	Title      string
	Quantity   int
	UnitAmount decimal.Decimal
}

// CheckoutInput 创建结账输入
type CheckoutInput struct {
	BuyerID  string
	Mode     string
	Currency string
	Items    []CheckoutItem
}

// CreateCheckout 创建结账会话并返回跳转地址
func (s *CheckoutService) CreateCheckout(ctx context.Context, input CheckoutInput) (*models.CheckoutSession, error) {
	buyerID := strings.TrimSpace(input.BuyerID)
	if buyerID == "" {
		return nil, ErrBuyerRequired
	}
	mode := strings.ToLower(strings.TrimSpace(input.Mode))
	if !constants.IsCheckoutMode(mode) {
		return nil, ErrCheckoutModeInvalid
	}
	lineItems, amount, err := normalizeCheckoutItems(input.Items)
	if err != nil {
		return nil, err
	}
	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = s.options.Currency
	}

	session := &models.CheckoutSession{
		BuyerID:   buyerID,
		Mode:      mode,
		Status:    constants.CheckoutStatusPending,
		Currency:  currency,
		Amount:    models.NewMoneyFromDecimal(amount),
		LineItems: lineItems,
	}
	log := logger.Ctx(ctx)

	switch mode {
	case constants.CheckoutModeCard:
		if s.stripeCfg == nil {
			return nil, ErrCheckoutModeUnavailable
		}
		reference := checkoutReferencePrefix + uuid.NewString()
		items := make([]stripe.LineItem, 0, len(lineItems))
		for _, item := range lineItems {
			items = append(items, stripe.LineItem{
				Name:       item.Title,
				Quantity:   item.Quantity,
				UnitAmount: item.UnitAmount.StringFixed(2),
			})
		}
		result, err := stripe.CreateCheckoutSession(ctx, s.stripeCfg, stripe.CreateInput{
			Reference: reference,
			BuyerID:   buyerID,
			Currency:  currency,
			LineItems: items,
		})
		if err != nil {
			log.Warnw("checkout_stripe_create_failed",
				"buyer_id", buyerID,
				"reference", reference,
				"error", err,
			)
			return nil, fmt.Errorf("%w: %v", ErrCheckoutGatewayFailed, err)
		}
		session.SessionID = result.SessionID
		session.RedirectURL = result.URL
		session.ProviderRef = reference
	case constants.CheckoutModeCOD:
		if !s.options.CODEnabled {
			return nil, ErrCheckoutModeUnavailable
		}
		session.SessionID = codSessionPrefix + uuid.NewString()
		redirectURL, err := buildCODRedirectURL(s.options.CODConfirmURL, session.SessionID)
		if err != nil {
			return nil, ErrCheckoutModeUnavailable
		}
		session.RedirectURL = redirectURL
	}

	if err := s.repo.Create(session); err != nil {
		log.Errorw("checkout_session_persist_failed",
			"buyer_id", buyerID,
			"session_id", session.SessionID,
			"error", err,
		)
		return nil, ErrCheckoutCreateFailed
	}
	metrics.CheckoutSessions.WithLabelValues(mode, constants.CheckoutStatusPending).Inc()
	log.Infow("checkout_session_created",
		"buyer_id", buyerID,
		"session_id", session.SessionID,
		"mode", mode,
		"amount", session.Amount.StringFixed(2),
	)
	return session, nil
}

// GetSession 查询买家的结账会话，待支付的刷卡会话会向 Stripe 刷新状态
func (s *CheckoutService) GetSession(ctx context.Context, buyerID, sessionID string) (*models.CheckoutSession, error) {
	session, err := s.repo.GetBySessionID(strings.TrimSpace(sessionID))
	if err != nil {
		return nil, err
	}
	if session == nil || session.BuyerID != strings.TrimSpace(buyerID) {
		return nil, ErrCheckoutSessionNotFound
	}
	if session.Mode != constants.CheckoutModeCard || session.Status != constants.CheckoutStatusPending || s.stripeCfg == nil {
		return session, nil
	}

	result, err := stripe.QueryPayment(ctx, s.stripeCfg, session.SessionID)
	if err != nil {
		logger.Ctx(ctx).Warnw("checkout_stripe_query_failed",
			"session_id", session.SessionID,
			"error", err,
		)
		return session, nil
	}
	if err := s.applyProviderStatus(ctx, session, result.Status, result.PaidAt); err != nil {
		return nil, err
	}
	return session, nil
}

// HandleStripeWebhook 校验 Stripe 回调并更新会话状态；与会话无关的事件返回 nil
func (s *CheckoutService) HandleStripeWebhook(ctx context.Context, headers map[string]string, body []byte, now time.Time) (*models.CheckoutSession, error) {
	if s.stripeCfg == nil {
		return nil, ErrCheckoutModeUnavailable
	}
	result, err := stripe.VerifyAndParseWebhook(s.stripeCfg, headers, body, now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWebhookInvalid, err)
	}
	if result.SessionID == "" && result.Reference == "" {
		logger.Ctx(ctx).Debugw("checkout_webhook_ignored",
			"event_id", result.EventID,
			"event_type", result.EventType,
		)
		return nil, nil
	}

	var session *models.CheckoutSession
	if result.SessionID != "" {
		if session, err = s.repo.GetBySessionID(result.SessionID); err != nil {
			return nil, err
		}
	}
	if session == nil && result.Reference != "" {
		if session, err = s.repo.GetByProviderRef(result.Reference); err != nil {
			return nil, err
		}
	}
	if session == nil {
		return nil, ErrCheckoutSessionNotFound
	}

	if err := s.applyProviderStatus(ctx, session, result.Status, result.PaidAt); err != nil {
		return nil, err
	}
	logger.Ctx(ctx).Infow("checkout_webhook_processed",
		"event_id", result.EventID,
		"event_type", result.EventType,
		"session_id", session.SessionID,
		"status", session.Status,
	)
	return session, nil
}

// ExpireStaleSessions 将超时未支付的刷卡会话标记为过期
func (s *CheckoutService) ExpireStaleSessions(ctx context.Context, now time.Time) (int64, error) {
	if s.options.SessionTTL <= 0 {
		return 0, nil
	}
	expired, err := s.repo.ExpirePendingBefore(constants.CheckoutModeCard, now.Add(-s.options.SessionTTL))
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		metrics.CheckoutSessions.WithLabelValues(constants.CheckoutModeCard, constants.CheckoutStatusExpired).Add(float64(expired))
		logger.Ctx(ctx).Infow("checkout_sessions_expired", "count", expired)
	}
	return expired, nil
}

// applyProviderStatus 已支付为终态；过期或失败的会话仍可被支付成功覆盖
func (s *CheckoutService) applyProviderStatus(ctx context.Context, session *models.CheckoutSession, providerStatus string, paidAt *time.Time) error {
	target := mapProviderStatus(providerStatus)
	if target == "" || target == session.Status || session.Status == constants.CheckoutStatusPaid {
		return nil
	}
	if session.Status != constants.CheckoutStatusPending && target != constants.CheckoutStatusPaid {
		return nil
	}
	if target == constants.CheckoutStatusPaid && paidAt == nil {
		now := s.now()
		paidAt = &now
	}
	if target != constants.CheckoutStatusPaid {
		paidAt = nil
	}
	if err := s.repo.UpdateStatus(session.SessionID, target, paidAt); err != nil {
		if errors.Is(err, repository.ErrCheckoutSessionPaid) {
			// 并发回调已先行置为已支付
			session.Status = constants.CheckoutStatusPaid
			return nil
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrCheckoutSessionNotFound
		}
		return err
	}
	session.Status = target
	if paidAt != nil {
		session.PaidAt = paidAt
	}
	metrics.CheckoutSessions.WithLabelValues(session.Mode, target).Inc()
	logger.Ctx(ctx).Infow("checkout_session_status_changed",
		"session_id", session.SessionID,
		"status", target,
	)
	return nil
}

func mapProviderStatus(status string) string {
	switch status {
	case stripe.StatusSuccess:
		return constants.CheckoutStatusPaid
	case stripe.StatusFailed:
		return constants.CheckoutStatusFailed
	case stripe.StatusExpired:
		return constants.CheckoutStatusExpired
	}
	return ""
}

func normalizeCheckoutItems(items []CheckoutItem) ([]models.CheckoutLineItem, decimal.Decimal, error) {
	if len(items) == 0 {
		return nil, decimal.Zero, ErrCheckoutItemsInvalid
	}
	total := decimal.Zero
	lineItems := make([]models.CheckoutLineItem, 0, len(items))
	for _, item := range items {
		title := strings.TrimSpace(item.Title)
		unit := item.UnitAmount.Round(2)
		if title == "" || item.Quantity < 1 || !unit.IsPositive() {
			return nil, decimal.Zero, ErrCheckoutItemsInvalid
		}
		total = total.Add(unit.Mul(decimal.NewFromInt(int64(item.Quantity))))
		lineItems = append(lineItems, models.CheckoutLineItem{
			Title:      title,
			Quantity:   item.Quantity,
			UnitAmount: models.NewMoneyFromDecimal(unit),
		})
	}
	return lineItems, total, nil
}

func buildCODRedirectURL(confirmURL, sessionID string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(confirmURL))
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("invalid cod confirm url: %q", confirmURL)
	}
	query := parsed.Query()
	query.Set("session_id", sessionID)
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

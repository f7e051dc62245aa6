package repository

import (
	"errors"
	"time"

	"github.com/pasaph/internal/constants"
	"github.com/pasaph/internal/models"

	"gorm.io/gorm"
)

// ErrCheckoutSessionPaid 会话已支付，状态不可再变更
var ErrCheckoutSessionPaid = errors.New("checkout session already paid")

// CheckoutSessionRepository 结账会话数据访问接口
type CheckoutSessionRepository interface {
	Create(session *models.CheckoutSession) error
	GetBySessionID(sessionID string) (*models.CheckoutSession, error)
	GetByProviderRef(providerRef string) (*models.CheckoutSession, error)
	UpdateStatus(sessionID, status string, paidAt *time.Time) error
	ExpirePendingBefore(mode string, cutoff time.Time) (int64, error)
}

// GormCheckoutSessionRepository GORM 实现
type GormCheckoutSessionRepository struct {
	db *gorm.DB
}

// NewCheckoutSessionRepository 创建结账会话仓库
func NewCheckoutSessionRepository(db *gorm.DB) *GormCheckoutSessionRepository {
	return &GormCheckoutSessionRepository{db: db}
}

// Create 创建会话
func (r *GormCheckoutSessionRepository) Create(session *models.CheckoutSession) error {
	return r.db.Create(session).Error
}

// GetBySessionID 根据会话ID获取
func (r *GormCheckoutSessionRepository) GetBySessionID(sessionID string) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	if err := r.db.Where("session_id = ?", sessionID).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// GetByProviderRef 根据业务参考号获取
func (r *GormCheckoutSessionRepository) GetByProviderRef(providerRef string) (*models.CheckoutSession, error) {
	var session models.CheckoutSession
	if err := r.db.Where("provider_ref = ?", providerRef).First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// UpdateStatus 更新会话状态，已支付的会话不会被覆盖（返回 ErrCheckoutSessionPaid）
func (r *GormCheckoutSessionRepository) UpdateStatus(sessionID, status string, paidAt *time.Time) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now(),
	}
	if paidAt != nil {
		updates["paid_at"] = *paidAt
	}
	result := r.db.Model(&models.CheckoutSession{}).
		Where("session_id = ? AND status <> ?", sessionID, constants.CheckoutStatusPaid).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := r.db.Model(&models.CheckoutSession{}).Where("session_id = ?", sessionID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrCheckoutSessionPaid
	}
	return gorm.ErrRecordNotFound
}

// ExpirePendingBefore 将指定模式下创建时间早于 cutoff 的待支付会话标记为过期
func (r *GormCheckoutSessionRepository) ExpirePendingBefore(mode string, cutoff time.Time) (int64, error) {
	result := r.db.Model(&models.CheckoutSession{}).
		Where("mode = ? AND status = ? AND created_at < ?", mode, constants.CheckoutStatusPending, cutoff).
		Updates(map[string]interface{}{
			"status":     constants.CheckoutStatusExpired,
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

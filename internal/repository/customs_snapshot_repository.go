package repository

import (
	"errors"

	"github.com/pasaph/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CustomsSnapshotRepository 免税额度快照数据访问接口
type CustomsSnapshotRepository interface {
	GetBySeller(sellerID string) (*models.CustomsSnapshot, error)
	Upsert(snapshot *models.CustomsSnapshot) error
}

// GormCustomsSnapshotRepository GORM 实现
type GormCustomsSnapshotRepository struct {
	db *gorm.DB
}

// NewCustomsSnapshotRepository 创建快照仓库
func NewCustomsSnapshotRepository(db *gorm.DB) *GormCustomsSnapshotRepository {
	return &GormCustomsSnapshotRepository{db: db}
}

// GetBySeller 获取卖家最近一次评估
func (r *GormCustomsSnapshotRepository) GetBySeller(sellerID string) (*models.CustomsSnapshot, error) {
	var snapshot models.CustomsSnapshot
	if err := r.db.Where("seller_id = ?", sellerID).First(&snapshot).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &snapshot, nil
}

// Upsert 写入或覆盖卖家快照
func (r *GormCustomsSnapshotRepository) Upsert(snapshot *models.CustomsSnapshot) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "seller_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tier", "percentage", "total", "threshold", "assessed_at", "updated_at"}),
	}).Create(snapshot).Error
}

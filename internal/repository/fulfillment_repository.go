package repository

import (
	"errors"
	"strings"

	"github.com/pasaph/internal/models"

	"gorm.io/gorm"
)

// FulfillmentRepository 代购记录数据访问接口
type FulfillmentRepository interface {
	Create(record *models.FulfillmentRecord) error
	GetByID(sellerID, id string) (*models.FulfillmentRecord, error)
	ListBySeller(filter FulfillmentListFilter) ([]models.FulfillmentRecord, error)
	CountBySeller(filter FulfillmentListFilter) (int64, error)
	Update(record *models.FulfillmentRecord, fields map[string]interface{}) error
	Transaction(fn func(repo FulfillmentRepository) error) error
	WithTx(tx *gorm.DB) *GormFulfillmentRepository
}

// GormFulfillmentRepository GORM 实现
type GormFulfillmentRepository struct {
	db *gorm.DB
}

// NewFulfillmentRepository 创建代购记录仓库
func NewFulfillmentRepository(db *gorm.DB) *GormFulfillmentRepository {
	return &GormFulfillmentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormFulfillmentRepository) WithTx(tx *gorm.DB) *GormFulfillmentRepository {
	if tx == nil {
		return r
	}
	return &GormFulfillmentRepository{db: tx}
}

// Transaction 在单个事务内执行 fn，fn 返回错误时整体回滚
func (r *GormFulfillmentRepository) Transaction(fn func(repo FulfillmentRepository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

// Create 创建代购记录
func (r *GormFulfillmentRepository) Create(record *models.FulfillmentRecord) error {
	return r.db.Create(record).Error
}

// GetByID 获取卖家名下的单条记录
func (r *GormFulfillmentRepository) GetByID(sellerID, id string) (*models.FulfillmentRecord, error) {
	var record models.FulfillmentRecord
	err := r.db.Where("seller_id = ? AND id = ?", sellerID, id).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// ListBySeller 按卖家查询记录，按创建顺序返回；设置 PageSize 时分页
func (r *GormFulfillmentRepository) ListBySeller(filter FulfillmentListFilter) ([]models.FulfillmentRecord, error) {
	query := r.applyListFilter(r.db.Model(&models.FulfillmentRecord{}), filter)
	query = applyPagination(query, filter.Page, filter.PageSize)

	var records []models.FulfillmentRecord
	if err := query.Order("created_at asc").Order("id asc").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// CountBySeller 统计满足条件的记录数，忽略分页参数
func (r *GormFulfillmentRepository) CountBySeller(filter FulfillmentListFilter) (int64, error) {
	var total int64
	if err := r.applyListFilter(r.db.Model(&models.FulfillmentRecord{}), filter).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *GormFulfillmentRepository) applyListFilter(query *gorm.DB, filter FulfillmentListFilter) *gorm.DB {
	query = query.Where("seller_id = ?", filter.SellerID)
	if buyerID := strings.TrimSpace(filter.BuyerID); buyerID != "" {
		query = query.Where("buyer_id = ?", buyerID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		condition, argCount := buildLikeCondition(r.db, []string{"item_title", "buyer_name"})
		query = query.Where("("+condition+")", repeatLikeArgs("%"+search+"%", argCount)...)
	}
	return query
}

// Update 按字段更新记录，记录不存在时返回 gorm.ErrRecordNotFound
func (r *GormFulfillmentRepository) Update(record *models.FulfillmentRecord, fields map[string]interface{}) error {
	if record == nil || record.ID == "" {
		return gorm.ErrRecordNotFound
	}
	result := r.db.Model(&models.FulfillmentRecord{}).
		Where("id = ? AND seller_id = ?", record.ID, record.SellerID).
		Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

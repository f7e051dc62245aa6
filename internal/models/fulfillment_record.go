package models

import (
	"time"

	"github.com/pasaph/internal/fulfillment"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// FulfillmentRecord 卖家已接受的代购请求
type FulfillmentRecord struct {
	ID               string         `gorm:"primarykey;type:varchar(36)" json:"id"`            // 主键（UUID）
	SellerID         string         `gorm:"type:varchar(64);index;not null" json:"seller_id"` // 卖家ID
	BuyerID          string         `gorm:"type:varchar(64);index" json:"buyer_id"`           // 买家ID
	BuyerName        string         `gorm:"type:varchar(128)" json:"buyer_name"`              // 买家展示名
	ItemTitle        string         `gorm:"type:varchar(255);not null" json:"item_title"`     // 商品名称
	Color            string         `gorm:"type:varchar(64)" json:"color"`                    // 颜色
	Capacity         string         `gorm:"type:varchar(64)" json:"capacity"`                 // 容量/规格
	DeliveryMethod   string         `gorm:"type:varchar(16)" json:"delivery_method"`          // 交付方式（meetup/shipping）
	DeliveryLocation string         `gorm:"type:varchar(255)" json:"delivery_location"`       // 交付地点
	Quantity         int            `gorm:"not null;default:1" json:"quantity"`               // 数量
	WeightKG         *Money         `gorm:"type:decimal(10,2)" json:"weight_kg,omitempty"`    // 重量（公斤）
	TargetPrice      *Money         `gorm:"type:decimal(20,2)" json:"target_price,omitempty"` // 目标价
	Price            *Money         `gorm:"type:decimal(20,2)" json:"price,omitempty"`        // 备用价格
	ServiceFee       *Money         `gorm:"type:decimal(20,2)" json:"service_fee,omitempty"`  // 服务费
	NeededBy         *time.Time     `json:"needed_by,omitempty"`                              // 截止日期
	Status           string         `gorm:"type:varchar(16);index;not null" json:"status"`    // 状态（to_buy/purchased/delivered/cancelled）
	Purchased        bool           `gorm:"not null;default:false" json:"purchased"`          // 是否已买
	PurchasedAt      *time.Time     `json:"purchased_at,omitempty"`                           // 购买时间
	DeliveredAt      *time.Time     `json:"delivered_at,omitempty"`                           // 送达时间
	CancelReason     string         `gorm:"type:varchar(500)" json:"cancel_reason,omitempty"` // 取消原因
	CancelledAt      *time.Time     `json:"cancelled_at,omitempty"`                           // 取消时间
	CreatedAt        time.Time      `gorm:"index" json:"created_at"`                          // 创建时间
	UpdatedAt        time.Time      `gorm:"index" json:"updated_at"`                          // 更新时间
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`                                   // 软删除时间
}

// TableName 指定表名
func (FulfillmentRecord) TableName() string {
	return "fulfillment_records"
}

// ToRaw 转换为汇总层使用的原始记录
func (r FulfillmentRecord) ToRaw() fulfillment.RawRecord {
	return fulfillment.RawRecord{
		ID:               r.ID,
		SellerID:         r.SellerID,
		BuyerID:          r.BuyerID,
		BuyerName:        r.BuyerName,
		ItemTitle:        r.ItemTitle,
		Color:            r.Color,
		Capacity:         r.Capacity,
		DeliveryMethod:   r.DeliveryMethod,
		DeliveryLocation: r.DeliveryLocation,
		Quantity:         r.Quantity,
		WeightKG:         r.WeightKG.DecimalPtr(),
		TargetPrice:      r.TargetPrice.DecimalPtr(),
		Price:            r.Price.DecimalPtr(),
		ServiceFee:       r.ServiceFee.DecimalPtr(),
		NeededBy:         r.NeededBy,
		Status:           r.Status,
		Purchased:        r.Purchased,
		PurchasedAt:      r.PurchasedAt,
		CancelReason:     r.CancelReason,
		CancelledAt:      r.CancelledAt,
	}
}

// ToRawRecords 批量转换
func ToRawRecords(rows []FulfillmentRecord) []fulfillment.RawRecord {
	raws := make([]fulfillment.RawRecord, 0, len(rows))
	for _, row := range rows {
		raws = append(raws, row.ToRaw())
	}
	return raws
}

// MoneyFromFloat 便于种子数据构造金额
func MoneyFromFloat(value float64) *Money {
	d := decimal.NewFromFloat(value)
	return NewMoneyPtr(&d)
}

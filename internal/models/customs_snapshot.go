package models

import "time"

// CustomsSnapshot 卖家最近一次免税额度评估
type CustomsSnapshot struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	SellerID   string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"seller_id"`
	Tier       string    `gorm:"type:varchar(16);not null" json:"tier"`
	Percentage Money     `gorm:"type:decimal(10,2);not null" json:"percentage"`
	Total      Money     `gorm:"type:decimal(20,2);not null" json:"total"`
	Threshold  Money     `gorm:"type:decimal(20,2);not null" json:"threshold"`
	AssessedAt time.Time `gorm:"index" json:"assessed_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName 指定表名
func (CustomsSnapshot) TableName() string {
	return "customs_snapshots"
}

package models

import "time"

// CheckoutLineItem 结账明细
type CheckoutLineItem struct {
	Title      string `json:"title"`
	Quantity   int    `json:"quantity"`
	UnitAmount Money  `json:"unit_amount"`
}

// CheckoutSession 托管结账会话
type CheckoutSession struct {
	ID          uint               `gorm:"primarykey" json:"id"`
	SessionID   string             `gorm:"type:varchar(255);uniqueIndex;not null" json:"session_id"` // 会话ID（Stripe cs_ 或本地 cod_）
	BuyerID     string             `gorm:"type:varchar(64);index;not null" json:"buyer_id"`
	Mode        string             `gorm:"type:varchar(16);not null" json:"mode"`                    // card/cod
	Status      string             `gorm:"type:varchar(16);index;not null" json:"status"`            // pending/paid/failed/expired
	Currency    string             `gorm:"type:varchar(8);not null" json:"currency"`
	Amount      Money              `gorm:"type:decimal(20,2);not null" json:"amount"`
	RedirectURL string             `gorm:"type:varchar(1024)" json:"redirect_url"`
	ProviderRef string             `gorm:"type:varchar(255);index" json:"provider_ref,omitempty"`
	LineItems   []CheckoutLineItem `gorm:"serializer:json;type:text" json:"line_items"`
	PaidAt      *time.Time         `json:"paid_at,omitempty"`
	CreatedAt   time.Time          `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// TableName 指定表名
func (CheckoutSession) TableName() string {
	return "checkout_sessions"
}

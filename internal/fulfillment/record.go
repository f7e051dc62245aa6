package fulfillment

import (
	"strings"
	"time"

	"github.com/pasaph/internal/constants"

	"github.com/shopspring/decimal"
)

// RawRecord 存储中的交付记录，可选字段可能缺失
type RawRecord struct {
	ID               string           `json:"id"`
	SellerID         string           `json:"seller_id"`
	BuyerID          string           `json:"buyer_id"`
	BuyerName        string           `json:"buyer_name"`
	ItemTitle        string           `json:"item_title"`
	Color            string           `json:"color,omitempty"`
	Capacity         string           `json:"capacity,omitempty"`
	DeliveryMethod   string           `json:"delivery_method,omitempty"`
	DeliveryLocation string           `json:"delivery_location,omitempty"`
	Quantity         int              `json:"quantity"`
	WeightKG         *decimal.Decimal `json:"weight_kg,omitempty"`
	TargetPrice      *decimal.Decimal `json:"target_price,omitempty"`
	Price            *decimal.Decimal `json:"price,omitempty"`
	ServiceFee       *decimal.Decimal `json:"service_fee,omitempty"`
	NeededBy         *time.Time       `json:"needed_by,omitempty"`
	Status           string           `json:"status,omitempty"`
	Purchased        bool             `json:"purchased"`
	PurchasedAt      *time.Time       `json:"purchased_at,omitempty"`
	CancelReason     string           `json:"cancel_reason,omitempty"`
	CancelledAt      *time.Time       `json:"cancelled_at,omitempty"`
}

// Record 补齐默认值后的交付记录视图
type Record struct {
	ID               string          `json:"id"`
	SellerID         string          `json:"seller_id"`
	BuyerID          string          `json:"buyer_id"`
	BuyerName        string          `json:"buyer_name"`
	ItemTitle        string          `json:"item_title"`
	Color            string          `json:"color,omitempty"`
	Capacity         string          `json:"capacity,omitempty"`
	DeliveryMethod   string          `json:"delivery_method"`
	DeliveryLocation string          `json:"delivery_location"`
	Quantity         int             `json:"quantity"`
	WeightKG         decimal.Decimal `json:"weight_kg"`
	TargetPrice      decimal.Decimal `json:"target_price"`
	ServiceFee       decimal.Decimal `json:"service_fee"`
	NeededBy         *time.Time      `json:"needed_by,omitempty"`
	Status           string          `json:"status"`
	Purchased        bool            `json:"purchased"`
	PurchasedAt      *time.Time      `json:"purchased_at,omitempty"`
	CancelReason     string          `json:"cancel_reason,omitempty"`
	CancelledAt      *time.Time      `json:"cancelled_at,omitempty"`
}

// Normalize 将存储记录转换为视图记录，缺失字段使用 Policy 中的默认值
func Normalize(raw RawRecord, p Policy) Record {
	quantity := raw.Quantity
	if quantity <= 0 {
		quantity = p.defaultQuantity()
	}

	weight := p.DefaultWeightKG
	if raw.WeightKG != nil {
		weight = *raw.WeightKG
	}

	target := decimal.Zero
	switch {
	case raw.TargetPrice != nil:
		target = *raw.TargetPrice
	case raw.Price != nil:
		target = *raw.Price
	}

	fee := p.ServiceFeeFor(target)
	if raw.ServiceFee != nil {
		fee = *raw.ServiceFee
	}

	method := NormalizeDeliveryMethod(raw.DeliveryMethod)
	if method == "" {
		method = p.defaultDeliveryMethod()
	}

	status := NormalizeStatus(raw.Status)
	if status == "" {
		status = constants.FulfillmentStatusToBuy
	}

	return Record{
		ID:               strings.TrimSpace(raw.ID),
		SellerID:         strings.TrimSpace(raw.SellerID),
		BuyerID:          strings.TrimSpace(raw.BuyerID),
		BuyerName:        strings.TrimSpace(raw.BuyerName),
		ItemTitle:        strings.TrimSpace(raw.ItemTitle),
		Color:            strings.TrimSpace(raw.Color),
		Capacity:         strings.TrimSpace(raw.Capacity),
		DeliveryMethod:   method,
		DeliveryLocation: strings.TrimSpace(raw.DeliveryLocation),
		Quantity:         quantity,
		WeightKG:         weight,
		TargetPrice:      target,
		ServiceFee:       fee,
		NeededBy:         raw.NeededBy,
		Status:           status,
		Purchased:        raw.Purchased,
		PurchasedAt:      raw.PurchasedAt,
		CancelReason:     strings.TrimSpace(raw.CancelReason),
		CancelledAt:      raw.CancelledAt,
	}
}

// NormalizeAll 按原顺序批量补齐
func NormalizeAll(raws []RawRecord, p Policy) []Record {
	records := make([]Record, 0, len(raws))
	for _, raw := range raws {
		records = append(records, Normalize(raw, p))
	}
	return records
}

// Raw 转换回字段齐全的存储记录
func (r Record) Raw() RawRecord {
	weight := r.WeightKG
	target := r.TargetPrice
	fee := r.ServiceFee
	return RawRecord{
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
		WeightKG:         &weight,
		TargetPrice:      &target,
		ServiceFee:       &fee,
		NeededBy:         r.NeededBy,
		Status:           r.Status,
		Purchased:        r.Purchased,
		PurchasedAt:      r.PurchasedAt,
		CancelReason:     r.CancelReason,
		CancelledAt:      r.CancelledAt,
	}
}

// Payout 单条记录的应付金额（目标价 + 服务费）
func (r Record) Payout() decimal.Decimal {
	return r.TargetPrice.Add(r.ServiceFee)
}

// Closed 判断记录是否已结束（已送达或已取消）
func (r Record) Closed() bool {
	return r.Status == constants.FulfillmentStatusDelivered || r.Status == constants.FulfillmentStatusCancelled
}

// NormalizeStatus 归一化状态值，兼容 "to-buy" 写法，未知值返回空串
func NormalizeStatus(status string) string {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(status)), "-", "_")
	if normalized == "canceled" {
		normalized = constants.FulfillmentStatusCancelled
	}
	if constants.IsFulfillmentStatus(normalized) {
		return normalized
	}
	return ""
}

// NormalizeDeliveryMethod 归一化交付方式，未知值返回空串
func NormalizeDeliveryMethod(method string) string {
	normalized := strings.ToLower(strings.TrimSpace(method))
	if constants.IsDeliveryMethod(normalized) {
		return normalized
	}
	return ""
}

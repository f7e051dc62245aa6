package fulfillment

import (
	"github.com/pasaph/internal/constants"

	"github.com/shopspring/decimal"
)

// Totals 交付记录汇总
type Totals struct {
	ToBuy     int             `json:"to_buy"`
	Purchased int             `json:"purchased"`
	Delivered int             `json:"delivered"`
	Cancelled int             `json:"cancelled"`
	All       int             `json:"all"`
	Payout    decimal.Decimal `json:"payout"`
}

// Assessment 海关免税额度评估结果
type Assessment struct {
	Total      decimal.Decimal `json:"total"`
	Threshold  decimal.Decimal `json:"threshold"`
	Percentage decimal.Decimal `json:"percentage"`
	Tier       string          `json:"tier"`
}

// CalculateTotals 基于完整记录列表统计各状态数量与待结算金额。
// 已送达与已取消的记录不计入待结算金额。
func CalculateTotals(records []Record) Totals {
	totals := Totals{Payout: decimal.Zero}
	for _, record := range records {
		totals.All++
		switch record.Status {
		case constants.FulfillmentStatusToBuy:
			totals.ToBuy++
		case constants.FulfillmentStatusPurchased:
			totals.Purchased++
		case constants.FulfillmentStatusDelivered:
			totals.Delivered++
		case constants.FulfillmentStatusCancelled:
			totals.Cancelled++
		}
		if record.Closed() {
			continue
		}
		totals.Payout = totals.Payout.Add(record.Payout())
	}
	return totals
}

// Assess 将金额与免税额度比较并给出提示等级
func Assess(total decimal.Decimal, p Policy) Assessment {
	result := Assessment{
		Total:      total,
		Threshold:  p.DeMinimisThreshold,
		Percentage: decimal.Zero,
		Tier:       constants.CustomsTierNormal,
	}
	if !p.DeMinimisThreshold.IsPositive() {
		if total.IsPositive() {
			result.Percentage = hundred
			result.Tier = constants.CustomsTierOver
		}
		return result
	}

	// 等级按未取整的比例判断，仅展示值保留两位小数
	ratio := total.Mul(hundred).Div(p.DeMinimisThreshold)
	percentage := ratio.Round(2)
	if percentage.GreaterThan(hundred) {
		percentage = hundred
	}
	if percentage.IsNegative() {
		percentage = decimal.Zero
	}
	result.Percentage = percentage

	switch {
	case total.GreaterThan(p.DeMinimisThreshold):
		result.Tier = constants.CustomsTierOver
	case ratio.GreaterThanOrEqual(p.NearThresholdPercent):
		result.Tier = constants.CustomsTierNear
	}
	return result
}

// AssessRecords 以未结束记录的待结算金额进行评估
func AssessRecords(records []Record, p Policy) Assessment {
	return Assess(CalculateTotals(records).Payout, p)
}

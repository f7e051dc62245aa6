package fulfillment

import (
	"strings"

	"github.com/pasaph/internal/constants"
)

// BuyerGroup 按买家分组后的记录集合（仅内存使用）
type BuyerGroup struct {
	Name    string   `json:"name"`
	BuyerID string   `json:"buyer_id,omitempty"`
	Records []Record `json:"records"`
}

// Filter 按状态筛选记录，保持原有顺序；status 为空或 all 时返回全部
func Filter(records []Record, status string) []Record {
	trimmed := strings.ToLower(strings.TrimSpace(status))
	if trimmed == "" || trimmed == constants.FulfillmentStatusAll {
		out := make([]Record, len(records))
		copy(out, records)
		return out
	}
	want := NormalizeStatus(trimmed)
	out := make([]Record, 0, len(records))
	if want == "" {
		return out
	}
	for _, record := range records {
		if record.Status == want {
			out = append(out, record)
		}
	}
	return out
}

// Group 按买家名称分组；byBuyer 为 false 时返回单个 "All Items" 分组
func Group(records []Record, byBuyer bool) []BuyerGroup {
	if !byBuyer {
		items := make([]Record, len(records))
		copy(items, records)
		return []BuyerGroup{{Name: constants.GroupAllItems, Records: items}}
	}

	groups := make([]BuyerGroup, 0)
	index := make(map[string]int)
	for _, record := range records {
		name := strings.TrimSpace(record.BuyerName)
		if name == "" {
			name = constants.GroupUnknownBuyer
		}
		pos, ok := index[name]
		if !ok {
			pos = len(groups)
			index[name] = pos
			groups = append(groups, BuyerGroup{Name: name, BuyerID: record.BuyerID})
		}
		groups[pos].Records = append(groups[pos].Records, record)
	}
	return groups
}

// CountRecords 统计分组内记录总数
func CountRecords(groups []BuyerGroup) int {
	total := 0
	for _, group := range groups {
		total += len(group.Records)
	}
	return total
}

// StatusLabel 返回状态筛选的展示名称
func StatusLabel(status string) string {
	switch NormalizeStatus(status) {
	case constants.FulfillmentStatusToBuy:
		return "To Buy"
	case constants.FulfillmentStatusPurchased:
		return "Purchased"
	case constants.FulfillmentStatusDelivered:
		return "Delivered"
	case constants.FulfillmentStatusCancelled:
		return "Cancelled"
	default:
		return "All"
	}
}

package fulfillment

import (
	"fmt"
	"strings"
	"time"

	"github.com/pasaph/internal/constants"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

const (
	defaultExportTitle = "Pasabuy Shopping List"
	textRule           = "=============================="
	textSubRule        = "------------------------------"
	dateLayout         = "Jan 2, 2006"
	dateTimeLayout     = "Jan 2, 2006 3:04 PM"
)

// Format 导出格式
type Format string

const (
	FormatText      Format = constants.ExportFormatText
	FormatHTML      Format = constants.ExportFormatHTML
	FormatClipboard Format = constants.ExportFormatClipboard
)

// ParseFormat 解析导出格式，空值默认为纯文本
func ParseFormat(raw string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "text", "txt":
		return FormatText, true
	case "html", "print":
		return FormatHTML, true
	case "clipboard", "notes":
		return FormatClipboard, true
	}
	return "", false
}

// ContentType 返回导出内容的 MIME 类型
func (f Format) ContentType() string {
	if f == FormatHTML {
		return "text/html; charset=utf-8"
	}
	return "text/plain; charset=utf-8"
}

// Extension 返回导出文件扩展名
func (f Format) Extension() string {
	if f == FormatHTML {
		return ".html"
	}
	return ".txt"
}

// ExportOptions 导出参数
type ExportOptions struct {
	Title          string
	FilterLabel    string
	GeneratedAt    time.Time
	CurrencySymbol string
}

func (o ExportOptions) normalized() ExportOptions {
	if strings.TrimSpace(o.Title) == "" {
		o.Title = defaultExportTitle
	}
	if strings.TrimSpace(o.FilterLabel) == "" {
		o.FilterLabel = StatusLabel(constants.FulfillmentStatusAll)
	}
	if o.CurrencySymbol == "" {
		o.CurrencySymbol = constants.DefaultCurrencySymbol
	}
	return o
}

// Export 按格式导出
func Export(format Format, groups []BuyerGroup, opts ExportOptions) (string, error) {
	switch format {
	case FormatText:
		return ExportText(groups, opts), nil
	case FormatHTML:
		return ExportHTML(groups, opts)
	case FormatClipboard:
		return ExportClipboard(groups, opts), nil
	}
	return "", fmt.Errorf("unsupported export format: %s", format)
}

// ExportText 导出纯文本采购清单
func ExportText(groups []BuyerGroup, opts ExportOptions) string {
	opts = opts.normalized()
	var b strings.Builder

	b.WriteString(strings.ToUpper(opts.Title))
	b.WriteString("\n")
	if !opts.GeneratedAt.IsZero() {
		fmt.Fprintf(&b, "Generated: %s\n", opts.GeneratedAt.Format(dateTimeLayout))
	}
	fmt.Fprintf(&b, "Showing: %s\n", opts.FilterLabel)
	b.WriteString(textRule + "\n")

	for _, group := range groups {
		if len(group.Records) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s (%s)\n", group.Name, itemCountLabel(len(group.Records)))
		b.WriteString(textSubRule + "\n")
		for _, record := range group.Records {
			fmt.Fprintf(&b, "%s %s\n", textCheckbox(record), record.ItemTitle)
			if details := itemDetails(record); details != "" {
				fmt.Fprintf(&b, "    %s\n", details)
			}
			fmt.Fprintf(&b, "    Max Price: %s\n", formatMoney(record.TargetPrice, opts.CurrencySymbol))
			fmt.Fprintf(&b, "    Delivery: %s\n", deliveryLabel(record))
			if record.NeededBy != nil {
				fmt.Fprintf(&b, "    Needed by: %s\n", record.NeededBy.Format(dateLayout))
			}
		}
	}

	b.WriteString("\n" + textRule + "\n")
	fmt.Fprintf(&b, "Total Items to Buy: %d\n", CountRecords(groups))
	return b.String()
}

// ExportClipboard 导出便于粘贴到笔记类应用的文本
func ExportClipboard(groups []BuyerGroup, opts ExportOptions) string {
	opts = opts.normalized()
	var b strings.Builder

	fmt.Fprintf(&b, "%s (%s)\n", opts.Title, opts.FilterLabel)
	for _, group := range groups {
		if len(group.Records) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n%s\n", group.Name)
		for _, record := range group.Records {
			box := "☐"
			if isChecked(record) {
				box = "☑"
			}
			line := box + " " + record.ItemTitle
			if details := compactDetails(record); details != "" {
				line += " (" + details + ")"
			}
			if record.Quantity > 1 {
				line += fmt.Sprintf(" x%d", record.Quantity)
			}
			b.WriteString(line + "\n")

			meta := []string{
				"Max " + formatMoney(record.TargetPrice, opts.CurrencySymbol),
				deliveryLabel(record),
			}
			if record.NeededBy != nil {
				meta = append(meta, "Needed by "+record.NeededBy.Format(dateLayout))
			}
			fmt.Fprintf(&b, "   %s\n", strings.Join(meta, " · "))
		}
	}

	fmt.Fprintf(&b, "\nTotal Items to Buy: %d\n", CountRecords(groups))
	return b.String()
}

// isChecked 已买或已送达的记录打勾，取消的记录不打勾
func isChecked(record Record) bool {
	if record.Status == constants.FulfillmentStatusCancelled {
		return false
	}
	return record.Purchased || record.Status == constants.FulfillmentStatusPurchased || record.Status == constants.FulfillmentStatusDelivered
}

func textCheckbox(record Record) string {
	if isChecked(record) {
		return "[x]"
	}
	return "[ ]"
}

func itemCountLabel(n int) string {
	if n == 1 {
		return "1 item"
	}
	return fmt.Sprintf("%d items", n)
}

func itemDetails(record Record) string {
	parts := make([]string, 0, 3)
	if record.Color != "" {
		parts = append(parts, "Color: "+record.Color)
	}
	if record.Capacity != "" {
		parts = append(parts, "Capacity: "+record.Capacity)
	}
	if record.Quantity > 1 {
		parts = append(parts, fmt.Sprintf("Qty: %d", record.Quantity))
	}
	return strings.Join(parts, " | ")
}

func compactDetails(record Record) string {
	parts := make([]string, 0, 2)
	if record.Color != "" {
		parts = append(parts, record.Color)
	}
	if record.Capacity != "" {
		parts = append(parts, record.Capacity)
	}
	return strings.Join(parts, ", ")
}

func deliveryLabel(record Record) string {
	method := "Meetup"
	if record.DeliveryMethod == constants.DeliveryMethodShipping {
		method = "Shipping"
	}
	if record.DeliveryLocation == "" {
		return method
	}
	return method + " - " + record.DeliveryLocation
}

func formatMoney(amount decimal.Decimal, symbol string) string {
	return symbol + humanize.FormatFloat("#,###.##", amount.Round(2).InexactFloat64())
}

package fulfillment

import (
	"html/template"
	"strings"
)

var printTemplate = template.Must(template.New("print").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; color: #111; margin: 24px; }
h1 { font-size: 20px; margin: 0 0 4px; }
.meta { color: #555; font-size: 12px; margin-bottom: 16px; }
.group { margin-bottom: 20px; page-break-inside: avoid; }
.group h2 { font-size: 15px; border-bottom: 1px solid #ccc; padding-bottom: 4px; }
.item { display: flex; gap: 8px; padding: 6px 0; border-bottom: 1px dashed #eee; }
.box { width: 14px; height: 14px; border: 1px solid #333; flex: none; margin-top: 2px; text-align: center; font-size: 11px; line-height: 14px; }
.title { font-weight: 600; }
.detail { font-size: 12px; color: #444; }
.total { font-weight: 600; margin-top: 16px; }
@media print { body { margin: 0; } .item { border-bottom-color: #ddd; } }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<div class="meta">{{if .GeneratedAt}}Generated: {{.GeneratedAt}} · {{end}}Showing: {{.FilterLabel}}</div>
{{range .Groups}}<section class="group">
<h2>{{.Name}} ({{.CountLabel}})</h2>
{{range .Items}}<div class="item">
<div class="box">{{if .Checked}}✓{{end}}</div>
<div>
<div class="title">{{.Title}}</div>
{{if .Details}}<div class="detail">{{.Details}}</div>
{{end}}<div class="detail">Max Price: {{.MaxPrice}}</div>
<div class="detail">Delivery: {{.Delivery}}</div>
{{if .NeededBy}}<div class="detail">Needed by: {{.NeededBy}}</div>
{{end}}</div>
</div>
{{end}}</section>
{{end}}<div class="total">Total Items to Buy: {{.Total}}</div>
</body>
</html>
`))

type printItem struct {
	Title    string
	Details  string
	MaxPrice string
	Delivery string
	NeededBy string
	Checked  bool
}

type printGroup struct {
	Name       string
	CountLabel string
	Items      []printItem
}

type printDocument struct {
	Title       string
	FilterLabel string
	GeneratedAt string
	Groups      []printGroup
	Total       int
}

// ExportHTML 导出适合打印的 HTML 文档，所有用户输入均经过转义
func ExportHTML(groups []BuyerGroup, opts ExportOptions) (string, error) {
	opts = opts.normalized()
	doc := printDocument{
		Title:       opts.Title,
		FilterLabel: opts.FilterLabel,
		Total:       CountRecords(groups),
	}
	if !opts.GeneratedAt.IsZero() {
		doc.GeneratedAt = opts.GeneratedAt.Format(dateTimeLayout)
	}
	for _, group := range groups {
		if len(group.Records) == 0 {
			continue
		}
		pg := printGroup{Name: group.Name, CountLabel: itemCountLabel(len(group.Records))}
		for _, record := range group.Records {
			item := printItem{
				Title:    record.ItemTitle,
				Details:  itemDetails(record),
				MaxPrice: formatMoney(record.TargetPrice, opts.CurrencySymbol),
				Delivery: deliveryLabel(record),
				Checked:  isChecked(record),
			}
			if record.NeededBy != nil {
				item.NeededBy = record.NeededBy.Format(dateLayout)
			}
			pg.Items = append(pg.Items, item)
		}
		doc.Groups = append(doc.Groups, pg)
	}

	var b strings.Builder
	if err := printTemplate.Execute(&b, doc); err != nil {
		return "", err
	}
	return b.String(), nil
}

package repository

// FulfillmentListFilter 查询代购记录的过滤条件
type FulfillmentListFilter struct {
	SellerID string
	BuyerID  string
	Statuses []string // 任一匹配，空表示不过滤
	Search   string   // 商品名或买家名模糊匹配
	Page     int
	PageSize int
}

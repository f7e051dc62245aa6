package constants

// 交付记录状态常量
const (
	FulfillmentStatusToBuy     = "to_buy"
	FulfillmentStatusPurchased = "purchased"
	FulfillmentStatusDelivered = "delivered"
	FulfillmentStatusCancelled = "cancelled"
	// FulfillmentStatusToBuyLegacy 旧数据中的写法
	FulfillmentStatusToBuyLegacy = "to-buy"
	// FulfillmentStatusAll 列表筛选时表示不过滤
	FulfillmentStatusAll = "all"
)

// 交付方式常量
const (
	DeliveryMethodMeetup   = "meetup"
	DeliveryMethodShipping = "shipping"
)

// 分组名称常量
const (
	GroupAllItems     = "All Items"
	GroupUnknownBuyer = "Unknown Buyer"
)

// 海关免税额度提示等级
const (
	CustomsTierNormal = "normal"
	CustomsTierNear   = "near"
	CustomsTierOver   = "over"
)

// 计算参数默认值
const (
	DefaultServiceFeeRate       = "0.10"
	DefaultDeMinimisThreshold   = 10000
	DefaultNearThresholdPercent = 75
	DefaultWeightKG             = "1"
	DefaultCurrency             = "PHP"
	DefaultCurrencySymbol       = "₱"
)

// 导出格式常量
const (
	ExportFormatText      = "text"
	ExportFormatHTML      = "html"
	ExportFormatClipboard = "clipboard"
)

// 结账模式常量
const (
	CheckoutModeCard = "card"
	CheckoutModeCOD  = "cod"
)

// 结账会话状态常量
const (
	CheckoutStatusPending = "pending"
	CheckoutStatusPaid    = "paid"
	CheckoutStatusFailed  = "failed"
	CheckoutStatusExpired = "expired"
)

// 用户角色常量
const (
	RoleSeller = "seller"
	RoleBuyer  = "buyer"
)

// 异步队列常量
const (
	QueueDefault  = "default"
	QueueCritical = "critical"
)

// 异步任务类型常量
const (
	TaskCustomsCheck = "fulfillment:customs_check"
)

// IsFulfillmentStatus 判断是否为合法的交付状态
func IsFulfillmentStatus(status string) bool {
	switch status {
	case FulfillmentStatusToBuy, FulfillmentStatusPurchased, FulfillmentStatusDelivered, FulfillmentStatusCancelled:
		return true
	}
	return false
}

// IsDeliveryMethod 判断是否为合法的交付方式
func IsDeliveryMethod(method string) bool {
	return method == DeliveryMethodMeetup || method == DeliveryMethodShipping
}

// IsCheckoutMode 判断是否为合法的结账模式
func IsCheckoutMode(mode string) bool {
	return mode == CheckoutModeCard || mode == CheckoutModeCOD
}

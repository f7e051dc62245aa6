package public

import "github.com/pasaph/internal/provider"

// Handler 买家与公开接口处理器入口
// 说明：结账接口需买家令牌，支付回调与健康检查无需鉴权。
type Handler struct {
	*provider.Container
}

// New 创建公开接口处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

package seller

import "github.com/pasaph/internal/provider"

// Handler 卖家端接口处理器入口
// 说明：路由组已校验 seller 角色，处理器只读取上下文中的 user_id。
type Handler struct {
	*provider.Container
}

// New 创建卖家端处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

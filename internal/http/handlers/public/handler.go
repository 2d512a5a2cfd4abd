package public

import "github.com/enroll-next/internal/provider"

// Handler 员工端/公开接口处理器入口
// 说明：该处理器承载登录、员工自助面与网关回调 API。
type Handler struct {
	*provider.Container
}

// New 创建员工端处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

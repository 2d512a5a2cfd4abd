package admin

import "github.com/enroll-next/internal/provider"

// Handler 管理端接口处理器入口
// 说明：该处理器仅用于管理角色 API，路由层已做 RBAC 判定。
type Handler struct {
	*provider.Container
}

// New 创建管理端处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}

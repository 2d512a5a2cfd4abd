package public

import (
	"github.com/enroll-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetPlans 获取可售套餐列表
func (h *Handler) GetPlans(c *gin.Context) {
	plans, err := h.PlanService.ListActivePlans()
	if err != nil {
		respondError(c, response.CodeInternal, "套餐查询失败", err)
		return
	}
	response.Success(c, plans)
}

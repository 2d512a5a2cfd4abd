package admin

import (
	"github.com/enroll-next/internal/http/response"
	"github.com/enroll-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GetRateTable 获取当前生效的佣金费率表
func (h *Handler) GetRateTable(c *gin.Context) {
	table, err := h.RateTableService.Get()
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, table)
}

// UpdateRateTable 整表覆盖佣金费率表
// 新表只影响之后创建的佣金，历史台账金额不变
func (h *Handler) UpdateRateTable(c *gin.Context) {
	var table service.RateTable
	if err := c.ShouldBindJSON(&table); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	updated, err := h.RateTableService.Update(table)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	requestLog(c).Infow("rate_table_updated")
	response.Success(c, updated)
}

package admin

import (
	"strconv"
	"strings"

	"github.com/enroll-next/internal/http/response"
	"github.com/enroll-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListLoginLogs 获取员工登录日志
func (h *Handler) ListLoginLogs(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	filter := repository.AgentLoginLogListFilter{
		Page:     page,
		PageSize: pageSize,
		Email:    strings.TrimSpace(c.Query("email")),
		Status:   strings.TrimSpace(c.Query("status")),
	}
	if raw := strings.TrimSpace(c.Query("agent_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondError(c, response.CodeBadRequest, "agent_id 非法", err)
			return
		}
		filter.AgentID = uint(id)
	}
	createdFrom, err := parseTimeNullable(strings.TrimSpace(c.Query("created_from")))
	if err != nil {
		respondError(c, response.CodeBadRequest, "created_from 格式错误", err)
		return
	}
	createdTo, err := parseTimeNullable(strings.TrimSpace(c.Query("created_to")))
	if err != nil {
		respondError(c, response.CodeBadRequest, "created_to 格式错误", err)
		return
	}
	filter.CreatedFrom = createdFrom
	filter.CreatedTo = createdTo

	logs, total, err := h.AgentLoginLogService.List(filter)
	if err != nil {
		respondError(c, response.CodeInternal, "查询失败", err)
		return
	}
	response.SuccessWithPage(c, logs, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

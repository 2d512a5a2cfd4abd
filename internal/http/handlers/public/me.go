package public

import (
	"strconv"
	"strings"
	"time"

	"github.com/enroll-next/internal/http/response"
	"github.com/enroll-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// GetCurrentAgent 获取当前员工档案
func (h *Handler) GetCurrentAgent(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	agent, err := h.AgentService.GetAgent(c.Request.Context(), viewer, viewer.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, agent)
}

// UpdateProfileRequest 更新档案请求
type UpdateProfileRequest struct {
	Name string `json:"name" binding:"required"`
}

// UpdateMyProfile 更新当前员工档案
func (h *Handler) UpdateMyProfile(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	agent, err := h.AgentService.UpdateProfile(c.Request.Context(), viewer, viewer.ID, req.Name)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, agent)
}

// GetMyDownline 获取当前员工的传递下线
func (h *Handler) GetMyDownline(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	agents, err := h.AgentService.MyDownline(c.Request.Context(), viewer)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, agents)
}

// GetMyCommissions 获取可见范围内的佣金台账
func (h *Handler) GetMyCommissions(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	filter := repository.CommissionListFilter{
		Page:     page,
		PageSize: pageSize,
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
	if raw := strings.TrimSpace(c.Query("member_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondError(c, response.CodeBadRequest, "member_id 非法", err)
			return
		}
		filter.MemberID = uint(id)
	}

	rows, total, err := h.CommissionService.ListCommissions(c.Request.Context(), viewer, filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, rows, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// GetMyCommissionTotals 获取佣金汇总（月度/年度/累计，应得=已发+待发）
// as_of 可选，缺省按当前时间圈定周期窗口
func (h *Handler) GetMyCommissionTotals(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	agentID := viewer.ID
	if raw := strings.TrimSpace(c.Query("agent_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondError(c, response.CodeBadRequest, "agent_id 非法", err)
			return
		}
		agentID = uint(id)
	}
	asOf := time.Now()
	if raw := strings.TrimSpace(c.Query("as_of")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "as_of 格式错误", err)
			return
		}
		asOf = parsed
	}
	totals, err := h.CommissionService.GetCommissionTotals(c.Request.Context(), viewer, agentID, asOf)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, totals)
}

// GetMyMembers 获取可见范围内的会员
func (h *Handler) GetMyMembers(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	filter := repository.MemberListFilter{
		Page:     page,
		PageSize: pageSize,
		Status:   strings.TrimSpace(c.Query("status")),
		Keyword:  strings.TrimSpace(c.Query("keyword")),
	}
	rows, total, err := h.MemberService.ListMembers(c.Request.Context(), viewer, filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, rows, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// GetMyMember 获取单个会员（越权与不存在区分回答）
func (h *Handler) GetMyMember(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	memberID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	member, err := h.MemberService.GetMember(c.Request.Context(), viewer, memberID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, member)
}

func parseIDParam(c *gin.Context, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Param(name))
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		respondError(c, response.CodeBadRequest, "ID 非法", err)
		return 0, false
	}
	return uint(id), true
}

package admin

import (
	"errors"
	"strconv"
	"strings"

	"github.com/enroll-next/internal/http/response"
	"github.com/enroll-next/internal/repository"
	"github.com/enroll-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ListAgents 获取员工列表
func (h *Handler) ListAgents(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	page, pageSize = normalizePagination(page, pageSize)

	filter := repository.AgentListFilter{
		Page:     page,
		PageSize: pageSize,
		Role:     strings.TrimSpace(c.Query("role")),
		Status:   strings.TrimSpace(c.Query("status")),
		Keyword:  strings.TrimSpace(c.Query("keyword")),
	}
	if raw := strings.TrimSpace(c.Query("upline_agent_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondError(c, response.CodeBadRequest, "upline_agent_id 非法", err)
			return
		}
		filter.UplineAgentID = uint(id)
	}

	agents, total, err := h.AgentService.ListAgents(c.Request.Context(), viewer, filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, agents, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// CreateAgentRequest 创建员工请求
type CreateAgentRequest struct {
	Email                  string `json:"email" binding:"required"`
	Password               string `json:"password" binding:"required"`
	Name                   string `json:"name"`
	Role                   string `json:"role"`
	UplineAgentID          *uint  `json:"upline_agent_id"`
	CanReceiveOverrides    bool   `json:"can_receive_overrides"`
	OverrideCommissionRate string `json:"override_commission_rate"`
}

// CreateAgent 创建员工账号
func (h *Handler) CreateAgent(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}

	var req CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	overrideRate := decimal.Zero
	if raw := strings.TrimSpace(req.OverrideCommissionRate); raw != "" {
		parsed, err := decimal.NewFromString(raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "override_commission_rate 非法", err)
			return
		}
		overrideRate = parsed
	}

	agent, err := h.AgentService.CreateAgent(c.Request.Context(), viewer, service.CreateAgentInput{
		Email:                  req.Email,
		Password:               req.Password,
		Name:                   req.Name,
		Role:                   req.Role,
		UplineAgentID:          req.UplineAgentID,
		CanReceiveOverrides:    req.CanReceiveOverrides,
		OverrideCommissionRate: overrideRate,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if err := h.AuthzService.SyncAgentRole(agent.ID, agent.Role); err != nil {
		requestLog(c).Errorw("agent_authz_sync_failed", "agent_id", agent.ID, "error", err)
	}
	response.Success(c, agent)
}

// GetAgent 获取员工详情
func (h *Handler) GetAgent(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	agentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	agent, err := h.AgentService.GetAgent(c.Request.Context(), viewer, agentID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, agent)
}

// UpdateAgentRequest 更新员工档案请求
type UpdateAgentRequest struct {
	Name string `json:"name" binding:"required"`
}

// UpdateAgent 更新员工档案
func (h *Handler) UpdateAgent(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	agentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req UpdateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	agent, err := h.AgentService.UpdateProfile(c.Request.Context(), viewer, agentID, req.Name)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, agent)
}

// ChangeUplineRequest 调整上线请求（null 表示摘除上线挂到根）
type ChangeUplineRequest struct {
	UplineAgentID *uint `json:"upline_agent_id"`
}

// ChangeAgentUpline 调整员工上线并重算子树层级
func (h *Handler) ChangeAgentUpline(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	agentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req ChangeUplineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	agent, err := h.AgentService.ChangeUpline(c.Request.Context(), viewer, agentID, req.UplineAgentID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, agent)
}

// ChangeRoleRequest 调整角色请求
type ChangeRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// ChangeAgentRole 调整员工角色（仅 super_admin 路由可达）
func (h *Handler) ChangeAgentRole(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	agentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req ChangeRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	agent, err := h.AgentService.ChangeRole(c.Request.Context(), viewer, agentID, req.Role)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if err := h.AuthzService.SyncAgentRole(agent.ID, agent.Role); err != nil {
		requestLog(c).Errorw("agent_authz_sync_failed", "agent_id", agent.ID, "error", err)
	}
	response.Success(c, agent)
}

// SetStatusRequest 启停员工请求
type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// SetAgentStatus 启用/停用员工（停用即时失效在外 token）
func (h *Handler) SetAgentStatus(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	agentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	agent, err := h.AgentService.SetStatus(c.Request.Context(), viewer, agentID, req.Status)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, agent)
}

// UpdateOverrideRequest 调整抽佣设置请求
type UpdateOverrideRequest struct {
	CanReceiveOverrides    bool   `json:"can_receive_overrides"`
	OverrideCommissionRate string `json:"override_commission_rate" binding:"required"`
}

// UpdateAgentOverride 调整员工抽佣设置
func (h *Handler) UpdateAgentOverride(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	agentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req UpdateOverrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(req.OverrideCommissionRate))
	if err != nil {
		respondError(c, response.CodeBadRequest, "override_commission_rate 非法", err)
		return
	}
	agent, err := h.AgentService.UpdateOverride(c.Request.Context(), viewer, agentID, req.CanReceiveOverrides, rate)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, agent)
}

// GetAgentDownline 获取指定员工的传递下线
// 层级数据异常（成环/超深）时返回已解析的部分并附告警标记
func (h *Handler) GetAgentDownline(c *gin.Context) {
	if _, ok := getAgentID(c); !ok {
		return
	}
	agentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	ids, err := h.HierarchyService.ResolveDownline(c.Request.Context(), agentID)
	truncated := false
	if err != nil {
		if !errors.Is(err, service.ErrCycleDetected) {
			respondServiceError(c, err)
			return
		}
		truncated = true
		requestLog(c).Warnw("admin_downline_cycle_detected", "agent_id", agentID)
	}

	agents, listErr := h.AgentRepo.ListByIDs(ids)
	if listErr != nil {
		respondError(c, response.CodeInternal, "下线查询失败", listErr)
		return
	}
	response.Success(c, gin.H{
		"agents":    agents,
		"truncated": truncated,
	})
}

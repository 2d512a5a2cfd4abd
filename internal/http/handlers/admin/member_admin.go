package admin

import (
	"strconv"
	"strings"

	"github.com/enroll-next/internal/http/response"
	"github.com/enroll-next/internal/repository"

	"github.com/gin-gonic/gin"
)

// ListMembers 获取会员列表
func (h *Handler) ListMembers(c *gin.Context) {
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
	if raw := strings.TrimSpace(c.Query("enrolled_by_agent_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			respondError(c, response.CodeBadRequest, "enrolled_by_agent_id 非法", err)
			return
		}
		filter.EnrolledByAgentID = uint(id)
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

	members, total, err := h.MemberService.ListMembers(c.Request.Context(), viewer, filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.SuccessWithPage(c, members, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: (total + int64(pageSize) - 1) / int64(pageSize),
	})
}

// GetMember 获取会员详情
func (h *Handler) GetMember(c *gin.Context) {
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

// UpdateMemberStatusRequest 会员状态变更请求
type UpdateMemberStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateMemberStatus 变更会员状态（取消时联动关闭活跃订阅）
func (h *Handler) UpdateMemberStatus(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	memberID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req UpdateMemberStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	member, err := h.MemberService.UpdateMemberStatus(c.Request.Context(), viewer, memberID, req.Status)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, member)
}

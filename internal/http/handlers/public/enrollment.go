package public

import (
	"github.com/enroll-next/internal/http/response"
	"github.com/enroll-next/internal/service"

	"github.com/gin-gonic/gin"
)

// EnrollMemberRequest 入单请求
// 员工身份来自登录态；管理角色可代其他员工入单（按编号或邮箱定位）
type EnrollMemberRequest struct {
	AgentID     uint   `json:"agent_id"`
	AgentNumber string `json:"agent_number"`
	AgentEmail  string `json:"agent_email"`

	MemberName   string `json:"member_name" binding:"required"`
	MemberEmail  string `json:"member_email"`
	MemberPhone  string `json:"member_phone"`
	PlanID       uint   `json:"plan_id" binding:"required"`
	CoverageType string `json:"coverage_type" binding:"required"`
	HasRxAddOn   bool   `json:"has_rx_add_on"`
	GatewayRef   string `json:"gateway_ref"`
	Notes        string `json:"notes"`
}

// CreateEnrollment 会员入单：会员、订阅、佣金一单一事务落库
func (h *Handler) CreateEnrollment(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}

	var req EnrollMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	input := service.EnrollMemberInput{
		AgentID:      req.AgentID,
		AgentNumber:  req.AgentNumber,
		AgentEmail:   req.AgentEmail,
		MemberName:   req.MemberName,
		MemberEmail:  req.MemberEmail,
		MemberPhone:  req.MemberPhone,
		PlanID:       req.PlanID,
		CoverageType: req.CoverageType,
		HasRxAddOn:   req.HasRxAddOn,
		GatewayRef:   req.GatewayRef,
		Notes:        req.Notes,
	}
	// 普通员工只能给自己入单
	if !viewer.IsAdmin() {
		input.AgentID = viewer.ID
		input.AgentNumber = ""
		input.AgentEmail = ""
	} else if input.AgentID == 0 && input.AgentNumber == "" && input.AgentEmail == "" {
		input.AgentID = viewer.ID
	}

	result, err := h.EnrollmentService.EnrollMember(input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, result)
}

// GetCommission 获取单笔佣金（范围内可见）
func (h *Handler) GetCommission(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	commissionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	commission, err := h.CommissionService.GetCommission(c.Request.Context(), viewer, commissionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, commission)
}

// AnnotateCommissionRequest 佣金备注请求
type AnnotateCommissionRequest struct {
	Note string `json:"note" binding:"required"`
}

// AnnotateCommission 追加佣金备注（归属员工或管理角色）
func (h *Handler) AnnotateCommission(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	commissionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req AnnotateCommissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	commission, err := h.CommissionService.AnnotateCommission(c.Request.Context(), viewer, commissionID, req.Note)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, commission)
}

package admin

import (
	"strconv"
	"strings"
	"time"

	"github.com/enroll-next/internal/http/response"
	"github.com/enroll-next/internal/repository"
	"github.com/enroll-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ListCommissions 获取佣金台账列表
func (h *Handler) ListCommissions(c *gin.Context) {
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

// GetCommission 获取佣金详情
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

// CreateCommissionRequest 手工创建佣金请求（补录/冲正场景）
type CreateCommissionRequest struct {
	AgentID        uint   `json:"agent_id" binding:"required"`
	MemberID       uint   `json:"member_id" binding:"required"`
	SubscriptionID *uint  `json:"subscription_id"`
	PlanLabel      string `json:"plan_label" binding:"required"`
	CoverageType   string `json:"coverage_type" binding:"required"`
	HasRxAddOn     bool   `json:"has_rx_add_on"`
	TotalPlanCost  string `json:"total_plan_cost" binding:"required"`
	Notes          string `json:"notes"`
}

// CreateCommission 手工创建佣金台账记录
func (h *Handler) CreateCommission(c *gin.Context) {
	var req CreateCommissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	totalCost, err := decimal.NewFromString(strings.TrimSpace(req.TotalPlanCost))
	if err != nil {
		respondError(c, response.CodeBadRequest, "total_plan_cost 非法", err)
		return
	}

	commission, err := h.CommissionService.CreateCommission(service.CreateCommissionInput{
		AgentID:        req.AgentID,
		MemberID:       req.MemberID,
		SubscriptionID: req.SubscriptionID,
		PlanLabel:      req.PlanLabel,
		CoverageType:   req.CoverageType,
		HasRxAddOn:     req.HasRxAddOn,
		TotalPlanCost:  totalCost,
		Notes:          req.Notes,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, commission)
}

// CaptureRequest 支付捕获确认请求
type CaptureRequest struct {
	CapturedAt string `json:"captured_at"`
}

// MarkCommissionCaptured 管理端手工确认支付捕获
func (h *Handler) MarkCommissionCaptured(c *gin.Context) {
	commissionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	capturedAt := time.Now()
	if raw := strings.TrimSpace(req.CapturedAt); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "captured_at 格式错误", err)
			return
		}
		capturedAt = parsed
	}

	commission, err := h.CommissionService.MarkPaymentCaptured(commissionID, capturedAt, h.Config.Commission.GracePeriodDays)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, commission)
}

// PayoutRequest 发放请求
type PayoutRequest struct {
	PaidAt string `json:"paid_at"`
}

// MarkCommissionPaid 标记单笔佣金已发放
func (h *Handler) MarkCommissionPaid(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	commissionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req PayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	paidAt := time.Now()
	if raw := strings.TrimSpace(req.PaidAt); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "paid_at 格式错误", err)
			return
		}
		paidAt = parsed
	}

	commission, err := h.CommissionService.MarkPaid(c.Request.Context(), viewer, commissionID, paidAt)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, commission)
}

// BatchPayoutRequest 批量发放请求
type BatchPayoutRequest struct {
	CommissionIDs []uint `json:"commission_ids" binding:"required"`
	PaidAt        string `json:"paid_at"`
}

// BatchMarkCommissionsPaid 批量发放：逐笔处理，失败不拖垮整批
func (h *Handler) BatchMarkCommissionsPaid(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	var req BatchPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	paidAt := time.Now()
	if raw := strings.TrimSpace(req.PaidAt); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "paid_at 格式错误", err)
			return
		}
		paidAt = parsed
	}

	result, err := h.CommissionService.BatchMarkPaid(c.Request.Context(), viewer, req.CommissionIDs, paidAt)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, result)
}

// ListAwaitingPayout 获取已过等待期、可发放的佣金
func (h *Handler) ListAwaitingPayout(c *gin.Context) {
	asOf := time.Now()
	if raw := strings.TrimSpace(c.Query("as_of")); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "as_of 格式错误", err)
			return
		}
		asOf = parsed
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	rows, err := h.CommissionService.ListAwaitingPayout(asOf, limit)
	if err != nil {
		respondError(c, response.CodeInternal, "查询失败", err)
		return
	}
	response.Success(c, rows)
}

// AnnotateRequest 佣金备注请求
type AnnotateRequest struct {
	Note string `json:"note" binding:"required"`
}

// AnnotateCommission 追加佣金备注（纠错走备注+冲正，不回退状态）
func (h *Handler) AnnotateCommission(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	commissionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req AnnotateRequest
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

package admin

import (
	"strings"

	"github.com/enroll-next/internal/http/response"
	"github.com/enroll-next/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// ListPlans 获取全部套餐（含停售）
func (h *Handler) ListPlans(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	plans, err := h.PlanService.ListAllPlans(viewer)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, plans)
}

// PlanRequest 套餐创建/更新请求
type PlanRequest struct {
	Name        string `json:"name" binding:"required"`
	MonthlyCost string `json:"monthly_cost" binding:"required"`
	HasRxAddOn  bool   `json:"has_rx_add_on"`
	IsActive    bool   `json:"is_active"`
}

func (r *PlanRequest) toInput() (service.PlanInput, error) {
	cost, err := decimal.NewFromString(strings.TrimSpace(r.MonthlyCost))
	if err != nil {
		return service.PlanInput{}, err
	}
	return service.PlanInput{
		Name:        r.Name,
		MonthlyCost: cost,
		HasRxAddOn:  r.HasRxAddOn,
		IsActive:    r.IsActive,
	}, nil
}

// CreatePlan 创建套餐
func (h *Handler) CreatePlan(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondError(c, response.CodeBadRequest, "monthly_cost 非法", err)
		return
	}
	plan, err := h.PlanService.CreatePlan(viewer, input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, plan)
}

// UpdatePlan 更新套餐（改价不回算既有佣金）
func (h *Handler) UpdatePlan(c *gin.Context) {
	viewer, ok := currentViewer(c)
	if !ok {
		return
	}
	planID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var req PlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}
	input, err := req.toInput()
	if err != nil {
		respondError(c, response.CodeBadRequest, "monthly_cost 非法", err)
		return
	}
	plan, err := h.PlanService.UpdatePlan(viewer, planID, input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	response.Success(c, plan)
}

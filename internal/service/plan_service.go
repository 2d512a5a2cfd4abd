package service

import (
	"fmt"
	"strings"

	"github.com/enroll-next/internal/models"
	"github.com/enroll-next/internal/repository"

	"github.com/shopspring/decimal"
)

// PlanService 套餐维护服务
type PlanService struct {
	planRepo repository.PlanRepository
}

// NewPlanService 创建套餐服务
func NewPlanService(planRepo repository.PlanRepository) *PlanService {
	return &PlanService{planRepo: planRepo}
}

// PlanInput 套餐参数
type PlanInput struct {
	Name        string
	MonthlyCost decimal.Decimal
	HasRxAddOn  bool
	IsActive    bool
}

// CreatePlan 创建套餐，仅管理角色
// 套餐名是自由文本，档位归一化交给计算器的容错匹配器，这里不做强校验
func (s *PlanService) CreatePlan(viewer Viewer, input PlanInput) (*models.Plan, error) {
	if !viewer.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: 套餐名称为空", ErrPlanNotFound)
	}
	if input.MonthlyCost.IsNegative() {
		return nil, fmt.Errorf("%w: 月费不能为负", ErrRateTableInvalid)
	}

	plan := &models.Plan{
		Name:        name,
		MonthlyCost: models.NewMoneyFromDecimal(input.MonthlyCost),
		HasRxAddOn:  input.HasRxAddOn,
		IsActive:    input.IsActive,
	}
	if err := s.planRepo.Create(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// UpdatePlan 更新套餐，仅管理角色
// 改价不回算既有佣金，台账金额创建时定死
func (s *PlanService) UpdatePlan(viewer Viewer, planID uint, input PlanInput) (*models.Plan, error) {
	if !viewer.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	plan, err := s.planRepo.GetByID(planID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("%w: plan_id=%d", ErrPlanNotFound, planID)
	}
	if input.MonthlyCost.IsNegative() {
		return nil, fmt.Errorf("%w: 月费不能为负", ErrRateTableInvalid)
	}

	if name := strings.TrimSpace(input.Name); name != "" {
		plan.Name = name
	}
	plan.MonthlyCost = models.NewMoneyFromDecimal(input.MonthlyCost)
	plan.HasRxAddOn = input.HasRxAddOn
	plan.IsActive = input.IsActive
	if err := s.planRepo.Update(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

// ListActivePlans 查询可售套餐
func (s *PlanService) ListActivePlans() ([]models.Plan, error) {
	return s.planRepo.ListActive()
}

// ListAllPlans 查询全部套餐（含停售），仅管理角色
func (s *PlanService) ListAllPlans(viewer Viewer) ([]models.Plan, error) {
	if !viewer.IsAdmin() {
		return nil, ErrPermissionDenied
	}
	return s.planRepo.List()
}

package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/enroll-next/internal/constants"
	"github.com/enroll-next/internal/logger"
	"github.com/enroll-next/internal/models"
	"github.com/enroll-next/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EnrollmentService 入单编排服务
// 台账只接受已解析的主键，邮箱、员工编号到主键的解析在这里完成且必须响亮失败
// 会员、订阅、佣金在同一事务内落库，任一步失败整单回滚，不留"入单成功但无佣金"的静默残局
type EnrollmentService struct {
	agentRepo        repository.AgentRepository
	memberRepo       repository.MemberRepository
	planRepo         repository.PlanRepository
	subscriptionRepo repository.SubscriptionRepository
	commissionSvc    *CommissionService
}

// NewEnrollmentService 创建入单编排服务
func NewEnrollmentService(
	agentRepo repository.AgentRepository,
	memberRepo repository.MemberRepository,
	planRepo repository.PlanRepository,
	subscriptionRepo repository.SubscriptionRepository,
	commissionSvc *CommissionService,
) *EnrollmentService {
	return &EnrollmentService{
		agentRepo:        agentRepo,
		memberRepo:       memberRepo,
		planRepo:         planRepo,
		subscriptionRepo: subscriptionRepo,
		commissionSvc:    commissionSvc,
	}
}

// EnrollMemberInput 入单参数
// 入单员工按 AgentID / AgentNumber / AgentEmail 其一定位，解析失败即整单失败
type EnrollMemberInput struct {
	AgentID     uint
	AgentNumber string
	AgentEmail  string

	MemberName   string
	MemberEmail  string
	MemberPhone  string
	PlanID       uint
	CoverageType string
	HasRxAddOn   bool
	GatewayRef   string
	Notes        string
}

// EnrollmentResult 入单结果
type EnrollmentResult struct {
	Member       *models.Member       `json:"member"`
	Subscription *models.Subscription `json:"subscription"`
	Commission   *models.Commission   `json:"commission"`
}

// ResolveAgent 解析入单员工，找不到返回 ErrAgentNotFound
func (s *EnrollmentService) ResolveAgent(input EnrollMemberInput) (*models.Agent, error) {
	switch {
	case input.AgentID != 0:
		agent, err := s.agentRepo.GetByID(input.AgentID)
		if err != nil {
			return nil, err
		}
		if agent == nil {
			return nil, fmt.Errorf("%w: agent_id=%d", ErrAgentNotFound, input.AgentID)
		}
		return agent, nil
	case strings.TrimSpace(input.AgentNumber) != "":
		agent, err := s.agentRepo.GetByAgentNumber(input.AgentNumber)
		if err != nil {
			return nil, err
		}
		if agent == nil {
			return nil, fmt.Errorf("%w: agent_number=%s", ErrAgentNotFound, input.AgentNumber)
		}
		return agent, nil
	case strings.TrimSpace(input.AgentEmail) != "":
		agent, err := s.agentRepo.GetByEmail(input.AgentEmail)
		if err != nil {
			return nil, err
		}
		if agent == nil {
			return nil, fmt.Errorf("%w: email=%s", ErrAgentNotFound, input.AgentEmail)
		}
		return agent, nil
	}
	return nil, fmt.Errorf("%w: 缺少入单员工标识", ErrAgentNotFound)
}

// EnrollMember 入单：创建会员、订阅，并在台账创建 pending_capture 佣金
func (s *EnrollmentService) EnrollMember(input EnrollMemberInput) (*EnrollmentResult, error) {
	agent, err := s.ResolveAgent(input)
	if err != nil {
		return nil, err
	}
	if !agent.IsActive() {
		return nil, fmt.Errorf("%w: 员工 %s 已停用", ErrAgentNotFound, agent.AgentNumber)
	}

	if strings.TrimSpace(input.MemberName) == "" {
		return nil, fmt.Errorf("%w: 会员姓名为空", ErrMemberInvalid)
	}
	if err := ValidateCoverageType(input.CoverageType); err != nil {
		return nil, err
	}

	plan, err := s.planRepo.GetByID(input.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, fmt.Errorf("%w: plan_id=%d", ErrPlanNotFound, input.PlanID)
	}
	if !plan.IsActive {
		return nil, fmt.Errorf("%w: %s", ErrPlanInactive, plan.Name)
	}

	var result *EnrollmentResult
	err = s.agentRepo.Transaction(func(tx *gorm.DB) error {
		memberRepo := s.memberRepo.WithTx(tx)
		subscriptionRepo := s.subscriptionRepo.WithTx(tx)

		agentID := agent.ID
		member := &models.Member{
			CustomerNumber:    generateCustomerNumber(),
			Name:              strings.TrimSpace(input.MemberName),
			Email:             strings.ToLower(strings.TrimSpace(input.MemberEmail)),
			Phone:             strings.TrimSpace(input.MemberPhone),
			PlanID:            plan.ID,
			CoverageType:      input.CoverageType,
			EnrolledByAgentID: &agentID,
			Status:            constants.MemberStatusPending,
		}
		if err := memberRepo.Create(member); err != nil {
			return err
		}

		subscription := &models.Subscription{
			MemberID:   member.ID,
			PlanID:     plan.ID,
			GatewayRef: strings.TrimSpace(input.GatewayRef),
			Status:     constants.SubscriptionStatusActive,
			StartedAt:  time.Now(),
		}
		if err := subscriptionRepo.Create(subscription); err != nil {
			return err
		}

		subscriptionID := subscription.ID
		commission, err := s.commissionSvc.createCommissionTx(tx, CreateCommissionInput{
			AgentID:        agent.ID,
			MemberID:       member.ID,
			SubscriptionID: &subscriptionID,
			PlanLabel:      plan.Name,
			CoverageType:   input.CoverageType,
			HasRxAddOn:     input.HasRxAddOn || plan.HasRxAddOn,
			TotalPlanCost:  plan.MonthlyCost.Decimal,
			Notes:          strings.TrimSpace(input.Notes),
		})
		if err != nil {
			return err
		}

		result = &EnrollmentResult{
			Member:       member,
			Subscription: subscription,
			Commission:   commission,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("member_enrolled",
		"member_id", result.Member.ID,
		"customer_number", result.Member.CustomerNumber,
		"agent_id", agent.ID,
		"plan_id", plan.ID,
		"commission_id", result.Commission.ID,
	)
	return result, nil
}

// generateCustomerNumber 生成对外客户编号
func generateCustomerNumber() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "M-" + strings.ToUpper(raw[:10])
}

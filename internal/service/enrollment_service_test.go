package service

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/enroll-next/internal/config"
	"github.com/enroll-next/internal/constants"
	"github.com/enroll-next/internal/models"
	"github.com/enroll-next/internal/repository"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupEnrollmentTest(t *testing.T) (*EnrollmentService, *gorm.DB, *config.Config) {
	t.Helper()
	dsn := fmt.Sprintf("file:enrollment_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Agent{},
		&models.Member{},
		&models.Plan{},
		&models.Subscription{},
		&models.Commission{},
		&models.Setting{},
	); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	cfg := &config.Config{
		Commission: config.CommissionConfig{
			GracePeriodDays:           14,
			UnrecognizedTierPolicy:    constants.UnrecognizedTierPolicyFail,
			AllowDuplicateCommissions: true,
		},
	}
	agentRepo := repository.NewAgentRepository(db)
	memberRepo := repository.NewMemberRepository(db)
	planRepo := repository.NewPlanRepository(db)
	subscriptionRepo := repository.NewSubscriptionRepository(db)
	commissionRepo := repository.NewCommissionRepository(db)
	calculator := NewCommissionCalculator(NewRateTableService(repository.NewSettingRepository(db)))
	policy := NewAccessPolicy(NewHierarchyService(agentRepo))
	commissionSvc := NewCommissionService(cfg, commissionRepo, agentRepo, memberRepo, calculator, policy)
	svc := NewEnrollmentService(agentRepo, memberRepo, planRepo, subscriptionRepo, commissionSvc)
	return svc, db, cfg
}

func createEnrollTestAgent(t *testing.T, db *gorm.DB, id uint, email string) *models.Agent {
	t.Helper()
	agent := models.Agent{
		ID:           id,
		Email:        email,
		PasswordHash: "hash",
		Role:         constants.AgentRoleAgent,
		AgentNumber:  fmt.Sprintf("A-%06d", id),
		Status:       constants.AgentStatusActive,
	}
	if err := db.Create(&agent).Error; err != nil {
		t.Fatalf("create agent failed: %v", err)
	}
	return &agent
}

func createEnrollTestPlan(t *testing.T, db *gorm.DB, name string, active bool) *models.Plan {
	t.Helper()
	plan := models.Plan{
		Name:        name,
		MonthlyCost: models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
		IsActive:    active,
	}
	if err := db.Create(&plan).Error; err != nil {
		t.Fatalf("create plan failed: %v", err)
	}
	return &plan
}

func TestEnrollMemberHappyPath(t *testing.T) {
	svc, db, _ := setupEnrollmentTest(t)
	agent := createEnrollTestAgent(t, db, 1, "enroll_a1@example.com")
	plan := createEnrollTestPlan(t, db, "MyPremierPlan Plus", true)

	result, err := svc.EnrollMember(EnrollMemberInput{
		AgentEmail:   agent.Email,
		MemberName:   "张三",
		MemberEmail:  "Zhang@Example.com",
		PlanID:       plan.ID,
		CoverageType: constants.CoverageFamily,
	})
	if err != nil {
		t.Fatalf("入单失败: %v", err)
	}

	if !strings.HasPrefix(result.Member.CustomerNumber, "M-") {
		t.Fatalf("客户编号格式不对: %s", result.Member.CustomerNumber)
	}
	if result.Member.EnrolledByAgentID == nil || *result.Member.EnrolledByAgentID != agent.ID {
		t.Fatalf("入单员工归属错误: %v", result.Member.EnrolledByAgentID)
	}
	if result.Member.Email != "zhang@example.com" {
		t.Fatalf("会员邮箱未归一化: %s", result.Member.Email)
	}
	if result.Subscription.Status != constants.SubscriptionStatusActive {
		t.Fatalf("订阅状态 = %s, 期望 active", result.Subscription.Status)
	}
	if result.Commission.Status != constants.CommissionStatusPendingCapture {
		t.Fatalf("佣金状态 = %s, 期望 pending_capture", result.Commission.Status)
	}
	if result.Commission.CommissionAmount.String() != "40.00" {
		t.Fatalf("佣金金额 = %s, 期望 40.00", result.Commission.CommissionAmount.String())
	}
	if result.Commission.SubscriptionID == nil || *result.Commission.SubscriptionID != result.Subscription.ID {
		t.Fatalf("佣金未关联订阅: %v", result.Commission.SubscriptionID)
	}
}

func TestEnrollMemberByAgentNumber(t *testing.T) {
	svc, db, _ := setupEnrollmentTest(t)
	agent := createEnrollTestAgent(t, db, 7, "enroll_a7@example.com")
	plan := createEnrollTestPlan(t, db, "base plan", true)

	result, err := svc.EnrollMember(EnrollMemberInput{
		AgentNumber:  agent.AgentNumber,
		MemberName:   "李四",
		PlanID:       plan.ID,
		CoverageType: constants.CoverageMemberOnly,
	})
	if err != nil {
		t.Fatalf("入单失败: %v", err)
	}
	if result.Commission.AgentID != agent.ID {
		t.Fatalf("佣金归属 = %d, 期望 %d", result.Commission.AgentID, agent.ID)
	}
	if result.Commission.CommissionAmount.String() != "9.00" {
		t.Fatalf("佣金金额 = %s, 期望 9.00", result.Commission.CommissionAmount.String())
	}
}

func TestEnrollMemberUnknownAgentPersistsNothing(t *testing.T) {
	svc, db, _ := setupEnrollmentTest(t)
	plan := createEnrollTestPlan(t, db, "MyPremierPlan Plus", true)

	_, err := svc.EnrollMember(EnrollMemberInput{
		AgentEmail:   "ghost@example.com",
		MemberName:   "王五",
		PlanID:       plan.ID,
		CoverageType: constants.CoverageFamily,
	})
	if !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("期望 ErrAgentNotFound, 实际: %v", err)
	}

	for _, target := range []interface{}{&models.Member{}, &models.Subscription{}, &models.Commission{}} {
		var count int64
		if err := db.Model(target).Count(&count).Error; err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if count != 0 {
			t.Fatalf("入单失败后 %T 不应有残留记录, count=%d", target, count)
		}
	}
}

func TestEnrollMemberInactivePlan(t *testing.T) {
	svc, db, _ := setupEnrollmentTest(t)
	agent := createEnrollTestAgent(t, db, 1, "enroll_a1@example.com")
	plan := createEnrollTestPlan(t, db, "MyPremierPlan Plus", false)

	_, err := svc.EnrollMember(EnrollMemberInput{
		AgentEmail:   agent.Email,
		MemberName:   "赵六",
		PlanID:       plan.ID,
		CoverageType: constants.CoverageFamily,
	})
	if !errors.Is(err, ErrPlanInactive) {
		t.Fatalf("期望 ErrPlanInactive, 实际: %v", err)
	}
}

func TestEnrollMemberUnrecognizedTierRollsBack(t *testing.T) {
	svc, db, cfg := setupEnrollmentTest(t)
	agent := createEnrollTestAgent(t, db, 1, "enroll_a1@example.com")
	plan := createEnrollTestPlan(t, db, "Mystery Tier", true)

	input := EnrollMemberInput{
		AgentEmail:   agent.Email,
		MemberName:   "孙七",
		PlanID:       plan.ID,
		CoverageType: constants.CoverageMemberOnly,
	}

	// fail 策略：整单回滚，不留"入单成功但无佣金"的残局
	_, err := svc.EnrollMember(input)
	if !errors.Is(err, ErrUnrecognizedPlanTier) {
		t.Fatalf("期望 ErrUnrecognizedPlanTier, 实际: %v", err)
	}
	var memberCount int64
	if err := db.Model(&models.Member{}).Count(&memberCount).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if memberCount != 0 {
		t.Fatalf("回滚后不应有会员残留, count=%d", memberCount)
	}

	// zero 策略：整单落库，佣金为 0 且备注留痕
	cfg.Commission.UnrecognizedTierPolicy = constants.UnrecognizedTierPolicyZero
	result, err := svc.EnrollMember(input)
	if err != nil {
		t.Fatalf("零佣金策略下入单失败: %v", err)
	}
	if !result.Commission.CommissionAmount.IsZero() {
		t.Fatalf("金额 = %s, 期望 0", result.Commission.CommissionAmount.String())
	}
	if result.Commission.PlanTier != constants.PlanTierUnknown {
		t.Fatalf("档位 = %s, 期望 unknown", result.Commission.PlanTier)
	}
}

package service

import (
	"context"
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

func setupLedgerTest(t *testing.T) (*CommissionService, *gorm.DB, *config.Config) {
	t.Helper()
	dsn := fmt.Sprintf("file:ledger_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
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
	commissionRepo := repository.NewCommissionRepository(db)
	calculator := NewCommissionCalculator(NewRateTableService(repository.NewSettingRepository(db)))
	policy := NewAccessPolicy(NewHierarchyService(agentRepo))
	svc := NewCommissionService(cfg, commissionRepo, agentRepo, memberRepo, calculator, policy)
	return svc, db, cfg
}

func createLedgerTestAgent(t *testing.T, db *gorm.DB, id uint, role string, uplineID *uint) *models.Agent {
	t.Helper()
	agent := models.Agent{
		ID:            id,
		Email:         fmt.Sprintf("ledger_agent_%d@example.com", id),
		PasswordHash:  "hash",
		Role:          role,
		AgentNumber:   fmt.Sprintf("A-%06d", id),
		UplineAgentID: uplineID,
		Status:        constants.AgentStatusActive,
	}
	if err := db.Create(&agent).Error; err != nil {
		t.Fatalf("create agent failed: %v", err)
	}
	return &agent
}

func createLedgerTestMember(t *testing.T, db *gorm.DB, id, agentID uint) *models.Member {
	t.Helper()
	plan := models.Plan{
		Name:        "MyPremierPlan Plus",
		MonthlyCost: models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
		IsActive:    true,
	}
	if err := db.Create(&plan).Error; err != nil {
		t.Fatalf("create plan failed: %v", err)
	}
	member := models.Member{
		ID:                id,
		CustomerNumber:    fmt.Sprintf("M-%06d", id),
		Name:              fmt.Sprintf("会员 %d", id),
		PlanID:            plan.ID,
		CoverageType:      constants.CoverageFamily,
		EnrolledByAgentID: &agentID,
		Status:            constants.MemberStatusActive,
	}
	if err := db.Create(&member).Error; err != nil {
		t.Fatalf("create member failed: %v", err)
	}
	return &member
}

func ledgerTestInput(agentID, memberID uint) CreateCommissionInput {
	return CreateCommissionInput{
		AgentID:       agentID,
		MemberID:      memberID,
		PlanLabel:     "MyPremierPlan Plus",
		CoverageType:  constants.CoverageFamily,
		TotalPlanCost: decimal.NewFromInt(100),
	}
}

func TestCreateCommissionAgentNotFoundPersistsNothing(t *testing.T) {
	svc, db, _ := setupLedgerTest(t)
	agent := createLedgerTestAgent(t, db, 1, constants.AgentRoleAgent, nil)
	member := createLedgerTestMember(t, db, 1, agent.ID)

	_, err := svc.CreateCommission(ledgerTestInput(999, member.ID))
	if !errors.Is(err, ErrAgentNotFound) {
		t.Fatalf("期望 ErrAgentNotFound, 实际: %v", err)
	}

	var count int64
	if err := db.Model(&models.Commission{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("失败的入单不应留下任何佣金记录, count=%d", count)
	}
}

func TestCreateCommissionMemberNotFound(t *testing.T) {
	svc, db, _ := setupLedgerTest(t)
	agent := createLedgerTestAgent(t, db, 1, constants.AgentRoleAgent, nil)

	_, err := svc.CreateCommission(ledgerTestInput(agent.ID, 999))
	if !errors.Is(err, ErrMemberNotFound) {
		t.Fatalf("期望 ErrMemberNotFound, 实际: %v", err)
	}
}

func TestCommissionLifecycle(t *testing.T) {
	svc, db, _ := setupLedgerTest(t)
	ctx := context.Background()
	agent := createLedgerTestAgent(t, db, 1, constants.AgentRoleAgent, nil)
	admin := createLedgerTestAgent(t, db, 2, constants.AgentRoleAdmin, nil)
	member := createLedgerTestMember(t, db, 1, agent.ID)
	adminViewer := Viewer{ID: admin.ID, Role: admin.Role}

	commission, err := svc.CreateCommission(ledgerTestInput(agent.ID, member.ID))
	if err != nil {
		t.Fatalf("创建佣金失败: %v", err)
	}
	if commission.Status != constants.CommissionStatusPendingCapture {
		t.Fatalf("初始状态 = %s, 期望 pending_capture", commission.Status)
	}
	if commission.CommissionAmount.String() != "40.00" {
		t.Fatalf("佣金金额 = %s, 期望 40.00", commission.CommissionAmount.String())
	}
	if commission.PayoutDate != nil || commission.PayoutEligibleDate != nil {
		t.Fatalf("未捕获前不应有发放相关日期")
	}

	// 未捕获即发放：跳步被拒绝
	if _, err := svc.MarkPaid(ctx, adminViewer, commission.ID, time.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("期望 ErrInvalidTransition, 实际: %v", err)
	}

	capturedAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	updated, err := svc.MarkPaymentCaptured(commission.ID, capturedAt, 14)
	if err != nil {
		t.Fatalf("捕获失败: %v", err)
	}
	if updated.Status != constants.CommissionStatusPendingPayout {
		t.Fatalf("捕获后状态 = %s, 期望 pending_payout", updated.Status)
	}
	wantEligible := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	if updated.PayoutEligibleDate == nil || !updated.PayoutEligibleDate.Equal(wantEligible) {
		t.Fatalf("可发放时间 = %v, 期望 %v", updated.PayoutEligibleDate, wantEligible)
	}

	// 重复捕获被拒绝
	if _, err := svc.MarkPaymentCaptured(commission.ID, capturedAt, 14); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("期望重复捕获返回 ErrInvalidTransition, 实际: %v", err)
	}

	// 发放日期晚于可发放时间也接受，不设上界
	paidAt := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	paid, err := svc.MarkPaid(ctx, adminViewer, commission.ID, paidAt)
	if err != nil {
		t.Fatalf("发放失败: %v", err)
	}
	if paid.Status != constants.CommissionStatusPaid {
		t.Fatalf("发放后状态 = %s, 期望 paid", paid.Status)
	}
	if paid.PayoutDate == nil || !paid.PayoutDate.Equal(paidAt) {
		t.Fatalf("发放日期 = %v, 期望 %v", paid.PayoutDate, paidAt)
	}

	// 终态不可再推进
	if _, err := svc.MarkPaid(ctx, adminViewer, commission.ID, paidAt); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("期望重复发放返回 ErrInvalidTransition, 实际: %v", err)
	}
}

func TestMarkPaidRequiresAdmin(t *testing.T) {
	svc, db, _ := setupLedgerTest(t)
	ctx := context.Background()
	agent := createLedgerTestAgent(t, db, 1, constants.AgentRoleAgent, nil)
	member := createLedgerTestMember(t, db, 1, agent.ID)

	commission, err := svc.CreateCommission(ledgerTestInput(agent.ID, member.ID))
	if err != nil {
		t.Fatalf("创建佣金失败: %v", err)
	}
	if _, err := svc.MarkPaymentCaptured(commission.ID, time.Now(), 14); err != nil {
		t.Fatalf("捕获失败: %v", err)
	}

	agentViewer := Viewer{ID: agent.ID, Role: agent.Role}
	if _, err := svc.MarkPaid(ctx, agentViewer, commission.ID, time.Now()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("期望 ErrPermissionDenied, 实际: %v", err)
	}
}

func TestBatchMarkPaidPartialSuccess(t *testing.T) {
	svc, db, _ := setupLedgerTest(t)
	ctx := context.Background()
	agent := createLedgerTestAgent(t, db, 1, constants.AgentRoleAgent, nil)
	admin := createLedgerTestAgent(t, db, 2, constants.AgentRoleAdmin, nil)
	member := createLedgerTestMember(t, db, 1, agent.ID)
	adminViewer := Viewer{ID: admin.ID, Role: admin.Role}

	ids := make([]uint, 0, 3)
	for i := 0; i < 3; i++ {
		commission, err := svc.CreateCommission(ledgerTestInput(agent.ID, member.ID))
		if err != nil {
			t.Fatalf("创建佣金失败: %v", err)
		}
		if _, err := svc.MarkPaymentCaptured(commission.ID, time.Now(), 14); err != nil {
			t.Fatalf("捕获失败: %v", err)
		}
		ids = append(ids, commission.ID)
	}
	// 第三条先行发放，批量时应失败而不影响其余
	if _, err := svc.MarkPaid(ctx, adminViewer, ids[2], time.Now()); err != nil {
		t.Fatalf("预发放失败: %v", err)
	}

	result, err := svc.BatchMarkPaid(ctx, adminViewer, ids, time.Now())
	if err != nil {
		t.Fatalf("批量发放失败: %v", err)
	}
	if len(result.Succeeded) != 2 {
		t.Fatalf("成功数 = %d, 期望 2", len(result.Succeeded))
	}
	if len(result.Failed) != 1 || result.Failed[0].CommissionID != ids[2] {
		t.Fatalf("失败明细 = %+v, 期望仅 ids[2]", result.Failed)
	}
	if !strings.Contains(result.Failed[0].Reason, ErrInvalidTransition.Error()) {
		t.Fatalf("失败原因 = %q, 期望包含状态流转错误", result.Failed[0].Reason)
	}
}

func TestCommissionTotalsIdentity(t *testing.T) {
	svc, db, _ := setupLedgerTest(t)
	ctx := context.Background()
	agent := createLedgerTestAgent(t, db, 1, constants.AgentRoleAgent, nil)
	admin := createLedgerTestAgent(t, db, 2, constants.AgentRoleAdmin, nil)
	member := createLedgerTestMember(t, db, 1, agent.ID)
	adminViewer := Viewer{ID: admin.ID, Role: admin.Role}

	// 三条各 40：一条停在 pending_capture，一条捕获，一条捕获并发放
	if _, err := svc.CreateCommission(ledgerTestInput(agent.ID, member.ID)); err != nil {
		t.Fatalf("创建佣金失败: %v", err)
	}
	second, err := svc.CreateCommission(ledgerTestInput(agent.ID, member.ID))
	if err != nil {
		t.Fatalf("创建佣金失败: %v", err)
	}
	if _, err := svc.MarkPaymentCaptured(second.ID, time.Now(), 14); err != nil {
		t.Fatalf("捕获失败: %v", err)
	}
	third, err := svc.CreateCommission(ledgerTestInput(agent.ID, member.ID))
	if err != nil {
		t.Fatalf("创建佣金失败: %v", err)
	}
	if _, err := svc.MarkPaymentCaptured(third.ID, time.Now(), 14); err != nil {
		t.Fatalf("捕获失败: %v", err)
	}
	if _, err := svc.MarkPaid(ctx, adminViewer, third.ID, time.Now()); err != nil {
		t.Fatalf("发放失败: %v", err)
	}

	totals, err := svc.GetCommissionTotals(ctx, adminViewer, agent.ID, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("汇总失败: %v", err)
	}
	for name, period := range map[string]PeriodTotals{
		"mtd":      totals.MTD,
		"ytd":      totals.YTD,
		"lifetime": totals.Lifetime,
	} {
		sum := period.Paid.Add(period.Pending.Decimal)
		if !period.Earned.Equal(sum) {
			t.Fatalf("%s 周期恒等式被破坏: earned=%s paid=%s pending=%s",
				name, period.Earned.String(), period.Paid.String(), period.Pending.String())
		}
	}
	if totals.Lifetime.Earned.String() != "120.00" {
		t.Fatalf("lifetime earned = %s, 期望 120.00", totals.Lifetime.Earned.String())
	}
	if totals.Lifetime.Paid.String() != "40.00" {
		t.Fatalf("lifetime paid = %s, 期望 40.00", totals.Lifetime.Paid.String())
	}
	if totals.Lifetime.Pending.String() != "80.00" {
		t.Fatalf("lifetime pending = %s, 期望 80.00", totals.Lifetime.Pending.String())
	}
}

func TestCommissionTotalsAsOfBoundsWindow(t *testing.T) {
	svc, db, _ := setupLedgerTest(t)
	ctx := context.Background()
	agent := createLedgerTestAgent(t, db, 1, constants.AgentRoleAgent, nil)
	admin := createLedgerTestAgent(t, db, 2, constants.AgentRoleAdmin, nil)
	member := createLedgerTestMember(t, db, 1, agent.ID)
	adminViewer := Viewer{ID: admin.ID, Role: admin.Role}

	if _, err := svc.CreateCommission(ledgerTestInput(agent.ID, member.ID)); err != nil {
		t.Fatalf("创建佣金失败: %v", err)
	}

	// asOf 早于入账时间：各周期窗口都不应覆盖这条记录
	past := time.Now().AddDate(-1, 0, 0)
	totals, err := svc.GetCommissionTotals(ctx, adminViewer, agent.ID, past)
	if err != nil {
		t.Fatalf("汇总失败: %v", err)
	}
	if !totals.Lifetime.Earned.IsZero() || !totals.MTD.Earned.IsZero() || !totals.YTD.Earned.IsZero() {
		t.Fatalf("asOf 之后入账的记录不应计入, lifetime=%s mtd=%s ytd=%s",
			totals.Lifetime.Earned.String(), totals.MTD.Earned.String(), totals.YTD.Earned.String())
	}

	// asOf 晚于入账时间：计入
	future := time.Now().Add(time.Minute)
	totals, err = svc.GetCommissionTotals(ctx, adminViewer, agent.ID, future)
	if err != nil {
		t.Fatalf("汇总失败: %v", err)
	}
	if totals.Lifetime.Earned.String() != "40.00" {
		t.Fatalf("lifetime earned = %s, 期望 40.00", totals.Lifetime.Earned.String())
	}
}

func TestMarkPaymentCapturedUsesGivenGracePeriod(t *testing.T) {
	svc, db, _ := setupLedgerTest(t)
	agent := createLedgerTestAgent(t, db, 1, constants.AgentRoleAgent, nil)
	member := createLedgerTestMember(t, db, 1, agent.ID)

	commission, err := svc.CreateCommission(ledgerTestInput(agent.ID, member.ID))
	if err != nil {
		t.Fatalf("创建佣金失败: %v", err)
	}

	capturedAt := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	updated, err := svc.MarkPaymentCaptured(commission.ID, capturedAt, 3)
	if err != nil {
		t.Fatalf("捕获失败: %v", err)
	}
	wantEligible := time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)
	if updated.PayoutEligibleDate == nil || !updated.PayoutEligibleDate.Equal(wantEligible) {
		t.Fatalf("可发放时间 = %v, 期望 %v", updated.PayoutEligibleDate, wantEligible)
	}
}

func TestCreateCommissionUnrecognizedTierPolicies(t *testing.T) {
	svc, db, cfg := setupLedgerTest(t)
	agent := createLedgerTestAgent(t, db, 1, constants.AgentRoleAgent, nil)
	member := createLedgerTestMember(t, db, 1, agent.ID)

	input := ledgerTestInput(agent.ID, member.ID)
	input.PlanLabel = "Mystery Tier"

	// fail 策略：拒绝入单
	if _, err := svc.CreateCommission(input); !errors.Is(err, ErrUnrecognizedPlanTier) {
		t.Fatalf("期望 ErrUnrecognizedPlanTier, 实际: %v", err)
	}

	// zero 策略：落零佣金记录并在备注留痕
	cfg.Commission.UnrecognizedTierPolicy = constants.UnrecognizedTierPolicyZero
	commission, err := svc.CreateCommission(input)
	if err != nil {
		t.Fatalf("零佣金兜底失败: %v", err)
	}
	if commission.PlanTier != constants.PlanTierUnknown {
		t.Fatalf("档位 = %s, 期望 unknown", commission.PlanTier)
	}
	if !commission.CommissionAmount.IsZero() {
		t.Fatalf("金额 = %s, 期望 0", commission.CommissionAmount.String())
	}
	if !strings.Contains(commission.Notes, "未识别套餐档位") {
		t.Fatalf("备注未留痕: %q", commission.Notes)
	}
}

func TestCreateCommissionDuplicatePolicy(t *testing.T) {
	svc, db, cfg := setupLedgerTest(t)
	agent := createLedgerTestAgent(t, db, 1, constants.AgentRoleAgent, nil)
	member := createLedgerTestMember(t, db, 1, agent.ID)

	if _, err := svc.CreateCommission(ledgerTestInput(agent.ID, member.ID)); err != nil {
		t.Fatalf("首单失败: %v", err)
	}
	// 默认允许重复（套餐中途升级等场景）
	if _, err := svc.CreateCommission(ledgerTestInput(agent.ID, member.ID)); err != nil {
		t.Fatalf("默认策略下重复入单应被允许: %v", err)
	}

	cfg.Commission.AllowDuplicateCommissions = false
	if _, err := svc.CreateCommission(ledgerTestInput(agent.ID, member.ID)); !errors.Is(err, ErrDuplicateCommission) {
		t.Fatalf("期望 ErrDuplicateCommission, 实际: %v", err)
	}
}

func TestAnnotateCommission(t *testing.T) {
	svc, db, _ := setupLedgerTest(t)
	ctx := context.Background()
	agent := createLedgerTestAgent(t, db, 1, constants.AgentRoleAgent, nil)
	other := createLedgerTestAgent(t, db, 2, constants.AgentRoleAgent, nil)
	member := createLedgerTestMember(t, db, 1, agent.ID)

	commission, err := svc.CreateCommission(ledgerTestInput(agent.ID, member.ID))
	if err != nil {
		t.Fatalf("创建佣金失败: %v", err)
	}

	ownerViewer := Viewer{ID: agent.ID, Role: agent.Role}
	updated, err := svc.AnnotateCommission(ctx, ownerViewer, commission.ID, "客户要求改保障范围，待冲正")
	if err != nil {
		t.Fatalf("归属员工备注失败: %v", err)
	}
	if !strings.Contains(updated.Notes, "待冲正") {
		t.Fatalf("备注未追加: %q", updated.Notes)
	}
	if updated.Status != constants.CommissionStatusPendingCapture {
		t.Fatalf("备注不应改变状态, status=%s", updated.Status)
	}

	if _, err := svc.AnnotateCommission(ctx, ownerViewer, commission.ID, ""); !errors.Is(err, ErrNoteEmpty) {
		t.Fatalf("期望 ErrNoteEmpty, 实际: %v", err)
	}

	otherViewer := Viewer{ID: other.ID, Role: other.Role}
	if _, err := svc.AnnotateCommission(ctx, otherViewer, commission.ID, "越权备注"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("期望 ErrPermissionDenied, 实际: %v", err)
	}
}

func TestGetCommissionDistinguishesDenialFromMissing(t *testing.T) {
	svc, db, _ := setupLedgerTest(t)
	ctx := context.Background()
	agent := createLedgerTestAgent(t, db, 1, constants.AgentRoleAgent, nil)
	other := createLedgerTestAgent(t, db, 2, constants.AgentRoleAgent, nil)
	member := createLedgerTestMember(t, db, 1, agent.ID)

	commission, err := svc.CreateCommission(ledgerTestInput(agent.ID, member.ID))
	if err != nil {
		t.Fatalf("创建佣金失败: %v", err)
	}

	otherViewer := Viewer{ID: other.ID, Role: other.Role}
	if _, err := svc.GetCommission(ctx, otherViewer, commission.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("越权访问应返回 ErrPermissionDenied, 实际: %v", err)
	}
	if _, err := svc.GetCommission(ctx, otherViewer, 999); !errors.Is(err, ErrCommissionNotFound) {
		t.Fatalf("不存在应返回 ErrCommissionNotFound, 实际: %v", err)
	}
}

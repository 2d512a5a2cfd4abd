package worker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/enroll-next/internal/config"
	"github.com/enroll-next/internal/constants"
	"github.com/enroll-next/internal/models"
	"github.com/enroll-next/internal/provider"
	"github.com/enroll-next/internal/queue"
	"github.com/enroll-next/internal/repository"
	"github.com/enroll-next/internal/service"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupWorkerTest(t *testing.T) (*Consumer, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:worker_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(
		&models.Agent{},
		&models.Member{},
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
	commissionSvc := service.NewCommissionService(
		cfg,
		repository.NewCommissionRepository(db),
		agentRepo,
		repository.NewMemberRepository(db),
		service.NewCommissionCalculator(service.NewRateTableService(repository.NewSettingRepository(db))),
		service.NewAccessPolicy(service.NewHierarchyService(agentRepo)),
	)
	consumer := NewConsumer(&provider.Container{
		Config:            cfg,
		CommissionService: commissionSvc,
	})
	return consumer, db
}

func createWorkerTestCommission(t *testing.T, db *gorm.DB) *models.Commission {
	t.Helper()
	agent := models.Agent{
		Email:        fmt.Sprintf("worker_agent_%d@example.com", time.Now().UnixNano()),
		PasswordHash: "hash",
		Role:         constants.AgentRoleAgent,
		AgentNumber:  fmt.Sprintf("A-%06d", time.Now().UnixNano()%1000000),
		Status:       constants.AgentStatusActive,
	}
	if err := db.Create(&agent).Error; err != nil {
		t.Fatalf("create agent failed: %v", err)
	}
	commission := models.Commission{
		AgentID:          agent.ID,
		MemberID:         1,
		PlanTier:         constants.PlanTierBase,
		CoverageType:     constants.CoverageMemberOnly,
		CommissionAmount: models.NewMoneyFromDecimal(decimal.RequireFromString("9.00")),
		TotalPlanCost:    models.NewMoneyFromDecimal(decimal.NewFromInt(100)),
		Status:           constants.CommissionStatusPendingCapture,
	}
	if err := db.Create(&commission).Error; err != nil {
		t.Fatalf("create commission failed: %v", err)
	}
	return &commission
}

func TestHandlePaymentCapturedAdvancesCommission(t *testing.T) {
	consumer, db := setupWorkerTest(t)
	commission := createWorkerTestCommission(t, db)

	capturedAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	task, err := queue.NewCommissionPaymentCapturedTask(queue.CommissionPaymentCapturedPayload{
		CommissionID: commission.ID,
		CapturedAt:   capturedAt,
		GatewayRef:   "gw-001",
	})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if err := consumer.handleCommissionPaymentCaptured(context.Background(), task); err != nil {
		t.Fatalf("handle task failed: %v", err)
	}

	var reloaded models.Commission
	if err := db.First(&reloaded, commission.ID).Error; err != nil {
		t.Fatalf("reload commission failed: %v", err)
	}
	if reloaded.Status != constants.CommissionStatusPendingPayout {
		t.Fatalf("状态 = %s, 期望 pending_payout", reloaded.Status)
	}
	if reloaded.PayoutEligibleDate == nil || !reloaded.PayoutEligibleDate.Equal(capturedAt.AddDate(0, 0, 14)) {
		t.Fatalf("发放等待期计算错误: %v", reloaded.PayoutEligibleDate)
	}

	// 网关重复回调按幂等处理，不触发任务重试
	if err := consumer.handleCommissionPaymentCaptured(context.Background(), task); err != nil {
		t.Fatalf("重复回调不应报错: %v", err)
	}
}

func TestHandlePaymentCapturedMissingCommission(t *testing.T) {
	consumer, _ := setupWorkerTest(t)
	task, err := queue.NewCommissionPaymentCapturedTask(queue.CommissionPaymentCapturedPayload{
		CommissionID: 999,
		CapturedAt:   time.Now(),
	})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	// 台账不存在时静默跳过，避免死信堆积
	if err := consumer.handleCommissionPaymentCaptured(context.Background(), task); err != nil {
		t.Fatalf("缺失台账应跳过, 实际: %v", err)
	}
}

func TestEligibilitySweepLogsBacklog(t *testing.T) {
	consumer, db := setupWorkerTest(t)
	commission := createWorkerTestCommission(t, db)

	capturedAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := consumer.CommissionService.MarkPaymentCaptured(commission.ID, capturedAt, 14); err != nil {
		t.Fatalf("capture failed: %v", err)
	}

	task, err := queue.NewCommissionEligibilitySweepTask(queue.CommissionEligibilitySweepPayload{
		AsOf: time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("build task failed: %v", err)
	}
	if err := consumer.handleCommissionEligibilitySweep(context.Background(), task); err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
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

func setupAgentSvcTest(t *testing.T) (*AgentService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:agent_svc_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Agent{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	cfg := &config.Config{
		Security: config.SecurityConfig{
			PasswordPolicy: config.PasswordPolicyConfig{
				MinLength:     8,
				RequireLower:  true,
				RequireNumber: true,
			},
		},
	}
	agentRepo := repository.NewAgentRepository(db)
	hierarchy := NewHierarchyService(agentRepo)
	policy := NewAccessPolicy(hierarchy)
	return NewAgentService(cfg, agentRepo, hierarchy, policy), db
}

func createAgentSvcFixture(t *testing.T, db *gorm.DB, id uint, role string, uplineID *uint, level int) *models.Agent {
	t.Helper()
	agent := models.Agent{
		ID:             id,
		Email:          fmt.Sprintf("agent_svc_%d@example.com", id),
		PasswordHash:   "hash",
		Role:           role,
		AgentNumber:    fmt.Sprintf("A-%06d", id),
		UplineAgentID:  uplineID,
		HierarchyLevel: level,
		Status:         constants.AgentStatusActive,
	}
	if err := db.Create(&agent).Error; err != nil {
		t.Fatalf("create agent failed: %v", err)
	}
	return &agent
}

func TestCreateAgentRoleGuard(t *testing.T) {
	svc, db := setupAgentSvcTest(t)
	ctx := context.Background()
	super := createAgentSvcFixture(t, db, 1, constants.AgentRoleSuperAdmin, nil, 0)
	admin := createAgentSvcFixture(t, db, 2, constants.AgentRoleAdmin, nil, 0)

	input := CreateAgentInput{
		Email:    "new_super@example.com",
		Password: "secret123",
		Role:     constants.AgentRoleSuperAdmin,
	}

	adminViewer := Viewer{ID: admin.ID, Role: admin.Role}
	if _, err := svc.CreateAgent(ctx, adminViewer, input); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("admin 创建 super_admin 应被拒绝, 实际: %v", err)
	}

	superViewer := Viewer{ID: super.ID, Role: super.Role}
	created, err := svc.CreateAgent(ctx, superViewer, input)
	if err != nil {
		t.Fatalf("super_admin 创建失败: %v", err)
	}
	if created.Role != constants.AgentRoleSuperAdmin {
		t.Fatalf("角色 = %s, 期望 super_admin", created.Role)
	}
	if created.AgentNumber == "" {
		t.Fatalf("员工编号未生成")
	}

	agentViewer := Viewer{ID: 99, Role: constants.AgentRoleAgent}
	if _, err := svc.CreateAgent(ctx, agentViewer, CreateAgentInput{
		Email:    "x@example.com",
		Password: "secret123",
	}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("普通员工创建账号应被拒绝, 实际: %v", err)
	}
}

func TestCreateAgentEmailTakenAndWeakPassword(t *testing.T) {
	svc, db := setupAgentSvcTest(t)
	ctx := context.Background()
	admin := createAgentSvcFixture(t, db, 1, constants.AgentRoleAdmin, nil, 0)
	viewer := Viewer{ID: admin.ID, Role: admin.Role}

	if _, err := svc.CreateAgent(ctx, viewer, CreateAgentInput{
		Email:    admin.Email,
		Password: "secret123",
	}); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("期望 ErrEmailTaken, 实际: %v", err)
	}

	if _, err := svc.CreateAgent(ctx, viewer, CreateAgentInput{
		Email:    "weak@example.com",
		Password: "short",
	}); !errors.Is(err, ErrWeakPassword) {
		t.Fatalf("期望 ErrWeakPassword, 实际: %v", err)
	}
}

func TestCreateAgentWithUplineSetsLevel(t *testing.T) {
	svc, db := setupAgentSvcTest(t)
	ctx := context.Background()
	admin := createAgentSvcFixture(t, db, 1, constants.AgentRoleAdmin, nil, 0)
	upline := createAgentSvcFixture(t, db, 2, constants.AgentRoleAgent, nil, 0)
	viewer := Viewer{ID: admin.ID, Role: admin.Role}

	created, err := svc.CreateAgent(ctx, viewer, CreateAgentInput{
		Email:         "downline@example.com",
		Password:      "secret123",
		UplineAgentID: &upline.ID,
	})
	if err != nil {
		t.Fatalf("创建失败: %v", err)
	}
	if created.HierarchyLevel != 1 {
		t.Fatalf("层级 = %d, 期望 1", created.HierarchyLevel)
	}

	missing := uint(999)
	if _, err := svc.CreateAgent(ctx, viewer, CreateAgentInput{
		Email:         "orphan@example.com",
		Password:      "secret123",
		UplineAgentID: &missing,
	}); !errors.Is(err, ErrUplineInvalid) {
		t.Fatalf("期望 ErrUplineInvalid, 实际: %v", err)
	}
}

func TestChangeUplineCycleGuard(t *testing.T) {
	svc, db := setupAgentSvcTest(t)
	ctx := context.Background()
	admin := createAgentSvcFixture(t, db, 1, constants.AgentRoleAdmin, nil, 0)
	a1 := createAgentSvcFixture(t, db, 2, constants.AgentRoleAgent, nil, 0)
	a2 := createAgentSvcFixture(t, db, 3, constants.AgentRoleAgent, &a1.ID, 1)
	viewer := Viewer{ID: admin.ID, Role: admin.Role}

	// 把上线挂到自己的下线底下会造环
	if _, err := svc.ChangeUpline(ctx, viewer, a1.ID, &a2.ID); !errors.Is(err, ErrUplineInvalid) {
		t.Fatalf("期望 ErrUplineInvalid, 实际: %v", err)
	}
	if _, err := svc.ChangeUpline(ctx, viewer, a1.ID, &a1.ID); !errors.Is(err, ErrUplineInvalid) {
		t.Fatalf("自挂上线应被拒绝, 实际: %v", err)
	}
}

func TestChangeUplineRecomputesSubtreeLevels(t *testing.T) {
	svc, db := setupAgentSvcTest(t)
	ctx := context.Background()
	admin := createAgentSvcFixture(t, db, 1, constants.AgentRoleAdmin, nil, 0)
	root := createAgentSvcFixture(t, db, 2, constants.AgentRoleAgent, nil, 0)
	mid := createAgentSvcFixture(t, db, 3, constants.AgentRoleAgent, &root.ID, 1)
	leaf := createAgentSvcFixture(t, db, 4, constants.AgentRoleAgent, &mid.ID, 2)
	newUpline := createAgentSvcFixture(t, db, 5, constants.AgentRoleAgent, &root.ID, 1)
	viewer := Viewer{ID: admin.ID, Role: admin.Role}

	updated, err := svc.ChangeUpline(ctx, viewer, mid.ID, &newUpline.ID)
	if err != nil {
		t.Fatalf("调整上线失败: %v", err)
	}
	if updated.UplineAgentID == nil || *updated.UplineAgentID != newUpline.ID {
		t.Fatalf("上线未更新: %v", updated.UplineAgentID)
	}
	if updated.HierarchyLevel != 2 {
		t.Fatalf("层级 = %d, 期望 2", updated.HierarchyLevel)
	}

	var reloadedLeaf models.Agent
	if err := db.First(&reloadedLeaf, leaf.ID).Error; err != nil {
		t.Fatalf("reload leaf failed: %v", err)
	}
	if reloadedLeaf.HierarchyLevel != 3 {
		t.Fatalf("子树层级未重算, leaf level = %d, 期望 3", reloadedLeaf.HierarchyLevel)
	}
}

func TestAgentListAndLookupHideSuperAdminFromAdmin(t *testing.T) {
	svc, db := setupAgentSvcTest(t)
	ctx := context.Background()
	super := createAgentSvcFixture(t, db, 1, constants.AgentRoleSuperAdmin, nil, 0)
	admin := createAgentSvcFixture(t, db, 2, constants.AgentRoleAdmin, nil, 0)
	plain := createAgentSvcFixture(t, db, 3, constants.AgentRoleAgent, nil, 0)

	adminViewer := Viewer{ID: admin.ID, Role: admin.Role}
	if _, err := svc.GetAgent(ctx, adminViewer, super.ID); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("admin 查看 super_admin 应被拒绝, 实际: %v", err)
	}
	if _, err := svc.GetAgent(ctx, adminViewer, plain.ID); err != nil {
		t.Fatalf("admin 查看普通员工失败: %v", err)
	}

	rows, total, err := svc.ListAgents(ctx, adminViewer, repository.AgentListFilter{})
	if err != nil {
		t.Fatalf("admin 列表失败: %v", err)
	}
	if total != 2 {
		t.Fatalf("admin 列表总数 = %d, 期望 2（不含 super_admin）", total)
	}
	for _, row := range rows {
		if row.Role == constants.AgentRoleSuperAdmin {
			t.Fatalf("admin 列表泄漏了 super_admin 档案: agent_id=%d", row.ID)
		}
	}

	superViewer := Viewer{ID: super.ID, Role: super.Role}
	if _, total, err = svc.ListAgents(ctx, superViewer, repository.AgentListFilter{}); err != nil || total != 3 {
		t.Fatalf("super_admin 列表应全量, total=%d err=%v", total, err)
	}
	if _, err := svc.GetAgent(ctx, superViewer, admin.ID); err != nil {
		t.Fatalf("super_admin 查看 admin 失败: %v", err)
	}
}

func TestSetStatusDeactivateBumpsTokenVersion(t *testing.T) {
	svc, db := setupAgentSvcTest(t)
	ctx := context.Background()
	admin := createAgentSvcFixture(t, db, 1, constants.AgentRoleAdmin, nil, 0)
	target := createAgentSvcFixture(t, db, 2, constants.AgentRoleAgent, nil, 0)
	viewer := Viewer{ID: admin.ID, Role: admin.Role}

	before := target.TokenVersion
	updated, err := svc.SetStatus(ctx, viewer, target.ID, constants.AgentStatusInactive)
	if err != nil {
		t.Fatalf("停用失败: %v", err)
	}
	if updated.Status != constants.AgentStatusInactive {
		t.Fatalf("状态 = %s, 期望 inactive", updated.Status)
	}
	if updated.TokenVersion != before+1 {
		t.Fatalf("停用应使在外 token 失效, version=%d", updated.TokenVersion)
	}

	// 普通员工不能停用别人
	agentViewer := Viewer{ID: target.ID, Role: constants.AgentRoleAgent}
	if _, err := svc.SetStatus(ctx, agentViewer, admin.ID, constants.AgentStatusInactive); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("期望 ErrPermissionDenied, 实际: %v", err)
	}
}

func TestUpdateOverrideDeniedForAgentViewer(t *testing.T) {
	svc, db := setupAgentSvcTest(t)
	ctx := context.Background()
	a1 := createAgentSvcFixture(t, db, 1, constants.AgentRoleAgent, nil, 0)
	a2 := createAgentSvcFixture(t, db, 2, constants.AgentRoleAgent, &a1.ID, 1)

	// 下线试图改上线的抽佣比例
	viewerA2 := Viewer{ID: a2.ID, Role: a2.Role}
	if _, err := svc.UpdateOverride(ctx, viewerA2, a1.ID, true, decimal.NewFromInt(5)); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("期望 ErrPermissionDenied, 实际: %v", err)
	}
	// 上线也不能改下线的抽佣设置，管理角色才行
	viewerA1 := Viewer{ID: a1.ID, Role: a1.Role}
	if _, err := svc.UpdateOverride(ctx, viewerA1, a2.ID, true, decimal.NewFromInt(5)); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("期望 ErrPermissionDenied, 实际: %v", err)
	}
}

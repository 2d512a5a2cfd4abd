package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/enroll-next/internal/constants"
	"github.com/enroll-next/internal/models"
	"github.com/enroll-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupHierarchyTest(t *testing.T) (*HierarchyService, *gorm.DB) {
	t.Helper()
	dsn := fmt.Sprintf("file:hierarchy_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Agent{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db
	return NewHierarchyService(repository.NewAgentRepository(db)), db
}

func createHierarchyTestAgent(t *testing.T, db *gorm.DB, id uint, uplineID *uint) {
	t.Helper()
	level := 0
	if uplineID != nil {
		var upline models.Agent
		if err := db.First(&upline, *uplineID).Error; err == nil {
			level = upline.HierarchyLevel + 1
		}
	}
	agent := models.Agent{
		ID:             id,
		Email:          fmt.Sprintf("hier_agent_%d@example.com", id),
		PasswordHash:   "hash",
		Role:           constants.AgentRoleAgent,
		AgentNumber:    fmt.Sprintf("A-%06d", id),
		UplineAgentID:  uplineID,
		HierarchyLevel: level,
		Status:         constants.AgentStatusActive,
	}
	if err := db.Create(&agent).Error; err != nil {
		t.Fatalf("create agent failed: %v", err)
	}
}

func uintPtr(v uint) *uint { return &v }

func TestResolveDownlineTransitive(t *testing.T) {
	svc, db := setupHierarchyTest(t)
	ctx := context.Background()

	createHierarchyTestAgent(t, db, 1, nil)
	createHierarchyTestAgent(t, db, 2, uintPtr(1))
	createHierarchyTestAgent(t, db, 3, uintPtr(2))
	createHierarchyTestAgent(t, db, 4, uintPtr(1))

	downline, err := svc.ResolveDownline(ctx, 1)
	if err != nil {
		t.Fatalf("解析下线失败: %v", err)
	}
	if len(downline) != 3 {
		t.Fatalf("下线数量 = %d, 期望 3", len(downline))
	}

	// 传递性：3 在 2 的下线，2 在 1 的下线，则 3 在 1 的下线
	inDownline, err := svc.IsInDownline(ctx, 1, 3)
	if err != nil || !inDownline {
		t.Fatalf("期望 3 在 1 的下线中, inDownline=%v err=%v", inDownline, err)
	}

	// 方向性：上线不在下线的闭包中
	inDownline, err = svc.IsInDownline(ctx, 3, 1)
	if err != nil || inDownline {
		t.Fatalf("期望 1 不在 3 的下线中, inDownline=%v err=%v", inDownline, err)
	}

	// 自身永远不在自己的下线中
	inDownline, err = svc.IsInDownline(ctx, 1, 1)
	if err != nil || inDownline {
		t.Fatalf("期望自身不在下线中, inDownline=%v err=%v", inDownline, err)
	}
}

func TestResolveDownlineLeafHasNone(t *testing.T) {
	svc, db := setupHierarchyTest(t)
	ctx := context.Background()

	createHierarchyTestAgent(t, db, 1, nil)
	createHierarchyTestAgent(t, db, 2, uintPtr(1))

	hasDownline, err := svc.HasDownline(ctx, 2)
	if err != nil {
		t.Fatalf("HasDownline 失败: %v", err)
	}
	if hasDownline {
		t.Fatalf("叶子节点不应有下线")
	}
}

func TestResolveDownlineCycleReturnsPartial(t *testing.T) {
	svc, db := setupHierarchyTest(t)
	ctx := context.Background()

	// 通过直写数据库构造环，绕过服务层的成环校验
	createHierarchyTestAgent(t, db, 10, nil)
	createHierarchyTestAgent(t, db, 11, uintPtr(10))
	if err := db.Model(&models.Agent{}).Where("id = ?", 10).
		Update("upline_agent_id", 11).Error; err != nil {
		t.Fatalf("构造环失败: %v", err)
	}

	downline, err := svc.ResolveDownline(ctx, 10)
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("期望 ErrCycleDetected, 实际: %v", err)
	}
	for _, id := range downline {
		if id == 10 {
			t.Fatalf("部分结果不应包含自身")
		}
	}
	if len(downline) != 1 || downline[0] != 11 {
		t.Fatalf("部分结果 = %v, 期望 [11]", downline)
	}
}

func TestResolveDownlineDepthBound(t *testing.T) {
	svc, db := setupHierarchyTest(t)
	ctx := context.Background()

	// 链长超过深度上限：1 ← 2 ← ... ← 55
	createHierarchyTestAgent(t, db, 1, nil)
	for id := uint(2); id <= uint(constants.HierarchyMaxDepth)+5; id++ {
		upline := id - 1
		createHierarchyTestAgent(t, db, id, &upline)
	}

	downline, err := svc.ResolveDownline(ctx, 1)
	if !errors.Is(err, ErrCycleDetected) {
		t.Fatalf("期望深度超限返回 ErrCycleDetected, 实际: %v", err)
	}
	if len(downline) != constants.HierarchyMaxDepth {
		t.Fatalf("部分结果数量 = %d, 期望 %d", len(downline), constants.HierarchyMaxDepth)
	}
}

package main

import (
	"encoding/json"
	"fmt"

	"github.com/enroll-next/internal/config"
	"github.com/enroll-next/internal/constants"
	"github.com/enroll-next/internal/logger"
	"github.com/enroll-next/internal/models"
	"github.com/enroll-next/internal/service"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	// 连接数据库
	cfg := config.Load()
	logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	stdLog := logger.StdLogger()
	if err := models.InitDB(cfg.Database.Driver, cfg.Database.DSN, models.DBPoolConfig{
		MaxOpenConns:           cfg.Database.Pool.MaxOpenConns,
		MaxIdleConns:           cfg.Database.Pool.MaxIdleConns,
		ConnMaxLifetimeSeconds: cfg.Database.Pool.ConnMaxLifetimeSeconds,
		ConnMaxIdleTimeSeconds: cfg.Database.Pool.ConnMaxIdleTimeSeconds,
	}); err != nil {
		stdLog.Fatalf("Failed to connect database: %v", err)
	}

	// 自动迁移
	if err := models.AutoMigrate(); err != nil {
		stdLog.Fatalf("Failed to migrate database: %v", err)
	}

	// 根超级管理员
	if err := models.InitRootAgent("root@enroll.local", "enroll123"); err != nil {
		stdLog.Fatalf("Failed to init root agent: %v", err)
	}
	var root models.Agent
	if err := models.DB.Where("agent_number = ?", "A-000001").First(&root).Error; err != nil {
		stdLog.Fatalf("Root agent not found: %v", err)
	}

	// 演示层级：root -> manager -> closer / rookie
	hash, err := bcrypt.GenerateFromPassword([]byte("enroll123"), bcrypt.DefaultCost)
	if err != nil {
		stdLog.Fatalf("Failed to hash demo password: %v", err)
	}
	rate := func(s string) models.Money {
		d, _ := decimal.NewFromString(s)
		return models.NewMoneyFromDecimal(d)
	}

	manager := seedAgent(stdLog.Printf, models.Agent{
		Email:                  "manager@enroll.local",
		PasswordHash:           string(hash),
		Name:                   "Demo Manager",
		Role:                   constants.AgentRoleAdmin,
		AgentNumber:            "A-000002",
		UplineAgentID:          &root.ID,
		HierarchyLevel:         root.HierarchyLevel + 1,
		CanReceiveOverrides:    true,
		OverrideCommissionRate: rate("10.00"),
		Status:                 constants.AgentStatusActive,
	})

	if manager != nil {
		seedAgent(stdLog.Printf, models.Agent{
			Email:          "closer@enroll.local",
			PasswordHash:   string(hash),
			Name:           "Demo Closer",
			Role:           constants.AgentRoleAgent,
			AgentNumber:    "A-000003",
			UplineAgentID:  &manager.ID,
			HierarchyLevel: manager.HierarchyLevel + 1,
			Status:         constants.AgentStatusActive,
		})
		seedAgent(stdLog.Printf, models.Agent{
			Email:          "rookie@enroll.local",
			PasswordHash:   string(hash),
			Name:           "Demo Rookie",
			Role:           constants.AgentRoleAgent,
			AgentNumber:    "A-000004",
			UplineAgentID:  &manager.ID,
			HierarchyLevel: manager.HierarchyLevel + 1,
			Status:         constants.AgentStatusActive,
		})
	}

	// 套餐（名称自由文本，档位由匹配器归一化）
	plans := []models.Plan{
		{Name: "Base Health", MonthlyCost: rate("120.00"), HasRxAddOn: false, IsActive: true},
		{Name: "Plus Health", MonthlyCost: rate("180.00"), HasRxAddOn: true, IsActive: true},
		{Name: "Elite Health", MonthlyCost: rate("260.00"), HasRxAddOn: true, IsActive: true},
		{Name: "Legacy Bronze", MonthlyCost: rate("90.00"), HasRxAddOn: false, IsActive: false},
	}
	for _, plan := range plans {
		var existing models.Plan
		if err := models.DB.Where("name = ?", plan.Name).First(&existing).Error; err != nil {
			if err := models.DB.Create(&plan).Error; err != nil {
				stdLog.Printf("Failed to create plan %s: %v", plan.Name, err)
			} else {
				stdLog.Printf("Created plan: %s", plan.Name)
			}
		} else {
			stdLog.Printf("Plan already exists: %s", plan.Name)
		}
	}

	// 默认费率表写入 settings（运行期可通过管理端覆盖）
	table := service.DefaultRateTable()
	payload, err := json.Marshal(table)
	if err != nil {
		stdLog.Fatalf("Failed to marshal rate table: %v", err)
	}
	var setting models.Setting
	if err := models.DB.Where("key = ?", constants.SettingKeyCommissionRateTable).First(&setting).Error; err != nil {
		setting = models.Setting{
			Key:   constants.SettingKeyCommissionRateTable,
			Value: string(payload),
		}
		if err := models.DB.Create(&setting).Error; err != nil {
			stdLog.Printf("Failed to create rate table setting: %v", err)
		} else {
			stdLog.Println("Created commission rate table")
		}
	} else {
		stdLog.Println("Commission rate table already exists, left untouched")
	}

	fmt.Println("\n✅ Seed data created successfully!")
	fmt.Println("Summary:")
	fmt.Println("- Root super admin (root@enroll.local / enroll123)")
	fmt.Println("- Demo hierarchy: manager -> closer, rookie")
	fmt.Println("- 4 Plans (3 active + 1 legacy)")
	fmt.Println("- Default commission rate table")
}

func seedAgent(logf func(string, ...interface{}), agent models.Agent) *models.Agent {
	var existing models.Agent
	if err := models.DB.Where("email = ?", agent.Email).First(&existing).Error; err == nil {
		logf("Agent already exists: %s", agent.Email)
		return &existing
	}
	if err := models.DB.Create(&agent).Error; err != nil {
		logf("Failed to create agent %s: %v", agent.Email, err)
		return nil
	}
	logf("Created agent: %s (%s)", agent.Email, agent.AgentNumber)
	return &agent
}

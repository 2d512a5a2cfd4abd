package models

import (
	"strings"

	"github.com/enroll-next/internal/constants"
	"github.com/enroll-next/internal/logger"

	"golang.org/x/crypto/bcrypt"
)

// InitRootAgent 初始化根超级管理员账号（层级根节点）
func InitRootAgent(email, password string) error {
	var count int64
	DB.Model(&Agent{}).Count(&count)
	if count > 0 {
		return nil
	}

	if email == "" {
		email = "root@enroll.local"
	}
	if password == "" {
		password = "enroll123"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	root := Agent{
		Email:          strings.ToLower(strings.TrimSpace(email)),
		PasswordHash:   string(hash),
		Name:           "Root",
		Role:           constants.AgentRoleSuperAdmin,
		AgentNumber:    "A-000001",
		HierarchyLevel: 0,
		Status:         constants.AgentStatusActive,
	}
	if err := DB.Create(&root).Error; err != nil {
		return err
	}

	if password == "enroll123" {
		logger.Warnw("root_agent_created_with_default_password", "email", root.Email)
		logger.Warnw("root_agent_password_change_required", "email", root.Email)
	} else {
		logger.Warnw("root_agent_created", "email", root.Email, "password_hidden", true)
	}
	return nil
}

package service

import (
	"strings"

	"github.com/enroll-next/internal/constants"
	"github.com/enroll-next/internal/logger"
	"github.com/enroll-next/internal/models"
	"github.com/enroll-next/internal/repository"
)

// AgentLoginLogService 登录日志服务
type AgentLoginLogService struct {
	repo repository.AgentLoginLogRepository
}

// NewAgentLoginLogService 创建登录日志服务
func NewAgentLoginLogService(repo repository.AgentLoginLogRepository) *AgentLoginLogService {
	return &AgentLoginLogService{repo: repo}
}

// RecordSuccess 记录登录成功
func (s *AgentLoginLogService) RecordSuccess(agentID uint, email, clientIP, userAgent string) {
	s.record(&models.AgentLoginLog{
		AgentID:   agentID,
		Email:     strings.ToLower(strings.TrimSpace(email)),
		Status:    constants.LoginStatusSuccess,
		ClientIP:  clientIP,
		UserAgent: userAgent,
	})
}

// RecordFailure 记录登录失败
func (s *AgentLoginLogService) RecordFailure(agentID uint, email, reason, clientIP, userAgent string) {
	s.record(&models.AgentLoginLog{
		AgentID:    agentID,
		Email:      strings.ToLower(strings.TrimSpace(email)),
		Status:     constants.LoginStatusFailed,
		FailReason: reason,
		ClientIP:   clientIP,
		UserAgent:  userAgent,
	})
}

func (s *AgentLoginLogService) record(entry *models.AgentLoginLog) {
	if s == nil || s.repo == nil {
		return
	}
	if err := s.repo.Create(entry); err != nil {
		logger.Warnw("agent_login_log_write_failed", "email", entry.Email, "error", err)
	}
}

// List 查询登录日志
func (s *AgentLoginLogService) List(filter repository.AgentLoginLogListFilter) ([]models.AgentLoginLog, int64, error) {
	return s.repo.List(filter)
}

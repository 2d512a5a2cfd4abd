package repository

import (
	"strings"

	"github.com/enroll-next/internal/models"

	"gorm.io/gorm"
)

// AgentLoginLogRepository 员工登录日志数据访问接口
type AgentLoginLogRepository interface {
	Create(log *models.AgentLoginLog) error
	List(filter AgentLoginLogListFilter) ([]models.AgentLoginLog, int64, error)
}

// GormAgentLoginLogRepository GORM 员工登录日志仓储
type GormAgentLoginLogRepository struct {
	db *gorm.DB
}

// NewAgentLoginLogRepository 创建员工登录日志仓储
func NewAgentLoginLogRepository(db *gorm.DB) *GormAgentLoginLogRepository {
	return &GormAgentLoginLogRepository{db: db}
}

// Create 写入登录日志
func (r *GormAgentLoginLogRepository) Create(log *models.AgentLoginLog) error {
	return r.db.Create(log).Error
}

// List 查询登录日志
func (r *GormAgentLoginLogRepository) List(filter AgentLoginLogListFilter) ([]models.AgentLoginLog, int64, error) {
	query := r.db.Model(&models.AgentLoginLog{})
	if filter.AgentID != 0 {
		query = query.Where("agent_id = ?", filter.AgentID)
	}
	if email := strings.TrimSpace(filter.Email); email != "" {
		query = query.Where("email = ?", strings.ToLower(email))
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at < ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.AgentLoginLog
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

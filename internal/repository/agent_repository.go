package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/enroll-next/internal/models"

	"gorm.io/gorm"
)

// AgentRepository 员工数据访问接口
type AgentRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) AgentRepository

	GetByID(id uint) (*models.Agent, error)
	GetByEmail(email string) (*models.Agent, error)
	GetByAgentNumber(number string) (*models.Agent, error)
	Create(agent *models.Agent) error
	Update(agent *models.Agent) error
	UpdateFields(id uint, updates map[string]interface{}) error
	List(filter AgentListFilter) ([]models.Agent, int64, error)
	ListAll() ([]models.Agent, error)
	ListByIDs(ids []uint) ([]models.Agent, error)
	ListByUpline(uplineID uint) ([]models.Agent, error)
	Exists(id uint) (bool, error)
	UpdateLastLogin(id uint, at time.Time) error
}

// GormAgentRepository GORM 员工仓储
type GormAgentRepository struct {
	db *gorm.DB
}

// NewAgentRepository 创建员工仓储
func NewAgentRepository(db *gorm.DB) *GormAgentRepository {
	return &GormAgentRepository{db: db}
}

// WithTx 绑定事务
func (r *GormAgentRepository) WithTx(tx *gorm.DB) AgentRepository {
	if tx == nil {
		return r
	}
	return &GormAgentRepository{db: tx}
}

// Transaction 执行事务
func (r *GormAgentRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByID 按ID获取员工
func (r *GormAgentRepository) GetByID(id uint) (*models.Agent, error) {
	if id == 0 {
		return nil, nil
	}
	var agent models.Agent
	if err := r.db.First(&agent, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &agent, nil
}

// GetByEmail 按邮箱获取员工
func (r *GormAgentRepository) GetByEmail(email string) (*models.Agent, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return nil, nil
	}
	var agent models.Agent
	if err := r.db.Where("email = ?", normalized).First(&agent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &agent, nil
}

// GetByAgentNumber 按员工编号获取员工
func (r *GormAgentRepository) GetByAgentNumber(number string) (*models.Agent, error) {
	normalized := strings.ToUpper(strings.TrimSpace(number))
	if normalized == "" {
		return nil, nil
	}
	var agent models.Agent
	if err := r.db.Where("agent_number = ?", normalized).First(&agent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &agent, nil
}

// Create 创建员工
func (r *GormAgentRepository) Create(agent *models.Agent) error {
	return r.db.Create(agent).Error
}

// Update 保存员工
func (r *GormAgentRepository) Update(agent *models.Agent) error {
	return r.db.Save(agent).Error
}

// UpdateFields 按字段更新员工
func (r *GormAgentRepository) UpdateFields(id uint, updates map[string]interface{}) error {
	if id == 0 || len(updates) == 0 {
		return nil
	}
	return r.db.Model(&models.Agent{}).Where("id = ?", id).Updates(updates).Error
}

// List 查询员工列表
func (r *GormAgentRepository) List(filter AgentListFilter) ([]models.Agent, int64, error) {
	query := r.db.Model(&models.Agent{})
	if role := strings.TrimSpace(filter.Role); role != "" {
		query = query.Where("role = ?", role)
	}
	if excluded := strings.TrimSpace(filter.ExcludeRole); excluded != "" {
		query = query.Where("role <> ?", excluded)
	}
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if filter.OnlyActive {
		query = query.Where("status = ?", "active")
	}
	if filter.UplineAgentID != 0 {
		query = query.Where("upline_agent_id = ?", filter.UplineAgentID)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		like := "%" + keyword + "%"
		query = query.Where("(email LIKE ? OR name LIKE ? OR agent_number LIKE ?)", like, like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filter.Page, filter.PageSize)

	var rows []models.Agent
	if err := query.Order("id asc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListAll 查询全量员工（层级解析用，含已停用账号）
func (r *GormAgentRepository) ListAll() ([]models.Agent, error) {
	var rows []models.Agent
	if err := r.db.Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByIDs 按ID集合查询员工
func (r *GormAgentRepository) ListByIDs(ids []uint) ([]models.Agent, error) {
	if len(ids) == 0 {
		return []models.Agent{}, nil
	}
	var rows []models.Agent
	if err := r.db.Where("id IN ?", ids).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListByUpline 查询直属下线
func (r *GormAgentRepository) ListByUpline(uplineID uint) ([]models.Agent, error) {
	if uplineID == 0 {
		return []models.Agent{}, nil
	}
	var rows []models.Agent
	if err := r.db.Where("upline_agent_id = ?", uplineID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Exists 判断员工是否存在
func (r *GormAgentRepository) Exists(id uint) (bool, error) {
	if id == 0 {
		return false, nil
	}
	var count int64
	if err := r.db.Model(&models.Agent{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// UpdateLastLogin 更新最后登录时间
func (r *GormAgentRepository) UpdateLastLogin(id uint, at time.Time) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.Agent{}).Where("id = ?", id).Update("last_login_at", at).Error
}

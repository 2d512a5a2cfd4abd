package repository

import (
	"errors"
	"strings"

	"github.com/enroll-next/internal/models"

	"gorm.io/gorm"
)

// MemberRepository 会员数据访问接口
type MemberRepository interface {
	WithTx(tx *gorm.DB) MemberRepository

	GetByID(id uint) (*models.Member, error)
	GetByCustomerNumber(number string) (*models.Member, error)
	Create(member *models.Member) error
	UpdateStatus(id uint, status string) error
	List(filter MemberListFilter) ([]models.Member, int64, error)
	Exists(id uint) (bool, error)
}

// GormMemberRepository GORM 会员仓储
type GormMemberRepository struct {
	db *gorm.DB
}

// NewMemberRepository 创建会员仓储
func NewMemberRepository(db *gorm.DB) *GormMemberRepository {
	return &GormMemberRepository{db: db}
}

// WithTx 绑定事务
func (r *GormMemberRepository) WithTx(tx *gorm.DB) MemberRepository {
	if tx == nil {
		return r
	}
	return &GormMemberRepository{db: tx}
}

// GetByID 按ID获取会员
func (r *GormMemberRepository) GetByID(id uint) (*models.Member, error) {
	if id == 0 {
		return nil, nil
	}
	var member models.Member
	if err := r.db.Preload("Plan").First(&member, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// GetByCustomerNumber 按客户编号获取会员
func (r *GormMemberRepository) GetByCustomerNumber(number string) (*models.Member, error) {
	normalized := strings.ToUpper(strings.TrimSpace(number))
	if normalized == "" {
		return nil, nil
	}
	var member models.Member
	if err := r.db.Preload("Plan").Where("customer_number = ?", normalized).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &member, nil
}

// Create 创建会员
func (r *GormMemberRepository) Create(member *models.Member) error {
	return r.db.Create(member).Error
}

// UpdateStatus 更新会员状态
func (r *GormMemberRepository) UpdateStatus(id uint, status string) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.Member{}).Where("id = ?", id).Update("status", strings.TrimSpace(status)).Error
}

// List 查询会员列表
func (r *GormMemberRepository) List(filter MemberListFilter) ([]models.Member, int64, error) {
	query := r.db.Model(&models.Member{}).Preload("Plan")
	if status := strings.TrimSpace(filter.Status); status != "" {
		query = query.Where("status = ?", status)
	}
	if filter.PlanID != 0 {
		query = query.Where("plan_id = ?", filter.PlanID)
	}
	if filter.EnrolledByAgentID != 0 {
		query = query.Where("enrolled_by_agent_id = ?", filter.EnrolledByAgentID)
	}
	if len(filter.EnrolledByAnyOf) > 0 {
		query = query.Where("enrolled_by_agent_id IN ?", filter.EnrolledByAnyOf)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		like := "%" + keyword + "%"
		query = query.Where("(name LIKE ? OR email LIKE ? OR customer_number LIKE ?)", like, like, like)
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

	var rows []models.Member
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Exists 判断会员是否存在
func (r *GormMemberRepository) Exists(id uint) (bool, error) {
	if id == 0 {
		return false, nil
	}
	var count int64
	if err := r.db.Model(&models.Member{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

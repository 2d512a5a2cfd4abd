package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/enroll-next/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommissionRepository 佣金台账数据访问接口
type CommissionRepository interface {
	Transaction(fn func(tx *gorm.DB) error) error
	WithTx(tx *gorm.DB) CommissionRepository

	GetByID(id uint) (*models.Commission, error)
	GetByIDForUpdate(id uint) (*models.Commission, error)
	Create(commission *models.Commission) error
	Update(commission *models.Commission) error
	List(filter CommissionListFilter) ([]models.Commission, int64, error)
	CountByAgentAndMember(agentID, memberID uint) (int64, error)
	SumAmount(agentID uint, statuses []string, from, to *time.Time) (decimal.Decimal, error)
	ListPayoutEligible(asOf time.Time, limit int) ([]models.Commission, error)
}

// GormCommissionRepository GORM 佣金仓储
type GormCommissionRepository struct {
	db *gorm.DB
}

// NewCommissionRepository 创建佣金仓储
func NewCommissionRepository(db *gorm.DB) *GormCommissionRepository {
	return &GormCommissionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCommissionRepository) WithTx(tx *gorm.DB) CommissionRepository {
	if tx == nil {
		return r
	}
	return &GormCommissionRepository{db: tx}
}

// Transaction 执行事务
func (r *GormCommissionRepository) Transaction(fn func(tx *gorm.DB) error) error {
	if fn == nil {
		return nil
	}
	return r.db.Transaction(fn)
}

// GetByID 按ID获取佣金记录
func (r *GormCommissionRepository) GetByID(id uint) (*models.Commission, error) {
	if id == 0 {
		return nil, nil
	}
	var commission models.Commission
	if err := r.db.First(&commission, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &commission, nil
}

// GetByIDForUpdate 按ID获取佣金记录并加行锁（状态流转用）
func (r *GormCommissionRepository) GetByIDForUpdate(id uint) (*models.Commission, error) {
	if id == 0 {
		return nil, nil
	}
	var commission models.Commission
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&commission, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &commission, nil
}

// Create 创建佣金记录
func (r *GormCommissionRepository) Create(commission *models.Commission) error {
	return r.db.Create(commission).Error
}

// Update 保存佣金记录
func (r *GormCommissionRepository) Update(commission *models.Commission) error {
	return r.db.Save(commission).Error
}

// List 查询佣金列表
func (r *GormCommissionRepository) List(filter CommissionListFilter) ([]models.Commission, int64, error) {
	query := r.db.Model(&models.Commission{}).Preload("Member")
	if filter.AgentID != 0 {
		query = query.Where("agent_id = ?", filter.AgentID)
	}
	if len(filter.AgentAnyOf) > 0 {
		query = query.Where("agent_id IN ?", filter.AgentAnyOf)
	}
	if filter.MemberID != 0 {
		query = query.Where("member_id = ?", filter.MemberID)
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

	var rows []models.Commission
	if err := query.Order("id desc").Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// CountByAgentAndMember 统计同一 (agent, member) 的佣金记录数
func (r *GormCommissionRepository) CountByAgentAndMember(agentID, memberID uint) (int64, error) {
	if agentID == 0 || memberID == 0 {
		return 0, nil
	}
	var count int64
	err := r.db.Model(&models.Commission{}).
		Where("agent_id = ? AND member_id = ?", agentID, memberID).
		Count(&count).Error
	return count, err
}

// SumAmount 汇总佣金金额；按创建时间圈定周期，statuses 为空时不过滤状态
func (r *GormCommissionRepository) SumAmount(agentID uint, statuses []string, from, to *time.Time) (decimal.Decimal, error) {
	query := r.db.Model(&models.Commission{})
	if agentID != 0 {
		query = query.Where("agent_id = ?", agentID)
	}
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	if from != nil {
		query = query.Where("created_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("created_at < ?", *to)
	}
	var result struct {
		Total decimal.Decimal
	}
	if err := query.Select("COALESCE(SUM(commission_amount), 0) AS total").Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total.Round(2), nil
}

// ListPayoutEligible 查询已到可发放时间但尚未发放的佣金
func (r *GormCommissionRepository) ListPayoutEligible(asOf time.Time, limit int) ([]models.Commission, error) {
	query := r.db.Model(&models.Commission{}).
		Where("status = ?", "pending_payout").
		Where("payout_eligible_date IS NOT NULL AND payout_eligible_date <= ?", asOf).
		Order("payout_eligible_date asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.Commission
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

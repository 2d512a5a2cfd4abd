package repository

import (
	"errors"

	"github.com/enroll-next/internal/models"

	"gorm.io/gorm"
)

// PlanRepository 套餐数据访问接口
type PlanRepository interface {
	GetByID(id uint) (*models.Plan, error)
	Create(plan *models.Plan) error
	Update(plan *models.Plan) error
	List() ([]models.Plan, error)
	ListActive() ([]models.Plan, error)
}

// GormPlanRepository GORM 套餐仓储
type GormPlanRepository struct {
	db *gorm.DB
}

// NewPlanRepository 创建套餐仓储
func NewPlanRepository(db *gorm.DB) *GormPlanRepository {
	return &GormPlanRepository{db: db}
}

// GetByID 按ID获取套餐
func (r *GormPlanRepository) GetByID(id uint) (*models.Plan, error) {
	if id == 0 {
		return nil, nil
	}
	var plan models.Plan
	if err := r.db.First(&plan, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

// Create 创建套餐
func (r *GormPlanRepository) Create(plan *models.Plan) error {
	return r.db.Create(plan).Error
}

// Update 保存套餐
func (r *GormPlanRepository) Update(plan *models.Plan) error {
	return r.db.Save(plan).Error
}

// List 查询全部套餐（含停售）
func (r *GormPlanRepository) List() ([]models.Plan, error) {
	var rows []models.Plan
	if err := r.db.Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListActive 查询可售套餐
func (r *GormPlanRepository) ListActive() ([]models.Plan, error) {
	var rows []models.Plan
	if err := r.db.Where("is_active = ?", true).Order("id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

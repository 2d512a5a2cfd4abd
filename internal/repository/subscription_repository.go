package repository

import (
	"errors"

	"github.com/enroll-next/internal/models"

	"gorm.io/gorm"
)

// SubscriptionRepository 订阅数据访问接口
type SubscriptionRepository interface {
	WithTx(tx *gorm.DB) SubscriptionRepository

	GetByID(id uint) (*models.Subscription, error)
	Create(subscription *models.Subscription) error
	UpdateStatus(id uint, status string) error
	ListByMember(memberID uint) ([]models.Subscription, error)
}

// GormSubscriptionRepository GORM 订阅仓储
type GormSubscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository 创建订阅仓储
func NewSubscriptionRepository(db *gorm.DB) *GormSubscriptionRepository {
	return &GormSubscriptionRepository{db: db}
}

// WithTx 绑定事务
func (r *GormSubscriptionRepository) WithTx(tx *gorm.DB) SubscriptionRepository {
	if tx == nil {
		return r
	}
	return &GormSubscriptionRepository{db: tx}
}

// GetByID 按ID获取订阅
func (r *GormSubscriptionRepository) GetByID(id uint) (*models.Subscription, error) {
	if id == 0 {
		return nil, nil
	}
	var subscription models.Subscription
	if err := r.db.First(&subscription, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &subscription, nil
}

// Create 创建订阅
func (r *GormSubscriptionRepository) Create(subscription *models.Subscription) error {
	return r.db.Create(subscription).Error
}

// UpdateStatus 更新订阅状态
func (r *GormSubscriptionRepository) UpdateStatus(id uint, status string) error {
	if id == 0 {
		return nil
	}
	return r.db.Model(&models.Subscription{}).Where("id = ?", id).Update("status", status).Error
}

// ListByMember 查询会员的订阅记录
func (r *GormSubscriptionRepository) ListByMember(memberID uint) ([]models.Subscription, error) {
	if memberID == 0 {
		return []models.Subscription{}, nil
	}
	var rows []models.Subscription
	if err := r.db.Where("member_id = ?", memberID).Order("id desc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

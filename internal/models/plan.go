package models

import (
	"time"

	"gorm.io/gorm"
)

// Plan 健康保障套餐表（Name 为自由文本，档位由匹配器归一化）
type Plan struct {
	ID          uint           `gorm:"primarykey" json:"id"`                          // 主键
	Name        string         `gorm:"not null" json:"name"`                          // 套餐名称（自由文本）
	MonthlyCost Money          `gorm:"type:decimal(20,2);not null;default:0" json:"monthly_cost"` // 月费
	HasRxAddOn  bool           `gorm:"not null;default:false" json:"has_rx_add_on"`   // 是否含处方药附加
	IsActive    bool           `gorm:"not null;default:true;index" json:"is_active"`  // 是否可售
	CreatedAt   time.Time      `gorm:"index" json:"created_at"`                       // 创建时间
	UpdatedAt   time.Time      `gorm:"index" json:"updated_at"`                       // 更新时间
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`                                // 软删除时间
}

// TableName 指定表名
func (Plan) TableName() string {
	return "plans"
}

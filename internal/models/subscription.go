package models

import (
	"time"

	"gorm.io/gorm"
)

// Subscription 订阅表（支付网关侧的扣费句柄，佣金可先于订阅存在）
type Subscription struct {
	ID         uint           `gorm:"primarykey" json:"id"`                           // 主键
	MemberID   uint           `gorm:"not null;index" json:"member_id"`                // 会员ID
	PlanID     uint           `gorm:"not null;index" json:"plan_id"`                  // 套餐ID
	GatewayRef string         `gorm:"default:''" json:"gateway_ref"`                  // 网关侧订阅引用
	Status     string         `gorm:"type:varchar(20);not null;default:'active';index" json:"status"` // active / cancelled
	StartedAt  time.Time      `json:"started_at"`                                     // 生效时间
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`                        // 创建时间
	UpdatedAt  time.Time      `gorm:"index" json:"updated_at"`                        // 更新时间
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`                                 // 软删除时间

	Member Member `gorm:"foreignKey:MemberID" json:"member,omitempty"` // 会员
	Plan   Plan   `gorm:"foreignKey:PlanID" json:"plan,omitempty"`     // 套餐
}

// TableName 指定表名
func (Subscription) TableName() string {
	return "subscriptions"
}

package models

import (
	"time"

	"gorm.io/gorm"
)

// Member 投保会员表（无登录能力，与 Agent 分表存储）
type Member struct {
	ID                uint           `gorm:"primarykey" json:"id"`                                          // 主键
	CustomerNumber    string         `gorm:"uniqueIndex;not null" json:"customer_number"`                   // 对外客户编号（创建后不可变更）
	Name              string         `gorm:"not null" json:"name"`                                          // 姓名
	Email             string         `gorm:"index" json:"email"`                                            // 联系邮箱
	Phone             string         `gorm:"default:''" json:"phone"`                                       // 联系电话
	PlanID            uint           `gorm:"not null;index" json:"plan_id"`                                 // 套餐ID
	CoverageType      string         `gorm:"type:varchar(32);not null" json:"coverage_type"`                // 保障范围
	EnrolledByAgentID *uint          `gorm:"index" json:"enrolled_by_agent_id,omitempty"`                   // 入单员工ID
	Status            string         `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"` // pending / active / cancelled / suspended
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`                                       // 创建时间
	UpdatedAt         time.Time      `gorm:"index" json:"updated_at"`                                       // 更新时间
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`                                                // 软删除时间

	Plan            Plan   `gorm:"foreignKey:PlanID" json:"plan,omitempty"`                       // 套餐
	EnrolledByAgent *Agent `gorm:"foreignKey:EnrolledByAgentID" json:"enrolled_by_agent,omitempty"` // 入单员工
}

// TableName 指定表名
func (Member) TableName() string {
	return "members"
}

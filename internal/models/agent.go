package models

import (
	"time"

	"gorm.io/gorm"
)

// Agent 销售员工表（可登录，含层级上线指针）
type Agent struct {
	ID                     uint           `gorm:"primarykey" json:"id"`                                // 主键
	Email                  string         `gorm:"uniqueIndex;not null" json:"email"`                   // 登录邮箱
	PasswordHash           string         `gorm:"not null" json:"-"`                                   // 密码哈希（不返回给前端）
	Name                   string         `gorm:"default:''" json:"name"`                              // 姓名
	Role                   string         `gorm:"type:varchar(20);not null;index" json:"role"`         // super_admin / admin / agent
	AgentNumber            string         `gorm:"uniqueIndex;not null" json:"agent_number"`            // 对外稳定编号
	UplineAgentID          *uint          `gorm:"index" json:"upline_agent_id,omitempty"`              // 上线指针（可空，自引用）
	HierarchyLevel         int            `gorm:"not null;default:0" json:"hierarchy_level"`           // 层级深度（0 为根）
	CanReceiveOverrides    bool           `gorm:"not null;default:false" json:"can_receive_overrides"` // 是否可获得上线抽佣
	OverrideCommissionRate Money          `gorm:"type:decimal(10,2);not null;default:0" json:"override_commission_rate"` // 上线抽佣比例（百分比）
	Status                 string         `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`        // active / inactive（不做硬删除）
	TokenVersion           uint64         `gorm:"not null;default:0" json:"-"`                         // Token 版本（用于全量失效）
	LastLoginAt            *time.Time     `json:"last_login_at"`                                       // 最后登录时间
	CreatedAt              time.Time      `gorm:"index" json:"created_at"`                             // 创建时间
	UpdatedAt              time.Time      `gorm:"index" json:"updated_at"`                             // 更新时间
	DeletedAt              gorm.DeletedAt `gorm:"index" json:"-"`                                      // 软删除时间

	UplineAgent *Agent `gorm:"foreignKey:UplineAgentID" json:"upline_agent,omitempty"` // 上线
}

// TableName 指定表名
func (Agent) TableName() string {
	return "agents"
}

// IsActive 账号是否可用
func (a *Agent) IsActive() bool {
	return a != nil && a.Status == "active"
}

package models

import (
	"time"
)

// AgentLoginLog 员工登录日志表
type AgentLoginLog struct {
	ID         uint      `gorm:"primarykey" json:"id"`                        // 主键
	AgentID    uint      `gorm:"index" json:"agent_id"`                       // 员工ID（登录失败时可能为 0）
	Email      string    `gorm:"index" json:"email"`                          // 登录邮箱
	Status     string    `gorm:"type:varchar(20);not null;index" json:"status"` // success / failed
	FailReason string    `gorm:"type:varchar(255)" json:"fail_reason"`        // 失败原因
	ClientIP   string    `gorm:"type:varchar(64)" json:"client_ip"`           // 客户端IP
	UserAgent  string    `gorm:"type:varchar(512)" json:"user_agent"`         // UA
	CreatedAt  time.Time `gorm:"index" json:"created_at"`                     // 创建时间
}

// TableName 指定表名
func (AgentLoginLog) TableName() string {
	return "agent_login_logs"
}

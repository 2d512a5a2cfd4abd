package models

import (
	"time"
)

// Setting 键值配置表（费率表等运行期可覆盖配置）
type Setting struct {
	ID        uint      `gorm:"primarykey" json:"id"`              // 主键
	Key       string    `gorm:"uniqueIndex;not null" json:"key"`   // 配置键
	Value     string    `gorm:"type:text" json:"value"`            // JSON 配置值
	UpdatedAt time.Time `gorm:"index" json:"updated_at"`           // 更新时间
}

// TableName 指定表名
func (Setting) TableName() string {
	return "settings"
}

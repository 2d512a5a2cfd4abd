package models

import (
	"time"

	"gorm.io/gorm"
)

// Commission 佣金台账记录（每次入单一条，金额创建时定死不回算）
type Commission struct {
	ID                  uint           `gorm:"primarykey" json:"id"`                                   // 主键
	AgentID             uint           `gorm:"not null;index" json:"agent_id"`                         // 获佣员工ID（必须可解析，禁止自由文本）
	MemberID            uint           `gorm:"not null;index" json:"member_id"`                        // 会员ID
	SubscriptionID      *uint          `gorm:"index" json:"subscription_id,omitempty"`                 // 订阅ID（可空，佣金可先于订阅落库）
	PlanTier            string         `gorm:"type:varchar(20);not null" json:"plan_tier"`             // 归一化套餐档位
	CoverageType        string         `gorm:"type:varchar(32);not null" json:"coverage_type"`         // 保障范围
	CommissionAmount    Money          `gorm:"type:decimal(20,2);not null;default:0" json:"commission_amount"` // 佣金金额
	TotalPlanCost       Money          `gorm:"type:decimal(20,2);not null;default:0" json:"total_plan_cost"`   // 套餐总费用
	Status              string         `gorm:"type:varchar(32);not null;index" json:"status"`          // pending_capture / pending_payout / paid
	PaymentCapturedDate *time.Time     `gorm:"index" json:"payment_captured_date,omitempty"`           // 支付捕获时间
	PayoutEligibleDate  *time.Time     `gorm:"index" json:"payout_eligible_date,omitempty"`            // 可发放时间（捕获时间 + 等待期）
	PayoutDate          *time.Time     `gorm:"index" json:"payout_date,omitempty"`                     // 实际发放时间（仅 paid 状态有值）
	Notes               string         `gorm:"type:text" json:"notes"`                                 // 备注（纠错走备注+冲正记录，不回退状态）
	CreatedAt           time.Time      `gorm:"index" json:"created_at"`                                // 创建时间
	UpdatedAt           time.Time      `gorm:"index" json:"updated_at"`                                // 更新时间
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"-"`                                         // 软删除时间

	Agent        Agent         `gorm:"foreignKey:AgentID" json:"agent,omitempty"`                // 获佣员工
	Member       Member        `gorm:"foreignKey:MemberID" json:"member,omitempty"`              // 会员
	Subscription *Subscription `gorm:"foreignKey:SubscriptionID" json:"subscription,omitempty"` // 订阅
}

// TableName 指定表名
func (Commission) TableName() string {
	return "commissions"
}

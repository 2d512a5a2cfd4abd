package constants

// 员工角色常量
const (
	AgentRoleSuperAdmin = "super_admin"
	AgentRoleAdmin      = "admin"
	AgentRoleAgent      = "agent"
)

// 员工账号状态常量
const (
	AgentStatusActive   = "active"
	AgentStatusInactive = "inactive"
)

// 会员状态常量
const (
	MemberStatusPending   = "pending"
	MemberStatusActive    = "active"
	MemberStatusCancelled = "cancelled"
	MemberStatusSuspended = "suspended"
)

// 订阅状态常量
const (
	SubscriptionStatusActive    = "active"
	SubscriptionStatusCancelled = "cancelled"
)

// 佣金状态常量
const (
	CommissionStatusPendingCapture = "pending_capture"
	CommissionStatusPendingPayout  = "pending_payout"
	CommissionStatusPaid           = "paid"
)

// 套餐档位常量
const (
	PlanTierBase  = "base"
	PlanTierPlus  = "plus"
	PlanTierElite = "elite"
)

// 保障范围常量
const (
	CoverageMemberOnly     = "member_only"
	CoverageMemberSpouse   = "member_spouse"
	CoverageMemberChildren = "member_children"
	CoverageFamily         = "family"
)

// 未识别档位落库时使用的占位档位
const PlanTierUnknown = "unknown"

// 设置键常量
const (
	SettingKeyCommissionRateTable = "commission_rate_table"
)

// 未识别套餐档位的入单策略常量
const (
	UnrecognizedTierPolicyFail = "fail"
	UnrecognizedTierPolicyZero = "zero"
)

// 层级遍历深度上限（超出视为数据完整性告警，而非崩溃）
const HierarchyMaxDepth = 50

// 队列名称常量
const (
	QueueDefault = "default"
)

// 异步任务名称常量
const (
	TaskCommissionPaymentCaptured  = "commission:payment_captured"
	TaskCommissionEligibilitySweep = "commission:eligibility_sweep"
)

// 登录日志状态常量
const (
	LoginStatusSuccess = "success"
	LoginStatusFailed  = "failed"
)

package service

import "errors"

// 服务层哨兵错误，处理器按错误类型映射响应码
var (
	// 引用完整性
	ErrAgentNotFound      = errors.New("员工不存在")
	ErrMemberNotFound     = errors.New("会员不存在")
	ErrPlanNotFound       = errors.New("套餐不存在")
	ErrPlanInactive       = errors.New("套餐已停售")
	ErrCommissionNotFound = errors.New("佣金记录不存在")
	ErrMemberInvalid      = errors.New("会员信息不合法")

	// 佣金台账
	ErrInvalidTransition    = errors.New("佣金状态流转不合法")
	ErrUnrecognizedPlanTier = errors.New("无法识别的套餐档位")
	ErrCoverageInvalid      = errors.New("保障范围不合法")
	ErrDuplicateCommission  = errors.New("同一员工与会员已存在佣金记录")
	ErrNoteEmpty            = errors.New("备注内容不能为空")
	ErrRateTableInvalid     = errors.New("费率表配置不合法")

	// 层级与权限
	ErrPermissionDenied = errors.New("没有操作权限")
	ErrCycleDetected    = errors.New("层级关系存在环")
	ErrUplineInvalid    = errors.New("上线设置不合法")
	ErrRoleInvalid      = errors.New("员工角色不合法")

	// 认证
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrAccountDisabled    = errors.New("账号已停用")
	ErrWeakPassword       = errors.New("密码强度不足")
	ErrEmailTaken         = errors.New("邮箱已被占用")
)

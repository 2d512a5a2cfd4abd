package repository

import "time"

// AgentListFilter 查询员工列表的过滤条件
type AgentListFilter struct {
	Page          int
	PageSize      int
	Role          string
	ExcludeRole   string
	Status        string
	UplineAgentID uint
	Keyword       string
	OnlyActive    bool
}

// MemberListFilter 查询会员列表的过滤条件
type MemberListFilter struct {
	Page              int
	PageSize          int
	Status            string
	PlanID            uint
	EnrolledByAgentID uint
	EnrolledByAnyOf   []uint
	Keyword           string
	CreatedFrom       *time.Time
	CreatedTo         *time.Time
}

// CommissionListFilter 查询佣金列表的过滤条件
type CommissionListFilter struct {
	Page        int
	PageSize    int
	AgentID     uint
	AgentAnyOf  []uint
	MemberID    uint
	Status      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// AgentLoginLogListFilter 查询员工登录日志列表的过滤条件
type AgentLoginLogListFilter struct {
	Page        int
	PageSize    int
	AgentID     uint
	Email       string
	Status      string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

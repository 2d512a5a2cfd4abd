package service

import (
	"context"

	"github.com/enroll-next/internal/constants"
	"github.com/enroll-next/internal/models"
)

// Viewer 访问者身份，所有访问决策都显式传入，不做任何全局上下文查找
type Viewer struct {
	ID   uint
	Role string
}

// IsAdmin 是否为管理角色（admin 或 super_admin）
func (v Viewer) IsAdmin() bool {
	return v.Role == constants.AgentRoleAdmin || v.Role == constants.AgentRoleSuperAdmin
}

// IsSuperAdmin 是否为超级管理员
func (v Viewer) IsSuperAdmin() bool {
	return v.Role == constants.AgentRoleSuperAdmin
}

// AccessPolicy 访问策略
// 角色序 super_admin > admin > agent；admin 对 super_admin 目标显式拒绝
// 普通员工只能看到自己和下线，编辑只限自己
type AccessPolicy struct {
	hierarchy *HierarchyService
}

// NewAccessPolicy 创建访问策略
func NewAccessPolicy(hierarchy *HierarchyService) *AccessPolicy {
	return &AccessPolicy{hierarchy: hierarchy}
}

// CanViewAgent 是否可查看目标员工档案
// admin 对 super_admin 的档案连查看都不行，和编辑一样显式拒绝
func (p *AccessPolicy) CanViewAgent(ctx context.Context, viewer Viewer, target *models.Agent) (bool, error) {
	if target == nil {
		return false, nil
	}
	if viewer.IsSuperAdmin() {
		return true, nil
	}
	if viewer.Role == constants.AgentRoleAdmin {
		return target.Role != constants.AgentRoleSuperAdmin, nil
	}
	if target.ID == viewer.ID {
		return true, nil
	}
	return p.hierarchy.IsInDownline(ctx, viewer.ID, target.ID)
}

// CanEditAgent 是否可编辑目标员工档案
// 下线员工的档案对上线只读：能看见下线，不等于能改下线
func (p *AccessPolicy) CanEditAgent(ctx context.Context, viewer Viewer, target *models.Agent) (bool, error) {
	if target == nil {
		return false, nil
	}
	if viewer.IsSuperAdmin() {
		return true, nil
	}
	if viewer.Role == constants.AgentRoleAdmin {
		// admin 不得动 super_admin 的档案，显式拒绝而不是静默空结果
		return target.Role != constants.AgentRoleSuperAdmin, nil
	}
	return target.ID == viewer.ID, nil
}

// CanViewRecordsOf 是否可查看归属于 ownerAgentID 的业务记录（佣金、会员）
func (p *AccessPolicy) CanViewRecordsOf(ctx context.Context, viewer Viewer, ownerAgentID uint) (bool, error) {
	if viewer.IsAdmin() {
		return true, nil
	}
	if ownerAgentID != 0 && ownerAgentID == viewer.ID {
		return true, nil
	}
	return p.hierarchy.IsInDownline(ctx, viewer.ID, ownerAgentID)
}

// CanEditCommission 是否可推进佣金状态（发放等），仅管理角色
func (p *AccessPolicy) CanEditCommission(viewer Viewer) bool {
	return viewer.IsAdmin()
}

// VisibleAgentIDs 计算访问者可见的业务记录归属范围
// all 为 true 表示不设限（管理角色）；否则返回自己加下线的明细集合
// 注意这是记录归属维度：admin 对 super_admin 名下业务记录可见，
// 但 super_admin 的员工档案本身仍按 CanViewAgent / ListAgents 拒绝
func (p *AccessPolicy) VisibleAgentIDs(ctx context.Context, viewer Viewer) (ids []uint, all bool, err error) {
	if viewer.IsAdmin() {
		return nil, true, nil
	}
	downline, err := p.hierarchy.ResolveDownline(ctx, viewer.ID)
	if err != nil && len(downline) == 0 {
		return nil, false, err
	}
	result := make([]uint, 0, len(downline)+1)
	result = append(result, viewer.ID)
	result = append(result, downline...)
	return result, false, err
}

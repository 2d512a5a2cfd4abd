package authz

import (
	"fmt"

	"github.com/enroll-next/internal/constants"
)

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role      string
	Inherits  []string
	Policies  []Policy
	Immutable bool
}

// BuiltinRoleSeeds 系统预置角色矩阵
// super_admin 拥有全部管理接口；admin 拥有除角色调整外的管理接口；
// agent 无管理接口，其可见范围由业务层按层级关系裁决。
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: constants.AgentRoleSuperAdmin,
			Policies: []Policy{
				{Object: "/admin/*", Action: "*"},
			},
			Immutable: true,
		},
		{
			Role: constants.AgentRoleAdmin,
			Policies: []Policy{
				{Object: "/admin/agents", Action: "*"},
				{Object: "/admin/agents/:id", Action: "*"},
				{Object: "/admin/agents/:id/upline", Action: "PATCH"},
				{Object: "/admin/agents/:id/status", Action: "PATCH"},
				{Object: "/admin/agents/:id/override", Action: "PATCH"},
				{Object: "/admin/agents/:id/downline", Action: "GET"},
				{Object: "/admin/commissions", Action: "*"},
				{Object: "/admin/commissions/:id", Action: "*"},
				{Object: "/admin/commissions/:id/capture", Action: "PATCH"},
				{Object: "/admin/commissions/:id/pay", Action: "PATCH"},
				{Object: "/admin/commissions/:id/notes", Action: "POST"},
				{Object: "/admin/commissions/payout-batch", Action: "POST"},
				{Object: "/admin/commissions/awaiting-payout", Action: "GET"},
				{Object: "/admin/members", Action: "GET"},
				{Object: "/admin/members/:id", Action: "GET"},
				{Object: "/admin/members/:id/status", Action: "PATCH"},
				{Object: "/admin/plans", Action: "*"},
				{Object: "/admin/plans/:id", Action: "*"},
				{Object: "/admin/rate-table", Action: "*"},
				{Object: "/admin/login-logs", Action: "GET"},
			},
			Immutable: true,
		},
		{
			Role:      constants.AgentRoleAgent,
			Immutable: true,
		},
	}
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略
func (s *Service) BootstrapBuiltinRoles() error {
	if s == nil || s.enforcer == nil {
		return fmt.Errorf("authz service unavailable")
	}

	changed := false
	for _, seed := range BuiltinRoleSeeds() {
		role, err := NormalizeRole(seed.Role)
		if err != nil {
			return err
		}

		exists, err := s.enforcer.HasNamedGroupingPolicy("g", role, roleAnchor)
		if err != nil {
			return fmt.Errorf("check builtin role failed: %w", err)
		}
		if !exists {
			added, err := s.enforcer.AddNamedGroupingPolicy("g", role, roleAnchor)
			if err != nil {
				return fmt.Errorf("create builtin role failed: %w", err)
			}
			if added {
				changed = true
			}
		}

		for _, parent := range seed.Inherits {
			parentRole, err := NormalizeRole(parent)
			if err != nil {
				return err
			}
			added, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole)
			if err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
			if added {
				changed = true
			}
		}

		for _, policy := range seed.Policies {
			action := NormalizeAction(policy.Action)
			if action == "" {
				return fmt.Errorf("builtin policy action is required")
			}
			added, err := s.enforcer.AddPolicy(role, NormalizeObject(policy.Object), action)
			if err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
			if added {
				changed = true
			}
		}
	}

	if changed {
		return s.saveAndReload()
	}
	return nil
}

// SyncAgentRole 将员工的业务角色同步为其唯一授权角色。
// 员工创建、角色调整与封禁解禁后都要调用，保证路由层判定与库内角色一致。
func (s *Service) SyncAgentRole(agentID uint, role string) error {
	switch role {
	case constants.AgentRoleSuperAdmin, constants.AgentRoleAdmin, constants.AgentRoleAgent:
	default:
		return fmt.Errorf("unknown agent role %q", role)
	}
	return s.SetAgentRoles(agentID, []string{role})
}

package admin

import (
	"net/url"
	"strings"

	"github.com/enroll-next/internal/authz"
	"github.com/enroll-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// AuthzRoleRequest 角色创建请求
type AuthzRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// AuthzPolicyRequest 角色策略授予/撤销请求
type AuthzPolicyRequest struct {
	Role   string `json:"role" binding:"required"`
	Object string `json:"object" binding:"required"`
	Action string `json:"action" binding:"required"`
}

// AuthzAgentRolesRequest 员工角色覆盖设置请求
type AuthzAgentRolesRequest struct {
	Roles []string `json:"roles"`
}

// ListAuthzRoles 获取角色列表
func (h *Handler) ListAuthzRoles(c *gin.Context) {
	roles, err := h.AuthzService.ListRoles()
	if err != nil {
		respondError(c, response.CodeInternal, "查询角色失败", err)
		return
	}
	response.Success(c, roles)
}

// CreateAuthzRole 创建自定义角色
func (h *Handler) CreateAuthzRole(c *gin.Context) {
	var req AuthzRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	role, err := h.AuthzService.EnsureRole(req.Role)
	if err != nil {
		respondError(c, response.CodeBadRequest, "创建角色失败", err)
		return
	}

	viewer, _ := currentViewer(c)
	requestLog(c).Infow("authz_role_created",
		"role", role,
		"operator_id", viewer.ID,
	)
	response.Success(c, gin.H{"role": role})
}

// DeleteAuthzRole 删除角色及其全部策略，系统预置角色不可删除
func (h *Handler) DeleteAuthzRole(c *gin.Context) {
	role := decodeRoleParam(c.Param("role"))
	if role == "" {
		respondError(c, response.CodeBadRequest, "角色名为空", nil)
		return
	}
	if isBuiltinRole(role) {
		respondError(c, response.CodeBadRequest, "系统预置角色不可删除", nil)
		return
	}

	if err := h.AuthzService.DeleteRole(role); err != nil {
		respondError(c, response.CodeBadRequest, "删除角色失败", err)
		return
	}

	viewer, _ := currentViewer(c)
	requestLog(c).Infow("authz_role_deleted",
		"role", role,
		"operator_id", viewer.ID,
	)
	response.Success(c, nil)
}

// GetAuthzRolePolicies 获取角色已授予的策略
func (h *Handler) GetAuthzRolePolicies(c *gin.Context) {
	role := decodeRoleParam(c.Param("role"))
	if role == "" {
		respondError(c, response.CodeBadRequest, "角色名为空", nil)
		return
	}

	policies, err := h.AuthzService.GetRolePolicies(role)
	if err != nil {
		respondError(c, response.CodeBadRequest, "查询角色策略失败", err)
		return
	}
	response.Success(c, policies)
}

// GrantAuthzPolicy 为角色授予策略
func (h *Handler) GrantAuthzPolicy(c *gin.Context) {
	var req AuthzPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	if err := h.AuthzService.GrantRolePolicy(req.Role, req.Object, req.Action); err != nil {
		respondError(c, response.CodeBadRequest, "授予策略失败", err)
		return
	}

	viewer, _ := currentViewer(c)
	requestLog(c).Infow("authz_policy_granted",
		"role", req.Role,
		"object", req.Object,
		"action", req.Action,
		"operator_id", viewer.ID,
	)
	response.Success(c, nil)
}

// RevokeAuthzPolicy 撤销角色策略
func (h *Handler) RevokeAuthzPolicy(c *gin.Context) {
	var req AuthzPolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	if err := h.AuthzService.RevokeRolePolicy(req.Role, req.Object, req.Action); err != nil {
		respondError(c, response.CodeBadRequest, "撤销策略失败", err)
		return
	}

	viewer, _ := currentViewer(c)
	requestLog(c).Infow("authz_policy_revoked",
		"role", req.Role,
		"object", req.Object,
		"action", req.Action,
		"operator_id", viewer.ID,
	)
	response.Success(c, nil)
}

// GetAgentAuthz 获取员工的授权快照（角色 + 生效策略）
func (h *Handler) GetAgentAuthz(c *gin.Context) {
	agentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	exists, err := h.AgentRepo.Exists(agentID)
	if err != nil {
		respondError(c, response.CodeInternal, "查询员工失败", err)
		return
	}
	if !exists {
		response.NotFound(c, "员工不存在")
		return
	}

	roles, err := h.AuthzService.GetAgentRoles(agentID)
	if err != nil {
		respondError(c, response.CodeInternal, "查询员工角色失败", err)
		return
	}
	policies, err := h.AuthzService.GetAgentPolicies(agentID)
	if err != nil {
		respondError(c, response.CodeInternal, "查询员工策略失败", err)
		return
	}
	response.Success(c, gin.H{
		"agent_id": agentID,
		"roles":    roles,
		"policies": policies,
	})
}

// SetAgentAuthzRoles 覆盖设置员工的授权角色
// 只改路由层授权分组，不改员工档案上的业务角色；
// 业务角色调整走 PATCH /admin/agents/:id/role，那条链路会同步回这里。
func (h *Handler) SetAgentAuthzRoles(c *gin.Context) {
	agentID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	exists, err := h.AgentRepo.Exists(agentID)
	if err != nil {
		respondError(c, response.CodeInternal, "查询员工失败", err)
		return
	}
	if !exists {
		response.NotFound(c, "员工不存在")
		return
	}

	var req AuthzAgentRolesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "请求参数错误", err)
		return
	}

	if err := h.AuthzService.SetAgentRoles(agentID, req.Roles); err != nil {
		respondError(c, response.CodeBadRequest, "设置员工角色失败", err)
		return
	}

	viewer, _ := currentViewer(c)
	requestLog(c).Infow("authz_agent_roles_updated",
		"agent_id", agentID,
		"roles", req.Roles,
		"operator_id", viewer.ID,
	)
	response.Success(c, nil)
}

func decodeRoleParam(value string) string {
	decoded, err := url.QueryUnescape(value)
	if err != nil {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(decoded)
}

func isBuiltinRole(role string) bool {
	normalized, err := authz.NormalizeRole(role)
	if err != nil {
		return false
	}
	for _, seed := range authz.BuiltinRoleSeeds() {
		builtin, err := authz.NormalizeRole(seed.Role)
		if err != nil {
			continue
		}
		if normalized == builtin {
			return true
		}
	}
	return false
}

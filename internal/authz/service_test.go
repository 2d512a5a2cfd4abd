package authz

import (
	"fmt"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupAuthzServiceTest(t *testing.T) *Service {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	svc, err := NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}
	return svc
}

func TestEnforceAgentWithRolePolicy(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.GrantRolePolicy("auditor", "/admin/commissions/:id", "GET"); err != nil {
		t.Fatalf("grant role policy failed: %v", err)
	}
	if err := svc.SetAgentRoles(1, []string{"auditor"}); err != nil {
		t.Fatalf("set agent roles failed: %v", err)
	}

	allow, err := svc.EnforceAgent(1, "/api/v1/admin/commissions/42", "get")
	if err != nil {
		t.Fatalf("enforce allow failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected allow=true")
	}

	allow, err = svc.EnforceAgent(1, "/api/v1/admin/commissions/42", "PATCH")
	if err != nil {
		t.Fatalf("enforce deny failed: %v", err)
	}
	if allow {
		t.Fatalf("expected allow=false")
	}
}

func TestSetAgentRolesOverride(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}

	if err := svc.SyncAgentRole(2, "agent"); err != nil {
		t.Fatalf("sync first role failed: %v", err)
	}
	roles, err := svc.GetAgentRoles(2)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:agent" {
		t.Fatalf("roles want [role:agent], got=%v", roles)
	}

	if err := svc.SyncAgentRole(2, "admin"); err != nil {
		t.Fatalf("sync second role failed: %v", err)
	}
	roles, err = svc.GetAgentRoles(2)
	if err != nil {
		t.Fatalf("get roles failed: %v", err)
	}
	if len(roles) != 1 || roles[0] != "role:admin" {
		t.Fatalf("roles want [role:admin], got=%v", roles)
	}

	if err := svc.SyncAgentRole(2, "owner"); err == nil {
		t.Fatalf("expected unknown role rejected")
	}
}

func TestCustomRoleLifecycle(t *testing.T) {
	svc := setupAuthzServiceTest(t)

	role, err := svc.EnsureRole("auditor")
	if err != nil {
		t.Fatalf("ensure role failed: %v", err)
	}
	if role != "role:auditor" {
		t.Fatalf("role want role:auditor, got=%q", role)
	}

	if err := svc.GrantRolePolicy("auditor", "/api/v1/admin/login-logs", "GET"); err != nil {
		t.Fatalf("grant policy failed: %v", err)
	}
	if err := svc.GrantRolePolicy("auditor", "/admin/commissions", "GET"); err != nil {
		t.Fatalf("grant second policy failed: %v", err)
	}

	policies, err := svc.GetRolePolicies("auditor")
	if err != nil {
		t.Fatalf("get role policies failed: %v", err)
	}
	if len(policies) != 2 {
		t.Fatalf("policies want 2, got=%v", policies)
	}
	for _, p := range policies {
		if strings.HasPrefix(p.Object, "/api/v1") {
			t.Fatalf("policy object should be normalized, got=%q", p.Object)
		}
	}

	if err := svc.SetAgentRoles(9, []string{"auditor"}); err != nil {
		t.Fatalf("set agent roles failed: %v", err)
	}
	effective, err := svc.GetAgentPolicies(9)
	if err != nil {
		t.Fatalf("get agent policies failed: %v", err)
	}
	if len(effective) != 2 {
		t.Fatalf("effective policies want 2, got=%v", effective)
	}

	if err := svc.RevokeRolePolicy("auditor", "/admin/commissions", "GET"); err != nil {
		t.Fatalf("revoke policy failed: %v", err)
	}
	policies, err = svc.GetRolePolicies("auditor")
	if err != nil {
		t.Fatalf("get role policies failed: %v", err)
	}
	if len(policies) != 1 || policies[0].Object != "/admin/login-logs" {
		t.Fatalf("policies want [/admin/login-logs], got=%v", policies)
	}

	if err := svc.DeleteRole("auditor"); err != nil {
		t.Fatalf("delete role failed: %v", err)
	}
	roles, err := svc.ListRoles()
	if err != nil {
		t.Fatalf("list roles failed: %v", err)
	}
	for _, r := range roles {
		if r == "role:auditor" {
			t.Fatalf("deleted role still listed: %v", roles)
		}
	}
	allow, err := svc.EnforceAgent(9, "/admin/login-logs", "GET")
	if err != nil {
		t.Fatalf("enforce after delete failed: %v", err)
	}
	if allow {
		t.Fatalf("expected deny after role deleted")
	}
}

func TestNormalizeObject(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{in: "/api/v1/admin/commissions/:id", want: "/admin/commissions/:id"},
		{in: "/admin/commissions/:id", want: "/admin/commissions/:id"},
		{in: "admin/agents", want: "/admin/agents"},
		{in: "/api/v1", want: "/"},
		{in: "", want: "/"},
	}
	for _, item := range cases {
		got := NormalizeObject(item.in)
		if got != item.want {
			t.Fatalf("normalize object failed, in=%q want=%q got=%q", item.in, item.want, got)
		}
	}
}

func TestBootstrapBuiltinRoles(t *testing.T) {
	svc := setupAuthzServiceTest(t)
	if err := svc.BootstrapBuiltinRoles(); err != nil {
		t.Fatalf("bootstrap builtin roles failed: %v", err)
	}

	roles, err := svc.ListRoles()
	if err != nil {
		t.Fatalf("list roles failed: %v", err)
	}
	wantRoles := map[string]bool{
		"role:super_admin": true,
		"role:admin":       true,
		"role:agent":       true,
	}
	for _, role := range roles {
		delete(wantRoles, role)
	}
	if len(wantRoles) != 0 {
		t.Fatalf("builtin roles missing: %v", wantRoles)
	}

	if err := svc.SetAgentRoles(3, []string{"admin"}); err != nil {
		t.Fatalf("set agent roles failed: %v", err)
	}
	if err := svc.SetAgentRoles(4, []string{"super_admin"}); err != nil {
		t.Fatalf("set agent roles failed: %v", err)
	}
	if err := svc.SetAgentRoles(5, []string{"agent"}); err != nil {
		t.Fatalf("set agent roles failed: %v", err)
	}

	// admin 可管理佣金，但不能碰角色调整接口
	allow, err := svc.EnforceAgent(3, "/admin/commissions/7/pay", "PATCH")
	if err != nil {
		t.Fatalf("enforce admin pay failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected admin allowed to mark paid")
	}
	allow, err = svc.EnforceAgent(3, "/admin/agents/7/role", "PATCH")
	if err != nil {
		t.Fatalf("enforce admin role-change failed: %v", err)
	}
	if allow {
		t.Fatalf("expected admin denied on role change")
	}

	// super_admin 全量放行
	allow, err = svc.EnforceAgent(4, "/admin/agents/7/role", "PATCH")
	if err != nil {
		t.Fatalf("enforce super role-change failed: %v", err)
	}
	if !allow {
		t.Fatalf("expected super_admin allowed on role change")
	}

	// agent 无管理面
	allow, err = svc.EnforceAgent(5, "/admin/commissions", "GET")
	if err != nil {
		t.Fatalf("enforce agent admin surface failed: %v", err)
	}
	if allow {
		t.Fatalf("expected agent denied on admin surface")
	}
}

package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/enroll-next/internal/authz"
	"github.com/enroll-next/internal/cache"
	"github.com/enroll-next/internal/config"
	adminhandlers "github.com/enroll-next/internal/http/handlers/admin"
	publichandlers "github.com/enroll-next/internal/http/handlers/public"
	"github.com/enroll-next/internal/http/response"
	"github.com/enroll-next/internal/logger"
	"github.com/enroll-next/internal/provider"

	"github.com/gin-gonic/gin"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	// 初始化 Handler（按员工端/管理端分组）
	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)
	redisPrefix := strings.TrimSpace(cfg.Redis.Prefix)
	if redisPrefix == "" {
		redisPrefix = "en"
	}
	redisClient := cache.Client()
	loginRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:login", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts,
		BlockSeconds:  cfg.Security.LoginRateLimit.BlockSeconds,
		Message:       "登录尝试过于频繁，请 %d 秒后重试",
	}
	webhookRule := RateLimitRule{
		Prefix:        fmt.Sprintf("%s:rate:webhook", redisPrefix),
		WindowSeconds: cfg.Security.LoginRateLimit.WindowSeconds,
		MaxRequests:   cfg.Security.LoginRateLimit.MaxAttempts * 20,
	}

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 公开接口
		apiV1.GET("/plans", publicHandler.GetPlans)
		apiV1.POST("/auth/login", RateLimitMiddleware(redisClient, loginRule, KeyByIPAndJSONField("email")), publicHandler.Login)

		// 支付网关回调（捕获确认入口，幂等）
		apiV1.POST("/webhooks/payment", RateLimitMiddleware(redisClient, webhookRule, KeyByIP), publicHandler.PaymentWebhook)

		// 员工接口（需鉴权）
		agent := apiV1.Group("")
		agent.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.AgentRepo))
		{
			agent.GET("/me", publicHandler.GetCurrentAgent)
			agent.PUT("/me/profile", publicHandler.UpdateMyProfile)
			agent.PUT("/me/password", publicHandler.ChangeMyPassword)
			agent.GET("/me/downline", publicHandler.GetMyDownline)
			agent.GET("/me/commissions", publicHandler.GetMyCommissions)
			agent.GET("/me/commissions/totals", publicHandler.GetMyCommissionTotals)
			agent.GET("/me/members", publicHandler.GetMyMembers)
			agent.GET("/me/members/:id", publicHandler.GetMyMember)
			agent.POST("/enrollments", publicHandler.CreateEnrollment)
			agent.GET("/commissions/:id", publicHandler.GetCommission)
			agent.POST("/commissions/:id/notes", publicHandler.AnnotateCommission)
		}

		// 管理端接口（JWT + RBAC）
		admin := apiV1.Group("/admin")
		admin.Use(JWTAuthMiddleware(cfg.JWT.SecretKey, c.AgentRepo), AgentRBACMiddleware(c.AuthzService))
		{
			// 员工管理
			admin.GET("/agents", adminHandler.ListAgents)
			admin.POST("/agents", adminHandler.CreateAgent)
			admin.GET("/agents/:id", adminHandler.GetAgent)
			admin.PUT("/agents/:id", adminHandler.UpdateAgent)
			admin.PATCH("/agents/:id/upline", adminHandler.ChangeAgentUpline)
			admin.PATCH("/agents/:id/role", adminHandler.ChangeAgentRole)
			admin.PATCH("/agents/:id/status", adminHandler.SetAgentStatus)
			admin.PATCH("/agents/:id/override", adminHandler.UpdateAgentOverride)
			admin.GET("/agents/:id/downline", adminHandler.GetAgentDownline)

			// 佣金台账管理
			admin.GET("/commissions", adminHandler.ListCommissions)
			admin.POST("/commissions", adminHandler.CreateCommission)
			admin.GET("/commissions/awaiting-payout", adminHandler.ListAwaitingPayout)
			admin.POST("/commissions/payout-batch", adminHandler.BatchMarkCommissionsPaid)
			admin.GET("/commissions/:id", adminHandler.GetCommission)
			admin.PATCH("/commissions/:id/capture", adminHandler.MarkCommissionCaptured)
			admin.PATCH("/commissions/:id/pay", adminHandler.MarkCommissionPaid)
			admin.POST("/commissions/:id/notes", adminHandler.AnnotateCommission)

			// 会员管理
			admin.GET("/members", adminHandler.ListMembers)
			admin.GET("/members/:id", adminHandler.GetMember)
			admin.PATCH("/members/:id/status", adminHandler.UpdateMemberStatus)

			// 套餐管理
			admin.GET("/plans", adminHandler.ListPlans)
			admin.POST("/plans", adminHandler.CreatePlan)
			admin.PUT("/plans/:id", adminHandler.UpdatePlan)

			// 费率表管理
			admin.GET("/rate-table", adminHandler.GetRateTable)
			admin.PUT("/rate-table", adminHandler.UpdateRateTable)

			// 登录日志
			admin.GET("/login-logs", adminHandler.ListLoginLogs)

			// 授权管理（admin 预置策略不含 /admin/authz/*，只有 super_admin 可达）
			admin.GET("/authz/roles", adminHandler.ListAuthzRoles)
			admin.POST("/authz/roles", adminHandler.CreateAuthzRole)
			admin.DELETE("/authz/roles/:role", adminHandler.DeleteAuthzRole)
			admin.GET("/authz/roles/:role/policies", adminHandler.GetAuthzRolePolicies)
			admin.POST("/authz/policies", adminHandler.GrantAuthzPolicy)
			admin.DELETE("/authz/policies", adminHandler.RevokeAuthzPolicy)
			admin.GET("/authz/agents/:id", adminHandler.GetAgentAuthz)
			admin.PUT("/authz/agents/:id/roles", adminHandler.SetAgentAuthzRoles)

			// 权限目录（前端配置角色策略时使用）
			admin.GET("/authz/permissions/catalog", func(ctx *gin.Context) {
				response.Success(ctx, buildAdminPermissionCatalog(r))
			})
		}
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return r
}

type adminPermissionCatalogItem struct {
	Module     string `json:"module"`
	Method     string `json:"method"`
	Object     string `json:"object"`
	Permission string `json:"permission"`
}

func buildAdminPermissionCatalog(engine *gin.Engine) []adminPermissionCatalogItem {
	if engine == nil {
		return []adminPermissionCatalogItem{}
	}

	routes := engine.Routes()
	seen := make(map[string]struct{}, len(routes))
	items := make([]adminPermissionCatalogItem, 0, len(routes))

	for _, item := range routes {
		method := strings.ToUpper(strings.TrimSpace(item.Method))
		if method == "" || method == "OPTIONS" || method == "HEAD" {
			continue
		}
		if !strings.HasPrefix(item.Path, "/api/v1/admin/") {
			continue
		}
		object := authz.NormalizeObject(item.Path)
		permission := method + ":" + object
		if _, exists := seen[permission]; exists {
			continue
		}
		seen[permission] = struct{}{}
		items = append(items, adminPermissionCatalogItem{
			Module:     deriveAdminPermissionModule(object),
			Method:     method,
			Object:     object,
			Permission: permission,
		})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Module == items[j].Module {
			if items[i].Object == items[j].Object {
				return items[i].Method < items[j].Method
			}
			return items[i].Object < items[j].Object
		}
		return items[i].Module < items[j].Module
	})

	return items
}

func deriveAdminPermissionModule(object string) string {
	normalized := strings.TrimPrefix(strings.TrimSpace(object), "/")
	if normalized == "" {
		return "system"
	}
	segments := strings.Split(normalized, "/")
	if len(segments) <= 1 {
		return segments[0]
	}
	if segments[0] != "admin" {
		return segments[0]
	}
	return segments[1]
}
